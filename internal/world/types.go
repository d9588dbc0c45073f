// Package world declares the collaborators the planner and executor talk to.
// Nothing here performs I/O; implementations live in internal/client (live
// voxel server), internal/world/memworld (in-memory) and the record stores.
package world

import (
	"math"
	"sort"
	"time"
)

type Vec3 struct{ X, Y, Z int }

func FromArray(a [3]int) Vec3 { return Vec3{X: a[0], Y: a[1], Z: a[2]} }

func (v Vec3) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3) Dist(o Vec3) float64 {
	dx := float64(v.X - o.X)
	dy := float64(v.Y - o.Y)
	dz := float64(v.Z - o.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Neighbors6 returns the face-adjacent positions.
func (v Vec3) Neighbors6() [6]Vec3 {
	return [6]Vec3{
		{v.X + 1, v.Y, v.Z}, {v.X - 1, v.Y, v.Z},
		{v.X, v.Y + 1, v.Z}, {v.X, v.Y - 1, v.Z},
		{v.X, v.Y, v.Z + 1}, {v.X, v.Y, v.Z - 1},
	}
}

type Stack struct {
	Item  string `json:"item" yaml:"item"`
	Count int    `json:"count" yaml:"count"`
}

type Self struct {
	ID        string
	Pos       Vec3
	Dimension string
}

// ContainerKey identifies a container across dimensions.
type ContainerKey struct {
	Pos       Vec3
	Dimension string
}

type ContainerRecord struct {
	ID        string         `json:"id" yaml:"id"`
	Type      string         `json:"type" yaml:"type"`
	Pos       Vec3           `json:"pos" yaml:"pos"`
	Dimension string         `json:"dimension" yaml:"dimension"`
	Stock     map[string]int `json:"stock" yaml:"stock"`
	UpdatedAt time.Time      `json:"updated_at" yaml:"updated_at"`
}

func (c ContainerRecord) Key() ContainerKey { return ContainerKey{Pos: c.Pos, Dimension: c.Dimension} }

// Bundle is a portable sub-container carried in the agent's inventory.
type Bundle struct {
	ID       string         `json:"id" yaml:"id"`
	Item     string         `json:"item" yaml:"item"`
	Contents map[string]int `json:"contents" yaml:"contents"`
}

type Entity struct {
	ID   string   `json:"id" yaml:"id"`
	Type string   `json:"type" yaml:"type"`
	Pos  Vec3     `json:"pos" yaml:"pos"`
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

func (e Entity) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type TradeOffer struct {
	Input1   Stack `json:"input1" yaml:"input1"`
	Input2   Stack `json:"input2,omitempty" yaml:"input2,omitempty"`
	Output   Stack `json:"output" yaml:"output"`
	Uses     int   `json:"uses" yaml:"uses"`
	MaxUses  int   `json:"max_uses" yaml:"max_uses"`
	Disabled bool  `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Remaining reports how many more times the offer can be used. MaxUses <= 0
// means unlimited.
func (o TradeOffer) Remaining() int {
	if o.Disabled {
		return 0
	}
	if o.MaxUses <= 0 {
		return math.MaxInt32
	}
	if r := o.MaxUses - o.Uses; r > 0 {
		return r
	}
	return 0
}

// Price lists the non-empty price stacks.
func (o TradeOffer) Price() []Stack {
	out := make([]Stack, 0, 2)
	if o.Input1.Item != "" && o.Input1.Count > 0 {
		out = append(out, o.Input1)
	}
	if o.Input2.Item != "" && o.Input2.Count > 0 {
		out = append(out, o.Input2)
	}
	return out
}

type TradePartner struct {
	ID        string       `json:"id" yaml:"id"`
	Name      string       `json:"name" yaml:"name"`
	Pos       Vec3         `json:"pos" yaml:"pos"`
	Dimension string       `json:"dimension" yaml:"dimension"`
	Offers    []TradeOffer `json:"offers" yaml:"offers"`
	UpdatedAt time.Time    `json:"updated_at" yaml:"updated_at"`
}

// PeerSpare is stock a cooperating agent advertises as not in use.
type PeerSpare struct {
	AgentID string
	Count   int
}

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationReady     ReservationStatus = "ready"
	ReservationCollected ReservationStatus = "collected"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Reservation is an advisory request that Owner set Count of Item aside for
// Requester. Owner marks it ready with a pickup position once dropped or
// stashed.
type Reservation struct {
	ID        string            `json:"id"`
	Requester string            `json:"requester"`
	Owner     string            `json:"owner"`
	Item      string            `json:"item"`
	Count     int               `json:"count"`
	Status    ReservationStatus `json:"status"`
	Pickup    Vec3              `json:"pickup"`
	CreatedAt time.Time         `json:"created_at"`
}

// Gift is an item transfer received from another player.
type Gift struct {
	From  string
	Item  string
	Count int
}

// SortByDistance orders positions nearest-first, ties broken by coordinates so
// results are deterministic.
func SortByDistance(from Vec3, ps []Vec3) {
	sort.SliceStable(ps, func(i, j int) bool {
		di, dj := from.Dist(ps[i]), from.Dist(ps[j])
		if di != dj {
			return di < dj
		}
		a, b := ps[i], ps[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
}
