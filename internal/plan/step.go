// Package plan holds the acquisition plan model: the closed set of step kinds,
// the plan tree, its cost and result accounting, the predicted-state fold and
// the organizer that turns a tree into an executable sequence.
package plan

import (
	"fmt"

	"voxelcraft.ai/quartermaster/internal/knowledge"
	"voxelcraft.ai/quartermaster/internal/world"
)

type Kind int

const (
	KindInventory Kind = iota
	KindContainer
	KindBundle
	KindCooperative
	KindOpenRequest
	KindCraft
	KindCook
	KindTrade
	KindHarvest
	KindDig
	KindNavigate
)

var kindNames = [...]string{
	KindInventory:   "inventory",
	KindContainer:   "container",
	KindBundle:      "bundle",
	KindCooperative: "cooperative",
	KindOpenRequest: "open_request",
	KindCraft:       "craft",
	KindCook:        "cook",
	KindTrade:       "trade",
	KindHarvest:     "harvest",
	KindDig:         "dig",
	KindNavigate:    "navigate",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Step is one acquisition action. The set of implementations is closed: only
// the types in this file satisfy it, and Visitor has one method per type.
type Step interface {
	Kind() Kind
	// Item is the item the step delivers; empty for Navigate.
	Item() string
	// Count is how many of Item the step contributes.
	Count() int
	Accept(v Visitor) error

	sealed()
}

// Visitor handles every step kind. Adding a kind adds a method here, which
// breaks every implementation until it handles the new kind.
type Visitor interface {
	VisitInventory(FromInventory) error
	VisitContainer(FromContainer) error
	VisitBundle(FromBundle) error
	VisitCooperative(CooperativeRequest) error
	VisitOpenRequest(OpenRequest) error
	VisitCraft(Craft) error
	VisitCook(Cook) error
	VisitTrade(Trade) error
	VisitHarvest(HarvestMob) error
	VisitDig(Dig) error
	VisitNavigate(Navigate) error
}

// FromInventory claims items the agent already holds.
type FromInventory struct {
	Name string
	N    int
}

// ContainerRef locates a known container.
type ContainerRef struct {
	ID        string
	Type      string
	Pos       world.Vec3
	Dimension string
}

func (c ContainerRef) Key() world.ContainerKey {
	return world.ContainerKey{Pos: c.Pos, Dimension: c.Dimension}
}

// FromContainer withdraws from a shared container.
type FromContainer struct {
	Name      string
	N         int
	Container ContainerRef
}

// FromBundle takes items out of a portable bundle in the inventory.
type FromBundle struct {
	Name     string
	N        int
	BundleID string
}

// PeerShare is how much one cooperating agent is asked to set aside.
type PeerShare struct {
	AgentID string
	Count   int
}

// CooperativeRequest asks cooperating agents to hand over spare stock.
type CooperativeRequest struct {
	Name  string
	N     int
	Peers []PeerShare
}

// OpenRequest asks anyone nearby; the last resort.
type OpenRequest struct {
	Name string
	N    int
}

// Craft runs a crafting recipe Times times for Want units of Name.
type Craft struct {
	Name   string
	Recipe knowledge.RecipeDef
	Times  int
	Want   int

	// Station is the work surface block; empty for hand recipes.
	Station string
	// PlaceSurface means the station item is placed first (none in range).
	PlaceSurface bool
	Surface      world.Vec3
	HasSurface   bool
}

// HeatSourceRef is the chosen heat source for a Cook step.
type HeatSourceRef struct {
	Block     string
	Pos       world.Vec3
	NeedsFuel bool
	// Place means the source's item is placed first.
	Place bool
}

// Cook runs a cooking recipe Times times for Want units of Name.
type Cook struct {
	Name      string
	Recipe    knowledge.RecipeDef
	Times     int
	Want      int
	Source    HeatSourceRef
	Fuel      string
	FuelUnits int
}

// Trade repeats one trade offer Times times.
type Trade struct {
	PartnerID   string
	PartnerName string
	Pos         world.Vec3
	Offer       world.TradeOffer
	Times       int
	Want        int
}

// HarvestMob uses Tool on a passive creature for a byproduct.
type HarvestMob struct {
	Name         string
	N            int
	MobID        string
	MobType      string
	Pos          world.Vec3
	Tool         string
	ToolConsumed bool
}

// Dig mines a single block, retrying up to Retries times.
type Dig struct {
	Name    string
	N       int
	Block   string
	Pos     world.Vec3
	Tool    string
	Retries int
	Exploit string
}

// Navigate moves within Proximity of Target.
type Navigate struct {
	Target    world.Vec3
	Proximity float64
	Reason    string
}

func (FromInventory) Kind() Kind      { return KindInventory }
func (FromContainer) Kind() Kind      { return KindContainer }
func (FromBundle) Kind() Kind         { return KindBundle }
func (CooperativeRequest) Kind() Kind { return KindCooperative }
func (OpenRequest) Kind() Kind        { return KindOpenRequest }
func (Craft) Kind() Kind              { return KindCraft }
func (Cook) Kind() Kind               { return KindCook }
func (Trade) Kind() Kind              { return KindTrade }
func (HarvestMob) Kind() Kind         { return KindHarvest }
func (Dig) Kind() Kind                { return KindDig }
func (Navigate) Kind() Kind           { return KindNavigate }

func (s FromInventory) Item() string      { return s.Name }
func (s FromContainer) Item() string      { return s.Name }
func (s FromBundle) Item() string         { return s.Name }
func (s CooperativeRequest) Item() string { return s.Name }
func (s OpenRequest) Item() string        { return s.Name }
func (s Craft) Item() string              { return s.Name }
func (s Cook) Item() string               { return s.Name }
func (s Trade) Item() string              { return s.Offer.Output.Item }
func (s HarvestMob) Item() string         { return s.Name }
func (s Dig) Item() string                { return s.Name }
func (Navigate) Item() string             { return "" }

func (s FromInventory) Count() int      { return s.N }
func (s FromContainer) Count() int      { return s.N }
func (s FromBundle) Count() int         { return s.N }
func (s CooperativeRequest) Count() int { return s.N }
func (s OpenRequest) Count() int        { return s.N }
func (s Craft) Count() int              { return s.Recipe.Yield(s.Name) * s.Times }
func (s Cook) Count() int               { return s.Recipe.Yield(s.Name) * s.Times }
func (s Trade) Count() int              { return s.Offer.Output.Count * s.Times }
func (s HarvestMob) Count() int         { return s.N }
func (s Dig) Count() int                { return s.N }
func (Navigate) Count() int             { return 0 }

func (s FromInventory) Accept(v Visitor) error      { return v.VisitInventory(s) }
func (s FromContainer) Accept(v Visitor) error      { return v.VisitContainer(s) }
func (s FromBundle) Accept(v Visitor) error         { return v.VisitBundle(s) }
func (s CooperativeRequest) Accept(v Visitor) error { return v.VisitCooperative(s) }
func (s OpenRequest) Accept(v Visitor) error        { return v.VisitOpenRequest(s) }
func (s Craft) Accept(v Visitor) error              { return v.VisitCraft(s) }
func (s Cook) Accept(v Visitor) error               { return v.VisitCook(s) }
func (s Trade) Accept(v Visitor) error              { return v.VisitTrade(s) }
func (s HarvestMob) Accept(v Visitor) error         { return v.VisitHarvest(s) }
func (s Dig) Accept(v Visitor) error                { return v.VisitDig(s) }
func (s Navigate) Accept(v Visitor) error           { return v.VisitNavigate(s) }

func (FromInventory) sealed()      {}
func (FromContainer) sealed()      {}
func (FromBundle) sealed()         {}
func (CooperativeRequest) sealed() {}
func (OpenRequest) sealed()        {}
func (Craft) sealed()              {}
func (Cook) sealed()               {}
func (Trade) sealed()              {}
func (HarvestMob) sealed()         {}
func (Dig) sealed()                {}
func (Navigate) sealed()           {}

// Summary renders a one-line description of s.
func Summary(s Step) string {
	switch st := s.(type) {
	case FromInventory:
		return fmt.Sprintf("use %d %s from inventory", st.N, st.Name)
	case FromContainer:
		return fmt.Sprintf("take %d %s from %s", st.N, st.Name, st.Container.ID)
	case FromBundle:
		return fmt.Sprintf("take %d %s out of bundle %s", st.N, st.Name, st.BundleID)
	case CooperativeRequest:
		return fmt.Sprintf("ask %d peer(s) for %d %s", len(st.Peers), st.N, st.Name)
	case OpenRequest:
		return fmt.Sprintf("ask anyone for %d %s", st.N, st.Name)
	case Craft:
		line := fmt.Sprintf("craft %d %s via %s x%d", st.Count(), st.Name, st.Recipe.RecipeID, st.Times)
		if st.PlaceSurface {
			line += " (place " + st.Station + ")"
		}
		return line
	case Cook:
		line := fmt.Sprintf("cook %d %s via %s x%d at %s", st.Count(), st.Name, st.Recipe.RecipeID, st.Times, st.Source.Block)
		if st.FuelUnits > 0 {
			line += fmt.Sprintf(" burning %d %s", st.FuelUnits, st.Fuel)
		}
		return line
	case Trade:
		return fmt.Sprintf("trade with %s x%d for %d %s", st.PartnerName, st.Times, st.Count(), st.Item())
	case HarvestMob:
		return fmt.Sprintf("harvest %d %s from %s %s with %s", st.N, st.Name, st.MobType, st.MobID, st.Tool)
	case Dig:
		return fmt.Sprintf("dig %s at %d,%d,%d for %s", st.Block, st.Pos.X, st.Pos.Y, st.Pos.Z, st.Name)
	case Navigate:
		return fmt.Sprintf("go to %d,%d,%d (%s)", st.Target.X, st.Target.Y, st.Target.Z, st.Reason)
	default:
		return s.Kind().String()
	}
}
