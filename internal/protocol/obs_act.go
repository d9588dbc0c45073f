package protocol

type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	AgentID         string `json:"agent_id"`
	WorldID         string `json:"world_id,omitempty"`

	Self      SelfObs      `json:"self"`
	Inventory []ItemStack  `json:"inventory"`
	Equipment EquipmentObs `json:"equipment"`
	Bundles   []BundleObs  `json:"bundles,omitempty"`

	Voxels   VoxelsObs   `json:"voxels"`
	Entities []EntityObs `json:"entities"`
	Events   []Event     `json:"events"`
	Tasks    []TaskObs   `json:"tasks"`
}

type SelfObs struct {
	Pos    [3]int `json:"pos"`
	HP     int    `json:"hp"`
	Hunger int    `json:"hunger"`
}

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type EquipmentObs struct {
	MainHand string `json:"main_hand"`
}

// BundleObs is a carried sub-container and what it holds.
type BundleObs struct {
	ID       string      `json:"id"`
	Item     string      `json:"item"`
	Contents []ItemStack `json:"contents"`
}

type VoxelsObs struct {
	Center   [3]int         `json:"center"`
	Radius   int            `json:"radius"`
	Encoding string         `json:"encoding"` // "RLE" or "DELTA"
	Data     string         `json:"data,omitempty"`
	Ops      []VoxelDeltaOp `json:"ops,omitempty"`
}

type VoxelDeltaOp struct {
	D [3]int `json:"d"` // offset from Center
	B uint16 `json:"b"` // palette index
}

type EntityObs struct {
	ID   string   `json:"id"`
	Type string   `json:"type"` // "AGENT", "SHEEP", ...
	Pos  [3]int   `json:"pos"`
	Tags []string `json:"tags,omitempty"`
}

type TaskObs struct {
	TaskID   string  `json:"task_id"`
	Kind     string  `json:"kind"`
	Progress float64 `json:"progress"`
	Target   [3]int  `json:"target,omitempty"`
	EtaTicks int     `json:"eta_ticks,omitempty"`
}

// ActMsg carries the agent's requests for one tick.
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	AgentID         string       `json:"agent_id"`
	Instants        []InstantReq `json:"instants,omitempty"`
	Tasks           []TaskReq    `json:"tasks,omitempty"`
	Cancel          []string     `json:"cancel,omitempty"`
}

type InstantReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Channel string `json:"channel,omitempty"`
	Text    string `json:"text,omitempty"`
	To      string `json:"to,omitempty"`

	Offer   [][]interface{} `json:"offer,omitempty"` // [["EMERALD",1], ...]
	Request [][]interface{} `json:"request,omitempty"`

	TargetID string `json:"target_id,omitempty"` // entity, partner or bundle id
	ItemID   string `json:"item_id,omitempty"`
	Count    int    `json:"count,omitempty"`
}

type TaskReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Target    [3]int  `json:"target,omitempty"`
	Tolerance float64 `json:"tolerance,omitempty"`

	TargetID string `json:"target_id,omitempty"`
	Src      string `json:"src_container,omitempty"`
	Dst      string `json:"dst_container,omitempty"`

	BlockPos [3]int `json:"block_pos,omitempty"`
	RecipeID string `json:"recipe_id,omitempty"`
	Count    int    `json:"count,omitempty"`
	ItemID   string `json:"item_id,omitempty"`
	Fuel     string `json:"fuel,omitempty"`
}

// Stacks turns stacks into the [[item, count], ...] shape trade offers use.
func Stacks(ss ...ItemStack) [][]interface{} {
	out := make([][]interface{}, 0, len(ss))
	for _, s := range ss {
		if s.Item == "" || s.Count <= 0 {
			continue
		}
		out = append(out, []interface{}{s.Item, s.Count})
	}
	return out
}
