// Package protocol holds the JSON wire types spoken with the voxel server.
package protocol

import "encoding/json"

const Version = "0.9"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeCatalog = "CATALOG"
	TypeObs     = "OBS"
	TypeAct     = "ACT"
)

// Task types run over several ticks and finish with TASK_DONE or TASK_FAIL.
const (
	TaskMoveTo   = "MOVE_TO"
	TaskMine     = "MINE"
	TaskPlace    = "PLACE"
	TaskOpen     = "OPEN"
	TaskTransfer = "TRANSFER"
	TaskCraft    = "CRAFT"
	TaskSmelt    = "SMELT"
	TaskGather   = "GATHER"
)

// Instant types resolve on the next tick with a single ACTION_RESULT.
const (
	InstantSay      = "SAY"
	InstantWhisper  = "WHISPER"
	InstantGive     = "GIVE"
	InstantEquip    = "EQUIP"
	InstantUnbundle = "UNBUNDLE"
	InstantTrade    = "TRADE"
	InstantInteract = "INTERACT"
)

// SelfContainer names the agent's own inventory in TRANSFER.
const SelfContainer = "SELF"

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
