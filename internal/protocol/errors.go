package protocol

import "voxelcraft.ai/quartermaster/internal/failure"

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// World routing/state.
	ErrWorldBusy     = "E_WORLD_BUSY"
	ErrWorldNotFound = "E_WORLD_NOT_FOUND"
	ErrWorldDenied   = "E_WORLD_DENIED"
	ErrWorldCooldown = "E_WORLD_COOLDOWN"

	// Rule/action layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNoPermission  = "E_NO_PERMISSION"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrConflict      = "E_CONFLICT"
	ErrBlocked       = "E_BLOCKED"
	ErrStale         = "E_STALE"
	ErrInternal      = "E_INTERNAL"
)

var codeKinds = map[string]failure.Kind{
	ErrProtoBadRequest: failure.Capability,
	ErrWorldBusy:       failure.Environment,
	ErrWorldNotFound:   failure.Environment,
	ErrWorldDenied:     failure.Capability,
	ErrWorldCooldown:   failure.Environment,
	ErrBadRequest:      failure.Capability,
	ErrNoPermission:    failure.Capability,
	ErrNoResource:      failure.GameState,
	ErrInvalidTarget:   failure.Environment,
	ErrRateLimit:       failure.Environment,
	ErrConflict:        failure.Environment,
	ErrBlocked:         failure.Environment,
	ErrStale:           failure.Environment,
	ErrInternal:        failure.Environment,
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := codeKinds[code]
	return ok
}

// KindOf maps a server error code onto the planner's failure taxonomy.
// Unknown codes count as environment failures.
func KindOf(code string) failure.Kind {
	if k, ok := codeKinds[code]; ok {
		return k
	}
	return failure.Environment
}

// Failure builds the error for a rejected action or failed task.
func Failure(op, item, code, message string) error {
	if message == "" {
		message = "rejected"
	}
	return &failure.Error{Kind: KindOf(code), Op: op, Item: item, Msg: code + ": " + message}
}
