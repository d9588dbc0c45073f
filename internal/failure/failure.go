// Package failure classifies everything that can stop an acquisition.
//
// Planning itself only ever surfaces one failure (Insufficient); evaluators that
// cannot help return nil plans, not errors. Execution failures carry the kind of
// the step that broke so callers can tell "don't know how" from "world changed"
// from "ran out of time".
package failure

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	// Knowledge: unknown item, no recipe, unknown tag.
	Knowledge
	// Environment: a container, heat source, block or creature vanished
	// between planning and execution.
	Environment
	// Capability: a strategy is disabled or a dialogue step is unavailable.
	Capability
	// Timeout: a deadline-bound step ran out of time.
	Timeout
	// GameState: insufficient items, missing tool, disabled trade.
	GameState
)

func (k Kind) String() string {
	switch k {
	case Knowledge:
		return "knowledge"
	case Environment:
		return "environment"
	case Capability:
		return "capability"
	case Timeout:
		return "timeout"
	case GameState:
		return "game_state"
	default:
		return "unknown"
	}
}

// Error is the single error type produced by the planner and executor.
type Error struct {
	Kind Kind
	Op   string // e.g. "plan", "craft", "dig"
	Item string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var s string
	switch {
	case e.Op != "" && e.Item != "":
		s = fmt.Sprintf("%s %s: %s", e.Op, e.Item, e.Msg)
	case e.Op != "":
		s = fmt.Sprintf("%s: %s", e.Op, e.Msg)
	default:
		s = e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, failure.ErrTimeout) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Item == "" && t.Msg == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrKnowledge   = &Error{Kind: Knowledge}
	ErrEnvironment = &Error{Kind: Environment}
	ErrCapability  = &Error{Kind: Capability}
	ErrTimeout     = &Error{Kind: Timeout}
	ErrGameState   = &Error{Kind: GameState}
)

func newf(k Kind, op, item, format string, args ...any) *Error {
	return &Error{Kind: k, Op: op, Item: item, Msg: fmt.Sprintf(format, args...)}
}

func Knowledgef(op, item, format string, args ...any) *Error {
	return newf(Knowledge, op, item, format, args...)
}

func Environmentf(op, item, format string, args ...any) *Error {
	return newf(Environment, op, item, format, args...)
}

func Capabilityf(op, item, format string, args ...any) *Error {
	return newf(Capability, op, item, format, args...)
}

func Timeoutf(op, item, format string, args ...any) *Error {
	return newf(Timeout, op, item, format, args...)
}

func GameStatef(op, item, format string, args ...any) *Error {
	return newf(GameState, op, item, format, args...)
}

// Wrap attaches kind and op to an underlying error. A nil err stays nil.
func Wrap(k Kind, op, item string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) && fe.Kind != KindUnknown {
		k = fe.Kind
	}
	return &Error{Kind: k, Op: op, Item: item, Msg: "failed", Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// InsufficientError is the aggregate planning failure.
type InsufficientError struct {
	Item string
	Got  int
	Want int
}

func (e *InsufficientError) Error() string {
	if e.Got <= 0 {
		return fmt.Sprintf("don't know how to get %d %s", e.Want, e.Item)
	}
	return fmt.Sprintf("could only gather %d of %d %s", e.Got, e.Want, e.Item)
}

func (e *InsufficientError) Unwrap() error { return ErrKnowledge }

func Insufficient(item string, got, want int) error {
	if got < 0 {
		got = 0
	}
	return &InsufficientError{Item: item, Got: got, Want: want}
}

// Message renders a short human-readable line for chat or CLI output.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ie *InsufficientError
	if errors.As(err, &ie) {
		return ie.Error()
	}
	switch KindOf(err) {
	case Knowledge:
		return "I don't know how: " + err.Error()
	case Environment:
		return "The world changed: " + err.Error()
	case Capability:
		return "I'm not allowed to: " + err.Error()
	case Timeout:
		return "Ran out of time: " + err.Error()
	case GameState:
		return "Can't right now: " + err.Error()
	default:
		return err.Error()
	}
}
