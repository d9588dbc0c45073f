package protocol

import "fmt"

// Event types the client reacts to.
const (
	EventActionResult = "ACTION_RESULT"
	EventTaskDone     = "TASK_DONE"
	EventTaskFail     = "TASK_FAIL"
	EventContainer    = "CONTAINER"
	EventChat         = "CHAT"
	EventGift         = "GIFT"
	EventTradeDone    = "TRADE_DONE"
)

type Event map[string]interface{}

func (e Event) Type() string { return e.Str("type") }

func (e Event) Str(key string) string {
	s, _ := e[key].(string)
	return s
}

func (e Event) Bool(key string) bool {
	b, _ := e[key].(bool)
	return b
}

// Int reads a JSON number; decoded events carry float64.
func (e Event) Int(key string) int {
	switch v := e[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func (e Event) Pos(key string) ([3]int, bool) {
	raw, ok := e[key].([]interface{})
	if !ok || len(raw) != 3 {
		return [3]int{}, false
	}
	var out [3]int
	for i, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return [3]int{}, false
		}
		out[i] = int(f)
	}
	return out, true
}

// Stacks reads a list of {"item","count"} objects.
func (e Event) Stacks(key string) ([]ItemStack, error) {
	raw, ok := e[key].([]interface{})
	if !ok {
		if e[key] == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: not a list", key)
	}
	out := make([]ItemStack, 0, len(raw))
	for i, v := range raw {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s[%d]: not an object", key, i)
		}
		ev := Event(m)
		out = append(out, ItemStack{Item: ev.Str("item"), Count: ev.Int("count")})
	}
	return out, nil
}
