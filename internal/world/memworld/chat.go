package memworld

import (
	"context"

	"voxelcraft.ai/quartermaster/internal/world"
)

func (w *World) Say(ctx context.Context, text string) error {
	w.mu.Lock()
	w.Said = append(w.Said, text)
	hook := w.OnSay
	w.mu.Unlock()
	if hook != nil {
		hook(text)
	}
	return ctx.Err()
}

func (w *World) Whisper(ctx context.Context, to, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Whispers = append(w.Whispers, to+": "+text)
	return ctx.Err()
}

func (w *World) Give(ctx context.Context, to, item string, n int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inv[item] < n {
		return errMissing("give", item, w.inv[item], n)
	}
	w.inv[item] -= n
	w.Given = append(w.Given, Transfer{To: to, Item: item, Count: n})
	return ctx.Err()
}

// Transfer is an item hand-over made by the agent.
type Transfer struct {
	To    string
	Item  string
	Count int
}

func (w *World) Gifts() <-chan world.Gift { return w.gifts }

// Transcript returns copies of what was said, whispered and given.
func (w *World) Transcript() (said, whispers []string, given []Transfer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.Said...), append([]string(nil), w.Whispers...), append([]Transfer(nil), w.Given...)
}
