package executor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"voxelcraft.ai/quartermaster/internal/failure"
	"voxelcraft.ai/quartermaster/internal/plan"
	"voxelcraft.ai/quartermaster/internal/world"
)

type negotiationState int

const (
	asking negotiationState = iota
	waiting
	settled
	timedOut
)

func (s negotiationState) String() string {
	switch s {
	case asking:
		return "asking"
	case waiting:
		return "waiting"
	case settled:
		return "settled"
	default:
		return "timed_out"
	}
}

// negotiation tracks one open request: what each player handed over for it,
// and what has to go back.
type negotiation struct {
	item  string
	want  int
	state negotiationState

	kept   map[string]int // donor -> units counted toward want
	excess map[string]int // donor -> units beyond want
}

func (n *negotiation) received() int {
	total := 0
	for _, c := range n.kept {
		total += c
	}
	return total
}

// accept books a matching gift; anything beyond want is surplus.
func (n *negotiation) accept(g world.Gift) {
	take := min(g.Count, n.want-n.received())
	if take > 0 {
		n.kept[g.From] += take
	}
	if g.Count > take {
		n.excess[g.From] += g.Count - take
	}
}

func donors(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for d, c := range m {
		if c > 0 {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// VisitOpenRequest asks everyone nearby and waits for gifts until the amount
// is covered or the deadline passes. Gifts of another item go straight back;
// surplus goes back once the request settles. On timeout everything received
// for the request is returned.
func (r *run) VisitOpenRequest(s plan.OpenRequest) error {
	chat := r.e.env.Chat
	if chat == nil {
		return failure.Capabilityf("open_request", s.Name, "no chat available")
	}
	ctx, cancel := context.WithTimeout(r.ctx, r.e.cfg.OpenRequestTimeout)
	defer cancel()

	n := &negotiation{item: s.Name, want: s.N, kept: map[string]int{}, excess: map[string]int{}}
	if err := chat.Say(ctx, fmt.Sprintf("Could anyone give me %d %s?", s.N, s.Name)); err != nil {
		return failure.Wrap(failure.Capability, "open_request", s.Name, err)
	}
	n.state = waiting

	tick := time.NewTicker(r.e.cfg.ReminderInterval)
	defer tick.Stop()
	gifts := chat.Gifts()

	for n.received() < n.want {
		select {
		case <-ctx.Done():
			n.state = timedOut
			r.giveBack(s.Name, n.kept)
			r.giveBack(s.Name, n.excess)
			r.e.log.Info("open request", zap.String("item", s.Name), zap.Stringer("state", n.state), zap.Int("received", n.received()))
			if err := r.ctx.Err(); err != nil {
				return err
			}
			return failure.Timeoutf("open_request", s.Name, "nobody gave %d %s in time (got %d)", s.N, s.Name, n.received())
		case <-tick.C:
			left := n.want - n.received()
			if err := chat.Say(ctx, fmt.Sprintf("Still looking for %d %s.", left, s.Name)); err != nil && ctx.Err() == nil {
				r.e.log.Warn("reminder", zap.Error(err))
			}
		case g, ok := <-gifts:
			if !ok {
				gifts = nil
				continue
			}
			if g.Item != s.Name {
				r.giveBack(g.Item, map[string]int{g.From: g.Count})
				continue
			}
			n.accept(g)
		}
	}

	n.state = settled
	r.giveBack(s.Name, n.excess)
	for _, d := range donors(n.kept) {
		if err := chat.Whisper(r.ctx, d, fmt.Sprintf("Thanks for the %d %s!", n.kept[d], s.Name)); err != nil {
			r.e.log.Warn("thank donor", zap.String("to", d), zap.Error(err))
		}
	}
	r.e.log.Info("open request", zap.String("item", s.Name), zap.Stringer("state", n.state), zap.Int("received", n.received()))
	return nil
}

// giveBack returns items to their donors. It runs even after cancellation.
func (r *run) giveBack(item string, by map[string]int) {
	ctx := context.WithoutCancel(r.ctx)
	for _, d := range donors(by) {
		if err := r.e.env.Chat.Give(ctx, d, item, by[d]); err != nil {
			r.e.log.Warn("give back", zap.String("to", d), zap.String("item", item), zap.Int("count", by[d]), zap.Error(err))
		}
	}
}
