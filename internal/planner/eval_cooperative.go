package planner

import (
	"context"

	"voxelcraft.ai/quartermaster/internal/plan"
)

type cooperativeEval struct{ p *Planner }

func (cooperativeEval) Name() string                { return "cooperative" }
func (cooperativeEval) Enabled(c Capabilities) bool { return c.RequestCooperative }
func (cooperativeEval) Floor() float64              { return plan.CostCooperative }

// Evaluate lists how much each cooperating agent could set aside from its
// advertised spare stock. The reservations themselves are placed at execution.
func (e cooperativeEval) Evaluate(ctx context.Context, req Request) (*plan.Plan, error) {
	if e.p.env.Claims == nil {
		return nil, nil
	}
	self, err := e.p.self(ctx)
	if err != nil {
		return nil, err
	}
	spare, err := e.p.env.Claims.Spare(ctx, req.Item)
	if err != nil {
		return nil, err
	}

	pred := req.Predicted()
	var (
		shares []plan.PeerShare
		got    int
	)
	for _, s := range spare {
		if s.AgentID == self.ID || got >= req.Need {
			continue
		}
		avail := s.Count - pred.PeerClaimed(s.AgentID, req.Item)
		if avail <= 0 {
			continue
		}
		n := min(avail, req.Need-got)
		shares = append(shares, plan.PeerShare{AgentID: s.AgentID, Count: n})
		got += n
	}
	if got == 0 {
		return nil, nil
	}
	return plan.New(req.Item, req.Need).Add(plan.CooperativeRequest{Name: req.Item, N: got, Peers: shares}), nil
}
