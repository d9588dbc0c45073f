package planner

import (
	"context"

	"go.uber.org/zap"

	"voxelcraft.ai/quartermaster/internal/plan"
	"voxelcraft.ai/quartermaster/internal/world"
)

type tradeEval struct{ p *Planner }

func (tradeEval) Name() string                { return "trade" }
func (tradeEval) Enabled(c Capabilities) bool { return c.Trade }
func (tradeEval) Floor() float64              { return plan.CostTrade }

// Evaluate considers every offer producing the item from known partners in
// the agent's dimension. An offer is only used when every price item can be
// fully covered for the repetitions needed.
func (e tradeEval) Evaluate(ctx context.Context, req Request) (*plan.Plan, error) {
	if e.p.env.Traders == nil {
		return nil, nil
	}
	partners, err := e.p.env.Traders.Partners(ctx)
	if err != nil {
		return nil, err
	}
	self, err := e.p.self(ctx)
	if err != nil {
		return nil, err
	}

	var best *plan.Plan
	for _, tp := range partners {
		if tp.Dimension != self.Dimension {
			continue
		}
		for _, off := range tp.Offers {
			if off.Output.Item != req.Item || off.Output.Count <= 0 {
				continue
			}
			left := off.Remaining() - usedTimes(req.SoFar, tp.ID, off)
			if left <= 0 {
				continue
			}
			reps := min(ceilDiv(req.Need, off.Output.Count), left)
			cand, err := e.try(ctx, req, tp, off, reps)
			if err != nil {
				return nil, err
			}
			if cand != nil && plan.Better(cand, best) {
				best = cand
			}
		}
	}
	return best, nil
}

func (e tradeEval) try(ctx context.Context, req Request, tp world.TradePartner, off world.TradeOffer, reps int) (*plan.Plan, error) {
	sub := plan.New(req.Item, req.Need)
	for _, price := range off.Price() {
		n := price.Count * reps
		pp, err := e.p.search(ctx, price.Item, n, req.Caps, req.Context, plan.Join(req.SoFar, sub))
		if err != nil {
			return nil, err
		}
		if got := pp.Result(); got < n {
			e.p.log.Debug("trade rejected: price short",
				zap.String("partner", tp.Name), zap.String("price", price.Item),
				zap.Int("got", got), zap.Int("need", n))
			return nil, nil
		}
		sub.AddSub(pp)
	}
	sub.Add(plan.Navigate{Target: tp.Pos, Proximity: e.p.cfg.Proximity, Reason: tp.Name})
	return sub.Add(plan.Trade{
		PartnerID:   tp.ID,
		PartnerName: tp.Name,
		Pos:         tp.Pos,
		Offer:       off,
		Times:       reps,
		Want:        min(req.Need, reps*off.Output.Count),
	}), nil
}

// usedTimes counts repetitions of the same offer already in the plan.
func usedTimes(soFar *plan.Plan, partnerID string, off world.TradeOffer) int {
	n := 0
	for _, s := range soFar.Flatten() {
		t, ok := s.(plan.Trade)
		if !ok || t.PartnerID != partnerID {
			continue
		}
		if t.Offer.Input1 == off.Input1 && t.Offer.Input2 == off.Input2 && t.Offer.Output == off.Output {
			n += t.Times
		}
	}
	return n
}
