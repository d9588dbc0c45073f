package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"voxelcraft.ai/quartermaster/internal/failure"
	"voxelcraft.ai/quartermaster/internal/knowledge"
	"voxelcraft.ai/quartermaster/internal/plan"
	"voxelcraft.ai/quartermaster/internal/world"
)

// run is the state of one Execute call. It visits every step kind.
type run struct {
	e    *Executor
	ctx  context.Context
	self world.Self

	open    world.ContainerHandle
	openRec world.ContainerRecord
}

var _ plan.Visitor = (*run)(nil)

func (r *run) closeContainer() {
	if r.open == nil {
		return
	}
	if err := r.open.Close(); err != nil {
		r.e.log.Warn("close container", zap.String("container", r.open.ID()), zap.Error(err))
	}
	r.open = nil
}

func (r *run) moveTo(op, item string, pos world.Vec3) error {
	err := r.e.env.Navigator.MoveTo(r.ctx, pos, r.e.cfg.Proximity)
	return failure.Wrap(failure.Environment, op, item, err)
}

// FromInventory items are already held; the craft or cook that consumes
// them checks the counts.
func (r *run) VisitInventory(plan.FromInventory) error { return nil }

func (r *run) VisitContainer(s plan.FromContainer) error {
	rec := world.ContainerRecord{ID: s.Container.ID, Type: s.Container.Type, Pos: s.Container.Pos, Dimension: s.Container.Dimension}
	if r.open == nil || r.open.ID() != rec.ID {
		r.closeContainer()
		if err := r.moveTo("container", s.Name, rec.Pos); err != nil {
			return err
		}
		h, err := r.e.env.Interactor.OpenContainer(r.ctx, rec)
		if err != nil {
			return failure.Wrap(failure.Environment, "container", s.Name, err)
		}
		r.open, r.openRec = h, rec
	}

	got, err := r.open.Withdraw(r.ctx, s.Name, s.N)
	if err != nil {
		return failure.Wrap(failure.Environment, "container", s.Name, err)
	}
	r.recordStock()
	if got < s.N {
		return failure.Environmentf("container", s.Name, "%s held only %d of %d", rec.ID, got, s.N)
	}
	return nil
}

// recordStock rewrites the open container's record from what is inside now.
func (r *run) recordStock() {
	if r.e.env.Containers == nil {
		return
	}
	stock, err := r.open.Stock(r.ctx)
	if err != nil {
		r.e.log.Warn("read container stock", zap.String("container", r.openRec.ID), zap.Error(err))
		return
	}
	rec := r.openRec
	rec.Stock, rec.UpdatedAt = stock, time.Now()
	if err := r.e.env.Containers.UpdateContainer(r.ctx, rec); err != nil {
		r.e.log.Warn("update container record", zap.String("container", rec.ID), zap.Error(err))
	}
}

func (r *run) VisitBundle(s plan.FromBundle) error {
	err := r.e.env.Interactor.Unbundle(r.ctx, s.BundleID, s.Name, s.N)
	return failure.Wrap(failure.GameState, "unbundle", s.Name, err)
}

// VisitCooperative reserves each peer's share, waits for the peers to mark
// them ready and picks them up. Reservations not collected are cancelled on
// every exit path.
func (r *run) VisitCooperative(s plan.CooperativeRequest) error {
	claims := r.e.env.Claims
	if claims == nil {
		return failure.Capabilityf("cooperative", s.Name, "no shared registry")
	}
	ctx, cancel := context.WithTimeout(r.ctx, r.e.cfg.CooperativeTimeout)
	defer cancel()

	open := map[string]bool{}
	defer func() {
		for id := range open {
			if err := claims.CancelReservation(context.WithoutCancel(r.ctx), id); err != nil {
				r.e.log.Warn("cancel reservation", zap.String("id", id), zap.Error(err))
			}
		}
	}()

	var ids []string
	for _, p := range s.Peers {
		res, err := claims.Reserve(ctx, world.Reservation{Requester: r.self.ID, Owner: p.AgentID, Item: s.Name, Count: p.Count})
		if err != nil {
			return failure.Wrap(failure.Environment, "cooperative", s.Name, err)
		}
		open[res.ID] = true
		ids = append(ids, res.ID)
	}

	for _, id := range ids {
		res, err := r.awaitReady(ctx, s.Name, id)
		if err != nil {
			return err
		}
		if err := r.moveTo("cooperative", s.Name, res.Pickup); err != nil {
			return err
		}
		if err := r.e.env.Interactor.Collect(r.ctx, res.Pickup, res.Item, res.Count); err != nil {
			return failure.Wrap(failure.Environment, "cooperative", s.Name, err)
		}
		res.Status = world.ReservationCollected
		if err := claims.UpdateReservation(context.WithoutCancel(r.ctx), res); err != nil {
			r.e.log.Warn("mark reservation collected", zap.String("id", id), zap.Error(err))
		}
		delete(open, id)
	}
	return nil
}

func (r *run) awaitReady(ctx context.Context, item, id string) (world.Reservation, error) {
	for {
		res, err := r.e.env.Claims.Reservation(ctx, id)
		if err != nil && ctx.Err() == nil {
			return res, failure.Wrap(failure.Environment, "cooperative", item, err)
		}
		if err == nil {
			switch res.Status {
			case world.ReservationReady:
				return res, nil
			case world.ReservationCancelled:
				return res, failure.Environmentf("cooperative", item, "%s declined the request", res.Owner)
			}
		}
		if err := sleep(ctx, r.e.cfg.PollInterval); err != nil {
			if r.ctx.Err() != nil {
				return res, r.ctx.Err()
			}
			return res, failure.Timeoutf("cooperative", item, "%s did not set the items aside in time", res.Owner)
		}
	}
}

// VisitOpenRequest is in openrequest.go.

func (r *run) VisitCraft(s plan.Craft) error {
	if err := r.verifyIngredients("craft", s.Name, s.Recipe, s.Times); err != nil {
		return err
	}
	var surface *world.Vec3
	if s.Recipe.NeedsStation() {
		pos, err := r.site("craft", s.Name, s.Station, s.PlaceSurface, s.HasSurface, s.Surface)
		if err != nil {
			return err
		}
		surface = &pos
	}
	err := r.e.env.Interactor.Craft(r.ctx, s.Recipe.RecipeID, s.Times, surface)
	return failure.Wrap(failure.GameState, "craft", s.Name, err)
}

func (r *run) VisitCook(s plan.Cook) error {
	if err := r.verifyIngredients("cook", s.Name, s.Recipe, s.Times); err != nil {
		return err
	}
	if s.Source.NeedsFuel && s.FuelUnits > 0 {
		inv, err := r.e.env.World.Inventory(r.ctx)
		if err != nil {
			return failure.Wrap(failure.Environment, "cook", s.Name, err)
		}
		if inv[s.Fuel] < s.FuelUnits {
			return failure.GameStatef("cook", s.Name, "need %d %s to burn, holding %d", s.FuelUnits, s.Fuel, inv[s.Fuel])
		}
	}
	pos, err := r.site("cook", s.Name, s.Source.Block, s.Source.Place, !s.Source.Place, s.Source.Pos)
	if err != nil {
		return err
	}
	fuel := ""
	if s.Source.NeedsFuel {
		fuel = s.Fuel
	}
	err = r.e.env.Interactor.Cook(r.ctx, s.Recipe.RecipeID, s.Times, pos, fuel)
	return failure.Wrap(failure.GameState, "cook", s.Name, err)
}

// verifyIngredients checks, right before committing, that every input is still
// held; something else may have used them since planning.
func (r *run) verifyIngredients(op, item string, rec knowledge.RecipeDef, times int) error {
	inv, err := r.e.env.World.Inventory(r.ctx)
	if err != nil {
		return failure.Wrap(failure.Environment, op, item, err)
	}
	for _, in := range rec.Inputs {
		held := 0
		for _, m := range r.e.kb.Members(in.Item) {
			held += inv[m]
		}
		if need := in.Count * times; held < need {
			return failure.GameStatef(op, item, "need %d %s, holding %d", need, in.Item, held)
		}
	}
	return nil
}

// site returns where block stands, ready to use: placed now, the planned
// position when the block is still there, or the nearest one in range.
func (r *run) site(op, item, block string, place, known bool, pos world.Vec3) (world.Vec3, error) {
	if place {
		p, err := r.e.env.Interactor.Place(r.ctx, r.e.kb.PlacerFor(block))
		if err != nil {
			return p, failure.Wrap(failure.GameState, op, item, err)
		}
		return p, nil
	}
	if known {
		got, err := r.e.env.World.BlockAt(r.ctx, pos)
		if err != nil {
			return pos, failure.Wrap(failure.Environment, op, item, err)
		}
		if got == block {
			return pos, r.moveTo(op, item, pos)
		}
	}
	ps, err := r.e.env.World.FindBlocks(r.ctx, block, r.e.cfg.SurfaceRadius)
	if err != nil {
		return pos, failure.Wrap(failure.Environment, op, item, err)
	}
	if len(ps) == 0 {
		return pos, failure.Environmentf(op, item, "no %s within %d blocks", block, r.e.cfg.SurfaceRadius)
	}
	return ps[0], r.moveTo(op, item, ps[0])
}

// VisitTrade repeats the offer, re-checking the price each time. Running out
// of currency part way stops early without an error; the shortfall shows in
// the final count. Running short before the first repetition is an error.
func (r *run) VisitTrade(s plan.Trade) error {
	if err := r.moveTo("trade", s.Item(), s.Pos); err != nil {
		return err
	}
	for i := 0; i < s.Times; i++ {
		inv, err := r.e.env.World.Inventory(r.ctx)
		if err != nil {
			return failure.Wrap(failure.Environment, "trade", s.Item(), err)
		}
		for _, p := range s.Offer.Price() {
			if inv[p.Item] < p.Count {
				r.e.log.Warn("trade no longer affordable",
					zap.String("partner", s.PartnerID), zap.String("price", p.Item),
					zap.Int("done", i), zap.Int("planned", s.Times))
				if i == 0 {
					return failure.GameStatef("trade", s.Item(), "cannot afford %d %s for %s", p.Count, p.Item, s.PartnerName)
				}
				return nil
			}
		}
		if err := r.e.env.Interactor.Trade(r.ctx, s.PartnerID, s.Offer); err != nil {
			return failure.Wrap(failure.GameState, "trade", s.Item(), err)
		}
	}
	return nil
}

func (r *run) VisitHarvest(s plan.HarvestMob) error {
	ents, err := r.e.env.World.FindEntities(r.ctx, s.MobType, r.e.cfg.SearchRadius)
	if err != nil {
		return failure.Wrap(failure.Environment, "harvest", s.Name, err)
	}
	var target *world.Entity
	for i := range ents {
		if ents[i].ID == s.MobID {
			target = &ents[i]
			break
		}
	}
	if target == nil {
		return failure.Environmentf("harvest", s.Name, "%s %s is gone", s.MobType, s.MobID)
	}
	if err := r.e.env.Interactor.Equip(r.ctx, s.Tool); err != nil {
		return failure.Wrap(failure.GameState, "harvest", s.Name, err)
	}
	if err := r.moveTo("harvest", s.Name, target.Pos); err != nil {
		return err
	}
	err = r.e.env.Interactor.Interact(r.ctx, target.ID, s.Tool)
	return failure.Wrap(failure.GameState, "harvest", s.Name, err)
}

// VisitDig claims the block for the duration of the dig so cooperating agents
// leave it alone, then tries up to Retries times, pausing PollInterval between
// attempts while the block is missing or will not break.
func (r *run) VisitDig(s plan.Dig) error {
	if claims := r.e.env.Claims; claims != nil {
		key := world.BlockResource(r.self.Dimension, s.Pos)
		ok, err := claims.Claim(r.ctx, key, r.self.ID, r.e.cfg.ClaimTTL)
		if err != nil {
			return failure.Wrap(failure.Environment, "dig", s.Name, err)
		}
		if !ok {
			return failure.Environmentf("dig", s.Name, "%d,%d,%d is claimed by another agent", s.Pos.X, s.Pos.Y, s.Pos.Z)
		}
		defer func() {
			if err := claims.Release(context.WithoutCancel(r.ctx), key, r.self.ID); err != nil {
				r.e.log.Warn("release block claim", zap.String("resource", key), zap.Error(err))
			}
		}()
	}

	if s.Tool != "" {
		if err := r.e.env.Interactor.Equip(r.ctx, s.Tool); err != nil {
			return failure.Wrap(failure.GameState, "dig", s.Name, err)
		}
	}
	attempts := max(s.Retries, 1)
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			r.e.log.Warn("dig failed, retrying", zap.Int("attempt", attempt), zap.Int("of", attempts), zap.Error(last))
			if err := sleep(r.ctx, r.e.cfg.PollInterval); err != nil {
				return err
			}
		}
		got, err := r.e.env.World.BlockAt(r.ctx, s.Pos)
		if err != nil {
			return failure.Wrap(failure.Environment, "dig", s.Name, err)
		}
		if got != s.Block {
			// A generator reads as air until it refills.
			last = failure.Environmentf("dig", s.Name, "expected %s at %d,%d,%d, found %q", s.Block, s.Pos.X, s.Pos.Y, s.Pos.Z, got)
			continue
		}
		last = r.e.env.Interactor.Dig(r.ctx, s.Pos)
		if last == nil {
			return nil
		}
		if err := r.ctx.Err(); err != nil {
			return err
		}
	}
	return failure.Wrap(failure.Environment, "dig", s.Name, last)
}

func (r *run) VisitNavigate(s plan.Navigate) error {
	err := r.e.env.Navigator.MoveTo(r.ctx, s.Target, s.Proximity)
	return failure.Wrap(failure.Environment, "navigate", s.Reason, err)
}
