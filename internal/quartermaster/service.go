// Package quartermaster is the caller-facing surface: plan an acquisition,
// execute it, or both.
package quartermaster

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"voxelcraft.ai/quartermaster/internal/executor"
	"voxelcraft.ai/quartermaster/internal/failure"
	"voxelcraft.ai/quartermaster/internal/knowledge"
	"voxelcraft.ai/quartermaster/internal/persistence/journal"
	"voxelcraft.ai/quartermaster/internal/plan"
	"voxelcraft.ai/quartermaster/internal/planner"
	"voxelcraft.ai/quartermaster/internal/telemetry"
	"voxelcraft.ai/quartermaster/internal/world"
)

type Config struct {
	Capabilities planner.Capabilities
	Planner      planner.Config
	Executor     executor.Config
}

// Journal receives one entry per plan and per execution.
type Journal interface {
	Record(e journal.Entry) error
}

type Service struct {
	kb      *knowledge.Base
	env     world.Env
	caps    planner.Capabilities
	planner *planner.Planner
	exec    *executor.Executor
	log     *zap.Logger

	metrics *telemetry.Metrics
	journal Journal
	now     func() time.Time
}

type Option func(*Service)

func WithMetrics(m *telemetry.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithJournal(j Journal) Option { return func(s *Service) { s.journal = j } }

// New wires a planner and executor over env. mem may be nil.
func New(kb *knowledge.Base, env world.Env, mem planner.Memory, cfg Config, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{kb: kb, env: env, caps: cfg.Capabilities, log: log, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.planner = planner.New(kb, env, mem, cfg.Planner, log.Named("planner"))
	var eopts []executor.Option
	if s.metrics != nil {
		eopts = append(eopts, executor.WithObserver(s.metrics))
	}
	s.exec = executor.New(kb, env, cfg.Executor, log.Named("executor"), eopts...)
	return s
}

// Planned is an organized plan ready to execute.
type Planned struct {
	ID    string
	Plan  *plan.Plan
	Steps []plan.Step
}

func (s *Service) Plan(ctx context.Context, ref string, count int) (*Planned, error) {
	return s.PlanWith(ctx, ref, count, s.caps)
}

// PlanWith plans under caps. An insufficient plan is still returned, together
// with the Insufficient error, so callers can show how far it got.
func (s *Service) PlanWith(ctx context.Context, ref string, count int, caps planner.Capabilities) (*Planned, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "quartermaster.plan",
		trace.WithAttributes(attribute.String("item", ref), attribute.Int("count", count)))
	defer span.End()

	if err := s.check(ref, count); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := s.now()
	p, err := s.planner.Plan(ctx, ref, count, caps, planner.Context{}, nil)
	took := s.now().Sub(start)
	if s.metrics != nil {
		s.metrics.ObservePlan(p, took, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := &Planned{ID: uuid.NewString(), Plan: p, Steps: plan.Organize(p)}
	span.SetAttributes(
		attribute.String("plan.id", out.ID),
		attribute.Int("plan.result", p.Result()),
		attribute.Float64("plan.cost", p.Cost()),
		attribute.Int("plan.steps", len(out.Steps)))

	entry := journal.Entry{
		PlanID: out.ID, At: s.now(), Event: "plan",
		Item: ref, Want: count, Result: p.Result(), Cost: p.Cost(), Steps: summaries(out.Steps),
	}
	if !p.Sufficient() {
		err = failure.Insufficient(ref, p.Result(), count)
		entry.Error, entry.ErrorKind = err.Error(), failure.Knowledge.String()
		span.SetStatus(codes.Error, err.Error())
	}
	s.record(entry)
	s.log.Info("planned",
		zap.String("plan_id", out.ID), zap.String("item", ref), zap.Int("want", count),
		zap.Int("result", p.Result()), zap.Float64("cost", p.Cost()), zap.Int("steps", len(out.Steps)),
		zap.Duration("took", took))
	return out, err
}

// check rejects requests the knowledge base cannot make sense of.
func (s *Service) check(ref string, count int) error {
	if count <= 0 {
		return failure.Knowledgef("plan", ref, "count must be positive, got %d", count)
	}
	r := plan.ParseRef(ref)
	if r.Tag {
		if names, ok := s.kb.ResolveTag(r.Name); !ok || len(names) == 0 {
			return failure.Knowledgef("plan", ref, "unknown tag")
		}
		return nil
	}
	if s.kb.Known(r.Name) {
		return nil
	}
	if hint := s.kb.Suggest(r.Name); hint != "" {
		return failure.Knowledgef("plan", r.Name, "unknown item, did you mean %s?", hint)
	}
	return failure.Knowledgef("plan", r.Name, "unknown item")
}

// Execute runs pl and returns the number of target units gained.
func (s *Service) Execute(ctx context.Context, pl *Planned) (int, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "quartermaster.execute",
		trace.WithAttributes(attribute.String("plan.id", pl.ID), attribute.String("item", pl.Plan.Target)))
	defer span.End()

	got, err := s.exec.Execute(ctx, pl.Plan.Target, pl.Steps)
	entry := journal.Entry{
		PlanID: pl.ID, At: s.now(), Event: "execute",
		Item: pl.Plan.Target, Want: pl.Plan.Want, Result: got, Completed: len(pl.Steps),
	}
	span.SetAttributes(attribute.Int("gained", got))
	if err != nil {
		var se *executor.StepError
		if errors.As(err, &se) {
			entry.Completed = se.Index
		}
		entry.Error, entry.ErrorKind = err.Error(), failure.KindOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.record(entry)
	return got, err
}

// Acquire plans and, when the plan is sufficient, executes it.
func (s *Service) Acquire(ctx context.Context, ref string, count int) (int, error) {
	pl, err := s.Plan(ctx, ref, count)
	if err != nil {
		return 0, err
	}
	return s.Execute(ctx, pl)
}

// Advertise publishes the agent's inventory as spare stock for cooperating
// peers. Items in keep are held back.
func (s *Service) Advertise(ctx context.Context, keep map[string]int) error {
	if s.env.Claims == nil {
		return nil
	}
	self, err := s.env.World.Self(ctx)
	if err != nil {
		return err
	}
	inv, err := s.env.World.Inventory(ctx)
	if err != nil {
		return err
	}
	spare := map[string]int{}
	for item, n := range inv {
		if n -= keep[item]; n > 0 {
			spare[item] = n
		}
	}
	return s.env.Claims.SetSpare(ctx, self.ID, spare)
}

func (s *Service) record(e journal.Entry) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(e); err != nil {
		s.log.Warn("journal write failed", zap.String("plan_id", e.PlanID), zap.Error(err))
	}
}

func summaries(steps []plan.Step) []string {
	out := make([]string, len(steps))
	for i, st := range steps {
		out[i] = plan.Summary(st)
	}
	return out
}
