// Package executor performs an organized plan against the world, one step at a
// time. Nothing is rolled back: a failing step stops the walk and the steps
// before it stay done.
package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"voxelcraft.ai/quartermaster/internal/failure"
	"voxelcraft.ai/quartermaster/internal/knowledge"
	"voxelcraft.ai/quartermaster/internal/plan"
	"voxelcraft.ai/quartermaster/internal/world"
)

type Config struct {
	DigRetries         int           `yaml:"dig_retries"`
	CooperativeTimeout time.Duration `yaml:"cooperative_timeout"`
	OpenRequestTimeout time.Duration `yaml:"open_request_timeout"`
	ReminderInterval   time.Duration `yaml:"reminder_interval"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	Proximity          float64       `yaml:"proximity"`
	SurfaceRadius      int           `yaml:"surface_radius"`
	SearchRadius       int           `yaml:"search_radius"`
	ClaimTTL           time.Duration `yaml:"claim_ttl"`
}

func DefaultConfig() Config {
	return Config{
		DigRetries:         5,
		CooperativeTimeout: 60 * time.Second,
		OpenRequestTimeout: 120 * time.Second,
		ReminderInterval:   20 * time.Second,
		PollInterval:       time.Second,
		Proximity:          2,
		SurfaceRadius:      16,
		SearchRadius:       32,
		ClaimTTL:           2 * time.Minute,
	}
}

// Observer is told the outcome of every step.
type Observer interface {
	ObserveStep(kind plan.Kind, err error)
}

type Executor struct {
	kb  *knowledge.Base
	env world.Env
	cfg Config
	log *zap.Logger
	obs Observer
}

type Option func(*Executor)

func WithObserver(o Observer) Option {
	return func(e *Executor) { e.obs = o }
}

func New(kb *knowledge.Base, env world.Env, cfg Config, log *zap.Logger, opts ...Option) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Executor{kb: kb, env: env, cfg: cfg, log: log}
	for _, o := range opts {
		o(e)
	}
	return e
}

// StepError reports which step stopped execution.
type StepError struct {
	Index int
	Kind  plan.Kind
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Execute walks steps in order and returns how many units of target the
// inventory gained, which can exceed what was asked for when recipes yield in
// batches. On failure the gain so far is returned with the error.
func (e *Executor) Execute(ctx context.Context, target string, steps []plan.Step) (int, error) {
	self, err := e.env.World.Self(ctx)
	if err != nil {
		return 0, failure.Wrap(failure.Environment, "execute", target, err)
	}
	before, err := e.held(ctx, target)
	if err != nil {
		return 0, failure.Wrap(failure.Environment, "execute", target, err)
	}

	r := &run{e: e, ctx: ctx, self: self}
	defer r.closeContainer()

	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return e.gained(ctx, target, before), &StepError{Index: i, Kind: s.Kind(), Err: err}
		}
		if s.Kind() != plan.KindContainer {
			r.closeContainer()
		}
		e.log.Info("step", zap.Int("index", i), zap.Stringer("kind", s.Kind()), zap.String("summary", plan.Summary(s)))
		err := s.Accept(r)
		if e.obs != nil {
			e.obs.ObserveStep(s.Kind(), err)
		}
		if err != nil {
			e.log.Warn("step failed", zap.Int("index", i), zap.Stringer("kind", s.Kind()), zap.Error(err))
			return e.gained(ctx, target, before), &StepError{Index: i, Kind: s.Kind(), Err: err}
		}
	}
	r.closeContainer()
	return e.gained(ctx, target, before), nil
}

// held counts target in the inventory; a tag counts every member.
func (e *Executor) held(ctx context.Context, target string) (int, error) {
	inv, err := e.env.World.Inventory(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range e.kb.Members(target) {
		n += inv[m]
	}
	return n, nil
}

func (e *Executor) gained(ctx context.Context, target string, before int) int {
	after, err := e.held(context.WithoutCancel(ctx), target)
	if err != nil {
		e.log.Warn("read inventory after execution", zap.Error(err))
		return 0
	}
	return after - before
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
