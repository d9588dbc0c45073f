// Package client speaks the voxel server's websocket protocol and exposes the
// connection as the world collaborators the planner and executor use.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"voxelcraft.ai/quartermaster/internal/failure"
	"voxelcraft.ai/quartermaster/internal/protocol"
	"voxelcraft.ai/quartermaster/internal/world"
)

var ErrClosed = errors.New("client: connection closed")

type Config struct {
	URL             string        `yaml:"url"`
	AgentName       string        `yaml:"agent_name"`
	Token           string        `yaml:"token"`
	WorldPreference string        `yaml:"world_preference"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
}

func (c Config) withDefaults() Config {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

// Client is one agent session. Dial it, start Run, then use it as a world.Env.
type Client struct {
	cfg  Config
	log  *zap.Logger
	conn *websocket.Conn

	writeMu sync.Mutex
	seq     atomic.Uint64

	mu         sync.Mutex
	agentID    string
	worldID    string
	tick       uint64
	pos        [3]int
	inv        map[string]int
	bundles    []world.Bundle
	entities   []protocol.EntityObs
	palette    []string
	grid       protocol.Grid
	containers map[string]map[string]int
	open       *containerHandle
	waiters    map[string]chan protocol.Event
	observed   chan struct{}
	seen       bool

	gifts     chan world.Gift
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial connects and completes the HELLO/WELCOME handshake.
func Dial(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	d := websocket.Dialer{HandshakeTimeout: cfg.DialTimeout}
	conn, _, err := d.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	c := &Client{
		cfg:        cfg,
		log:        log,
		conn:       conn,
		inv:        map[string]int{},
		containers: map[string]map[string]int{},
		waiters:    map[string]chan protocol.Event{},
		observed:   make(chan struct{}),
		gifts:      make(chan world.Gift, 64),
		done:       make(chan struct{}),
	}
	if err := c.handshake(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshake(ctx context.Context) error {
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       c.cfg.AgentName,
		Capabilities:    protocol.HelloCapabilities{DeltaVoxels: true, MaxQueue: 8},
		WorldPreference: c.cfg.WorldPreference,
	}
	if c.cfg.Token != "" {
		hello.Auth = &protocol.HelloAuth{Token: c.cfg.Token}
	}
	if err := c.write(ctx, hello); err != nil {
		return fmt.Errorf("send HELLO: %w", err)
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.cfg.DialTimeout)
	}
	_ = c.conn.SetReadDeadline(deadline)
	defer c.conn.SetReadDeadline(time.Time{})
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("await WELCOME: %w", err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		if base.Type != protocol.TypeWelcome {
			c.handle(base.Type, msg)
			continue
		}
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return fmt.Errorf("decode WELCOME: %w", err)
		}
		c.mu.Lock()
		c.agentID, c.worldID = w.AgentID, w.CurrentWorldID
		c.mu.Unlock()
		c.log.Info("connected",
			zap.String("agent_id", w.AgentID),
			zap.String("world_id", w.CurrentWorldID),
			zap.Int("obs_radius", w.WorldParams.ObsRadius))
		return nil
	}
}

// Run reads server messages until ctx is done or the connection drops.
func (c *Client) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	stop := make(chan struct{})
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		return c.Close()
	})
	g.Go(func() error {
		defer close(stop)
		err := c.readLoop()
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	err := g.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (c *Client) readLoop() error {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(err)
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			c.log.Warn("undecodable message", zap.Error(err))
			continue
		}
		c.handle(base.Type, msg)
	}
}

func (c *Client) handle(typ string, msg []byte) {
	switch typ {
	case protocol.TypeCatalog:
		var cat protocol.CatalogMsg
		if err := json.Unmarshal(msg, &cat); err != nil {
			c.log.Warn("bad CATALOG", zap.Error(err))
			return
		}
		if cat.Name == protocol.CatalogBlockPalette {
			c.mu.Lock()
			c.palette = cat.Data
			c.mu.Unlock()
		}
	case protocol.TypeObs:
		var obs protocol.ObsMsg
		if err := json.Unmarshal(msg, &obs); err != nil {
			c.log.Warn("bad OBS", zap.Error(err))
			return
		}
		c.observe(&obs)
	}
}

type delivery struct {
	ch chan protocol.Event
	ev protocol.Event
}

// observe folds one OBS into the client state and routes its events.
func (c *Client) observe(obs *protocol.ObsMsg) {
	var (
		out   []delivery
		gifts []world.Gift
	)
	c.mu.Lock()
	c.tick = obs.Tick
	c.pos = obs.Self.Pos
	if obs.WorldID != "" {
		c.worldID = obs.WorldID
	}
	c.inv = map[string]int{}
	for _, s := range obs.Inventory {
		c.inv[s.Item] += s.Count
	}
	c.bundles = c.bundles[:0]
	for _, b := range obs.Bundles {
		c.bundles = append(c.bundles, world.Bundle{ID: b.ID, Item: b.Item, Contents: stock(b.Contents)})
	}
	c.entities = obs.Entities
	if g, err := c.grid.Apply(obs.Voxels); err != nil {
		c.log.Warn("voxels dropped", zap.Uint64("tick", obs.Tick), zap.Error(err))
	} else {
		c.grid = g
	}

	for _, ev := range obs.Events {
		switch ev.Type() {
		case protocol.EventActionResult:
			ch := c.waiters[ev.Str("ref")]
			if ch == nil {
				continue
			}
			if id := ev.Str("task_id"); id != "" && ev.Bool("ok") {
				c.waiters[id] = ch
			}
			out = append(out, delivery{ch, ev})
		case protocol.EventTaskDone, protocol.EventTaskFail:
			if ch := c.waiters[ev.Str("task_id")]; ch != nil {
				out = append(out, delivery{ch, ev})
			}
		case protocol.EventContainer:
			st, err := ev.Stacks("inventory")
			if err != nil {
				c.log.Warn("bad CONTAINER event", zap.Error(err))
				continue
			}
			c.containers[ev.Str("container")] = stock(st)
		case protocol.EventGift:
			gifts = append(gifts, world.Gift{From: ev.Str("from"), Item: ev.Str("item"), Count: ev.Int("count")})
		case protocol.EventChat:
			c.log.Debug("chat", zap.String("from", ev.Str("from")), zap.String("text", ev.Str("text")))
		}
	}
	c.seen = true
	close(c.observed)
	c.observed = make(chan struct{})
	c.mu.Unlock()

	for _, d := range out {
		select {
		case d.ch <- d.ev:
		default:
			c.log.Warn("event dropped", zap.String("type", d.ev.Type()))
		}
	}
	for _, g := range gifts {
		select {
		case c.gifts <- g:
		default:
			c.log.Warn("gift dropped", zap.String("from", g.From), zap.String("item", g.Item))
		}
	}
}

func stock(ss []protocol.ItemStack) map[string]int {
	out := make(map[string]int, len(ss))
	for _, s := range ss {
		out[s.Item] += s.Count
	}
	return out
}

// Ready blocks until the first observation has arrived.
func (c *Client) Ready(ctx context.Context) error {
	for {
		c.mu.Lock()
		seen, ch := c.seen, c.observed
		c.mu.Unlock()
		if seen {
			return nil
		}
		select {
		case <-ch:
		case <-c.done:
			return c.closedErr()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close ends the session. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
		c.shutdown(ErrClosed)
	})
	return err
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
	default:
		c.err = err
		close(c.done)
	}
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return ErrClosed
	}
	return fmt.Errorf("%w: %v", ErrClosed, c.err)
}

func (c *Client) write(ctx context.Context, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteJSON(v)
}

func (c *Client) nextID(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, c.seq.Add(1))
}

func (c *Client) act(ctx context.Context, act protocol.ActMsg) error {
	c.mu.Lock()
	act.Type, act.ProtocolVersion = protocol.TypeAct, protocol.Version
	act.Tick, act.AgentID = c.tick, c.agentID
	c.mu.Unlock()
	return c.write(ctx, act)
}

func (c *Client) await(id string) chan protocol.Event {
	ch := make(chan protocol.Event, 2)
	c.mu.Lock()
	c.waiters[id] = ch
	c.mu.Unlock()
	return ch
}

func (c *Client) forget(ch chan protocol.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, w := range c.waiters {
		if w == ch {
			delete(c.waiters, k)
		}
	}
}

// task sends a multi-tick task and waits for it to finish. Cancelling ctx
// cancels the task server-side.
func (c *Client) task(ctx context.Context, op, item string, t protocol.TaskReq) error {
	t.ID = c.nextID("K")
	ch := c.await(t.ID)
	defer c.forget(ch)
	if err := c.act(ctx, protocol.ActMsg{Tasks: []protocol.TaskReq{t}}); err != nil {
		return failure.Wrap(failure.Environment, op, item, err)
	}
	taskID := ""
	for {
		select {
		case ev := <-ch:
			switch ev.Type() {
			case protocol.EventActionResult:
				if !ev.Bool("ok") {
					return c.rejected(op, item, ev)
				}
				if taskID = ev.Str("task_id"); taskID == "" {
					return nil
				}
			case protocol.EventTaskDone:
				return nil
			case protocol.EventTaskFail:
				return c.rejected(op, item, ev)
			}
		case <-c.done:
			return failure.Wrap(failure.Environment, op, item, c.closedErr())
		case <-ctx.Done():
			if taskID != "" {
				cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.WriteTimeout)
				if err := c.act(cctx, protocol.ActMsg{Cancel: []string{taskID}}); err != nil {
					c.log.Warn("cancel task", zap.String("task_id", taskID), zap.Error(err))
				}
				cancel()
			}
			return ctx.Err()
		}
	}
}

// instant sends a single-tick action and waits for its ACTION_RESULT.
func (c *Client) instant(ctx context.Context, op, item string, in protocol.InstantReq) error {
	in.ID = c.nextID("I")
	ch := c.await(in.ID)
	defer c.forget(ch)
	if err := c.act(ctx, protocol.ActMsg{Instants: []protocol.InstantReq{in}}); err != nil {
		return failure.Wrap(failure.Environment, op, item, err)
	}
	select {
	case ev := <-ch:
		if !ev.Bool("ok") {
			return c.rejected(op, item, ev)
		}
		return nil
	case <-c.done:
		return failure.Wrap(failure.Environment, op, item, c.closedErr())
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Env wires the client into every collaborator the server can answer.
// Records, partners and claims live elsewhere.
func (c *Client) Env(records world.ContainerRecords, partners world.TradePartners, claims world.Claims) world.Env {
	return world.Env{
		World: c, Navigator: c, Interactor: c, Chat: c,
		Containers: records, Traders: partners, Claims: claims,
	}
}

func (c *Client) rejected(op, item string, ev protocol.Event) error {
	code := ev.Str("code")
	if !protocol.IsKnownCode(code) {
		c.log.Warn("unknown error code", zap.String("op", op), zap.String("code", code))
	}
	return protocol.Failure(op, item, code, ev.Str("message"))
}
