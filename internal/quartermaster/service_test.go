package quartermaster

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"voxelcraft.ai/quartermaster/internal/claims"
	"voxelcraft.ai/quartermaster/internal/executor"
	"voxelcraft.ai/quartermaster/internal/failure"
	"voxelcraft.ai/quartermaster/internal/knowledge"
	"voxelcraft.ai/quartermaster/internal/memory"
	"voxelcraft.ai/quartermaster/internal/persistence/journal"
	"voxelcraft.ai/quartermaster/internal/planner"
	"voxelcraft.ai/quartermaster/internal/telemetry"
	"voxelcraft.ai/quartermaster/internal/world"
	"voxelcraft.ai/quartermaster/internal/world/memworld"
)

type memJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (j *memJournal) Record(e journal.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func loadKB(t *testing.T) *knowledge.Base {
	t.Helper()
	kb, err := knowledge.Load(filepath.Join("..", "..", "configs", "knowledge"))
	if err != nil {
		t.Fatalf("load knowledge: %v", err)
	}
	return kb
}

type fixture struct {
	w   *memworld.World
	reg *claims.Memory
	mem *memory.Cache
	j   *memJournal
	m   *telemetry.Metrics
	svc *Service
}

func newFixture(t *testing.T, snap memworld.Snapshot) fixture {
	t.Helper()
	if snap.Self.ID == "" {
		snap.Self = world.Self{ID: "me", Pos: world.Vec3{Y: 64}, Dimension: "OVERWORLD"}
	}
	kb := loadKB(t)
	w := memworld.New(snap, kb)
	reg := claims.NewMemory()
	mem := memory.New(nil, nil)
	j := &memJournal{}
	m := telemetry.NewMetrics()
	caps := planner.AllCapabilities()
	caps.RequestAnyone = false
	cfg := Config{Capabilities: caps, Planner: planner.DefaultConfig(), Executor: executor.DefaultConfig()}
	svc := New(kb, w.Env(reg), mem, cfg, nil, WithJournal(j), WithMetrics(m))
	return fixture{w: w, reg: reg, mem: mem, j: j, m: m, svc: svc}
}

func TestPlan_RejectsUnknownItemsWithSuggestion(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{})
	_, err := f.svc.Plan(context.Background(), "STIK", 1)
	if failure.KindOf(err) != failure.Knowledge || !strings.Contains(err.Error(), "did you mean STICK") {
		t.Fatalf("err=%v", err)
	}
	if _, err := f.svc.Plan(context.Background(), "#SWORDS", 1); failure.KindOf(err) != failure.Knowledge {
		t.Fatalf("unknown tag err=%v", err)
	}
	if _, err := f.svc.Plan(context.Background(), "STICK", 0); failure.KindOf(err) != failure.Knowledge {
		t.Fatalf("zero count err=%v", err)
	}
	if len(f.j.entries) != 0 {
		t.Fatalf("rejected requests should not be journaled: %+v", f.j.entries)
	}
}

func TestAcquire_CraftsFromLogs(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{Inventory: map[string]int{"OAK_LOG": 1}})
	got, err := f.svc.Acquire(context.Background(), "STICK", 4)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got != 4 || f.w.Count("STICK") != 4 || f.w.Count("OAK_LOG") != 0 {
		t.Fatalf("gained %d; STICK=%d OAK_LOG=%d", got, f.w.Count("STICK"), f.w.Count("OAK_LOG"))
	}

	if len(f.j.entries) != 2 {
		t.Fatalf("journal entries=%d want 2", len(f.j.entries))
	}
	pl, ex := f.j.entries[0], f.j.entries[1]
	if pl.Event != "plan" || ex.Event != "execute" || pl.PlanID == "" || pl.PlanID != ex.PlanID {
		t.Fatalf("journal: %+v / %+v", pl, ex)
	}
	if ex.Completed != len(pl.Steps) || ex.Result != 4 || ex.Error != "" {
		t.Fatalf("execute entry: %+v", ex)
	}
	if f.mem.Weight("STICK") == 0 || f.mem.Weight("OAK_PLANK") == 0 {
		t.Fatalf("success memory not updated: %+v", f.mem.Snapshot())
	}

	rec := httptest.NewRecorder()
	f.m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`quartermaster_plans_total{outcome="sufficient"} 1`,
		`quartermaster_exec_steps_total{kind="craft",outcome="ok"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestPlan_InsufficientReturnsPartialPlan(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{Inventory: map[string]int{"IRON_INGOT": 1}})
	pl, err := f.svc.Plan(context.Background(), "IRON_INGOT", 5)
	var ie *failure.InsufficientError
	if !errors.As(err, &ie) || ie.Got != 1 || ie.Want != 5 {
		t.Fatalf("err=%v", err)
	}
	if !errors.Is(err, failure.ErrKnowledge) {
		t.Fatalf("insufficient should count as a knowledge failure")
	}
	if pl == nil || pl.Plan.Result() != 1 {
		t.Fatalf("partial plan missing: %+v", pl)
	}
	if e := f.j.entries[0]; e.Error == "" || e.ErrorKind != "knowledge" {
		t.Fatalf("journal entry: %+v", e)
	}

	got, err := f.svc.Acquire(context.Background(), "IRON_INGOT", 5)
	if got != 0 || !errors.As(err, &ie) {
		t.Fatalf("Acquire=%d,%v", got, err)
	}
	if f.w.Count("IRON_INGOT") != 1 {
		t.Fatalf("insufficient plan must not execute")
	}
}

func TestExecute_JournalsFailingStep(t *testing.T) {
	chest := world.ContainerRecord{Type: "CHEST", Pos: world.Vec3{X: 3, Y: 64}, Stock: map[string]int{"COAL": 5}}
	f := newFixture(t, memworld.Snapshot{Containers: []world.ContainerRecord{chest}})
	pl, err := f.svc.Plan(context.Background(), "COAL", 3)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	f.w.SetLiveStock(world.ContainerID("CHEST", chest.Pos), "COAL", 1)

	got, err := f.svc.Execute(context.Background(), pl)
	if failure.KindOf(err) != failure.Environment || got != 1 {
		t.Fatalf("Execute=%d,%v", got, err)
	}
	e := f.j.entries[len(f.j.entries)-1]
	want := journal.Entry{
		PlanID: pl.ID, Event: "execute", Item: "COAL", Want: 3, Result: 1,
		Completed: 0, Error: err.Error(), ErrorKind: "environment",
	}
	e.At = time.Time{}
	if diff := cmp.Diff(want, e); diff != "" {
		t.Fatalf("journal entry (-want +got):\n%s", diff)
	}
}

func TestAdvertise_PublishesSpareStock(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{Inventory: map[string]int{"COAL": 5, "STICK": 2}})
	if err := f.svc.Advertise(context.Background(), map[string]int{"COAL": 2, "STICK": 2}); err != nil {
		t.Fatalf("Advertise: %v", err)
	}
	spare, _ := f.reg.Spare(context.Background(), "COAL")
	if diff := cmp.Diff([]world.PeerSpare{{AgentID: "me", Count: 3}}, spare); diff != "" {
		t.Fatalf("spare (-want +got):\n%s", diff)
	}
	if spare, _ := f.reg.Spare(context.Background(), "STICK"); len(spare) != 0 {
		t.Fatalf("kept stock advertised: %+v", spare)
	}
}

func TestJournalFilesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	plans := journal.NewPlans(dir)
	kb := loadKB(t)
	w := memworld.New(memworld.Snapshot{Self: world.Self{ID: "me"}, Inventory: map[string]int{"COAL": 2}}, kb)
	svc := New(kb, w.Env(claims.NewMemory()), nil, Config{
		Capabilities: planner.AllCapabilities(), Planner: planner.DefaultConfig(), Executor: executor.DefaultConfig(),
	}, nil, WithJournal(plans))
	if _, err := svc.Acquire(context.Background(), "COAL", 2); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := plans.Close(); err != nil {
		t.Fatal(err)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "plans", "plans-*.jsonl.zst"))
	if len(files) != 1 {
		t.Fatalf("journal files=%v", files)
	}
	entries, err := journal.ReadFile(files[0])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(entries) != 2 || entries[0].Steps[0] == "" {
		t.Fatalf("entries=%+v", entries)
	}
}
