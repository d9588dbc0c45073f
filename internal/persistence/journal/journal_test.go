package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestWriterRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "plans")
	now := time.Date(2024, 5, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	first := Entry{PlanID: "p1", At: now, Event: "plan", Item: "STICK", Want: 4, Result: 4, Steps: []string{"craft 4 STICK via stick x1"}}
	if err := w.Write(first); err != nil {
		t.Fatalf("Write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	second := Entry{PlanID: "p1", At: now, Event: "execute", Item: "STICK", Want: 4, Result: 3, Error: "short", ErrorKind: "environment"}
	if err := w.Write(second); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got10, err := ReadFile(filepath.Join(dir, "plans-2024-05-01-10.jsonl.zst"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if diff := cmp.Diff([]Entry{first}, got10); diff != "" {
		t.Fatalf("hour 10 (-want +got):\n%s", diff)
	}
	got11, err := ReadFile(filepath.Join(dir, "plans-2024-05-01-11.jsonl.zst"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if diff := cmp.Diff([]Entry{second}, got11); diff != "" {
		t.Fatalf("hour 11 (-want +got):\n%s", diff)
	}
}

func TestPlansDir(t *testing.T) {
	dir := t.TempDir()
	p := NewPlans(dir)
	if err := p.Record(Entry{PlanID: "x", Item: "COAL", Want: 1}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plans", "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	files, err := ListFiles(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("files: %v %v", files, err)
	}
	if st, err := os.Stat(files[0]); err != nil || st.Size() == 0 {
		t.Fatalf("empty journal: %v", err)
	}
}
