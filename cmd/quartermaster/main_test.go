package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--knowledge", "../../configs/knowledge"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPlanCommand(t *testing.T) {
	out, err := execute(t, "plan", "--world", "../../configs/worlds/sample.yaml", "WOOD_PICKAXE", "1")
	if err != nil {
		t.Fatalf("plan: %v\n%s", err, out)
	}
	for _, want := range []string{"result 1/1", "WOOD_PICKAXE"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPlanCommandExecutes(t *testing.T) {
	out, err := execute(t, "plan", "--execute", "--world", "../../configs/worlds/sample.yaml", "STICK", "4")
	if err != nil {
		t.Fatalf("plan --execute: %v\n%s", err, out)
	}
	if !strings.Contains(out, "gained 4 STICK") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestPlanCommandErrors(t *testing.T) {
	if _, err := execute(t, "plan", "--world", "../../configs/worlds/sample.yaml", "STIK", "1"); err == nil || !strings.Contains(err.Error(), "did you mean STICK") {
		t.Fatalf("unknown item err=%v", err)
	}
	if _, err := execute(t, "plan", "--world", "../../configs/worlds/sample.yaml", "STICK", "zero"); err == nil {
		t.Fatalf("expected bad count to fail")
	}
}

func TestKBCommands(t *testing.T) {
	out, err := execute(t, "kb", "check")
	if err != nil || !strings.Contains(out, "digest ") {
		t.Fatalf("kb check: %v\n%s", err, out)
	}
	out, err = execute(t, "kb", "recipes", "STICK")
	if err != nil || !strings.Contains(out, "stick (craft) 2 #PLANKS -> 4 STICK") {
		t.Fatalf("kb recipes: %v\n%s", err, out)
	}
}

func TestJournalCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "plan", "--execute", "--journal", dir, "--world", "../../configs/worlds/sample.yaml", "STICK", "4")
	if err != nil {
		t.Fatalf("plan: %v\n%s", err, out)
	}
	out, err = execute(t, "journal", "--dir", dir, "--item", "STICK", "--steps")
	if err != nil {
		t.Fatalf("journal: %v\n%s", err, out)
	}
	for _, want := range []string{"plan    ", "execute ", "STICK 4/4", "2 entries in "} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRecordsImport(t *testing.T) {
	db := filepath.Join(t.TempDir(), "records.db")
	out, err := execute(t, "records", "import", "--db", db, "../../configs/worlds/sample.yaml")
	if err != nil || !strings.Contains(out, "imported 1 containers, 1 trade partners") {
		t.Fatalf("import: %v\n%s", err, out)
	}
	out, err = execute(t, "records", "list", "--db", db)
	if err != nil {
		t.Fatalf("list: %v\n%s", err, out)
	}
	for _, want := range []string{"container CHEST@3,64,-2 OVERWORLD", "partner V1 Smith offers=1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
