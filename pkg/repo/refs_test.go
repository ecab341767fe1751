package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/odvcencio/gitsink/pkg/object"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	hashA = object.Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	hashB = object.Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	hashC = object.Hash("cccccccccccccccccccccccccccccccccccccccc")
)

func TestPlan_MarkerPairsWithCanonicalRef(t *testing.T) {
	plan, err := Plan(Advertisement{
		{Name: "HEAD", Hash: hashA},
		{Name: "refs/heads/dev", Hash: hashB},
		{Name: "refs/heads/main", Hash: hashA},
		{Name: "refs/tags/v1", Hash: hashC},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []RefWrite{
		{Path: "refs/heads/dev", Content: string(hashB) + "\n"},
		{Path: "HEAD", Content: "ref: refs/heads/main\n", Symbolic: true},
		{Path: "refs/heads/main", Content: string(hashA) + "\n"},
		{Path: "refs/tags/v1", Content: string(hashC) + "\n"},
	}
	if diff := cmp.Diff(want, plan.Writes); diff != "" {
		t.Fatalf("writes mismatch (-want +got):\n%s", diff)
	}
	if len(plan.Unmatched) != 0 {
		t.Fatalf("Unmatched = %v, want none", plan.Unmatched)
	}
}

func TestPlan_MarkerPairsOnlyOnce(t *testing.T) {
	plan, err := Plan(Advertisement{
		{Name: "HEAD", Hash: hashA},
		{Name: "refs/heads/main", Hash: hashA},
		{Name: "refs/heads/mirror", Hash: hashA},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	symrefs := 0
	for _, w := range plan.Writes {
		if w.Symbolic {
			symrefs++
			if w.Content != "ref: refs/heads/main\n" {
				t.Errorf("symref content = %q", w.Content)
			}
		}
	}
	if symrefs != 1 {
		t.Fatalf("symref writes = %d, want 1", symrefs)
	}
	if len(plan.Writes) != 3 {
		t.Fatalf("writes = %d, want 3", len(plan.Writes))
	}
}

func TestPlan_NoMarkers(t *testing.T) {
	plan, err := Plan(Advertisement{
		{Name: "refs/heads/main", Hash: hashA},
		{Name: "refs/heads/dev", Hash: hashB},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for _, w := range plan.Writes {
		if w.Symbolic {
			t.Fatalf("unexpected symref write %+v", w)
		}
	}
	if len(plan.Writes) != 2 {
		t.Fatalf("writes = %d, want 2", len(plan.Writes))
	}
}

func TestPlan_UnmatchedMarkerDropped(t *testing.T) {
	plan, err := Plan(Advertisement{
		{Name: "refs/heads/main", Hash: hashA},
		{Name: "HEAD", Hash: hashA}, // marker after its ref never pairs
		{Name: "FETCH_HEAD", Hash: hashC},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Writes) != 1 || plan.Writes[0].Path != "refs/heads/main" {
		t.Fatalf("writes = %+v", plan.Writes)
	}
	want := []RefEntry{{Name: "FETCH_HEAD", Hash: hashC}, {Name: "HEAD", Hash: hashA}}
	if diff := cmp.Diff(want, plan.Unmatched); diff != "" {
		t.Fatalf("unmatched (-want +got):\n%s", diff)
	}
}

func TestPlan_SkipsPeeledTags(t *testing.T) {
	plan, err := Plan(Advertisement{
		{Name: "refs/tags/v1", Hash: hashB},
		{Name: "refs/tags/v1^{}", Hash: hashA},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []RefWrite{{Path: "refs/tags/v1", Content: string(hashB) + "\n"}}
	if diff := cmp.Diff(want, plan.Writes); diff != "" {
		t.Fatalf("writes (-want +got):\n%s", diff)
	}
}

func TestPlan_RejectsEscapingNames(t *testing.T) {
	for _, name := range []string{"../HEAD", "refs/../../x", "/etc/passwd", "refs//heads", ""} {
		if _, err := Plan(Advertisement{{Name: name, Hash: hashA}}); err == nil {
			t.Errorf("Plan(%q) should fail", name)
		}
	}
	if _, err := Plan(Advertisement{{Name: "refs/heads/main", Hash: "nothex"}}); err == nil {
		t.Error("Plan with invalid hash should fail")
	}
}

func TestPlanWithSymrefs(t *testing.T) {
	adv := Advertisement{
		{Name: "HEAD", Hash: hashA},
		{Name: "refs/heads/alpha", Hash: hashA},
		{Name: "refs/heads/main", Hash: hashA},
	}
	tests := []struct {
		name  string
		hints Symrefs
		want  string
	}{
		{name: "no hint takes first match", want: "ref: refs/heads/alpha\n"},
		{name: "hint picks later ref", hints: Symrefs{"HEAD": "refs/heads/main"}, want: "ref: refs/heads/main\n"},
		{name: "missing hinted ref falls back", hints: Symrefs{"HEAD": "refs/heads/gone"}, want: "ref: refs/heads/alpha\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanWithSymrefs(adv, tt.hints)
			if err != nil {
				t.Fatalf("PlanWithSymrefs: %v", err)
			}
			var heads []string
			for _, w := range plan.Writes {
				if w.Symbolic {
					heads = append(heads, w.Content)
				}
			}
			if diff := cmp.Diff([]string{tt.want}, heads); diff != "" {
				t.Fatalf("symref writes (-want +got):\n%s", diff)
			}
			if len(plan.Unmatched) != 0 {
				t.Fatalf("Unmatched = %v", plan.Unmatched)
			}
		})
	}
}

func TestReconcile_WritesFiles(t *testing.T) {
	gitDir := filepath.Join(t.TempDir(), "demo.git")
	r, err := Init(gitDir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Reconcile(Advertisement{
		{Name: "HEAD", Hash: hashA},
		{Name: "refs/heads/main", Hash: hashA},
		{Name: "refs/tags/release/v1", Hash: hashB},
	}, nil); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if got := readFile(t, filepath.Join(gitDir, "HEAD")); got != "ref: refs/heads/main\n" {
		t.Errorf("HEAD = %q", got)
	}
	if got := readFile(t, filepath.Join(gitDir, "refs", "heads", "main")); got != string(hashA)+"\n" {
		t.Errorf("refs/heads/main = %q", got)
	}
	if got := readFile(t, filepath.Join(gitDir, "refs", "tags", "release", "v1")); got != string(hashB)+"\n" {
		t.Errorf("refs/tags/release/v1 = %q", got)
	}

	h, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD): %v", err)
	}
	if h != hashA {
		t.Errorf("HEAD resolves to %s, want %s", h, hashA)
	}
	if h, err := r.ResolveRef("release/v1"); err != nil || h != hashB {
		t.Errorf("ResolveRef(release/v1) = %s, %v", h, err)
	}
	if h, err := r.ResolveRef(string(hashC)); err != nil || h != hashC {
		t.Errorf("ResolveRef(hash) = %s, %v", h, err)
	}
	if _, err := r.ResolveRef("missing"); err == nil {
		t.Error("ResolveRef(missing) should fail")
	}

	refs, err := r.ListRefs()
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	want := []RefEntry{
		{Name: "refs/heads/main", Hash: hashA},
		{Name: "refs/tags/release/v1", Hash: hashB},
	}
	if diff := cmp.Diff(want, refs); diff != "" {
		t.Fatalf("ListRefs (-want +got):\n%s", diff)
	}
}

func TestReconcile_OverwritesExistingRef(t *testing.T) {
	gitDir := filepath.Join(t.TempDir(), "demo.git")
	r, err := Init(gitDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range []object.Hash{hashA, hashB} {
		if _, err := r.Reconcile(Advertisement{{Name: "refs/heads/main", Hash: h}}, nil); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
	}
	if got := readFile(t, filepath.Join(gitDir, "refs", "heads", "main")); got != string(hashB)+"\n" {
		t.Errorf("refs/heads/main = %q", got)
	}
}

func TestResolveRef_SymrefLoop(t *testing.T) {
	gitDir := filepath.Join(t.TempDir(), "demo.git")
	r, err := Init(gitDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(gitDir, "refs", "heads", "loop"), []byte("ref: refs/heads/loop\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ResolveRef("refs/heads/loop"); err == nil {
		t.Fatal("ResolveRef on symref loop should fail")
	}
}

func TestReconcile_LogsUnmatchedMarkers(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r, err := Init(filepath.Join(t.TempDir(), "demo.git"), WithLogger(zap.New(core)))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	plan, err := r.Reconcile(Advertisement{
		{Name: "HEAD", Hash: hashA},
		{Name: "refs/heads/main", Hash: hashB},
	}, nil)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(plan.Unmatched) != 1 {
		t.Fatalf("unmatched = %v", plan.Unmatched)
	}
	entries := logs.FilterField(zap.String("name", "HEAD")).All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("warn entries = %+v", logs.All())
	}
	// HEAD keeps the default written by Init.
	if got := readFile(t, filepath.Join(r.GitDir, "HEAD")); got != "ref: "+DefaultHead+"\n" {
		t.Fatalf("HEAD = %q", got)
	}
}
