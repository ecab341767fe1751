package repo

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/gitsink/pkg/object"
	"go.uber.org/zap"
)

const (
	refsPrefix   = "refs"
	symrefPrefix = "ref: "
	peeledSuffix = "^{}"

	maxSymrefDepth = 5
)

// RefEntry is one advertised (name, hash) pair.
type RefEntry struct {
	Name string
	Hash object.Hash
}

// Advertisement is a remote's ref listing in the order it was received.
// Names outside refs/ (HEAD and similar) are markers naming a symbolic
// ref whose target shares their hash.
type Advertisement []RefEntry

// RefWrite is one file to write under the git directory.
type RefWrite struct {
	Path     string // slash-separated, relative to the git directory
	Content  string
	Symbolic bool
}

// RefPlan is the outcome of pairing an advertisement.
type RefPlan struct {
	Writes []RefWrite
	// Unmatched holds markers whose hash matched no later canonical ref.
	// They produce no write.
	Unmatched []RefEntry
}

// Symrefs maps a marker such as HEAD to the ref the remote says it points
// at (the symref=HEAD:refs/heads/main capability).
type Symrefs map[string]string

// Plan pairs markers with canonical refs. Entries are visited in order:
// a marker is held until a canonical ref with the same hash follows it,
// at which point the marker becomes a symref to that ref. Every
// canonical ref is written as a direct hash pointer. Peeled tag entries
// ("refs/tags/v1^{}") describe the tag's target and are skipped.
func Plan(adv Advertisement) (*RefPlan, error) {
	return PlanWithSymrefs(adv, nil)
}

// PlanWithSymrefs is Plan, except that a marker named in hints waits for
// its hinted ref instead of taking the first ref with the same hash. If the
// hinted ref never arrives the first same-hash ref is used.
func PlanWithSymrefs(adv Advertisement, hints Symrefs) (*RefPlan, error) {
	plan := &RefPlan{}
	pending := make(map[object.Hash]string)
	fallback := make(map[string]string)
	for _, ref := range adv {
		if err := validRefPath(ref.Name); err != nil {
			return nil, err
		}
		if _, err := object.ParseHash(string(ref.Hash)); err != nil {
			return nil, fmt.Errorf("plan refs: %s: %w", ref.Name, err)
		}
		if strings.HasSuffix(ref.Name, peeledSuffix) {
			continue
		}
		if !strings.HasPrefix(ref.Name, refsPrefix) {
			pending[ref.Hash] = ref.Name
			continue
		}
		if marker, ok := pending[ref.Hash]; ok {
			if target, hinted := hints[marker]; !hinted || target == ref.Name {
				plan.Writes = append(plan.Writes, symrefWrite(marker, ref.Name))
				delete(pending, ref.Hash)
				delete(fallback, marker)
			} else if _, seen := fallback[marker]; !seen {
				fallback[marker] = ref.Name
			}
		}
		plan.Writes = append(plan.Writes, RefWrite{
			Path:    ref.Name,
			Content: string(ref.Hash) + "\n",
		})
	}

	var late []RefWrite
	for h, name := range pending {
		if target, ok := fallback[name]; ok {
			late = append(late, symrefWrite(name, target))
			continue
		}
		plan.Unmatched = append(plan.Unmatched, RefEntry{Name: name, Hash: h})
	}
	sort.Slice(late, func(i, j int) bool { return late[i].Path < late[j].Path })
	plan.Writes = append(plan.Writes, late...)
	sort.Slice(plan.Unmatched, func(i, j int) bool {
		return plan.Unmatched[i].Name < plan.Unmatched[j].Name
	})
	return plan, nil
}

func symrefWrite(marker, target string) RefWrite {
	return RefWrite{Path: marker, Content: symrefContent(target), Symbolic: true}
}

// ApplyRefs writes every file in plan.
func (r *Repo) ApplyRefs(plan *RefPlan) error {
	for _, w := range plan.Writes {
		p := filepath.Join(r.GitDir, filepath.FromSlash(w.Path))
		if err := object.WriteFileAtomic(p, []byte(w.Content), 0o644); err != nil {
			return fmt.Errorf("write ref %q: %w", w.Path, err)
		}
	}
	return nil
}

// Reconcile plans and applies ref writes for adv, honoring hints when
// non-nil. Unmatched markers are logged and otherwise ignored.
func (r *Repo) Reconcile(adv Advertisement, hints Symrefs) (*RefPlan, error) {
	plan, err := PlanWithSymrefs(adv, hints)
	if err != nil {
		return nil, err
	}
	for _, m := range plan.Unmatched {
		r.logger.Warn("advertised symbolic ref has no matching ref",
			zap.String("name", m.Name),
			zap.String("hash", string(m.Hash)),
		)
	}
	if err := r.ApplyRefs(plan); err != nil {
		return nil, err
	}
	r.logger.Debug("refs reconciled", zap.Int("writes", len(plan.Writes)))
	return plan, nil
}

// Head reads HEAD. For a symbolic HEAD it returns the target ref name and
// true; otherwise the detached hash and false.
func (r *Repo) Head() (string, bool, error) {
	data, err := os.ReadFile(filepath.Join(r.GitDir, "HEAD"))
	if err != nil {
		return "", false, fmt.Errorf("head: %w", err)
	}
	content := strings.TrimRight(string(data), "\n")
	if target, ok := strings.CutPrefix(content, symrefPrefix); ok {
		return target, true, nil
	}
	return content, false, nil
}

// ResolveRef resolves a ref name or hash to an object hash.
//
// Resolution order:
//  1. A full 40-hex hash resolves to itself.
//  2. HEAD and names under refs/ are read directly, following symrefs.
//  3. Otherwise refs/heads/<name>, then refs/tags/<name>.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	if h, err := object.ParseHash(name); err == nil {
		return h, nil
	}
	if name == "HEAD" || strings.HasPrefix(name, refsPrefix+"/") {
		return r.readRef(name, 0)
	}
	for _, candidate := range []string{"refs/heads/" + name, "refs/tags/" + name} {
		if h, err := r.readRef(candidate, 0); err == nil {
			return h, nil
		}
	}
	return "", fmt.Errorf("resolve ref %q: not found", name)
}

func (r *Repo) readRef(name string, depth int) (object.Hash, error) {
	if depth > maxSymrefDepth {
		return "", fmt.Errorf("resolve ref %q: symbolic ref loop", name)
	}
	if err := validRefPath(name); err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(r.GitDir, filepath.FromSlash(name)))
	if err != nil {
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}
	content := strings.TrimRight(string(data), "\n")
	if target, ok := strings.CutPrefix(content, symrefPrefix); ok {
		return r.readRef(target, depth+1)
	}
	h, err := object.ParseHash(content)
	if err != nil {
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}
	return h, nil
}

// ListRefs lists direct refs under refs/ sorted by name. Names are full
// ref paths, e.g. "refs/heads/main".
func (r *Repo) ListRefs() ([]RefEntry, error) {
	root := filepath.Join(r.GitDir, refsPrefix)
	var refs []RefEntry
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(r.GitDir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		h, err := r.readRef(name, 0)
		if err != nil {
			return err
		}
		refs = append(refs, RefEntry{Name: name, Hash: h})
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

func symrefContent(target string) string {
	return symrefPrefix + target + "\n"
}

// validRefPath rejects names that would resolve outside the git directory.
func validRefPath(name string) error {
	if name == "" {
		return fmt.Errorf("invalid ref name: empty")
	}
	if strings.ContainsAny(name, "\x00\\") || path.IsAbs(name) || filepath.IsAbs(name) {
		return fmt.Errorf("invalid ref name %q", name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid ref name %q", name)
		}
	}
	return nil
}
