package object

import (
	"fmt"
	"sort"
	"strings"
)

// ReachableSet returns all object hashes reachable from roots by following
// object references, keyed to their type. Missing objects are skipped, as
// are gitlink (submodule) entries, which name commits in another
// repository.
func (s *Store) ReachableSet(roots []Hash) (map[Hash]ObjectType, error) {
	roots = uniqueNormalizedHashes(roots)
	out := make(map[Hash]ObjectType, len(roots))
	if len(roots) == 0 {
		return out, nil
	}

	stack := make([]Hash, 0, len(roots))
	stack = append(stack, roots...)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == "" {
			continue
		}
		if _, ok := out[h]; ok {
			continue
		}
		if !s.Has(h) {
			continue
		}

		parsed, err := s.ReadParsed(h)
		if err != nil {
			return nil, fmt.Errorf("reachable set read %s: %w", h, err)
		}
		out[h] = parsed.Type()
		stack = append(stack, referencedHashes(parsed)...)
	}

	return out, nil
}

func referencedHashes(p Parsed) []Hash {
	switch obj := p.(type) {
	case *Blob:
		return nil
	case *Tag:
		return []Hash{obj.Target()}
	case *Commit:
		refs := make([]Hash, 0, 1+len(obj.Parents()))
		refs = append(refs, obj.TreeHash())
		refs = append(refs, obj.Parents()...)
		return refs
	case *Tree:
		refs := make([]Hash, 0, len(obj.Entries))
		for _, e := range obj.Entries {
			if e.Mode == ModeGitlink {
				continue
			}
			refs = append(refs, e.Hash)
		}
		return refs
	default:
		return nil
	}
}

func uniqueNormalizedHashes(in []Hash) []Hash {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[Hash]struct{}, len(in))
	out := make([]Hash, 0, len(in))
	for _, h := range in {
		h = Hash(strings.TrimSpace(string(h)))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
