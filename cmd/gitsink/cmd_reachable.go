package main

import (
	"fmt"
	"sort"

	"github.com/odvcencio/gitsink/pkg/object"
	"github.com/spf13/cobra"
)

func newReachableCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reachable [<rev>...]",
		Short: "List stored objects reachable from revisions (default: all refs)",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.openRepo(cmd)
			if err != nil {
				return err
			}
			var roots []object.Hash
			if len(args) == 0 {
				refs, err := r.ListRefs()
				if err != nil {
					return err
				}
				for _, ref := range refs {
					roots = append(roots, ref.Hash)
				}
			}
			for _, rev := range args {
				h, err := r.ResolveRef(rev)
				if err != nil {
					return err
				}
				roots = append(roots, h)
			}

			set, err := r.Store.ReachableSet(roots)
			if err != nil {
				return fmt.Errorf("reachable: %w", err)
			}
			hashes := make([]object.Hash, 0, len(set))
			for h := range set {
				hashes = append(hashes, h)
			}
			sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
			out := cmd.OutOrStdout()
			for _, h := range hashes {
				fmt.Fprintf(out, "%s %s\n", h, set[h])
			}
			return nil
		},
	}
}
