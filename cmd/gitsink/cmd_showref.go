package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newShowRefCmd(g *globalFlags) *cobra.Command {
	var withHead bool
	cmd := &cobra.Command{
		Use:   "show-ref",
		Short: "List refs with their hashes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.openRepo(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if withHead {
				if h, err := r.ResolveRef("HEAD"); err == nil {
					fmt.Fprintf(out, "%s HEAD\n", h)
				}
			}
			refs, err := r.ListRefs()
			if err != nil {
				return err
			}
			for _, ref := range refs {
				fmt.Fprintf(out, "%s %s\n", ref.Hash, ref.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withHead, "head", false, "include HEAD when it resolves")
	return cmd
}
