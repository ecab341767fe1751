package main

import (
	"fmt"

	"github.com/odvcencio/gitsink/pkg/object"
	"github.com/spf13/cobra"
)

func newCatFileCmd(g *globalFlags) *cobra.Command {
	var showType, showSize bool
	cmd := &cobra.Command{
		Use:   "cat-file [-t | -s] <object>",
		Short: "Print an object's content, type or size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if showType && showSize {
				return fmt.Errorf("cat-file: -t and -s are mutually exclusive")
			}
			r, err := g.openRepo(cmd)
			if err != nil {
				return err
			}
			h, err := r.ResolveRef(args[0])
			if err != nil {
				return err
			}
			objType, data, err := r.Store.Read(h)
			if err != nil {
				return fmt.Errorf("cat-file: %w", err)
			}

			out := cmd.OutOrStdout()
			switch {
			case showType:
				fmt.Fprintln(out, objType)
			case showSize:
				fmt.Fprintln(out, len(data))
			case objType == object.TypeTree:
				tree, err := object.DecodeTree(data)
				if err != nil {
					return fmt.Errorf("cat-file: %w", err)
				}
				printTree(out, tree.Entries, "")
			default:
				_, err = out.Write(data)
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&showType, "type", "t", false, "print the object type")
	cmd.Flags().BoolVarP(&showSize, "size", "s", false, "print the object size")
	return cmd
}
