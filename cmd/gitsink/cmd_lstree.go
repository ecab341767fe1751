package main

import (
	"fmt"
	"io"
	"path"

	"github.com/odvcencio/gitsink/pkg/object"
	"github.com/odvcencio/gitsink/pkg/repo"
	"github.com/spf13/cobra"
)

func newLsTreeCmd(g *globalFlags) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "ls-tree [-r] <tree-ish>",
		Short: "List the entries of a tree, commit or tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.openRepo(cmd)
			if err != nil {
				return err
			}
			h, err := r.ResolveRef(args[0])
			if err != nil {
				return err
			}
			tree, err := peelToTree(r, h)
			if err != nil {
				return fmt.Errorf("ls-tree: %w", err)
			}
			if !recursive {
				printTree(cmd.OutOrStdout(), tree.Entries, "")
				return nil
			}
			return walkTree(cmd.OutOrStdout(), r, tree, "")
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "recurse into subtrees")
	return cmd
}

// peelToTree follows tags and commits down to a tree.
func peelToTree(r *repo.Repo, h object.Hash) (*object.Tree, error) {
	for depth := 0; depth < 10; depth++ {
		parsed, err := r.Store.ReadParsed(h)
		if err != nil {
			return nil, err
		}
		switch o := parsed.(type) {
		case *object.Tree:
			return o, nil
		case *object.Commit:
			h = o.TreeHash()
		case *object.Tag:
			h = o.Target()
		default:
			return nil, fmt.Errorf("%s is a %s, not a tree-ish", h, parsed.Type())
		}
		if h == "" {
			return nil, fmt.Errorf("%s has no target", parsed.ObjectHash())
		}
	}
	return nil, fmt.Errorf("%s: too many levels of indirection", h)
}

func walkTree(w io.Writer, r *repo.Repo, tree *object.Tree, prefix string) error {
	for _, e := range tree.Entries {
		if e.Mode != object.ModeTree {
			printTree(w, []object.TreeEntry{e}, prefix)
			continue
		}
		sub, err := peelToTree(r, e.Hash)
		if err != nil {
			return fmt.Errorf("ls-tree %s: %w", path.Join(prefix, e.Path), err)
		}
		if err := walkTree(w, r, sub, path.Join(prefix, e.Path)); err != nil {
			return err
		}
	}
	return nil
}

func printTree(w io.Writer, entries []object.TreeEntry, prefix string) {
	for _, e := range entries {
		fmt.Fprintf(w, "%06o %s %s\t%s\n", e.Mode, entryType(e.Mode), e.Hash, path.Join(prefix, e.Path))
	}
}

func entryType(mode uint32) object.ObjectType {
	switch mode {
	case object.ModeTree:
		return object.TypeTree
	case object.ModeGitlink:
		return object.TypeCommit
	default:
		return object.TypeBlob
	}
}
