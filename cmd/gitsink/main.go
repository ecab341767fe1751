package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "gitsink",
		Short:         "Clone git repositories into bare loose-object repositories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	g.register(root)

	root.AddCommand(newVersionCmd())
	root.AddCommand(newCloneCmd(g))
	root.AddCommand(newCatFileCmd(g))
	root.AddCommand(newLsTreeCmd(g))
	root.AddCommand(newShowRefCmd(g))
	root.AddCommand(newReachableCmd(g))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gitsink %s\n", version)
		},
	}
}
