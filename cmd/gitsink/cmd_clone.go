package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/odvcencio/gitsink/pkg/intake"
	"github.com/odvcencio/gitsink/pkg/object"
	"github.com/odvcencio/gitsink/pkg/remote"
	"github.com/odvcencio/gitsink/pkg/repo"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const lockTimeout = 2 * time.Second

// typeCounts tallies stored objects by type. observe runs on the intake's
// write workers.
type typeCounts struct {
	mu     sync.Mutex
	counts map[object.ObjectType]int
}

func (c *typeCounts) observe(o object.Parsed) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[object.ObjectType]int)
	}
	c.counts[o.Type()]++
	return nil
}

func (c *typeCounts) fields() []zap.Field {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := []object.ObjectType{object.TypeCommit, object.TypeTree, object.TypeBlob, object.TypeTag}
	fields := make([]zap.Field, 0, len(types))
	for _, t := range types {
		fields = append(fields, zap.Int(string(t), c.counts[t]))
	}
	return fields
}

func newCloneCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clone <url> [target]",
		Short: "Clone a git:// or ssh:// repository into <target>.git",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) (retErr error) {
			cfg, logger, err := g.settings(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ep, err := remote.ParseEndpoint(args[0])
			if err != nil {
				return err
			}
			if ep.Scheme == "git" && ep.Port == remote.DefaultGitPort {
				ep.Port = cfg.GitPort
			}

			var target string
			if len(args) == 2 {
				target = args[1]
			} else if target, err = remote.TargetName(ep.Path); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cloning into '%s'...\n", target)

			ctx := cmd.Context()
			gitDir := repo.GitDirName(target)
			lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
			release, err := repo.AcquireLock(lockCtx, gitDir)
			cancel()
			if err != nil {
				return err
			}
			defer multierr.AppendInvoke(&retErr, multierr.Invoke(release))

			r, err := repo.Init(gitDir, repo.WithLogger(logger))
			if err != nil {
				return err
			}
			if err := r.SetRemote("origin", ep.Raw); err != nil {
				return err
			}
			session, err := remote.Fetch(ctx, ep, remote.Options{
				SSH: remote.SSHConfig{
					User:       cfg.SSH.User,
					KnownHosts: cfg.SSH.KnownHosts,
				},
				Logger: logger,
			})
			if err != nil {
				return fmt.Errorf("clone %s: %w", ep.Raw, err)
			}
			defer multierr.AppendInvoke(&retErr, multierr.Close(session))

			var tally typeCounts
			p := &intake.Pipeline{
				Repo:     r,
				Logger:   logger,
				Stdout:   out,
				Stderr:   cmd.ErrOrStderr(),
				Workers:  cfg.Workers,
				OnParsed: tally.observe,
			}
			res, err := p.Run(ctx, session)
			if err != nil {
				return fmt.Errorf("clone %s: %w", ep.Raw, err)
			}
			logger.Info("clone complete", append([]zap.Field{
				zap.String("git_dir", r.GitDir),
				zap.Int("objects", res.Objects),
				zap.Int("unmatched_refs", len(res.Refs.Unmatched)),
			}, tally.fields()...)...)
			return nil
		},
	}
}
