package main

import (
	"testing"

	"github.com/odvcencio/gitsink/pkg/repo"
)

func mustInitRepo(t *testing.T, gitDir string) *repo.Repo {
	t.Helper()
	r, err := repo.Init(gitDir)
	if err != nil {
		t.Fatalf("repo.Init: %v", err)
	}
	return r
}
