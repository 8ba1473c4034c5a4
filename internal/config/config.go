// Package config reads the two environment variables the core depends on
// (spec §6): LXR_DATA_DIR and LXR_REPO_DIR. Missing either is a fatal
// startup error (spec §7, Configuration errors "surface immediately; do
// not partially initialize"), following the teacher's cli.OpenDB /
// environment-driven startup in cmd/rpcdaemon/cli.
package config

import (
	"fmt"
	"os"

	"github.com/bootlin/elixir/internal/xrerrors"
)

type Config struct {
	DataDir string
	RepoDir string
}

// FromEnv reads LXR_DATA_DIR and LXR_REPO_DIR, returning a wrapped
// xrerrors.ErrConfiguration if either is unset.
func FromEnv() (Config, error) {
	dataDir, ok := os.LookupEnv("LXR_DATA_DIR")
	if !ok || dataDir == "" {
		return Config{}, fmt.Errorf("LXR_DATA_DIR not set: %w", xrerrors.ErrConfiguration)
	}
	repoDir, ok := os.LookupEnv("LXR_REPO_DIR")
	if !ok || repoDir == "" {
		return Config{}, fmt.Errorf("LXR_REPO_DIR not set: %w", xrerrors.ErrConfiguration)
	}
	return Config{DataDir: dataDir, RepoDir: repoDir}, nil
}
