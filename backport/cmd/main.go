// Command backport prepares a local cherry-pick branch for a
// merged pull request that carries manual-backport labels. It
// takes a single positional PR number, fetches the PR from the
// configured code-hosting platform, prompts for the target branch,
// and sets up the backport branch in the local working copy.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/byte4ever/build_tools/backport"
	"github.com/byte4ever/build_tools/backport/host"
	"github.com/byte4ever/build_tools/backport/host/github"
	"github.com/byte4ever/build_tools/backport/host/gitlab"
	"github.com/byte4ever/build_tools/buildcfg"
	"github.com/byte4ever/build_tools/gitwd"
	"github.com/byte4ever/build_tools/picker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	const errCtx = "running backport"

	configPath := flag.String(
		"config", ".build-tools.yml",
		"Path to the optional tool config file",
	)
	workdir := flag.String(
		"workdir", ".",
		"Local working copy of the repository",
	)
	hostName := flag.String(
		"host", "",
		"Code hosting platform: github or gitlab "+
			"(overrides config file)",
	)
	remote := flag.String(
		"remote", "",
		"Git remote name (overrides config file)",
	)

	flag.Parse()

	if flag.NArg() != 1 {
		return fmt.Errorf(
			"%s: expected exactly one PR number "+
				"argument, got %d",
			errCtx, flag.NArg(),
		)
	}

	file, hasFile, err := buildcfg.LoadFile(*configPath)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	cfg := buildcfg.Assemble(
		file, hasFile, buildcfg.SnapshotEnv(),
	)

	if *hostName != "" {
		cfg.Host = *hostName
	}

	if *remote != "" {
		cfg.Remote = *remote
	}

	provider, err := newHostProvider(cfg)
	if err != nil {
		return fmt.Errorf(
			"%s: create provider: %w", errCtx, err,
		)
	}

	if err := backport.Run(
		context.Background(),
		backport.Config{
			PRNumber: flag.Arg(0),
			Provider: provider,
			Git: &gitwd.Workdir{
				Dir:    *workdir,
				Remote: cfg.Remote,
			},
			Select: picker.Choose,
			Out:    os.Stdout,
		},
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// newHostProvider creates a host.Provider for the configured
// platform. Pattern: Factory -- selects platform implementation at
// runtime.
func newHostProvider(
	cfg buildcfg.Config,
) (host.Provider, error) {
	const errCtx = "creating host provider"

	switch cfg.Host {
	case "github":
		p, err := github.NewProvider(github.Config{
			RepoOwner:   cfg.Owner,
			Repo:        cfg.Repo,
			AccessToken: cfg.Token,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	case "gitlab":
		p, err := gitlab.NewProvider(gitlab.Config{
			Repo:        cfg.Owner + "/" + cfg.Repo,
			AccessToken: cfg.Token,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	default:
		return nil, fmt.Errorf(
			"%s: unknown host %q",
			errCtx, cfg.Host,
		)
	}
}
