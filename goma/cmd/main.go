// Command goma provisions the local compiler-cache client. The
// positional action selects what to ensure:
//
//	ensure  download, verify, and extract the client if needed,
//	        and sync the build-system config file
//	login   ensure the client is installed and authenticated
//	logout  clear the cached login
//	start   make sure the local control process is running
//
// Every action is a safe no-op on unsupported platforms.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/byte4ever/build_tools/buildcfg"
	"github.com/byte4ever/build_tools/goma"
)

const defaultBaseURL = "https://dev-build-clients.s3.amazonaws.com/goma"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	const errCtx = "running goma provisioner"

	configPath := flag.String(
		"config", ".build-tools.yml",
		"Path to the optional tool config file",
	)
	dir := flag.String(
		"dir", filepath.Join("third_party", "goma"),
		"Client install directory",
	)
	baseURL := flag.String(
		"base_url", defaultBaseURL,
		"Archive download endpoint",
	)
	gniPath := flag.String(
		"gni", filepath.Join(
			"third_party", "goma.gni",
		),
		"Build-system config file to keep in sync",
	)

	flag.Parse()

	if flag.NArg() != 1 {
		return fmt.Errorf(
			"%s: expected one action "+
				"(ensure|login|logout|start), got %d "+
				"arguments",
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

	client := &goma.Client{
		Dir:     *dir,
		BaseURL: *baseURL,
		Platform: goma.ResolvePlatform(
			runtime.GOOS, runtime.GOARCH,
		),
		Source: cfg.Source,
		Force:  cfg.ForceRedownload,
		Policy: goma.Policy{
			CacheOnly:     cfg.CacheOnly,
			CI:            cfg.CI,
			HasConfigFile: cfg.HasConfigFile,
		},
	}

	ctx := context.Background()

	switch action := flag.Arg(0); action {
	case "ensure":
		if _, err := client.Ensure(ctx); err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		if _, err := client.SyncConfig(
			*gniPath,
		); err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

	case "login":
		if err := client.Login(ctx); err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

	case "logout":
		if err := client.Logout(); err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

	case "start":
		if _, err := client.Ensure(ctx); err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		if _, err := client.EnsureRunning(
			ctx,
		); err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

	default:
		return fmt.Errorf(
			"%s: unknown action %q",
			errCtx, action,
		)
	}

	return nil
}
