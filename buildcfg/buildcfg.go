package buildcfg

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Environment variable names read by SnapshotEnv.
const (
	// EnvToken overrides the code-hosting access token.
	EnvToken = "BACKPORT_GH_TOKEN"
	// EnvForceRedownload forces the provisioner to re-download
	// the client archive even when checksums match.
	EnvForceRedownload = "FORCE_GOMA_REDOWNLOAD"
	// EnvRawAuth marks that raw developer credentials are
	// available. Its absence, when no config file is given, is
	// taken as running in CI (see Assemble).
	EnvRawAuth = "RAW_GOMA_AUTH"
	// EnvCI is the standard CI-detection flag.
	EnvCI = "CI"
)

// Source selects which checksum table to use.
type Source int

const (
	// SourcePrimary is the default archive source.
	SourcePrimary Source = iota
	// SourceAlternate is the secondary archive source.
	SourceAlternate
)

// ParseSource maps a source name to a Source. Unknown or empty
// names default to the primary table.
func ParseSource(name string) Source {
	if name == "alternate" {
		return SourceAlternate
	}

	return SourcePrimary
}

// Env is a one-shot snapshot of the environment variables the
// tools care about.
type Env struct {
	Token           string
	ForceRedownload bool
	RawAuth         bool
	CI              bool
}

// SnapshotEnv captures the relevant environment variables. Called
// once at startup; everything downstream reads the returned value.
func SnapshotEnv() Env {
	_, rawAuth := os.LookupEnv(EnvRawAuth)

	return Env{
		Token:           os.Getenv(EnvToken),
		ForceRedownload: os.Getenv(EnvForceRedownload) != "",
		RawAuth:         rawAuth,
		CI:              os.Getenv(EnvCI) != "",
	}
}

// File mirrors the optional .build-tools.yml config file.
type File struct {
	Backport BackportFile `yaml:"backport"`
	Goma     GomaFile     `yaml:"goma"`
}

// BackportFile holds backport assistant settings.
type BackportFile struct {
	// Host selects the code-hosting platform ("github" or
	// "gitlab"). Defaults to github.
	Host string `yaml:"host"`
	// Owner and Repo identify the upstream repository.
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
	// Remote is the git remote name of the upstream.
	Remote string `yaml:"remote"`
	// Token is the access token; the environment override
	// wins over this value.
	Token string `yaml:"token"`
}

// GomaFile holds compiler-cache provisioner settings.
type GomaFile struct {
	// Source selects the checksum table ("primary" or
	// "alternate").
	Source string `yaml:"source"`
	// CacheOnly, when set, explicitly selects cache-only
	// mode. Left nil it is inferred (see Assemble).
	CacheOnly *bool `yaml:"cache_only"`
}

// LoadFile reads a YAML config file. A missing file is not an
// error: it returns a zero File and found=false, and Assemble
// falls back to inference and defaults.
func LoadFile(path string) (File, bool, error) {
	const errCtx = "loading config file"

	var f File

	if path == "" {
		return f, false, nil
	}

	raw, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
	if errors.Is(err, os.ErrNotExist) {
		return f, false, nil
	}

	if err != nil {
		return f, false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if err := yaml.Unmarshal(raw, &f); err != nil {
		return f, false, fmt.Errorf(
			"%s: parse %s: %w", errCtx, path, err,
		)
	}

	return f, true, nil
}

// Config is the assembled, read-only configuration.
type Config struct {
	// Backport assistant.
	Host   string
	Owner  string
	Repo   string
	Remote string
	Token  string

	// Provisioner.
	Source          Source
	CacheOnly       bool
	ForceRedownload bool
	CI              bool

	// HasConfigFile records whether an explicit config file
	// was present; some policies only apply without one.
	HasConfigFile bool
}

// Defaults for the backport assistant when neither file nor flags
// say otherwise.
const (
	DefaultHost   = "github"
	DefaultOwner  = "electron"
	DefaultRepo   = "electron"
	DefaultRemote = "origin"
)

// Assemble folds the config file and the environment snapshot into
// a Config.
//
// Cache-only mode: an explicit cache_only value in the file always
// wins. Without a config file the mode is inferred from the absence
// of the raw-auth environment variable: no raw credentials means a
// CI-like environment where the client must fall back gracefully on
// auth failure. The inference is deliberate and documented here
// rather than buried in environment checks.
func Assemble(file File, hasFile bool, env Env) Config {
	cfg := Config{
		Host:            file.Backport.Host,
		Owner:           file.Backport.Owner,
		Repo:            file.Backport.Repo,
		Remote:          file.Backport.Remote,
		Token:           file.Backport.Token,
		Source:          ParseSource(file.Goma.Source),
		ForceRedownload: env.ForceRedownload,
		CI:              env.CI,
		HasConfigFile:   hasFile,
	}

	if env.Token != "" {
		cfg.Token = env.Token
	}

	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}

	if cfg.Owner == "" {
		cfg.Owner = DefaultOwner
	}

	if cfg.Repo == "" {
		cfg.Repo = DefaultRepo
	}

	if cfg.Remote == "" {
		cfg.Remote = DefaultRemote
	}

	switch {
	case file.Goma.CacheOnly != nil:
		cfg.CacheOnly = *file.Goma.CacheOnly
	case !hasFile:
		cfg.CacheOnly = !env.RawAuth
	}

	return cfg
}
