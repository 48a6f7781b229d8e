package goma

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/byte4ever/build_tools/archive"
	"github.com/byte4ever/build_tools/buildcfg"
	"github.com/byte4ever/build_tools/cmdutil/exec"
	"github.com/byte4ever/build_tools/digester"
	"github.com/byte4ever/build_tools/fetch"
)

// ErrChecksumMismatch marks a downloaded archive whose content
// hash does not match the pinned checksum. The artifact is deleted
// before this error is returned; it must never be extracted.
var ErrChecksumMismatch = errors.New(
	"archive checksum mismatch",
)

const (
	// loginFreshness is how long a recorded login is trusted
	// before the client's own status command is consulted.
	loginFreshness = 12 * time.Hour

	// controlPort is the fixed local port of the client's
	// control process.
	controlPort = "8088"

	// probeTimeout bounds the control-port liveness probe.
	probeTimeout = 2 * time.Second

	checksumFileName   = ".sha256"
	loginStampFileName = "last_goma_auth_login"
)

// Runner executes the packaged control scripts. The default runner
// shells out; tests substitute a recording fake.
type Runner interface {
	Run(
		dir string,
		env []string,
		name string,
		arg ...string,
	) (exec.Result, error)

	RunAttached(
		dir string,
		env []string,
		name string,
		arg ...string,
	) (exec.Result, error)
}

// execRunner is the production Runner backed by cmdutil/exec.
type execRunner struct{}

func (execRunner) Run(
	dir string,
	env []string,
	name string,
	arg ...string,
) (exec.Result, error) {
	return exec.RunEnv(dir, env, name, arg...)
}

func (execRunner) RunAttached(
	dir string,
	env []string,
	name string,
	arg ...string,
) (exec.Result, error) {
	return exec.RunAttached(dir, env, name, arg...)
}

// Client provisions and controls a local compiler-cache client
// installation.
type Client struct {
	// Dir is the install directory of the client.
	Dir string

	// BaseURL is the archive download endpoint.
	BaseURL string

	// Platform is the resolved archive key; resolve it once
	// per process with ResolvePlatform.
	Platform Platform

	// Source selects the checksum table.
	Source buildcfg.Source

	// Force re-downloads even when checksums match.
	Force bool

	// Policy shapes the start routine's environment.
	Policy Policy

	// ProbeAddr overrides the control process probe address.
	// Empty means localhost on the fixed control port.
	ProbeAddr string

	// Runner overrides control script execution. Nil means
	// real process execution.
	Runner Runner

	// Fetcher overrides the download client. Nil means a
	// default client.
	Fetcher *fetch.Client
}

func (c *Client) runner() Runner {
	if c.Runner != nil {
		return c.Runner
	}

	return execRunner{}
}

func (c *Client) fetcher() *fetch.Client {
	if c.Fetcher != nil {
		return c.Fetcher
	}

	return fetch.NewClient(0)
}

func (c *Client) checksumFile() string {
	return filepath.Join(c.Dir, checksumFileName)
}

func (c *Client) loginStampFile() string {
	return filepath.Join(c.Dir, loginStampFileName)
}

func (c *Client) ctlScript() string {
	return filepath.Join(c.Dir, "goma_ctl")
}

func (c *Client) authScript() string {
	return filepath.Join(c.Dir, "goma_auth")
}

// Ensure makes a verified copy of the client available in Dir.
// It reports whether a download happened: false means either the
// recorded checksum already matched (and Force was unset) or the
// platform is unsupported.
func (c *Client) Ensure(ctx context.Context) (bool, error) {
	const errCtx = "ensuring client install"

	if !c.Platform.Supported() {
		return false, nil
	}

	expected, ok := ExpectedChecksum(
		c.Source, c.Platform,
	)
	if !ok {
		return false, fmt.Errorf(
			"%s: no checksum pinned for platform %s",
			errCtx, c.Platform,
		)
	}

	recorded, err := digester.Recorded(c.checksumFile())
	if err != nil {
		return false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if recorded == expected && !c.Force {
		slog.Info(
			"client install up to date",
			"platform", c.Platform,
		)

		return false, nil
	}

	if err := c.install(ctx, expected); err != nil {
		return false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return true, nil
}

// install replaces the client installation with a freshly
// downloaded, checksum-verified archive.
func (c *Client) install(
	ctx context.Context,
	expected string,
) error {
	// A previous install may still be running; stop it before
	// its files disappear. Failure (including no previous
	// install at all) is discarded.
	_ = c.stopPrevious()

	if err := os.RemoveAll(c.Dir); err != nil {
		return fmt.Errorf(
			"remove install dir: %w", err,
		)
	}

	name := c.Platform.ArchiveName()

	tmpPath := filepath.Join(
		filepath.Dir(c.Dir), name,
	)

	// A stale partial download from an interrupted run.
	os.Remove(tmpPath) //nolint:errcheck,gosec // best-effort cleanup

	url := fetch.ArchiveURL(c.BaseURL, expected, name)

	if err := c.fetcher().ToFile(
		ctx, url, tmpPath,
	); err != nil {
		return err
	}

	got, err := digester.Calculate(tmpPath)
	if err != nil {
		return err
	}

	if got != expected {
		// Never extract an untrusted artifact.
		os.Remove(tmpPath) //nolint:errcheck,gosec // cleanup before fatal exit

		return fmt.Errorf(
			"%w: got %s, want %s",
			ErrChecksumMismatch, got, expected,
		)
	}

	if c.Platform == PlatformWin {
		err = archive.ExtractZip(tmpPath, c.Dir)
	} else {
		err = archive.ExtractTarGz(tmpPath, c.Dir)
	}

	if err != nil {
		return err
	}

	if err := os.Remove(tmpPath); err != nil {
		return fmt.Errorf(
			"remove archive: %w", err,
		)
	}

	if err := digester.Record(
		c.checksumFile(), expected,
	); err != nil {
		return err
	}

	slog.Info(
		"client installed",
		"platform", c.Platform,
		"checksum", expected,
	)

	return nil
}

// stopPrevious asks an existing install to stop its control
// process. Best effort: a missing script or non-zero exit yields
// StatusFailed, which callers discard.
func (c *Client) stopPrevious() exec.Status {
	if _, err := os.Stat(c.ctlScript()); err != nil {
		return exec.StatusNotApplicable
	}

	return exec.BestEffort(c.runner().Run(
		c.Dir, nil, c.ctlScript(), "stop",
	))
}

// SyncConfig keeps the build-system config file at gniPath
// pointing at this install. The write is idempotent: it reports
// true only when the file content actually changed.
func (c *Client) SyncConfig(gniPath string) (bool, error) {
	const errCtx = "syncing build config"

	if !c.Platform.Supported() {
		return false, nil
	}

	absDir, err := filepath.Abs(c.Dir)
	if err != nil {
		return false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	desired := fmt.Sprintf(
		"goma_dir = \"%s\"\nuse_goma = true\n",
		absDir,
	)

	current, err := os.ReadFile(gniPath) //nolint:gosec // path from caller config
	if err == nil && string(current) == desired {
		return false, nil
	}

	if err := os.MkdirAll(
		filepath.Dir(gniPath), 0o755,
	); err != nil {
		return false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	//nolint:gosec // config file is world-readable on purpose
	if err := os.WriteFile(
		gniPath, []byte(desired), 0o644,
	); err != nil {
		return false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return true, nil
}

// Authenticated reports whether the client holds a usable login.
// A recorded login newer than the freshness window is trusted
// without consulting the client; otherwise the client's own status
// command is queried, and any failure there (including a missing
// install) counts as not authenticated.
func (c *Client) Authenticated() bool {
	if !c.Platform.Supported() {
		return false
	}

	if c.loginFresh(time.Now()) {
		return true
	}

	status := exec.BestEffort(c.runner().Run(
		c.Dir, nil, c.authScript(), "info",
	))

	return status == exec.StatusOK
}

// loginFresh reports whether the recorded login stamp is within
// the freshness window of now.
func (c *Client) loginFresh(now time.Time) bool {
	raw, err := os.ReadFile(c.loginStampFile()) //nolint:gosec // fixed name under Dir
	if err != nil {
		return false
	}

	ms, err := strconv.ParseInt(
		string(raw), 10, 64,
	)
	if err != nil {
		return false
	}

	stamp := time.UnixMilli(ms)

	return now.Sub(stamp) < loginFreshness
}

// recordLogin persists now as the last successful login.
func (c *Client) recordLogin(now time.Time) error {
	const errCtx = "recording login stamp"

	if err := os.WriteFile(
		c.loginStampFile(),
		[]byte(strconv.FormatInt(
			now.UnixMilli(), 10,
		)),
		0o600,
	); err != nil {
		return fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return nil
}

// Login makes sure the client is installed and authenticated,
// running the interactive login flow when needed. A failed login
// is fatal.
func (c *Client) Login(ctx context.Context) error {
	const errCtx = "logging in"

	if !c.Platform.Supported() {
		return nil
	}

	if _, err := c.Ensure(ctx); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if c.Authenticated() {
		return nil
	}

	res, err := c.runner().RunAttached(
		c.Dir, nil,
		c.authScript(), "login", "--no-browser",
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if !res.OK() {
		return fmt.Errorf(
			"%s: login exited with code %d",
			errCtx, res.Code,
		)
	}

	return c.recordLogin(time.Now())
}

// Logout clears the recorded login and asks the client to drop its
// credentials. The client-side logout is best effort.
func (c *Client) Logout() error {
	const errCtx = "logging out"

	if !c.Platform.Supported() {
		return nil
	}

	if err := os.Remove(
		c.loginStampFile(),
	); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	_ = exec.BestEffort(c.runner().Run(
		c.Dir, nil, c.authScript(), "logout",
	))

	return nil
}

// EnsureRunning starts the client's local control process unless
// it is already responsive. It reports whether a start was
// performed.
func (c *Client) EnsureRunning(
	_ context.Context,
) (bool, error) {
	const errCtx = "ensuring client is running"

	if !c.Platform.Supported() {
		return false, nil
	}

	if c.probeControlPort() {
		slog.Info("control process already running")

		return false, nil
	}

	env := c.Policy.Environ()

	var (
		res exec.Result
		err error
	)

	if c.Platform == PlatformWin {
		// The start routine appears to hang on Windows when
		// its output is captured, and benefits from explicit
		// subprocess limits.
		env = append(env, subprocessHints()...)

		res, err = c.runner().RunAttached(
			c.Dir, env,
			c.ctlScript(), "ensure_start",
		)
	} else {
		res, err = c.runner().Run(
			c.Dir, env,
			c.ctlScript(), "ensure_start",
		)
	}

	if err != nil {
		return false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if !res.OK() {
		return false, fmt.Errorf(
			"%s: start exited with code %d",
			errCtx, res.Code,
		)
	}

	return true, nil
}

// probeControlPort reports whether the control process answers on
// its fixed local port.
func (c *Client) probeControlPort() bool {
	addr := c.ProbeAddr
	if addr == "" {
		addr = net.JoinHostPort(
			"127.0.0.1", controlPort,
		)
	}

	conn, err := net.DialTimeout(
		"tcp", addr, probeTimeout,
	)
	if err != nil {
		return false
	}

	conn.Close() //nolint:errcheck,gosec // probe connection

	return true
}

// subprocessHints derives subprocess limits from the machine's
// logical CPU count. On error the hints are simply omitted and the
// client falls back to its own defaults.
func subprocessHints() []string {
	cores, err := cpu.Counts(true)
	if err != nil || cores < 1 {
		return nil
	}

	return []string{
		"GOMA_MAX_SUBPROCS=" +
			strconv.Itoa(cores*2),
		"GOMA_MAX_SUBPROCS_LOW=" +
			strconv.Itoa(cores),
	}
}
