package goma_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/build_tools/cmdutil/exec"
	"github.com/byte4ever/build_tools/goma"
)

// fakeRunner records control script invocations and returns
// canned results. codeFor overrides code for a specific
// subcommand.
type fakeRunner struct {
	code     int
	codeFor  map[string]int
	calls    [][]string
	attached int
	env      []string
}

func (f *fakeRunner) Run(
	_ string,
	env []string,
	name string,
	arg ...string,
) (exec.Result, error) {
	f.calls = append(
		f.calls, append([]string{name}, arg...),
	)
	f.env = env

	code := f.code
	if len(arg) > 0 {
		if c, ok := f.codeFor[arg[0]]; ok {
			code = c
		}
	}

	return exec.Result{Code: code}, nil
}

func (f *fakeRunner) RunAttached(
	dir string,
	env []string,
	name string,
	arg ...string,
) (exec.Result, error) {
	f.attached++

	return f.Run(dir, env, name, arg...)
}

// tarGzPayload builds a one-file tar.gz archive and returns its
// bytes and SHA256 hex digest.
func tarGzPayload(tb testing.TB) ([]byte, string) {
	tb.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	content := "client binary\n"

	require.NoError(tb, tw.WriteHeader(&tar.Header{
		Name:     "goma_ctl",
		Mode:     0o755,
		Size:     int64(len(content)),
		Typeflag: tar.TypeReg,
	}))

	_, err := tw.Write([]byte(content))
	require.NoError(tb, err)

	require.NoError(tb, tw.Close())
	require.NoError(tb, gz.Close())

	sum := sha256.Sum256(buf.Bytes())

	return buf.Bytes(), hex.EncodeToString(sum[:])
}

func newTestClient(tb testing.TB) (*goma.Client, *fakeRunner) {
	tb.Helper()

	runner := &fakeRunner{}

	return &goma.Client{
		Dir:      filepath.Join(tb.TempDir(), "goma"),
		Platform: goma.PlatformLinux,
		Runner:   runner,
	}, runner
}

func TestInstall_success(t *testing.T) {
	t.Parallel()

	payload, sum := tarGzPayload(t)

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(payload)
		},
	))
	defer srv.Close()

	cl, _ := newTestClient(t)
	cl.BaseURL = srv.URL

	err := cl.InstallForTest(context.Background(), sum)

	require.NoError(t, err)

	// Archive extracted and deleted, checksum recorded.
	assert.FileExists(
		t, filepath.Join(cl.Dir, "goma_ctl"),
	)
	assert.NoFileExists(t, filepath.Join(
		filepath.Dir(cl.Dir), "goma-linux.tgz",
	))

	recorded, err := os.ReadFile(
		filepath.Join(cl.Dir, ".sha256"),
	)
	require.NoError(t, err)
	assert.Equal(t, sum, string(recorded))
}

func TestInstall_checksum_mismatch_removes_artifact(t *testing.T) {
	t.Parallel()

	payload, _ := tarGzPayload(t)

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(payload)
		},
	))
	defer srv.Close()

	cl, _ := newTestClient(t)
	cl.BaseURL = srv.URL

	wrong := "0000000000000000000000000000000000000000" +
		"000000000000000000000000"

	err := cl.InstallForTest(
		context.Background(), wrong,
	)

	assert.ErrorIs(t, err, goma.ErrChecksumMismatch)

	// The untrusted artifact is gone and nothing was
	// extracted.
	assert.NoFileExists(t, filepath.Join(
		filepath.Dir(cl.Dir), "goma-linux.tgz",
	))
	assert.NoDirExists(t, cl.Dir)
}

func TestEnsure_skips_when_checksum_recorded(t *testing.T) {
	t.Parallel()

	cl, runner := newTestClient(t)

	// No server configured: any download attempt would
	// fail loudly.
	expected, ok := goma.ExpectedChecksum(
		cl.Source, cl.Platform,
	)
	require.True(t, ok)

	require.NoError(t, os.MkdirAll(cl.Dir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(cl.Dir, ".sha256"),
		[]byte(expected),
		0o600,
	))

	downloaded, err := cl.Ensure(context.Background())

	require.NoError(t, err)
	assert.False(t, downloaded)
	assert.Empty(t, runner.calls)
}

func TestEnsure_force_redownloads(t *testing.T) {
	t.Parallel()

	cl, _ := newTestClient(t)
	cl.Force = true

	expected, ok := goma.ExpectedChecksum(
		cl.Source, cl.Platform,
	)
	require.True(t, ok)

	require.NoError(t, os.MkdirAll(cl.Dir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(cl.Dir, ".sha256"),
		[]byte(expected),
		0o600,
	))

	// The pinned checksum never matches test payloads, so
	// the forced download path must fail rather than
	// silently skip.
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("payload"))
		},
	))
	defer srv.Close()

	cl.BaseURL = srv.URL

	_, err := cl.Ensure(context.Background())

	assert.ErrorIs(t, err, goma.ErrChecksumMismatch)
}

func TestEnsure_unsupported_platform_is_noop(t *testing.T) {
	t.Parallel()

	cl, runner := newTestClient(t)
	cl.Platform = goma.PlatformUnsupported

	downloaded, err := cl.Ensure(context.Background())

	require.NoError(t, err)
	assert.False(t, downloaded)
	assert.Empty(t, runner.calls)
	assert.NoDirExists(t, cl.Dir)
}

func TestSyncConfig_idempotent(t *testing.T) {
	t.Parallel()

	cl, _ := newTestClient(t)

	gni := filepath.Join(
		t.TempDir(), "third_party", "goma.gni",
	)

	wrote, err := cl.SyncConfig(gni)

	require.NoError(t, err)
	assert.True(t, wrote)

	data, err := os.ReadFile(gni)
	require.NoError(t, err)
	assert.Contains(t, string(data), "goma_dir = \"")
	assert.Contains(t, string(data), "use_goma = true")

	// Second sync with identical desired content performs
	// zero writes.
	wrote, err = cl.SyncConfig(gni)

	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestSyncConfig_rewrites_on_drift(t *testing.T) {
	t.Parallel()

	cl, _ := newTestClient(t)

	gni := filepath.Join(t.TempDir(), "goma.gni")
	require.NoError(t, os.WriteFile(
		gni, []byte("use_goma = false\n"), 0o644,
	))

	wrote, err := cl.SyncConfig(gni)

	require.NoError(t, err)
	assert.True(t, wrote)
}

func TestSyncConfig_unsupported_platform(t *testing.T) {
	t.Parallel()

	cl, _ := newTestClient(t)
	cl.Platform = goma.PlatformUnsupported

	gni := filepath.Join(t.TempDir(), "goma.gni")

	wrote, err := cl.SyncConfig(gni)

	require.NoError(t, err)
	assert.False(t, wrote)
	assert.NoFileExists(t, gni)
}

func TestAuthenticated_fresh_stamp_skips_status_query(t *testing.T) {
	t.Parallel()

	cl, runner := newTestClient(t)
	require.NoError(t, os.MkdirAll(cl.Dir, 0o755))

	require.NoError(t, cl.RecordLoginForTest(
		time.Now().Add(-time.Hour),
	))

	assert.True(t, cl.Authenticated())
	assert.Empty(t, runner.calls)
}

func TestAuthenticated_stale_stamp_falls_back(t *testing.T) {
	t.Parallel()

	cl, runner := newTestClient(t)
	require.NoError(t, os.MkdirAll(cl.Dir, 0o755))

	require.NoError(t, cl.RecordLoginForTest(
		time.Now().Add(-13*time.Hour),
	))

	assert.True(t, cl.Authenticated())
	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0][0], "goma_auth")
	assert.Equal(t, "info", runner.calls[0][1])
}

func TestAuthenticated_status_failure_means_no(t *testing.T) {
	t.Parallel()

	cl, runner := newTestClient(t)
	runner.code = 1

	assert.False(t, cl.Authenticated())
}

func TestAuthenticated_unsupported_platform(t *testing.T) {
	t.Parallel()

	cl, runner := newTestClient(t)
	cl.Platform = goma.PlatformUnsupported

	assert.False(t, cl.Authenticated())
	assert.Empty(t, runner.calls)
}

// seedInstalled marks the client directory as holding a current
// install so Ensure skips downloading.
func seedInstalled(tb testing.TB, cl *goma.Client) {
	tb.Helper()

	expected, ok := goma.ExpectedChecksum(
		cl.Source, cl.Platform,
	)
	require.True(tb, ok)

	require.NoError(tb, os.MkdirAll(cl.Dir, 0o755))
	require.NoError(tb, os.WriteFile(
		filepath.Join(cl.Dir, ".sha256"),
		[]byte(expected),
		0o600,
	))
}

func TestLogin_runs_login_when_stale(t *testing.T) {
	t.Parallel()

	cl, runner := newTestClient(t)
	seedInstalled(t, cl)

	require.NoError(t, cl.RecordLoginForTest(
		time.Now().Add(-13*time.Hour),
	))

	// Status query says no, the login itself succeeds.
	runner.codeFor = map[string]int{"info": 1}

	require.NoError(t, cl.Login(context.Background()))

	assert.Equal(t, 1, runner.attached)

	last := runner.calls[len(runner.calls)-1]
	assert.Contains(t, last[0], "goma_auth")
	assert.Equal(
		t, []string{"login", "--no-browser"}, last[1:],
	)

	// A fresh stamp replaces the stale one.
	assert.True(t, cl.LoginFreshForTest(time.Now()))
}

func TestLogin_failure_is_fatal(t *testing.T) {
	t.Parallel()

	cl, runner := newTestClient(t)
	seedInstalled(t, cl)
	runner.code = 1

	err := cl.Login(context.Background())

	assert.Error(t, err)
	assert.ErrorContains(t, err, "exited with code 1")
	assert.Equal(t, 1, runner.attached)
	assert.NoFileExists(t, filepath.Join(
		cl.Dir, "last_goma_auth_login",
	))
}

func TestLogin_skips_when_authenticated(t *testing.T) {
	t.Parallel()

	cl, runner := newTestClient(t)
	seedInstalled(t, cl)

	require.NoError(
		t, cl.RecordLoginForTest(time.Now()),
	)

	require.NoError(t, cl.Login(context.Background()))
	assert.Empty(t, runner.calls)
}

func TestLoginFresh_window(t *testing.T) {
	t.Parallel()

	cl, _ := newTestClient(t)
	require.NoError(t, os.MkdirAll(cl.Dir, 0o755))

	now := time.Now()

	require.NoError(t, cl.RecordLoginForTest(now))

	assert.True(t, cl.LoginFreshForTest(
		now.Add(11*time.Hour),
	))
	assert.False(t, cl.LoginFreshForTest(
		now.Add(13*time.Hour),
	))
}

func TestLoginFresh_missing_or_garbage_stamp(t *testing.T) {
	t.Parallel()

	cl, _ := newTestClient(t)
	require.NoError(t, os.MkdirAll(cl.Dir, 0o755))

	assert.False(
		t, cl.LoginFreshForTest(time.Now()),
	)

	require.NoError(t, os.WriteFile(
		filepath.Join(cl.Dir, "last_goma_auth_login"),
		[]byte("not-a-number"),
		0o600,
	))

	assert.False(
		t, cl.LoginFreshForTest(time.Now()),
	)
}

func TestLogout_clears_stamp(t *testing.T) {
	t.Parallel()

	cl, runner := newTestClient(t)
	require.NoError(t, os.MkdirAll(cl.Dir, 0o755))

	require.NoError(
		t, cl.RecordLoginForTest(time.Now()),
	)

	require.NoError(t, cl.Logout())

	assert.NoFileExists(t, filepath.Join(
		cl.Dir, "last_goma_auth_login",
	))
	// Client-side logout was attempted.
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "logout", runner.calls[0][1])
}

func TestLogout_without_stamp(t *testing.T) {
	t.Parallel()

	cl, _ := newTestClient(t)
	require.NoError(t, os.MkdirAll(cl.Dir, 0o755))

	assert.NoError(t, cl.Logout())
}

func TestEnsureRunning_probe_hit_is_noop(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer ln.Close()

	cl, runner := newTestClient(t)
	cl.ProbeAddr = ln.Addr().String()

	started, err := cl.EnsureRunning(
		context.Background(),
	)

	require.NoError(t, err)
	assert.False(t, started)
	assert.Empty(t, runner.calls)
}

func TestEnsureRunning_starts_with_policy_env(t *testing.T) {
	t.Parallel()

	cl, runner := newTestClient(t)
	cl.ProbeAddr = unusedAddr(t)
	cl.Policy = goma.Policy{CacheOnly: true}

	started, err := cl.EnsureRunning(
		context.Background(),
	)

	require.NoError(t, err)
	assert.True(t, started)
	require.Len(t, runner.calls, 1)
	assert.Equal(
		t, "ensure_start", runner.calls[0][1],
	)
	assert.Contains(
		t,
		runner.env,
		"GOMA_FALLBACK_ON_AUTH_FAILURE=true",
	)
	// Output suppressed off Windows.
	assert.Zero(t, runner.attached)
}

func TestEnsureRunning_start_failure(t *testing.T) {
	t.Parallel()

	cl, runner := newTestClient(t)
	cl.ProbeAddr = unusedAddr(t)
	runner.code = 1

	_, err := cl.EnsureRunning(context.Background())

	assert.Error(t, err)
	assert.ErrorContains(t, err, "exited with code 1")
}

func TestEnsureRunning_unsupported_platform(t *testing.T) {
	t.Parallel()

	cl, runner := newTestClient(t)
	cl.Platform = goma.PlatformUnsupported

	started, err := cl.EnsureRunning(
		context.Background(),
	)

	require.NoError(t, err)
	assert.False(t, started)
	assert.Empty(t, runner.calls)
}

// unusedAddr returns a localhost address nothing listens on.
func unusedAddr(tb testing.TB) string {
	tb.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(tb, err)

	addr := ln.Addr().String()
	require.NoError(tb, ln.Close())

	return addr
}

func TestRecordLogin_writes_epoch_milliseconds(t *testing.T) {
	t.Parallel()

	cl, _ := newTestClient(t)
	require.NoError(t, os.MkdirAll(cl.Dir, 0o755))

	now := time.Now()
	require.NoError(t, cl.RecordLoginForTest(now))

	raw, err := os.ReadFile(filepath.Join(
		cl.Dir, "last_goma_auth_login",
	))
	require.NoError(t, err)

	ms, err := strconv.ParseInt(string(raw), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), ms)
}
