package exec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/build_tools/cmdutil/exec"
)

func TestRun_success(t *testing.T) {
	t.Parallel()

	res, err := exec.Run("", "echo", "hello")

	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Contains(t, res.Stdout, "hello")
	assert.Empty(t, res.Stderr)
}

func TestRun_nonzero_exit_is_not_an_error(t *testing.T) {
	t.Parallel()

	res, err := exec.Run("", "false")

	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.NotZero(t, res.Code)
}

func TestRun_missing_binary(t *testing.T) {
	t.Parallel()

	_, err := exec.Run("", "definitely-not-a-command-xyz")

	assert.Error(t, err)
}

func TestRun_with_dir(t *testing.T) {
	t.Parallel()

	res, err := exec.Run("/tmp", "pwd")

	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "/tmp")
}

func TestRunEnv_passes_environment(t *testing.T) {
	t.Parallel()

	res, err := exec.RunEnv(
		"",
		[]string{"BUILD_TOOLS_TEST_VAR=marker"},
		"sh", "-c", "echo $BUILD_TOOLS_TEST_VAR",
	)

	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "marker")
}

func TestEx_success(t *testing.T) {
	t.Parallel()

	out, err := exec.Ex("", "echo", "hi")

	require.NoError(t, err)
	assert.Contains(t, out, "hi")
}

func TestEx_failure(t *testing.T) {
	t.Parallel()

	_, err := exec.Ex("", "false")

	assert.Error(t, err)
	assert.ErrorContains(t, err, "exit code")
}

func TestBestEffort(t *testing.T) {
	t.Parallel()

	assert.Equal(
		t,
		exec.StatusOK,
		exec.BestEffort(exec.Result{Code: 0}, nil),
	)
	assert.Equal(
		t,
		exec.StatusFailed,
		exec.BestEffort(exec.Result{Code: 1}, nil),
	)
	assert.Equal(
		t,
		exec.StatusFailed,
		exec.BestEffort(
			exec.Result{Code: -1},
			assert.AnError,
		),
	)
}

func TestStatus_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ok", exec.StatusOK.String())
	assert.Equal(t, "failed", exec.StatusFailed.String())
	assert.Equal(
		t,
		"not-applicable",
		exec.StatusNotApplicable.String(),
	)
}
