package goma_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/build_tools/buildcfg"
	"github.com/byte4ever/build_tools/goma"
)

func TestExpectedChecksum_all_platforms_pinned(t *testing.T) {
	t.Parallel()

	platforms := []goma.Platform{
		goma.PlatformLinux,
		goma.PlatformMac,
		goma.PlatformMacArm64,
		goma.PlatformWin,
	}

	for _, p := range platforms {
		for _, src := range []buildcfg.Source{
			buildcfg.SourcePrimary,
			buildcfg.SourceAlternate,
		} {
			sum, ok := goma.ExpectedChecksum(src, p)

			require.True(t, ok, "platform %s", p)
			assert.Len(
				t, sum, 64,
				"platform %s source %d", p, src,
			)
		}
	}
}

func TestExpectedChecksum_tables_differ(t *testing.T) {
	t.Parallel()

	primary, ok := goma.ExpectedChecksum(
		buildcfg.SourcePrimary, goma.PlatformLinux,
	)
	require.True(t, ok)

	alternate, ok := goma.ExpectedChecksum(
		buildcfg.SourceAlternate, goma.PlatformLinux,
	)
	require.True(t, ok)

	assert.NotEqual(t, primary, alternate)
}

func TestExpectedChecksum_unsupported_platform(t *testing.T) {
	t.Parallel()

	_, ok := goma.ExpectedChecksum(
		buildcfg.SourcePrimary,
		goma.PlatformUnsupported,
	)

	assert.False(t, ok)
}
