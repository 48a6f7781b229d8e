package goma

import (
	_ "embed"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/build_tools/buildcfg"
)

// checksums.json pins the SHA256 of every published client
// archive, per platform, for both archive sources. Updated in
// lockstep with client releases.
//
//go:embed checksums.json
var checksumsRaw []byte

// manifest mirrors checksums.json.
type manifest struct {
	Primary   map[Platform]string `json:"primary"`
	Alternate map[Platform]string `json:"alternate"`
}

//nolint:gochecknoglobals // parsed once per process
var (
	checksumsOnce sync.Once
	checksums     manifest
)

// loadChecksums parses the embedded manifest once per process. The
// embedded file is part of the build; a parse failure is a
// programming error.
func loadChecksums() manifest {
	checksumsOnce.Do(func() {
		if err := json.Unmarshal(
			checksumsRaw, &checksums,
		); err != nil {
			panic(
				"embedded checksum manifest is invalid: " +
					err.Error(),
			)
		}
	})

	return checksums
}

// ExpectedChecksum returns the pinned checksum for the platform
// from the table selected by source. Unknown sources fall back to
// the primary table. ok is false for unsupported platforms.
func ExpectedChecksum(
	source buildcfg.Source,
	platform Platform,
) (string, bool) {
	m := loadChecksums()

	table := m.Primary
	if source == buildcfg.SourceAlternate {
		table = m.Alternate
	}

	sum, ok := table[platform]

	return sum, ok
}
