package goma

// Platform is the archive lookup key for a supported OS and
// architecture combination.
type Platform string

// Supported platforms. PlatformUnsupported makes every
// provisioning operation a no-op rather than an error.
const (
	PlatformLinux       Platform = "linux"
	PlatformMac         Platform = "mac"
	PlatformMacArm64    Platform = "mac-arm64"
	PlatformWin         Platform = "win64"
	PlatformUnsupported Platform = ""
)

// ResolvePlatform maps a GOOS/GOARCH pair to a Platform. The only
// architecture refinement is 64-bit ARM on macOS, which gets its
// own archive; everything else is keyed by OS alone.
func ResolvePlatform(goos, goarch string) Platform {
	switch goos {
	case "linux":
		return PlatformLinux
	case "darwin":
		if goarch == "arm64" {
			return PlatformMacArm64
		}

		return PlatformMac
	case "windows":
		return PlatformWin
	default:
		return PlatformUnsupported
	}
}

// Supported reports whether provisioning operations apply on this
// platform.
func (p Platform) Supported() bool {
	return p != PlatformUnsupported
}

// ArchiveName returns the published archive file name for the
// platform. Windows clients ship as zip, everything else as
// tar.gz.
func (p Platform) ArchiveName() string {
	if p == PlatformWin {
		return "goma-" + string(p) + ".zip"
	}

	return "goma-" + string(p) + ".tgz"
}
