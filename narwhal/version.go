package narwhal

// Version information for the Narwhalyzer runtime.
const (
	// Version is the current version of the profiling runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)
