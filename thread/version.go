package thread

// Version information for the threadport primitives layer.
const (
	// Version is the current version of the library.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information about the primitives layer.
type Info struct {
	// Version is the library version string.
	Version string

	// Backend names the host mechanism threads run on.
	Backend string

	// CPUs is the number of CPUs usable by this process.
	CPUs int
}

// GetInfo returns information about the running primitives layer.
//
// Example:
//
//	info := thread.GetInfo()
//	fmt.Printf("threadport %s (%s, %d CPUs)\n", info.Version, info.Backend, info.CPUs)
func GetInfo() Info {
	return Info{
		Version: Version,
		Backend: "goroutines",
		CPUs:    NumCPU(),
	}
}
