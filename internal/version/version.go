// Package version carries build-time version information, injected via
// -ldflags at build.
package version

var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// SetInfo overrides the defaults with build-injected values, ignoring empty
// ones.
func SetInfo(v, bt, gc string) {
	if v != "" {
		Version = v
	}
	if bt != "" {
		BuildTime = bt
	}
	if gc != "" {
		GitCommit = gc
	}
}
