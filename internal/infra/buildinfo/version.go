package buildinfo

// Build-time variables (set via ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns a formatted version string for --version output.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + BuildTime + ")"
}
