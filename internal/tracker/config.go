package tracker

// Parallelism applies per queue: tracking and refiltering drain
// independently. Commits stay serialized per repository inside the git
// store; the parallelism here covers fetching and filtering.
const (
	DefaultMaxParallelTrackings = 20
	DefaultMaxParallelRefilters = 20
)

// Config for the tracking engine.
type Config struct {
	// DeclarationsPath is the directory holding service declaration files.
	DeclarationsPath string

	MaxParallelTrackings int
	MaxParallelRefilters int
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DeclarationsPath:     "./declarations",
		MaxParallelTrackings: DefaultMaxParallelTrackings,
		MaxParallelRefilters: DefaultMaxParallelRefilters,
	}
}
