package dedupe

// Option applies a configuration option to the in-flight tracker.
type Option func(*inFlight)

// WithMaxSize caps the number of tracked ids. Once full, new ids are let
// through untracked. maxSize <= 0 means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inFlight) {
		d.maxSize = maxSize
	}
}
