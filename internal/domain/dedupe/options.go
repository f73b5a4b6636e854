package dedupe

// Option applies a configuration option to the ring guard.
type Option func(*ringGuard)

// WithMaxSize sets the number of keys the guard remembers. Values below 1
// are ignored in favor of the default.
func WithMaxSize(maxSize int) Option {
	return func(g *ringGuard) {
		if maxSize > 0 {
			g.maxSize = maxSize
		}
	}
}
