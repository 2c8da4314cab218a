package matching

// Options holds key selection rules.
type Options struct {
	// Inclusions lists patterns a key must match, when not empty.
	Inclusions []string
	// Exclusions lists patterns that reject a key.
	Exclusions []string
	// MaxValueSize rejects values longer than this many bytes, when positive.
	MaxValueSize int
}

// Option modifies Options.
type Option func(*Options)

// WithInclusions appends inclusion patterns.
func WithInclusions(patterns ...string) Option {
	return func(o *Options) {
		o.Inclusions = append(o.Inclusions, patterns...)
	}
}

// WithExclusions appends exclusion patterns.
func WithExclusions(patterns ...string) Option {
	return func(o *Options) {
		o.Exclusions = append(o.Exclusions, patterns...)
	}
}

// WithMaxValueSize sets the value size limit.
func WithMaxValueSize(size int) Option {
	return func(o *Options) {
		o.MaxValueSize = size
	}
}

// NewOptions applies opts to empty Options.
func NewOptions(opts ...Option) *Options {
	ret := &Options{}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}
