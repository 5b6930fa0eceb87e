package store

// Config holds the two tunable traversal bounds.
type Config struct {
	// MaxDepth bounds ascendant-chain and branch traversal depth.
	// Default: 20
	// Max: 255
	MaxDepth int

	// StepBudget bounds the total number of item visits a single
	// traversal, permission resolution, or cascade classification may
	// perform, independent of depth. Protects against maximally branching
	// structures.
	// Default: 2000
	StepBudget int
}

// DefaultConfig returns the default traversal bounds.
func DefaultConfig() Config {
	return Config{
		MaxDepth:   20,
		StepBudget: 2000,
	}
}

// validate clamps config values to acceptable bounds.
func (c *Config) validate() {
	if c.MaxDepth < 1 {
		c.MaxDepth = 20
	}
	if c.MaxDepth > 255 {
		c.MaxDepth = 255
	}
	if c.StepBudget < 1 {
		c.StepBudget = 2000
	}
}
