package yamlupdate

import (
	"go.uber.org/zap"
)

type config struct {
	log   *zap.Logger
	check bool
}

// Option configures an Editor or a file update.
type Option func(*config)

// WithLogger sets the logger operations are reported to at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithCheckMode makes UpdateFile report without reading or writing anything.
func WithCheckMode(check bool) Option {
	return func(c *config) { c.check = check }
}

func newConfig(opts []Option) *config {
	c := &config{log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

func logPath(p string) zap.Field {
	return zap.String("path", p)
}
