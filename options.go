package faigz

import (
	"go.uber.org/zap"

	"github.com/waveygang/faigz/env"
)

type Option func(*metaOptions) error

type metaOptions struct {
	logger *zap.Logger
	env    env.Environment
	create bool
}

func (o *metaOptions) setDefault() {
	*o = metaOptions{
		logger: zap.NewNop(),
		env:    osEnv{},
	}
}

// WithLogger attaches a logger to Load and to every Reader created from the
// resulting Meta.
func WithLogger(l *zap.Logger) Option {
	return func(o *metaOptions) error { o.logger = l; return nil }
}

// WithEnvironment injects a custom source of data and sidecar bytes.
func WithEnvironment(e env.Environment) Option {
	return func(o *metaOptions) error { o.env = e; return nil }
}

// WithCreate makes Load build missing sidecar files by scanning the source
// instead of failing with ErrIndexMissing.
func WithCreate() Option {
	return func(o *metaOptions) error { o.create = true; return nil }
}
