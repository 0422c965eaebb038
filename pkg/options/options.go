// Package options provides functional-options configuration for the
// emberkv engine, server, and client — directory layout, compaction
// threshold, and worker pool selection. The pattern (an Options struct
// plus OptionFunc closures applied over NewDefaultOptions) follows the
// teacher's pkg/options, generalized from segment-file tuning to the
// full engine/server surface this spec covers.
package options

import "strings"

// PoolKind selects one of the three worker pool flavors of spec §4.7.
type PoolKind string

const (
	PoolNaive  PoolKind = "naive"
	PoolShared PoolKind = "shared"
	PoolLib    PoolKind = "libpool"
)

// Options configures an engine instance and, when embedded in the server
// binary, the TCP front end wrapped around it.
type Options struct {
	// DataDir is the store directory: it holds the <gen>.log segment
	// files and (maintained by the server shell, not the engine) the
	// sibling "engine" marker file.
	DataDir string

	// CompactionThreshold is the uncompacted-byte count (spec §4.6) that
	// triggers a compaction pass. Reference value: 1 MiB.
	CompactionThreshold uint64

	// WorkerPoolSize is the number of persistent workers for the shared
	// and library-backed pool flavors. Ignored by PoolNaive.
	WorkerPoolSize int

	// WorkerPoolKind selects which of the three §4.7 flavors the server
	// dispatches connections through.
	WorkerPoolKind PoolKind

	// Addr is the TCP listen/connect address, e.g. "127.0.0.1:4000".
	Addr string
}

// OptionFunc mutates an Options value being built up by Apply.
type OptionFunc func(*Options)

const (
	DefaultCompactionThreshold uint64   = 1024 * 1024
	DefaultWorkerPoolSize      int      = 4
	DefaultWorkerPoolKind      PoolKind = PoolShared
	DefaultAddr                string   = "127.0.0.1:4000"
)

// NewDefaultOptions returns an Options populated with the reference
// defaults, ready to be adjusted by OptionFuncs.
func NewDefaultOptions() Options {
	return Options{
		DataDir:             ".",
		CompactionThreshold: DefaultCompactionThreshold,
		WorkerPoolSize:      DefaultWorkerPoolSize,
		WorkerPoolKind:      DefaultWorkerPoolKind,
		Addr:                DefaultAddr,
	}
}

// Apply builds an Options from the reference defaults overridden by opts,
// in order.
func Apply(opts ...OptionFunc) Options {
	o := NewDefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithDataDir sets the store directory, ignoring blank input.
func WithDataDir(dir string) OptionFunc {
	return func(o *Options) {
		dir = strings.TrimSpace(dir)
		if dir != "" {
			o.DataDir = dir
		}
	}
}

// WithCompactionThreshold overrides the uncompacted-byte trigger for
// compaction. Zero is ignored since it would compact on every write.
func WithCompactionThreshold(bytes uint64) OptionFunc {
	return func(o *Options) {
		if bytes > 0 {
			o.CompactionThreshold = bytes
		}
	}
}

// WithWorkerPoolSize sets the persistent worker count for pool flavors
// that have one.
func WithWorkerPoolSize(n int) OptionFunc {
	return func(o *Options) {
		if n > 0 {
			o.WorkerPoolSize = n
		}
	}
}

// WithWorkerPoolKind selects the worker pool flavor.
func WithWorkerPoolKind(kind PoolKind) OptionFunc {
	return func(o *Options) {
		switch kind {
		case PoolNaive, PoolShared, PoolLib:
			o.WorkerPoolKind = kind
		}
	}
}

// WithAddr sets the TCP listen/connect address.
func WithAddr(addr string) OptionFunc {
	return func(o *Options) {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			o.Addr = addr
		}
	}
}
