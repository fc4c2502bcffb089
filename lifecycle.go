// lifecycle.go: process-wide Init/Shutdown, the package-level singleton
// every call site commits through.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package halcyon

import (
	"os"
	"sync"
	"sync/atomic"
)

var (
	globalMu   sync.Mutex
	globalSink *AsyncSink
	fallback   = consoleSink{}
	target     atomic.Pointer[Sink]
)

// consoleSink is installed before Init and after Shutdown; it writes
// straight to stderr rather than silently discarding records, and its
// Flush is a no-op since there is no buffering to push through.
type consoleSink struct{}

func (consoleSink) Write(p []byte) (int, error) { return os.Stderr.Write(p) }
func (consoleSink) Flush() error                { return nil }

func init() {
	var s Sink = fallback
	target.Store(&s)
}

// currentCommitTarget returns the Sink every RecordBuilder.commit call
// writes through: the installed AsyncSink between Init and Shutdown, or
// the console fallback otherwise.
func currentCommitTarget() Sink {
	return *target.Load()
}

// Init installs the process-wide logger. logname becomes the rotated
// file prefix unless cfg.FilePrefix is already set. Calling Init twice
// without an intervening Shutdown is a no-op: the existing installation
// is left running untouched and cfg is ignored.
func Init(logname string, cfg *Config) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalSink != nil {
		return nil
	}

	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = logname
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sink, err := NewAsyncSink(cfg)
	if err != nil {
		return err
	}
	sink.Start()

	globalSink = sink
	alsoLogToStderr.Store(cfg.AlsoLogToStderr)
	minLevel.Store(int32(cfg.MinLevel))

	var s Sink = sink
	target.Store(&s)

	return nil
}

// Shutdown drains and stops the process-wide logger, redirecting
// subsequent commits to the console fallback. Calling Shutdown when no
// logger is installed is a no-op, matching the original's tolerant
// uninitLog behavior.
func Shutdown() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalSink == nil {
		return
	}

	var s Sink = fallback
	target.Store(&s)
	minLevel.Store(int32(LevelTrace))

	globalSink.flushSync()
	globalSink.Stop()
	_ = globalSink.Close()
	globalSink = nil
}

// CurrentStats reports telemetry for the installed logger, or a zero
// Stats value if none is installed.
func CurrentStats() Stats {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalSink == nil {
		return Stats{}
	}
	return globalSink.Stats()
}

// Rotate forces the installed logger to close its current file and
// open a new one, independent of the size and day-boundary triggers.
// It returns ErrNotInitialized if no logger is installed.
func Rotate() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalSink == nil {
		return ErrNotInitialized
	}
	globalSink.Rotate()
	return nil
}
