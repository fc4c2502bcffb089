// sink.go: AsyncSink, the single-writer consumer that drains buffers
// handed off from producer goroutines and commits them to the file
// manager.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package halcyon

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// maxPendingBuffers is the drop-excess threshold: once more than this
// many Large buffers have queued for the writer, all but the two oldest
// are discarded and a drop notice is written ahead of the two kept.
const maxPendingBuffers = 25

// Sink is the interface a committed record is written through. A
// Logger installs an AsyncSink; before Init and after Shutdown, a
// no-op/console sink takes its place so a stray call site never
// crashes the caller.
type Sink interface {
	Write(p []byte) (int, error)
	Flush() error
}

// AsyncSink implements the spec's active/standby/full-queue buffer
// handoff: producers append into an active Large buffer under a mutex;
// when it fills, it moves to a FIFO of full buffers and a standby
// buffer (refilled from a small spare pool) takes over as active. A
// single writer goroutine drains the full-buffer queue, falling back to
// a timed wake so buffered data is flushed even under light load.
type AsyncSink struct {
	mu      sync.Mutex
	active  *fixedBuffer
	standby *fixedBuffer
	full    []*fixedBuffer
	spares  []*fixedBuffer

	signal chan struct{}
	done   chan struct{}

	flushEvery time.Duration
	fm         *fileManager
	onError    func(operation string, err error)

	// maxLogMB and bytesSinceReset implement the producer-side rotation
	// trigger from spec.md §4.6.1 step 2: a coarse MiB counter that
	// forces a drain (and hence a writer-side file-size check)
	// independent of when the Large active buffer itself fills.
	maxLogMB        int
	bytesSinceReset int64

	// rotateRequested is set by Rotate and consumed by writerLoop, which
	// owns fm exclusively and is therefore the only safe place to call
	// fm.roll.
	rotateRequested bool

	running bool

	dropped    uint64
	totalWrite uint64
}

// NewAsyncSink constructs a sink backed by a fileManager built from cfg.
// The writer goroutine is not started until Start is called.
func NewAsyncSink(cfg *Config) (*AsyncSink, error) {
	fm, err := newFileManager(cfg)
	if err != nil {
		return nil, err
	}

	s := &AsyncSink{
		active:     newLargeBuffer(),
		standby:    newLargeBuffer(),
		signal:     make(chan struct{}, 1),
		done:       make(chan struct{}),
		flushEvery: cfg.FlushEvery,
		fm:         fm,
		onError:    cfg.ErrorCallback,
		maxLogMB:   cfg.MaxLogSizeMB,
	}
	return s, nil
}

// Start launches the single writer goroutine. Calling Start twice is a
// no-op.
func (s *AsyncSink) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.writerLoop()
}

// Stop signals the writer goroutine to drain and exit, and blocks until
// it has. Safe to call more than once.
func (s *AsyncSink) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.wake()
	<-s.done
}

// Write is the producer path: append p to the active buffer, rotating
// to standby (or a fresh buffer, if no standby is available) and
// queuing the filled buffer for the writer when p does not fit, or when
// the MiB-denominated rotation trigger has fired. Matches io.Writer so
// AsyncSink can serve as a Sink directly.
func (s *AsyncSink) Write(p []byte) (int, error) {
	s.mu.Lock()

	mibTriggered := false
	if s.maxLogMB > 0 && int(s.bytesSinceReset>>20) >= s.maxLogMB {
		s.bytesSinceReset = 0
		mibTriggered = true
	}

	if s.active.available() <= len(p) || mibTriggered {
		s.full = append(s.full, s.active)
		if s.standby != nil {
			s.active = s.standby
			s.standby = nil
		} else {
			s.active = newLargeBuffer()
		}
		s.wakeLocked()
	}

	s.active.append(p)
	s.bytesSinceReset += int64(len(p))
	s.totalWrite++
	s.mu.Unlock()
	return len(p), nil
}

// Flush is a best-effort nudge: it wakes the writer and returns without
// waiting for the drain to complete, since the Sink interface commit
// path must never block a producer on disk I/O. Callers that need a
// durable flush (FATAL handling, Shutdown) use flushSync followed by
// Stop instead.
func (s *AsyncSink) Flush() error {
	s.wake()
	return nil
}

// flushSync forces the active buffer into the write queue, wakes the
// writer and yields for about a millisecond. It does not wait for the
// drain or the file flush to complete; Shutdown and FATAL record
// commits follow it with Stop, which blocks until the writer has
// drained the queue and flushed the file.
func (s *AsyncSink) flushSync() {
	s.mu.Lock()
	if s.active.len() > 0 {
		s.full = append(s.full, s.active)
		if s.standby != nil {
			s.active = s.standby
			s.standby = nil
		} else {
			s.active = newLargeBuffer()
		}
	}
	s.mu.Unlock()

	s.wake()

	// Give the writer goroutine one scheduling quantum to drain; this
	// sink has no explicit ack channel for a single flush cycle, so
	// Shutdown additionally calls Stop, which does block until drained.
	time.Sleep(time.Millisecond)
}

// Rotate forces the file manager to close the current file and open a
// new one on the writer goroutine's next drain cycle, independent of
// the size and day-boundary triggers. It returns once the request has
// been queued, not once the roll has actually happened.
func (s *AsyncSink) Rotate() {
	s.mu.Lock()
	s.rotateRequested = true
	if s.active.len() > 0 {
		s.full = append(s.full, s.active)
		if s.standby != nil {
			s.active = s.standby
			s.standby = nil
		} else {
			s.active = newLargeBuffer()
		}
	}
	s.wakeLocked()
	s.mu.Unlock()
}

func (s *AsyncSink) wake() {
	s.mu.Lock()
	s.wakeLocked()
	s.mu.Unlock()
}

// wakeLocked must be called with s.mu held.
func (s *AsyncSink) wakeLocked() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// writerLoop is the sink's single consumer: it waits once per
// iteration for a signal or a flushEvery timeout, then drains whatever
// has queued and writes it to the file manager, reapplying the
// drop-excess policy when the queue has grown past maxPendingBuffers.
// running is rechecked immediately after every wakeup, not only once
// per outer iteration, so Stop is observed promptly instead of after an
// extra wait.
func (s *AsyncSink) writerLoop() {
	defer close(s.done)

	spare1 := newLargeBuffer()
	spare2 := newLargeBuffer()

	for {
		s.mu.Lock()
		if len(s.full) == 0 && s.running {
			s.mu.Unlock()
			select {
			case <-s.signal:
			case <-time.After(s.flushEvery):
			}
			s.mu.Lock()
		}

		if len(s.full) == 0 && !s.running {
			s.mu.Unlock()
			s.fm.flush()
			return
		}

		// Timeout path: if nothing queued but the active buffer has
		// data, rotate it in so periodic flush makes progress even
		// under light load.
		if len(s.full) == 0 && s.active.len() > 0 {
			s.full = append(s.full, s.active)
			if spare1 != nil {
				s.active = spare1
				spare1 = nil
			} else {
				s.active = newLargeBuffer()
			}
		}

		toWrite := s.full
		s.full = nil
		if s.standby == nil {
			if spare2 != nil {
				s.standby = spare2
				spare2 = nil
			} else {
				s.standby = newLargeBuffer()
			}
		}
		running := s.running
		rotate := s.rotateRequested
		s.rotateRequested = false
		s.mu.Unlock()

		if len(toWrite) == 0 {
			if rotate {
				if err := s.fm.roll(now()); err != nil {
					s.fm.reportError("rotate", err)
				}
			}
			if !running {
				s.fm.flush()
				return
			}
			continue
		}

		if len(toWrite) > maxPendingBuffers {
			s.dropped += uint64(len(toWrite) - 2)
			notice := fmt.Sprintf("Dropped log messages at %s, %d larger buffers\n",
				now().Format("2006-01-02 15:04:05"), len(toWrite)-2)
			os.Stderr.Write([]byte(notice))
			s.fm.append([]byte(notice), now())
			toWrite = toWrite[:2]
		}

		t := now()
		for _, b := range toWrite {
			s.fm.append(b.bytes(), t)
		}

		if rotate {
			if err := s.fm.roll(t); err != nil {
				s.fm.reportError("rotate", err)
			}
		}

		// Replenish the two spares from the tail of what was just
		// written, mirroring the original's buffer reuse instead of
		// letting the garbage collector churn through 4MB allocations.
		for len(toWrite) > 0 && (spare1 == nil || spare2 == nil) {
			b := toWrite[len(toWrite)-1]
			toWrite = toWrite[:len(toWrite)-1]
			b.reset()
			if spare1 == nil {
				spare1 = b
			} else {
				spare2 = b
			}
		}
		for _, b := range toWrite {
			b.release()
		}

		s.fm.flush()

		if !running {
			return
		}
	}
}

// Stats is a point-in-time telemetry snapshot, a supplemental
// convenience beyond the spec's core semantics.
type Stats struct {
	Dropped     uint64
	TotalWrites uint64
	PendingFull int
	ActiveBytes int
}

// Stats reports the sink's current counters.
func (s *AsyncSink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Dropped:     s.dropped,
		TotalWrites: s.totalWrite,
		PendingFull: len(s.full),
		ActiveBytes: s.active.len(),
	}
}

// Close flushes and closes the backing file manager. Callers should
// Stop the writer goroutine first.
func (s *AsyncSink) Close() error {
	return s.fm.close()
}

var _ io.Writer = (*AsyncSink)(nil)
