// clock.go: process-wide cached clock, shared by the record builder and
// the file manager.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package halcyon

import (
	"sync"
	"sync/atomic"
	"time"

	timecache "github.com/agilira/go-timecache"
)

var (
	clockOnce  sync.Once
	sharedClock *timecache.TimeCache
)

// now returns the process-wide cached time, millisecond resolution. The
// cache is started lazily on first use and lives for the process
// lifetime; Shutdown does not stop it, since a second Init after a
// Shutdown must be able to reuse it.
func now() time.Time {
	clockOnce.Do(func() {
		sharedClock = timecache.NewWithResolution(time.Millisecond)
	})
	return sharedClock.CachedTime()
}

// cachedPrefixEntry is the per-second formatted date/time prefix described in
// spec.md §4.2: "a thread-local (last_second, formatted_prefix[17]) pair
// refreshed only when the current second differs". Go has no portable
// thread-local storage, so this cache is process-wide rather than
// per-goroutine; see DESIGN.md for the tradeoff. It is correct either
// way (worst case, a second-boundary race recomputes the prefix once
// more than strictly necessary), just not bit-for-bit the same sharing
// granularity as the C++ original.
type cachedPrefixEntry struct {
	second int64
	prefix [17]byte
}

var datePrefixCache atomic.Pointer[cachedPrefixEntry]

// datePrefix returns the 17-byte "YYYYMMDD HH:MM:SS" prefix for t,
// recomputing only when the wall-clock second has advanced since the
// last call from any goroutine.
func datePrefix(t time.Time) [17]byte {
	sec := t.Unix()
	if e := datePrefixCache.Load(); e != nil && e.second == sec {
		return e.prefix
	}
	var p [17]byte
	copy(p[:], t.Format("20060102 15:04:05"))
	datePrefixCache.Store(&cachedPrefixEntry{second: sec, prefix: p})
	return p
}
