// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package halcyon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestManager(t *testing.T, mutate func(*Config)) *fileManager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.LogDir = t.TempDir()
	cfg.FilePrefix = "test"
	cfg.MaxFiles = 3
	if mutate != nil {
		mutate(cfg)
	}
	m, err := newFileManager(cfg)
	if err != nil {
		t.Fatalf("newFileManager: %v", err)
	}
	t.Cleanup(func() { _ = m.close() })
	return m
}

func TestFileManagerAppendWritesToCurrentFile(t *testing.T) {
	m := newTestManager(t, nil)
	m.append([]byte("line one\n"), now())
	m.flush()

	data, err := os.ReadFile(m.curPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "line one\n" {
		t.Fatalf("file contents = %q", data)
	}
}

func TestFileManagerRollsOnSize(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.MaxLogSizeMB = 1 })
	m.maxBytes = 16 // override after construction for a fast test

	first := m.curPath
	m.append(make([]byte, 20), now())

	if m.curPath == first {
		t.Fatal("expected a rotation to a new file once the size threshold was exceeded")
	}
}

func TestFileManagerRollsOnDayBoundary(t *testing.T) {
	m := newTestManager(t, nil)
	first := m.curPath

	tomorrow := now().Add(25 * time.Hour)
	m.append([]byte("x"), tomorrow)

	if m.curPath == first {
		t.Fatal("expected a rotation across the day boundary")
	}
}

func TestFileManagerEvictsOldestBeyondMaxFiles(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.MaxFiles = 2 })

	var paths []string
	paths = append(paths, m.curPath)
	for i := 0; i < 3; i++ {
		if err := m.roll(now().Add(time.Duration(i+1) * time.Second)); err != nil {
			t.Fatalf("roll: %v", err)
		}
		paths = append(paths, m.curPath)
	}

	if len(m.existing) > 2 {
		t.Fatalf("retained %d files, want at most 2", len(m.existing))
	}
	if _, err := os.Stat(paths[0]); !os.IsNotExist(err) {
		t.Fatalf("expected oldest file %s to be evicted", paths[0])
	}
}

func TestFileManagerEvictsByAge(t *testing.T) {
	m := newTestManager(t, func(c *Config) {
		c.MaxFiles = 10
		c.MaxFileAge = time.Hour
	})

	oldPath := m.curPath
	if err := m.roll(now().Add(time.Second)); err != nil {
		t.Fatalf("roll: %v", err)
	}

	old := now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldPath, old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	if err := m.roll(now().Add(2 * time.Second)); err != nil {
		t.Fatalf("roll: %v", err)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected file older than MaxFileAge to be evicted, got err=%v", err)
	}
}

func TestFileManagerEvictByAgeDisabledByDefault(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.MaxFiles = 10 })

	oldPath := m.curPath
	old := now().Add(-24 * time.Hour)
	if err := os.Chtimes(oldPath, old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	if err := m.roll(now().Add(time.Second)); err != nil {
		t.Fatalf("roll: %v", err)
	}

	if _, err := os.Stat(oldPath); err != nil {
		t.Fatalf("expected age-based eviction to stay disabled with zero MaxFileAge, got: %v", err)
	}
}

func TestFileManagerChecksumSidecar(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.Checksum = true })
	m.append([]byte("payload\n"), now())
	closedPath := m.curPath

	if err := m.roll(now().Add(time.Second)); err != nil {
		t.Fatalf("roll: %v", err)
	}

	if _, err := os.Stat(closedPath + ".sha256"); err != nil {
		t.Fatalf("expected checksum sidecar for %s: %v", closedPath, err)
	}
}

func TestNamePatternMatchesOwnFilesOnly(t *testing.T) {
	pat := namePattern("app")
	if !pat.MatchString("app_20260101_120000.000.log") {
		t.Fatal("expected pattern to match a well-formed name")
	}
	if !pat.MatchString("app_20260101_120000.000.log.sha256") {
		t.Fatal("expected pattern to match a checksum sidecar")
	}
	if pat.MatchString("application_20260101_120000.000.log") {
		t.Fatal("expected pattern to reject a name that merely contains the prefix")
	}
}

func TestFileManagerScanExistingResumesOrdering(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.LogDir = dir
	cfg.FilePrefix = "svc"
	cfg.MaxFiles = 5

	writeStub := func(name string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	writeStub("svc_20260101_000000.000.log")
	writeStub("svc_20260102_000000.000.log")

	m, err := newFileManager(cfg)
	if err != nil {
		t.Fatalf("newFileManager: %v", err)
	}
	defer m.close()

	if len(m.existing) < 2 {
		t.Fatalf("expected scanExisting to pick up preexisting files, got %d", len(m.existing))
	}
	if filepath.Base(m.existing[0]) != "svc_20260101_000000.000.log" || filepath.Base(m.existing[1]) != "svc_20260102_000000.000.log" {
		t.Fatalf("expected preexisting files oldest first, got %v", m.existing[:2])
	}
}
