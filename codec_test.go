// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package halcyon

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 200)

	for _, name := range []string{"none", "lz4", "zstd"} {
		t.Run(name, func(t *testing.T) {
			c, err := newCodec(name)
			if err != nil {
				t.Fatalf("newCodec(%q): %v", name, err)
			}

			var compressed bytes.Buffer
			if err := c.compress(&compressed, bytes.NewReader(payload)); err != nil {
				t.Fatalf("compress: %v", err)
			}

			var decompressed bytes.Buffer
			if err := c.decompress(&decompressed, bytes.NewReader(compressed.Bytes())); err != nil {
				t.Fatalf("decompress: %v", err)
			}

			if !bytes.Equal(decompressed.Bytes(), payload) {
				t.Fatalf("round trip mismatch for codec %q", name)
			}
		})
	}
}

func TestNewCodecRejectsUnknownName(t *testing.T) {
	if _, err := newCodec("brotli"); err == nil {
		t.Fatal("expected an error for an unrecognized codec name")
	}
}

func TestCompressRotatedFileRenamesOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rotated.log")
	if err := os.WriteFile(path, []byte("some log bytes\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := newCodec("zstd")
	if err != nil {
		t.Fatalf("newCodec: %v", err)
	}

	finalPath, err := compressRotatedFile(path, c)
	if err != nil {
		t.Fatalf("compressRotatedFile: %v", err)
	}
	if finalPath == path {
		t.Fatal("expected a renamed path with the codec's extension")
	}
	if _, err := os.Stat(finalPath); err != nil {
		t.Fatalf("expected compressed file to exist: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected original uncompressed file to be removed")
	}
}

func TestCompressRotatedFileIdentityIsNoOp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rotated.log")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	finalPath, err := compressRotatedFile(path, identityCodec{})
	if err != nil {
		t.Fatalf("compressRotatedFile: %v", err)
	}
	if finalPath != path {
		t.Fatalf("identity codec should not rename, got %q", finalPath)
	}
}
