// codec.go: pluggable compression applied to rotated log files.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package halcyon

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// codec compresses and decompresses a byte stream end to end. Every
// implementation must round-trip through Decompress(Compress(x)) == x;
// a codec that cannot guarantee that falls back to identity rather than
// risk corrupting a rotated file.
type codec interface {
	name() string
	extension() string
	compress(dst io.Writer, src io.Reader) error
	decompress(dst io.Writer, src io.Reader) error
}

// newCodec resolves a Config.Codec string to a codec implementation.
func newCodec(name string) (codec, error) {
	switch name {
	case "", "none":
		return identityCodec{}, nil
	case "lz4":
		return s2Codec{}, nil
	case "zstd":
		return zstdCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// identityCodec performs no transformation; used when compression is
// disabled or as the fallback when a real codec fails.
type identityCodec struct{}

func (identityCodec) name() string      { return "none" }
func (identityCodec) extension() string { return "" }
func (identityCodec) compress(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}
func (identityCodec) decompress(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

// s2Codec stands in for the original's LZ4 fast-path compressor: S2 is
// klauspost/compress's LZ4-class format, tuned for speed over ratio,
// and no LZ4 binding was available anywhere in the retrieved pack.
type s2Codec struct{}

func (s2Codec) name() string      { return "lz4" }
func (s2Codec) extension() string { return ".lz4" }

func (s2Codec) compress(dst io.Writer, src io.Reader) error {
	w := s2.NewWriter(dst)
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (s2Codec) decompress(dst io.Writer, src io.Reader) error {
	r := s2.NewReader(src)
	_, err := io.Copy(dst, r)
	return err
}

// zstdCodec stands in for the original's ZSTD high-ratio path.
type zstdCodec struct{}

func (zstdCodec) name() string      { return "zstd" }
func (zstdCodec) extension() string { return ".zst" }

func (zstdCodec) compress(dst io.Writer, src io.Reader) error {
	w, err := zstd.NewWriter(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (zstdCodec) decompress(dst io.Writer, src io.Reader) error {
	r, err := zstd.NewReader(src)
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(dst, r)
	return err
}

// compressRotatedFile compresses path in place using c, writing to a
// temporary file and renaming over the target only on success, so a
// crash mid-compression never leaves a half-written or missing log
// file. On any failure, the original uncompressed file is left intact
// and the original path is returned unchanged.
func compressRotatedFile(path string, c codec) (string, error) {
	if c == nil {
		return path, nil
	}
	if _, ok := c.(identityCodec); ok {
		return path, nil
	}

	in, err := os.Open(path)
	if err != nil {
		return path, err
	}
	defer in.Close()

	tmpPath := path + c.extension() + ".tmp"
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, GetDefaultFileMode())
	if err != nil {
		return path, err
	}

	if err := c.compress(out, in); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return path, err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return path, err
	}

	finalPath := path + c.extension()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return path, err
	}
	if err := os.Remove(path); err != nil {
		return finalPath, err
	}

	return finalPath, nil
}
