// filewriter.go: FileWriter, a single open log file plus its OS-level
// write buffer.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package halcyon

import (
	"bufio"
	"os"
)

// writerBufSize is the bufio buffer fronting the open file, matching
// the original's setbuffer-based 64KiB staging area.
const writerBufSize = 64 * 1024

// fileWriter owns one open *os.File and the buffered writer in front of
// it. It tracks how many bytes have been written since the file was
// opened so the file manager can decide when to roll without a stat
// call on every append.
type fileWriter struct {
	file    *os.File
	buf     *bufio.Writer
	written int64
}

// openFileWriter opens (creating if necessary) path for append and
// wraps it in a writerBufSize bufio.Writer. Failure to open is not
// fatal to the caller: FileManager treats a nil fileWriter as "writes
// are silently dropped until the next roll attempt", matching the
// original's behavior of continuing rather than crashing when a log
// file cannot be opened.
func openFileWriter(path string) (*fileWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, GetDefaultFileMode())
	if err != nil {
		return nil, err
	}
	return &fileWriter{
		file: f,
		buf:  bufio.NewWriterSize(f, writerBufSize),
	}, nil
}

// append writes p into the buffered writer and accounts the bytes
// toward the rotation threshold, regardless of whether the bytes have
// reached disk yet.
func (w *fileWriter) append(p []byte) error {
	n, err := w.buf.Write(p)
	w.written += int64(n)
	return err
}

// flush pushes buffered bytes to the OS, then asks the OS to persist
// them, mirroring the original's explicit fflush+fsync-on-roll pairing.
func (w *fileWriter) flush() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// close flushes and closes the underlying file.
func (w *fileWriter) close() error {
	ferr := w.buf.Flush()
	cerr := w.file.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}

// bytesWritten reports bytes accepted since the writer was opened.
func (w *fileWriter) bytesWritten() int64 {
	return w.written
}
