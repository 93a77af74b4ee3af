// Package logfile reads log files line by line for the triage engine.
// Plain, gzip and zstd compressed files are supported; content is decoded
// as UTF-8 with invalid sequences replaced by U+FFFD.
package logfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/olegiv/logtriage-go/internal/analyzer"
)

// Compile-time interface check
var _ analyzer.LineReader = (*Reader)(nil)

// ErrLogNotFound is the analyzer sentinel, re-exported for callers that only
// import this package.
var ErrLogNotFound = analyzer.ErrLogNotFound

const (
	// DefaultMaxLines is the number of lines read before the rest of a file is ignored.
	DefaultMaxLines = 200000

	// maxLineBytes bounds a single line; longer lines fail the read.
	maxLineBytes = 10 * 1024 * 1024

	cancelCheckEvery = 4096
)

// Compression identifies how a log file is stored on disk.
type Compression string

// Supported compressions, chosen by file extension.
const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// DetectCompression returns the compression implied by path's extension.
func DetectCompression(path string) Compression {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		return CompressionGzip
	case strings.HasSuffix(lower, ".zst"), strings.HasSuffix(lower, ".zstd"):
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// Reader reads log files as lines.
// Implements analyzer.LineReader interface.
type Reader struct {
	maxLines  int
	maxSizeMB int
}

// NewReader creates a new log file reader. maxLines <= 0 uses
// DefaultMaxLines; maxSizeMB <= 0 disables the on-disk size check.
func NewReader(maxLines, maxSizeMB int) *Reader {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return &Reader{
		maxLines:  maxLines,
		maxSizeMB: maxSizeMB,
	}
}

// MaxLines returns the line cap applied by ReadLines.
func (r *Reader) MaxLines() int {
	return r.maxLines
}

// ReadLines implements analyzer.LineReader.ReadLines.
// Lines are split on "\n" with one trailing "\r" removed. Lines past the
// cap are ignored without error.
func (r *Reader) ReadLines(ctx context.Context, path string) ([]string, error) {
	if _, err := r.checkFile(path); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	src, closeSrc, err := decompress(file, DetectCompression(path))
	if err != nil {
		return nil, err
	}
	defer closeSrc()

	decoded := transform.NewReader(src, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	scanner := bufio.NewScanner(decoded)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lines := make([]string, 0, 1024)
	for scanner.Scan() {
		if len(lines) >= r.maxLines {
			break
		}
		if len(lines)%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("reading log file interrupted: %w", err)
			}
		}
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file %s: %w", path, err)
	}

	return lines, nil
}

// checkFile validates that path is an existing, readable regular file
// within the size limit.
func (r *Reader) checkFile(path string) (os.FileInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLogNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	if fileInfo.IsDir() {
		return nil, fmt.Errorf("log path is a directory: %s", path)
	}

	if fileInfo.Mode().Perm()&0400 == 0 {
		return nil, fmt.Errorf("log file is not readable: %s", path)
	}

	if r.maxSizeMB > 0 {
		maxBytes := int64(r.maxSizeMB) * 1024 * 1024
		if fileInfo.Size() > maxBytes {
			return nil, fmt.Errorf("log file exceeds maximum size of %dMB (size: %.2fMB)",
				r.maxSizeMB, float64(fileInfo.Size())/1024/1024)
		}
	}

	return fileInfo, nil
}

func decompress(file io.Reader, compression Compression) (io.Reader, func(), error) {
	switch compression {
	case CompressionGzip:
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		return dec, dec.Close, nil
	default:
		return file, func() {}, nil
	}
}

// GetSourceInfo implements analyzer.LineReader.GetSourceInfo.
// Returns metadata about the log file.
func (r *Reader) GetSourceInfo(path string) (map[string]interface{}, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLogNotFound, path)
		}
		return nil, err
	}

	info := map[string]interface{}{
		"size_bytes":  fileInfo.Size(),
		"size_mb":     float64(fileInfo.Size()) / 1024 / 1024,
		"modified":    fileInfo.ModTime(),
		"age_hours":   time.Since(fileInfo.ModTime()).Hours(),
		"compression": string(DetectCompression(path)),
	}

	return info, nil
}
