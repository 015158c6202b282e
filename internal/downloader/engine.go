// Package downloader adapts external extraction engines to the service.
// Engines return the engine's full metadata record unmodified and write
// downloads into a caller-owned directory; shaping happens elsewhere.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ytdl-api/internal/apperr"
	"ytdl-api/internal/models"
)

// Engine is an extraction backend.
type Engine interface {
	// Info resolves url to the engine's metadata record.
	Info(ctx context.Context, url string, opts Options) (*models.RawInfo, error)
	// Download writes the selected stream(s) into req.OutputDir and returns the
	// final file path.
	Download(ctx context.Context, req Request, progress Progress) (string, error)
}

// Options are passed through to the engine on every call.
type Options struct {
	Quiet                    bool
	Timeout                  time.Duration
	FlatExtraction           bool
	UserAgent                string
	GeoBypass                bool
	SkipUnavailableFragments bool
	Retries                  int
}

// Request describes one download.
type Request struct {
	URL       string
	Selector  Selector
	OutputDir string
	// Filename is the output base name without extension; empty means the
	// video title.
	Filename string
	Options  Options
}

// Progress receives download progress. Update may be called from engine
// goroutines; Finished is called at most once with the final path.
type Progress interface {
	Update(downloaded, total int64)
	Finished(path string)
}

type noProgress struct{}

func (noProgress) Update(int64, int64) {}
func (noProgress) Finished(string)     {}

func progressOrNoop(p Progress) Progress {
	if p == nil {
		return noProgress{}
	}
	return p
}

// classify turns an engine failure into an apperr kind. A context deadline
// always wins so callers can tell timeouts from extraction failures.
func classify(ctx context.Context, op string, msg string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindTimeout, op+" timed out", err)
	}
	if msg == "" {
		msg = err.Error()
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "unsupported url"),
		strings.Contains(lower, "is not a valid url"),
		strings.Contains(lower, "invalid url"),
		strings.Contains(lower, "invalid characters in video id"),
		strings.Contains(lower, "cannot extract video id"):
		return apperr.Wrap(apperr.KindInvalidURL, msg, err)
	}
	return apperr.Wrap(apperr.KindExtraction, msg, err)
}

// lastError picks the most relevant line of engine stderr output.
func lastError(stderr string) string {
	var last string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
		last = line
	}
	return last
}

// locateOutput returns the largest finished file in dir.
func locateOutput(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read output dir: %w", err)
	}

	var best string
	var bestSize int64 = -1
	for _, e := range entries {
		if e.IsDir() || isPartial(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = filepath.Join(dir, e.Name()), info.Size()
		}
	}
	if best == "" {
		return "", fmt.Errorf("no file was downloaded")
	}
	if bestSize == 0 {
		return "", fmt.Errorf("generated file is empty")
	}
	return best, nil
}

func isPartial(name string) bool {
	for _, suffix := range []string{".part", ".ytdl", ".temp", ".tmp"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return strings.HasPrefix(name, ".")
}

// SanitizeFilename strips characters that are unsafe in file names.
func SanitizeFilename(name string) string {
	safe := strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	safe = strings.Map(func(r rune) rune {
		if r < 32 || strings.ContainsRune(`\/:*?"<>|`, r) {
			return -1
		}
		return r
	}, safe)
	safe = strings.Trim(safe, ".")
	if len([]rune(safe)) > 100 {
		safe = string([]rune(safe)[:100])
	}
	return safe
}
