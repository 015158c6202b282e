package downloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytdl-api/internal/apperr"
)

// fakeYtDlp writes a shell script standing in for the yt-dlp binary.
func fakeYtDlp(t *testing.T, body string) *YtDlp {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return NewYtDlp(path)
}

// writesOutput resolves the --output template the way yt-dlp would, using
// mp3 when audio extraction was requested, and leaves a partial file behind.
const writesOutput = `
out=""
ext=mp4
while [ $# -gt 0 ]; do
	case "$1" in
	--output) out="$2"; shift ;;
	--extract-audio) ext=mp3 ;;
	esac
	shift
done
out=$(printf '%s' "$out" | sed "s/%(ext)s/$ext/")
printf 'media-bytes' > "$out"
printf 'x' > "$out.part"
`

func TestYtDlpInfo(t *testing.T) {
	y := fakeYtDlp(t, `echo '{"id":"abc","title":"Clip","duration":90,"formats":[{"format_id":"18","ext":"mp4","vcodec":"avc1","acodec":"mp4a"}]}'`)

	info, err := y.Info(context.Background(), "https://youtu.be/abc", Options{Quiet: true})
	require.NoError(t, err)
	assert.Equal(t, "abc", info.ID)
	assert.Equal(t, "Clip", info.Title)
	require.Len(t, info.Formats, 1)
	assert.Equal(t, "18", info.Formats[0].FormatID)
}

func TestYtDlpInfo_Errors(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		expected error
		message  string
	}{
		{
			name:     "unsupported url",
			script:   "echo 'ERROR: Unsupported URL: https://example.com/x' >&2; exit 1",
			expected: apperr.ErrInvalidURL,
			message:  "Unsupported URL: https://example.com/x",
		},
		{
			name:     "unavailable video",
			script:   "echo 'WARNING: retrying' >&2; echo 'ERROR: [youtube] abc: Video unavailable' >&2; exit 1",
			expected: apperr.ErrExtraction,
			message:  "[youtube] abc: Video unavailable",
		},
		{
			name:     "garbage output",
			script:   "echo 'not json'",
			expected: apperr.ErrExtraction,
			message:  "unreadable extractor output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fakeYtDlp(t, tt.script).Info(context.Background(), "https://example.com/x", Options{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)
			assert.Equal(t, tt.message, apperr.Message(err))
		})
	}
}

func TestYtDlpInfo_DeadlineKillsProcess(t *testing.T) {
	y := fakeYtDlp(t, "exec sleep 10")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := y.Info(ctx, "https://youtu.be/abc", Options{})
	assert.ErrorIs(t, err, apperr.ErrTimeout)
	assert.Less(t, time.Since(started), 3*time.Second)
}

func TestYtDlpDownload(t *testing.T) {
	tests := []struct {
		name     string
		selector Selector
		expected string
	}{
		{name: "format id", selector: SelectorFor("18", ""), expected: "clip.mp4"},
		{name: "merged best", selector: SelectorFor("", QualityBest), expected: "clip.mp4"},
		{name: "audio extraction", selector: SelectorFor("", QualityAudio), expected: "clip.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			rec := &recordingProgress{}

			path, err := fakeYtDlp(t, writesOutput).Download(context.Background(), Request{
				URL:       "https://youtu.be/abc",
				Selector:  tt.selector,
				OutputDir: dir,
				Filename:  "clip",
			}, rec)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tt.expected), path)
			assert.Equal(t, path, rec.finished)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "media-bytes", string(data))
		})
	}
}

func TestYtDlpDownload_NoOutput(t *testing.T) {
	rec := &recordingProgress{}
	_, err := fakeYtDlp(t, "exit 0").Download(context.Background(), Request{
		URL:       "https://youtu.be/abc",
		Selector:  SelectorFor("18", ""),
		OutputDir: t.TempDir(),
		Filename:  "clip",
	}, rec)
	assert.ErrorIs(t, err, apperr.ErrExtraction)
	assert.Empty(t, rec.finished)
}

func TestYtDlpDownload_DeadlineKillsProcess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := fakeYtDlp(t, "exec sleep 10").Download(ctx, Request{
		URL:       "https://youtu.be/abc",
		Selector:  SelectorFor("18", ""),
		OutputDir: t.TempDir(),
		Filename:  "clip",
	}, nil)
	assert.ErrorIs(t, err, apperr.ErrTimeout)
	assert.Less(t, time.Since(started), 3*time.Second)
}
