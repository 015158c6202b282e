package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytdl-api/internal/apperr"
	"ytdl-api/internal/models"
)

func TestSelectorFor(t *testing.T) {
	tests := []struct {
		name     string
		formatID string
		quality  string
		expected Selector
	}{
		{"explicit id wins", " 18 ", "audio", Selector{Format: "18"}},
		{"best", "", "best", Selector{Format: "bestvideo+bestaudio/best", MergeFormat: "mp4"}},
		{"unknown quality", "", "ultra", Selector{Format: "bestvideo+bestaudio/best", MergeFormat: "mp4"}},
		{"audio", "", "AUDIO", Selector{Format: "bestaudio/best", ExtractAudio: true, AudioCodec: "mp3", AudioQuality: "192"}},
		{"video", "", "video", Selector{Format: "bestvideo/best"}},
		{"worst", "", "worst", Selector{Format: "worst"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, SelectorFor(test.formatID, test.quality))
		})
	}
}

func TestSelectorExt(t *testing.T) {
	assert.Equal(t, "mp3", SelectorFor("", "audio").Ext())
	assert.Equal(t, "mp4", SelectorFor("", "best").Ext())
	assert.Equal(t, "", SelectorFor("22", "").Ext())
}

func TestDirectSelector(t *testing.T) {
	assert.True(t, DirectSelector("140").ExtractAudio)
	assert.True(t, DirectSelector("251").ExtractAudio)
	assert.True(t, DirectSelector("bestaudio").ExtractAudio)
	assert.False(t, DirectSelector("18").ExtractAudio)
	assert.Equal(t, "18", DirectSelector("18").String())
}

func TestClassify(t *testing.T) {
	t.Run("deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-ctx.Done()

		err := classify(ctx, "extraction", "", errors.New("signal: killed"))
		assert.ErrorIs(t, err, apperr.ErrTimeout)
	})

	t.Run("invalid url", func(t *testing.T) {
		err := classify(context.Background(), "extraction", "Unsupported URL: https://example.com", errors.New("exit status 1"))
		assert.ErrorIs(t, err, apperr.ErrInvalidURL)
		assert.Equal(t, "Unsupported URL: https://example.com", apperr.Message(err))
	})

	t.Run("extraction failure keeps engine message", func(t *testing.T) {
		err := classify(context.Background(), "download", "", errors.New("Video unavailable"))
		assert.ErrorIs(t, err, apperr.ErrExtraction)
		assert.Equal(t, "Video unavailable", apperr.Message(err))
	})
}

func TestLastError(t *testing.T) {
	stderr := "WARNING: something\nERROR: [youtube] abc: Private video\n\n"
	assert.Equal(t, "[youtube] abc: Private video", lastError(stderr))
	assert.Equal(t, "last line", lastError("first\nlast line\n"))
	assert.Equal(t, "", lastError(""))
}

func TestLocateOutput(t *testing.T) {
	t.Run("picks largest finished file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "small.m4a"), []byte("a"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "video.mp4"), []byte("abcdef"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "video.mp4.part"), []byte("abcdefghijkl"), 0o644))

		path, err := locateOutput(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "video.mp4"), path)
	})

	t.Run("empty dir", func(t *testing.T) {
		_, err := locateOutput(t.TempDir())
		assert.Error(t, err)
	})

	t.Run("zero byte output", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "video.mp4"), nil, 0o644))
		_, err := locateOutput(dir)
		assert.EqualError(t, err, "generated file is empty")
	})
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "My_Video_Title", SanitizeFilename("  My Video: Title? "))
	assert.Equal(t, "ab", SanitizeFilename("a/b"))
	assert.Equal(t, "", SanitizeFilename("..."))
	assert.Len(t, SanitizeFilename(strings.Repeat("x", 150)), 100)
}

func TestExtOf(t *testing.T) {
	assert.Equal(t, "mp4", extOf(`video/mp4; codecs="avc1.4d401e, mp4a.40.2"`))
	assert.Equal(t, "m4a", extOf(`audio/mp4; codecs="mp4a.40.2"`))
	assert.Equal(t, "webm", extOf(`audio/webm; codecs="opus"`))
	assert.Equal(t, "3gp", extOf("video/3gpp"))
	assert.Equal(t, "bin", extOf(""))
}

func TestParseQuality(t *testing.T) {
	assert.Equal(t, 1080, parseQuality("1080p60"))
	assert.Equal(t, 360, parseQuality("360p"))
	assert.Equal(t, 2160, parseQuality("4k"))
	assert.Equal(t, 0, parseQuality(""))
}

var nativeFormats = youtube.FormatList{
	{ItagNo: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, QualityLabel: "360p", Height: 360, Width: 640, AudioChannels: 2, ContentLength: 15728640, Bitrate: 500000},
	{ItagNo: 17, MimeType: `video/3gpp; codecs="mp4v.20.3, mp4a.40.2"`, QualityLabel: "144p", Height: 144, Width: 176, AudioChannels: 1},
	{ItagNo: 137, MimeType: `video/mp4; codecs="avc1.640028"`, QualityLabel: "1080p", Height: 1080, Width: 1920, FPS: 30},
	{ItagNo: 136, MimeType: `video/mp4; codecs="avc1.4d401f"`, QualityLabel: "720p", Height: 720, Width: 1280},
	{ItagNo: 251, MimeType: `audio/webm; codecs="opus"`, AudioQuality: "AUDIO_QUALITY_MEDIUM", Bitrate: 160000, AudioChannels: 2},
	{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, AudioQuality: "AUDIO_QUALITY_MEDIUM", Bitrate: 130000, AudioChannels: 2},
}

func TestPickFormats(t *testing.T) {
	tests := []struct {
		name      string
		selector  string
		wantVideo int
		wantAudio int
	}{
		{"itag video", "18", 18, 0},
		{"itag audio", "140", 0, 140},
		{"best merged", "bestvideo+bestaudio/best", 137, 140},
		{"best audio prefers mp4", "bestaudio/best", 0, 140},
		{"best video", "bestvideo/best", 137, 0},
		{"worst muxed", "worst", 17, 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v, a, err := pickFormats(nativeFormats, test.selector)
			require.NoError(t, err)
			if test.wantVideo == 0 {
				assert.Nil(t, v)
			} else {
				require.NotNil(t, v)
				assert.Equal(t, test.wantVideo, v.ItagNo)
			}
			if test.wantAudio == 0 {
				assert.Nil(t, a)
			} else {
				require.NotNil(t, a)
				assert.Equal(t, test.wantAudio, a.ItagNo)
			}
		})
	}

	_, _, err := pickFormats(nativeFormats, "999")
	assert.Error(t, err)
}

func TestRawFormat(t *testing.T) {
	muxed := rawFormat(nativeFormats[0])
	assert.Equal(t, "18", muxed.FormatID)
	assert.Equal(t, "mp4", muxed.Ext)
	assert.Equal(t, "avc1.42001E", muxed.VCodec)
	assert.Equal(t, "mp4a.40.2", muxed.ACodec)
	require.NotNil(t, muxed.Height)
	assert.Equal(t, 360, *muxed.Height)
	assert.Equal(t, int64(15728640), muxed.Bytes())
	require.NotNil(t, muxed.TBR)
	assert.Equal(t, 500.0, *muxed.TBR)

	videoOnly := rawFormat(nativeFormats[2])
	assert.Equal(t, "none", videoOnly.ACodec)
	require.NotNil(t, videoOnly.FPS)
	assert.Nil(t, videoOnly.FileSize)

	audio := rawFormat(nativeFormats[4])
	assert.Equal(t, "none", audio.VCodec)
	assert.Equal(t, "opus", audio.ACodec)
	assert.Equal(t, "medium", audio.FormatNote)
	assert.Nil(t, audio.Height)
}

func TestRawInfo(t *testing.T) {
	video := &youtube.Video{
		ID:          "abc",
		Title:       "Title",
		Author:      "Someone",
		ChannelID:   "UC123",
		Views:       42,
		Duration:    90 * time.Second,
		PublishDate: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
		Thumbnails: youtube.Thumbnails{
			{URL: "https://i.ytimg.com/small.jpg"},
			{URL: "https://i.ytimg.com/large.jpg"},
		},
		Formats: nativeFormats,
	}

	info := rawInfo(video)
	assert.Equal(t, "abc", info.ID)
	assert.Equal(t, "Someone", info.Uploader)
	assert.Equal(t, "https://www.youtube.com/channel/UC123", info.UploaderURL)
	assert.Equal(t, 90.0, info.Duration)
	assert.Equal(t, "20240309", info.UploadDate)
	assert.Equal(t, "https://i.ytimg.com/large.jpg", info.Thumbnail)
	require.NotNil(t, info.ViewCount)
	assert.Equal(t, int64(42), *info.ViewCount)
	assert.Len(t, info.Formats, len(nativeFormats))

	meta := models.NewVideoMetadata(info)
	assert.Equal(t, "01:30", meta.DurationFormatted)
}

type recordingProgress struct {
	updates  [][2]int64
	finished string
}

func (r *recordingProgress) Update(d, t int64) { r.updates = append(r.updates, [2]int64{d, t}) }
func (r *recordingProgress) Finished(p string) { r.finished = p }

func TestProgressOrNoop(t *testing.T) {
	assert.IsType(t, noProgress{}, progressOrNoop(nil))

	rec := &recordingProgress{}
	p := progressOrNoop(rec)
	p.Update(1, 2)
	p.Finished("x")
	assert.Equal(t, [][2]int64{{1, 2}}, rec.updates)
	assert.Equal(t, "x", rec.finished)
}
