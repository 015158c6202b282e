package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds  int
		expected string
	}{
		{0, "00:00"},
		{-5, "00:00"},
		{30, "00:30"},
		{90, "01:30"},
		{3600, "01:00:00"},
		{3661, "01:01:01"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, FormatDuration(test.seconds), "seconds=%d", test.seconds)
	}
}

func TestNewVideoMetadata_Defaults(t *testing.T) {
	meta := NewVideoMetadata(&RawInfo{Duration: 212.7})

	assert.Equal(t, "Untitled", meta.Title)
	assert.Equal(t, "Unknown", meta.Author)
	assert.Equal(t, 212, meta.Duration)
	assert.Equal(t, "03:32", meta.DurationFormatted)
	assert.Zero(t, meta.ViewCount)
	assert.Zero(t, meta.LikeCount)
	assert.Empty(t, meta.Description)
	assert.NotNil(t, meta.Categories)
}

func TestNewVideoMetadata_Counts(t *testing.T) {
	views, likes := int64(1200), int64(34)
	meta := NewVideoMetadata(&RawInfo{
		Title:      "Clip",
		Uploader:   "Channel",
		ViewCount:  &views,
		LikeCount:  &likes,
		UploadDate: "20240131",
	})

	assert.Equal(t, int64(1200), meta.ViewCount)
	assert.Equal(t, int64(34), meta.LikeCount)
	assert.Equal(t, "20240131", meta.UploadDate)
}

func TestNewVideoMetadata_TruncatesDescription(t *testing.T) {
	long := strings.Repeat("é", DescriptionLimit+50)
	meta := NewVideoMetadata(&RawInfo{Description: long})

	assert.True(t, strings.HasSuffix(meta.Description, "..."))
	assert.Equal(t, DescriptionLimit+3, len([]rune(meta.Description)))
}

func TestRawFormatBytes(t *testing.T) {
	size, approx := float64(1000), float64(2000)

	assert.Equal(t, int64(1000), RawFormat{FileSize: &size, FileSizeApprox: &approx}.Bytes())
	assert.Equal(t, int64(2000), RawFormat{FileSizeApprox: &approx}.Bytes())
	assert.Zero(t, RawFormat{}.Bytes())
}

func TestJobStatusIsFinished(t *testing.T) {
	assert.False(t, JobProcessing.IsFinished())
	assert.True(t, JobCompleted.IsFinished())
	assert.True(t, JobError.IsFinished())
}

func TestDownloadJobElapsed(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	job := DownloadJob{StartedAt: start}

	assert.Equal(t, 5*time.Second, job.Elapsed(start.Add(5*time.Second)))

	done := start.Add(2 * time.Second)
	job.FinishedAt = &done
	assert.Equal(t, 2*time.Second, job.Elapsed(start.Add(time.Minute)))
}
