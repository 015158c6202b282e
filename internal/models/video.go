package models

import (
	"fmt"
	"strings"
)

// DescriptionLimit is the number of runes of the description kept in
// VideoMetadata.
const DescriptionLimit = 200

// RawInfo mirrors the subset of the extraction engine's JSON record that the
// service reads. Both engines fill it.
type RawInfo struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Uploader    string      `json:"uploader"`
	UploaderURL string      `json:"uploader_url"`
	Duration    float64     `json:"duration"`
	Thumbnail   string      `json:"thumbnail"`
	ViewCount   *int64      `json:"view_count"`
	LikeCount   *int64      `json:"like_count"`
	UploadDate  string      `json:"upload_date"`
	Description string      `json:"description"`
	Categories  []string    `json:"categories"`
	Formats     []RawFormat `json:"formats"`
}

// RawFormat is one engine-native format entry. A codec equal to "none" means
// the track is absent; an empty codec means unknown.
type RawFormat struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	Width          *int     `json:"width"`
	Height         *int     `json:"height"`
	FPS            *float64 `json:"fps"`
	VCodec         string   `json:"vcodec"`
	ACodec         string   `json:"acodec"`
	FileSize       *float64 `json:"filesize"`
	FileSizeApprox *float64 `json:"filesize_approx"`
	FormatNote     string   `json:"format_note"`
	ABR            *float64 `json:"abr"`
	TBR            *float64 `json:"tbr"`
}

// Bytes returns filesize, then filesize_approx, then 0.
func (f RawFormat) Bytes() int64 {
	if f.FileSize != nil && *f.FileSize > 0 {
		return int64(*f.FileSize)
	}
	if f.FileSizeApprox != nil && *f.FileSizeApprox > 0 {
		return int64(*f.FileSizeApprox)
	}
	return 0
}

// VideoMetadata is the client-facing summary of a video.
type VideoMetadata struct {
	Title             string   `json:"title"`
	Author            string   `json:"author"`
	ChannelURL        string   `json:"channel_url"`
	Duration          int      `json:"duration"`
	DurationFormatted string   `json:"duration_formatted"`
	Thumbnail         string   `json:"thumbnail"`
	ViewCount         int64    `json:"view_count"`
	LikeCount         int64    `json:"like_count"`
	UploadDate        string   `json:"upload_date"`
	Description       string   `json:"description"`
	Categories        []string `json:"categories"`
}

// NewVideoMetadata builds the summary from a raw record.
func NewVideoMetadata(info *RawInfo) VideoMetadata {
	duration := int(info.Duration)
	if duration < 0 {
		duration = 0
	}

	meta := VideoMetadata{
		Title:             orDefault(info.Title, "Untitled"),
		Author:            orDefault(info.Uploader, "Unknown"),
		ChannelURL:        info.UploaderURL,
		Duration:          duration,
		DurationFormatted: FormatDuration(duration),
		Thumbnail:         info.Thumbnail,
		UploadDate:        info.UploadDate,
		Description:       truncateDescription(info.Description),
		Categories:        info.Categories,
	}
	if info.ViewCount != nil && *info.ViewCount > 0 {
		meta.ViewCount = *info.ViewCount
	}
	if info.LikeCount != nil && *info.LikeCount > 0 {
		meta.LikeCount = *info.LikeCount
	}
	if meta.Categories == nil {
		meta.Categories = []string{}
	}
	return meta
}

// FormatDuration renders seconds as MM:SS, or HH:MM:SS past an hour.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "00:00"
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

func truncateDescription(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) > DescriptionLimit {
		runes = runes[:DescriptionLimit]
	}
	return strings.TrimRight(string(runes), " ") + "..."
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
