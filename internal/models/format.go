package models

// FormatType groups formats by the tracks they carry.
type FormatType string

const (
	TypeVideoAudio FormatType = "video+audio"
	TypeVideo      FormatType = "video"
	TypeAudio      FormatType = "audio"
)

// FormatRecord is the simplified format entry returned to clients.
type FormatRecord struct {
	ID         string     `json:"id"`
	Ext        string     `json:"ext"`
	Resolution string     `json:"resolution"`
	SizeMB     float64    `json:"size_mb"`
	Type       FormatType `json:"type"`
	Quality    string     `json:"quality"`
	FPS        *float64   `json:"fps"`
	VCodec     string     `json:"vcodec"`
	ACodec     string     `json:"acodec"`
	Bitrate    *float64   `json:"bitrate"`
	Filesize   int64      `json:"filesize"`
	Height     int        `json:"-"`
	Width      int        `json:"-"`
}
