package downloader

import "strings"

// Quality presets accepted by the download endpoint.
const (
	QualityBest  = "best"
	QualityWorst = "worst"
	QualityAudio = "audio"
	QualityVideo = "video"
)

// Selector is the engine-level description of what to fetch.
type Selector struct {
	Format       string
	MergeFormat  string
	ExtractAudio bool
	AudioCodec   string
	AudioQuality string
}

// String is the label stored on jobs.
func (s Selector) String() string {
	return s.Format
}

// Ext is the extension the output will have when it can be known up front.
func (s Selector) Ext() string {
	switch {
	case s.ExtractAudio:
		return s.AudioCodec
	case s.MergeFormat != "":
		return s.MergeFormat
	}
	return ""
}

// SelectorFor maps the API's format_id / quality pair to a Selector. An
// explicit format id always wins; unknown qualities fall back to best.
func SelectorFor(formatID, quality string) Selector {
	if formatID = strings.TrimSpace(formatID); formatID != "" {
		return Selector{Format: formatID}
	}

	switch strings.ToLower(strings.TrimSpace(quality)) {
	case QualityAudio:
		return Selector{
			Format:       "bestaudio/best",
			ExtractAudio: true,
			AudioCodec:   "mp3",
			AudioQuality: "192",
		}
	case QualityVideo:
		return Selector{Format: "bestvideo/best"}
	case QualityWorst:
		return Selector{Format: "worst"}
	default:
		return Selector{Format: "bestvideo+bestaudio/best", MergeFormat: "mp4"}
	}
}

// DirectSelector is used by the synchronous endpoint: audio-only ids are
// converted to mp3.
func DirectSelector(formatID string) Selector {
	s := Selector{Format: formatID}
	if formatID == "140" || formatID == "251" || strings.Contains(formatID, "audio") {
		s.ExtractAudio = true
		s.AudioCodec = "mp3"
		s.AudioQuality = "192"
	}
	return s
}
