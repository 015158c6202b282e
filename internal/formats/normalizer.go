// Package formats turns engine-native format entries into the simplified,
// sorted list returned by the API. Everything here is pure.
package formats

import (
	"fmt"
	"math"
	"slices"

	"ytdl-api/internal/models"
)

const (
	// DefaultLimit caps Normalize output when no positive limit is given.
	DefaultLimit = 15
	// MainLimit caps the short list returned by non-detailed info requests.
	MainLimit = 10

	noCodec = "none"
	bytesMB = 1024 * 1024
)

// rank orders types: muxed first, then audio-only, then video-only.
var rank = map[models.FormatType]int{
	models.TypeVideoAudio: 0,
	models.TypeAudio:      1,
	models.TypeVideo:      2,
}

// Classify derives the format type from codec fields. Only the literal
// "none" marks a missing track.
func Classify(vcodec, acodec string) models.FormatType {
	hasAudio := acodec != noCodec
	hasVideo := vcodec != noCodec
	switch {
	case hasAudio && hasVideo:
		return models.TypeVideoAudio
	case hasAudio:
		return models.TypeAudio
	default:
		return models.TypeVideo
	}
}

// Record converts one raw entry. ok is false for entries without an id.
func Record(f models.RawFormat) (models.FormatRecord, bool) {
	if f.FormatID == "" {
		return models.FormatRecord{}, false
	}

	bytes := f.Bytes()
	rec := models.FormatRecord{
		ID:         f.FormatID,
		Ext:        f.Ext,
		Resolution: "Audio",
		SizeMB:     ToMB(bytes),
		Type:       Classify(f.VCodec, f.ACodec),
		Quality:    f.FormatNote,
		FPS:        f.FPS,
		VCodec:     f.VCodec,
		ACodec:     f.ACodec,
		Filesize:   bytes,
	}
	if rec.Quality == "" {
		rec.Quality = "Standard"
	}
	if f.Height != nil && *f.Height > 0 {
		rec.Height = *f.Height
		rec.Resolution = fmt.Sprintf("%dp", *f.Height)
	}
	if f.Width != nil {
		rec.Width = *f.Width
	}
	switch {
	case f.ABR != nil && *f.ABR > 0:
		rec.Bitrate = f.ABR
	case f.TBR != nil && *f.TBR > 0:
		rec.Bitrate = f.TBR
	}
	return rec, true
}

// Normalize drops id-less entries and zero-size non-audio entries, orders the
// rest by type rank then height descending (stable), and caps the result at
// limit, or DefaultLimit when limit <= 0.
func Normalize(raw []models.RawFormat, limit int) []models.FormatRecord {
	if limit <= 0 {
		limit = DefaultLimit
	}

	out := make([]models.FormatRecord, 0, len(raw))
	for _, f := range raw {
		rec, ok := Record(f)
		if !ok {
			continue
		}
		if rec.Filesize == 0 && rec.Type != models.TypeAudio {
			continue
		}
		out = append(out, rec)
	}

	slices.SortStableFunc(out, func(a, b models.FormatRecord) int {
		if ra, rb := rank[a.Type], rank[b.Type]; ra != rb {
			return ra - rb
		}
		return b.Height - a.Height
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// All converts every entry that has an id, keeping input order.
func All(raw []models.RawFormat) []models.FormatRecord {
	out := make([]models.FormatRecord, 0, len(raw))
	for _, f := range raw {
		if rec, ok := Record(f); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Main keeps muxed mp4/webm and m4a/mp3/webm audio, capped at limit.
func Main(records []models.FormatRecord, limit int) []models.FormatRecord {
	out := make([]models.FormatRecord, 0, limit)
	for _, r := range records {
		if len(out) == limit {
			break
		}
		switch {
		case r.Type == models.TypeVideoAudio && (r.Ext == "mp4" || r.Ext == "webm"):
			out = append(out, r)
		case r.Type == models.TypeAudio && (r.Ext == "m4a" || r.Ext == "mp3" || r.Ext == "webm"):
			out = append(out, r)
		}
	}
	return out
}

// Best returns the highest (height, width, size) record of the given type,
// preferring preferExt when any record has it. Nil when none match.
func Best(records []models.FormatRecord, typ models.FormatType, preferExt string) *models.FormatRecord {
	var candidates []models.FormatRecord
	for _, r := range records {
		if r.Type == typ {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	slices.SortStableFunc(candidates, func(a, b models.FormatRecord) int {
		if a.Height != b.Height {
			return b.Height - a.Height
		}
		if a.Width != b.Width {
			return b.Width - a.Width
		}
		switch {
		case a.Filesize > b.Filesize:
			return -1
		case a.Filesize < b.Filesize:
			return 1
		}
		return 0
	})

	if preferExt != "" {
		for i := range candidates {
			if candidates[i].Ext == preferExt {
				return &candidates[i]
			}
		}
	}
	return &candidates[0]
}

// EstimateBytes returns the advertised size of formatID, or 0 when unknown.
func EstimateBytes(raw []models.RawFormat, formatID string) int64 {
	for _, f := range raw {
		if f.FormatID == formatID {
			return f.Bytes()
		}
	}
	return 0
}

// ToMB converts bytes to megabytes rounded to two decimals.
func ToMB(bytes int64) float64 {
	if bytes <= 0 {
		return 0
	}
	return math.Round(float64(bytes)/bytesMB*100) / 100
}
