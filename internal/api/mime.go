package api

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// mediaTypes wins over the system table, which often lacks or disagrees on
// these.
var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4a":  "audio/mp4",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".mkv":  "video/x-matroska",
	".3gp":  "video/3gpp",
	".opus": "audio/ogg",
	".m3u8": "application/x-mpegURL",
}

// contentType infers the MIME type of path from its extension, sniffing the
// file contents when the extension is unknown.
func contentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := mediaTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); ext != "" && t != "" {
		return t
	}
	if mt, err := mimetype.DetectFile(path); err == nil {
		return mt.String()
	}
	return "application/octet-stream"
}
