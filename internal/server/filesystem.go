package server

import (
	"fmt"
	"os"
	"os/exec"

	"ytdl-api/internal/config"
)

// PrepareFilesystem creates the download and temp directories.
func PrepareFilesystem(cfg *config.Config) error {
	for _, dir := range []string{cfg.DownloadDir, cfg.TempDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Tool is an external binary the selected engine shells out to.
type Tool struct {
	Name     string
	Path     string
	Required bool
}

// Tools lists the binaries cfg's engine depends on. ffmpeg is optional for
// yt-dlp, which only needs it for merging and audio extraction.
func Tools(cfg *config.Config) []Tool {
	if cfg.Engine == config.EngineNative {
		return []Tool{{Name: "ffmpeg", Required: true}}
	}
	name := cfg.YtDlpPath
	if name == "" {
		name = "yt-dlp"
	}
	return []Tool{
		{Name: name, Required: true},
		{Name: "ffmpeg"},
	}
}

// CheckTools resolves each tool on PATH. Missing required tools are reported
// in err; missing optional ones only leave Path empty.
func CheckTools(cfg *config.Config) ([]Tool, error) {
	tools := Tools(cfg)
	var missing []string
	for i := range tools {
		path, err := exec.LookPath(tools[i].Name)
		if err != nil {
			if tools[i].Required {
				missing = append(missing, tools[i].Name)
			}
			continue
		}
		tools[i].Path = path
	}
	if len(missing) > 0 {
		return tools, fmt.Errorf("missing required tools: %v", missing)
	}
	return tools, nil
}
