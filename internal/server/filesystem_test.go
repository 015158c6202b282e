package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytdl-api/internal/config"
)

func TestPrepareFilesystem(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{
		DownloadDir: filepath.Join(root, "downloads", "nested"),
		TempDir:     filepath.Join(root, "temp"),
	}

	require.NoError(t, PrepareFilesystem(cfg))
	for _, dir := range []string{cfg.DownloadDir, cfg.TempDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// Idempotent.
	require.NoError(t, PrepareFilesystem(cfg))
}

func TestPrepareFilesystem_FileInTheWay(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	err := PrepareFilesystem(&config.Config{DownloadDir: filepath.Join(blocker, "downloads"), TempDir: root})
	assert.Error(t, err)
}

func TestTools(t *testing.T) {
	tools := Tools(&config.Config{Engine: config.EngineYtDlp})
	require.Len(t, tools, 2)
	assert.Equal(t, "yt-dlp", tools[0].Name)
	assert.True(t, tools[0].Required)
	assert.False(t, tools[1].Required)

	tools = Tools(&config.Config{Engine: config.EngineYtDlp, YtDlpPath: "/opt/bin/yt-dlp"})
	assert.Equal(t, "/opt/bin/yt-dlp", tools[0].Name)

	tools = Tools(&config.Config{Engine: config.EngineNative})
	require.Len(t, tools, 1)
	assert.Equal(t, "ffmpeg", tools[0].Name)
}

func TestCheckTools(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "fake-ytdlp")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755))
	t.Setenv("PATH", dir)

	tools, err := CheckTools(&config.Config{Engine: config.EngineYtDlp, YtDlpPath: "fake-ytdlp"})
	require.NoError(t, err)
	assert.Equal(t, bin, tools[0].Path)
	assert.Empty(t, tools[1].Path)

	_, err = CheckTools(&config.Config{Engine: config.EngineNative})
	assert.ErrorContains(t, err, "ffmpeg")
}
