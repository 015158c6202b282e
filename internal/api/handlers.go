package api

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ytdl-api/internal/apperr"
	"ytdl-api/internal/cache"
	"ytdl-api/internal/config"
	"ytdl-api/internal/downloader"
	"ytdl-api/internal/formats"
	"ytdl-api/internal/jobs"
	"ytdl-api/internal/metrics"
	"ytdl-api/internal/models"
)

const (
	serviceName    = "ytdl-api"
	serviceVersion = "3.0.0"
	eventsInterval = 500 * time.Millisecond
	streamChunk    = 1024 * 1024
)

type Handler struct {
	Manager *jobs.Manager
	Engine  downloader.Engine
	Cache   cache.Cache[*models.RawInfo]
	Metrics *metrics.Metrics
	Config  *config.Config
	Logger  *log.Logger
}

func NewHandler(cfg *config.Config, m *jobs.Manager, engine downloader.Engine, c cache.Cache[*models.RawInfo], mt *metrics.Metrics, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Handler{Manager: m, Engine: engine, Cache: c, Metrics: mt, Config: cfg, Logger: logger}
}

// --- Service endpoints ---

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": serviceName,
		"version": serviceVersion,
		"endpoints": gin.H{
			"info":     "/api/info?url=URL",
			"formats":  "/api/formats?url=URL",
			"download": "/api/download?url=URL&format_id=ID",
			"status":   "/api/download/{id}/status",
			"file":     "/api/download/{id}/file",
			"events":   "/api/events/{id}",
			"direct":   "/api/direct?url=URL&format_id=ID",
			"cleanup":  "/api/cleanup",
			"health":   "/api/health",
			"test":     "/api/test",
		},
		"limits": gin.H{
			"max_size_mb":        h.Config.MaxDownloadSize / (1024 * 1024),
			"direct_max_size_mb": h.Config.DirectMaxSize / (1024 * 1024),
			"supported_formats":  "mp4, webm, m4a, mp3",
		},
	})
}

func (h *Handler) Test(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"message":   "API is running",
		"timestamp": time.Now().Unix(),
		"features":  []string{"info", "formats", "download", "direct"},
	})
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	store := "ok"
	if err := h.Manager.Ping(ctx); err != nil {
		h.Logger.Printf("⚠️ health: store unreachable: %v", err)
		status, code, store = "degraded", http.StatusServiceUnavailable, "unreachable"
	}

	body := gin.H{
		"status":    status,
		"service":   serviceName,
		"engine":    h.Config.Engine,
		"store":     store,
		"timestamp": time.Now().Unix(),
	}
	if stats, err := h.Manager.Stats(ctx); err == nil {
		body["jobs"] = stats
	}
	c.JSON(code, body)
}

// --- Metadata ---

func (h *Handler) Info(c *gin.Context) {
	url := c.Query("url")
	detailed, _ := strconv.ParseBool(c.DefaultQuery("detailed", "false"))

	info, cached, err := h.fetchInfo(c.Request.Context(), url)
	if err != nil {
		h.respondError(c, err)
		return
	}

	meta := models.NewVideoMetadata(info)
	all := formats.All(info.Formats)

	body := gin.H{
		"success":            true,
		"url":                url,
		"title":              meta.Title,
		"author":             meta.Author,
		"channel_url":        meta.ChannelURL,
		"duration":           meta.Duration,
		"duration_formatted": meta.DurationFormatted,
		"thumbnail":          meta.Thumbnail,
		"view_count":         meta.ViewCount,
		"like_count":         meta.LikeCount,
		"description":        meta.Description,
		"categories":         meta.Categories,
		"upload_date":        meta.UploadDate,
		"formats_count":      len(all),
		"cached":             cached,
		"timestamp":          time.Now().Unix(),
	}
	if detailed {
		body["formats"] = formats.Normalize(info.Formats, h.Config.MaxFormats)
		body["best_video"] = formats.Best(all, models.TypeVideoAudio, "mp4")
		body["best_audio"] = formats.Best(all, models.TypeAudio, "m4a")
	} else {
		body["formats"] = formats.Main(formats.Normalize(info.Formats, len(all)), formats.MainLimit)
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) Formats(c *gin.Context) {
	info, _, err := h.fetchInfo(c.Request.Context(), c.Query("url"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	all := formats.All(info.Formats)
	list := formats.Normalize(info.Formats, h.Config.MaxFormats)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"formats":    list,
		"best_video": formats.Best(all, models.TypeVideoAudio, "mp4"),
		"best_audio": formats.Best(all, models.TypeAudio, "m4a"),
		"total":      len(list),
	})
}

// fetchInfo returns cached metadata for url or asks the engine under the info
// deadline.
func (h *Handler) fetchInfo(ctx context.Context, url string) (*models.RawInfo, bool, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, false, apperr.New(apperr.KindInvalidURL, "url is required")
	}

	key := cache.Key(url)
	if h.Cache != nil {
		if entry, ok := h.Cache.Get(key); ok {
			h.Metrics.CacheLookup(true)
			return entry.Value, true, nil
		}
		h.Metrics.CacheLookup(false)
	}

	ctx, cancel := context.WithTimeout(ctx, h.Config.InfoTimeout)
	defer cancel()

	h.Logger.Printf("🔍 Fetching info for: %s", url)
	info, err := h.Engine.Info(ctx, url, downloader.Options{
		Quiet:     true,
		Timeout:   h.Config.InfoTimeout,
		UserAgent: h.Config.UserAgent,
		Retries:   h.Config.ExtractorRetries,
	})
	if err != nil {
		return nil, false, err
	}

	if h.Cache != nil {
		h.Cache.Put(key, info)
	}
	return info, false, nil
}

// --- Background downloads ---

func (h *Handler) StartDownload(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		h.respondError(c, apperr.New(apperr.KindInvalidURL, "url is required"))
		return
	}

	job, err := h.Manager.Start(c.Request.Context(), models.CreateJobRequest{
		URL:      url,
		FormatID: c.Query("format_id"),
		Quality:  c.DefaultQuery("quality", downloader.QualityBest),
		Filename: c.Query("filename"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success":    true,
		"job_id":     job.ID,
		"status":     job.Status,
		"message":    "download started in background",
		"status_url": fmt.Sprintf("/api/download/%s/status", job.ID),
		"file_url":   fmt.Sprintf("/api/download/%s/file", job.ID),
		"events_url": fmt.Sprintf("/api/events/%s", job.ID),
	})
}

type statusResponse struct {
	models.DownloadJob
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	FileURL        string  `json:"file_url,omitempty"`
}

func newStatusResponse(job models.DownloadJob, now time.Time) statusResponse {
	resp := statusResponse{
		DownloadJob:    job,
		ElapsedSeconds: float64(job.Elapsed(now).Milliseconds()) / 1000,
	}
	if job.Status == models.JobCompleted {
		resp.FileURL = fmt.Sprintf("/api/download/%s/file", job.ID)
	}
	return resp
}

func (h *Handler) DownloadStatus(c *gin.Context) {
	job, err := h.Manager.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStatusResponse(job, time.Now()))
}

func (h *Handler) DownloadFile(c *gin.Context) {
	f, err := h.Manager.GetFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer f.Close()

	c.DataFromReader(http.StatusOK, f.Size, contentType(f.Name()), f, map[string]string{
		"Content-Disposition": attachment(f.Filename),
		"X-Download-ID":       f.Job.ID,
		"X-File-Size":         strconv.FormatInt(f.Size, 10),
	})
	h.Metrics.BytesServed(f.Size)
}

// Events streams job snapshots as server-sent events until the job finishes
// or the client goes away.
func (h *Handler) Events(c *gin.Context) {
	id := c.Param("id")
	ticker := time.NewTicker(eventsInterval)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	first := true
	c.Stream(func(w io.Writer) bool {
		if !first {
			select {
			case <-c.Request.Context().Done():
				return false
			case <-ticker.C:
			}
		}
		first = false

		job, err := h.Manager.GetStatus(c.Request.Context(), id)
		if err != nil {
			c.SSEvent("error", gin.H{"error": apperr.Message(err), "code": apperr.KindOf(err)})
			return false
		}
		c.SSEvent("progress", newStatusResponse(job, time.Now()))
		return !job.Status.IsFinished()
	})
}

// --- Synchronous downloads ---

func (h *Handler) Direct(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	formatID := c.DefaultQuery("format_id", "18")
	stream, _ := strconv.ParseBool(c.DefaultQuery("stream", "false"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.Config.DirectTimeout)
	defer cancel()

	info, _, err := h.fetchInfo(ctx, url)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if estimate := formats.EstimateBytes(info.Formats, formatID); estimate > h.Config.DirectMaxSize {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
			"success":           false,
			"error":             "video too large for direct download",
			"code":              apperr.KindTooLarge,
			"estimated_size_mb": formats.ToMB(estimate),
			"suggestion":        "use /api/download for larger files",
		})
		return
	}

	dir, err := os.MkdirTemp(h.Config.TempDir, "direct-")
	if err != nil {
		h.respondError(c, fmt.Errorf("create temp dir: %w", err))
		return
	}
	defer os.RemoveAll(dir)

	h.Logger.Printf("⚡ Direct download: %s | format: %s", url, formatID)
	path, err := h.Engine.Download(ctx, downloader.Request{
		URL:       url,
		Selector:  downloader.DirectSelector(formatID),
		OutputDir: dir,
		Filename:  "download_" + downloader.SanitizeFilename(info.ID),
		Options: downloader.Options{
			Quiet:                    true,
			Timeout:                  15 * time.Second,
			UserAgent:                h.Config.UserAgent,
			SkipUnavailableFragments: true,
			Retries:                  h.Config.ExtractorRetries,
		},
	}, nil)
	if err != nil {
		h.respondError(c, err)
		return
	}

	file, err := os.Open(path)
	if err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindInternal, "no file was downloaded", err))
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		h.respondError(c, fmt.Errorf("stat download: %w", err))
		return
	}
	if stat.Size() > h.Config.MaxDownloadSize {
		h.respondError(c, apperr.New(apperr.KindTooLarge, fmt.Sprintf("file too large (%.1f MB)", float64(stat.Size())/(1024*1024))))
		return
	}

	name := directFilename(info.Title, filepath.Ext(path))
	headers := map[string]string{
		"Content-Disposition": attachment(name),
		"X-Direct-Download":   "true",
		"X-Video-Title":       headerSafe(orDefault(info.Title, "video")),
	}
	mimeType := contentType(path)

	if !stream {
		c.DataFromReader(http.StatusOK, stat.Size(), mimeType, file, headers)
		h.Metrics.BytesServed(stat.Size())
		return
	}

	for k, v := range headers {
		c.Header(k, v)
	}
	c.Header("Content-Type", mimeType)
	c.Status(http.StatusOK)

	buf := make([]byte, streamChunk)
	var sent int64
	c.Stream(func(w io.Writer) bool {
		n, err := file.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return false
			}
			sent += int64(n)
		}
		return err == nil
	})
	h.Metrics.BytesServed(sent)
}

// --- Maintenance ---

func (h *Handler) Cleanup(c *gin.Context) {
	cleaned, remaining, err := h.Manager.Cleanup(c.Request.Context(), h.Config.JobRetention)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"cleaned":   cleaned,
		"remaining": remaining,
		"message":   fmt.Sprintf("removed %d old downloads", cleaned),
	})
}

// --- Helpers (Private) ---

func (h *Handler) respondError(c *gin.Context, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		h.Logger.Printf("💥 Internal error on %s: %v", c.Request.URL.Path, err)
	}
	abortWithError(c, err)
}

// abortWithError writes the error envelope and stops the handler chain.
func abortWithError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), gin.H{
		"success": false,
		"error":   apperr.Message(err),
		"code":    kind,
	})
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}

// directFilename keeps letters, digits, spaces, dashes and underscores of the
// title, capped at 50 runes.
func directFilename(title, ext string) string {
	var b strings.Builder
	for _, r := range title {
		if r == ' ' || r == '-' || r == '_' || (r < 128 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')) {
			b.WriteRune(r)
		}
	}
	safe := strings.TrimSpace(b.String())
	if runes := []rune(safe); len(runes) > 50 {
		safe = strings.TrimSpace(string(runes[:50]))
	}
	if safe == "" {
		safe = "video"
	}
	if ext == "" {
		ext = ".mp4"
	}
	return safe + ext
}

func headerSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
