package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"ytdl-api/internal/apperr"
	"ytdl-api/internal/config"
	"ytdl-api/internal/downloader"
	"ytdl-api/internal/formats"
	"ytdl-api/internal/metrics"
	"ytdl-api/internal/models"
	"ytdl-api/internal/notify"
)

// ErrorMessageLimit caps the message stored on failed jobs. The full message
// goes to the log.
const ErrorMessageLimit = 300

type Manager struct {
	cfg      *config.Config
	store    Store
	engine   downloader.Engine
	logger   *log.Logger
	notifier notify.Publisher
	metrics  *metrics.Metrics
	now      func() time.Time

	// mu serializes read-modify-write cycles on records.
	mu sync.Mutex

	queueMu sync.RWMutex
	queue   chan task
	closed  bool
	wg      sync.WaitGroup
}

type task struct {
	id  string
	req downloader.Request
}

type Option func(*Manager)

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithNotifier(p notify.Publisher) Option {
	return func(m *Manager) { m.notifier = p }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func withClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager starts cfg.MaxConcurrentJobs workers reading from a queue of
// cfg.JobQueueSize pending jobs.
func NewManager(cfg *config.Config, store Store, engine downloader.Engine, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		store:    store,
		engine:   engine,
		logger:   log.New(io.Discard, "", 0),
		notifier: notify.Noop{},
		now:      time.Now,
		queue:    make(chan task, cfg.JobQueueSize),
	}
	for _, opt := range opts {
		opt(m)
	}

	workers := max(cfg.MaxConcurrentJobs, 1)
	m.wg.Add(workers)
	for range workers {
		go m.worker()
	}
	return m
}

// Start records a processing job and queues it. The record exists before
// Start returns; when the queue is full the record is dropped again and
// apperr.KindBusy is returned.
func (m *Manager) Start(ctx context.Context, req models.CreateJobRequest) (models.DownloadJob, error) {
	id, err := m.newID(ctx)
	if err != nil {
		return models.DownloadJob{}, err
	}

	selector := downloader.SelectorFor(req.FormatID, req.Quality)
	filename := downloader.SanitizeFilename(req.Filename)

	job := models.DownloadJob{
		ID:        id,
		Status:    models.JobProcessing,
		URL:       req.URL,
		Format:    selector.String(),
		Filename:  filename,
		StartedAt: m.now(),
	}
	if err := m.store.Put(ctx, job); err != nil {
		return models.DownloadJob{}, fmt.Errorf("save job: %w", err)
	}

	t := task{
		id: id,
		req: downloader.Request{
			URL:       req.URL,
			Selector:  selector,
			OutputDir: m.jobDir(id),
			Filename:  filename,
			Options: downloader.Options{
				Quiet:                    true,
				UserAgent:                m.cfg.UserAgent,
				GeoBypass:                true,
				SkipUnavailableFragments: true,
				Retries:                  m.cfg.ExtractorRetries,
			},
		},
	}

	if !m.enqueue(t) {
		m.delete(ctx, id)
		m.metrics.JobRejected()
		m.logger.Printf("[JOB %s] rejected: queue full", id)
		return models.DownloadJob{}, apperr.New(apperr.KindBusy, "server busy, try again later")
	}

	m.metrics.JobStarted()
	m.logger.Printf("[JOB %s] queued %s (format %s)", id, req.URL, job.Format)
	return job, nil
}

func (m *Manager) enqueue(t task) bool {
	m.queueMu.RLock()
	defer m.queueMu.RUnlock()

	if m.closed {
		return false
	}
	select {
	case m.queue <- t:
		return true
	default:
		return false
	}
}

func (m *Manager) newID(ctx context.Context) (string, error) {
	for range 5 {
		id := uuid.NewString()[:8]
		_, err := m.store.Get(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("check job id: %w", err)
		}
	}
	return "", apperr.New(apperr.KindInternal, "could not allocate a download id")
}

func (m *Manager) jobDir(id string) string {
	return filepath.Join(m.cfg.DownloadDir, id)
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for t := range m.queue {
		m.run(t)
	}
}

func (m *Manager) run(t task) {
	ctx := context.Background()
	m.metrics.JobRunning(1)
	defer m.metrics.JobRunning(-1)

	defer func() {
		if r := recover(); r != nil {
			m.fail(ctx, t, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := os.MkdirAll(t.req.OutputDir, 0755); err != nil {
		m.fail(ctx, t, fmt.Errorf("create job dir: %w", err))
		return
	}

	m.logger.Printf("[JOB %s] downloading", t.id)
	path, err := m.engine.Download(ctx, t.req, &reporter{m: m, id: t.id, dir: t.req.OutputDir})
	if err != nil {
		m.fail(ctx, t, err)
		return
	}

	// The engine may return without ever calling Finished.
	m.complete(ctx, t.id, t.req.OutputDir, path)
}

func (m *Manager) complete(ctx context.Context, id, dir, path string) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		m.fail(ctx, task{id: id, req: downloader.Request{OutputDir: dir}},
			fmt.Errorf("generated file is missing: %w", statErr))
		return
	}

	size := formats.ToMB(info.Size())
	finished := m.now()
	job, changed, err := m.update(ctx, id, func(job *models.DownloadJob) bool {
		if job.Status != models.JobProcessing {
			return false
		}
		job.Status = models.JobCompleted
		job.Progress = 100
		job.FilePath = path
		job.SizeMB = &size
		job.FinishedAt = &finished
		return true
	})
	if err != nil {
		m.orphaned(id, dir, err)
		return
	}
	if changed {
		m.logger.Printf("[JOB %s] completed: %s (%.2f MB)", id, filepath.Base(path), size)
		m.finished(ctx, job)
	}
}

func (m *Manager) fail(ctx context.Context, t task, cause error) {
	m.logger.Printf("[JOB %s] ERROR: %v", t.id, cause)

	msg := truncate(apperr.Message(cause), ErrorMessageLimit)
	if msg == "" {
		msg = "download failed"
	}
	code := string(apperr.KindOf(cause))
	finished := m.now()
	job, changed, err := m.update(ctx, t.id, func(job *models.DownloadJob) bool {
		if job.Status != models.JobProcessing {
			return false
		}
		job.Status = models.JobError
		job.Error = msg
		job.ErrorCode = code
		job.FinishedAt = &finished
		return true
	})
	if err != nil {
		m.orphaned(t.id, t.req.OutputDir, err)
		return
	}
	if !changed {
		// Already finalized; a completed job keeps its output.
		return
	}
	os.RemoveAll(t.req.OutputDir)
	m.finished(ctx, job)
}

// orphaned handles a job whose record vanished mid-run (cleanup removed it).
func (m *Manager) orphaned(id, dir string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		m.logger.Printf("[JOB %s] record removed while running, discarding output", id)
	} else {
		m.logger.Printf("[JOB %s] ERROR: update record: %v", id, err)
	}
	if dir != "" {
		os.RemoveAll(dir)
	}
}

func (m *Manager) finished(ctx context.Context, job models.DownloadJob) {
	m.metrics.JobFinished(string(job.Status))
	if err := m.notifier.Publish(ctx, notify.EventFor(job, m.now())); err != nil {
		m.logger.Printf("[JOB %s] notify failed: %v", job.ID, err)
	}
}

// update applies fn to the stored record and writes it back when fn reports a
// change.
func (m *Manager) update(ctx context.Context, id string, fn func(*models.DownloadJob) bool) (models.DownloadJob, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(ctx, id)
	if err != nil {
		return models.DownloadJob{}, false, err
	}
	if !fn(&job) {
		return job, false, nil
	}
	if err := m.store.Put(ctx, job); err != nil {
		return models.DownloadJob{}, false, err
	}
	return job, true, nil
}

func (m *Manager) GetStatus(ctx context.Context, id string) (models.DownloadJob, error) {
	return m.store.Get(ctx, id)
}

// File is an open, completed download.
type File struct {
	*os.File
	Job      models.DownloadJob
	Filename string
	Size     int64
}

// GetFile opens the file of a completed job. The caller closes it.
func (m *Manager) GetFile(ctx context.Context, id string) (*File, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobCompleted {
		return nil, apperr.New(apperr.KindNotReady, fmt.Sprintf("download not ready (status: %s)", job.Status))
	}

	info, err := os.Stat(job.FilePath)
	if err != nil || info.IsDir() {
		return nil, apperr.New(apperr.KindNotFound, "file no longer exists")
	}
	if info.Size() > m.cfg.MaxDownloadSize {
		return nil, apperr.New(apperr.KindTooLarge, fmt.Sprintf("file too large (%.1f MB), maximum is %.0f MB",
			float64(info.Size())/(1024*1024), float64(m.cfg.MaxDownloadSize)/(1024*1024)))
	}

	f, err := os.Open(job.FilePath)
	if err != nil {
		return nil, apperr.New(apperr.KindNotFound, "file no longer exists")
	}
	return &File{File: f, Job: job, Filename: filepath.Base(job.FilePath), Size: info.Size()}, nil
}

// Cleanup removes every job started at least maxAge ago together with its
// files. File removal is best-effort.
func (m *Manager) Cleanup(ctx context.Context, maxAge time.Duration) (cleaned, remaining int, err error) {
	all, err := m.store.List(ctx)
	if err != nil {
		return 0, 0, err
	}

	cutoff := m.now().Add(-maxAge)
	for _, job := range all {
		if job.StartedAt.After(cutoff) {
			remaining++
			continue
		}
		if err := m.delete(ctx, job.ID); err != nil {
			m.logger.Printf("[JOB %s] cleanup failed: %v", job.ID, err)
			remaining++
			continue
		}
		if job.FilePath != "" {
			os.Remove(job.FilePath)
		}
		os.RemoveAll(m.jobDir(job.ID))
		cleaned++
	}
	if cleaned > 0 {
		m.logger.Printf("🧹 Cleaned up %d jobs, %d remaining", cleaned, remaining)
	}
	return cleaned, remaining, nil
}

// delete shares mu with update so an in-flight read-modify-write cannot put
// a removed record back.
func (m *Manager) delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Delete(ctx, id)
}

type Stats struct {
	Total      int `json:"total"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	all, err := m.store.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{Total: len(all)}
	for _, job := range all {
		switch job.Status {
		case models.JobProcessing:
			s.Processing++
		case models.JobCompleted:
			s.Completed++
		case models.JobError:
			s.Failed++
		}
	}
	return s, nil
}

// Ping checks the store when it supports it.
func (m *Manager) Ping(ctx context.Context) error {
	if p, ok := m.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close stops accepting jobs and waits for queued and running ones to finish
// or for ctx to end.
func (m *Manager) Close(ctx context.Context) error {
	m.queueMu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.queueMu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reporter turns engine byte counts into a monotonic percentage.
type reporter struct {
	m   *Manager
	id  string
	dir string
}

func (r *reporter) Update(downloaded, total int64) {
	if total <= 0 {
		return
	}
	pct := math.Round(float64(downloaded)/float64(total)*1000) / 10
	pct = min(max(pct, 0), 100)
	size := formats.ToMB(total)

	r.m.update(context.Background(), r.id, func(job *models.DownloadJob) bool {
		if job.Status != models.JobProcessing {
			return false
		}
		changed := false
		if pct > job.Progress {
			job.Progress = pct
			changed = true
		}
		if job.SizeMB == nil || *job.SizeMB != size {
			job.SizeMB = &size
			changed = true
		}
		return changed
	})
}

func (r *reporter) Finished(path string) {
	r.m.complete(context.Background(), r.id, r.dir, path)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
