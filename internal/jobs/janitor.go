package jobs

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

// StartJanitor runs Cleanup every interval until ctx ends, and prunes stale
// entries from tempDir (left behind by interrupted direct downloads).
func StartJanitor(ctx context.Context, m *Manager, interval, retention time.Duration, tempDir string) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.logger.Println("🧹 Janitor: Starting scheduled cleanup...")

				if _, _, err := m.Cleanup(ctx, retention); err != nil {
					m.logger.Printf("❌ Janitor Error: cleanup jobs: %v", err)
				}
				if err := pruneDir(tempDir, m.now().Add(-retention), m.logger); err != nil {
					m.logger.Printf("❌ Janitor Error: Could not clear temp: %v", err)
				}

				m.logger.Println("✅ Janitor: Cleanup finished.")
			}
		}
	}()
}

// pruneDir removes entries of dir last modified before cutoff. A missing dir
// is recreated.
func pruneDir(dir string, cutoff time.Time, logger *log.Logger) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	if err != nil {
		return err
	}

	for _, e := range entries {
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			logger.Printf("⚠️ Janitor: could not remove %s: %v", e.Name(), err)
		}
	}
	return nil
}
