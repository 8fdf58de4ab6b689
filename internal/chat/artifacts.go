package chat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flx-it/assistbot/core/logger"
	"log/slog"
)

// ArtifactStore preserves AI replies that could not be billed or delivered,
// so a paid-for answer is never silently lost.
type ArtifactStore struct {
	dir string
}

// NewArtifactStore ensures the target directory exists.
func NewArtifactStore(dir string) (*ArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: create dir: %w", err)
	}
	return &ArtifactStore{dir: dir}, nil
}

// Save writes the reply to message_<userID>_<unix>.txt and returns the path.
func (a *ArtifactStore) Save(userID int64, content string) (string, error) {
	name := fmt.Sprintf("message_%d_%d.txt", userID, time.Now().Unix())
	path := filepath.Join(a.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("artifacts: write: %w", err)
	}
	return path, nil
}

// Sweep deletes artifacts older than maxAge and reports how many went.
func (a *ArtifactStore) Sweep(maxAge time.Duration) int {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		logger.SESS.Warn("artifact sweep failed",
			slog.String("event", "artifacts.sweep"),
			slog.String("err", err.Error()),
		)
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "message_") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(a.dir, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		logger.SESS.Debug("artifacts swept",
			slog.String("event", "artifacts.sweep"),
			slog.Int("collapsed", removed),
		)
	}
	return removed
}
