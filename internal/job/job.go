package job

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediabot/internal/extract"
	"mediabot/internal/logging"
)

// Job is one request from a user. Identity fields are set at creation and
// never change; everything else is guarded by mu.
type Job struct {
	ID        string
	AccountID int64
	ChatID    int64
	SourceURL string
	CreatedAt time.Time

	workDir string

	mu           sync.Mutex
	state        State
	meta         extract.Metadata
	profile      extract.QualityProfile
	tracked      []string
	lastPercent  float64
	lastReported time.Time
	usedBonus    bool

	cleanupOnce sync.Once
	removed     int
}

// New creates a Job in the resolving state. Its directory under workDir is
// created on demand by EnsureDir.
func New(workDir string, accountID, chatID int64, sourceURL string) (*Job, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("job id: %w", err)
	}
	if strings.TrimSpace(workDir) == "" {
		return nil, errors.New("job: work dir required")
	}
	return &Job{
		ID:          id.String(),
		AccountID:   accountID,
		ChatID:      chatID,
		SourceURL:   strings.TrimSpace(sourceURL),
		CreatedAt:   time.Now().UTC(),
		workDir:     workDir,
		state:       StateResolving,
		lastPercent: -1,
	}, nil
}

// Dir is the job's private directory, <work_dir>/<id>.
func (j *Job) Dir() string {
	return filepath.Join(j.workDir, j.ID)
}

// EnsureDir tracks and creates the job directory.
func (j *Job) EnsureDir() (string, error) {
	dir := j.Dir()
	j.Track(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}
	return dir, nil
}

// Track registers path for removal by Cleanup. Register a path before
// creating it. Duplicates are ignored.
func (j *Job) Track(path string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, existing := range j.tracked {
		if existing == path {
			return
		}
	}
	j.tracked = append(j.tracked, path)
}

// Tracked returns the registered paths in registration order.
func (j *Job) Tracked() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.tracked...)
}

// State returns the current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Transition moves the job to next.
func (j *Job) Transition(next State) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.state.CanTransition(next) {
		return &TransitionError{From: j.state, To: next}
	}
	j.state = next
	return nil
}

// Fail moves a non-terminal job to failed and reports whether it did.
func (j *Job) Fail() bool {
	return j.Transition(StateFailed) == nil
}

// SetMetadata records the resolved metadata.
func (j *Job) SetMetadata(meta extract.Metadata) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.meta = meta
}

// Metadata returns the resolved metadata, zero until resolution succeeds.
func (j *Job) Metadata() extract.Metadata {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.meta
}

// SetProfile records the chosen quality profile.
func (j *Job) SetProfile(profile extract.QualityProfile) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.profile = profile
}

// Profile returns the chosen quality profile.
func (j *Job) Profile() extract.QualityProfile {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.profile
}

// MarkBonusUsed notes that a bonus download was consumed for this job.
func (j *Job) MarkBonusUsed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.usedBonus = true
}

// UsedBonus reports whether a bonus download was consumed.
func (j *Job) UsedBonus() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.usedBonus
}

// RecordProgress stores the last percent reported to the user.
func (j *Job) RecordProgress(percent float64, at time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lastPercent = percent
	j.lastReported = at
}

// LastProgress returns the last reported percent (-1 before any) and when it
// was reported.
func (j *Job) LastProgress() (float64, time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastPercent, j.lastReported
}

// Cleanup removes every tracked path in reverse registration order. It runs
// once; later calls return the first result. Individual failures are logged.
// The return value counts paths that existed and were removed.
func (j *Job) Cleanup(logger *slog.Logger) int {
	j.cleanupOnce.Do(func() {
		if logger == nil {
			logger = logging.NewNop()
		}
		paths := j.Tracked()
		for i := len(paths) - 1; i >= 0; i-- {
			path := paths[i]
			if _, err := os.Lstat(path); err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					logger.Warn("cleanup stat failed",
						logging.String(logging.FieldJobID, j.ID),
						logging.String("path", path),
						logging.Error(err),
						logging.String(logging.FieldEventType, "cleanup_failed"),
					)
				}
				continue
			}
			if err := os.RemoveAll(path); err != nil {
				logger.Warn("cleanup remove failed",
					logging.String(logging.FieldJobID, j.ID),
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "cleanup_failed"),
					logging.String(logging.FieldErrorHint, "remove the path manually or wait for the stale sweep"),
				)
				continue
			}
			j.removed++
		}
		logger.Debug("job cleaned up",
			logging.String(logging.FieldJobID, j.ID),
			logging.Int("removed", j.removed),
			logging.Int("tracked", len(paths)),
		)
	})
	return j.removed
}
