package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Recorder writes events to the repository, falling back to the log when
// persistence fails so authentication is never blocked on the trail.
type Recorder struct {
	repo   Repository
	logger *slog.Logger
}

// NewRecorder builds a recorder over the given repository.
func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Record persists one event.
func (r *Recorder) Record(ctx context.Context, kind, deviceID, phone, detail string) {
	if r == nil || r.repo == nil {
		return
	}
	event := Event{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		Phone:     phone,
		Kind:      kind,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.repo.Insert(ctx, event); err != nil {
		r.logger.Warn("audit event dropped", "kind", kind, "error", err)
	}
}
