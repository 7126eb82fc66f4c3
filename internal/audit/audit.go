package audit

import (
	"context"
	"time"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/logging"
)

// Entry is one structured audit record for a state-changing call.
type Entry struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   *string
	Changes    map[string]interface{}
	IPAddress  *string
	UserAgent  *string
}

// Sink accepts audit entries. Recording is fire-and-forget: a sink failure
// is logged but never converts a successful workflow transition into an
// error response.
type Sink interface {
	Record(ctx context.Context, e Entry)
}

// NopSink discards all entries.
type NopSink struct{}

func (NopSink) Record(context.Context, Entry) {}

// Writer is the persistence dependency of the recorder.
type Writer interface {
	CreateAuditLog(ctx context.Context, log *db.AuditLog) error
}

// Recorder persists entries asynchronously through a Writer.
type Recorder struct {
	writer Writer
	logger *logging.Logger
}

// NewRecorder creates a db-backed audit recorder.
func NewRecorder(writer Writer, logger *logging.Logger) *Recorder {
	return &Recorder{writer: writer, logger: logger}
}

// Record writes the entry in the background with its own timeout, detached
// from the caller's context so an already-committed transition is never
// held up or rolled back by audit persistence.
func (r *Recorder) Record(_ context.Context, e Entry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		log := &db.AuditLog{
			UserID:     e.ActorID,
			Action:     e.Action,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Changes:    e.Changes,
			IPAddress:  e.IPAddress,
			UserAgent:  e.UserAgent,
		}
		if err := r.writer.CreateAuditLog(ctx, log); err != nil && r.logger != nil {
			r.logger.Error("Failed to write audit log", err, map[string]interface{}{
				"action":      e.Action,
				"entity_type": e.EntityType,
			})
		}
	}()
}

var _ Sink = (*Recorder)(nil)
