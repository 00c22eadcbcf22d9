package out

import (
	"context"
	"time"

	"devtrack/internal/modules/session/domain"
)

// DocumentStore is the persisted session document.
type DocumentStore interface {
	Read(ctx context.Context) (domain.Document, error)
	Write(ctx context.Context, doc domain.Document) error
}

// SessionProjector maintains a queryable copy of the sessions. It is
// derived state: the document store stays canonical.
type SessionProjector interface {
	Reset(ctx context.Context) error
	UpsertSession(ctx context.Context, session domain.Session) error
	DeleteSession(ctx context.Context, id string) error
	ProjectTotals(ctx context.Context) ([]domain.ProjectTotal, error)
}

// JournalWriter renders one note per day of sessions under root.
type JournalWriter interface {
	WriteDay(ctx context.Context, root string, day time.Time, sessions []domain.Session, goal float64) (string, error)
}
