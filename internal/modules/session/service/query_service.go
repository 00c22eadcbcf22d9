package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"devtrack/internal/modules/session/domain"
	sessionout "devtrack/internal/modules/session/port/out"
	"devtrack/internal/platform/clock"
	"devtrack/internal/platform/metrics"
)

// QueryService derives read-only projections from a document snapshot.
// Failures never escape as Go errors; they travel in the result.
type QueryService struct {
	clock clock.Clock
	loc   *time.Location
	store sessionout.DocumentStore
	log   zerolog.Logger
}

func NewQueryService(clock clock.Clock, loc *time.Location, store sessionout.DocumentStore, log zerolog.Logger) *QueryService {
	if loc == nil {
		loc = time.Local
	}
	return &QueryService{clock: clock, loc: loc, store: store, log: log}
}

func (q *QueryService) Location() *time.Location {
	return q.loc
}

// ActiveSession returns the first running session in insertion order. doc
// is read from the store when nil.
func (q *QueryService) ActiveSession(ctx context.Context, doc *domain.Document) domain.Lookup {
	snapshot, err := q.snapshot(ctx, doc)
	if err != nil {
		q.log.Error().Err(err).Msg("failed to get active session")
		return domain.Lookup{Err: err}
	}
	active := 0
	var found *domain.Session
	for i := range snapshot.Sessions {
		if !snapshot.Sessions[i].IsActive() {
			continue
		}
		active++
		if found == nil {
			found = &snapshot.Sessions[i]
		}
	}
	metrics.SetActiveSessions(active)
	if found == nil {
		return domain.Lookup{}
	}
	return domain.Lookup{Session: *found, Found: true}
}

// TodaySessions returns sessions whose start falls on the current calendar
// day in the configured location. Unparsable start times are skipped.
func (q *QueryService) TodaySessions(ctx context.Context, doc *domain.Document) domain.Listing {
	snapshot, err := q.snapshot(ctx, doc)
	if err != nil {
		q.log.Error().Err(err).Msg("failed to get today's sessions")
		return domain.Listing{Sessions: []domain.Session{}, Err: err}
	}
	now := q.clock.Now()
	out := []domain.Session{}
	for _, s := range snapshot.Sessions {
		started, ok := s.StartedAt(q.loc)
		if !ok {
			continue
		}
		if domain.SameDay(started, now, q.loc) {
			out = append(out, s)
		}
	}
	return domain.Listing{Sessions: out}
}

func (q *QueryService) snapshot(ctx context.Context, doc *domain.Document) (domain.Document, error) {
	if doc != nil {
		return *doc, nil
	}
	return q.store.Read(ctx)
}
