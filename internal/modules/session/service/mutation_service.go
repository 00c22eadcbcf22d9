package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"devtrack/internal/modules/session/domain"
	sessionout "devtrack/internal/modules/session/port/out"
	"devtrack/internal/platform/clock"
	apperrors "devtrack/internal/platform/errors"
	"devtrack/internal/platform/id"
	"devtrack/internal/platform/metrics"
	"devtrack/internal/platform/tx"
)

// MutationService performs locked read-modify-write cycles on the document.
// The projector is optional and best effort.
type MutationService struct {
	clock     clock.Clock
	idGen     id.Generator
	tx        tx.Manager
	store     sessionout.DocumentStore
	projector sessionout.SessionProjector
	log       zerolog.Logger
}

func NewMutationService(clock clock.Clock, idGen id.Generator, txm tx.Manager, store sessionout.DocumentStore, projector sessionout.SessionProjector, log zerolog.Logger) *MutationService {
	if txm == nil {
		txm = tx.NoopManager{}
	}
	return &MutationService{clock: clock, idGen: idGen, tx: txm, store: store, projector: projector, log: log}
}

// AddSession appends partial after filling id, start time and project.
// It does not check for another running session.
func (m *MutationService) AddSession(ctx context.Context, partial domain.Session) (domain.Session, error) {
	session := partial
	if session.ID == "" {
		session.ID = m.idGen.New()
	}
	if session.StartTime == "" {
		session.StartTime = domain.FormatTimestamp(m.clock.Now())
	}
	if strings.TrimSpace(session.Project) == "" {
		session.Project = domain.DefaultProject
	}

	err := m.tx.Within(ctx, func(ctx context.Context) error {
		doc, err := m.store.Read(ctx)
		if err != nil {
			return err
		}
		doc.Sessions = append(doc.Sessions, session)
		return m.store.Write(ctx, doc)
	})
	if err != nil {
		metrics.SessionOp("add", "error")
		m.log.Error().Err(err).Msg("failed to add session")
		return domain.Session{}, fmt.Errorf("add session: %w", err)
	}
	metrics.SessionOp("add", "ok")
	m.log.Info().Str("session_id", session.ID).Str("project", session.Project).Msg("session added")
	m.project(ctx, func(ctx context.Context, p sessionout.SessionProjector) error {
		return p.UpsertSession(ctx, session)
	})
	return session, nil
}

// UpdateSession shallow-merges updates into the session with id. A missing
// id is a miss, not an error. The merged record is validated before
// anything is written.
func (m *MutationService) UpdateSession(ctx context.Context, id string, updates map[string]any) (domain.Session, bool, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Session{}, false, fmt.Errorf("%w: session id must be a non-empty string", apperrors.ErrInvalidInput)
	}
	if updates == nil {
		return domain.Session{}, false, fmt.Errorf("%w: updates must be an object", apperrors.ErrInvalidInput)
	}

	var updated domain.Session
	found := false
	err := m.tx.Within(ctx, func(ctx context.Context) error {
		doc, err := m.store.Read(ctx)
		if err != nil {
			return err
		}
		idx := -1
		for i := range doc.Sessions {
			if doc.Sessions[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil
		}
		found = true

		fields, err := doc.Sessions[idx].Fields()
		if err != nil {
			return err
		}
		for key, value := range updates {
			fields[key] = value
		}
		if err := domain.ValidateFields(fields); err != nil {
			return err
		}
		merged, err := domain.SessionFromFields(fields)
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrInvalidSession, err)
		}
		doc.Sessions[idx] = merged
		if err := m.store.Write(ctx, doc); err != nil {
			return err
		}
		updated = merged
		return nil
	})
	if err != nil {
		metrics.SessionOp("update", "error")
		m.log.Error().Err(err).Str("session_id", id).Msg("failed to update session")
		return domain.Session{}, false, fmt.Errorf("update session: %w", err)
	}
	if !found {
		metrics.SessionOp("update", "miss")
		m.log.Warn().Str("session_id", id).Msg("session not found")
		return domain.Session{}, false, nil
	}
	metrics.SessionOp("update", "ok")
	m.log.Info().Str("session_id", id).Msg("session updated")
	m.project(ctx, func(ctx context.Context, p sessionout.SessionProjector) error {
		if updated.ID != id {
			if err := p.DeleteSession(ctx, id); err != nil {
				return err
			}
		}
		return p.UpsertSession(ctx, updated)
	})
	return updated, true, nil
}

// DeleteSession removes every session with id. It reports whether anything
// matched; nothing is written on a miss.
func (m *MutationService) DeleteSession(ctx context.Context, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, fmt.Errorf("%w: session id must be a non-empty string", apperrors.ErrInvalidInput)
	}
	removed := false
	err := m.tx.Within(ctx, func(ctx context.Context) error {
		doc, err := m.store.Read(ctx)
		if err != nil {
			return err
		}
		kept := make([]domain.Session, 0, len(doc.Sessions))
		for _, s := range doc.Sessions {
			if s.ID == id {
				removed = true
				continue
			}
			kept = append(kept, s)
		}
		if !removed {
			return nil
		}
		doc.Sessions = kept
		return m.store.Write(ctx, doc)
	})
	if err != nil {
		metrics.SessionOp("delete", "error")
		m.log.Error().Err(err).Str("session_id", id).Msg("failed to delete session")
		return false, fmt.Errorf("delete session: %w", err)
	}
	if !removed {
		metrics.SessionOp("delete", "miss")
		m.log.Warn().Str("session_id", id).Msg("session not found")
		return false, nil
	}
	metrics.SessionOp("delete", "ok")
	m.log.Info().Str("session_id", id).Msg("session deleted")
	m.project(ctx, func(ctx context.Context, p sessionout.SessionProjector) error {
		return p.DeleteSession(ctx, id)
	})
	return true, nil
}

func (m *MutationService) project(ctx context.Context, fn func(context.Context, sessionout.SessionProjector) error) {
	if m.projector == nil {
		return
	}
	if err := fn(ctx, m.projector); err != nil {
		m.log.Warn().Err(err).Msg("session projection out of date, run reindex")
	}
}
