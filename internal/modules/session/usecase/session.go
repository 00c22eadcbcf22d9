package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"devtrack/internal/modules/session/domain"
	sessiondto "devtrack/internal/modules/session/dto"
	sessionin "devtrack/internal/modules/session/port/in"
	sessionout "devtrack/internal/modules/session/port/out"
	"devtrack/internal/modules/session/service"
	"devtrack/internal/platform/clock"
	apperrors "devtrack/internal/platform/errors"
	"devtrack/internal/platform/tx"
)

type Interactor struct {
	clock     clock.Clock
	tx        tx.Manager
	store     sessionout.DocumentStore
	query     *service.QueryService
	mutation  *service.MutationService
	projector sessionout.SessionProjector
	journal   sessionout.JournalWriter
}

func NewInteractor(
	clock clock.Clock,
	txm tx.Manager,
	store sessionout.DocumentStore,
	query *service.QueryService,
	mutation *service.MutationService,
	projector sessionout.SessionProjector,
	journal sessionout.JournalWriter,
) sessionin.Usecase {
	if txm == nil {
		txm = tx.NoopManager{}
	}
	return &Interactor{
		clock:     clock,
		tx:        txm,
		store:     store,
		query:     query,
		mutation:  mutation,
		projector: projector,
		journal:   journal,
	}
}

// Start refuses to open a second running session. The check and the append
// share one locked cycle.
func (i *Interactor) Start(ctx context.Context, input sessiondto.StartInput) (sessiondto.StartOutput, error) {
	var out sessiondto.StartOutput
	err := i.tx.Within(ctx, func(ctx context.Context) error {
		lookup := i.query.ActiveSession(ctx, nil)
		if lookup.Err != nil {
			return lookup.Err
		}
		if lookup.Found {
			started, _ := lookup.Session.StartedAt(i.query.Location())
			return &sessiondto.ActiveSessionError{Session: toDTO(lookup.Session), StartedAt: started}
		}
		now := i.clock.Now()
		added, err := i.mutation.AddSession(ctx, domain.Session{
			Project:   strings.TrimSpace(input.Project),
			StartTime: domain.FormatTimestamp(now),
		})
		if err != nil {
			return err
		}
		out = sessiondto.StartOutput{Session: toDTO(added), StartedAt: now.In(i.query.Location())}
		return nil
	})
	if err != nil {
		return sessiondto.StartOutput{}, err
	}
	return out, nil
}

// Stop ends the running session. Durations are whole elapsed minutes,
// stored in seconds.
func (i *Interactor) Stop(ctx context.Context) (sessiondto.StopOutput, error) {
	var out sessiondto.StopOutput
	err := i.tx.Within(ctx, func(ctx context.Context) error {
		lookup := i.query.ActiveSession(ctx, nil)
		if lookup.Err != nil {
			return lookup.Err
		}
		if !lookup.Found {
			return apperrors.ErrNoActiveSession
		}
		started, ok := lookup.Session.StartedAt(i.query.Location())
		if !ok {
			return apperrors.ErrInvalidStartTime
		}
		ended := i.clock.Now().In(i.query.Location())
		minutes := int(ended.Sub(started).Minutes())
		if minutes < 0 {
			minutes = 0
		}
		updated, found, err := i.mutation.UpdateSession(ctx, lookup.Session.ID, map[string]any{
			"endTime":  domain.FormatTimestamp(ended),
			"duration": minutes * 60,
		})
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: session %s vanished", apperrors.ErrNotFound, lookup.Session.ID)
		}
		out = sessiondto.StopOutput{Session: toDTO(updated), StartedAt: started, EndedAt: ended, Minutes: minutes}
		return nil
	})
	if err != nil {
		return sessiondto.StopOutput{}, err
	}
	return out, nil
}

func (i *Interactor) Status(ctx context.Context) (sessiondto.StatusOutput, error) {
	doc, err := i.store.Read(ctx)
	if err != nil {
		return sessiondto.StatusOutput{}, err
	}
	lookup := i.query.ActiveSession(ctx, &doc)
	today := i.query.TodaySessions(ctx, &doc)
	if today.Err != nil {
		return sessiondto.StatusOutput{}, today.Err
	}

	out := sessiondto.StatusOutput{DailyGoal: doc.Config.DailyGoal}
	for _, s := range today.Sessions {
		if lookup.Found && s.ID == lookup.Session.ID {
			continue
		}
		out.TodaySeconds += s.Seconds()
	}
	elapsedMinutes := 0
	if lookup.Found {
		started, ok := lookup.Session.StartedAt(i.query.Location())
		if !ok {
			return sessiondto.StatusOutput{}, apperrors.ErrInvalidStartTime
		}
		elapsed := int64(i.clock.Now().Sub(started).Seconds())
		if elapsed < 0 {
			elapsed = 0
		}
		out.Active = true
		out.Session = toDTO(lookup.Session)
		out.StartedAt = started
		out.ElapsedSeconds = elapsed
		elapsedMinutes = int(elapsed / 60)
	}

	out.TodayMinutes = int(math.Floor(out.TodaySeconds/60)) + elapsedMinutes
	goalMinutes := out.DailyGoal * 60
	if goalMinutes > 0 {
		out.Progress = math.Min(float64(out.TodayMinutes)/goalMinutes*100, 100)
	}
	out.RemainingMinutes = int(math.Ceil(math.Max(0, goalMinutes-float64(out.TodayMinutes))))
	out.GoalAchieved = out.Progress >= 100
	return out, nil
}

func (i *Interactor) Report(ctx context.Context, input sessiondto.ReportInput) (sessiondto.ReportOutput, error) {
	doc, err := i.store.Read(ctx)
	if err != nil {
		return sessiondto.ReportOutput{}, err
	}
	out := sessiondto.ReportOutput{Today: input.Today, DailyGoal: doc.Config.DailyGoal}
	sessions := doc.Sessions
	if input.Today {
		listing := i.query.TodaySessions(ctx, &doc)
		if listing.Err != nil {
			return sessiondto.ReportOutput{}, listing.Err
		}
		sessions = listing.Sessions
	}

	loc := i.query.Location()
	for _, s := range sessions {
		if !s.Completed(loc) {
			continue
		}
		out.Count++
		out.TotalSeconds += s.Seconds()
		if !input.Today {
			continue
		}
		started, _ := s.StartedAt(loc)
		ended, _ := s.EndedAt(loc)
		out.Lines = append(out.Lines, sessiondto.ReportLine{
			Project:   s.Project,
			Notes:     s.Notes,
			StartedAt: started,
			EndedAt:   ended,
			Seconds:   s.Seconds(),
		})
	}
	return out, nil
}

// ProjectReport rebuilds the projection and aggregates it per project.
func (i *Interactor) ProjectReport(ctx context.Context) (sessiondto.ProjectReportOutput, error) {
	if _, err := i.Reindex(ctx); err != nil {
		return sessiondto.ProjectReportOutput{}, err
	}
	totals, err := i.projector.ProjectTotals(ctx)
	if err != nil {
		return sessiondto.ProjectReportOutput{}, err
	}
	out := sessiondto.ProjectReportOutput{Projects: make([]sessiondto.ProjectTotal, 0, len(totals))}
	for _, t := range totals {
		out.Projects = append(out.Projects, sessiondto.ProjectTotal{Project: t.Project, Sessions: t.Sessions, TotalSeconds: t.TotalSeconds})
	}
	return out, nil
}

func (i *Interactor) ConfigGet(ctx context.Context, key string) (sessiondto.ConfigEntry, error) {
	doc, err := i.store.Read(ctx)
	if err != nil {
		return sessiondto.ConfigEntry{}, err
	}
	value, ok := doc.Config.Get(key)
	if !ok {
		return sessiondto.ConfigEntry{}, fmt.Errorf("%w: configuration key %q", apperrors.ErrNotFound, key)
	}
	return sessiondto.ConfigEntry{Key: key, Value: value}, nil
}

func (i *Interactor) ConfigSet(ctx context.Context, input sessiondto.ConfigSetInput) (sessiondto.ConfigEntry, error) {
	var out sessiondto.ConfigEntry
	err := i.tx.Within(ctx, func(ctx context.Context) error {
		doc, err := i.store.Read(ctx)
		if err != nil {
			return err
		}
		if err := doc.Config.Set(input.Key, input.Value); err != nil {
			return err
		}
		if err := i.store.Write(ctx, doc); err != nil {
			return err
		}
		key := strings.TrimSpace(input.Key)
		value, _ := doc.Config.Get(key)
		out = sessiondto.ConfigEntry{Key: key, Value: value}
		return nil
	})
	if err != nil {
		return sessiondto.ConfigEntry{}, err
	}
	return out, nil
}

func (i *Interactor) ConfigList(ctx context.Context) ([]sessiondto.ConfigEntry, error) {
	doc, err := i.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	keys := doc.Config.Keys()
	out := make([]sessiondto.ConfigEntry, 0, len(keys))
	for _, key := range keys {
		value, _ := doc.Config.Get(key)
		out = append(out, sessiondto.ConfigEntry{Key: key, Value: value})
	}
	return out, nil
}

func (i *Interactor) ListSessions(ctx context.Context) ([]sessiondto.Session, error) {
	doc, err := i.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]sessiondto.Session, 0, len(doc.Sessions))
	for _, s := range doc.Sessions {
		if s.Malformed() {
			continue
		}
		out = append(out, toDTO(s))
	}
	return out, nil
}

// CreateSession applies the web client's defaults: falsy values fall back
// to an untitled project, now, no end, zero seconds and empty notes.
func (i *Interactor) CreateSession(ctx context.Context, input sessiondto.CreateSessionInput) (sessiondto.Session, error) {
	fields := map[string]any{
		"project":   orDefault(input.Fields["project"], domain.DefaultProject),
		"startTime": orDefault(input.Fields["startTime"], domain.FormatTimestamp(i.clock.Now())),
		"endTime":   orDefault(input.Fields["endTime"], nil),
		"duration":  orDefault(input.Fields["duration"], 0),
		"notes":     orDefault(input.Fields["notes"], ""),
	}
	if err := domain.ValidateFields(fields); err != nil {
		return sessiondto.Session{}, err
	}
	partial, err := domain.SessionFromFields(fields)
	if err != nil {
		return sessiondto.Session{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidSession, err)
	}
	added, err := i.mutation.AddSession(ctx, partial)
	if err != nil {
		return sessiondto.Session{}, err
	}
	return toDTO(added), nil
}

func (i *Interactor) UpdateSession(ctx context.Context, input sessiondto.UpdateSessionInput) (sessiondto.Session, error) {
	updated, found, err := i.mutation.UpdateSession(ctx, input.ID, input.Fields)
	if err != nil {
		return sessiondto.Session{}, err
	}
	if !found {
		return sessiondto.Session{}, fmt.Errorf("%w: session %s", apperrors.ErrNotFound, input.ID)
	}
	return toDTO(updated), nil
}

// DeleteSession succeeds whether or not a session matched.
func (i *Interactor) DeleteSession(ctx context.Context, id string) error {
	_, err := i.mutation.DeleteSession(ctx, id)
	return err
}

func (i *Interactor) Reindex(ctx context.Context) (sessiondto.ReindexOutput, error) {
	if i.projector == nil {
		return sessiondto.ReindexOutput{}, errors.New("session projection is not configured")
	}
	doc, err := i.store.Read(ctx)
	if err != nil {
		return sessiondto.ReindexOutput{}, err
	}
	if err := i.projector.Reset(ctx); err != nil {
		return sessiondto.ReindexOutput{}, err
	}
	projected := 0
	for _, s := range doc.Sessions {
		if s.Malformed() {
			continue
		}
		if err := i.projector.UpsertSession(ctx, s); err != nil {
			return sessiondto.ReindexOutput{}, err
		}
		projected++
	}
	return sessiondto.ReindexOutput{Sessions: projected}, nil
}

// Export writes one journal note per calendar day that has sessions.
func (i *Interactor) Export(ctx context.Context, input sessiondto.ExportInput) (sessiondto.ExportOutput, error) {
	if strings.TrimSpace(input.Dir) == "" {
		return sessiondto.ExportOutput{}, fmt.Errorf("%w: export directory is required", apperrors.ErrInvalidInput)
	}
	if i.journal == nil {
		return sessiondto.ExportOutput{}, errors.New("journal writer is not configured")
	}
	doc, err := i.store.Read(ctx)
	if err != nil {
		return sessiondto.ExportOutput{}, err
	}

	loc := i.query.Location()
	byDay := map[string][]domain.Session{}
	days := map[string]time.Time{}
	for _, s := range doc.Sessions {
		started, ok := s.StartedAt(loc)
		if !ok {
			continue
		}
		local := started.In(loc)
		key := local.Format("2006-01-02")
		byDay[key] = append(byDay[key], s)
		if _, ok := days[key]; !ok {
			days[key] = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		}
	}
	keys := make([]string, 0, len(byDay))
	for key := range byDay {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := sessiondto.ExportOutput{Paths: make([]string, 0, len(keys))}
	for _, key := range keys {
		path, err := i.journal.WriteDay(ctx, input.Dir, days[key], byDay[key], doc.Config.DailyGoal)
		if err != nil {
			return sessiondto.ExportOutput{}, err
		}
		out.Paths = append(out.Paths, path)
	}
	return out, nil
}

func toDTO(s domain.Session) sessiondto.Session {
	return sessiondto.Session{
		ID:        s.ID,
		Project:   s.Project,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Duration:  s.Duration,
		Notes:     s.Notes,
	}
}

// orDefault returns fallback for falsy values: nil, "", false, 0 and NaN.
func orDefault(value, fallback any) any {
	switch v := value.(type) {
	case nil:
		return fallback
	case string:
		if v == "" {
			return fallback
		}
	case bool:
		if !v {
			return fallback
		}
	case float64:
		if v == 0 || math.IsNaN(v) {
			return fallback
		}
	case int:
		if v == 0 {
			return fallback
		}
	}
	return value
}
