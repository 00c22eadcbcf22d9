package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	sessionout "devtrack/internal/modules/session/adapter/out"
	"devtrack/internal/modules/session/domain"
	"devtrack/internal/modules/session/service"
	"devtrack/internal/platform/clock"
	apperrors "devtrack/internal/platform/errors"
	"devtrack/internal/platform/id"
	"devtrack/internal/platform/tx"
)

type fakeID struct {
	mu sync.Mutex
	n  int
}

func (f *fakeID) New() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return fmt.Sprintf("sess-%d", f.n)
}

type fakeProjector struct {
	mu       sync.Mutex
	upserted []string
	deleted  []string
	err      error
}

func (f *fakeProjector) Reset(context.Context) error { return f.err }
func (f *fakeProjector) UpsertSession(_ context.Context, s domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, s.ID)
	return f.err
}
func (f *fakeProjector) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.err
}
func (f *fakeProjector) ProjectTotals(context.Context) ([]domain.ProjectTotal, error) {
	return nil, f.err
}

type failingStore struct{}

func (failingStore) Read(context.Context) (domain.Document, error) {
	return domain.Document{}, errors.New("disk on fire")
}
func (failingStore) Write(context.Context, domain.Document) error { return errors.New("disk on fire") }

var now = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

type fixture struct {
	path      string
	store     *sessionout.FileDocumentStore
	projector *fakeProjector
	query     *service.QueryService
	mutation  *service.MutationService
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	store := sessionout.NewFileDocumentStore(path, zerolog.Nop())
	projector := &fakeProjector{}
	clk := clock.Fixed(now)
	return fixture{
		path:      path,
		store:     store,
		projector: projector,
		query:     service.NewQueryService(clk, time.UTC, store, zerolog.Nop()),
		mutation: service.NewMutationService(clk, &fakeID{}, tx.NewFileLockManager(path+".lock", time.Second),
			store, projector, zerolog.Nop()),
	}
}

func (f fixture) fileContent(t *testing.T) string {
	t.Helper()
	raw, err := os.ReadFile(f.path)
	if err != nil {
		t.Fatalf("read store file: %v", err)
	}
	return string(raw)
}

func TestAddSessionRoundTripsAndBecomesActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	added, err := f.mutation.AddSession(ctx, domain.Session{Project: "api"})
	if err != nil {
		t.Fatalf("add session: %v", err)
	}
	if added.Project != "api" || added.EndTime != nil || added.Duration != nil || added.ID == "" {
		t.Fatalf("unexpected session %#v", added)
	}
	if added.StartTime != "2026-10-19T09:30:00.000Z" {
		t.Fatalf("unexpected start time %s", added.StartTime)
	}

	doc, err := f.store.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	last := doc.Sessions[len(doc.Sessions)-1]
	if last.ID != added.ID || last.Project != added.Project || last.StartTime != added.StartTime || last.EndTime != nil || last.Duration != nil {
		t.Fatalf("stored session %#v does not match %#v", last, added)
	}

	lookup := f.query.ActiveSession(ctx, nil)
	if lookup.Err != nil || !lookup.Found || lookup.Session.ID != added.ID {
		t.Fatalf("unexpected active lookup %#v", lookup)
	}
	if len(f.projector.upserted) != 1 || f.projector.upserted[0] != added.ID {
		t.Fatalf("projector not updated: %v", f.projector.upserted)
	}
}

func TestAddSessionDefaultsProjectAndKeepsSuppliedFields(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	end := "2026-10-19T10:00:00.000Z"
	dur := 1800.0
	added, err := f.mutation.AddSession(context.Background(), domain.Session{ID: "given", StartTime: "2026-10-19T09:30:00.000Z", EndTime: &end, Duration: &dur})
	if err != nil {
		t.Fatalf("add session: %v", err)
	}
	if added.ID != "given" || added.Project != domain.DefaultProject || added.Seconds() != 1800 {
		t.Fatalf("unexpected session %#v", added)
	}
}

func TestUpdateSessionEndsActiveSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	added, err := f.mutation.AddSession(ctx, domain.Session{Project: "api"})
	if err != nil {
		t.Fatalf("add session: %v", err)
	}

	updated, found, err := f.mutation.UpdateSession(ctx, added.ID, map[string]any{
		"endTime":  "2024-01-01T10:00:00.000Z",
		"duration": 3600,
	})
	if err != nil || !found {
		t.Fatalf("update session: found=%v err=%v", found, err)
	}
	if updated.Seconds() != 3600 || updated.Project != "api" {
		t.Fatalf("unexpected merged session %#v", updated)
	}
	if lookup := f.query.ActiveSession(ctx, nil); lookup.Found || lookup.Err != nil {
		t.Fatalf("expected no active session, got %#v", lookup)
	}
	doc, err := f.store.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if doc.Sessions[0].Seconds() != 3600 {
		t.Fatalf("stored duration %v", doc.Sessions[0].Seconds())
	}
}

func TestUpdateSessionKeepsUnknownKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	added, err := f.mutation.AddSession(ctx, domain.Session{Project: "api"})
	if err != nil {
		t.Fatalf("add session: %v", err)
	}
	updated, _, err := f.mutation.UpdateSession(ctx, added.ID, map[string]any{"ticket": "DEV-12", "notes": "review"})
	if err != nil {
		t.Fatalf("update session: %v", err)
	}
	if updated.Notes != "review" || string(updated.Extra["ticket"]) != `"DEV-12"` {
		t.Fatalf("unexpected merged session %#v", updated)
	}
}

func TestUpdateSessionMissIsNotAnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.mutation.AddSession(ctx, domain.Session{Project: "api"}); err != nil {
		t.Fatalf("add session: %v", err)
	}
	before := f.fileContent(t)

	_, found, err := f.mutation.UpdateSession(ctx, "nope", map[string]any{"notes": "x"})
	if err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}
	if after := f.fileContent(t); after != before {
		t.Fatalf("store file changed on miss")
	}
}

func TestUpdateSessionInvalidMergeLeavesFileUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	added, err := f.mutation.AddSession(ctx, domain.Session{Project: "api"})
	if err != nil {
		t.Fatalf("add session: %v", err)
	}
	before := f.fileContent(t)

	for _, updates := range []map[string]any{
		{"duration": "five"},
		{"startTime": 12},
		{"endTime": true},
		{"project": 5},
		{"notes": []any{"x"}},
		{"id": ""},
	} {
		_, _, err := f.mutation.UpdateSession(ctx, added.ID, updates)
		if !errors.Is(err, apperrors.ErrInvalidSession) {
			t.Fatalf("expected invalid session for %v, got %v", updates, err)
		}
	}
	if after := f.fileContent(t); after != before {
		t.Fatalf("store file changed after rejected update")
	}
}

func TestUpdateSessionRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if _, _, err := f.mutation.UpdateSession(context.Background(), "", map[string]any{}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty id, got %v", err)
	}
	if _, _, err := f.mutation.UpdateSession(context.Background(), "x", nil); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for nil updates, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	a, _ := f.mutation.AddSession(ctx, domain.Session{Project: "a"})
	b, _ := f.mutation.AddSession(ctx, domain.Session{Project: "b"})

	removed, err := f.mutation.DeleteSession(ctx, a.ID)
	if err != nil || !removed {
		t.Fatalf("delete session: removed=%v err=%v", removed, err)
	}
	doc, _ := f.store.Read(ctx)
	if len(doc.Sessions) != 1 || doc.Sessions[0].ID != b.ID {
		t.Fatalf("unexpected sessions after delete %#v", doc.Sessions)
	}
	if len(f.projector.deleted) != 1 || f.projector.deleted[0] != a.ID {
		t.Fatalf("projector delete not recorded: %v", f.projector.deleted)
	}

	before := f.fileContent(t)
	removed, err = f.mutation.DeleteSession(ctx, "missing")
	if err != nil || removed {
		t.Fatalf("expected miss, got removed=%v err=%v", removed, err)
	}
	if f.fileContent(t) != before {
		t.Fatalf("store file changed on delete miss")
	}
}

func TestProjectorFailureDoesNotFailMutation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.projector.err = errors.New("sqlite locked")
	if _, err := f.mutation.AddSession(context.Background(), domain.Session{Project: "api"}); err != nil {
		t.Fatalf("projector failure leaked: %v", err)
	}
}

func TestStoreFailurePropagatesFromMutations(t *testing.T) {
	t.Parallel()
	mutation := service.NewMutationService(clock.Fixed(now), id.NanoID{}, nil, failingStore{}, nil, zerolog.Nop())
	if _, err := mutation.AddSession(context.Background(), domain.Session{}); err == nil {
		t.Fatalf("expected add failure")
	}
	if _, _, err := mutation.UpdateSession(context.Background(), "x", map[string]any{}); err == nil {
		t.Fatalf("expected update failure")
	}
}

func TestConcurrentAddsKeepEverySession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.mutation.AddSession(context.Background(), domain.Session{Project: fmt.Sprintf("p%d", i)}); err != nil {
				t.Errorf("add %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	doc, err := f.store.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(doc.Sessions) != 20 {
		t.Fatalf("expected 20 sessions, got %d", len(doc.Sessions))
	}
}

func TestActiveSessionPicksFirstInInsertionOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	end := "2026-10-19T08:00:00.000Z"
	doc := domain.DefaultDocument()
	doc.Sessions = []domain.Session{
		{ID: "done", StartTime: "2026-10-19T07:00:00.000Z", EndTime: &end},
		{ID: "no-start"},
		{ID: "first", StartTime: "2026-10-19T09:00:00.000Z"},
		{ID: "second", StartTime: "2026-10-19T09:10:00.000Z"},
	}
	lookup := f.query.ActiveSession(context.Background(), &doc)
	if !lookup.Found || lookup.Session.ID != "first" {
		t.Fatalf("unexpected lookup %#v", lookup)
	}

	doc.Sessions = doc.Sessions[:2]
	if lookup := f.query.ActiveSession(context.Background(), &doc); lookup.Found || lookup.Err != nil {
		t.Fatalf("expected plain miss, got %#v", lookup)
	}
}

func TestMutationsKeepHistoryTheQueriesCannotRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	seed := `{"sessions": [
  {"id": "old", "project": "api", "startTime": "2026-10-18T08:00:00.000Z", "endTime": "2026-10-18T09:00:00.000Z", "duration": "3600", "notes": ""},
  {"id": "legacy", "startTime": 12345, "endTime": null},
  {"id": "imported", "startTime": "2026-10-19T08:00:00.000Z", "duration": 600}
], "config": {"dailyGoal": 8}}`
	if err := os.WriteFile(f.path, []byte(seed), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if lookup := f.query.ActiveSession(ctx, nil); lookup.Found {
		t.Fatalf("no entry has an explicit null endTime and a usable start, got %q", lookup.Session.ID)
	}
	if listing := f.query.TodaySessions(ctx, nil); len(listing.Sessions) != 1 || listing.Sessions[0].ID != "imported" {
		t.Fatalf("unexpected today listing %#v", listing.Sessions)
	}

	added, err := f.mutation.AddSession(ctx, domain.Session{Project: "new"})
	if err != nil {
		t.Fatalf("add session: %v", err)
	}
	var written struct {
		Sessions []map[string]any `json:"sessions"`
	}
	if err := json.Unmarshal([]byte(f.fileContent(t)), &written); err != nil {
		t.Fatalf("decode file: %v", err)
	}
	ids := make([]any, 0, len(written.Sessions))
	for _, s := range written.Sessions {
		ids = append(ids, s["id"])
	}
	if fmt.Sprint(ids) != fmt.Sprintf("[old legacy imported %s]", added.ID) {
		t.Fatalf("history lost on write: %v", ids)
	}
	if written.Sessions[0]["duration"] != "3600" || written.Sessions[1]["startTime"] != float64(12345) {
		t.Fatalf("malformed entries rewritten: %v", written.Sessions[:2])
	}
	if _, ok := written.Sessions[2]["endTime"]; ok {
		t.Fatalf("absent endTime was written out: %v", written.Sessions[2])
	}

	lookup := f.query.ActiveSession(ctx, nil)
	if !lookup.Found || lookup.Session.ID != added.ID {
		t.Fatalf("expected the new session to be active, got %#v", lookup)
	}

	if removed, err := f.mutation.DeleteSession(ctx, "legacy"); err != nil || !removed {
		t.Fatalf("malformed entry with an id should be deletable: %v %v", removed, err)
	}
	if _, _, err := f.mutation.UpdateSession(ctx, "old", map[string]any{"notes": "x"}); !errors.Is(err, apperrors.ErrInvalidSession) {
		t.Fatalf("update keeping a bad duration should fail validation, got %v", err)
	}
	repaired, found, err := f.mutation.UpdateSession(ctx, "old", map[string]any{"duration": 3600})
	if err != nil || !found || repaired.Malformed() || !repaired.Completed(time.UTC) {
		t.Fatalf("update fixing the duration should repair the entry: %#v %v %v", repaired, found, err)
	}
}

func TestTodaySessionsUsesConfiguredLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+2", 2*3600)
	store := sessionout.NewFileDocumentStore(filepath.Join(t.TempDir(), "data.json"), zerolog.Nop())
	// 00:30 on the 20th in loc
	q := service.NewQueryService(clock.Fixed(time.Date(2026, 10, 19, 22, 30, 0, 0, time.UTC)), loc, store, zerolog.Nop())

	doc := domain.DefaultDocument()
	doc.Sessions = []domain.Session{
		{ID: "yesterday-local", StartTime: "2026-10-19T21:00:00.000Z"},
		{ID: "today-utc", StartTime: "2026-10-19T23:00:00Z"},
		{ID: "today-naive", StartTime: "2026-10-20T00:10:00"},
		{ID: "garbage", StartTime: "not a date"},
		{ID: "empty"},
	}
	listing := q.TodaySessions(context.Background(), &doc)
	if listing.Err != nil {
		t.Fatalf("unexpected error %v", listing.Err)
	}
	if len(listing.Sessions) != 2 || listing.Sessions[0].ID != "today-utc" || listing.Sessions[1].ID != "today-naive" {
		t.Fatalf("unexpected today sessions %#v", listing.Sessions)
	}

	empty := domain.DefaultDocument()
	listing = q.TodaySessions(context.Background(), &empty)
	if listing.Sessions == nil || len(listing.Sessions) != 0 {
		t.Fatalf("expected empty non-nil listing, got %#v", listing.Sessions)
	}
}

func TestQueriesCarryStoreFailures(t *testing.T) {
	t.Parallel()
	q := service.NewQueryService(clock.Fixed(now), time.UTC, failingStore{}, zerolog.Nop())
	lookup := q.ActiveSession(context.Background(), nil)
	if lookup.Found || lookup.Err == nil {
		t.Fatalf("expected failed lookup, got %#v", lookup)
	}
	listing := q.TodaySessions(context.Background(), nil)
	if listing.Err == nil || listing.Sessions == nil || len(listing.Sessions) != 0 {
		t.Fatalf("expected failed empty listing, got %#v", listing)
	}
}
