package out

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"devtrack/internal/modules/session/domain"
	"devtrack/internal/platform/metrics"
)

// FileDocumentStore keeps the whole session document in one JSON file.
// Broken content is never fatal: the store falls back to the default
// document and rewrites the file.
type FileDocumentStore struct {
	path string
	log  zerolog.Logger
}

func NewFileDocumentStore(path string, log zerolog.Logger) *FileDocumentStore {
	return &FileDocumentStore{path: path, log: log.With().Str("path", path).Logger()}
}

func (s *FileDocumentStore) Read(ctx context.Context) (domain.Document, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Info().Msg("created new data file with default configuration")
			return s.reset(ctx, "missing")
		}
		s.log.Error().Err(err).Msg("failed to read data file")
		return domain.Document{}, fmt.Errorf("read data file: %w", err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		s.log.Warn().Msg("data file is empty, initializing with default data")
		return s.reset(ctx, "empty")
	}

	doc, repairs, err := decodeDocument(payload)
	if err != nil {
		s.log.Error().Err(err).Msg("data file is corrupted, creating a new one")
		return s.reset(ctx, "corrupt")
	}
	for _, r := range repairs {
		s.log.Warn().Str("repair", r.reason).Msg(r.message)
		metrics.StoreRecovered(r.reason)
	}
	return doc, nil
}

func (s *FileDocumentStore) Write(_ context.Context, doc domain.Document) error {
	if doc.Sessions == nil {
		s.log.Warn().Msg("sessions must be an array, writing an empty one")
		doc.Sessions = []domain.Session{}
	}
	if !domain.ValidGoal(doc.Config.DailyGoal) {
		s.log.Warn().Float64("daily_goal", doc.Config.DailyGoal).Msg("invalid daily goal, writing the default")
		doc.Config.DailyGoal = domain.DefaultDailyGoal
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return s.writeFailed(fmt.Errorf("encode data file: %w", err))
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return s.writeFailed(fmt.Errorf("create data dir: %w", err))
	}
	if err := writeFileAtomic(s.path, payload, 0o644); err != nil {
		return s.writeFailed(fmt.Errorf("write data file: %w", err))
	}
	return nil
}

func (s *FileDocumentStore) reset(ctx context.Context, reason string) (domain.Document, error) {
	metrics.StoreRecovered(reason)
	doc := domain.DefaultDocument()
	if err := s.Write(ctx, doc); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

func (s *FileDocumentStore) writeFailed(err error) error {
	metrics.StoreWriteFailed()
	s.log.Error().Err(err).Msg("failed to write data file")
	return err
}

type repair struct {
	reason  string
	message string
}

// decodeDocument parses payload and repairs its structure in memory. An
// error means the payload is not a JSON object at all.
func decodeDocument(payload []byte) (domain.Document, []repair, error) {
	top := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &top); err != nil {
		return domain.Document{}, nil, err
	}
	if top == nil {
		return domain.Document{}, nil, fmt.Errorf("document must be an object")
	}

	var repairs []repair
	doc := domain.DefaultDocument()

	var items []json.RawMessage
	raw, ok := top["sessions"]
	if !ok || json.Unmarshal(raw, &items) != nil || items == nil {
		repairs = append(repairs, repair{"sessions", "invalid sessions array, initializing with empty array"})
	}
	for i, item := range items {
		session := domain.Session{}
		if err := json.Unmarshal(item, &session); err != nil {
			repairs = append(repairs, repair{"malformed_session", fmt.Sprintf("keeping malformed session at index %d as is: %v", i, err)})
			session = domain.MalformedSession(item)
		}
		doc.Sessions = append(doc.Sessions, session)
	}

	raw, ok = top["config"]
	var object map[string]json.RawMessage
	if !ok || json.Unmarshal(raw, &object) != nil || object == nil {
		repairs = append(repairs, repair{"config", "invalid config object, initializing with default config"})
	} else if err := json.Unmarshal(raw, &doc.Config); err != nil {
		return domain.Document{}, nil, err
	}
	if !domain.ValidGoal(doc.Config.DailyGoal) {
		repairs = append(repairs, repair{"daily_goal", "invalid dailyGoal, setting to default (8 hours)"})
		doc.Config.DailyGoal = domain.DefaultDailyGoal
	}

	for key, value := range top {
		if key == "sessions" || key == "config" {
			continue
		}
		if doc.Extra == nil {
			doc.Extra = map[string]json.RawMessage{}
		}
		doc.Extra[key] = value
	}
	return doc, repairs, nil
}

// writeFileAtomic replaces path with data via a synced temp file in the same
// directory, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}
