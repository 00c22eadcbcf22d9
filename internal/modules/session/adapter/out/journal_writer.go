package out

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"devtrack/internal/modules/session/domain"
	"devtrack/internal/platform/markdown"
	"devtrack/internal/platform/slug"
)

var journalBlock = markdown.Block{
	Start: "<!-- devtrack:sessions:start -->",
	End:   "<!-- devtrack:sessions:end -->",
}

var journalKeyOrder = []string{"date", "sessions", "total_minutes", "daily_goal_hours", "goal_achieved", "tags"}

// MarkdownJournalWriter writes one note per day under root/YYYY/MM. Text
// outside the managed block and unknown frontmatter keys are kept.
type MarkdownJournalWriter struct {
	loc *time.Location
}

func NewMarkdownJournalWriter(loc *time.Location) *MarkdownJournalWriter {
	if loc == nil {
		loc = time.Local
	}
	return &MarkdownJournalWriter{loc: loc}
}

func (w *MarkdownJournalWriter) WriteDay(_ context.Context, root string, day time.Time, sessions []domain.Session, goal float64) (string, error) {
	day = day.In(w.loc)
	dir := filepath.Join(root, day.Format("2006"), day.Format("01"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create journal dir: %w", err)
	}
	path := filepath.Join(dir, day.Format("2006-01-02")+".md")

	note := markdown.Note{Meta: map[string]any{}, Body: fmt.Sprintf("# %s\n", day.Format("Monday, January 2, 2006"))}
	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		note, err = markdown.ParseNote(string(existing))
		if err != nil {
			return "", fmt.Errorf("parse journal %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("read journal: %w", err)
	}

	total := 0.0
	projects := map[string]bool{}
	for _, s := range sessions {
		total += s.Seconds()
		projects[projectLabel(s)] = true
	}
	tags := []string{"devtrack"}
	for p := range projects {
		tags = append(tags, slug.Tag("project", p))
	}
	sort.Strings(tags[1:])

	minutes := int(math.Floor(total / 60))
	note.Meta["date"] = day.Format("2006-01-02")
	note.Meta["sessions"] = len(sessions)
	note.Meta["total_minutes"] = minutes
	note.Meta["daily_goal_hours"] = goal
	note.Meta["goal_achieved"] = goal > 0 && float64(minutes) >= goal*60
	note.Meta["tags"] = tags
	note.Body = journalBlock.Replace(note.Body, w.renderSessions(sessions, minutes, goal))

	rendered, err := note.Render(journalKeyOrder...)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write journal: %w", err)
	}
	return path, nil
}

func (w *MarkdownJournalWriter) renderSessions(sessions []domain.Session, minutes int, goal float64) string {
	lines := make([]string, 0, len(sessions)+2)
	for _, s := range sessions {
		start, _ := s.StartedAt(w.loc)
		end, ok := s.EndedAt(w.loc)
		span := start.In(w.loc).Format("15:04") + " - running"
		if ok {
			span = start.In(w.loc).Format("15:04") + " - " + end.In(w.loc).Format("15:04")
		}
		line := fmt.Sprintf("- %s [[%s]] (%s)", span, projectLabel(s), formatMinutes(int(s.Seconds()/60)))
		if notes := strings.TrimSpace(s.Notes); notes != "" {
			line += ": " + notes
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", fmt.Sprintf("Total: %s / %gh", formatMinutes(minutes), goal))
	return strings.Join(lines, "\n")
}

func projectLabel(s domain.Session) string {
	if strings.TrimSpace(s.Project) == "" {
		return domain.DefaultProject
	}
	return s.Project
}

func formatMinutes(total int) string {
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}
