package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	apperrors "devtrack/internal/platform/errors"
)

const (
	DefaultDailyGoal = 8.0
	DefaultProject   = "Untitled"
)

// Session is one work interval. A null EndTime marks it active; Duration is
// in seconds and nil while active. StartTime stays a raw string so values
// that fail to parse survive a read-modify-write cycle untouched.
type Session struct {
	ID        string
	Project   string
	StartTime string
	EndTime   *string
	Duration  *float64
	Notes     string
	// Extra holds keys this version does not know about.
	Extra map[string]json.RawMessage

	// absent and null remember how known keys appeared in the decoded
	// object, so a rewrite does not invent keys or turn null into "".
	absent keyMask
	null   keyMask
	// raw is set for stored entries that could not be decoded; they are
	// written back verbatim and ignored by every query.
	raw json.RawMessage
}

type keyMask uint8

const (
	keyID keyMask = 1 << iota
	keyProject
	keyStartTime
	keyEndTime
	keyDuration
	keyNotes
)

var sessionKeys = map[string]keyMask{
	"id": keyID, "project": keyProject, "startTime": keyStartTime,
	"endTime": keyEndTime, "duration": keyDuration, "notes": keyNotes,
}

// MalformedSession wraps a stored entry that is not a valid session. Its id
// is kept when the entry is an object with a string id, so it can still be
// deleted or repaired by id.
func MalformedSession(entry json.RawMessage) Session {
	s := Session{raw: append(json.RawMessage(nil), entry...)}
	var object map[string]json.RawMessage
	if json.Unmarshal(entry, &object) == nil {
		_ = json.Unmarshal(object["id"], &s.ID)
	}
	return s
}

// Malformed reports whether the session is an undecodable stored entry.
func (s Session) Malformed() bool {
	return s.raw != nil
}

// IsActive reports whether the session is running: an explicit null end
// time and a non-empty start time.
func (s Session) IsActive() bool {
	return s.raw == nil && s.EndTime == nil && s.absent&keyEndTime == 0 && s.StartTime != ""
}

// StartedAt parses StartTime, interpreting zone-less values in loc.
func (s Session) StartedAt(loc *time.Location) (time.Time, bool) {
	if s.raw != nil {
		return time.Time{}, false
	}
	return ParseTimestamp(s.StartTime, loc)
}

// EndedAt parses EndTime; false for active sessions or bad values.
func (s Session) EndedAt(loc *time.Location) (time.Time, bool) {
	if s.raw != nil || s.EndTime == nil {
		return time.Time{}, false
	}
	return ParseTimestamp(*s.EndTime, loc)
}

// Completed reports whether the session has a positive duration and both
// timestamps parse.
func (s Session) Completed(loc *time.Location) bool {
	if s.Duration == nil || *s.Duration <= 0 {
		return false
	}
	if _, ok := s.StartedAt(loc); !ok {
		return false
	}
	_, ok := s.EndedAt(loc)
	return ok
}

// Seconds returns the recorded duration, zero when unset.
func (s Session) Seconds() float64 {
	if s.raw != nil || s.Duration == nil {
		return 0
	}
	return *s.Duration
}

func (s Session) MarshalJSON() ([]byte, error) {
	if s.raw != nil {
		return s.raw, nil
	}
	buf := bytes.NewBufferString("{")
	write := func(key string, value any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(key)
		encoded, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(encoded)
		return nil
	}
	fields := []struct {
		key   string
		mask  keyMask
		unset bool
		value any
	}{
		{"id", keyID, s.ID == "", s.ID},
		{"project", keyProject, s.Project == "", s.Project},
		{"startTime", keyStartTime, s.StartTime == "", s.StartTime},
		{"endTime", keyEndTime, s.EndTime == nil, s.EndTime},
		{"duration", keyDuration, s.Duration == nil, s.Duration},
		{"notes", keyNotes, s.Notes == "", s.Notes},
	}
	for _, f := range fields {
		value := f.value
		if f.unset {
			switch {
			case s.absent&f.mask != 0:
				continue
			case s.null&f.mask != 0:
				value = nil
			}
		}
		if err := write(f.key, value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return appendExtra(buf.Bytes(), s.Extra)
}

func (s *Session) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("session must be an object")
	}
	out := Session{}
	fields := []struct {
		key    string
		target any
	}{
		{"id", &out.ID},
		{"project", &out.Project},
		{"startTime", &out.StartTime},
		{"endTime", &out.EndTime},
		{"duration", &out.Duration},
		{"notes", &out.Notes},
	}
	for _, f := range fields {
		mask := sessionKeys[f.key]
		value, ok := raw[f.key]
		if !ok {
			out.absent |= mask
			continue
		}
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			out.null |= mask
			continue
		}
		if err := json.Unmarshal(value, f.target); err != nil {
			return fmt.Errorf("session field %s: %w", f.key, err)
		}
	}
	for key, value := range raw {
		if _, known := sessionKeys[key]; known {
			continue
		}
		if out.Extra == nil {
			out.Extra = map[string]json.RawMessage{}
		}
		out.Extra[key] = value
	}
	*s = out
	return nil
}

// Fields returns the session as a generic JSON object. Absent keys stay
// absent.
func (s Session) Fields() (map[string]any, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(payload, &out); err != nil || out == nil {
		return nil, fmt.Errorf("%w: stored entry is not an object", apperrors.ErrInvalidSession)
	}
	return out, nil
}

// SessionFromFields decodes a generic JSON object into a Session.
func SessionFromFields(fields map[string]any) (Session, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return Session{}, err
	}
	s := Session{}
	if err := json.Unmarshal(payload, &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// appendExtra splices extra keys, sorted, into a marshalled JSON object.
func appendExtra(object []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return object, nil
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := bytes.NewBuffer(bytes.TrimSuffix(bytes.TrimSpace(object), []byte("}")))
	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
