package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "devtrack/internal/platform/errors"
)

const DailyGoalKey = "dailyGoal"

// Config is the user configuration stored alongside the sessions. Keys other
// than dailyGoal are kept as-is; values set from the CLI are strings.
type Config struct {
	DailyGoal float64
	Extra     map[string]json.RawMessage
}

func DefaultConfig() Config {
	return Config{DailyGoal: DefaultDailyGoal}
}

// Document is the whole persisted store. Top-level keys other than
// sessions and config are carried in Extra.
type Document struct {
	Sessions []Session
	Config   Config
	Extra    map[string]json.RawMessage
}

func (d Document) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(struct {
		Sessions []Session `json:"sessions"`
		Config   Config    `json:"config"`
	}{d.Sessions, d.Config})
	if err != nil {
		return nil, err
	}
	return appendExtra(known, d.Extra)
}

func DefaultDocument() Document {
	return Document{Sessions: []Session{}, Config: DefaultConfig()}
}

// ValidGoal reports whether g is a usable daily goal in hours.
func ValidGoal(g float64) bool {
	return g > 0
}

func (c Config) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(struct {
		DailyGoal float64 `json:"dailyGoal"`
	}{c.DailyGoal})
	if err != nil {
		return nil, err
	}
	return appendExtra(known, c.Extra)
}

func (c *Config) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := Config{}
	for key, value := range raw {
		if key == DailyGoalKey {
			// non-numeric goals are repaired by the store, not rejected here
			_ = json.Unmarshal(value, &out.DailyGoal)
			continue
		}
		if out.Extra == nil {
			out.Extra = map[string]json.RawMessage{}
		}
		out.Extra[key] = value
	}
	*c = out
	return nil
}

// Keys lists configured keys, dailyGoal first, the rest sorted.
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c.Extra)+1)
	for k := range c.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return append([]string{DailyGoalKey}, keys...)
}

// Get renders a config value for display.
func (c Config) Get(key string) (string, bool) {
	if key == DailyGoalKey {
		return strconv.FormatFloat(c.DailyGoal, 'f', -1, 64), true
	}
	raw, ok := c.Extra[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(raw), true
}

// Set stores value under key. dailyGoal must parse to a positive number.
func (c *Config) Set(key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" || value == "" {
		return fmt.Errorf("%w: use key=value", apperrors.ErrInvalidInput)
	}
	if key == DailyGoalKey {
		goal, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || !ValidGoal(goal) {
			return fmt.Errorf("%w: dailyGoal must be a positive number", apperrors.ErrInvalidInput)
		}
		c.DailyGoal = goal
		return nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c.Extra == nil {
		c.Extra = map[string]json.RawMessage{}
	}
	c.Extra[key] = encoded
	return nil
}
