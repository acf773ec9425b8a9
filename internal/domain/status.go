package domain

import (
	"encoding/json"
	"fmt"
)

// Status is the visible maturity stage of a card. It is derived and
// mutated only by the scheduler.
type Status int

const (
	Learning  Status = iota + 1 // New or recently failed, short intervals.
	Reviewing                   // In the long-term review cycle.
	Mastered                    // Survived enough successes at a long interval.
)

var (
	statusNames  = [...]string{Learning: "learning", Reviewing: "reviewing", Mastered: "mastered"}
	statusByName = map[string]Status{
		"learning":  Learning,
		"reviewing": Reviewing,
		"mastered":  Mastered,
	}
)

// IsValid reports whether s is a defined status.
func (s Status) IsValid() bool {
	return s >= Learning && s <= Mastered
}

func (s Status) String() string {
	if s.IsValid() {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("srs: invalid status: %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	v, ok := statusByName[string(text)]
	if !ok {
		return fmt.Errorf("srs: invalid status: %q", text)
	}
	*s = v
	return nil
}

// MarshalJSON implements json.Marshaler. Status serializes as a JSON string.
func (s Status) MarshalJSON() ([]byte, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler. Expects a JSON string.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("srs: invalid status: %s", data)
	}
	return s.UnmarshalText([]byte(str))
}
