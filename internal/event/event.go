// Package event defines the canonical stored event record and the closed
// set of GitHub event kinds the system monitors.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is one stored record of public GitHub activity.
// Records are append-only: never mutated, never deleted.
type Event struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Repo        string          `json:"repo"`
	Actor       string          `json:"actor"`
	CreatedAt   time.Time       `json:"createdAt"`
	Payload     json.RawMessage `json:"payload"`
	CollectedAt time.Time       `json:"collectedAt"`
}

// Summary is the compact form kept in monitor buffers.
type Summary struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Repo      string    `json:"repo"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary returns the compact form of the event.
func (e *Event) Summary() Summary {
	return Summary{
		ID:        e.ID,
		Kind:      e.Kind,
		Repo:      e.Repo,
		Actor:     e.Actor,
		CreatedAt: e.CreatedAt,
	}
}

// Raw is the envelope the GitHub Events API returns for a single event.
// CreatedAt stays a string so a malformed timestamp surfaces as a parse
// error in FromRaw instead of a silent zero time.
type Raw struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Actor struct {
		Login string `json:"login"`
	} `json:"actor"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"created_at"`
}

// FromRaw maps an upstream event to the stored record. It fails when a
// required field (id, type, repo name, actor login, created_at) is absent or the
// timestamp is not RFC 3339; the caller skips such events. CollectedAt is
// left zero: the store sets it on insert.
func FromRaw(raw *Raw) (*Event, error) {
	if raw.ID == "" {
		return nil, fmt.Errorf("event missing id")
	}
	if raw.Type == "" {
		return nil, fmt.Errorf("event %s missing type", raw.ID)
	}
	if !Monitored(raw.Type) {
		return nil, fmt.Errorf("event %s has unmonitored type %s", raw.ID, raw.Type)
	}
	if raw.Repo.Name == "" {
		return nil, fmt.Errorf("event %s missing repo name", raw.ID)
	}
	if raw.Actor.Login == "" {
		return nil, fmt.Errorf("event %s missing actor login", raw.ID)
	}
	if raw.CreatedAt == "" {
		return nil, fmt.Errorf("event %s missing created_at", raw.ID)
	}
	createdAt, err := time.Parse(time.RFC3339, raw.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("event %s has malformed created_at: %w", raw.ID, err)
	}

	payload := raw.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	return &Event{
		ID:        raw.ID,
		Kind:      Kind(raw.Type),
		Repo:      raw.Repo.Name,
		Actor:     raw.Actor.Login,
		CreatedAt: createdAt.UTC(),
		Payload:   payload,
	}, nil
}
