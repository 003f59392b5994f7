package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CalendarEvent is the payload handed to the calendar-mirroring
// collaborator for a confirmed booking.
type CalendarEvent struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees,omitempty"`
}

// Mirror creates an event in an external calendar and returns its external
// identifier. Absence of a configured mirror is not an error; callers hold a
// nil Mirror in that case.
type Mirror interface {
	CreateEvent(ctx context.Context, ev CalendarEvent) (string, error)
}

// HTTPMirror posts bookings to a calendar service endpoint that answers
// with the created event id.
type HTTPMirror struct {
	url    string
	client *http.Client
}

func NewHTTPMirror(url string) *HTTPMirror {
	return &HTTPMirror{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (m *HTTPMirror) CreateEvent(ctx context.Context, ev CalendarEvent) (string, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal calendar event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build calendar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create calendar event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("calendar service returned status %d", resp.StatusCode)
	}

	var out struct {
		EventID string `json:"event_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode calendar response: %w", err)
	}
	return out.EventID, nil
}
