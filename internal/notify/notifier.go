// Package notify contains the best-effort collaborators invoked after a
// booking commits: the email notification service and the calendar mirror.
// Nothing in here may affect the outcome of a reservation.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	ActionBookingConfirmation = "BOOKING_CONFIRMATION"
	ActionNewBooking          = "NEW_BOOKING"
)

// Notification is the wire contract of the email service: a template action,
// a recipient and the template data.
type Notification struct {
	Action    string            `json:"action"`
	Recipient string            `json:"recipient"`
	Data      map[string]string `json:"data"`
}

type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// EmailServiceNotifier posts notifications to the external email service.
type EmailServiceNotifier struct {
	url    string
	client *http.Client
}

func NewEmailServiceNotifier(url string) *EmailServiceNotifier {
	return &EmailServiceNotifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (n *EmailServiceNotifier) Send(ctx context.Context, notif Notification) error {
	body, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier stands in when no email service is configured.
type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, notif Notification) error {
	n.log.WithFields(logrus.Fields{
		"action":    notif.Action,
		"recipient": notif.Recipient,
	}).Info("notification (email service not configured)")
	return nil
}
