package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"marketplace-wallet-engine/config"
	"marketplace-wallet-engine/internal/core/domain"
	"marketplace-wallet-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

// notificationRetryIntervals spaces out redelivery attempts.
var notificationRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	5 * time.Minute,
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// notificationPayload is the JSON structure sent to the notification service.
type notificationPayload struct {
	Event     domain.WalletEvent `json:"event"`
	Signature string             `json:"signature"`
}

// HTTPNotificationService implements ports.NotificationService by POSTing
// signed events to the external notification collaborator. Delivery is
// fire-and-forget: a committed ledger record is never rolled back because a
// notification could not be sent.
type HTTPNotificationService struct {
	cfg        config.NotificationConfig
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewHTTPNotificationService creates a new HTTPNotificationService.
func NewHTTPNotificationService(
	cfg config.NotificationConfig,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	log zerolog.Logger,
) *HTTPNotificationService {
	return &HTTPNotificationService{
		cfg:        cfg,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		log:        log,
	}
}

// Emit delivers the event asynchronously. It returns immediately; failures
// are logged and swallowed.
func (s *HTTPNotificationService) Emit(ctx context.Context, event domain.WalletEvent) {
	if s.cfg.URL == "" {
		s.log.Debug().
			Str("event_type", string(event.EventType)).
			Msg("notification: no URL configured, skipping")
		return
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		s.log.Error().Err(err).Msg("notification: failed to marshal event")
		return
	}

	payload := notificationPayload{
		Event:     event,
		Signature: s.sigSvc.Sign(s.cfg.Secret, string(eventBytes)),
	}

	go s.deliverWithRetries(payload)
}

// deliverWithRetries attempts delivery with spaced retries.
func (s *HTTPNotificationService) deliverWithRetries(payload notificationPayload) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Msg("notification: failed to marshal payload")
		return
	}

	eventType := string(payload.Event.EventType)
	recordID := payload.Event.RecordID.String()

	for attempt := 0; attempt <= len(notificationRetryIntervals); attempt++ {
		if attempt > 0 {
			time.Sleep(notificationRetryIntervals[attempt-1])
		}

		req, err := http.NewRequest(http.MethodPost, s.cfg.URL, bytes.NewReader(payloadBytes))
		if err != nil {
			s.log.Error().Err(err).Str("record_id", recordID).Msg("notification: failed to create request")
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.Warn().Err(err).
				Str("event_type", eventType).
				Str("record_id", recordID).
				Int("attempt", attempt+1).
				Msg("notification: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.log.Info().
				Str("event_type", eventType).
				Str("record_id", recordID).
				Int("attempt", attempt+1).
				Msg("notification: delivered")
			return
		}

		s.log.Warn().
			Str("event_type", eventType).
			Str("record_id", recordID).
			Int("attempt", attempt+1).
			Int("status", resp.StatusCode).
			Msg("notification: non-2xx response, retrying")
	}

	s.log.Error().
		Str("event_type", eventType).
		Str("record_id", recordID).
		Msg("notification: all retry attempts exhausted")
}
