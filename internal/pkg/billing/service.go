package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ripple-social/ripple/app/models"
	"github.com/ripple-social/ripple/app/repository"
	"gorm.io/gorm"
)

// Service persists webhook events idempotently into the append-only audit
// log.
type Service struct {
	logs repository.WebhookLogRepository
}

// NewService creates a billing service from an injected repository.
func NewService(logs repository.WebhookLogRepository) *Service {
	return &Service{logs: logs}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(repository.NewWebhookLogRepository(db))
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	ProviderEventID string
	Event           string
	PayloadJSON     string
	SignatureValid  bool
}

// RecordWebhookEvent appends the event unless its provider event id was seen
// before. Events without a provider id are deduplicated by payload hash.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookLog, error) {
	_ = ctx
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	log := &models.WebhookLog{
		Event:           strings.TrimSpace(in.Event),
		ProviderEventID: eventID,
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
		Status:          models.WebhookStatusReceived,
	}
	return s.logs.CreateIfNotExists(log)
}

// MarkWebhookProcessed marks an event as processed and stores an optional
// error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookLogID uint, processingErr error) error {
	_ = ctx
	if webhookLogID == 0 {
		return errors.New("webhook_log_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.logs.MarkProcessed(webhookLogID, errMsg)
}

// RecentEvents returns the newest audit-log rows for admin inspection.
func (s *Service) RecentEvents(ctx context.Context, limit int) ([]models.WebhookLog, error) {
	_ = ctx
	return s.logs.ListRecent(limit)
}

// Ingest outcomes. The HTTP layer maps these onto status codes.
const (
	IngestAccepted         = "accepted"
	IngestDuplicate        = "duplicate"
	IngestInvalidSignature = "invalid_signature"
	IngestMalformed        = "malformed"
)

// IngestResult classifies one inbound webhook delivery.
type IngestResult struct {
	Outcome string
	Log     *models.WebhookLog
	Event   string
}

// IngestWebhook verifies, audits and deduplicates one raw webhook delivery.
// Signature-invalid deliveries are audited under a payload-hash key so a
// forged request cannot occupy the genuine provider event id; deduplication
// by event id applies only among signature-valid deliveries.
func (s *Service) IngestWebhook(ctx context.Context, rawBody []byte, eventID, signature, secret string) (*IngestResult, error) {
	valid := VerifyWebhookSignature(rawBody, signature, secret)

	eventName := ""
	envlp, parseErr := ParseEnvelope(rawBody)
	if parseErr == nil {
		eventName = envlp.Event
	}

	if !valid {
		sum := sha256.Sum256(rawBody)
		_, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
			ProviderEventID: "invalid:" + hex.EncodeToString(sum[:]),
			Event:           eventName,
			PayloadJSON:     string(rawBody),
			SignatureValid:  false,
		})
		if err != nil {
			return nil, err
		}
		_ = s.MarkWebhookProcessed(ctx, stored.ID, errors.New("invalid webhook signature"))
		return &IngestResult{Outcome: IngestInvalidSignature, Log: stored}, nil
	}

	created, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		ProviderEventID: eventID,
		Event:           eventName,
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return &IngestResult{Outcome: IngestDuplicate, Log: stored}, nil
	}
	if parseErr != nil {
		_ = s.MarkWebhookProcessed(ctx, stored.ID, parseErr)
		return &IngestResult{Outcome: IngestMalformed, Log: stored}, nil
	}
	return &IngestResult{Outcome: IngestAccepted, Log: stored, Event: eventName}, nil
}
