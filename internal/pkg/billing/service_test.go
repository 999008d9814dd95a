package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ripple-social/ripple/app/models"
)

type fakeWebhookLogRepo struct {
	nextID uint
	byKey  map[string]*models.WebhookLog
}

func newFakeWebhookLogRepo() *fakeWebhookLogRepo {
	return &fakeWebhookLogRepo{nextID: 1, byKey: map[string]*models.WebhookLog{}}
}

func (f *fakeWebhookLogRepo) CreateIfNotExists(log *models.WebhookLog) (bool, *models.WebhookLog, error) {
	if existing, ok := f.byKey[log.ProviderEventID]; ok {
		cp := *existing
		return false, &cp, nil
	}
	log.ID = f.nextID
	f.nextID++
	cp := *log
	f.byKey[log.ProviderEventID] = &cp
	out := cp
	return true, &out, nil
}

func (f *fakeWebhookLogRepo) GetByID(id uint) (*models.WebhookLog, error) {
	for _, log := range f.byKey {
		if log.ID == id {
			cp := *log
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeWebhookLogRepo) MarkProcessed(id uint, processingError string) error {
	for _, log := range f.byKey {
		if log.ID == id {
			log.ProcessingError = processingError
			if processingError != "" {
				log.Status = models.WebhookStatusFailed
			} else {
				log.Status = models.WebhookStatusProcessed
			}
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeWebhookLogRepo) ListRecent(limit int) ([]models.WebhookLog, error) {
	var out []models.WebhookLog
	for _, log := range f.byKey {
		out = append(out, *log)
	}
	return out, nil
}

const testSecret = "whsec_test"

func ingest(t *testing.T, svc *Service, body []byte, eventID, signature string) *IngestResult {
	t.Helper()
	result, err := svc.IngestWebhook(context.Background(), body, eventID, signature, testSecret)
	require.NoError(t, err)
	return result
}

func TestIngestWebhook_Accepted(t *testing.T) {
	svc := NewService(newFakeWebhookLogRepo())
	body := []byte(`{"event":"subscription.activated","payload":{"subscription_id":"psub_1"}}`)

	result := ingest(t, svc, body, "evt_1", SignWebhookPayload(body, testSecret))

	assert.Equal(t, IngestAccepted, result.Outcome)
	assert.Equal(t, "subscription.activated", result.Event)
	assert.Equal(t, "evt_1", result.Log.ProviderEventID)
	assert.True(t, result.Log.SignatureValid)
}

func TestIngestWebhook_RedeliveryIsDuplicate(t *testing.T) {
	svc := NewService(newFakeWebhookLogRepo())
	body := []byte(`{"event":"subscription.charged","payload":{"subscription_id":"psub_1"}}`)
	sig := SignWebhookPayload(body, testSecret)

	first := ingest(t, svc, body, "evt_1", sig)
	second := ingest(t, svc, body, "evt_1", sig)

	assert.Equal(t, IngestAccepted, first.Outcome)
	assert.Equal(t, IngestDuplicate, second.Outcome)
	assert.Equal(t, first.Log.ID, second.Log.ID)
}

func TestIngestWebhook_ForgedEventIDCannotBlockGenuineDelivery(t *testing.T) {
	svc := NewService(newFakeWebhookLogRepo())
	genuine := []byte(`{"event":"subscription.activated","payload":{"subscription_id":"psub_1"}}`)
	forged := []byte(`{"event":"subscription.cancelled","payload":{"subscription_id":"psub_1"}}`)

	// An attacker claims the provider's event id with a bad signature.
	rejected := ingest(t, svc, forged, "evt_1", "deadbeef")
	assert.Equal(t, IngestInvalidSignature, rejected.Outcome)
	assert.False(t, rejected.Log.SignatureValid)
	assert.Equal(t, models.WebhookStatusFailed, mustGet(t, svc, rejected.Log.ID).Status)

	// The provider's own delivery under that id must still be processed.
	accepted := ingest(t, svc, genuine, "evt_1", SignWebhookPayload(genuine, testSecret))
	assert.Equal(t, IngestAccepted, accepted.Outcome)
	assert.Equal(t, "evt_1", accepted.Log.ProviderEventID)
	assert.NotEqual(t, rejected.Log.ID, accepted.Log.ID)
}

func TestIngestWebhook_InvalidSignatureWithMatchingBody(t *testing.T) {
	svc := NewService(newFakeWebhookLogRepo())
	body := []byte(`{"event":"subscription.activated","payload":{"subscription_id":"psub_1"}}`)

	// A replay of the genuine body without a valid signature must not occupy
	// the dedup slot the signed delivery will use.
	rejected := ingest(t, svc, body, "evt_1", "")
	assert.Equal(t, IngestInvalidSignature, rejected.Outcome)

	accepted := ingest(t, svc, body, "evt_1", SignWebhookPayload(body, testSecret))
	assert.Equal(t, IngestAccepted, accepted.Outcome)
}

func TestIngestWebhook_MalformedBody(t *testing.T) {
	svc := NewService(newFakeWebhookLogRepo())
	body := []byte(`{"event":`)

	result := ingest(t, svc, body, "evt_1", SignWebhookPayload(body, testSecret))

	assert.Equal(t, IngestMalformed, result.Outcome)
	assert.Equal(t, models.WebhookStatusFailed, mustGet(t, svc, result.Log.ID).Status)
}

func mustGet(t *testing.T, svc *Service, id uint) *models.WebhookLog {
	t.Helper()
	log, err := svc.logs.GetByID(id)
	require.NoError(t, err)
	return log
}
