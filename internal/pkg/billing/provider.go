package billing

import (
	"context"
	"errors"
	"time"
)

// ErrProviderNotFound is returned when the provider reports that a referenced
// customer/plan/subscription id no longer exists. Callers clear the stale
// cached id and retry rather than failing permanently.
var ErrProviderNotFound = errors.New("billing provider: referenced id not found")

// ProviderSubscription is the provider-side view of a mandate.
type ProviderSubscription struct {
	ID         string
	CustomerID string
	PlanRef    string
	Status     string
	CurrentEnd *time.Time
}

// Provider is the abstract recurring-billing surface the engine depends on.
// The raw provider SDK is out of scope; this is its boundary.
type Provider interface {
	CreateCustomer(ctx context.Context, name, email string) (string, error)
	CreatePlan(ctx context.Context, name string, amount int64, intervalDays int) (string, error)
	CreateSubscription(ctx context.Context, customerID, planRef string) (string, error)
	CancelSubscription(ctx context.Context, providerSubID string, atCycleEnd bool) error
	FetchSubscription(ctx context.Context, providerSubID string) (*ProviderSubscription, error)
	CreateOneTimeOrder(ctx context.Context, customerID string, amount int64, receipt string) (string, error)
}
