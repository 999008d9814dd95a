package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ripple-social/ripple/internal/pkg/env"
)

const defaultProviderAPIBaseURL = "https://api.payments.example.com/v1"

// Client talks to the recurring-billing provider's REST API with key/secret
// basic auth.
type Client struct {
	KeyID      string
	KeySecret  string
	APIBaseURL string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a provider client from environment configuration.
func NewClientFromEnv() *Client {
	return &Client{
		KeyID:      strings.TrimSpace(env.GetEnv("BILLING_KEY_ID", "")),
		KeySecret:  strings.TrimSpace(env.GetEnv("BILLING_KEY_SECRET", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("BILLING_API_BASE_URL", defaultProviderAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, in interface{}, out interface{}) error {
	if c.KeyID == "" || c.KeySecret == "" {
		return errors.New("BILLING_KEY_ID/BILLING_KEY_SECRET are not configured")
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", ErrProviderNotFound, method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("billing provider request failed: %s %s status=%d body=%s",
			method, path, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) CreateCustomer(ctx context.Context, name, email string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	in := map[string]string{"name": name, "email": email}
	if err := c.doJSON(ctx, http.MethodPost, "/customers", in, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", errors.New("provider returned empty customer id")
	}
	return out.ID, nil
}

func (c *Client) CreatePlan(ctx context.Context, name string, amount int64, intervalDays int) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	in := map[string]interface{}{
		"name":          name,
		"amount":        amount,
		"interval_days": intervalDays,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/plans", in, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", errors.New("provider returned empty plan id")
	}
	return out.ID, nil
}

func (c *Client) CreateSubscription(ctx context.Context, customerID, planRef string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	in := map[string]string{"customer_id": customerID, "plan_id": planRef}
	if err := c.doJSON(ctx, http.MethodPost, "/subscriptions", in, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", errors.New("provider returned empty subscription id")
	}
	return out.ID, nil
}

func (c *Client) CancelSubscription(ctx context.Context, providerSubID string, atCycleEnd bool) error {
	path := fmt.Sprintf("/subscriptions/%s/cancel", providerSubID)
	in := map[string]bool{"at_cycle_end": atCycleEnd}
	return c.doJSON(ctx, http.MethodPost, path, in, nil)
}

func (c *Client) FetchSubscription(ctx context.Context, providerSubID string) (*ProviderSubscription, error) {
	var out struct {
		ID         string `json:"id"`
		CustomerID string `json:"customer_id"`
		PlanID     string `json:"plan_id"`
		Status     string `json:"status"`
		CurrentEnd *int64 `json:"current_end"`
	}
	path := fmt.Sprintf("/subscriptions/%s", providerSubID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	sub := &ProviderSubscription{
		ID:         out.ID,
		CustomerID: out.CustomerID,
		PlanRef:    out.PlanID,
		Status:     out.Status,
	}
	if out.CurrentEnd != nil {
		t := time.Unix(*out.CurrentEnd, 0)
		sub.CurrentEnd = &t
	}
	return sub, nil
}

func (c *Client) CreateOneTimeOrder(ctx context.Context, customerID string, amount int64, receipt string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	in := map[string]interface{}{
		"customer_id": customerID,
		"amount":      amount,
		"receipt":     receipt,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/orders", in, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", errors.New("provider returned empty order id")
	}
	return out.ID, nil
}
