// internal/gateway/http.go
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	xerrors "smartstrategy-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const defaultTimeout = 15 * time.Second

// HTTPClient talks to the gateway's REST API. Authentication is a static
// API key header; create-charge calls carry a ulid idempotency key so a
// retried request cannot double-charge.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
	entropy *rand.Rand
}

func NewHTTPClient(baseURL, apiKey string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *HTTPClient) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/customers", req, nil, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *HTTPClient) CreateSubscription(ctx context.Context, req SubscriptionRequest) (string, error) {
	body := map[string]interface{}{
		"customer":    req.CustomerID,
		"value":       req.Value,
		"cycleDays":   req.CycleDays,
		"description": req.Description,
		"nextDueDate": req.NextDueDate.Format("2006-01-02"),
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/subscriptions", body, nil, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *HTTPClient) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	body := map[string]interface{}{
		"customer":          req.CustomerID,
		"value":             req.Value,
		"description":       req.Description,
		"dueDate":           req.DueDate.Format("2006-01-02"),
		"externalReference": req.ExternalReference,
	}
	headers := map[string]string{
		"Idempotency-Key": ulid.MustNew(ulid.Timestamp(time.Now()), c.entropy).String(),
	}
	var out Charge
	if err := c.do(ctx, http.MethodPost, "/payments", body, headers, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error {
	return c.do(ctx, http.MethodDelete, "/subscriptions/"+gatewaySubscriptionID, nil, nil, nil)
}

func (c *HTTPClient) GetSubscriptionStatus(ctx context.Context, gatewaySubscriptionID string) (string, error) {
	var out RemoteSubscription
	if err := c.do(ctx, http.MethodGet, "/subscriptions/"+gatewaySubscriptionID, nil, nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *HTTPClient) ListCustomerSubscriptions(ctx context.Context, customerID string) ([]RemoteSubscription, error) {
	var out struct {
		Data []RemoteSubscription `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/subscriptions?customer="+customerID, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *HTTPClient) EnsureProduct(ctx context.Context, productID string, req ProductRequest) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if productID != "" {
		if err := c.do(ctx, http.MethodPut, "/products/"+productID, req, nil, &out); err != nil {
			return "", err
		}
		return out.ID, nil
	}
	if err := c.do(ctx, http.MethodPost, "/products", req, nil, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}, headers map[string]string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal gateway request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.apiKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		c.logger.Warn("gateway returned server error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return xerrors.ErrNotFound
	case resp.StatusCode >= 400:
		return fmt.Errorf("gateway rejected request: status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode gateway response: %w", err)
		}
	}
	return nil
}
