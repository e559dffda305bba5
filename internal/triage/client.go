// Package triage calls the external AI email classifier. The classifier is
// an opaque service: this client sends subject/sender text and gets a
// category back. Classification failures are the caller's to ignore;
// triage is advisory and must never fail a sync record.
package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Classifier asks an external service to categorise an email.
type Classifier interface {
	Classify(ctx context.Context, req Request) (string, error)
}

// Request is the classification input. OfficeID is carried so the service
// can apply per-tenant category sets.
type Request struct {
	OfficeID    string `json:"office_id"`
	Subject     string `json:"subject"`
	FromAddress string `json:"from_address"`
}

type classifyResponse struct {
	Category string `json:"category"`
}

// Client is the HTTP classifier client.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+apiKey)

	return &Client{http: httpClient, logger: logger}
}

func (c *Client) Classify(ctx context.Context, req Request) (string, error) {
	var out classifyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/v1/classify")
	if err != nil {
		return "", fmt.Errorf("classify email: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("classify email: classifier returned %s", resp.Status())
	}
	return out.Category, nil
}
