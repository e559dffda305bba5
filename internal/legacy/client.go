// Package legacy is the anti-corruption layer in front of the Caseworker
// API: typed search operations, office scoping, and nothing else. Domain
// entities are built from these records by the sync sources.
package legacy

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/casebridge/casebridge/internal/domain"
)

// Client talks to the legacy Caseworker HTTP API. All search operations are
// paginated and scoped to a single office.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient builds a Caseworker client. The API key is sent on every
// request; the legacy system rejects unauthenticated calls outright.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("X-Api-Key", apiKey)

	return &Client{http: httpClient, logger: logger}
}

// SearchCases returns one page of legacy cases for the office, filtered by
// the query's date window.
func (c *Client) SearchCases(ctx context.Context, office domain.OfficeID, q CaseQuery) ([]Case, error) {
	body := caseSearchRequest{
		DateRange:      dateRange{Type: q.DateField, From: q.From, To: q.To},
		PageNo:         q.PageNo,
		ResultsPerPage: q.ResultsPerPage,
	}

	var out caseSearchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("officeId", office.String()).
		SetBody(body).
		SetResult(&out).
		Post("/api/cases/search")
	if err != nil {
		return nil, fmt.Errorf("search cases: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("search cases: legacy api returned %s", resp.Status())
	}

	c.logger.Debug("legacy case page fetched",
		zap.String("office_id", office.String()),
		zap.Int("page_no", q.PageNo),
		zap.Int("results", len(out.Results)))
	return out.Results, nil
}

// SearchConstituents returns one page of legacy constituents for the office.
func (c *Client) SearchConstituents(ctx context.Context, office domain.OfficeID, q ConstituentQuery) ([]Constituent, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("officeId", office.String()).
		SetQueryParam("page", strconv.Itoa(q.Page)).
		SetQueryParam("limit", strconv.Itoa(q.Limit))
	if q.CreatedAfter != nil {
		req.SetQueryParam("createdAfter", q.CreatedAfter.UTC().Format(time.RFC3339))
	}
	if q.ModifiedAfter != nil {
		req.SetQueryParam("modifiedAfter", q.ModifiedAfter.UTC().Format(time.RFC3339))
	}

	var out constituentSearchResponse
	resp, err := req.SetResult(&out).Get("/api/constituents/search")
	if err != nil {
		return nil, fmt.Errorf("search constituents: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("search constituents: legacy api returned %s", resp.Status())
	}

	c.logger.Debug("legacy constituent page fetched",
		zap.String("office_id", office.String()),
		zap.Int("page", q.Page),
		zap.Int("results", len(out.Results)))
	return out.Results, nil
}

// SearchEmails returns one page of legacy emails for the office.
func (c *Client) SearchEmails(ctx context.Context, office domain.OfficeID, q EmailQuery) ([]Email, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("officeId", office.String()).
		SetQueryParam("page", strconv.Itoa(q.Page)).
		SetQueryParam("limit", strconv.Itoa(q.Limit))
	if q.CreatedAfter != nil {
		req.SetQueryParam("createdAfter", q.CreatedAfter.UTC().Format(time.RFC3339))
	}
	if q.ModifiedAfter != nil {
		req.SetQueryParam("modifiedAfter", q.ModifiedAfter.UTC().Format(time.RFC3339))
	}

	var out emailSearchResponse
	resp, err := req.SetResult(&out).Get("/api/emails/search")
	if err != nil {
		return nil, fmt.Errorf("search emails: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("search emails: legacy api returned %s", resp.Status())
	}

	c.logger.Debug("legacy email page fetched",
		zap.String("office_id", office.String()),
		zap.Int("page", q.Page),
		zap.Int("results", len(out.Results)))
	return out.Results, nil
}
