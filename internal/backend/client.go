package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/folioscope/portfolio-chat/internal/portfolio"
)

// CreateResponse is the body of a successful POST /api/portfolios.
type CreateResponse struct {
	Success   bool             `json:"success"`
	ID        string           `json:"id"`
	Message   string           `json:"message"`
	CreatedAt string           `json:"created_at"`
	Data      portfolio.Record `json:"data"`
}

// ErrorResponse is the body of a rejected request.
type ErrorResponse struct {
	Message     string           `json:"message"`
	TotalWeight *decimal.Decimal `json:"totalWeight,omitempty"`
}

// Client reaches a portfolio API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) List(ctx context.Context) ([]portfolio.Record, error) {
	var records []portfolio.Record
	if err := c.do(ctx, http.MethodGet, "/api/portfolios", nil, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []portfolio.Record{}
	}
	return records, nil
}

func (c *Client) Get(ctx context.Context, id string) (*portfolio.Record, error) {
	var record portfolio.Record
	if err := c.do(ctx, http.MethodGet, "/api/portfolios/"+url.PathEscape(id), nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) Submit(ctx context.Context, p portfolio.Portfolio) (portfolio.Record, error) {
	var created CreateResponse
	if err := c.do(ctx, http.MethodPost, "/api/portfolios", p, &created); err != nil {
		return portfolio.Record{}, err
	}
	record := created.Data
	if record.ID == "" {
		record.ID = created.ID
	}
	if record.CreatedAt == "" {
		record.CreatedAt = created.CreatedAt
	}
	return record, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		var failure ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err := json.Unmarshal(raw, &failure); err != nil || failure.Message == "" {
			failure.Message = strings.TrimSpace(string(raw))
		}
		return &RejectedError{Status: resp.StatusCode, Message: failure.Message, TotalWeight: failure.TotalWeight}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
