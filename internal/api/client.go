package api

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

	"lexcase/internal/analysis"
	"lexcase/internal/services"
)

// maxErrorBody bounds how much of a failed reply is read.
const maxErrorBody = 64 << 10

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a lexcase daemon over HTTP.
type Client struct {
	endpoint string
	token    string
	doer     HTTPDoer
}

// NewClient constructs a client for endpoint. A nil doer uses
// http.DefaultClient.
func NewClient(endpoint, token string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		token:    strings.TrimSpace(token),
		doer:     doer,
	}
}

// Endpoint returns the daemon base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Analyze runs req on the daemon. It implements analysis.Analyzer.
func (c *Client) Analyze(ctx context.Context, req analysis.Request) (analysis.Response, error) {
	body := AnalyzeRequest{
		Text:              req.Text,
		StageIndex:        StageNumber(req.StageIndex),
		APIKey:            req.APIKey,
		Stage:             req.StageName,
		PreviousSummaries: req.PreviousSummaries,
		PartyRole:         req.PartyRole,
		FinalPetition:     req.FinalPetition,
	}
	header := http.Header{}
	if model := strings.TrimSpace(req.Model); model != "" {
		header.Set(ModelHeader, model)
	}
	var reply AnalyzeResponse
	if err := c.do(ctx, http.MethodPost, "/api/analyze", header, body, &reply); err != nil {
		return analysis.Response{}, err
	}
	resp := analysis.Response{
		Stage:      reply.Stage,
		StageIndex: req.StageIndex,
		Analysis:   reply.Analysis,
		Cached:     reply.Cached,
		Context:    reply.Context,
	}
	if reply.StageIndex != nil {
		resp.StageIndex = *reply.StageIndex
	}
	if reply.Timestamp > 0 {
		resp.Timestamp = time.UnixMilli(reply.Timestamp)
	}
	return resp, nil
}

// Stages fetches the daemon stage catalog.
func (c *Client) Stages(ctx context.Context) ([]StageInfo, error) {
	var reply StagesResponse
	if err := c.do(ctx, http.MethodGet, "/api/stages", nil, nil, &reply); err != nil {
		return nil, err
	}
	return reply.Stages, nil
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var reply DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &reply)
	return reply, err
}

// Cases lists cases known to the daemon.
func (c *Client) Cases(ctx context.Context) ([]CaseSummary, error) {
	var reply CaseListResponse
	if err := c.do(ctx, http.MethodGet, "/api/cases", nil, nil, &reply); err != nil {
		return nil, err
	}
	return reply.Cases, nil
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header, body, out any) error {
	if c == nil || c.endpoint == "" {
		return services.Wrap(services.ErrConfiguration, "api", "request", "daemon endpoint not configured", nil)
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrTransient, "api", "request", method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrUpstream, "api", "decode", "invalid response body", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body ErrorResponse
	statusErr := &StatusError{Status: resp.StatusCode}
	if err := json.Unmarshal(raw, &body); err == nil {
		statusErr.Code = body.Code
		statusErr.Details = body.Details
		statusErr.Message = strings.TrimSpace(body.Message)
		if statusErr.Message == "" {
			statusErr.Message = strings.TrimSpace(body.Error)
		}
	}
	if statusErr.Message == "" {
		statusErr.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return statusErr
}

// AsStatusError extracts a StatusError from err.
func AsStatusError(err error) (*StatusError, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}
