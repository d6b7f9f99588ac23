package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/utils/safe"
)

// OpenFGA asks an OpenFGA server for relationship checks over its HTTP API.
// Wildcards are evaluated by the server, so the anonymous principal is only
// kept out of "user:*" grants by an authorization model that does so.
type OpenFGA struct {
	apiURL      string
	storeID     string
	modelID     string
	token       string
	client      *http.Client
	maxBodySize int64
}

var _ interfaces.PolicyDecisionPoint = &OpenFGA{}

// OpenFGAOption configures an OpenFGA client
type OpenFGAOption func(*OpenFGA)

// WithAuthorizationModelID pins checks to one authorization model
func WithAuthorizationModelID(id string) OpenFGAOption {
	return func(c *OpenFGA) {
		c.modelID = id
	}
}

// WithAPIToken sends a bearer token with every check
func WithAPIToken(token string) OpenFGAOption {
	return func(c *OpenFGA) {
		c.token = token
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) OpenFGAOption {
	return func(c *OpenFGA) {
		c.client = client
	}
}

// NewOpenFGA creates a client for the store storeID at apiURL
// (e.g. "http://localhost:8080").
func NewOpenFGA(apiURL, storeID string, opts ...OpenFGAOption) (*OpenFGA, error) {
	if apiURL == "" {
		return nil, goerr.New("OpenFGA API URL is required")
	}
	if storeID == "" {
		return nil, goerr.New("OpenFGA store ID is required")
	}
	if _, err := url.ParseRequestURI(apiURL); err != nil {
		return nil, goerr.Wrap(err, "invalid OpenFGA API URL", goerr.V("url", apiURL))
	}

	c := &OpenFGA{
		apiURL:      strings.TrimRight(apiURL, "/"),
		storeID:     storeID,
		client:      &http.Client{Timeout: 10 * time.Second},
		maxBodySize: 1 << 20,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type checkTupleKey struct {
	User     string `json:"user"`
	Relation string `json:"relation"`
	Object   string `json:"object"`
}

type checkRequest struct {
	TupleKey             checkTupleKey `json:"tuple_key"`
	AuthorizationModelID string        `json:"authorization_model_id,omitempty"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Check returns the server's decision. Transport failures, non-2xx status
// and undecodable bodies are all reported as ErrPolicyUnavailable.
func (c *OpenFGA) Check(ctx context.Context, query model.AuthorizationQuery) (bool, error) {
	body, err := json.Marshal(checkRequest{
		TupleKey: checkTupleKey{
			User:     query.Principal,
			Relation: query.Relation.String(),
			Object:   query.Resource,
		},
		AuthorizationModelID: c.modelID,
	})
	if err != nil {
		return false, goerr.Wrap(err, "failed to marshal check request")
	}

	endpoint := c.apiURL + "/stores/" + url.PathEscape(c.storeID) + "/check"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return false, goerr.Wrap(err, "failed to create check request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, goerr.Wrap(model.ErrPolicyUnavailable, "failed to call OpenFGA",
			goerr.V("cause", err.Error()),
			goerr.V("resource", query.Resource),
		)
	}
	defer safe.Close(ctx, resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return false, goerr.Wrap(model.ErrPolicyUnavailable, "failed to read OpenFGA response",
			goerr.V("cause", err.Error()),
		)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		_ = json.Unmarshal(raw, &apiErr)
		return false, goerr.Wrap(model.ErrPolicyUnavailable, "OpenFGA check failed",
			goerr.V("status", resp.StatusCode),
			goerr.V("code", apiErr.Code),
			goerr.V("message", apiErr.Message),
			goerr.V("resource", query.Resource),
		)
	}

	var decision checkResponse
	if err := json.Unmarshal(raw, &decision); err != nil {
		return false, goerr.Wrap(model.ErrPolicyUnavailable, "failed to parse OpenFGA response",
			goerr.V("cause", err.Error()),
		)
	}

	return decision.Allowed, nil
}
