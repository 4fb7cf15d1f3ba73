// Package bootstrap is the HTTP adapter for the session bootstrap
// service: one call that trades participant identities for a signaling
// server address and token.
package bootstrap

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

	"github.com/rs/zerolog/log"

	"github.com/cicare/callsdk/internal/core"
	"github.com/cicare/callsdk/internal/domain"
)

const sessionPath = "/api/sdk-call/one2one"

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

type sessionRequest struct {
	domain.Participants
	CheckSum string `json:"checkSum"`
}

// RequestSession performs the one-shot bootstrap call. It never
// retries; retry policy belongs to the caller.
func (c *Client) RequestSession(ctx context.Context, p domain.Participants, checkSum string) (domain.SessionGrant, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil || base.Scheme == "" {
		if err == nil {
			err = fmt.Errorf("invalid base url %q", c.cfg.BaseURL)
		}
		return domain.SessionGrant{}, &core.BootstrapError{Op: "request", Err: err}
	}

	body, err := json.Marshal(sessionRequest{Participants: p, CheckSum: checkSum})
	if err != nil {
		return domain.SessionGrant{}, &core.BootstrapError{Op: "request", Err: err}
	}

	endpoint := strings.TrimRight(base.String(), "/") + sessionPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.SessionGrant{}, &core.BootstrapError{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.SessionGrant{}, &core.BootstrapError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Warn().
			Str("module", "bootstrap").
			Int("status", resp.StatusCode).
			Str("body", string(payload)).
			Msg("session request rejected")
		return domain.SessionGrant{}, &core.BootstrapError{
			Op:  "status",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var grant domain.SessionGrant
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return domain.SessionGrant{}, &core.BootstrapError{Op: "decode", Err: err}
	}
	return grant, nil
}
