package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// DialInstruction is everything the provider needs to place one call.
type DialInstruction struct {
	OrganizationID uuid.UUID         `json:"organizationId"`
	SessionID      uuid.UUID         `json:"sessionId"`
	ContactID      uuid.UUID         `json:"contactId"`
	FromNumber     string            `json:"fromNumber"`
	ToNumber       string            `json:"toNumber"`
	Context        map[string]string `json:"context,omitempty"`
}

// Dialer hands a dial instruction to the telephony provider and returns the
// provider's call reference.
type Dialer interface {
	Dial(ctx context.Context, instr DialInstruction) (providerRef string, err error)
}

// HTTPDialer posts dial instructions to the provider's REST API.
type HTTPDialer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ Dialer = (*HTTPDialer)(nil)

func NewHTTPDialer(cfg config.ProviderConfig) *HTTPDialer {
	return &HTTPDialer{
		baseURL: cfg.GetProviderBaseURL(),
		apiKey:  cfg.GetProviderAPIKey(),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (d *HTTPDialer) Dial(ctx context.Context, instr DialInstruction) (string, error) {
	body, err := json.Marshal(instr)
	if err != nil {
		return "", fmt.Errorf("encode dial instruction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/calls", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build dial request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("dial request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("provider rejected dial: status %d: %s", resp.StatusCode, snippet)
	}

	var out struct {
		CallRef string `json:"callRef"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode dial response: %w", err)
	}
	if out.CallRef == "" {
		return "", fmt.Errorf("provider returned no call reference")
	}
	return out.CallRef, nil
}

// LogDialer stands in when no provider is configured: it logs the
// instruction and fabricates a reference, keeping development environments
// runnable end to end.
type LogDialer struct {
	log *logger.Logger
}

var _ Dialer = (*LogDialer)(nil)

func NewLogDialer(log *logger.Logger) *LogDialer {
	return &LogDialer{log: log}
}

func (d *LogDialer) Dial(_ context.Context, instr DialInstruction) (string, error) {
	ref := "dev-" + uuid.NewString()
	d.log.Info("dial instruction (no provider configured)",
		"session_id", instr.SessionID.String(),
		"to", instr.ToNumber,
		"provider_ref", ref,
	)
	return ref, nil
}

// NewDialer picks the HTTP dialer when a provider is configured and the
// logging stand-in otherwise.
func NewDialer(cfg config.ProviderConfig, log *logger.Logger) Dialer {
	if cfg.GetProviderBaseURL() == "" {
		return NewLogDialer(log)
	}
	return NewHTTPDialer(cfg)
}
