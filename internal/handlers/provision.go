package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"deferq/internal/domain"
)

// Provisioner forwards actions to the remote provisioning API. The scheduler
// treats the call as opaque: whatever the endpoint does with the action is
// its business.
type Provisioner struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

type provisionRequest struct {
	Action     domain.TaskType `json:"action"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

type provisionResponse struct {
	Message string `json:"message"`
}

func (p *Provisioner) Handle(ctx context.Context, typ domain.TaskType, params json.RawMessage) (string, error) {
	body, err := json.Marshal(provisionRequest{Action: typ, Parameters: params})
	if err != nil {
		return "", fmt.Errorf("encode provision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build provision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("provision call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read provision response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("provision HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var out provisionResponse
	if err := json.Unmarshal(respBody, &out); err == nil && out.Message != "" {
		return out.Message, nil
	}
	return fmt.Sprintf("%s accepted", typ), nil
}
