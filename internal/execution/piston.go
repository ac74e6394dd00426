package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"codesync-backend/internal/dto"
)

const DefaultPistonURL = "https://emkc.org/api/v2/piston"

// maxResponseBytes caps how much of a backend reply is read.
const maxResponseBytes = 4 << 20

type pistonFile struct {
	Content string `json:"content"`
}

type pistonRequest struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Files    []pistonFile `json:"files"`
	Stdin    string       `json:"stdin,omitempty"`
}

// PistonBackend runs code on a Piston execution service.
type PistonBackend struct {
	baseURL string
	client  *http.Client
}

func NewPistonBackend(baseURL string, timeout time.Duration) *PistonBackend {
	if baseURL == "" {
		baseURL = DefaultPistonURL
	}
	return &PistonBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *PistonBackend) Name() string {
	return BackendPiston
}

func (p *PistonBackend) Execute(ctx context.Context, req Request) (*dto.ExecuteResponse, error) {
	body, err := json.Marshal(pistonRequest{
		Language: req.Language,
		Version:  req.Version,
		Files:    []pistonFile{{Content: req.Source}},
		Stdin:    req.Stdin,
	})
	if err != nil {
		return nil, &BackendError{Backend: BackendPiston, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, &BackendError{Backend: BackendPiston, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &BackendError{Backend: BackendPiston, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &BackendError{Backend: BackendPiston, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &BackendError{Backend: BackendPiston, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out dto.ExecuteResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &BackendError{Backend: BackendPiston, StatusCode: resp.StatusCode, Body: string(raw), Err: fmt.Errorf("decode response: %w", err)}
	}
	return &out, nil
}
