package tts

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

	"github.com/sonantlabs/sonant/internal/config"
)

const defaultBaseURL = "https://api.openai.com/v1"

// OpenAIProvider calls the OpenAI speech endpoint. Voice, speed, and output
// format come from config unless the request overrides them.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	model      string
	voice      string
	speed      float64
	format     string
	httpClient *http.Client
}

func NewOpenAIProvider(cfg config.TTSConfig) *OpenAIProvider {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAIProvider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   cfg.Model,
		voice:   cfg.Voice,
		speed:   cfg.Speed,
		format:  cfg.Format,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

func (p *OpenAIProvider) Synthesize(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, &SynthesisError{Reason: "empty text"}
	}

	voice := req.Voice
	if voice == "" {
		voice = p.voice
	}
	speed := req.Speed
	if speed == 0 {
		speed = p.speed
	}
	format := req.Format
	if format == "" {
		format = p.format
	}

	payload, err := json.Marshal(speechRequest{
		Model:          p.model,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: format,
		Speed:          speed,
	})
	if err != nil {
		return nil, &SynthesisError{Reason: fmt.Sprintf("marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, &SynthesisError{Reason: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, &SynthesisError{Reason: "synthesis request timed out", Timeout: true}
		}
		return nil, &SynthesisError{Reason: fmt.Sprintf("send request: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &SynthesisError{
			Reason: fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SynthesisError{Reason: fmt.Sprintf("read audio: %v", err)}
	}
	if len(audio) == 0 {
		return nil, &SynthesisError{Reason: "empty audio response"}
	}

	return &Result{Audio: audio, Format: format}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
