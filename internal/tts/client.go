// Package tts is a thin HTTP client for the GLM speech API. It is an
// external collaborator of the action server: stateless, no concurrency of
// its own.
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

	"github.com/rs/zerolog/log"

	"github.com/avatarlab/actiond/internal/config"
)

const maxTextLen = 1024

var ErrTextTooLong = errors.New("text exceeds 1024 characters")

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	voice   string
}

func NewClient(cfg config.TTSConfig) *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		voice:   cfg.Voice,
	}
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Stream         bool    `json:"stream"`
	Speed          float64 `json:"speed,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Synthesize converts text to raw audio bytes (pcm format).
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return c.synthesize(ctx, text, c.voice, "pcm")
}

// SynthesizeWithVoice is Synthesize with an explicit voice and format,
// used by the voice-clone flow which falls back to stock voices.
func (c *Client) SynthesizeWithVoice(ctx context.Context, text, voice, format string) ([]byte, error) {
	return c.synthesize(ctx, text, voice, format)
}

// StockVoices are the voices the API ships with, in fallback order.
var StockVoices = []string{"female", "male", "alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// SynthesizeWithFallback tries the requested voice first and walks the
// stock voices when the API rejects it. The API has no real voice-clone
// endpoint, so a custom voice name degrades to the nearest stock voice.
func (c *Client) SynthesizeWithFallback(ctx context.Context, text, voice, format string) ([]byte, error) {
	data, err := c.synthesize(ctx, text, voice, format)
	if err == nil || errors.Is(err, ErrTextTooLong) || ctx.Err() != nil {
		return data, err
	}
	log.Warn().Str("module", "tts").Str("voice", voice).Err(err).Msg("voice rejected, trying stock voices")
	for _, fallback := range StockVoices {
		if fallback == voice {
			continue
		}
		if data, err = c.synthesize(ctx, text, fallback, format); err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, err
}

func (c *Client) synthesize(ctx context.Context, text, voice, format string) ([]byte, error) {
	if len([]rune(text)) > maxTextLen {
		return nil, ErrTextTooLong
	}

	body, err := json.Marshal(speechRequest{
		Model:          "glm-tts",
		Input:          text,
		Voice:          voice,
		ResponseFormat: format,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("tts api failed (status %d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("tts api failed (status %d)", resp.StatusCode)
	}

	log.Info().Str("module", "tts").Int("bytes", len(data)).Str("voice", voice).Msg("speech synthesized")
	return data, nil
}

// ListModels checks API reachability and permissions.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list models failed (status %d)", resp.StatusCode)
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(payload.Data))
	for _, m := range payload.Data {
		out = append(out, m.ID)
	}
	return out, nil
}
