package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/makeasinger/songgen/internal/apperr"
	"github.com/makeasinger/songgen/internal/config"
	"github.com/makeasinger/songgen/internal/logger"
	"github.com/makeasinger/songgen/internal/model"
)

const opInvoke = "render.invoke"

// RenderBackend builds requests for and invokes the remote render endpoint.
type RenderBackend interface {
	BuildRequest(in model.Inputs, guidanceScale float64) *RenderRequest
	Invoke(ctx context.Context, req *RenderRequest, deadline time.Duration) (*RenderResult, error)
}

// RenderEndpoints holds the three mode-specific endpoint URLs.
type RenderEndpoints struct {
	Description     string
	DescribedLyrics string
	Lyrics          string
}

// SelectEndpoint returns the endpoint for the inputs' mode. Exactly one
// endpoint applies: full described song, then described lyrics, then lyrics.
func SelectEndpoint(endpoints RenderEndpoints, in model.Inputs) string {
	switch in.Mode() {
	case model.InputModeFullDescribedSong:
		return endpoints.Description
	case model.InputModeDescribedLyrics:
		return endpoints.DescribedLyrics
	default:
		return endpoints.Lyrics
	}
}

// RenderPayload is the JSON body sent to the render backend.
type RenderPayload struct {
	Prompt            string  `json:"prompt,omitempty"`
	Lyrics            string  `json:"lyrics,omitempty"`
	DescribedLyrics   string  `json:"described_lyrics,omitempty"`
	FullDescribedSong string  `json:"full_described_song,omitempty"`
	Instrumental      bool    `json:"instrumental"`
	GuidanceScale     float64 `json:"guidance_scale"`
	AudioDuration     int     `json:"audio_duration"`
	Seed              int     `json:"seed"`
	InferStep         int     `json:"infer_step"`
}

// RenderRequest is the normalized request: selected endpoint plus payload.
type RenderRequest struct {
	Mode     model.InputMode
	Endpoint string
	Payload  RenderPayload
}

// RenderResult is the backend's answer. Every field is optional.
type RenderResult struct {
	AudioRef   string   `json:"audio_public_id,omitempty"`
	AudioURL   string   `json:"audio_url,omitempty"`
	CoverRef   string   `json:"cover_image_public_id,omitempty"`
	CoverURL   string   `json:"cover_image_url,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// HasAudio reports whether the backend returned anything for the audio.
func (r *RenderResult) HasAudio() bool {
	return r.AudioRef != "" || r.AudioURL != ""
}

// RenderClient implements RenderBackend over HTTP
type RenderClient struct {
	httpClient *http.Client
	endpoints  RenderEndpoints
	key        string
	secret     string
	params     config.RenderConfig
}

// NewRenderClient creates a new render backend client
func NewRenderClient(cfg *config.RenderConfig) *RenderClient {
	return &RenderClient{
		// The per-call deadline bounds requests; no client-wide timeout.
		httpClient: &http.Client{},
		endpoints: RenderEndpoints{
			Description:     cfg.DescriptionURL,
			DescribedLyrics: cfg.DescribedLyricsURL,
			Lyrics:          cfg.LyricsURL,
		},
		key:    cfg.Key,
		secret: cfg.Secret,
		params: *cfg,
	}
}

// BuildRequest maps job inputs onto a render request.
func (c *RenderClient) BuildRequest(in model.Inputs, guidanceScale float64) *RenderRequest {
	return &RenderRequest{
		Mode:     in.Mode(),
		Endpoint: SelectEndpoint(c.endpoints, in),
		Payload: RenderPayload{
			Prompt:            in.Prompt,
			Lyrics:            in.Lyrics,
			DescribedLyrics:   in.DescribedLyrics,
			FullDescribedSong: in.FullDescribedSong,
			Instrumental:      in.Instrumental,
			GuidanceScale:     guidanceScale,
			AudioDuration:     c.params.AudioDuration,
			Seed:              c.params.Seed,
			InferStep:         c.params.InferStep,
		},
	}
}

// Invoke posts the request to its endpoint. The call is cancelled when
// deadline elapses. No retries are made.
func (c *RenderClient) Invoke(ctx context.Context, req *RenderRequest, deadline time.Duration) (*RenderResult, error) {
	if req.Endpoint == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, opInvoke,
			fmt.Sprintf("render endpoint for mode %s is not configured", req.Mode))
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	bodyBytes, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgument, opInvoke, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgument, opInvoke, "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.key != "" && c.secret != "" {
		httpReq.Header.Set("Modal-Key", c.key)
		httpReq.Header.Set("Modal-Secret", c.secret)
	}

	log := logger.WithComponent("render")
	log.Infof("→ POST %s (mode=%s)", req.Endpoint, req.Mode)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Warnf("✗ POST %s — request failed after %v: %v", req.Endpoint, time.Since(start), err)
		return nil, classifyTransportError(ctx, err, deadline)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warnf("✗ POST %s — failed to read response: %v", req.Endpoint, err)
		return nil, classifyTransportError(ctx, err, deadline)
	}

	log.Infof("← %d POST %s in %v", resp.StatusCode, req.Endpoint, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apperr.Error{
			Kind:    apperr.KindBackendError,
			Op:      opInvoke,
			Message: fmt.Sprintf("render backend error (status %d)", resp.StatusCode),
			Status:  resp.StatusCode,
			Body:    string(respBody),
		}
	}

	var result RenderResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		log.Warnf("✗ unmarshal error for POST %s: %v (body: %s)", req.Endpoint, err, string(respBody))
		return nil, &apperr.Error{
			Kind:    apperr.KindBackendError,
			Op:      opInvoke,
			Message: "failed to unmarshal response",
			Status:  resp.StatusCode,
			Body:    string(respBody),
			Err:     err,
		}
	}

	return &result, nil
}

func classifyTransportError(ctx context.Context, err error, deadline time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindTimeout, opInvoke,
			fmt.Sprintf("render backend timed out after %v", deadline), err)
	}
	return apperr.Wrap(apperr.KindTransport, opInvoke, "failed to send request", err)
}

// IsConfigured returns true if at least the default lyrics endpoint is set
func (c *RenderClient) IsConfigured() bool {
	return c.endpoints.Lyrics != "" || c.endpoints.Description != "" || c.endpoints.DescribedLyrics != ""
}
