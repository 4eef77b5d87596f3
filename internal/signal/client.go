package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nbacklab/ecg-workload/pkg/models"
)

// Формат запросов и ответов DSP службы. Эти же структуры использует
// автономная заглушка dspstub.
type CleanRequest struct {
	Signal       []float64 `json:"signal"`
	SamplingRate int       `json:"sampling_rate"`
	Method       string    `json:"method"`
}

type CleanResponse struct {
	Signal []float64 `json:"signal"`
}

type PeaksRequest struct {
	Signal           []float64 `json:"signal"`
	SamplingRate     int       `json:"sampling_rate"`
	CorrectArtifacts bool      `json:"correct_artifacts"`
}

type PeaksResponse struct {
	Peaks []int `json:"peaks"`
}

type QualityRequest struct {
	Signal       []float64 `json:"signal"`
	SamplingRate int       `json:"sampling_rate"`
}

type QualityResponse struct {
	Rating string `json:"rating"`
}

type RateRequest struct {
	Peaks        []int `json:"peaks"`
	SamplingRate int   `json:"sampling_rate"`
	Length       int   `json:"length"`
}

type RateResponse struct {
	Rate []float64 `json:"rate"`
}

// Client вызывает внешнюю DSP службу (Python стек) по HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Clean(ctx context.Context, signal []float64, samplingRate int, method models.CleaningMethod) ([]float64, error) {
	var resp CleanResponse
	req := CleanRequest{Signal: signal, SamplingRate: samplingRate, Method: string(method)}
	if err := c.post(ctx, "/api/v1/clean", req, &resp); err != nil {
		return nil, fmt.Errorf("dsp clean failed: %w", err)
	}
	return resp.Signal, nil
}

func (c *Client) DetectPeaks(ctx context.Context, signal []float64, samplingRate int, correctArtifacts bool) ([]int, error) {
	var resp PeaksResponse
	req := PeaksRequest{Signal: signal, SamplingRate: samplingRate, CorrectArtifacts: correctArtifacts}
	if err := c.post(ctx, "/api/v1/peaks", req, &resp); err != nil {
		return nil, fmt.Errorf("dsp peak detection failed: %w", err)
	}
	return resp.Peaks, nil
}

func (c *Client) ScoreQuality(ctx context.Context, signal []float64, samplingRate int) (string, error) {
	var resp QualityResponse
	req := QualityRequest{Signal: signal, SamplingRate: samplingRate}
	if err := c.post(ctx, "/api/v1/quality", req, &resp); err != nil {
		return "", fmt.Errorf("dsp quality scoring failed: %w", err)
	}
	return resp.Rating, nil
}

func (c *Client) EstimateRate(ctx context.Context, peaks []int, samplingRate int, length int) ([]float64, error) {
	var resp RateResponse
	req := RateRequest{Peaks: peaks, SamplingRate: samplingRate, Length: length}
	if err := c.post(ctx, "/api/v1/rate", req, &resp); err != nil {
		return nil, fmt.Errorf("dsp rate estimation failed: %w", err)
	}
	return resp.Rate, nil
}

func (c *Client) post(ctx context.Context, path string, request interface{}, response interface{}) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return fmt.Errorf("dsp service returned %d: %s", httpResp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.NewDecoder(httpResp.Body).Decode(response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
