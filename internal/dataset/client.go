// Package dataset wraps the backend's request/response endpoints: dataset
// loading for rubric discovery and video transcription for Q&A runs.
package dataset

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
)

// Summary is the dataset statistics record returned by /load-dataset and
// /dataset-info. It is stored verbatim.
type Summary struct {
	NumTraining       int            `json:"num_training"`
	NumEval           int            `json:"num_eval"`
	TrainScoreMean    float64        `json:"train_score_mean"`
	TrainScoreMin     float64        `json:"train_score_min"`
	TrainScoreMax     float64        `json:"train_score_max"`
	EvalScoreMean     float64        `json:"eval_score_mean"`
	ScoreDistribution map[string]int `json:"score_distribution"`
}

// Video is one entry of a /transcribe response. Error is set when the
// backend could not transcribe the URL.
type Video struct {
	VideoID           string  `json:"video_id"`
	Title             string  `json:"title"`
	Duration          float64 `json:"duration,omitempty"`
	Channel           string  `json:"channel,omitempty"`
	SegmentCount      int     `json:"segment_count,omitempty"`
	TranscriptChars   int     `json:"transcript_chars,omitempty"`
	TranscriptPreview string  `json:"transcript_preview,omitempty"`
	Error             string  `json:"error,omitempty"`
}

// RequestError is a failed call: a non-2xx status, or an error body.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Client calls the backend's HTTP endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Load asks the backend to load its dataset and returns the summary.
func (c *Client) Load(ctx context.Context) (*Summary, error) {
	var s Summary
	if err := c.do(ctx, http.MethodPost, "/load-dataset", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Info returns the summary of the already loaded dataset.
func (c *Client) Info(ctx context.Context) (*Summary, error) {
	var s Summary
	if err := c.do(ctx, http.MethodGet, "/dataset-info", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Transcribe asks the backend to transcribe the given video URLs.
func (c *Client) Transcribe(ctx context.Context, urls []string) ([]Video, error) {
	var resp struct {
		Videos []Video `json:"videos"`
	}
	body := map[string][]string{"urls": urls}
	if err := c.do(ctx, http.MethodPost, "/transcribe", body, &resp); err != nil {
		return nil, err
	}
	return resp.Videos, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	// /dataset-info answers 200 with {"error": ...} before a dataset is loaded.
	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &envelope) == nil && envelope.Error != "" {
		return &RequestError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: envelope.Error}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
