// Package upstream is the HTTP client for the generation backend. It builds
// the outbound request for each endpoint kind and hands the live streaming
// response back to the caller; it never touches persistence.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"inkwell.app/assistant/core/config"
)

const acceptEventStream = "text/event-stream"

type Dispatcher interface {
	// Completion opens a streaming completion for a plain conversation.
	// On success the caller owns the response body.
	Completion(ctx context.Context, req CompletionRequest) (*http.Response, error)
	// ReportCompletion opens a streaming completion grounded in an uploaded file.
	ReportCompletion(ctx context.Context, req ReportRequest) (*http.Response, error)
	// CheckRelevance asks whether the latest exchange stays on the
	// conversation's topic.
	CheckRelevance(ctx context.Context, messages []Message) (bool, error)
}

type CompletionRequest struct {
	ChatID   int64  `json:"chatId,string"`
	RoundID  int64  `json:"roundId,string"`
	RecordID int64  `json:"recordId,string"`
	Question string `json:"question"`
}

type ReportRequest struct {
	Question string
	FileName string
	FileData []byte
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

func New(cfg config.UpstreamConfig) Dispatcher {
	return &client{
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		http: &http.Client{
			// The header timeout is the dispatch deadline; the body is a
			// long-lived stream and must not be bounded here.
			Transport: &http.Transport{
				ResponseHeaderTimeout: cfg.Timeout,
			},
		},
	}
}

func (c *client) Completion(ctx context.Context, req CompletionRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/stream/completion", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", acceptEventStream)

	return c.doStream(httpReq)
}

func (c *client) ReportCompletion(ctx context.Context, req ReportRequest) (*http.Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("user_input", req.Question); err != nil {
		return nil, fmt.Errorf("writing user_input field: %w", err)
	}
	part, err := mw.CreateFormFile("file", req.FileName)
	if err != nil {
		return nil, fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(req.FileData); err != nil {
		return nil, fmt.Errorf("writing file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/stream/report", &buf)
	if err != nil {
		return nil, fmt.Errorf("building report request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Accept", acceptEventStream)

	return c.doStream(httpReq)
}

type relevanceRequest struct {
	Messages []Message `json:"messages"`
}

type relevanceResponse struct {
	Code int `json:"code"`
	Data struct {
		Related bool `json:"related"`
	} `json:"data"`
}

func (c *client) CheckRelevance(ctx context.Context, messages []Message) (bool, error) {
	body, err := json.Marshal(relevanceRequest{Messages: messages})
	if err != nil {
		return false, fmt.Errorf("encoding relevance request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/relevance", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("building relevance request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return false, c.wrapDoError(httpReq, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, &StatusError{Endpoint: httpReq.URL.Path, Code: resp.StatusCode}
	}

	var decoded relevanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return false, fmt.Errorf("decoding relevance response: %w", err)
	}
	return decoded.Data.Related, nil
}

// doStream sends the request and verifies the response is streamable.
// Non-2xx bodies are drained and closed here; 2xx bodies belong to the caller.
func (c *client) doStream(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.wrapDoError(req, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{Endpoint: req.URL.Path, Code: resp.StatusCode}
	}

	return resp, nil
}

func (c *client) wrapDoError(req *http.Request, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Endpoint: req.URL.Path, Timeout: c.timeout}
	}
	return fmt.Errorf("upstream request %s: %w", req.URL.Path, err)
}
