package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/insightdeck/insightdeck/internal/apperr"
)

// OpenRouterProvider calls an OpenAI-compatible chat-completions endpoint.
// A 400 against the configured model triggers exactly one retry against
// FallbackModel before giving up.
type OpenRouterProvider struct {
	BaseURL       string
	APIKey        string
	Model         string
	FallbackModel string
	SiteURL       string
	AppName       string
	Client        *http.Client
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model       string    `json:"model"`
	Messages    []chatMsg `json:"messages"`
	Stream      bool      `json:"stream"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type chatResp struct {
	Choices []struct {
		Message chatMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type streamResp struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenRouterProvider(baseURL, apiKey, model, fallbackModel, siteURL, appName string) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterProvider{
		BaseURL:       baseURL,
		APIKey:        apiKey,
		Model:         model,
		FallbackModel: fallbackModel,
		SiteURL:       siteURL,
		AppName:       appName,
		Client:        &http.Client{Timeout: 90 * time.Second},
	}
}

// checkConfig fails fast before any dial so a missing key never costs a
// network round trip.
func (p *OpenRouterProvider) checkConfig() error {
	if p.Client == nil {
		return apperr.UpstreamConfig("http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return apperr.UpstreamConfig("OPENROUTER_API_KEY is not set")
	}
	if strings.TrimSpace(p.Model) == "" {
		return apperr.UpstreamConfig("completion model is not set")
	}
	return nil
}

func (p *OpenRouterProvider) buildRequest(ctx context.Context, model string, messages []Message, params Params, stream bool) (*http.Request, error) {
	body := chatReq{
		Model:     model,
		Stream:    stream,
		MaxTokens: params.MaxTokens,
	}
	if params.Temperature > 0 {
		t := params.Temperature
		body.Temperature = &t
	}
	body.Messages = make([]chatMsg, 0, len(messages))
	for _, m := range messages {
		body.Messages = append(body.Messages, chatMsg{Role: m.Role, Content: m.Content})
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	if p.SiteURL != "" {
		req.Header.Set("HTTP-Referer", p.SiteURL)
	}
	if p.AppName != "" {
		req.Header.Set("X-Title", p.AppName)
	}
	return req, nil
}

// classify maps an upstream response status to the error taxonomy.
// 401/403 are key problems, other 4xx are request/model configuration,
// 5xx is transient.
func classify(status int, body string) *apperr.UpstreamError {
	msg := strings.TrimSpace(body)
	if msg == "" {
		msg = fmt.Sprintf("status %d", status)
	}
	ue := &apperr.UpstreamError{Status: status, Msg: msg}
	ue.Transient = status >= 500
	return ue
}

func (p *OpenRouterProvider) Chat(ctx context.Context, messages []Message, params Params) (string, error) {
	if err := p.checkConfig(); err != nil {
		return "", err
	}

	model := params.Model
	if model == "" {
		model = p.Model
	}

	out, status, err := p.chatOnce(ctx, model, messages, params)
	if err == nil {
		return out, nil
	}

	// One-shot alternate-model retry on a 400: a rejected model name is a
	// configuration problem the fallback identifier may not share.
	if status == http.StatusBadRequest && p.FallbackModel != "" && p.FallbackModel != model {
		out, _, retryErr := p.chatOnce(ctx, p.FallbackModel, messages, params)
		if retryErr == nil {
			return out, nil
		}
	}
	return "", err
}

func (p *OpenRouterProvider) chatOnce(ctx context.Context, model string, messages []Message, params Params) (string, int, error) {
	req, err := p.buildRequest(ctx, model, messages, params, false)
	if err != nil {
		return "", 0, err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", 0, apperr.UpstreamTransient("completion call timed out", err)
		}
		return "", 0, apperr.UpstreamTransient("completion call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return "", resp.StatusCode, classify(resp.StatusCode, string(body))
	}

	var decoded chatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", resp.StatusCode, apperr.UpstreamTransient("malformed completion response", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", resp.StatusCode, &apperr.UpstreamError{Status: resp.StatusCode, Msg: decoded.Error.Message}
	}
	if len(decoded.Choices) == 0 {
		return "", resp.StatusCode, apperr.UpstreamTransient("empty completion response", nil)
	}
	return decoded.Choices[0].Message.Content, resp.StatusCode, nil
}

// StreamChat streams assistant content deltas via SSE. Both channels are
// closed when streaming ends; cancelling ctx releases the upstream
// connection mid-stream.
func (p *OpenRouterProvider) StreamChat(ctx context.Context, messages []Message, params Params) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		if err := p.checkConfig(); err != nil {
			errs <- err
			return
		}

		model := params.Model
		if model == "" {
			model = p.Model
		}

		req, err := p.buildRequest(ctx, model, messages, params, true)
		if err != nil {
			errs <- err
			return
		}

		// ctx governs streaming lifetime, not the client's global timeout.
		client := *p.Client
		client.Timeout = 0

		resp, err := client.Do(req)
		if err != nil {
			errs <- apperr.UpstreamTransient("completion stream failed", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
			errs <- classify(resp.StatusCode, string(body))
			return
		}

		sc := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)

		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}
			var decoded streamResp
			if err := json.Unmarshal([]byte(data), &decoded); err != nil {
				errs <- apperr.UpstreamTransient("malformed stream chunk", err)
				return
			}
			if decoded.Error != nil && decoded.Error.Message != "" {
				errs <- &apperr.UpstreamError{Msg: decoded.Error.Message}
				return
			}
			if len(decoded.Choices) == 0 {
				continue
			}
			if delta := decoded.Choices[0].Delta.Content; delta != "" {
				select {
				case chunks <- delta:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := sc.Err(); err != nil {
			errs <- apperr.UpstreamTransient("completion stream interrupted", err)
		}
	}()

	return chunks, errs
}
