// Package openai talks to the chat completions API for imagery advice and
// street-level image analysis.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

const (
	completionsPath = "/v1/chat/completions"
	defaultTimeout  = 30 * time.Second
)

// ErrMalformedReply is returned when the model answer holds no usable JSON.
var ErrMalformedReply = errors.New("openai: malformed reply")

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?[ \t]*\n(.*?)\n[ \t]*```")

// Client is a minimal chat completions client.
type Client struct {
	http    *fasthttp.Client
	baseURL string
	apiKey  string
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		http: &fasthttp.Client{
			Name:                "urbanbuzz-explorer",
			MaxConnsPerHost:     32,
			MaxResponseBodySize: 4 << 20,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// complete sends one chat request and returns the first choice's content.
func (c *Client) complete(ctx context.Context, body chatRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	// Not pooled: a call abandoned on cancellation still owns them.
	req := new(fasthttp.Request)
	resp := new(fasthttp.Response)

	req.SetRequestURI(c.baseURL + completionsPath)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.SetBody(payload)

	if err := c.do(ctx, req, resp); err != nil {
		return "", err
	}

	var out chatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil && resp.StatusCode() == fasthttp.StatusOK {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		if out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("chat completion: status %d: %s", resp.StatusCode(), out.Error.Message)
		}
		return "", fmt.Errorf("chat completion: status %d", resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return "", ErrMalformedReply
	}
	return out.Choices[0].Message.Content, nil
}

// do runs the request until it completes or ctx is done, whichever is first.
func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	done := make(chan error, 1)
	go func() {
		done <- c.http.DoDeadline(req, resp, deadline(ctx))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("chat completion: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(defaultTimeout)
}

// extractJSON returns the body of the first fenced block, or the whole
// content when it is not fenced.
func extractJSON(content string) string {
	if m := fencedJSON.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return strings.TrimSpace(content)
}
