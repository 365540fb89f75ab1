package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bz888/quill/internal/logger"
	"github.com/bz888/quill/internal/transcript"
)

const (
	DefaultAPIURL      = "https://api.openai.com/v1/chat/completions"
	DefaultModel       = "gpt-3.5-turbo"
	DefaultMaxTokens   = 400
	DefaultTemperature = 0.7
	DefaultTimeout     = 30 * time.Second

	// PlaceholderAPIKey is the value shipped in sample configs; it counts as unset.
	PlaceholderAPIKey = "YOUR_API_KEY_HERE"
)

// Config holds everything the client needs to reach the endpoint. It is copied into the
// Client at construction and never read from the environment afterwards.
type Config struct {
	APIURL    string
	APIKey    string
	Model     string
	MaxTokens int
	// Temperature is omitted from requests when nil.
	Temperature *float64
	Timeout     time.Duration
}

// Client sends a whole transcript to a chat-completion endpoint and returns the reply.
type Client struct {
	cfg  Config
	http *http.Client
	log  *logger.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client. Its Timeout is left as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func New(cfg Config, opts ...Option) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger.NewLogger("completion"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ChatRequest struct {
	Model       string               `json:"model"`
	Messages    []transcript.Message `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature *float64             `json:"temperature,omitempty"`
}

// Ready reports whether a usable credential is configured.
func (c *Client) Ready() error {
	key := strings.TrimSpace(c.cfg.APIKey)
	if key == "" || key == PlaceholderAPIKey {
		return ErrMissingCredential
	}
	return nil
}

func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete posts msgs in order and returns the assistant text. Errors are one of
// *TransportError, *RemoteError or *MalformedResponseError.
func (c *Client) Complete(ctx context.Context, msgs []transcript.Message) (string, error) {
	if msgs == nil {
		msgs = []transcript.Message{}
	}
	body, err := json.Marshal(ChatRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", &TransportError{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", &TransportError{Err: err}
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	c.log.WithField("messages", len(msgs)).Debug("sending completion request")

	response, err := c.http.Do(request)
	if err != nil {
		c.log.WithError(err).Error("completion request failed")
		return "", &TransportError{Err: err}
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return "", &TransportError{Err: err}
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		text := strings.TrimSpace(string(raw))
		if text == "" {
			text = http.StatusText(response.StatusCode)
		}
		c.log.WithField("status", response.StatusCode).Error("received error response: ", text)
		return "", &RemoteError{StatusCode: response.StatusCode, Body: text}
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &MalformedResponseError{Body: string(raw)}
	}
	return ExtractText(decoded), nil
}

// ExtractText pulls the reply out of a decoded response. It prefers
// choices[0].message.content, then choices[0].text, and otherwise returns the whole
// document as indented JSON so an unexpected shape is still shown.
func ExtractText(decoded interface{}) string {
	if doc, ok := decoded.(map[string]interface{}); ok {
		if choices, ok := doc["choices"].([]interface{}); ok && len(choices) > 0 {
			if first, ok := choices[0].(map[string]interface{}); ok {
				if msg, ok := first["message"].(map[string]interface{}); ok {
					if content, ok := msg["content"].(string); ok {
						return content
					}
				}
				if text, ok := first["text"].(string); ok {
					return text
				}
			}
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(decoded); err != nil {
		return ""
	}
	return strings.TrimRight(buf.String(), "\n")
}
