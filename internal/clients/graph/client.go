package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hamlaty/contest-backend/internal/logger"
	"github.com/hamlaty/contest-backend/internal/pkg/httpx"
	"github.com/hamlaty/contest-backend/internal/utils"
)

// Client talks to the platform Graph API with a page access token supplied
// per call. Sends are single-shot (outbound prompts are best-effort); the
// comment detail fetch retries on transient failures.
type Client interface {
	SendText(ctx context.Context, accessToken, psid, text string) error
	SendQuickReplies(ctx context.Context, accessToken, psid, text string, replies []QuickReply) error
	SendButtonLink(ctx context.Context, accessToken, psid, text, buttonTitle, buttonURL string) error
	FetchCommentDetail(ctx context.Context, accessToken, commentID string) (*CommentDetail, error)
}

type QuickReply struct {
	Title   string
	Payload string
}

type CommentDetail struct {
	Message       string
	FromID        string
	FromName      string
	CreatedTime   time.Time
	AttachmentURL string
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

func ConfigFromEnv(log *logger.Logger) Config {
	timeoutSec := utils.GetEnvAsInt("GRAPH_TIMEOUT_SECONDS", 15, log)
	maxRetries := utils.GetEnvAsInt("GRAPH_MAX_RETRIES", 3, log)

	return Config{
		BaseURL:    strings.TrimSpace(os.Getenv("GRAPH_BASE_URL")),
		Timeout:    time.Duration(timeoutSec) * time.Second,
		MaxRetries: maxRetries,
	}
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://graph.facebook.com/v19.0"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &client{
		log:        log.With("client", "GraphClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("graph api status=%d body=%s", e.Status, e.Body)
}

func (e *statusError) HTTPStatusCode() int { return e.Status }

type sendPayload struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message json.RawMessage `json:"message"`
}

func (c *client) SendText(ctx context.Context, accessToken, psid, text string) error {
	msg, _ := json.Marshal(map[string]any{"text": text})
	return c.sendMessage(ctx, accessToken, psid, msg)
}

func (c *client) SendQuickReplies(ctx context.Context, accessToken, psid, text string, replies []QuickReply) error {
	qrs := make([]map[string]any, 0, len(replies))
	for _, r := range replies {
		qrs = append(qrs, map[string]any{
			"content_type": "text",
			"title":        r.Title,
			"payload":      r.Payload,
		})
	}
	msg, _ := json.Marshal(map[string]any{"text": text, "quick_replies": qrs})
	return c.sendMessage(ctx, accessToken, psid, msg)
}

func (c *client) SendButtonLink(ctx context.Context, accessToken, psid, text, buttonTitle, buttonURL string) error {
	msg, _ := json.Marshal(map[string]any{
		"attachment": map[string]any{
			"type": "template",
			"payload": map[string]any{
				"template_type": "button",
				"text":          text,
				"buttons": []map[string]any{
					{"type": "web_url", "title": buttonTitle, "url": buttonURL},
				},
			},
		},
	})
	return c.sendMessage(ctx, accessToken, psid, msg)
}

func (c *client) sendMessage(ctx context.Context, accessToken, psid string, message json.RawMessage) error {
	var payload sendPayload
	payload.Recipient.ID = psid
	payload.Message = message
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal send payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/me/messages?access_token=%s", c.cfg.BaseURL, url.QueryEscape(accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &statusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return nil
}

type commentDetailPayload struct {
	Message string `json:"message"`
	From    struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"from"`
	CreatedTime string `json:"created_time"`
	Attachment  struct {
		Type  string `json:"type"`
		URL   string `json:"url"`
		Media struct {
			Image struct {
				Src string `json:"src"`
			} `json:"image"`
		} `json:"media"`
	} `json:"attachment"`
}

func (c *client) FetchCommentDetail(ctx context.Context, accessToken, commentID string) (*CommentDetail, error) {
	endpoint := fmt.Sprintf(
		"%s/%s?fields=message,from,created_time,attachment&access_token=%s",
		c.cfg.BaseURL, url.PathEscape(commentID), url.QueryEscape(accessToken),
	)

	var lastErr error
	attempts := c.cfg.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			sleepFor := httpx.JitterSleep(time.Duration(attempt) * 500 * time.Millisecond)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleepFor):
			}
		}
		detail, err := c.fetchCommentDetailOnce(ctx, endpoint)
		if err == nil {
			return detail, nil
		}
		lastErr = err
		if !httpx.IsRetryableError(err) {
			break
		}
		c.log.Debug("Comment detail fetch retrying", "comment_id", commentID, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (c *client) fetchCommentDetailOnce(ctx context.Context, endpoint string) (*CommentDetail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build detail request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch comment detail: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &statusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var payload commentDetailPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode comment detail: %w", err)
	}

	detail := &CommentDetail{
		Message:  payload.Message,
		FromID:   payload.From.ID,
		FromName: payload.From.Name,
	}
	if ts := strings.TrimSpace(payload.CreatedTime); ts != "" {
		// Graph uses RFC3339 with a numeric zone and no colon.
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700"} {
			if parsed, parseErr := time.Parse(layout, ts); parseErr == nil {
				detail.CreatedTime = parsed
				break
			}
		}
	}
	if u := strings.TrimSpace(payload.Attachment.Media.Image.Src); u != "" {
		detail.AttachmentURL = u
	} else if u := strings.TrimSpace(payload.Attachment.URL); u != "" {
		detail.AttachmentURL = u
	}
	return detail, nil
}
