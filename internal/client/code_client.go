package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CodeClient talks to the query endpoints of the webhook server.
type CodeClient struct {
	baseURL string
	client  *http.Client
}

func NewCodeClient(baseURL string) *CodeClient {
	return &CodeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type Code struct {
	Code      string `json:"code"`
	Platform  string `json:"platform"`
	Timestamp string `json:"timestamp"`
}

type Message struct {
	Message       string  `json:"message"`
	Timestamp     string  `json:"timestamp"`
	ExtractedCode *string `json:"extracted_code"`
	Platform      string  `json:"platform"`
}

type codeResponse struct {
	Code      *string `json:"code"`
	Platform  string  `json:"platform"`
	Timestamp string  `json:"timestamp"`
	Error     string  `json:"error"`
}

type messagesResponse struct {
	Phone    string    `json:"phone"`
	Messages []Message `json:"messages"`
	Error    string    `json:"error"`
}

// LatestCode returns the newest code for phone, or nil when none exists.
func (c *CodeClient) LatestCode(ctx context.Context, phone string) (*Code, error) {
	return c.code(ctx, "/get_code/"+url.PathEscape(phone))
}

// ConsumeCode claims the newest unused code for phone and platform.
// It returns nil when there is nothing left to claim.
func (c *CodeClient) ConsumeCode(ctx context.Context, phone, platform string) (*Code, error) {
	return c.code(ctx, "/get_code/"+url.PathEscape(phone)+"/"+url.PathEscape(platform))
}

func (c *CodeClient) Messages(ctx context.Context, phone string, limit int) ([]Message, error) {
	path := "/messages/" + url.PathEscape(phone)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var mr messagesResponse
	if err := c.get(ctx, path, &mr); err != nil {
		return nil, err
	}
	if mr.Error != "" {
		return nil, fmt.Errorf("server error: %s", mr.Error)
	}
	return mr.Messages, nil
}

// WaitForCode polls until a code shows up or ctx ends. With an empty
// platform it watches the latest code instead of consuming one, and only
// reports a code that was not already present when polling started.
func (c *CodeClient) WaitForCode(ctx context.Context, phone, platform string, interval time.Duration) (*Code, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}

	var seen *Code
	if platform == "" {
		var err error
		seen, err = c.LatestCode(ctx, phone)
		if err != nil {
			return nil, err
		}
	}

	poll := func() (*Code, error) {
		if platform != "" {
			return c.ConsumeCode(ctx, phone, platform)
		}
		got, err := c.LatestCode(ctx, phone)
		if err != nil || got == nil {
			return nil, err
		}
		if seen != nil && *got == *seen {
			return nil, nil
		}
		return got, nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		got, err := poll()
		if err != nil {
			return nil, err
		}
		if got != nil {
			return got, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *CodeClient) code(ctx context.Context, path string) (*Code, error) {
	var cr codeResponse
	if err := c.get(ctx, path, &cr); err != nil {
		return nil, err
	}
	if cr.Error != "" {
		return nil, fmt.Errorf("server error: %s", cr.Error)
	}
	if cr.Code == nil {
		return nil, nil
	}
	return &Code{Code: *cr.Code, Platform: cr.Platform, Timestamp: cr.Timestamp}, nil
}

func (c *CodeClient) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	return nil
}
