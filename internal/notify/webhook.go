package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxErrBody = 512

// postJSON performs one webhook delivery. Any 2xx is success.
func postJSON(ctx context.Context, client *http.Client, channel, endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &SendError{Channel: channel, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &SendError{Channel: channel, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return &SendError{Channel: channel, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return &SendError{
			Channel: channel,
			Status:  resp.StatusCode,
			Body:    strings.TrimSpace(string(b)),
			Err:     errors.New(resp.Status),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func validWebhookURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("webhook_url must be an http(s) URL")
	}
	if u.Host == "" {
		return errors.New("webhook_url has no host")
	}
	return nil
}
