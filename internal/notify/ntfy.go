package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// NtfyConfig configures the ntfy.sh sender.
type NtfyConfig struct {
	// Server defaults to the public ntfy.sh instance.
	Server string
	Topic  string
	Token  string // optional access token
}

type ntfySender struct {
	url    string
	token  string
	client *http.Client
}

func newNtfySender(cfg NtfyConfig) (Sender, error) {
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("ntfy topic is empty")
	}
	server := strings.TrimRight(strings.TrimSpace(cfg.Server), "/")
	if server == "" {
		server = "https://ntfy.sh"
	}
	return &ntfySender{
		url:    server + "/" + cfg.Topic,
		token:  cfg.Token,
		client: &http.Client{Timeout: 8 * time.Second},
	}, nil
}

func (n *ntfySender) Send(ctx context.Context, title, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Title", title)
	req.Header.Set("Priority", "high")
	req.Header.Set("Tags", "warning")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ntfy: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	return nil
}
