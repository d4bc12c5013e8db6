package etl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

const slackPostMessageURL = "https://slack.com/api/chat.postMessage"

// Notifier notifies results for each stage.
type Notifier interface {
	Notify(context.Context, *Result) error
}

// Result is a result for each stage.
type Result struct {
	Stage   Stage
	Tables  int
	Rows    int
	Elapsed time.Duration
	Error   error
}

// SlackNotifier is a notifier for Slack.
type SlackNotifier struct {
	Channel   string
	IconEmoji string
	Username  string
	Token     string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

type slackMessage struct {
	Channel   string `json:"channel"`
	IconEmoji string `json:"icon_emoji,omitempty"`
	Text      string `json:"text"`
	Username  string `json:"username,omitempty"`
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (r *Result) text() string {
	if r.Error != nil {
		return fmt.Sprintf("plantopia etl %s failed after %s: %s", r.Stage, r.Elapsed.Round(time.Millisecond), r.Error)
	}
	return fmt.Sprintf("plantopia etl %s finished in %s: %d tables, %d rows",
		r.Stage, r.Elapsed.Round(time.Millisecond), r.Tables, r.Rows)
}

// Notify notifies results to Slack channel.
func (n *SlackNotifier) Notify(ctx context.Context, r *Result) error {
	m := &slackMessage{
		Channel:   n.Channel,
		IconEmoji: n.IconEmoji,
		Text:      r.text(),
		Username:  n.Username,
	}
	log.Ctx(ctx).Debug().Msgf("m = %+v", m)

	if err := n.postMessage(ctx, m); err != nil {
		return xerrors.Errorf("slack postMessage failed: %w", err)
	}

	return nil
}

func (n *SlackNotifier) postMessage(ctx context.Context, m *slackMessage) error {
	l := log.Ctx(ctx)

	reqJSON, err := json.Marshal(m)
	if err != nil {
		return xerrors.Errorf("failed to marshal json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, slackPostMessageURL, bytes.NewReader(reqJSON))
	if err != nil {
		return xerrors.Errorf("failed to build http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.Token)

	c := n.HTTPClient
	if c == nil {
		c = http.DefaultClient
	}

	resp, err := c.Do(req)
	if err != nil {
		return xerrors.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return xerrors.Errorf("failed to read response body: %w", err)
	}

	l.Debug().Msgf("body = %s", body)

	if resp.StatusCode >= 400 {
		return xerrors.Errorf(
			"slack request failed with status code %d (%s)", resp.StatusCode, body)
	}

	var sres slackResponse
	if err := json.Unmarshal(body, &sres); err != nil {
		return xerrors.Errorf("failed to unmarshal response body: %w", err)
	}

	if !sres.OK {
		return xerrors.Errorf("failed to send message: %s", sres.Error)
	}

	return nil
}
