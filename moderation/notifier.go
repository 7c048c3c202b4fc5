package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/RussellLuo/slidingwindow"

	"github.com/ihub-edu/hallpass/moderation/actionlog"
	"github.com/ihub-edu/hallpass/pkg/robusthttp"
)

// Notifier forwards block/unblock actions somewhere ops will see them. Sends
// are best-effort: the caller logs failures and keeps going.
type Notifier interface {
	SendAction(ctx context.Context, act *actionlog.Action) error
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// SlackNotifier posts moderation actions to a slack-compatible incoming
// webhook. A sliding per-day cap keeps a flag storm from flooding the
// channel; suppressed sends are not an error.
type SlackNotifier struct {
	SlackWebhookURL string
	Client          *http.Client

	limiter *slidingwindow.Limiter
}

var _ Notifier = (*SlackNotifier)(nil)

// Webhook sends happen on the block path of live requests, so the default
// client keeps the total wait bounded: one retry, short backoff, 5s timeout.
func NewSlackNotifier(webhookURL string, client *http.Client, perDay int64) *SlackNotifier {
	if client == nil {
		client = robusthttp.NewClient(
			robusthttp.WithMaxRetries(1),
			robusthttp.WithRetryWaitMax(time.Second),
			robusthttp.WithLogger(slog.Default().With("subsystem", "notifier")),
		)
		client.Timeout = 5 * time.Second
	}
	return &SlackNotifier{
		SlackWebhookURL: webhookURL,
		Client:          client,
		limiter:         perDayLimiter(perDay),
	}
}

func perDayLimiter(count int64) *slidingwindow.Limiter {
	lim, _ := slidingwindow.NewLimiter(time.Hour*24, count, func() (slidingwindow.Window, slidingwindow.StopFunc) {
		return slidingwindow.NewLocalWindow()
	})
	return lim
}

func (n *SlackNotifier) SendAction(ctx context.Context, act *actionlog.Action) error {
	if !n.limiter.Allow() {
		notifySendCount.WithLabelValues("suppressed").Inc()
		return nil
	}
	if err := n.sendSlackMsg(ctx, actionBody(act)); err != nil {
		notifySendCount.WithLabelValues("error").Inc()
		return err
	}
	notifySendCount.WithLabelValues("sent").Inc()
	return nil
}

func actionBody(act *actionlog.Action) string {
	var msg string
	switch act.Kind {
	case actionlog.KindBlock:
		msg = "⚠️ Hallpass Block ⚠️\n"
	case actionlog.KindUnblock:
		msg = "Hallpass Unblock\n"
	default:
		msg = "Hallpass Moderation Action\n"
	}
	msg += fmt.Sprintf("`%s` %s by `%s`\n", act.Identity, act.Kind, act.Actor)
	if act.Reason != "" {
		msg += fmt.Sprintf("Reason: %s\n", act.Reason)
	}
	if act.Kind == actionlog.KindBlock {
		if act.ExpiresAt != nil {
			msg += fmt.Sprintf("Expires: `%s`\n", act.ExpiresAt.UTC().Format(time.RFC3339))
		} else {
			msg += "Expires: never\n"
		}
	}
	return msg
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack
// workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}
