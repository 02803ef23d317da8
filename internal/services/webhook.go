package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/campuspulse/campuspulse/internal/realtime"
	"github.com/juju/clock"
	"github.com/juju/errors"
)

type DiscordWebhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type DiscordEmbed struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Color       int                   `json:"color"`
	Fields      []DiscordWebhookField `json:"fields"`
	Footer      *DiscordFooter        `json:"footer,omitempty"`
	Timestamp   string                `json:"timestamp"`
}

type DiscordFooter struct {
	Text string `json:"text"`
}

type DiscordWebhookRequest struct {
	Username string         `json:"username"`
	Embeds   []DiscordEmbed `json:"embeds"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Fields    []SlackField `json:"fields"`
	Footer    string       `json:"footer"`
	Timestamp int64        `json:"ts"`
}

type SlackWebhookRequest struct {
	Username    string            `json:"username"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments"`
}

const (
	ColorRed    = 16711680 // #FF0000 - event cancelled
	ColorGreen  = 65280    // #00FF00 - event created
	ColorOrange = 16753920 // #FFA500 - event full

	Username = "CampusPulse"

	webhookTimeout = 10 * time.Second
)

// LifecycleSource delivers event lifecycle notices.
type LifecycleSource interface {
	SubscribeLifecycle(handler func(realtime.LifecycleNotice)) func()
}

// Notifier posts event lifecycle notices to Discord and Slack webhooks.
type Notifier struct {
	discordURL string
	slackURL   string
	client     *http.Client
	clock      clock.Clock
}

func NewNotifier(discordURL, slackURL string, clk clock.Clock) *Notifier {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Notifier{
		discordURL: discordURL,
		slackURL:   slackURL,
		client:     &http.Client{Timeout: webhookTimeout},
		clock:      clk,
	}
}

func (n *Notifier) Enabled() bool {
	return n.discordURL != "" || n.slackURL != ""
}

// Attach subscribes the notifier to src. Delivery failures are logged and
// otherwise ignored. The returned function unsubscribes.
func (n *Notifier) Attach(src LifecycleSource) func() {
	return src.SubscribeLifecycle(func(notice realtime.LifecycleNotice) {
		ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
		defer cancel()

		if err := n.Notify(ctx, notice); err != nil {
			logger.Warningf("webhook for event %d (%s): %v", notice.EventID, notice.Kind, err)
		}
	})
}

func (n *Notifier) Notify(ctx context.Context, notice realtime.LifecycleNotice) error {
	if n.discordURL != "" {
		if err := n.post(ctx, n.discordURL, n.discordPayload(notice)); err != nil {
			return errors.Annotate(err, "discord")
		}
	}

	if n.slackURL != "" {
		if err := n.post(ctx, n.slackURL, n.slackPayload(notice)); err != nil {
			return errors.Annotate(err, "slack")
		}
	}

	return nil
}

type noticeStyle struct {
	title   string
	summary string
	color   int
	slack   string
	emoji   string
}

func styleFor(notice realtime.LifecycleNotice) noticeStyle {
	switch notice.Kind {
	case realtime.EventFull:
		return noticeStyle{
			title:   "🎟️ **EVENT FULL**",
			summary: fmt.Sprintf("**%s** has reached its capacity of %d.", notice.Title, notice.Capacity),
			color:   ColorOrange,
			slack:   "warning",
			emoji:   ":ticket:",
		}
	case realtime.EventCancelled:
		return noticeStyle{
			title:   "🚫 **EVENT CANCELLED**",
			summary: fmt.Sprintf("**%s** has been cancelled.", notice.Title),
			color:   ColorRed,
			slack:   "danger",
			emoji:   ":no_entry:",
		}
	default:
		return noticeStyle{
			title:   "📅 **NEW EVENT**",
			summary: fmt.Sprintf("**%s** is open for registration.", notice.Title),
			color:   ColorGreen,
			slack:   "good",
			emoji:   ":calendar:",
		}
	}
}

func capacityText(notice realtime.LifecycleNotice) string {
	if notice.Capacity == 0 {
		return fmt.Sprintf("%d registered, no limit", notice.Participant)
	}
	return fmt.Sprintf("%d / %d", notice.Participant, notice.Capacity)
}

func (n *Notifier) discordPayload(notice realtime.LifecycleNotice) DiscordWebhookRequest {
	style := styleFor(notice)

	return DiscordWebhookRequest{
		Username: Username,
		Embeds: []DiscordEmbed{
			{
				Title:       style.title,
				Description: style.summary,
				Color:       style.color,
				Fields: []DiscordWebhookField{
					{Name: "📝 Event", Value: notice.Title, Inline: false},
					{Name: "🏷️ Category", Value: notice.Category, Inline: true},
					{Name: "📍 Location", Value: notice.Location, Inline: true},
					{Name: "⏰ When", Value: notice.Date, Inline: true},
					{Name: "👥 Participants", Value: capacityText(notice), Inline: true},
					{Name: "🧑‍💼 Organizer", Value: notice.Organizer, Inline: true},
				},
				Footer: &DiscordFooter{
					Text: fmt.Sprintf("%s | CampusPulse", notice.College),
				},
				Timestamp: n.clock.Now().Format(time.RFC3339),
			},
		},
	}
}

func (n *Notifier) slackPayload(notice realtime.LifecycleNotice) SlackWebhookRequest {
	style := styleFor(notice)

	return SlackWebhookRequest{
		Username:  Username,
		IconEmoji: style.emoji,
		Text:      style.emoji + " " + style.summary,
		Attachments: []SlackAttachment{
			{
				Color: style.slack,
				Title: notice.Title,
				Text:  style.summary,
				Fields: []SlackField{
					{Title: "Category", Value: notice.Category, Short: true},
					{Title: "Location", Value: notice.Location, Short: true},
					{Title: "When", Value: notice.Date, Short: true},
					{Title: "Participants", Value: capacityText(notice), Short: true},
					{Title: "Organizer", Value: notice.Organizer, Short: false},
				},
				Footer:    notice.College,
				Timestamp: n.clock.Now().Unix(),
			},
		},
	}
}

func (n *Notifier) post(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Annotate(err, "marshalling payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Trace(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Annotate(err, "sending webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
