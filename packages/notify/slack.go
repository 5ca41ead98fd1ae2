package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/uploadprobe/packages/http"
)

// SlackNotifier sends notifications to Slack via webhook
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
}

// SlackOption is a functional option for SlackNotifier
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the Slack channel
func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

// WithSlackClient replaces the HTTP client
func WithSlackClient(client *http.Client) SlackOption {
	return func(s *SlackNotifier) {
		s.client = client
	}
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "uploadprobe",
		iconEmoji:  ":frame_with_picture:",
		client:     http.NewClient(http.WithTimeout(10 * time.Second)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the name of the notifier
func (s *SlackNotifier) Name() string {
	return "slack"
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Notify sends a notification to Slack
func (s *SlackNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	color := "good"
	emoji := ":white_check_mark:"
	if !summary.Passed {
		color = "danger"
		emoji = ":x:"
	}

	var text string
	if summary.Error != "" {
		text = fmt.Sprintf("```%s```", summary.Error)
	}

	msg := slackMessage{
		Channel:   s.channel,
		Username:  s.username,
		IconEmoji: s.iconEmoji,
		Attachments: []slackAttachment{{
			Color: color,
			Title: fmt.Sprintf("%s %s", emoji, summary.title()),
			Text:  text,
			Fields: []slackField{
				{Title: "Target", Value: summary.Target, Short: false},
				{Title: "Upload", Value: summary.uploadText(), Short: true},
				{Title: "Analyze", Value: summary.analyzeText(), Short: true},
				{Title: "Files", Value: fmt.Sprintf("%d", summary.Files), Short: true},
				{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String(), Short: true},
			},
			Footer: "uploadprobe",
			TS:     time.Now().Unix(),
		}},
	}

	resp, err := s.client.PostJSON(ctx, s.webhookURL, msg)
	if err != nil {
		return fmt.Errorf("failed to send Slack notification: %w", err)
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("slack API returned status %d: %s", resp.StatusCode, resp.BodyString())
	}
	return nil
}
