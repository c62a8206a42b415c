package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NordicIngest/internal/domain"
	"NordicIngest/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier sends run reports to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// PublishReport posts a cycle summary to Telegram.
func (n *Notifier) PublishReport(ctx context.Context, report domain.RunReport) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", formatReport(report))
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

func formatReport(r domain.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Acquisition cycle* (%s)\n", r.Duration().Round(time.Second))
	fmt.Fprintf(&b, "Sources: %d, found: %d, duplicates: %d, unresolved: %d\n",
		len(r.Sources), r.Found, r.Duplicates, r.Unresolved)
	fmt.Fprintf(&b, "Downloads: %d ok / %d failed of %d\n",
		r.DownloadsSucceeded, r.DownloadsFailed, r.DownloadsAttempted)
	if r.ManualTasksCreated > 0 {
		fmt.Fprintf(&b, "Manual tasks: %d\n", r.ManualTasksCreated)
	}
	if r.EventsStored > 0 || r.EventsSkipped > 0 {
		fmt.Fprintf(&b, "Calendar events: %d stored, %d skipped\n", r.EventsStored, r.EventsSkipped)
	}
	for _, src := range r.Sources {
		if src.Err != "" {
			fmt.Fprintf(&b, "⚠ %s (%s): %s\n", src.SourceID, src.Kind, src.Err)
		}
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "Errors: %d\n", len(r.Errors))
	}
	return b.String()
}
