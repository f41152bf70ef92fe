package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vegas-max/Titan2.0/internal/ranker"
)

// Notification carries the context of one qualifying scan: when it ran and
// which routes cleared the alert threshold.
type Notification struct {
	ScannedAt    time.Time
	MinTarScore  float64
	TotalScanned int
	Routes       []ranker.ScoredRoute
}

// Notifier delivers scan alerts.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier builds a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify posts the rendered message via the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected telegram status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Time("scanned_at", note.ScannedAt).
		Int("routes", len(note.Routes)).
		Msg("alert delivered (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Titan Route Alert]\n")
	builder.WriteString(fmt.Sprintf("Scanned: %s UTC\n", note.ScannedAt.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Routes over %.1f: %d of %d\n", note.MinTarScore, len(note.Routes), note.TotalScanned))
	for i, route := range note.Routes {
		if i >= 5 {
			builder.WriteString(fmt.Sprintf("... and %d more\n", len(note.Routes)-i))
			break
		}
		builder.WriteString(fmt.Sprintf("%d. %s %d->%d via %s TAR %.2f spread %.2f%%\n",
			i+1,
			route.Record.NativeToken,
			route.Record.ChainOrigin,
			route.Record.ChainDest,
			route.Record.BridgeProtocol,
			route.TarScore,
			route.Quote.SpreadPercentage))
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
