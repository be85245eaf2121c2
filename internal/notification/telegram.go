package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier sends messages through a bot.
type TelegramNotifier struct {
	Token   string
	ChatID  string
	APIBase string
	HTTP    *http.Client
}

type telegramSendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// telegramMaxText is the Bot API message length limit.
const telegramMaxText = 4096

// Send implements Notifier.
func (n TelegramNotifier) Send(ctx context.Context, msg Message) error {
	if n.Token == "" || n.ChatID == "" {
		return fmt.Errorf("missing telegram bot token or chat id")
	}
	base := n.APIBase
	if base == "" {
		base = telegramAPI
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(base, "/"), url.PathEscape(n.Token))

	text := msg.Body
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Body
	}
	if r := []rune(text); len(r) > telegramMaxText {
		text = string(r[:telegramMaxText])
	}

	b, err := json.Marshal(telegramSendMessageRequest{ChatID: n.ChatID, Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient(n.HTTP).Do(req)
	if err != nil {
		// The request URL carries the token; keep it out of the error.
		return fmt.Errorf("telegram: request failed")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpError{Channel: "telegram", StatusCode: resp.StatusCode}
	}
	return nil
}
