package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	xhttp "github.com/revolis/allpremarkets/pkg/http"
)

// BotAPI is the part of the Telegram Bot API the notifier uses.
type BotAPI interface {
	SendMessage(ctx context.Context, chatID, text string) error
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}

type Chat struct {
	ID int64 `json:"id"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type apiResponse[T any] struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      T      `json:"result"`
}

// Client talks to the Bot API over HTTPS.
type Client struct {
	http    *xhttp.Client
	baseURL string
}

// NewClient creates a client for token against apiURL, normally
// https://api.telegram.org.
func NewClient(apiURL, token string, hc *xhttp.Client) *Client {
	if hc == nil {
		hc = xhttp.NewClient(xhttp.WithTimeout(70 * time.Second))
	}
	return &Client{
		http:    hc,
		baseURL: strings.TrimRight(apiURL, "/") + "/bot" + token,
	}
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	var resp apiResponse[Message]
	err := c.http.PostJSON(ctx, c.baseURL+"/sendMessage", sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	}, &resp)
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram sendMessage: %s", resp.Description)
	}
	return nil
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	var resp apiResponse[[]Update]
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/getUpdates",
		QueryParams: map[string][]string{
			"offset":          {strconv.FormatInt(offset, 10)},
			"timeout":         {strconv.Itoa(int(timeout.Seconds()))},
			"allowed_updates": {`["message"]`},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("telegram getUpdates: %s", resp.Description)
	}
	return resp.Result, nil
}
