// Package telegram реализует клиент Telegram Bot API для управления
// членством в платных каналах: выдача одноразовых приглашений, удаление
// из канала, личные уведомления и разрешение @username.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/channel-access-bot/internal/config"
)

// ErrUnknownChannel возвращается для канала, не описанного в конфигурации.
var ErrUnknownChannel = errors.New("unknown channel")

type Client struct {
	token      string
	apiBaseURL string
	httpClient *http.Client
	chatIDs    map[string]string
}

// NewClient создаёт клиент Bot API. chatIDs сопоставляет ключ канала
// (channel_1, channel_2) идентификатору чата в Telegram.
func NewClient(cfg config.Telegram, channels map[string]config.ChannelConfig) *Client {
	chatIDs := make(map[string]string, len(channels))
	for name, ch := range channels {
		chatIDs[name] = ch.ChatID
	}
	return &Client{
		token:      cfg.BotToken,
		apiBaseURL: cfg.APIBaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		chatIDs:    chatIDs,
	}
}

func (c *Client) newRequest(ctx context.Context, method string, body interface{}) (*http.Request, error) {
	url := c.apiBaseURL + "/bot" + c.token + "/" + method
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

type okChecker interface {
	isOK() (bool, string)
}

func (r *apiResponse) isOK() (bool, string) {
	return r.OK, r.Description
}

func (c *Client) call(ctx context.Context, method string, body interface{}, out okChecker) error {
	req, err := c.newRequest(ctx, method, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if ok, description := out.isOK(); !ok {
		return fmt.Errorf("%s: %s", method, description)
	}
	return nil
}

func (c *Client) chatID(channel string) (string, error) {
	id, ok := c.chatIDs[channel]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	return id, nil
}

// Invite открывает пользователю доступ в канал: снимает бан, создаёт
// одноразовую ссылку-приглашение и отправляет её личным сообщением.
// Неудачная доставка личного сообщения не считается ошибкой: ссылка
// уже создана и доступ открыт.
func (c *Client) Invite(ctx context.Context, telegramID int64, channel string) error {
	const op = "telegram.Invite"

	chatID, err := c.chatID(channel)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	unban := map[string]interface{}{
		"chat_id":        chatID,
		"user_id":        telegramID,
		"only_if_banned": false,
	}
	if err := c.call(ctx, "unbanChatMember", unban, &apiResponse{}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	createLink := map[string]interface{}{
		"chat_id":              chatID,
		"member_limit":         1,
		"creates_join_request": false,
		"name":                 "invite-" + uuid.NewString(),
	}
	var linkResp inviteLinkResponse
	if err := c.call(ctx, "createChatInviteLink", createLink, &linkResp); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	text := fmt.Sprintf("🔗 Присоединяйтесь к каналу по ссылке:\n%s", linkResp.Result.InviteLink)
	_ = c.Notify(ctx, telegramID, text)

	return nil
}

// Remove удаляет пользователя из канала через бан.
func (c *Client) Remove(ctx context.Context, telegramID int64, channel string) error {
	const op = "telegram.Remove"

	chatID, err := c.chatID(channel)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	ban := map[string]interface{}{
		"chat_id": chatID,
		"user_id": telegramID,
	}
	if err := c.call(ctx, "banChatMember", ban, &apiResponse{}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Notify отправляет пользователю личное сообщение.
func (c *Client) Notify(ctx context.Context, telegramID int64, text string) error {
	const op = "telegram.Notify"

	msg := map[string]interface{}{
		"chat_id": telegramID,
		"text":    text,
	}
	if err := c.call(ctx, "sendMessage", msg, &apiResponse{}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ResolveUsername разрешает @username в telegram_id через getChat.
// Работает только для пользователей с публичным username.
func (c *Client) ResolveUsername(ctx context.Context, username string) (int64, error) {
	const op = "telegram.ResolveUsername"

	body := map[string]interface{}{
		"chat_id": "@" + username,
	}
	var resp chatResponse
	if err := c.call(ctx, "getChat", body, &resp); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return resp.Result.ID, nil
}
