package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/stokalert/stokalert/internal/models"
)

// EmailChannel delivers through a transactional-email HTTP API (recipient,
// subject, html + text body, bearer-key auth).
type EmailChannel struct {
	apiURL     string
	apiKey     string
	from       string
	httpClient *http.Client
}

// NewEmailChannel creates an email channel.
func NewEmailChannel(apiURL, apiKey, from string) *EmailChannel {
	return &EmailChannel{
		apiURL:     apiURL,
		apiKey:     apiKey,
		from:       from,
		httpClient: &http.Client{Timeout: contextTimeout},
	}
}

// Method returns the notification method this channel serves.
func (c *EmailChannel) Method() models.NotificationMethod { return models.MethodEmail }

// Send posts the message to the email provider.
func (c *EmailChannel) Send(ctx context.Context, msg Message, rcpt Recipient) error {
	if c.apiKey == "" {
		return errors.New("email provider key not configured")
	}
	if rcpt.Email == "" {
		return errors.New("recipient email address missing")
	}

	ctx, cancel := withSendTimeout(ctx)
	defer cancel()

	payload := map[string]interface{}{
		"from":    c.from,
		"to":      []string{rcpt.Email},
		"subject": msg.Subject,
		"html":    msg.HTML,
		"text":    msg.Text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("email provider returned status %d", resp.StatusCode)
	}
	return nil
}

// SMSChannel delivers through a messaging HTTP API (to, from, body) with
// basic-auth credentials.
type SMSChannel struct {
	apiURL     string
	accountSID string
	authToken  string
	from       string
	httpClient *http.Client
}

// NewSMSChannel creates an SMS channel.
func NewSMSChannel(apiURL, accountSID, authToken, from string) *SMSChannel {
	return &SMSChannel{
		apiURL:     apiURL,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		httpClient: &http.Client{Timeout: contextTimeout},
	}
}

// Method returns the notification method this channel serves.
func (c *SMSChannel) Method() models.NotificationMethod { return models.MethodSMS }

// Send posts the plain-text message to the SMS provider.
func (c *SMSChannel) Send(ctx context.Context, msg Message, rcpt Recipient) error {
	if c.accountSID == "" || c.authToken == "" {
		return errors.New("sms provider credentials not configured")
	}
	if rcpt.Phone == "" {
		return errors.New("recipient phone number missing")
	}

	ctx, cancel := withSendTimeout(ctx)
	defer cancel()

	form := url.Values{}
	form.Set("To", rcpt.Phone)
	form.Set("From", c.from)
	form.Set("Body", msg.Subject+"\n"+msg.Text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sms provider returned status %d", resp.StatusCode)
	}
	return nil
}

// TelegramChannel delivers through the Telegram Bot API to a configured chat.
type TelegramChannel struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramChannel creates a Telegram channel.
func NewTelegramChannel(botToken string, chatID int64) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return &TelegramChannel{bot: bot, chatID: chatID}, nil
}

// Method returns the notification method this channel serves.
func (c *TelegramChannel) Method() models.NotificationMethod { return models.MethodTelegram }

// Send delivers the plain-text message to the configured chat.
func (c *TelegramChannel) Send(ctx context.Context, msg Message, rcpt Recipient) error {
	m := tgbotapi.NewMessage(c.chatID, msg.Subject+"\n\n"+msg.Text)
	if _, err := c.bot.Send(m); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}

// PushChannel is a placeholder: push delivery has no provider integration yet
// and every send reports that.
type PushChannel struct{}

// NewPushChannel creates the push placeholder channel.
func NewPushChannel() *PushChannel { return &PushChannel{} }

// Method returns the notification method this channel serves.
func (c *PushChannel) Method() models.NotificationMethod { return models.MethodPush }

// Send always fails until a push provider is integrated.
func (c *PushChannel) Send(ctx context.Context, msg Message, rcpt Recipient) error {
	return errors.New("push notifications not implemented")
}
