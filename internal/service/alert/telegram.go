package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"weaponwatch/internal/model"
)

// ErrUnreachable marks a destination that could not be delivered to. Such destinations
// are removed from the destination set.
var ErrUnreachable = errors.New("destination unreachable")

// DefaultAPIBase is the Telegram Bot API endpoint.
const DefaultAPIBase = "https://api.telegram.org"

// SendFunc delivers a Markdown message to one chat.
type SendFunc func(ctx context.Context, chatID, message string) error

// PhotoFunc delivers the photo at photoPath to one chat with a Markdown caption.
type PhotoFunc func(ctx context.Context, chatID, caption, photoPath string) error

// TelegramChannel delivers incident alerts to Telegram chats. Alerts whose snapshot is on
// disk go out as a photo with the alert text as caption; the rest are sent as text
// through shoutrrr.
type TelegramChannel struct {
	token         string
	timeout       time.Duration
	publicBaseURL string
	snapshotDir   string
	send          SendFunc
	sendPhoto     PhotoFunc

	apiBase string
	client  *http.Client

	senders map[string]*router.ServiceRouter
	mu      sync.Mutex
}

// NewTelegramChannel creates a channel for the bot token. An empty token disables delivery.
// snapshotDir is where incident images are looked up by the base name of their reference.
func NewTelegramChannel(token string, timeout time.Duration, publicBaseURL, snapshotDir string) *TelegramChannel {
	c := &TelegramChannel{
		token:         token,
		timeout:       timeout,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		snapshotDir:   snapshotDir,
		apiBase:       DefaultAPIBase,
		client:        &http.Client{Timeout: timeout},
		senders:       make(map[string]*router.ServiceRouter),
	}
	c.send = c.shoutrrrSend
	c.sendPhoto = c.botAPISendPhoto
	return c
}

// Enabled reports whether a bot token is configured.
func (c *TelegramChannel) Enabled() bool {
	return c.token != ""
}

// Deliver sends the alert for inc to chatID. Failures are reported as ErrUnreachable,
// except when ctx was cancelled, which returns the context error.
func (c *TelegramChannel) Deliver(ctx context.Context, chatID string, inc model.Incident) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := FormatAlert(inc, c.publicBaseURL)

	var err error
	if photo, ok := c.snapshotPath(inc); ok {
		err = c.sendPhoto(ctx, chatID, message, photo)
	} else {
		err = c.send(ctx, chatID, message)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: chat %s: %v", ErrUnreachable, chatID, err)
	}
	return nil
}

// snapshotPath returns the on-disk snapshot of inc when it exists.
func (c *TelegramChannel) snapshotPath(inc model.Incident) (string, bool) {
	if c.snapshotDir == "" || inc.Image == "" {
		return "", false
	}
	p := filepath.Join(c.snapshotDir, path.Base(inc.Image))
	if info, err := os.Stat(p); err != nil || info.IsDir() {
		return "", false
	}
	return p, true
}

type botAPIResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// botAPISendPhoto uploads photoPath through the Bot API sendPhoto method.
func (c *TelegramChannel) botAPISendPhoto(ctx context.Context, chatID, caption, photoPath string) error {
	photo, err := os.Open(photoPath)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer photo.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for field, value := range map[string]string{
		"chat_id":    chatID,
		"caption":    caption,
		"parse_mode": "Markdown",
	} {
		if err := w.WriteField(field, value); err != nil {
			return fmt.Errorf("failed to write %s field: %w", field, err)
		}
	}
	fw, err := w.CreateFormFile("photo", filepath.Base(photoPath))
	if err != nil {
		return fmt.Errorf("failed to create photo part: %w", err)
	}
	if _, err := io.Copy(fw, photo); err != nil {
		return fmt.Errorf("failed to copy snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/bot"+c.token+"/sendPhoto", &body)
	if err != nil {
		// The URL carries the bot token, so the error is not wrapped.
		return errors.New("failed to build sendPhoto request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("sendPhoto request failed: %w", err)
	}
	defer resp.Body.Close()

	var result botAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("sendPhoto returned %s with unreadable body: %w", resp.Status, err)
	}
	if resp.StatusCode != http.StatusOK || !result.OK {
		return fmt.Errorf("sendPhoto returned %s: %s", resp.Status, result.Description)
	}
	return nil
}

func (c *TelegramChannel) shoutrrrSend(ctx context.Context, chatID, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sender, err := c.sender(chatID)
	if err != nil {
		return err
	}

	params := stypes.Params{}
	errs := sender.Send(message, &params)
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// sender returns the cached router for chatID, building it on first use.
func (c *TelegramChannel) sender(chatID string) (*router.ServiceRouter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.senders[chatID]; ok {
		return s, nil
	}

	s, err := shoutrrr.CreateSender(TelegramURL(c.token, chatID))
	if err != nil {
		// The URL carries the bot token, so only the chat is named.
		return nil, fmt.Errorf("invalid telegram destination %s", chatID)
	}
	if c.timeout > 0 {
		s.Timeout = c.timeout
	}
	s.SetLogger(log.New(io.Discard, "", 0))

	c.senders[chatID] = s
	return s, nil
}

// Forget drops the cached sender of a removed destination.
func (c *TelegramChannel) Forget(chatIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range chatIDs {
		delete(c.senders, id)
	}
}

// TelegramURL builds the shoutrrr service URL for one chat.
func TelegramURL(token, chatID string) string {
	q := url.Values{}
	q.Set("chats", chatID)
	q.Set("parsemode", "Markdown")
	return "telegram://" + token + "@telegram?" + q.Encode()
}

// FormatAlert renders the alert text. With a public base URL the snapshot link is appended.
func FormatAlert(inc model.Incident, publicBaseURL string) string {
	var b strings.Builder
	b.WriteString("🚨 *WEAPON DETECTION ALERT* 🚨\n\n")
	fmt.Fprintf(&b, "📅 *Time:* %s\n", inc.HumanTime())
	fmt.Fprintf(&b, "📍 *Location:* %s\n", inc.Location)
	fmt.Fprintf(&b, "📹 *Camera:* %s\n", inc.SourceName)
	fmt.Fprintf(&b, "🔫 *Weapon Type:* %s\n", strings.ToUpper(inc.Label))
	fmt.Fprintf(&b, "📊 *Confidence:* %.0f%%\n", inc.Confidence*100)
	if publicBaseURL != "" && inc.Image != "" {
		fmt.Fprintf(&b, "🖼 %s%s\n", publicBaseURL, inc.Image)
	}
	b.WriteString("\n⚠️ *Immediate attention required!*")
	return b.String()
}
