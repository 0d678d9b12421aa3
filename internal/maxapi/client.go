package maxapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the production Bot API endpoint.
const DefaultBaseURL = "https://botapi.max.ru"

// Client wraps the Max Bot API. All methods send the bot token via the
// Authorization header and surface non-2xx responses as *APIError.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (used by tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger attaches a logger to the client.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Max Bot API client.
func NewClient(token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		// Long polls wait server-side; leave headroom over the poll budget.
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Me returns the bot's own identity.
func (c *Client) Me(ctx context.Context) (*BotInfo, error) {
	var info BotInfo
	if err := c.do(ctx, http.MethodGet, "/me", nil, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SendMessage sends a new message to a chat or user.
func (c *Client) SendMessage(ctx context.Context, to Target, body NewMessageBody) (*Message, error) {
	query := url.Values{}
	switch {
	case to.ChatID != 0:
		query.Set("chat_id", strconv.FormatInt(to.ChatID, 10))
	case to.UserID != 0:
		query.Set("user_id", strconv.FormatInt(to.UserID, 10))
	default:
		return nil, fmt.Errorf("send target requires a chat_id or user_id")
	}

	var resp struct {
		Message *Message `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/messages", query, body, &resp); err != nil {
		return nil, err
	}
	return resp.Message, nil
}

// EditMessage replaces the body of an existing message.
func (c *Client) EditMessage(ctx context.Context, messageID string, body NewMessageBody) error {
	query := url.Values{"message_id": {messageID}}
	return c.do(ctx, http.MethodPut, "/messages", query, body, nil)
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	query := url.Values{"message_id": {messageID}}
	return c.do(ctx, http.MethodDelete, "/messages", query, nil, nil)
}

// GetMessages fetches messages filtered by id list.
func (c *Client) GetMessages(ctx context.Context, messageIDs []string) ([]Message, error) {
	query := url.Values{"message_ids": {strings.Join(messageIDs, ",")}}
	var resp struct {
		Messages []Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/messages", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// GetMessage fetches one message by id; returns nil when the platform does
// not know it.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	messages, err := c.GetMessages(ctx, []string{messageID})
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}
	return &messages[0], nil
}

// ListChats lists chats the bot participates in.
func (c *Client) ListChats(ctx context.Context) ([]Chat, error) {
	var resp struct {
		Chats []Chat `json:"chats"`
	}
	if err := c.do(ctx, http.MethodGet, "/chats", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

// GetChat returns one chat by id.
func (c *Client) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	var chat Chat
	path := fmt.Sprintf("/chats/%d", chatID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// SendAction fires a chat action such as typing_on or mark_seen.
func (c *Client) SendAction(ctx context.Context, chatID int64, action string) error {
	path := fmt.Sprintf("/chats/%d/actions", chatID)
	body := map[string]string{"action": action}
	return c.do(ctx, http.MethodPost, path, nil, body, nil)
}

// UpdatesRequest parameterizes a long poll.
type UpdatesRequest struct {
	Limit   int
	Timeout int // seconds, platform-side wait budget
	Marker  *int64
	Types   []string
}

// GetUpdates long-polls the updates endpoint.
func (c *Client) GetUpdates(ctx context.Context, req UpdatesRequest) (*UpdateBatch, error) {
	query := url.Values{}
	if req.Limit > 0 {
		query.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Timeout > 0 {
		query.Set("timeout", strconv.Itoa(req.Timeout))
	}
	if req.Marker != nil {
		query.Set("marker", strconv.FormatInt(*req.Marker, 10))
	}
	if len(req.Types) > 0 {
		query.Set("types", strings.Join(req.Types, ","))
	}

	var batch UpdateBatch
	if err := c.do(ctx, http.MethodGet, "/updates", query, nil, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// Subscribe registers a webhook URL for the given update types.
func (c *Client) Subscribe(ctx context.Context, publicURL, secret string, updateTypes []string) error {
	body := map[string]interface{}{
		"url":          publicURL,
		"update_types": updateTypes,
	}
	if secret != "" {
		body["secret"] = secret
	}
	return c.do(ctx, http.MethodPost, "/subscriptions", nil, body, nil)
}

// Unsubscribe removes a webhook subscription by URL.
func (c *Client) Unsubscribe(ctx context.Context, publicURL string) error {
	query := url.Values{"url": {publicURL}}
	return c.do(ctx, http.MethodDelete, "/subscriptions", query, nil, nil)
}

// ListSubscriptions returns active webhook subscriptions.
func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	var resp struct {
		Subscriptions []Subscription `json:"subscriptions"`
	}
	if err := c.do(ctx, http.MethodGet, "/subscriptions", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Subscriptions, nil
}

// SetCommands publishes the bot's command list.
func (c *Client) SetCommands(ctx context.Context, commands []BotCommand) error {
	body := map[string]interface{}{"commands": commands}
	return c.do(ctx, http.MethodPost, "/me/commands", nil, body, nil)
}

// GetUploadURL requests a one-shot upload endpoint for the given media kind.
func (c *Client) GetUploadURL(ctx context.Context, kind UploadType) (string, error) {
	query := url.Values{"type": {string(kind)}}
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/uploads", query, nil, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("upload endpoint returned no url")
	}
	return resp.URL, nil
}

// UploadMedia posts a local file to an upload URL obtained from GetUploadURL
// and returns the attachment token to reference from a subsequent send.
func (c *Client) UploadMedia(ctx context.Context, uploadURL, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open upload file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("data", filepath.Base(filePath))
	if err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to read upload file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Method:     http.MethodPost,
			Path:       uploadURL,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	token, err := parseUploadToken(data)
	if err != nil {
		return "", err
	}
	return token, nil
}

// parseUploadToken extracts the attachment token from an upload response.
// Image uploads return a photos map keyed by size; other kinds return a
// top-level token.
func parseUploadToken(data []byte) (string, error) {
	var generic struct {
		Token  string `json:"token"`
		Photos map[string]struct {
			Token string `json:"token"`
		} `json:"photos"`
	}
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if generic.Token != "" {
		return generic.Token, nil
	}
	for _, photo := range generic.Photos {
		if photo.Token != "" {
			return photo.Token, nil
		}
	}
	return "", fmt.Errorf("upload response carried no token")
}
