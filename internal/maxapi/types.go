// Package maxapi is a thin typed client for the Max messenger Bot API.
package maxapi

import "fmt"

// ChatType identifies the kind of conversation a message belongs to.
type ChatType string

const (
	ChatTypeDialog  ChatType = "dialog"
	ChatTypeChat    ChatType = "chat"
	ChatTypeChannel ChatType = "channel"
)

// IsGroup reports whether the chat type behaves as a group for policy purposes.
func (t ChatType) IsGroup() bool {
	return t == ChatTypeChat || t == ChatTypeChannel
}

// UpdateType tags the variant carried by an Update.
type UpdateType string

const (
	UpdateMessageCreated   UpdateType = "message_created"
	UpdateMessageCallback  UpdateType = "message_callback"
	UpdateMessageEdited    UpdateType = "message_edited"
	UpdateMessageRemoved   UpdateType = "message_removed"
	UpdateReactionCreated  UpdateType = "reaction_created"
	UpdateReactionUpdated  UpdateType = "reaction_updated"
	UpdateBotStarted       UpdateType = "bot_started"
	UpdateBotAdded         UpdateType = "bot_added"
	UpdateBotRemoved       UpdateType = "bot_removed"
	UpdateUserAdded        UpdateType = "user_added"
	UpdateUserRemoved      UpdateType = "user_removed"
	UpdateChatTitleChanged UpdateType = "chat_title_changed"
)

// SubscribedUpdateTypes is the fixed set of update kinds the bridge asks for
// when polling or subscribing a webhook.
var SubscribedUpdateTypes = []string{
	string(UpdateMessageCreated),
	string(UpdateMessageCallback),
	string(UpdateMessageEdited),
	string(UpdateBotStarted),
	string(UpdateBotAdded),
	string(UpdateBotRemoved),
}

// User is a Max user or bot account.
type User struct {
	UserID   int64  `json:"user_id"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	IsBot    bool   `json:"is_bot,omitempty"`
}

// BotInfo describes the authenticated bot returned by GET /me.
type BotInfo struct {
	UserID      int64  `json:"user_id"`
	Name        string `json:"name,omitempty"`
	Username    string `json:"username,omitempty"`
	Description string `json:"description,omitempty"`
}

// Recipient identifies where a message was delivered.
type Recipient struct {
	ChatID   int64    `json:"chat_id,omitempty"`
	ChatType ChatType `json:"chat_type"`
	UserID   int64    `json:"user_id,omitempty"`
}

// AttachmentType tags the variant carried by an Attachment.
type AttachmentType string

const (
	AttachmentImage          AttachmentType = "image"
	AttachmentSticker        AttachmentType = "sticker"
	AttachmentVideo          AttachmentType = "video"
	AttachmentAudio          AttachmentType = "audio"
	AttachmentFile           AttachmentType = "file"
	AttachmentShare          AttachmentType = "share"
	AttachmentLocation       AttachmentType = "location"
	AttachmentContact        AttachmentType = "contact"
	AttachmentInlineKeyboard AttachmentType = "inline_keyboard"
)

// IsDownloadable reports whether the attachment kind can carry fetchable media.
func (t AttachmentType) IsDownloadable() bool {
	switch t {
	case AttachmentImage, AttachmentSticker, AttachmentVideo, AttachmentAudio, AttachmentFile:
		return true
	}
	return false
}

// Button is one cell of an inline keyboard grid.
type Button struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Payload string `json:"payload,omitempty"`
	URL     string `json:"url,omitempty"`
}

// AttachmentPayload carries the type-specific fields of an attachment. Which
// fields are populated depends on the attachment type.
type AttachmentPayload struct {
	URL     string     `json:"url,omitempty"`
	Token   string     `json:"token,omitempty"`
	Code    string     `json:"code,omitempty"`    // sticker
	Name    string     `json:"name,omitempty"`    // contact display name
	Title   string     `json:"title,omitempty"`   // share title
	Buttons [][]Button `json:"buttons,omitempty"` // inline keyboard grid
}

// Attachment is a tagged variant over the platform's attachment kinds.
type Attachment struct {
	Type      AttachmentType    `json:"type"`
	Payload   AttachmentPayload `json:"payload,omitempty"`
	Filename  string            `json:"filename,omitempty"`
	Size      int64             `json:"size,omitempty"`
	Latitude  float64           `json:"latitude,omitempty"`
	Longitude float64           `json:"longitude,omitempty"`
}

// MessageBody holds the content of a message.
type MessageBody struct {
	MID         string       `json:"mid"`
	Seq         int64        `json:"seq,omitempty"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// LinkedMessage is a reply or forward reference attached to a message.
type LinkedMessage struct {
	Type    string       `json:"type"`
	Sender  User         `json:"sender,omitempty"`
	ChatID  int64        `json:"chat_id,omitempty"`
	Message *MessageBody `json:"message,omitempty"`
}

// Message is a platform message as received in updates.
type Message struct {
	Sender    User           `json:"sender"`
	Recipient Recipient      `json:"recipient"`
	Timestamp int64          `json:"timestamp"`
	Body      MessageBody    `json:"body"`
	Link      *LinkedMessage `json:"link,omitempty"`
}

// Callback is an inline-keyboard button press.
type Callback struct {
	Timestamp  int64  `json:"timestamp"`
	CallbackID string `json:"callback_id"`
	Payload    string `json:"payload,omitempty"`
	User       User   `json:"user"`
}

// Update is a tagged variant over the platform's update kinds. The populated
// optional fields depend on UpdateType; unrecognized kinds still parse so the
// dispatcher can log and drop them.
type Update struct {
	UpdateType UpdateType `json:"update_type"`
	Timestamp  int64      `json:"timestamp"`
	Message    *Message   `json:"message,omitempty"`
	Callback   *Callback  `json:"callback,omitempty"`
	User       *User      `json:"user,omitempty"`
	ChatID     int64      `json:"chat_id,omitempty"`
	UserLocale string     `json:"user_locale,omitempty"`
	Title      string     `json:"title,omitempty"`
}

// UpdateBatch is the response of GET /updates.
type UpdateBatch struct {
	Updates []Update `json:"updates"`
	Marker  *int64   `json:"marker,omitempty"`
}

// Chat describes a conversation returned by the chats endpoints.
type Chat struct {
	ChatID            int64    `json:"chat_id"`
	Type              ChatType `json:"type"`
	Status            string   `json:"status,omitempty"`
	Title             string   `json:"title,omitempty"`
	ParticipantsCount int      `json:"participants_count,omitempty"`
}

// NewMessageLink references the message a new message replies to.
type NewMessageLink struct {
	Type string `json:"type"`
	MID  string `json:"mid"`
}

// NewMessageBody is the request body of POST /messages.
type NewMessageBody struct {
	Text        string          `json:"text,omitempty"`
	Format      string          `json:"format,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	Link        *NewMessageLink `json:"link,omitempty"`
	Notify      *bool           `json:"notify,omitempty"`
}

// Target addresses a send: exactly one of ChatID or UserID must be set.
type Target struct {
	ChatID int64
	UserID int64
}

// Subscription is one webhook subscription entry.
type Subscription struct {
	URL         string   `json:"url"`
	Time        int64    `json:"time,omitempty"`
	UpdateTypes []string `json:"update_types,omitempty"`
}

// BotCommand is one entry of POST /me/commands.
type BotCommand struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UploadType selects the media kind for POST /uploads.
type UploadType string

const (
	UploadImage UploadType = "image"
	UploadVideo UploadType = "video"
	UploadAudio UploadType = "audio"
	UploadFile  UploadType = "file"
)

// APIError is returned for non-2xx responses from the vendor API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("max api: %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}
