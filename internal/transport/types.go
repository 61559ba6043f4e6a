package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind UpdateKind
	// Client is the pool index of the bot that received the update.
	Client   int
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool

	// PhotoFileID is the largest photo size attached to the message, if any.
	// File ids are scoped to the receiving bot.
	PhotoFileID string
	ReplyTo     *Reply
}

// Reply is the subset of a replied-to message that commands look at.
type Reply struct {
	ID          int
	FromID      int64
	PhotoFileID string
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	ThreadID  int
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	// ReplyTo replies to the given message id when non-zero.
	ReplyTo            int
	ReplyMarkupAdapter any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

// Remote is the set of per-destination actions workers drive. Every call may
// fail with a rate-limit, transient or terminal error (see internal/invoke).
type Remote interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, to ChatTarget, img []byte, caption string) (MessageRef, error)
	SetChatTitle(ctx context.Context, chatID int64, title string) error
	SetChatPhoto(ctx context.Context, chatID int64, img []byte) error
	LeaveChat(ctx context.Context, chatID int64) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

type Adapter interface {
	Remote

	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus (e.g. Telegram /menu list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
