package domain

import (
	"context"
	"time"
)

// TextRepo управляет текстами рассылок.
type TextRepo interface {
	PutText(ctx context.Context, authorID int64, body string) (string, error)
	GetText(ctx context.Context, id string) (TextRecord, error)
	// MarkTextSent ставит отметку об отправке ровно один раз. Возвращает
	// false, если текст уже был помечен отправленным.
	MarkTextSent(ctx context.Context, id string) (bool, error)
}

// UserRepo управляет записями чатов.
type UserRepo interface {
	// UpsertSubscription перезаписывает флаг подписки, сохраняя admin_mode.
	UpsertSubscription(ctx context.Context, profile ChatProfile, subscribed bool) (UpsertResult, error)
	// SetAdminMode перезаписывает флаг админского режима, сохраняя подписку.
	SetAdminMode(ctx context.Context, profile ChatProfile, admin bool) (UpsertResult, error)
	GetUser(ctx context.Context, chatID int64) (UserRecord, error)
	ListSubscribers(ctx context.Context) ([]UserRecord, error)
}

// MemeRepo управляет коллекцией мемов.
type MemeRepo interface {
	PutMeme(ctx context.Context, meme MemeRecord) error
	GetMemeByUniqueID(ctx context.Context, fileUniqueID string) (MemeRecord, error)
	ListActiveMemes(ctx context.Context) ([]MemeRecord, error)
	// UpdateMeme пишет запись по токену версии, снятому при чтении.
	// Возвращает ErrVersionConflict, если запись успел изменить другой
	// писатель.
	UpdateMeme(ctx context.Context, meme MemeRecord) error
}

// ReplyMarkup описывает клавиатуру исходящего сообщения, не привязываясь к
// типам транспорта.
type ReplyMarkup struct {
	Inline      [][]InlineButton
	RemoveReply bool
}

// InlineButton — одна callback-кнопка.
type InlineButton struct {
	Label string
	Data  string
}

// Sender — исходящая поверхность транспорта.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, markup *ReplyMarkup) (int, error)
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string, markup *ReplyMarkup) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
}

// Telemetry — наблюдатель, который внедряется вместо глобального синглтона.
type Telemetry interface {
	Trace(message string, attrs map[string]string)
	TrackFailure(err error, context string)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
}
