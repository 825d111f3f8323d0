package domain

import (
	"encoding/json"
	"time"
)

// ChatMode определяет режим чата: обычный или админский (mamabot).
type ChatMode int

const (
	ModeNormal ChatMode = iota
	ModeAdmin
)

// TextRecord хранит текст рассылки, созданный чатом в админском режиме.
type TextRecord struct {
	ID        string
	AuthorID  int64
	Body      string
	Deleted   bool
	SentAt    *time.Time
	CreatedAt time.Time
}

// UserRecord описывает чат бота. Одна запись на chat_id, upsert по принципу
// last-write-wins.
type UserRecord struct {
	ChatID       int64
	UserID       int64
	ChatSnapshot json.RawMessage
	UserSnapshot json.RawMessage
	Subscribed   bool
	AdminMode    bool
	Deleted      bool
	UpdatedAt    time.Time
}

// Mode возвращает режим чата. Единственная точка, где флаг admin_mode
// превращается в ChatMode.
func (u UserRecord) Mode() ChatMode {
	if u.AdminMode {
		return ModeAdmin
	}
	return ModeNormal
}

// DisplayName собирает имя подписчика из сохранённого снапшота пользователя:
// @username, либо "Имя Фамилия".
func (u UserRecord) DisplayName() string {
	var snapshot struct {
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.Unmarshal(u.UserSnapshot, &snapshot); err != nil {
		return ""
	}
	if snapshot.Username != "" {
		return "@" + snapshot.Username
	}
	name := snapshot.FirstName
	if snapshot.LastName != "" {
		if name != "" {
			name += " "
		}
		name += snapshot.LastName
	}
	return name
}

// MemeRecord хранит мем коллекции. Version — непрозрачный токен версии,
// сравнивается при записи для обнаружения конкурентных изменений.
type MemeRecord struct {
	FileUniqueID string
	FileID       string
	ChatID       int64
	UploaderID   int64
	Likers       []int64
	Dislikers    []int64
	DeleterID    *int64
	Deleted      bool
	Version      int64
	CreatedAt    time.Time
}

// ChatProfile несёт идентичность чата и снапшоты, которые кладутся в
// UserRecord при upsert-е.
type ChatProfile struct {
	ChatID       int64
	UserID       int64
	ChatSnapshot json.RawMessage
	UserSnapshot json.RawMessage
}

// UpsertResult различает создание новой записи и обновление существующей.
type UpsertResult int

const (
	// UpsertCreated — записи не было, создана новая.
	UpsertCreated UpsertResult = iota
	// UpsertUpdated — запись существовала и была перезаписана.
	UpsertUpdated
)

// PhotoVariant — один из размеров фото, присланных платформой для одной
// загрузки.
type PhotoVariant struct {
	FileID       string
	FileUniqueID string
	Height       int
}
