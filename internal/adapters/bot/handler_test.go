package bot

import (
	"context"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-meme-bot/internal/domain"
	"tg-meme-bot/internal/usecase/broadcast"
	"tg-meme-bot/internal/usecase/memes"
	"tg-meme-bot/internal/usecase/reactions"
	"tg-meme-bot/internal/usecase/subscription"
)

type memUserRepo struct {
	users map[int64]domain.UserRecord
}

func (m *memUserRepo) UpsertSubscription(ctx context.Context, profile domain.ChatProfile, subscribed bool) (domain.UpsertResult, error) {
	record, ok := m.users[profile.ChatID]
	if !ok {
		m.users[profile.ChatID] = domain.UserRecord{ChatID: profile.ChatID, UserID: profile.UserID, Subscribed: subscribed, UserSnapshot: profile.UserSnapshot}
		return domain.UpsertCreated, nil
	}
	record.Subscribed = subscribed
	m.users[profile.ChatID] = record
	return domain.UpsertUpdated, nil
}

func (m *memUserRepo) SetAdminMode(ctx context.Context, profile domain.ChatProfile, admin bool) (domain.UpsertResult, error) {
	record, ok := m.users[profile.ChatID]
	if !ok {
		m.users[profile.ChatID] = domain.UserRecord{ChatID: profile.ChatID, UserID: profile.UserID, AdminMode: admin}
		return domain.UpsertCreated, nil
	}
	record.AdminMode = admin
	m.users[profile.ChatID] = record
	return domain.UpsertUpdated, nil
}

func (m *memUserRepo) GetUser(ctx context.Context, chatID int64) (domain.UserRecord, error) {
	record, ok := m.users[chatID]
	if !ok {
		return domain.UserRecord{}, domain.ErrNotFound
	}
	return record, nil
}

func (m *memUserRepo) ListSubscribers(ctx context.Context) ([]domain.UserRecord, error) {
	var subscribers []domain.UserRecord
	for _, record := range m.users {
		if record.Subscribed && !record.Deleted {
			subscribers = append(subscribers, record)
		}
	}
	return subscribers, nil
}

type memMemeRepo struct {
	memes map[string]domain.MemeRecord
}

func (m *memMemeRepo) PutMeme(ctx context.Context, meme domain.MemeRecord) error {
	if _, ok := m.memes[meme.FileUniqueID]; ok {
		return nil
	}
	meme.Version = 1
	m.memes[meme.FileUniqueID] = meme
	return nil
}

func (m *memMemeRepo) GetMemeByUniqueID(ctx context.Context, fileUniqueID string) (domain.MemeRecord, error) {
	meme, ok := m.memes[fileUniqueID]
	if !ok {
		return domain.MemeRecord{}, domain.ErrNotFound
	}
	return meme, nil
}

func (m *memMemeRepo) ListActiveMemes(ctx context.Context) ([]domain.MemeRecord, error) {
	var active []domain.MemeRecord
	for _, meme := range m.memes {
		if !meme.Deleted {
			active = append(active, meme)
		}
	}
	return active, nil
}

func (m *memMemeRepo) UpdateMeme(ctx context.Context, meme domain.MemeRecord) error {
	current, ok := m.memes[meme.FileUniqueID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != meme.Version {
		return domain.ErrVersionConflict
	}
	meme.Version++
	m.memes[meme.FileUniqueID] = meme
	return nil
}

type memTextRepo struct {
	texts map[string]domain.TextRecord
	sent  map[string]bool
	seq   int
}

func (m *memTextRepo) PutText(ctx context.Context, authorID int64, body string) (string, error) {
	m.seq++
	id := "draft-" + strings.Repeat("x", m.seq)
	m.texts[id] = domain.TextRecord{ID: id, AuthorID: authorID, Body: body}
	return id, nil
}

func (m *memTextRepo) GetText(ctx context.Context, id string) (domain.TextRecord, error) {
	record, ok := m.texts[id]
	if !ok {
		return domain.TextRecord{}, domain.ErrNotFound
	}
	return record, nil
}

func (m *memTextRepo) MarkTextSent(ctx context.Context, id string) (bool, error) {
	if _, ok := m.texts[id]; !ok {
		return false, domain.ErrNotFound
	}
	if m.sent[id] {
		return false, nil
	}
	m.sent[id] = true
	return true, nil
}

type outMessage struct {
	chatID  int64
	text    string
	fileID  string
	caption string
	markup  *domain.ReplyMarkup
}

type fakeOutbound struct {
	texts     []outMessage
	photos    []outMessage
	deleted   []int
	callbacks []string
}

func (f *fakeOutbound) SendText(ctx context.Context, chatID int64, text string, markup *domain.ReplyMarkup) (int, error) {
	f.texts = append(f.texts, outMessage{chatID: chatID, text: text, markup: markup})
	return len(f.texts), nil
}

func (f *fakeOutbound) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, markup *domain.ReplyMarkup) (int, error) {
	f.photos = append(f.photos, outMessage{chatID: chatID, fileID: fileID, caption: caption, markup: markup})
	return len(f.photos), nil
}

func (f *fakeOutbound) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeOutbound) SendChatAction(ctx context.Context, chatID int64, action string) error {
	return nil
}

func (f *fakeOutbound) AnswerCallback(ctx context.Context, callbackID string) error {
	f.callbacks = append(f.callbacks, callbackID)
	return nil
}

func (f *fakeOutbound) lastText(t *testing.T) outMessage {
	t.Helper()
	if len(f.texts) == 0 {
		t.Fatal("исходящих сообщений нет")
	}
	return f.texts[len(f.texts)-1]
}

type nopTelemetry struct{}

func (nopTelemetry) Trace(message string, attrs map[string]string) {}

func (nopTelemetry) TrackFailure(err error, context string) {}

type fixture struct {
	out     *fakeOutbound
	handler *Handler
	users   *memUserRepo
	memes   *memMemeRepo
	texts   *memTextRepo
}

func newFixture() *fixture {
	out := &fakeOutbound{}
	users := &memUserRepo{users: make(map[int64]domain.UserRecord)}
	memeStore := &memMemeRepo{memes: make(map[string]domain.MemeRecord)}
	textStore := &memTextRepo{texts: make(map[string]domain.TextRecord), sent: make(map[string]bool)}

	subs := subscription.NewService(users, nil, 0)
	handler := NewHandler(
		out,
		zerolog.Nop(),
		nopTelemetry{},
		subs,
		reactions.NewService(memeStore),
		broadcast.NewService(textStore, users, out, zerolog.Nop()),
		memes.NewService(memeStore),
		320,
	)
	return &fixture{out: out, handler: handler, users: users, memes: memeStore, texts: textStore}
}

func textMessage(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: chatID * 10, UserName: "user"},
		Text:      text,
	}
}

func (f *fixture) enterAdmin(t *testing.T, chatID int64) {
	t.Helper()
	f.handler.HandleUpdate(context.Background(), tgbotapi.Update{Message: textMessage(chatID, "/startmamabot")})
	f.out.texts = nil
}

func TestFreeTextInNormalModeShowsUsage(t *testing.T) {
	f := newFixture()
	f.handler.HandleUpdate(context.Background(), tgbotapi.Update{Message: textMessage(1, "просто текст")})

	msg := f.out.lastText(t)
	if msg.text != usageText {
		t.Fatalf("ожидали подсказку, получили %q", msg.text)
	}
	if msg.markup == nil || !msg.markup.RemoveReply {
		t.Fatal("подсказка должна убирать reply-клавиатуру")
	}
}

func TestSubscribeWording(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.handler.HandleUpdate(ctx, tgbotapi.Update{Message: textMessage(1, "/subscribe")})
	if got := f.out.lastText(t).text; got != "Підписано." {
		t.Fatalf("первая подписка: %q", got)
	}

	f.handler.HandleUpdate(ctx, tgbotapi.Update{Message: textMessage(1, "/subscribe")})
	if got := f.out.lastText(t).text; got != "Перепідписано." {
		t.Fatalf("повторная подписка: %q", got)
	}
}

func TestUnsubscribeWithoutSubscription(t *testing.T) {
	f := newFixture()
	f.handler.HandleUpdate(context.Background(), tgbotapi.Update{Message: textMessage(1, "/unsubscribe")})
	if got := f.out.lastText(t).text; got != "Не було підписано." {
		t.Fatalf("отписка незнакомого чата: %q", got)
	}
}

func TestAdminFreeTextBecomesDraft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.enterAdmin(t, 1)

	f.handler.HandleUpdate(ctx, tgbotapi.Update{Message: textMessage(1, "текст розсилки")})

	msg := f.out.lastText(t)
	if msg.text != "текст розсилки" {
		t.Fatalf("черновик показывается автору, получили %q", msg.text)
	}
	if msg.markup == nil || len(msg.markup.Inline) != 1 || len(msg.markup.Inline[0]) != 2 {
		t.Fatal("ожидали две кнопки черновика")
	}
	if !strings.HasPrefix(msg.markup.Inline[0][0].Data, "SEND ") {
		t.Fatalf("первая кнопка должна нести идентификатор черновика: %q", msg.markup.Inline[0][0].Data)
	}
	if msg.markup.Inline[0][1].Data != "LIST_RECIPIENTS" {
		t.Fatalf("вторая кнопка должна показывать подписчиков: %q", msg.markup.Inline[0][1].Data)
	}
	if len(f.texts.texts) != 1 {
		t.Fatalf("черновик должен сохраниться, записей %d", len(f.texts.texts))
	}
}

func TestStartInAdminModeResubscribes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.enterAdmin(t, 1)

	f.handler.HandleUpdate(ctx, tgbotapi.Update{Message: textMessage(1, "/start")})
	if got := f.out.lastText(t).text; got != adminPromptText {
		t.Fatalf("ожидали приглашение админа, получили %q", got)
	}

	record, err := f.users.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("чтение чата: %v", err)
	}
	if record.Subscribed {
		t.Fatal("/start в админском режиме сбрасывает подписку")
	}
	if !record.AdminMode {
		t.Fatal("админский режим должен сохраниться")
	}
}

func photoMessage(chatID int64, heights ...int) *tgbotapi.Message {
	msg := textMessage(chatID, "")
	for i, height := range heights {
		msg.Photo = append(msg.Photo, tgbotapi.PhotoSize{
			FileID:       "file-" + strings.Repeat("a", i+1),
			FileUniqueID: "uniq-" + strings.Repeat("a", i+1),
			Height:       height,
		})
	}
	return msg
}

func TestPhotoInAdminModeJoinsCollection(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.enterAdmin(t, 1)

	f.handler.HandleUpdate(ctx, tgbotapi.Update{Message: photoMessage(1, 90, 640, 1280)})

	if got := f.out.lastText(t).text; !strings.Contains(got, "Мем добавлено") {
		t.Fatalf("ожидали подтверждение сохранения, получили %q", got)
	}
	meme, ok := f.memes.memes["uniq-aaa"]
	if !ok {
		t.Fatal("должен сохраниться самый крупный вариант фото")
	}
	if meme.Deleted {
		t.Fatal("мем из админского чата попадает в коллекцию")
	}
}

func TestPhotoInNormalModeIsHidden(t *testing.T) {
	f := newFixture()
	f.handler.HandleUpdate(context.Background(), tgbotapi.Update{Message: photoMessage(1, 640)})

	meme, ok := f.memes.memes["uniq-a"]
	if !ok {
		t.Fatal("фото должно сохраниться")
	}
	if !meme.Deleted {
		t.Fatal("фото из обычного чата не попадает в коллекцию")
	}
}

func TestPhotoTooSmall(t *testing.T) {
	f := newFixture()
	f.handler.HandleUpdate(context.Background(), tgbotapi.Update{Message: photoMessage(1, 100, 320)})

	if got := f.out.lastText(t).text; got != "Фото занадто мале для колекції." {
		t.Fatalf("ожидали отказ по размеру, получили %q", got)
	}
	if len(f.memes.memes) != 0 {
		t.Fatal("мелкое фото не сохраняется")
	}
}

func TestRandomMemeEmptyCollection(t *testing.T) {
	f := newFixture()
	f.handler.HandleUpdate(context.Background(), tgbotapi.Update{Message: textMessage(1, "/random_meme")})
	if got := f.out.lastText(t).text; got != "Немає мемів." {
		t.Fatalf("ожидали сообщение о пустой коллекции, получили %q", got)
	}
}

func TestRandomMemeKeyboard(t *testing.T) {
	f := newFixture()
	f.memes.memes["m1"] = domain.MemeRecord{FileUniqueID: "m1", FileID: "file-m1", Version: 1}

	f.handler.HandleUpdate(context.Background(), tgbotapi.Update{Message: textMessage(1, "/random_meme")})

	if len(f.out.photos) != 1 {
		t.Fatalf("ожидали одно фото, получили %d", len(f.out.photos))
	}
	photo := f.out.photos[0]
	if photo.fileID != "file-m1" {
		t.Fatalf("ожидали фото из коллекции, получили %q", photo.fileID)
	}
	if photo.markup == nil || len(photo.markup.Inline) != 1 || len(photo.markup.Inline[0]) != 3 {
		t.Fatal("ожидали клавиатуру из трёх кнопок реакций")
	}
	if photo.markup.Inline[0][0].Data != "LIKE_MEME_m1" {
		t.Fatalf("кнопка лайка: %q", photo.markup.Inline[0][0].Data)
	}
}

func callbackUpdate(chatID int64, fromID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: fromID},
		Message: &tgbotapi.Message{MessageID: 77, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

func TestCallbackLikeRecordsReaction(t *testing.T) {
	f := newFixture()
	f.memes.memes["m1"] = domain.MemeRecord{FileUniqueID: "m1", FileID: "file-m1", Version: 1}

	f.handler.HandleUpdate(context.Background(), callbackUpdate(1, 42, "LIKE_MEME_m1"))

	meme := f.memes.memes["m1"]
	if len(meme.Likers) != 1 || meme.Likers[0] != 42 {
		t.Fatalf("лайк должен записаться от нажавшего, получили %v", meme.Likers)
	}
	if len(f.out.callbacks) != 1 {
		t.Fatal("callback должен быть подтверждён")
	}
}

func TestCallbackDeleteFlow(t *testing.T) {
	f := newFixture()
	f.memes.memes["m1"] = domain.MemeRecord{FileUniqueID: "m1", FileID: "file-m1", Version: 1}
	ctx := context.Background()

	f.handler.HandleUpdate(ctx, callbackUpdate(1, 42, "DELETE_MEME_m1"))
	msg := f.out.lastText(t)
	if msg.text != "Видаляти?" {
		t.Fatalf("ожидали вопрос подтверждения, получили %q", msg.text)
	}
	if msg.markup == nil || msg.markup.Inline[0][0].Data != "CONFIRM_DELETE_MEME m1" {
		t.Fatalf("кнопка подтверждения должна нести идентификатор мема: %+v", msg.markup)
	}

	f.handler.HandleUpdate(ctx, callbackUpdate(1, 42, "CONFIRM_DELETE_MEME m1"))
	meme := f.memes.memes["m1"]
	if !meme.Deleted {
		t.Fatal("мем должен быть удалён")
	}
	if meme.DeleterID == nil || *meme.DeleterID != 42 {
		t.Fatalf("удалившим считается нажавший, получили %v", meme.DeleterID)
	}
}

func TestCallbackNotDeleteRemovesPrompt(t *testing.T) {
	f := newFixture()
	f.handler.HandleUpdate(context.Background(), callbackUpdate(1, 42, "NOT_DELETE_MEME 55"))

	if len(f.out.deleted) != 1 || f.out.deleted[0] != 55 {
		t.Fatalf("должно удалиться сообщение 55, получили %v", f.out.deleted)
	}
}

func TestCallbackSendProposesDraft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.enterAdmin(t, 1)

	f.handler.HandleUpdate(ctx, tgbotapi.Update{Message: textMessage(1, "анонс")})
	draft := f.out.lastText(t)
	sendData := draft.markup.Inline[0][0].Data

	f.handler.HandleUpdate(ctx, callbackUpdate(1, 10, sendData))
	proposal := f.out.lastText(t)
	if proposal.text != "анонс" {
		t.Fatalf("предложение должно показывать текст, получили %q", proposal.text)
	}
	if proposal.markup.Inline[0][0].Label != "Підтвердити відправку" {
		t.Fatalf("ожидали кнопку подтверждения, получили %+v", proposal.markup.Inline[0][0])
	}
}

func TestMessageWinsOverCallback(t *testing.T) {
	f := newFixture()
	upd := tgbotapi.Update{
		Message:       textMessage(1, "/subscribe"),
		CallbackQuery: &tgbotapi.CallbackQuery{ID: "cb-9", Data: "LIST_RECIPIENTS"},
	}

	f.handler.HandleUpdate(context.Background(), upd)

	if got := f.out.lastText(t).text; got != "Підписано." {
		t.Fatalf("должна обработаться ветка message, получили %q", got)
	}
	if len(f.out.callbacks) != 0 {
		t.Fatal("callback не должен обрабатываться при наличии message")
	}
}

func TestBestPhotoVariant(t *testing.T) {
	photos := []tgbotapi.PhotoSize{
		{FileID: "s", FileUniqueID: "us", Height: 90},
		{FileID: "m", FileUniqueID: "um", Height: 640},
		{FileID: "l", FileUniqueID: "ul", Height: 1280},
	}

	variant, ok := bestPhotoVariant(photos, 320)
	if !ok || variant.FileUniqueID != "ul" {
		t.Fatalf("ожидали самый крупный вариант, получили %+v ok=%v", variant, ok)
	}

	// Порог строгий: ровно minHeight не проходит.
	if _, ok := bestPhotoVariant(photos[:1], 90); ok {
		t.Fatal("вариант на пороге высоты не должен проходить")
	}
}
