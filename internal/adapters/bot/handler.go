package bot

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-meme-bot/internal/domain"
	"tg-meme-bot/internal/infra/metrics"
	"tg-meme-bot/internal/usecase/broadcast"
	"tg-meme-bot/internal/usecase/memes"
	"tg-meme-bot/internal/usecase/reactions"
	"tg-meme-bot/internal/usecase/subscription"
)

const (
	usageText = "Використання:\n" +
		"/random_meme - Отримати випадковий мемас\n" +
		"/subscribe - Підписатися"

	adminPromptText = "Ok mamabot, відправте ваш текст, або мем."
	failureText     = "Не вдалося виконати, спробуйте пізніше."
)

// Outbound — исходящая поверхность, которой пользуется роутер.
type Outbound interface {
	domain.Sender
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Handler классифицирует входящие апдейты и раздаёт их обработчикам команд.
type Handler struct {
	out            Outbound
	log            zerolog.Logger
	telemetry      domain.Telemetry
	subs           *subscription.Service
	reactions      *reactions.Service
	broadcast      *broadcast.Service
	memes          *memes.Service
	minPhotoHeight int
}

// NewHandler создаёт роутер.
func NewHandler(
	out Outbound,
	log zerolog.Logger,
	telemetry domain.Telemetry,
	subs *subscription.Service,
	reactionsUC *reactions.Service,
	broadcastUC *broadcast.Service,
	memesUC *memes.Service,
	minPhotoHeight int,
) *Handler {
	return &Handler{
		out:            out,
		log:            log,
		telemetry:      telemetry,
		subs:           subs,
		reactions:      reactionsUC,
		broadcast:      broadcastUC,
		memes:          memesUC,
		minPhotoHeight: minPhotoHeight,
	}
}

// HandleUpdate обрабатывает входящий апдейт. Порядок веток фиксирован:
// message > edited_message > callback_query > inline_query >
// chosen_inline_result, первый совпавший вариант выигрывает.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		metrics.IncUpdate("message")
		h.handleMessage(ctx, upd.Message)
	case upd.EditedMessage != nil:
		metrics.IncUpdate("edited_message")
		h.handleMessage(ctx, upd.EditedMessage)
	case upd.CallbackQuery != nil:
		metrics.IncUpdate("callback_query")
		h.handleCallback(ctx, upd.CallbackQuery)
	case upd.InlineQuery != nil:
		metrics.IncUpdate("inline_query")
		h.log.Info().Int64("from", upd.InlineQuery.From.ID).Msg("получен inline-запрос")
	case upd.ChosenInlineResult != nil:
		metrics.IncUpdate("chosen_inline_result")
		h.log.Info().Str("result", upd.ChosenInlineResult.ResultID).Msg("получен выбранный inline-результат")
	default:
		metrics.IncUpdate("unknown")
		h.log.Info().Int("update_id", upd.UpdateID).Msg("апдейт неизвестного типа")
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if len(msg.Photo) > 0 {
		h.handlePhoto(ctx, msg)
	}
	if msg.Text == "" {
		return
	}

	cmd := ParseCommand(msg.Text)
	switch cmd.Kind {
	case CmdStart:
		h.handleStart(ctx, msg)
	case CmdStartAdmin:
		h.handleAdminMode(ctx, msg, true)
	case CmdEndAdmin:
		h.handleAdminMode(ctx, msg, false)
	case CmdRandomMeme:
		h.handleRandomMeme(ctx, msg.Chat.ID)
	case CmdSubscribe:
		h.handleSubscribe(ctx, msg)
	case CmdUnsubscribe:
		h.handleUnsubscribe(ctx, msg)
	case CmdFreeText:
		h.handleFreeText(ctx, msg, cmd.Text)
	}
}

// handleFreeText — обработчик по умолчанию. В админском режиме весь текст
// сообщения становится черновиком рассылки, в обычном — чат получает
// подсказку.
func (h *Handler) handleFreeText(ctx context.Context, msg *tgbotapi.Message, text string) {
	mode, err := h.subs.Mode(ctx, msg.Chat.ID)
	if err != nil {
		h.fail(ctx, msg.Chat.ID, err, "chat mode")
		return
	}
	if mode != domain.ModeAdmin {
		h.reply(ctx, msg.Chat.ID, usageText, &domain.ReplyMarkup{RemoveReply: true})
		return
	}

	textID, err := h.broadcast.Draft(ctx, fromID(msg), text)
	if err != nil {
		h.fail(ctx, msg.Chat.ID, err, "draft")
		return
	}

	markup := &domain.ReplyMarkup{Inline: [][]domain.InlineButton{{
		{Label: "Розіслати", Data: "SEND " + textID},
		{Label: "Переглянути підписників", Data: "LIST_RECIPIENTS"},
	}}}
	h.reply(ctx, msg.Chat.ID, text, markup)
}

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	mode, err := h.subs.Mode(ctx, msg.Chat.ID)
	if err != nil {
		h.fail(ctx, msg.Chat.ID, err, "chat mode")
		return
	}
	if mode != domain.ModeAdmin {
		h.reply(ctx, msg.Chat.ID, usageText, &domain.ReplyMarkup{RemoveReply: true})
		return
	}
	// Чат в админском режиме: /start сбрасывает подписку и напоминает, что
	// бот ждёт текст или мем.
	if _, err := h.subs.Unsubscribe(ctx, chatProfile(msg)); err != nil {
		h.fail(ctx, msg.Chat.ID, err, "start upsert")
		return
	}
	h.reply(ctx, msg.Chat.ID, adminPromptText, nil)
}

func (h *Handler) handleAdminMode(ctx context.Context, msg *tgbotapi.Message, admin bool) {
	if err := h.subs.SetAdminMode(ctx, chatProfile(msg), admin); err != nil {
		h.fail(ctx, msg.Chat.ID, err, "admin mode toggle")
		return
	}
	if admin {
		h.reply(ctx, msg.Chat.ID, "Ok mamabot, пришліть текст для розсилки, або мем в колекцію.", nil)
		return
	}
	h.reply(ctx, msg.Chat.ID, "Вийшли з мамабота", nil)
}

func (h *Handler) handleSubscribe(ctx context.Context, msg *tgbotapi.Message) {
	result, err := h.subs.Subscribe(ctx, chatProfile(msg))
	text := "Не вдалося підписати."
	switch {
	case err != nil:
		h.telemetry.TrackFailure(err, "subscribe")
	case result == domain.UpsertCreated:
		text = "Підписано."
	default:
		text = "Перепідписано."
	}
	h.reply(ctx, msg.Chat.ID, text, &domain.ReplyMarkup{RemoveReply: true})
}

func (h *Handler) handleUnsubscribe(ctx context.Context, msg *tgbotapi.Message) {
	result, err := h.subs.Unsubscribe(ctx, chatProfile(msg))
	text := "Не вдалося відписатися."
	switch {
	case err != nil:
		h.telemetry.TrackFailure(err, "unsubscribe")
	case result == domain.UpsertCreated:
		text = "Не було підписано."
	default:
		text = "Відписано."
	}
	h.reply(ctx, msg.Chat.ID, text, &domain.ReplyMarkup{RemoveReply: true})
}

func (h *Handler) handleRandomMeme(ctx context.Context, chatID int64) {
	if err := h.out.SendChatAction(ctx, chatID, "upload_photo"); err != nil {
		h.log.Debug().Err(err).Msg("не удалось отправить chat action")
	}

	meme, err := h.memes.Random(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.reply(ctx, chatID, "Немає мемів.", nil)
			return
		}
		h.fail(ctx, chatID, err, "random meme")
		return
	}

	markup := &domain.ReplyMarkup{Inline: [][]domain.InlineButton{{
		{Label: "Like", Data: "LIKE_MEME_" + meme.FileUniqueID},
		{Label: "Dislike", Data: "DISLIKE_MEME_" + meme.FileUniqueID},
		{Label: "X", Data: "DELETE_MEME_" + meme.FileUniqueID},
	}}}
	if _, err := h.out.SendPhoto(ctx, chatID, meme.FileID, "Nice Picture", markup); err != nil {
		h.telemetry.TrackFailure(err, "send meme")
	}
}

// handlePhoto сохраняет загруженное фото. Роутер, а не хранилище, выбирает
// лучший вариант из присланных размеров.
func (h *Handler) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	mode, err := h.subs.Mode(ctx, msg.Chat.ID)
	if err != nil {
		h.fail(ctx, msg.Chat.ID, err, "chat mode")
		return
	}

	variant, ok := bestPhotoVariant(msg.Photo, h.minPhotoHeight)
	if !ok {
		h.reply(ctx, msg.Chat.ID, "Фото занадто мале для колекції.", nil)
		return
	}

	if err := h.memes.Store(ctx, variant, msg.Chat.ID, fromID(msg), mode == domain.ModeAdmin); err != nil {
		h.fail(ctx, msg.Chat.ID, err, "store meme")
		return
	}
	h.reply(ctx, msg.Chat.ID, "Мем добавлено в колекцію\n /random_meme", nil)
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	defer func() {
		if err := h.out.AnswerCallback(ctx, cb.ID); err != nil {
			h.log.Error().Err(err).Msg("не удалось ответить на callback")
		}
	}()

	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	action := ParseCallback(cb.Data)
	switch action.Kind {
	case CbLikeMeme:
		if err := h.reactions.Like(ctx, action.Arg, cb.From.ID); err != nil {
			h.fail(ctx, chatID, err, "like meme")
		}
	case CbDislikeMeme:
		if err := h.reactions.Dislike(ctx, action.Arg, cb.From.ID); err != nil {
			h.fail(ctx, chatID, err, "dislike meme")
		}
	case CbDeleteMeme:
		markup := &domain.ReplyMarkup{Inline: [][]domain.InlineButton{{
			{Label: "Так", Data: "CONFIRM_DELETE_MEME " + action.Arg},
			{Label: "Ні", Data: "NOT_DELETE_MEME " + strconv.Itoa(cb.Message.MessageID)},
		}}}
		h.reply(ctx, chatID, "Видаляти?", markup)
	case CbConfirmDeleteMeme:
		if err := h.reactions.Delete(ctx, action.Arg, cb.From.ID); err != nil {
			h.fail(ctx, chatID, err, "delete meme")
		}
	case CbNotDeleteMeme:
		messageID, err := strconv.Atoi(action.Arg)
		if err != nil {
			h.log.Debug().Str("arg", action.Arg).Msg("некорректный идентификатор сообщения в callback")
			return
		}
		if err := h.out.DeleteMessage(ctx, chatID, messageID); err != nil {
			h.telemetry.TrackFailure(err, "delete confirm message")
		}
	case CbSend:
		if err := h.broadcast.Propose(ctx, chatID, action.Arg); err != nil {
			h.fail(ctx, chatID, err, "propose broadcast")
		}
	case CbConfirmSend:
		if err := h.broadcast.ConfirmSend(ctx, chatID, action.Arg); err != nil {
			h.fail(ctx, chatID, err, "confirm broadcast")
		}
	case CbListRecipients:
		if err := h.broadcast.ListRecipients(ctx, chatID); err != nil {
			h.fail(ctx, chatID, err, "list recipients")
		}
	default:
		h.log.Info().Str("data", cb.Data).Msg("callback с неизвестным действием")
	}
}

// fail логирует сбой и отвечает чату: пользователь не должен остаться без
// ответа даже при внутренней ошибке.
func (h *Handler) fail(ctx context.Context, chatID int64, err error, op string) {
	h.telemetry.TrackFailure(err, op)
	h.reply(ctx, chatID, failureText, nil)
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string, markup *domain.ReplyMarkup) {
	if _, err := h.out.SendText(ctx, chatID, text, markup); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить сообщение")
	}
}

// bestPhotoVariant выбирает самый крупный вариант фото выше порога высоты.
func bestPhotoVariant(photos []tgbotapi.PhotoSize, minHeight int) (domain.PhotoVariant, bool) {
	var best domain.PhotoVariant
	found := false
	for _, photo := range photos {
		if photo.Height <= minHeight {
			continue
		}
		if !found || photo.Height > best.Height {
			best = domain.PhotoVariant{
				FileID:       photo.FileID,
				FileUniqueID: photo.FileUniqueID,
				Height:       photo.Height,
			}
			found = true
		}
	}
	return best, found
}

func fromID(msg *tgbotapi.Message) int64 {
	if msg.From == nil {
		return 0
	}
	return msg.From.ID
}

func chatProfile(msg *tgbotapi.Message) domain.ChatProfile {
	profile := domain.ChatProfile{
		ChatID: msg.Chat.ID,
		UserID: fromID(msg),
	}
	if data, err := json.Marshal(msg.Chat); err == nil {
		profile.ChatSnapshot = data
	}
	if msg.From != nil {
		if data, err := json.Marshal(msg.From); err == nil {
			profile.UserSnapshot = data
		}
	}
	return profile
}
