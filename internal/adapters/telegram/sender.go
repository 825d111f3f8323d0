package telegram

import (
	"context"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-meme-bot/internal/domain"
	"tg-meme-bot/internal/infra/metrics"
)

// Sender реализует domain.Sender поверх Bot API. Bot API не принимает
// контекст, поэтому отмена проверяется перед каждым запросом.
type Sender struct {
	bot *tgbotapi.BotAPI
}

var _ domain.Sender = (*Sender)(nil)

// NewSender создаёт адаптер отправки.
func NewSender(bot *tgbotapi.BotAPI) *Sender {
	return &Sender{bot: bot}
}

// SendText отправляет текст, при необходимости разбивая его на части.
// Клавиатура прикрепляется к первой части. Возвращает идентификатор
// последнего отправленного сообщения.
func (s *Sender) SendText(ctx context.Context, chatID int64, text string, markup *domain.ReplyMarkup) (int, error) {
	var lastID int
	for i, part := range SplitMessage(text) {
		if err := ctx.Err(); err != nil {
			return lastID, err
		}
		msg := tgbotapi.NewMessage(chatID, part)
		if i == 0 {
			msg.ReplyMarkup = convertMarkup(markup)
		}
		start := time.Now()
		sent, err := s.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			return lastID, err
		}
		lastID = sent.MessageID
	}
	return lastID, nil
}

// SendPhoto отправляет фото по сохранённому file_id.
func (s *Sender) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, markup *domain.ReplyMarkup) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	photo.Caption = caption
	photo.ReplyMarkup = convertMarkup(markup)
	start := time.Now()
	sent, err := s.bot.Send(photo)
	metrics.ObserveNetworkRequest("telegram_bot", "send_photo", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		metrics.BotSendErrors.Inc()
		return 0, err
	}
	return sent.MessageID, nil
}

// DeleteMessage удаляет сообщение бота.
func (s *Sender) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	_, err := s.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	metrics.ObserveNetworkRequest("telegram_bot", "delete_message", strconv.FormatInt(chatID, 10), start, err)
	return err
}

// SendChatAction показывает чату индикатор действия (например, загрузку
// фото).
func (s *Sender) SendChatAction(ctx context.Context, chatID int64, action string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	_, err := s.bot.Request(tgbotapi.NewChatAction(chatID, action))
	metrics.ObserveNetworkRequest("telegram_bot", "chat_action", strconv.FormatInt(chatID, 10), start, err)
	return err
}

// AnswerCallback подтверждает получение callback-а, чтобы кнопка перестала
// крутиться.
func (s *Sender) AnswerCallback(ctx context.Context, callbackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	_, err := s.bot.Request(tgbotapi.NewCallback(callbackID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", callbackID, start, err)
	return err
}

func convertMarkup(markup *domain.ReplyMarkup) interface{} {
	if markup == nil {
		return nil
	}
	if len(markup.Inline) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(markup.Inline))
		for _, row := range markup.Inline {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, button := range row {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(button.Label, button.Data))
			}
			rows = append(rows, buttons)
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if markup.RemoveReply {
		return tgbotapi.NewRemoveKeyboard(false)
	}
	return nil
}
