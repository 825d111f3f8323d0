package broadcast

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"tg-meme-bot/internal/domain"
	"tg-meme-bot/internal/infra/metrics"
)

// CallbackConfirmSend — verb callback-кнопки подтверждения отправки.
const CallbackConfirmSend = "CONFIRM_SEND_TO_SUBSCRIBERS"

// Service ведёт рассылку текста подписчикам: черновик → предложение →
// подтверждение → веерная отправка.
type Service struct {
	texts  domain.TextRepo
	users  domain.UserRepo
	sender domain.Sender
	log    zerolog.Logger
}

// NewService создаёт сервис рассылки.
func NewService(texts domain.TextRepo, users domain.UserRepo, sender domain.Sender, log zerolog.Logger) *Service {
	return &Service{texts: texts, users: users, sender: sender, log: log}
}

// Draft сохраняет текст рассылки и возвращает его идентификатор.
func (s *Service) Draft(ctx context.Context, authorID int64, body string) (string, error) {
	return s.texts.PutText(ctx, authorID, body)
}

// Propose перечитывает черновик по идентификатору и показывает автору текст
// с кнопкой подтверждения. Повторное чтение здесь намеренное: это шлюз
// подтверждения перед необратимой отправкой.
func (s *Service) Propose(ctx context.Context, chatID int64, textID string) error {
	record, err := s.texts.GetText(ctx, textID)
	if err != nil {
		return fmt.Errorf("чтение черновика %s: %w", textID, err)
	}

	markup := &domain.ReplyMarkup{Inline: [][]domain.InlineButton{{
		{Label: "Підтвердити відправку", Data: CallbackConfirmSend + " " + record.ID},
	}}}
	if _, err := s.sender.SendText(ctx, chatID, record.Body, markup); err != nil {
		return fmt.Errorf("отправка предложения: %w", err)
	}
	return nil
}

// ConfirmSend рассылает текст всем подписчикам. Отказ доставки одному
// получателю логируется и не прерывает рассылку; подтверждение автору
// отправляется после цикла в любом случае. Повторное подтверждение того же
// текста отсекается отметкой об отправке.
func (s *Service) ConfirmSend(ctx context.Context, chatID int64, textID string) error {
	record, err := s.texts.GetText(ctx, textID)
	if err != nil {
		return fmt.Errorf("чтение текста %s: %w", textID, err)
	}

	fresh, err := s.texts.MarkTextSent(ctx, textID)
	if err != nil {
		return fmt.Errorf("отметка об отправке: %w", err)
	}
	if !fresh {
		_, err := s.sender.SendText(ctx, chatID, "Вже розіслано.", &domain.ReplyMarkup{RemoveReply: true})
		return err
	}

	subscribers, err := s.users.ListSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("выборка подписчиков: %w", err)
	}

	for _, subscriber := range subscribers {
		_, sendErr := s.sender.SendText(ctx, subscriber.ChatID, record.Body, &domain.ReplyMarkup{RemoveReply: true})
		metrics.IncBroadcastDelivery(sendErr)
		if sendErr != nil {
			s.log.Error().Err(sendErr).Int64("chat", subscriber.ChatID).Msg("broadcast: доставка подписчику не удалась")
		}
	}

	if _, err := s.sender.SendText(ctx, chatID, "Розіслано", &domain.ReplyMarkup{RemoveReply: true}); err != nil {
		return fmt.Errorf("подтверждение автору: %w", err)
	}
	return nil
}

// ListRecipients показывает автору имена подписчиков.
func (s *Service) ListRecipients(ctx context.Context, chatID int64) error {
	subscribers, err := s.users.ListSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("выборка подписчиков: %w", err)
	}

	text := "Підписників немає."
	if len(subscribers) > 0 {
		names := make([]string, 0, len(subscribers))
		for _, subscriber := range subscribers {
			names = append(names, subscriber.DisplayName())
		}
		text = strings.Join(names, ",\n")
	}

	_, err = s.sender.SendText(ctx, chatID, text, &domain.ReplyMarkup{RemoveReply: true})
	return err
}
