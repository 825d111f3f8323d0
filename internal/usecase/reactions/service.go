package reactions

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"tg-meme-bot/internal/domain"
	"tg-meme-bot/internal/infra/metrics"
)

// conflictRetryMax ограничивает число повторов мутации при конфликте версий.
const conflictRetryMax = 3

// Service применяет реакции к мемам. Между чтением и записью нет блокировки,
// единственная защита от потерянных обновлений — токен версии: при конфликте
// мутация повторяется со свежего чтения.
type Service struct {
	memes domain.MemeRepo
}

// NewService создаёт движок реакций.
func NewService(memes domain.MemeRepo) *Service {
	return &Service{memes: memes}
}

// Like добавляет userID в множество лайкнувших. Повторный лайк того же
// пользователя ничего не меняет.
func (s *Service) Like(ctx context.Context, fileUniqueID string, userID int64) error {
	return s.mutate(ctx, fileUniqueID, func(meme *domain.MemeRecord) bool {
		if slices.Contains(meme.Likers, userID) {
			return false
		}
		meme.Likers = append(meme.Likers, userID)
		return true
	})
}

// Dislike добавляет userID в множество дизлайкнувших.
func (s *Service) Dislike(ctx context.Context, fileUniqueID string, userID int64) error {
	return s.mutate(ctx, fileUniqueID, func(meme *domain.MemeRecord) bool {
		if slices.Contains(meme.Dislikers, userID) {
			return false
		}
		meme.Dislikers = append(meme.Dislikers, userID)
		return true
	})
}

// Delete мягко удаляет мем и запоминает, кто удалил. Удаление уже удалённого
// мема — no-op: первый удаливший не перезаписывается.
func (s *Service) Delete(ctx context.Context, fileUniqueID string, requesterID int64) error {
	return s.mutate(ctx, fileUniqueID, func(meme *domain.MemeRecord) bool {
		if meme.Deleted {
			return false
		}
		meme.Deleted = true
		meme.DeleterID = &requesterID
		return true
	})
}

// mutate выполняет read-modify-write. apply возвращает false, если запись
// менять не нужно.
func (s *Service) mutate(ctx context.Context, fileUniqueID string, apply func(*domain.MemeRecord) bool) error {
	for attempt := 0; attempt < conflictRetryMax; attempt++ {
		meme, err := s.memes.GetMemeByUniqueID(ctx, fileUniqueID)
		if err != nil {
			return err
		}

		if !apply(&meme) {
			return nil
		}

		err = s.memes.UpdateMeme(ctx, meme)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
		metrics.ReactionConflictsTotal.Inc()
	}
	return fmt.Errorf("мем %s: %w", fileUniqueID, domain.ErrVersionConflict)
}
