package memes

import (
	"context"
	"math/rand"

	"tg-meme-bot/internal/domain"
)

// Service отвечает за коллекцию мемов: сохранение загрузок и случайный
// выбор.
type Service struct {
	memes domain.MemeRepo
}

// NewService создаёт сервис коллекции.
func NewService(memes domain.MemeRepo) *Service {
	return &Service{memes: memes}
}

// Store сохраняет загруженное фото. Чат не в админском режиме получает
// запись с deleted=true: файл учитывается, но в коллекцию не попадает.
func (s *Service) Store(ctx context.Context, variant domain.PhotoVariant, chatID, uploaderID int64, collectible bool) error {
	return s.memes.PutMeme(ctx, domain.MemeRecord{
		FileUniqueID: variant.FileUniqueID,
		FileID:       variant.FileID,
		ChatID:       chatID,
		UploaderID:   uploaderID,
		Deleted:      !collectible,
	})
}

// Random возвращает случайный неудалённый мем. Пустая коллекция —
// domain.ErrNotFound.
func (s *Service) Random(ctx context.Context) (domain.MemeRecord, error) {
	active, err := s.memes.ListActiveMemes(ctx)
	if err != nil {
		return domain.MemeRecord{}, err
	}
	if len(active) == 0 {
		return domain.MemeRecord{}, domain.ErrNotFound
	}
	return active[rand.Intn(len(active))], nil
}
