package subscription

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"tg-meme-bot/internal/domain"
)

// Service управляет подпиской и режимом чата. Кэш режима необязателен: без
// него каждый запрос режима идёт в хранилище.
type Service struct {
	users domain.UserRepo
	cache domain.Cache
	ttl   time.Duration
}

// NewService создаёт сервис подписок.
func NewService(users domain.UserRepo, cache domain.Cache, ttl time.Duration) *Service {
	return &Service{users: users, cache: cache, ttl: ttl}
}

// Subscribe включает подписку чата на рассылку.
func (s *Service) Subscribe(ctx context.Context, profile domain.ChatProfile) (domain.UpsertResult, error) {
	return s.users.UpsertSubscription(ctx, profile, true)
}

// Unsubscribe выключает подписку. Повторная отписка перезаписывает тот же
// флаг: последняя запись выигрывает.
func (s *Service) Unsubscribe(ctx context.Context, profile domain.ChatProfile) (domain.UpsertResult, error) {
	return s.users.UpsertSubscription(ctx, profile, false)
}

// SetAdminMode переключает админский режим чата.
func (s *Service) SetAdminMode(ctx context.Context, profile domain.ChatProfile, admin bool) error {
	if _, err := s.users.SetAdminMode(ctx, profile, admin); err != nil {
		return err
	}
	s.cacheMode(ctx, profile.ChatID, admin)
	return nil
}

// Mode возвращает режим чата. Чат без записи считается обычным.
func (s *Service) Mode(ctx context.Context, chatID int64) (domain.ChatMode, error) {
	if mode, ok := s.cachedMode(ctx, chatID); ok {
		return mode, nil
	}

	user, err := s.users.GetUser(ctx, chatID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ModeNormal, nil
		}
		return domain.ModeNormal, fmt.Errorf("чтение чата %d: %w", chatID, err)
	}

	s.cacheMode(ctx, chatID, user.AdminMode)
	return user.Mode(), nil
}

// Subscribers возвращает подписанные чаты.
func (s *Service) Subscribers(ctx context.Context) ([]domain.UserRecord, error) {
	return s.users.ListSubscribers(ctx)
}

func modeCacheKey(chatID int64) string {
	return "chatmode:" + strconv.FormatInt(chatID, 10)
}

func (s *Service) cachedMode(ctx context.Context, chatID int64) (domain.ChatMode, bool) {
	if s.cache == nil {
		return domain.ModeNormal, false
	}
	data, err := s.cache.Get(ctx, modeCacheKey(chatID))
	if err != nil || len(data) == 0 {
		return domain.ModeNormal, false
	}
	if data[0] == '1' {
		return domain.ModeAdmin, true
	}
	return domain.ModeNormal, true
}

func (s *Service) cacheMode(ctx context.Context, chatID int64, admin bool) {
	if s.cache == nil {
		return
	}
	value := []byte("0")
	if admin {
		value = []byte("1")
	}
	// Промах или отказ кэша не влияет на корректность, ошибку игнорируем.
	_ = s.cache.Set(ctx, modeCacheKey(chatID), value, s.ttl)
}
