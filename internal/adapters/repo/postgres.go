package repo

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-meme-bot/internal/domain"
	"tg-meme-bot/internal/infra/metrics"
	"tg-meme-bot/internal/infra/retry"
)

//go:embed schema.sql
var schemaDDL string

// Postgres реализует репозитории записей на основе pgxpool. Каждое
// физическое чтение и запись проходит через политику повторов.
type Postgres struct {
	pool   *pgxpool.Pool
	policy *retry.Policy
}

var (
	_ domain.TextRepo = (*Postgres)(nil)
	_ domain.UserRepo = (*Postgres)(nil)
	_ domain.MemeRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool, policy *retry.Policy) *Postgres {
	return &Postgres{pool: pool, policy: policy}
}

// EnsureSchema создаёт таблицы, если их ещё нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	return p.policy.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		_, err := p.pool.Exec(ctx, schemaDDL)
		metrics.ObserveNetworkRequest("postgres", "ensure_schema", "all", start, err)
		return err
	})
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 5*time.Second)
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// PutText создаёт запись текста рассылки и возвращает её идентификатор.
func (p *Postgres) PutText(ctx context.Context, authorID int64, body string) (string, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	id := uuid.NewString()
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		_, err := p.pool.Exec(ctx, `
INSERT INTO broadcast_texts (id, author_id, body)
VALUES ($1, $2, $3)
`, id, authorID, body)
		metrics.ObserveNetworkRequest("postgres", "texts_insert", "broadcast_texts", start, err)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("запись текста: %w", err)
	}
	return id, nil
}

// GetText возвращает текст рассылки по идентификатору.
func (p *Postgres) GetText(ctx context.Context, id string) (domain.TextRecord, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var record domain.TextRecord
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		err := p.pool.QueryRow(ctx, `
SELECT id, author_id, body, deleted, sent_at, created_at
FROM broadcast_texts
WHERE id = $1
`, id).Scan(&record.ID, &record.AuthorID, &record.Body, &record.Deleted, &record.SentAt, &record.CreatedAt)
		metrics.ObserveNetworkRequest("postgres", "texts_get", "broadcast_texts", start, err)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	})
	if err != nil {
		return domain.TextRecord{}, err
	}
	return record, nil
}

// MarkTextSent ставит отметку об отправке. Возвращает false, если текст уже
// был помечен отправленным другим вызовом.
func (p *Postgres) MarkTextSent(ctx context.Context, id string) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var marked bool
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		tag, err := p.pool.Exec(ctx, `
UPDATE broadcast_texts
SET sent_at = now()
WHERE id = $1 AND sent_at IS NULL
`, id)
		metrics.ObserveNetworkRequest("postgres", "texts_mark_sent", "broadcast_texts", start, err)
		if err != nil {
			return err
		}
		marked = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	if !marked {
		if _, err := p.GetText(ctx, id); err != nil {
			return false, err
		}
	}
	return marked, nil
}

// UpsertSubscription перезаписывает флаг подписки чата, не трогая режим.
func (p *Postgres) UpsertSubscription(ctx context.Context, profile domain.ChatProfile, subscribed bool) (domain.UpsertResult, error) {
	return p.upsertUser(ctx, profile, "subscribed", subscribed)
}

// SetAdminMode перезаписывает флаг админского режима, не трогая подписку.
func (p *Postgres) SetAdminMode(ctx context.Context, profile domain.ChatProfile, admin bool) (domain.UpsertResult, error) {
	return p.upsertUser(ctx, profile, "admin_mode", admin)
}

func (p *Postgres) upsertUser(ctx context.Context, profile domain.ChatProfile, flagColumn string, value bool) (domain.UpsertResult, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	// flagColumn — имя колонки из фиксированного набора, не пользовательский
	// ввод.
	query := fmt.Sprintf(`
INSERT INTO bot_users (chat_id, user_id, chat_snapshot, user_snapshot, %[1]s, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (chat_id) DO UPDATE SET
    user_id       = EXCLUDED.user_id,
    chat_snapshot = EXCLUDED.chat_snapshot,
    user_snapshot = EXCLUDED.user_snapshot,
    %[1]s         = EXCLUDED.%[1]s,
    updated_at    = now()
RETURNING (xmax = 0)
`, flagColumn)

	var inserted bool
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		err := p.pool.QueryRow(ctx, query,
			profile.ChatID, profile.UserID, profile.ChatSnapshot, profile.UserSnapshot, value,
		).Scan(&inserted)
		metrics.ObserveNetworkRequest("postgres", "users_upsert", "bot_users", start, err)
		return err
	})
	if err != nil {
		return domain.UpsertUpdated, fmt.Errorf("upsert чата %d: %w", profile.ChatID, err)
	}
	if inserted {
		return domain.UpsertCreated, nil
	}
	return domain.UpsertUpdated, nil
}

// GetUser возвращает запись чата.
func (p *Postgres) GetUser(ctx context.Context, chatID int64) (domain.UserRecord, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var record domain.UserRecord
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		err := p.pool.QueryRow(ctx, `
SELECT chat_id, user_id, chat_snapshot, user_snapshot, subscribed, admin_mode, deleted, updated_at
FROM bot_users
WHERE chat_id = $1
`, chatID).Scan(
			&record.ChatID, &record.UserID, &record.ChatSnapshot, &record.UserSnapshot,
			&record.Subscribed, &record.AdminMode, &record.Deleted, &record.UpdatedAt,
		)
		metrics.ObserveNetworkRequest("postgres", "users_get", "bot_users", start, err)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	})
	if err != nil {
		return domain.UserRecord{}, err
	}
	return record, nil
}

// ListSubscribers возвращает чаты, подписанные на рассылку. Порядок записей
// не гарантируется.
func (p *Postgres) ListSubscribers(ctx context.Context) ([]domain.UserRecord, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var subscribers []domain.UserRecord
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		subscribers = subscribers[:0]
		start := time.Now()
		rows, err := p.pool.Query(ctx, `
SELECT chat_id, user_id, chat_snapshot, user_snapshot, subscribed, admin_mode, deleted, updated_at
FROM bot_users
WHERE subscribed AND NOT deleted
`)
		metrics.ObserveNetworkRequest("postgres", "users_list_subscribers", "bot_users", start, err)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var record domain.UserRecord
			if err := rows.Scan(
				&record.ChatID, &record.UserID, &record.ChatSnapshot, &record.UserSnapshot,
				&record.Subscribed, &record.AdminMode, &record.Deleted, &record.UpdatedAt,
			); err != nil {
				return err
			}
			subscribers = append(subscribers, record)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("выборка подписчиков: %w", err)
	}
	return subscribers, nil
}

// PutMeme сохраняет мем. Повторная загрузка того же файла не считается
// ошибкой.
func (p *Postgres) PutMeme(ctx context.Context, meme domain.MemeRecord) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if meme.Likers == nil {
		meme.Likers = []int64{}
	}
	if meme.Dislikers == nil {
		meme.Dislikers = []int64{}
	}

	err := p.policy.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		_, err := p.pool.Exec(ctx, `
INSERT INTO memes (file_unique_id, file_id, chat_id, uploader_id, likers, dislikers, deleted)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (file_unique_id) DO NOTHING
`, meme.FileUniqueID, meme.FileID, meme.ChatID, meme.UploaderID, meme.Likers, meme.Dislikers, meme.Deleted)
		metrics.ObserveNetworkRequest("postgres", "memes_insert", "memes", start, err)
		return err
	})
	if err != nil {
		return fmt.Errorf("запись мема %s: %w", meme.FileUniqueID, err)
	}
	return nil
}

// GetMemeByUniqueID возвращает мем вместе с токеном версии.
func (p *Postgres) GetMemeByUniqueID(ctx context.Context, fileUniqueID string) (domain.MemeRecord, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var record domain.MemeRecord
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		err := p.pool.QueryRow(ctx, `
SELECT file_unique_id, file_id, chat_id, uploader_id, likers, dislikers, deleter_id, deleted, version, created_at
FROM memes
WHERE file_unique_id = $1
`, fileUniqueID).Scan(
			&record.FileUniqueID, &record.FileID, &record.ChatID, &record.UploaderID,
			&record.Likers, &record.Dislikers, &record.DeleterID, &record.Deleted,
			&record.Version, &record.CreatedAt,
		)
		metrics.ObserveNetworkRequest("postgres", "memes_get", "memes", start, err)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	})
	if err != nil {
		return domain.MemeRecord{}, err
	}
	return record, nil
}

// ListActiveMemes возвращает неудалённые мемы.
func (p *Postgres) ListActiveMemes(ctx context.Context) ([]domain.MemeRecord, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var memes []domain.MemeRecord
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		memes = memes[:0]
		start := time.Now()
		rows, err := p.pool.Query(ctx, `
SELECT file_unique_id, file_id, chat_id, uploader_id, likers, dislikers, deleter_id, deleted, version, created_at
FROM memes
WHERE NOT deleted
`)
		metrics.ObserveNetworkRequest("postgres", "memes_list_active", "memes", start, err)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var record domain.MemeRecord
			if err := rows.Scan(
				&record.FileUniqueID, &record.FileID, &record.ChatID, &record.UploaderID,
				&record.Likers, &record.Dislikers, &record.DeleterID, &record.Deleted,
				&record.Version, &record.CreatedAt,
			); err != nil {
				return err
			}
			memes = append(memes, record)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("выборка мемов: %w", err)
	}
	return memes, nil
}

// UpdateMeme пишет запись по токену версии, снятому при чтении. Несовпадение
// токена — domain.ErrVersionConflict, вызывающий обязан перечитать запись.
func (p *Postgres) UpdateMeme(ctx context.Context, meme domain.MemeRecord) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if meme.Likers == nil {
		meme.Likers = []int64{}
	}
	if meme.Dislikers == nil {
		meme.Dislikers = []int64{}
	}

	return p.policy.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		tag, err := p.pool.Exec(ctx, `
UPDATE memes
SET likers     = $1,
    dislikers  = $2,
    deleter_id = $3,
    deleted    = $4,
    version    = version + 1
WHERE file_unique_id = $5 AND version = $6
`, meme.Likers, meme.Dislikers, meme.DeleterID, meme.Deleted, meme.FileUniqueID, meme.Version)
		metrics.ObserveNetworkRequest("postgres", "memes_update", "memes", start, err)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			return nil
		}

		var exists bool
		err = p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM memes WHERE file_unique_id = $1)`, meme.FileUniqueID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrVersionConflict
	})
}
