package retry

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"tg-meme-bot/internal/domain"
	"tg-meme-bot/internal/infra/metrics"
)

// DefaultDelays — паузы между попытками. Четыре попытки суммарно.
var DefaultDelays = []time.Duration{
	100 * time.Millisecond,
	500 * time.Millisecond,
	1000 * time.Millisecond,
}

// Policy повторяет операцию хранилища при транзиентных сбоях. Нетранзиентные
// ошибки и отмена контекста пробрасываются сразу. Исчерпав попытки, политика
// возвращает последнюю ошибку.
type Policy struct {
	delays    []time.Duration
	classify  func(error) bool
	telemetry domain.Telemetry
}

// NewPolicy создаёт политику с паузами по умолчанию.
func NewPolicy(telemetry domain.Telemetry) *Policy {
	return &Policy{
		delays:    DefaultDelays,
		classify:  IsTransient,
		telemetry: telemetry,
	}
}

// NewPolicyWith создаёт политику с заданными паузами и классификатором.
func NewPolicyWith(telemetry domain.Telemetry, delays []time.Duration, classify func(error) bool) *Policy {
	return &Policy{delays: delays, classify: classify, telemetry: telemetry}
}

// Do выполняет операцию, повторяя её при транзиентных сбоях.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !p.classify(lastErr) {
			return lastErr
		}
		if attempt >= len(p.delays) {
			return lastErr
		}

		metrics.StoreRetriesTotal.Inc()
		if p.telemetry != nil {
			p.telemetry.Trace("store retry", map[string]string{
				"retry": strconv.Itoa(attempt + 1),
				"error": lastErr.Error(),
			})
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delays[attempt]):
		}
	}
}

// IsTransient распознаёт сбои, которые имеет смысл повторять: сетевые
// таймауты и коды Postgres, связанные с соединением, перегрузкой и
// сериализацией. Отмена контекста и доменные исходы транзиентными не
// считаются.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrVersionConflict) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception
			return true
		case strings.HasPrefix(pgErr.Code, "53"): // insufficient resources
			return true
		case pgErr.Code == "57P03": // cannot_connect_now
			return true
		case pgErr.Code == "40001": // serialization_failure
			return true
		case pgErr.Code == "40P01": // deadlock_detected
			return true
		}
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
