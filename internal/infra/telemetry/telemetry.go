package telemetry

import (
	"github.com/rs/zerolog"

	"tg-meme-bot/internal/domain"
)

// Client реализует domain.Telemetry поверх zerolog. Создаётся один раз при
// старте процесса и передаётся по ссылке, без глобального состояния.
type Client struct {
	log zerolog.Logger
}

var _ domain.Telemetry = (*Client)(nil)

// New создаёт телеметрию.
func New(log zerolog.Logger) *Client {
	return &Client{log: log.With().Str("component", "telemetry").Logger()}
}

// Trace пишет трассировочное событие с атрибутами.
func (c *Client) Trace(message string, attrs map[string]string) {
	event := c.log.Debug()
	for key, value := range attrs {
		event = event.Str(key, value)
	}
	event.Msg(message)
}

// TrackFailure фиксирует сбой с контекстом операции.
func (c *Client) TrackFailure(err error, context string) {
	c.log.Error().Err(err).Str("op", context).Msg("operation failed")
}
