package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Poller читает апдейты длинным поллингом и раздаёт их воркерам. Число
// одновременно обрабатываемых апдейтов ограничено; обработчик обязан
// выдерживать произвольное чередование апдейтов разных чатов.
type Poller struct {
	bot     *tgbotapi.BotAPI
	handler *Handler
	log     zerolog.Logger
	timeout int
	workers int
}

// NewPoller создаёт поллер.
func NewPoller(bot *tgbotapi.BotAPI, handler *Handler, log zerolog.Logger, timeout, workers int) *Poller {
	if workers < 1 {
		workers = 1
	}
	return &Poller{bot: bot, handler: handler, log: log, timeout: timeout, workers: workers}
}

// Run крутит цикл приёма до отмены контекста. Начатые обработки дожидаются
// завершения.
func (p *Poller) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.timeout
	updates := p.bot.GetUpdatesChan(cfg)

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			p.bot.StopReceivingUpdates()
			wg.Wait()
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				wg.Wait()
				return nil
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer wg.Done()
				defer func() { <-sem }()
				p.handler.HandleUpdate(ctx, upd)
			}(upd)
		}
	}
}
