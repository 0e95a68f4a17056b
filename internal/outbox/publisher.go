// Package outbox реализует фоновую публикацию исходящих событий из таблицы outbox в брокер.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/justwannacode/kpo-hw4/internal/repository/repoargs"
	"github.com/justwannacode/kpo-hw4/pkg/uow"
)

const (
	defaultPollInterval       = time.Second
	defaultBatchLimit   int32 = 50
	errorBackoff              = time.Second
	maxErrorLength            = 500
)

// Publisher опрашивает таблицу outbox и доставляет накопившиеся сообщения в брокер.
// Гарантия — at-least-once: при падении процесса между подтверждением брокера и коммитом
// сообщение будет опубликовано повторно, дедупликация лежит на стороне консюмера (inbox).
type Publisher struct {
	uow          uow.UOW
	broker       Broker
	l            *logrus.Entry
	pollInterval time.Duration
	batchLimit   int32
}

func NewPublisher(u uow.UOW, broker Broker, l *logrus.Logger) *Publisher {
	return &Publisher{
		uow:    u,
		broker: broker,
		l: l.WithFields(logrus.Fields{
			"component": "outbox",
			"module":    "publisher",
		}),
		pollInterval: defaultPollInterval,
		batchLimit:   defaultBatchLimit,
	}
}

// SetPollInterval устанавливает период опроса таблицы outbox.
func (p *Publisher) SetPollInterval(interval time.Duration) *Publisher {
	p.pollInterval = interval
	return p
}

// SetBatchLimit устанавливает максимум сообщений, обрабатываемых за один цикл.
func (p *Publisher) SetBatchLimit(limit int32) *Publisher {
	p.batchLimit = limit
	return p
}

// Run запускает цикл публикации до отмены контекста. Любая ошибка уровня цикла
// (например потеря соединения с брокером) логируется, после паузы цикл продолжается —
// завершает работу только стоп-сигнал.
func (p *Publisher) Run(ctx context.Context) {
	p.l.WithFields(logrus.Fields{
		"pollInterval": p.pollInterval.String(),
		"batchLimit":   p.batchLimit,
	}).Info("Starting")

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.l.Info("Got stop signal, exiting...")
			return
		case <-ticker.C:
			if err := p.cycle(ctx); err != nil {
				p.l.WithError(err).Error("publish cycle error")
				if connErr := p.broker.EnsureConnected(ctx); connErr != nil {
					p.l.WithError(connErr).Error("broker reconnect error")
				}
				p.sleep(ctx)
			}
		}
	}
}

// sleep выдерживает паузу после неуспешного цикла, не задерживая остановку процесса.
func (p *Publisher) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(errorBackoff):
	}
}

// cycle выполняет одну итерацию: в одной транзакции захватывает пачку неопубликованных
// сообщений (SKIP LOCKED) и пытается опубликовать каждое. Результат попытки
// (успех/ошибка, счетчик attempts) фиксируется в той же транзакции; коммит происходит
// независимо от исходов отдельных публикаций.
func (p *Publisher) cycle(ctx context.Context) error {
	txErr := p.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		repo, repoErr := uow.GetAs[OutboxRepository](tx, uow.RepositoryName(repoargs.OutboxRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}

		messages, claimErr := repo.ClaimPending(c, p.batchLimit)
		if claimErr != nil {
			return claimErr //nolint:wrapcheck
		}

		for _, msg := range messages {
			pubErr := p.broker.Publish(c, msg.Exchange, msg.RoutingKey, msg.Payload, msg.ID.String())
			if pubErr != nil {
				p.l.WithError(pubErr).
					WithField("messageID", msg.ID).
					Warn("publish attempt failed")
				if markErr := repo.MarkFailed(c, msg.ID, truncateError(pubErr)); markErr != nil {
					return markErr //nolint:wrapcheck
				}
				continue
			}
			if markErr := repo.MarkPublished(c, msg.ID); markErr != nil {
				return markErr //nolint:wrapcheck
			}
		}
		return nil
	})

	if txErr != nil {
		return fmt.Errorf("outbox cycle: %w", txErr)
	}
	return nil
}

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > maxErrorLength {
		return msg[:maxErrorLength]
	}
	return msg
}
