package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// RefreshScheduler planifie les rafraîchissements :
//   - au démarrage, chaque pool est mis en file, espacé de Stagger pour ne pas
//     saturer l'API upstream ;
//   - ensuite chaque pool est remis en file toutes les Interval (cron).
//
// Serve bloque jusqu'à l'annulation du contexte et attend l'arrêt du cron.
type RefreshScheduler struct {
	logger zerolog.Logger
	queue  *RefreshQueue
	keys   []domain.PoolKey

	Interval time.Duration
	Stagger  time.Duration
	// Schedule remplace cron.Every(Interval) si non nil.
	Schedule cron.Schedule
}

func NewRefreshScheduler(logger zerolog.Logger, queue *RefreshQueue, keys []domain.PoolKey) *RefreshScheduler {
	return &RefreshScheduler{
		logger:   logger,
		queue:    queue,
		keys:     append([]domain.PoolKey(nil), keys...),
		Interval: 6 * time.Hour,
		Stagger:  2 * time.Second,
	}
}

func (sch *RefreshScheduler) String() string { return "refresh-scheduler" }

func (sch *RefreshScheduler) Serve(ctx context.Context) error {
	interval := sch.Interval
	if interval < time.Second {
		interval = 6 * time.Hour
	}
	schedule := sch.Schedule
	if schedule == nil {
		schedule = cron.Every(interval)
	}

	c := cron.New(cron.WithLogger(cronLogger{sch.logger}), cron.WithChain(cron.Recover(cronLogger{sch.logger})))
	c.Start()
	defer func() {
		<-c.Stop().Done()
		sch.logger.Info().Msg("refresh scheduler stopped")
	}()

	var timer *time.Timer
	for i, key := range sch.keys {
		if i > 0 && sch.Stagger > 0 {
			if timer == nil {
				timer = time.NewTimer(sch.Stagger)
			} else {
				timer.Reset(sch.Stagger)
			}
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}

		sch.enqueue(key, "startup")
		k := key
		c.Schedule(schedule, cron.FuncJob(func() { sch.enqueue(k, "interval") }))
	}
	sch.logger.Info().Int("pools", len(sch.keys)).Dur("interval", interval).Msg("refresh schedule armed")

	<-ctx.Done()
	return nil
}

// RefreshAll met immédiatement tous les pools en file. Renvoie le nombre de pools ajoutés.
func (sch *RefreshScheduler) RefreshAll() int {
	n := 0
	for _, key := range sch.keys {
		if sch.enqueue(key, "manual") {
			n++
		}
	}
	return n
}

func (sch *RefreshScheduler) enqueue(key domain.PoolKey, reason string) bool {
	err := sch.queue.Enqueue(key)
	switch {
	case err == nil:
		sch.logger.Debug().Str("pool", key.String()).Str("reason", reason).Msg("refresh queued")
		return true
	case errors.Is(err, ErrRefreshQueued):
		sch.logger.Debug().Str("pool", key.String()).Str("reason", reason).Msg("refresh already queued")
	default:
		sch.logger.Warn().Err(err).Str("pool", key.String()).Str("reason", reason).Msg("failed to queue refresh")
	}
	return false
}

// cronLogger branche les logs de robfig/cron sur zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(kvFields(keysAndValues)).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(kvFields(keysAndValues)).Msg("cron: " + msg)
}

func kvFields(kv []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
