package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const cleanupTimeout = 30 * time.Second

// ExpiredCodeDeleter is the part of the pairing code repository the job needs.
type ExpiredCodeDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupJob garbage-collects expired pairing codes. Validity is always checked
// at read time, so nothing depends on this job having run.
type CleanupJob struct {
	pairingCodeRepo ExpiredCodeDeleter
	interval        time.Duration
	done            chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

func NewCleanupJob(pairingCodeRepo ExpiredCodeDeleter, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		pairingCodeRepo: pairingCodeRepo,
		interval:        interval,
		done:            make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	j.wg.Add(1)
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

// Stop waits for an in-flight cleanup to finish. It is safe to call twice.
func (j *CleanupJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		log.Info().Msg("cleanup job stopped")
	})
}

func (j *CleanupJob) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	j.runCleanup(ctx, "pairing codes", j.pairingCodeRepo.DeleteExpired)
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
