package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/campuspass/access-server-go/internal/config"
	"github.com/campuspass/access-server-go/internal/repository"
)

// Cascader runs the credential-expiry forced-close path for one identity.
// Satisfied by *service.CredentialService.
type Cascader interface {
	ExpireAndCascade(ctx context.Context, identityID string) error
}

// ExpiryJob periodically finds identities whose credential ran out while
// their session is still open and cascades the forced close, then
// reclaims long-expired credential rows. The sweep never decides
// validity; expires_at does.
type ExpiryJob struct {
	credentialRepo repository.CredentialRepository
	cascader       Cascader
	interval       time.Duration
	done           chan struct{}
}

func NewExpiryJob(
	credentialRepo repository.CredentialRepository,
	cascader Cascader,
	interval time.Duration,
) *ExpiryJob {
	return &ExpiryJob{
		credentialRepo: credentialRepo,
		cascader:       cascader,
		interval:       interval,
		done:           make(chan struct{}),
	}
}

func (j *ExpiryJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("credential expiry job started")
}

func (j *ExpiryJob) Stop() {
	close(j.done)
	log.Info().Msg("credential expiry job stopped")
}

func (j *ExpiryJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *ExpiryJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.cascadeExpired(ctx)
	j.reclaim(ctx)
}

func (j *ExpiryJob) cascadeExpired(ctx context.Context) {
	ids, err := j.credentialRepo.ListExpiredHolders(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("failed to list expired credential holders")
		return
	}

	for _, identityID := range ids {
		if err := j.cascader.ExpireAndCascade(ctx, identityID); err != nil {
			log.Error().Err(err).Str("identityId", identityID).Msg("failed to cascade credential expiry")
			continue
		}
		log.Info().Str("identityId", identityID).Msg("expired credential cascaded to forced close")
	}
}

func (j *ExpiryJob) reclaim(ctx context.Context) {
	count, err := j.credentialRepo.DeleteExpired(ctx, config.CredentialRetention)
	if err != nil {
		log.Error().Err(err).Msg("failed to reclaim expired credentials")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("reclaimed expired credentials")
	}
}
