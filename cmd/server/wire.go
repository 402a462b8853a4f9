package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-push/internal/config"
	httpapi "github.com/tbourn/go-chat-push/internal/http"
	"github.com/tbourn/go-chat-push/internal/push"
	"github.com/tbourn/go-chat-push/internal/push/providers"
	"github.com/tbourn/go-chat-push/internal/repo"
	"github.com/tbourn/go-chat-push/internal/services"
)

// buildDeps wires both delivery channels from cfg. A channel whose provider
// cannot be built stays nil so every send reports it as not configured.
func buildDeps(ctx context.Context, cfg config.Config, db *gorm.DB) httpapi.Deps {
	var deps httpapi.Deps

	var web services.Channel
	if ch := webChannel(cfg, db); ch != nil {
		web = ch
	}

	var mobile services.Channel
	if ch := mobileChannel(ctx, cfg, db); ch != nil {
		mobile = ch
		// assigned only here: a typed nil breaker would defeat the 503 check
		deps.Breaker = ch.Breaker
	}

	b := push.NewBuilder(cfg.Push.DefaultIcon)
	if cfg.Push.DirectTruncate > 0 {
		b.DirectLimit = cfg.Push.DirectTruncate
	}
	if cfg.Push.GroupTruncate > 0 {
		b.GroupLimit = cfg.Push.GroupTruncate
	}

	svc := services.NewNotificationService(web, mobile, repo.UserDirectory{DB: db}, b, db)
	if cfg.IdempotencyTTL > 0 {
		svc.IdempotencyTTL = cfg.IdempotencyTTL
	}
	deps.Notifier = svc
	return deps
}

func webChannel(cfg config.Config, db *gorm.DB) *push.WebChannel {
	wc := cfg.Push.Web
	if !wc.Enabled() {
		log.Warn().Msg("web push disabled: VAPID keys not set")
		return nil
	}
	provider, err := providers.NewWebPush(providers.VAPIDConfig{
		PublicKey:  wc.PublicKey,
		PrivateKey: wc.PrivateKey,
		Subject:    wc.Subject,
		TTL:        wc.TTL,
		Urgency:    wc.Urgency,
	}, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		log.Error().Err(err).Msg("web push disabled")
		return nil
	}
	ch := push.NewWebChannel(repo.SubscriptionStore{DB: db}, provider)
	ch.Retry = push.WebRetryPolicy(wc.MaxAttempts)
	if cfg.Push.LookupTimeout > 0 {
		ch.LookupTimeout = cfg.Push.LookupTimeout
	}
	return ch
}

func mobileChannel(ctx context.Context, cfg config.Config, db *gorm.DB) *push.MobileChannel {
	fc := cfg.Push.FCM
	creds, err := providers.LoadCredentials(fc.CredentialsFile, fc.CredentialsJSON)
	if err != nil {
		if errors.Is(err, push.ErrFCMNotConfigured) {
			log.Warn().Msg("mobile push disabled: FCM credentials not set")
		} else {
			log.Error().Err(err).Msg("mobile push disabled")
		}
		return nil
	}
	provider, err := providers.NewFCM(ctx, creds)
	if err != nil {
		log.Error().Err(err).Msg("mobile push disabled")
		return nil
	}

	ch := push.NewMobileChannel(repo.TokenStore{DB: db}, provider,
		push.NewCircuitBreaker(cfg.Push.Breaker.Threshold, cfg.Push.Breaker.Timeout))
	ch.AndroidChannelID = fc.AndroidChannel
	ch.IOSCategory = fc.IOSCategory
	if fc.Concurrency > 0 {
		ch.Concurrency = fc.Concurrency
	}
	if fc.MaxAttempts > 0 {
		ch.Retry.MaxAttempts = fc.MaxAttempts
	}
	if fc.RetryBaseDelay > 0 {
		ch.Retry.Backoff = push.ExponentialBackoff(fc.RetryBaseDelay)
	}
	if fc.SendTimeout > 0 {
		ch.SendTimeout = fc.SendTimeout
	}
	if cfg.Push.LookupTimeout > 0 {
		ch.LookupTimeout = cfg.Push.LookupTimeout
	}
	log.Info().Str("project", provider.ProjectID).Msg("mobile push enabled")
	return ch
}

// purgeReplays drops expired replay records every interval until
// ctx is done.
func purgeReplays(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredReplays(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("replay purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("replay purge")
			}
		}
	}
}
