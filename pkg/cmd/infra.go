package cmd

import (
	"fmt"
	"log/slog"

	"github.com/dukex/formflow/pkg/delayqueue"
	"github.com/dukex/formflow/pkg/lock"
	"github.com/dukex/formflow/pkg/mail"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient returns nil when redisURL is empty.
func NewRedisClient(redisURL string) redis.UniversalClient {
	if redisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("invalid REDIS_URL: %w", err))
	}

	return redis.NewClient(opts)
}

// NewLocker uses Redis when a client is given. The in-process locker only
// serialises steps within one binary.
func NewLocker(client redis.UniversalClient) lock.Locker {
	if client == nil {
		return lock.NewLocalLocker()
	}

	return lock.NewRedisLocker(client)
}

func NewDelayQueue(client redis.UniversalClient, logger *slog.Logger) delayqueue.Queue {
	if client == nil {
		return delayqueue.NewMemoryQueue()
	}

	return delayqueue.NewRedisQueue(client, delayqueue.DefaultKey, logger)
}

// NewMailer delivers over SMTP when smtpURL is set and only logs messages otherwise.
func NewMailer(smtpURL, from string, logger *slog.Logger) mail.Mailer {
	if smtpURL == "" {
		return mail.NewLogMailer(logger)
	}

	config, err := mail.ParseSMTPURL(smtpURL)
	if err != nil {
		panic(fmt.Errorf("invalid SMTP_URL: %w", err))
	}

	return mail.NewSMTPMailer(config, from, logger)
}
