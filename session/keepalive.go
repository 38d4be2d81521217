package session

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
)

// startKeepAliveLocked starts the heartbeat loop for entryID. Shutdown cancels
// it and waits for keepAliveDone before touching the directory entry.
func (c *Coordinator) startKeepAliveLocked(entryID string) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ticker := c.clock.Ticker(c.settings.KeepAliveInterval)

	c.stopKeepAlive = cancel
	c.keepAliveDone = done
	go c.keepAlive(ctx, entryID, ticker, done)
}

func (c *Coordinator) keepAlive(ctx context.Context, entryID string, ticker *clock.Ticker, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	logger := c.logger.With().Str("entry_id", entryID).Logger()
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			err := c.heartbeat(ctx, entryID)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				failures++
				c.metrics.KeepAlive(false, failures)
				c.errorSink(fmt.Errorf("[keepAlive] %w: %w", ErrDirectory, err))
				if failures == c.settings.KeepAliveFailureThreshold {
					logger.Error().Int("consecutive_failures", failures).Msg("directory entry likely expired")
				}
				continue
			}
			if failures > 0 {
				logger.Info().Int("after_failures", failures).Msg("keep-alive recovered")
			}
			failures = 0
			c.metrics.KeepAlive(true, 0)
			logger.Trace().Msg("keep-alive sent")
		}
	}
}

// heartbeat sends one keep-alive, retrying with exponential backoff up to
// KeepAliveRetries times. Retries never outlast the keep-alive interval.
func (c *Coordinator) heartbeat(ctx context.Context, entryID string) error {
	interval := c.settings.KeepAliveInterval

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = interval / 10
	exp.MaxInterval = interval / 2
	exp.MaxElapsedTime = interval

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.settings.KeepAliveRetries)), ctx)

	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		callCtx, cancel := c.callContext(ctx)
		defer cancel()
		return c.directory.Heartbeat(callCtx, entryID)
	}, policy)
}
