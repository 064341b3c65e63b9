package coordinator

import (
	"context"
	"time"
)

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// ackSweepInterval ticks twice per retry interval, so a resend goes out at
// most half an interval after it falls due.
func ackSweepInterval(retry time.Duration) time.Duration {
	return orDefault(retry, 2*time.Second) / 2
}

// runJanitor drives every periodic job: start retries, auto-play and expiry,
// and the presence sweep. It returns when ctx is done.
func (c *Coordinator) runJanitor(ctx context.Context) {
	ackTicker := time.NewTicker(ackSweepInterval(c.opts.AckRetry))
	gameTicker := time.NewTicker(orDefault(c.opts.AutoPlaySweep, 10*time.Second))
	presenceTicker := time.NewTicker(orDefault(c.opts.PresenceSweep, 30*time.Second))
	defer ackTicker.Stop()
	defer gameTicker.Stop()
	defer presenceTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ackTicker.C:
			c.outbox.RetryDue(c.now())
		case <-gameTicker.C:
			now := c.now()
			_ = c.sweepExpiry(ctx, now)
			_ = c.sweepAutoPlay(ctx, now)
		case <-presenceTicker.C:
			_ = c.sweepPresence(c.now())
		}
	}
}
