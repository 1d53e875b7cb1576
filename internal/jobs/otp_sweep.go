package jobs

import (
	"context"
	"log"
	"time"
)

// Sweeper drops expired reset codes and reports how many it removed.
type Sweeper interface {
	Sweep(now time.Time) int
}

// StartOTPSweepJob purges expired codes from an in-process OTP store on every
// tick until ctx is done. Redis-backed stores expire keys themselves and do not
// need it.
func StartOTPSweepJob(ctx context.Context, interval time.Duration, sweeper Sweeper) {
	if sweeper == nil {
		log.Printf("otp sweep job disabled: no sweeper configured")
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := sweeper.Sweep(time.Now().UTC()); removed > 0 {
					log.Printf("otp sweep job removed %d expired codes", removed)
				}
			}
		}
	}()
}
