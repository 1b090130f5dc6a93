package rpkidetect

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bgpensemble/anomaly-pipeline/internal/healthsrv"
)

// fixtureASN and fixturePrefix are a known-valid ROA (Cloudflare's
// 1.1.1.0/24, AS13335) used only to confirm the validator answers at all
// before the detector reports ready; the startup probe does not care
// whether the verdict itself is "valid".
const (
	fixtureASN    = 13335
	fixturePrefix = "1.1.1.0/24"
)

// ProbeStartup polls the validator with the known-valid fixture every 3
// seconds until it gets an HTTP 200 or the budget elapses, flipping flag
// to ready on success. Per spec.md §4.5 the detector must not report
// ready until this succeeds.
func ProbeStartup(ctx context.Context, v *Validator, flag *healthsrv.ProbeFlag, budget time.Duration, logger *zap.Logger) error {
	deadline := time.Now().Add(budget)
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		if err := v.Ping(ctx, fixtureASN, fixturePrefix); err == nil {
			flag.Set(true)
			return nil
		} else {
			logger.Warn("rpki validator startup probe failed, retrying", zap.Error(err))
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("rpkidetect: validator did not answer within %s", budget)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
