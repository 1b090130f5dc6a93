package healthsrv

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DBChecker reports database reachability.
type DBChecker struct {
	Pool *pgxpool.Pool
}

func (c DBChecker) Name() string { return "postgres" }

func (c DBChecker) Check(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}

// ProbeFlag reports readiness from a flag its owner sets: the RPKI
// detector sets it once its startup probe has confirmed the validator
// answers within the startup budget, and the collector sets and clears it
// as its RIS-Live connection comes up and drops.
type ProbeFlag struct {
	ok   atomic.Bool
	name string
}

func NewProbeFlag(name string) *ProbeFlag {
	return &ProbeFlag{name: name}
}

func (p *ProbeFlag) Name() string { return p.name }

func (p *ProbeFlag) Set(ok bool) { p.ok.Store(ok) }

func (p *ProbeFlag) Check(ctx context.Context) error {
	if !p.ok.Load() {
		return fmt.Errorf("%s: not probed successfully yet", p.name)
	}
	return nil
}
