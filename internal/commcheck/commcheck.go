// Package commcheck — commcheck.go
//
// CommCheck: a minimal peer sprinkler.Role that only ticks a heartbeat.
// It exists so the Sprinkler interface boundary is exercised by more
// than one implementor, alongside the OOM-watchdog role.
package commcheck

import (
	"time"

	"go.uber.org/zap"

	"github.com/aleozlx/sprinkler/internal/sprinkler"
)

// Role implements sprinkler.Role with no classifier and no kill
// capability: on an agent it only logs a liveness heartbeat; on a master
// it drains nothing because it has no inbox traffic of its own.
type Role struct {
	log *zap.Logger
}

// New creates a commcheck Role.
func New(log *zap.Logger) *Role {
	return &Role{log: log}
}

// RunAgent ticks every heartbeat period until deactivated, logging
// liveness.
func (r *Role) RunAgent(s *sprinkler.Sprinkler) {
	r.heartbeatLoop(s)
}

// RunMaster behaves identically to RunAgent: CommCheck has no
// role-specific master behavior, only a liveness tick.
func (r *Role) RunMaster(s *sprinkler.Sprinkler) {
	r.heartbeatLoop(s)
}

func (r *Role) heartbeatLoop(s *sprinkler.Sprinkler) {
	period := s.Heartbeat()
	if period <= 0 {
		period = time.Minute
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for range ticker.C {
		if s.Deactivated() {
			return
		}
		r.log.Debug("commcheck heartbeat", zap.Uint64("sprinkler_id", s.ID()), zap.String("hostname", s.Hostname()))
	}
}
