// Package scheduler fires periodic tasks on a drift-free grid.
//
// Each task ticks at fixed multiples of its interval from the first run:
// the next fire time advances by exactly one interval from the previous
// one, never from the completion time, so a slow run cannot drag the
// schedule. A tick that fires while the previous run is still active is
// skipped, not queued.
//
// Workers coordinate through Redis. One election (SET NX) picks the
// worker that owns the shared tasks; every worker runs its own
// pending-revalidation. Checkpoints are written to Redis after each run
// so a restarted worker resumes its grid and counters.
//
//	          ┌────────┐  tick, guard free   ┌─────────┐
//	          │  Idle  │ ──────────────────▶ │ Running │
//	          └────────┘                     └─────────┘
//	               ▲   ▲                          │
//	     tick,     │   └──────────────────────────┘
//	     guard held│        done (counters++, checkpoint)
//	     = skip ───┘
package scheduler
