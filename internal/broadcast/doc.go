// Package broadcast is the Broadcast Scheduler.
//
// # Polling
//
// Run calls RunOnce immediately and then every PollInterval. A pass picks the
// jobs that are active, due (scheduled_at <= now) and not yet run for that
// due instant (last_run_at < scheduled_at). Overlapping passes in one process
// are prevented by an atomic flag; with UseLease set, a store lease keeps
// other processes out as well.
//
// # Rescheduling
//
// After a successful fan-out the job either deactivates (one-off) or moves to
// NextRun, computed in the tenant's timezone. Recipient failures do not fail
// the run. A run that fails as a whole (no bot session, audience query error)
// leaves the job due, so the next pass retries it.
//
// # Retraction
//
// Every delivered message id is stored against the run's history record.
// Retract deletes them, skipping failures, and marks the run retracted.
//
// Sends and deletes share one rate.Limiter.
package broadcast
