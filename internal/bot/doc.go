// Package bot owns the live transport connection of every tenant.
//
// # Overview
//
// Registry keeps at most one Session per tenant. Start prefers push delivery:
// when a public base URL is configured it registers a per-tenant webhook
// (/api/telegram/webhook/{tenantID}) protected by a secret derived from the
// bot credential. If registration fails the session falls back to long
// polling. Without a public URL every session polls.
//
// # Dispatch
//
// Webhook requests and poll loops both end in Dispatch. Events for a missing
// or detached session are dropped, redelivered updates are dropped by the
// dedupe cache, and each surviving event runs on its own goroutine with panic
// recovery so one tenant can never take the process down.
//
// # Shutdown
//
// StopAll first marks every session detached, so nothing more is dispatched,
// and only then releases the connections. Wait blocks until in-flight
// handlers return. Session state is process-local; a restart calls StartAll.
package bot
