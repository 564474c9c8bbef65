// Package gateway orchestrates the storefront-gateway server components.
//
// # Overview
//
// The gateway owns the process lifecycle. New opens the SQLite store, syncs
// the tenant catalogue into it, builds the conversation state backend (memory
// or Redis) and wires the bot registry, dialogue engine, order coordinator and
// broadcast scheduler together. Run listens, starts every tenant session and
// the scheduler, and blocks until its context is canceled.
//
// # Startup Order
//
//  1. HTTP listener (TCP, or a tsnet node; with Funnel the node's public HTTPS
//     name becomes the webhook base URL)
//  2. Bot sessions for every active tenant, push when a public base URL is
//     known and pull otherwise
//  3. Broadcast scheduler loop
//
// Shutdown runs the reverse: scheduler, sessions (waiting for in-flight
// handlers), HTTP server, tailnet node, state backend, store.
//
// # HTTP API
//
// Platform ingress:
//
//	POST /api/telegram/webhook/{tenantID}
//
// The X-Telegram-Bot-Api-Secret-Token header must match the tenant's session
// secret. Everything past that check is answered 200 so the platform does not
// retry.
//
// Health (no auth):
//
//	GET /health        - process is up
//	GET /health/ready  - at least one bot session is live
//
// Admin (Authorization: Bearer <auth.admin_token>, optional X-Storefront-Actor):
//
//	POST /api/admin/reload                       - re-read tenants.toml, restart sessions
//	GET  /api/admin/sessions                     - live sessions and their mode
//	GET  /api/admin/audit                        - admin actions, newest first
//	POST /api/orders/{id}/announce               - post the operator announcement
//	POST /api/orders/{id}/transition             - {"action": "...", "comment": "..."}
//	POST /api/broadcasts/send                    - {"tenant_id", "message", "image_url"}
//	POST /api/broadcasts/history/{id}/retract    - delete a run's delivered messages
//
// A transition answers 200 for applied and already-applied outcomes and 409
// for an invalid one. Successful admin actions are appended to the audit log
// under the X-Storefront-Actor name.
package gateway
