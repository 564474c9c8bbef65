// Package dialogue is the Dialogue Engine: the per-user state machine behind
// every tenant bot's private chat.
//
// # Routing
//
// Each event is routed in order:
//
//   - order callbacks ("order:...") go to the order coordinator untouched
//   - commands reset the dialogue and run; unknown commands show help
//   - "lang:" callbacks go to a pending language choice, if any
//   - everything else is looked up in a table keyed by (state, event kind)
//
// A (state, kind) pair missing from the table is a mismatch and a no-op; a
// mismatched callback is answered with an "expired" notice so the client
// stops its spinner. Group chats only deliver operators' cancellation reasons.
//
// # Namespaces
//
// Language selection lives in its own convstate namespace so it can
// interrupt any flow. The dialogue state stays where it was and continues in
// the new language; a language choice opened by /start resumes registration.
//
// # Registration
//
// contact (must be the sender's own) → name (1..64 runes) → location. The
// location is checked against the tenant's delivery zone and opening hours
// before the account is created with a generated credential.
package dialogue
