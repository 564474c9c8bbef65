// Package orders is the Order Lifecycle Coordinator.
//
// # Lifecycle
//
//	new ──confirm──▶ preparing ──dispatch──▶ delivering ──complete──▶ delivered
//	 │
//	 └──cancel (reason required)──▶ cancelled
//
// Each Action has exactly one source and one target status. Advance issues a
// conditional write ("set status=target where status=source") and that write is
// the only synchronization: two operators racing on one order both try, one
// wins, and the other gets OutcomeAlreadyApplied. A button press that no
// longer makes sense (dispatch on a cancelled order) gets OutcomeInvalid.
// Neither is an error.
//
// # Side effects
//
// An applied transition appends an audit event in the same transaction as the
// status write. Afterwards, best-effort, the customer receives a status notice
// and the operator announcement is edited in place to show the new status and
// only the next legal buttons. Failures of either are logged and never undo
// the transition.
//
// # Two-phase cancel
//
// Pressing cancel does not cancel. It stores an awaiting_rejection_reason
// conversation state keyed by (tenant, operator chat, operator) carrying the
// order id, operator name and message reference, then asks for a reason. The
// dialogue engine routes the operator's next text to CompleteCancel, which
// applies the cancellation with that reason atomically. Without a reason the
// order is never cancelled.
//
// Bot callbacks (HandleCallback) and the admin HTTP API share Advance.
package orders
