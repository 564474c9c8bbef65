// Package geofence decides whether a storefront can serve a customer.
//
// # Overview
//
// Two pure checks gate registration and delivery checks in the dialogue:
//
//   - IsInZone: ray-casting point-in-polygon against the tenant's delivery zone
//   - Hours.OpenAt: half-open [open, close) window evaluated in the venue's timezone
//
// # Failing open
//
// A zone that is missing or has fewer than three vertices means "no restriction",
// so IsInZone reports true. Empty open or close times likewise mean the venue is
// always open. Equal open and close times also mean always open, and a close time
// at or before the open time wraps past midnight.
//
// Nothing here touches the network, the database, or the host timezone.
package geofence
