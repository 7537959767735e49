// Package permission defines the static permission catalog of the campaign
// platform, immutable permission sets, and the pure authorization gate.
//
// # Keys
//
// Permission keys have the form resource:action (for example campaigns:send).
// The [Catalog] is fixed at startup and only groups keys by category for
// display. Role assignment lives in the store, not here.
//
// # Gate
//
// [HasPermission], [HasAll], and [HasAny] are total functions. They never
// return errors, never perform I/O, and deny whenever the granted set is nil
// or the requested key list is empty.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import rolegate, jwt, or session.
//   - Mutate a [Set] after construction.
package permission
