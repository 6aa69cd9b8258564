// Package storage defines the persistence interfaces for the fulfillment
// engine.
//
// It abstracts the aggregate stores (orders, services, SLA clocks), the
// append-only event journal, projection checkpoints, and the tenant holiday
// calendar. The sqlite subpackage is the production implementation; the
// memory subpackage backs tests.
//
// # Error Types
//
// The package defines common error types used across storage implementations:
//   - ErrNotFound: Indicates a requested record is missing.
//   - ErrVersionConflict: Indicates an optimistic concurrency conflict;
//     the caller reloads the aggregate and retries the command.
package storage
