// Package domain defines the core business types for the barangay records
// platform's survey scheduling subsystem.
//
// Types in this package are pure value objects with no behavior beyond
// validation and state-machine guards. They are the shared language between
// handlers, services, repositories, and workers.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Validation and transition-guard methods are allowed (pure functions)
//   - Constants and enums belong here
package domain
