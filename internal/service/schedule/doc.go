// Package schedule implements survey schedule management: validation and
// CRUD over recurrence definitions, the pure recurrence evaluator that
// computes fire times, and target resolution against the household
// directory. The scheduler driver in internal/worker consumes this package's
// Repository for due-scan, claim, and run bookkeeping.
package schedule
