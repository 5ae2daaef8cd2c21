// Package survey implements survey instance issuance and the token-addressed
// lifecycle: open, submit, expire. Submission atomically records responses
// and the resident-reported change-log entries; the repository contract is
// written so a partially-recorded submission cannot occur.
//
// All lifecycle methods take "now" explicitly instead of reading a clock so
// the scheduler driver and tests stay deterministic.
package survey
