// Package ballotaudit maintains an append-only audit trail of ballot events
// inside the governance context.
//
// The service consumes the ballot topics, deduplicates replayed deliveries,
// and serves per-ballot activity feeds plus an aggregate summary over HTTP.
package ballotaudit
