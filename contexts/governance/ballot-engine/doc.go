// Package ballotengine implements delegated voting inside the governance
// context.
//
// The module owns ballot lifecycle orchestration (create/grant/delegate/
// vote/close), tally reads, and ballot event production through
// outbox-backed workers. It keeps business rules in application/domain
// layers and isolates infrastructure concerns behind ports and adapters.
package ballotengine
