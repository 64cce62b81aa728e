// Package core contains the event hub's canonical domain contracts, entities,
// and orchestration logic: the durable event record, the locking claim
// protocol, topic routing, sweep and dispatch. Storage and integration
// adapters depend on this package; core must not depend on them.
package core
