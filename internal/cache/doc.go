// Package cache implements the client-side view of shared calendar data.
//
// The Store holds parameterized list projections (the same entries
// materialized under different filters), per-entity detail snapshots, and a
// staleness set consumed by refetchers. The Reconciler merges server pushes
// into every projection that can see the affected entity. The optimistic
// coordinator writes into the same store; both paths converge on id-keyed
// merges so arrival order cannot duplicate an entity.
package cache
