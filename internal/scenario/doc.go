// Package scenario runs scripted cache sessions from YAML files.
//
// A scenario declares named queries and a list of steps (store, fetch,
// declared, known, advance) that run against a fresh in-memory cache with
// a manually driven clock. Each step appends one event to a trace; steps
// may carry an expect clause that is checked as the scenario runs.
//
// Traces are deterministic: the same scenario always produces the same
// trace, byte for byte, which makes them suitable for golden files.
//
//	name: freshness
//	description: A stored product list expires.
//	clock: 1000
//	categories:
//	  - name: Entity
//	    identity: {Id: LONG}
//	queries:
//	  products:
//	    category: Entity
//	    resource: Product
//	    fields: {Id: LONG, Name: STRING}
//	steps:
//	  - store: products
//	    rows: [{Id: 1, Name: Pen}]
//	  - advance: 1000
//	  - fetch: products
//	    max_age: 5000
//	    expect: {outcome: hit}
package scenario
