// Package recipe turns YAML definitions into runnable units.
//
// A recipe names units from a Registry and arranges them with the
// composers of the runnable package:
//
//	name: shout
//	root:
//	  sequence:
//	    - unit: trim
//	    - unit: upper
//	      retry: {max_attempts: 3, backoff: 50ms}
//	    - branch:
//	        cases:
//	          - when: longer_than:20
//	            then: {unit: suffix, params: {text: "..."}}
//	        default: {passthrough: true}
//
// Node kinds are unit, passthrough, recipe (include by name), sequence,
// parallel, assign, branch and each. Any node may carry params, bulkhead,
// rate_limit, circuit_breaker, retry, timeout and fallbacks, applied in that
// order from the inside out.
//
// A Catalog loads every recipe file under a set of directories, compiles
// each one once and serves the compiled units by name.
package recipe
