// Package harness runs YAML scenarios against a fresh ledger engine and
// checks the outcome of every step, the resulting trace and the final
// store contents.
//
// # Scenario Format
//
//	name: streak_reward
//	description: "Two consecutive valid purchases earn one reward"
//	backend: memory            # optional: memory, sqlite, leveldb or bbolt
//	setup:                     # must all succeed
//	  - op: RegisterUser
//	    args: [mit, university]
//	flow:
//	  - op: CreatePurchase
//	    args: [alice, cafe, "2024-01-01"]
//	    expect:
//	      result: { ID: p_0, isValid: false }
//	  - op: TransferReward
//	    args: [mit, bob]
//	    expect:
//	      error: NOT_FOUND
//	assertions:
//	  - type: trace_count
//	    op: CreatePurchase
//	    count: 1
//	  - type: asset
//	    id: p_0
//	    expect: { isValid: true }
//	  - type: rewards
//	    owner: stud_alice
//	    count: 1
//
// Expected results use subset semantics: object fields not named in the
// expectation are ignored, arrays must have the same length and match
// element-wise.
//
// The trace is built from the invocations and completions the engine
// journals, so golden files capture exactly what a production journal
// would hold apart from transaction IDs.
package harness
