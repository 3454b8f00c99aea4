// Package engine is the public surface of the perks ledger.
//
// An Engine exposes every named operation twice: as a typed Go method and
// through Invoke, which takes the operation name and string arguments the
// way the chaincode and CLI receive them. Both paths run the same code:
//
//  1. Validate the argument count and reject empty arguments
//  2. Qualify identity arguments with their kind's prefix
//  3. Journal the invocation with the next logical seq
//  4. Run the ledger rule in one store transaction (View for queries)
//  5. Journal the completion, record metrics, log the outcome
//
// Invocations are serialized by the engine, so journal order equals commit
// order. Replay re-executes a journal against a fresh memory store and
// reports any invocation whose outcome differs.
package engine
