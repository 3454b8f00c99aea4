// Package ir holds the record model of the perks ledger and its
// deterministic encoding.
//
// Every value written to the store goes through MarshalCanonical, so two
// engines running the same invocations over the same state produce the
// same bytes. ir imports nothing internal; every other package builds on it.
//
// Key constraints:
//   - No float types anywhere; numbers are int64
//   - Object keys are emitted in RFC 8785 order (UTF-16 code units)
//   - Strings are NFC normalized and never HTML-escaped
//   - The participant kind of an identity is decided by its prefix alone
package ir
