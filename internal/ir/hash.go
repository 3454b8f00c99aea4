package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for a future algorithm change.
const (
	DomainInvocation = "perks/invocation/v1"
	DomainCompletion = "perks/completion/v1"
	DomainState      = "perks/state/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := NewDomainHash(domain)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NewDomainHash returns a SHA-256 hash already primed with the domain
// prefix and separator. Callers stream their data into it.
func NewDomainHash(domain string) hash.Hash {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	return h
}

// InvocationID computes the content-addressed ID of a journaled
// invocation. It depends only on the operation, its arguments and its
// logical sequence number, never on wall-clock time.
func InvocationID(op string, args []string, seq int64) (string, error) {
	obj := IRObject{
		"op":   IRString(op),
		"args": StringArray(args),
		"seq":  IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("InvocationID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainInvocation, canonical), nil
}

// CompletionID computes the ID of the outcome recorded for an invocation.
// errorKind is empty on success.
func CompletionID(invocationID, errorKind string, result []byte, seq int64) string {
	h := NewDomainHash(DomainCompletion)
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00", invocationID, errorKind, seq)
	h.Write(result)
	return hex.EncodeToString(h.Sum(nil))
}

// MustInvocationID is like InvocationID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustInvocationID(op string, args []string, seq int64) string {
	id, err := InvocationID(op, args, seq)
	if err != nil {
		panic(err)
	}
	return id
}
