package ir

import (
	"fmt"
	"strings"
)

// Kind is a participant kind. The identity prefix is the only thing that
// decides it; there is no other tag stored with an identity.
type Kind string

const (
	KindStudent    Kind = "student"
	KindOutlet     Kind = "outlet"
	KindUniversity Kind = "university"
)

// Kinds lists every participant kind in registry order.
var Kinds = []Kind{KindStudent, KindOutlet, KindUniversity}

// Prefix returns the identity prefix of the kind, or "" if unknown.
func (k Kind) Prefix() string {
	switch k {
	case KindStudent:
		return "stud_"
	case KindOutlet:
		return "out_"
	case KindUniversity:
		return "uni_"
	}
	return ""
}

// Valid reports whether k is one of the recognized kinds.
func (k Kind) Valid() bool {
	return k.Prefix() != ""
}

// ParseKind maps a caller-supplied type tag to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown participant kind %q (want student, outlet or university)", s)
	}
	return k, nil
}

// KindOf derives the kind of an already-qualified identity from its prefix.
func KindOf(identity string) (Kind, bool) {
	for _, k := range Kinds {
		if strings.HasPrefix(identity, k.Prefix()) {
			return k, true
		}
	}
	return "", false
}

// Qualify prefixes a raw identity with the kind's prefix.
// Identities that already carry the prefix are returned unchanged.
func Qualify(raw string, k Kind) string {
	p := k.Prefix()
	if p == "" || strings.HasPrefix(raw, p) {
		return raw
	}
	return p + raw
}
