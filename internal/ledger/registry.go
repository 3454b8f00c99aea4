package ledger

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/perks/internal/ir"
	"github.com/roach88/perks/internal/store"
)

func registryKey(kind ir.Kind) string {
	return registryKeyPrefix + string(kind)
}

// Members returns the registry of kind in registration order.
func (l *Ledger) Members(tx store.Tx, kind ir.Kind) ([]string, error) {
	if !kind.Valid() {
		return nil, Errorf(InvalidArgument, "", "unknown participant kind %q", kind)
	}
	raw, err := tx.Get(registryKey(kind))
	if err != nil {
		return nil, fmt.Errorf("read %s registry: %w", kind, err)
	}
	members := []string{}
	if raw == nil {
		return members, nil
	}
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, fmt.Errorf("corrupt %s registry: %w", kind, err)
	}
	return members, nil
}

// IsRegistered reports whether identity is in the registry of kind.
func (l *Ledger) IsRegistered(tx store.Tx, kind ir.Kind, identity string) (bool, error) {
	members, err := l.Members(tx, kind)
	if err != nil {
		return false, err
	}
	return slices.Contains(members, identity), nil
}

// Register appends identity to the registry of kind and returns the
// updated registry. The identity must already carry the kind's prefix.
func (l *Ledger) Register(tx store.Tx, kind ir.Kind, identity string) ([]string, error) {
	if !kind.Valid() {
		return nil, Errorf(InvalidArgument, identity, "unknown participant kind %q", kind)
	}
	if !strings.HasPrefix(identity, kind.Prefix()) || identity == kind.Prefix() {
		return nil, Errorf(InvalidArgument, identity, "%s identity must be %s<id>", kind, kind.Prefix())
	}

	members, err := l.Members(tx, kind)
	if err != nil {
		return nil, err
	}
	if slices.Contains(members, identity) {
		return nil, Errorf(AlreadyExists, identity, "%s already registered", kind)
	}

	members = append(members, identity)
	data, err := ir.MarshalCanonical(ir.StringArray(members))
	if err != nil {
		return nil, err
	}
	if err := tx.Put(registryKey(kind), data); err != nil {
		return nil, fmt.Errorf("write %s registry: %w", kind, err)
	}

	l.logger.Debug("participant registered", "kind", kind, "identity", identity, "members", len(members))
	return members, nil
}

// requireRegistered fails with NotFound unless identity is registered as kind.
func (l *Ledger) requireRegistered(tx store.Tx, kind ir.Kind, identity string) error {
	ok, err := l.IsRegistered(tx, kind, identity)
	if err != nil {
		return err
	}
	if !ok {
		return Errorf(NotFound, identity, "%s is not registered", kind)
	}
	return nil
}
