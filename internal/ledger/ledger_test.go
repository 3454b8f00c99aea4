package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/perks/internal/ir"
	"github.com/roach88/perks/internal/store"
)

type fixture struct {
	t  *testing.T
	db store.Backend
	l  *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, db: store.NewMemory(), l: New(nil)}
}

// update runs fn in one transaction and returns its error.
func (f *fixture) update(fn func(tx store.Tx) error) error {
	return f.db.Update(context.Background(), fn)
}

func (f *fixture) mustUpdate(fn func(tx store.Tx) error) {
	f.t.Helper()
	require.NoError(f.t, f.update(fn))
}

func (f *fixture) register(kind ir.Kind, ids ...string) {
	f.t.Helper()
	f.mustUpdate(func(tx store.Tx) error {
		for _, id := range ids {
			if _, err := f.l.Register(tx, kind, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (f *fixture) purchase(student, outlet, date string) ir.Asset {
	f.t.Helper()
	var a ir.Asset
	f.mustUpdate(func(tx store.Tx) error {
		var err error
		a, err = f.l.CreatePurchase(tx, student, outlet, date)
		return err
	})
	return a
}

func (f *fixture) validate(outlet, id string) {
	f.t.Helper()
	f.mustUpdate(func(tx store.Tx) error { return f.l.ValidatePurchase(tx, outlet, id) })
}

func (f *fixture) issue(uni string) []ir.Asset {
	f.t.Helper()
	var out []ir.Asset
	f.mustUpdate(func(tx store.Tx) error {
		var err error
		out, err = f.l.IssueRewards(tx, uni)
		return err
	})
	return out
}

func (f *fixture) rewardsOf(owner string) []ir.Asset {
	f.t.Helper()
	var out []ir.Asset
	f.mustUpdate(func(tx store.Tx) error {
		var err error
		out, err = f.l.RewardsOf(tx, owner)
		return err
	})
	return out
}

func ids(assets []ir.Asset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.ID
	}
	return out
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	f.mustUpdate(func(tx store.Tx) error {
		members, err := f.l.Register(tx, ir.KindStudent, "stud_a")
		require.NoError(t, err)
		assert.Equal(t, []string{"stud_a"}, members)

		members, err = f.l.Register(tx, ir.KindStudent, "stud_b")
		require.NoError(t, err)
		assert.Equal(t, []string{"stud_a", "stud_b"}, members)

		ok, err := f.l.IsRegistered(tx, ir.KindStudent, "stud_b")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.l.IsRegistered(tx, ir.KindOutlet, "stud_b")
		require.NoError(t, err)
		assert.False(t, ok, "membership is per kind")
		return nil
	})
}

func TestRegisterRejects(t *testing.T) {
	f := newFixture(t)
	f.register(ir.KindUniversity, "uni_a")

	tests := []struct {
		name     string
		kind     ir.Kind
		identity string
		want     ErrorKind
	}{
		{"unknown kind", ir.Kind("admin"), "admin_x", InvalidArgument},
		{"prefix mismatch", ir.KindStudent, "out_x", InvalidArgument},
		{"bare prefix", ir.KindStudent, "stud_", InvalidArgument},
		{"duplicate", ir.KindUniversity, "uni_a", AlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := store.Digest(context.Background(), f.db)
			require.NoError(t, err)

			err = f.update(func(tx store.Tx) error {
				_, err := f.l.Register(tx, tt.kind, tt.identity)
				return err
			})
			assert.Equal(t, tt.want, KindOf(err))

			after, err := store.Digest(context.Background(), f.db)
			require.NoError(t, err)
			assert.Equal(t, before, after, "registries must be unchanged")
		})
	}
}

func TestCreatePurchaseThenRead(t *testing.T) {
	f := newFixture(t)
	f.register(ir.KindStudent, "stud_a")
	f.register(ir.KindOutlet, "out_b")

	created := f.purchase("stud_a", "out_b", "2024-01-01")
	assert.Equal(t, "p_0", created.ID)
	assert.False(t, created.IsValid)
	assert.False(t, created.IsReward)
	assert.Nil(t, created.Owner)

	f.mustUpdate(func(tx store.Tx) error {
		got, err := f.l.ReadAsset(tx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, got)
		return nil
	})

	assert.Equal(t, "p_1", f.purchase("stud_a", "out_b", "2024-01-02").ID)
}

func TestCreatePurchaseRejects(t *testing.T) {
	f := newFixture(t)
	f.register(ir.KindStudent, "stud_a")
	f.register(ir.KindOutlet, "out_b")

	tests := []struct {
		name                  string
		student, outlet, date string
		want                  ErrorKind
	}{
		{"unknown outlet", "stud_a", "out_x", "2024-01-01", NotFound},
		{"unknown student", "stud_x", "out_b", "2024-01-01", NotFound},
		{"student used as outlet", "stud_a", "stud_a", "2024-01-01", NotFound},
		{"bad date", "stud_a", "out_b", "01/01/2024", InvalidArgument},
		{"impossible date", "stud_a", "out_b", "2023-02-29", InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.update(func(tx store.Tx) error {
				_, err := f.l.CreatePurchase(tx, tt.student, tt.outlet, tt.date)
				return err
			})
			assert.Equal(t, tt.want, KindOf(err), "err = %v", err)
		})
	}

	// Failed creations do not consume purchase numbers.
	assert.Equal(t, "p_0", f.purchase("stud_a", "out_b", "2024-01-01").ID)
}

func TestValidatePurchase(t *testing.T) {
	f := newFixture(t)
	f.register(ir.KindStudent, "stud_a")
	f.register(ir.KindOutlet, "out_b", "out_c")
	p := f.purchase("stud_a", "out_b", "2024-01-01")

	err := f.update(func(tx store.Tx) error { return f.l.ValidatePurchase(tx, "out_c", p.ID) })
	assert.True(t, IsPermissionDenied(err))

	err = f.update(func(tx store.Tx) error { return f.l.ValidatePurchase(tx, "out_b", "p_99") })
	assert.True(t, IsNotFound(err))

	f.validate("out_b", p.ID)
	once, err := store.Digest(context.Background(), f.db)
	require.NoError(t, err)

	f.validate("out_b", p.ID)
	twice, err := store.Digest(context.Background(), f.db)
	require.NoError(t, err)
	assert.Equal(t, once, twice, "validation is a fixed point")

	// The permission check still applies to an already valid purchase.
	err = f.update(func(tx store.Tx) error { return f.l.ValidatePurchase(tx, "out_c", p.ID) })
	assert.True(t, IsPermissionDenied(err))
}

func TestPurchaseQueries(t *testing.T) {
	f := newFixture(t)
	f.register(ir.KindStudent, "stud_a", "stud_z")
	f.register(ir.KindOutlet, "out_b", "out_c")
	f.register(ir.KindUniversity, "uni_u")

	p0 := f.purchase("stud_a", "out_b", "2024-01-01")
	p1 := f.purchase("stud_a", "out_c", "2024-01-02")
	p2 := f.purchase("stud_z", "out_b", "2024-01-03")
	p3 := f.purchase("stud_a", "out_b", "2024-01-04")
	f.validate("out_b", p0.ID)
	f.validate("out_c", p1.ID)
	f.issue("uni_u")

	f.mustUpdate(func(tx store.Tx) error {
		valid, err := f.l.StudentValidPurchases(tx, "uni_u", "stud_a")
		require.NoError(t, err)
		assert.Equal(t, []string{p0.ID, p1.ID}, ids(valid))

		pending, err := f.l.OutletPurchases(tx, "out_b")
		require.NoError(t, err)
		assert.Equal(t, []string{p2.ID, p3.ID}, ids(pending))
		for _, a := range pending {
			assert.False(t, a.IsValid)
		}

		none, err := f.l.OutletPurchases(tx, "out_x")
		require.NoError(t, err)
		assert.Empty(t, none)

		_, err = f.l.StudentValidPurchases(tx, "uni_x", "stud_a")
		assert.True(t, IsNotFound(err))
		return nil
	})
}

func TestIssueRewards(t *testing.T) {
	f := newFixture(t)
	f.register(ir.KindUniversity, "uni_a", "uni_b")

	first := f.issue("uni_a")
	require.Len(t, first, RewardsPerIssue)
	assert.Equal(t, "r_0", first[0].ID)
	assert.Equal(t, "r_9", first[9].ID)
	for _, r := range first {
		assert.True(t, r.IsReward)
		assert.True(t, r.IsValid)
		assert.True(t, r.OwnedBy("uni_a"))
		assert.Nil(t, r.StudentID)
		assert.Nil(t, r.OutletID)
		assert.Nil(t, r.Date)
	}

	second := f.issue("uni_b")
	assert.Equal(t, "r_10", second[0].ID)
	assert.Equal(t, "r_19", second[9].ID)

	err := f.update(func(tx store.Tx) error {
		_, err := f.l.IssueRewards(tx, "uni_x")
		return err
	})
	assert.True(t, IsNotFound(err))
}

func TestFirstRewardUsesKeyOrder(t *testing.T) {
	f := newFixture(t)
	f.register(ir.KindUniversity, "uni_a")
	f.register(ir.KindStudent, "stud_s")
	f.issue("uni_a")
	f.issue("uni_a")

	f.mustUpdate(func(tx store.Tx) error {
		r, err := f.l.FirstRewardOf(tx, "uni_a")
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, "r_0", r.ID)

		none, err := f.l.FirstRewardOf(tx, "uni_nobody")
		require.NoError(t, err)
		assert.Nil(t, none)
		return nil
	})

	// After r_0 and r_1 are gone, byte order puts r_10 before r_2.
	for range 2 {
		f.mustUpdate(func(tx store.Tx) error {
			_, err := f.l.TransferReward(tx, "uni_a", "stud_s")
			return err
		})
	}
	f.mustUpdate(func(tx store.Tx) error {
		r, err := f.l.FirstRewardOf(tx, "uni_a")
		require.NoError(t, err)
		assert.Equal(t, "r_10", r.ID)
		return nil
	})
}

func TestTransferReward(t *testing.T) {
	f := newFixture(t)
	f.register(ir.KindUniversity, "uni_a")
	f.register(ir.KindStudent, "stud_s")
	f.issue("uni_a")

	for i := 1; i <= RewardsPerIssue; i++ {
		f.mustUpdate(func(tx store.Tx) error {
			r, err := f.l.TransferReward(tx, "uni_a", "stud_s")
			require.NoError(t, err)
			assert.True(t, r.OwnedBy("stud_s"))
			return nil
		})
		assert.Len(t, f.rewardsOf("uni_a"), RewardsPerIssue-i)
		assert.Len(t, f.rewardsOf("stud_s"), i)
	}

	err := f.update(func(tx store.Tx) error {
		_, err := f.l.TransferReward(tx, "uni_a", "stud_s")
		return err
	})
	assert.True(t, IsUnavailable(err), "err = %v", err)
}

func TestTransferRewardRequiresRegistration(t *testing.T) {
	f := newFixture(t)
	f.register(ir.KindUniversity, "uni_a")
	f.register(ir.KindStudent, "stud_s")
	f.issue("uni_a")

	for _, tc := range [][2]string{{"uni_x", "stud_s"}, {"uni_a", "stud_x"}, {"stud_s", "uni_a"}} {
		err := f.update(func(tx store.Tx) error {
			_, err := f.l.TransferReward(tx, tc[0], tc[1])
			return err
		})
		assert.True(t, IsNotFound(err), "%v: %v", tc, err)
	}
	assert.Len(t, f.rewardsOf("uni_a"), RewardsPerIssue)
}

func TestGrantStreakReward(t *testing.T) {
	f := newFixture(t)
	f.register(ir.KindUniversity, "uni_u")
	f.register(ir.KindStudent, "stud_a", "stud_b")
	f.register(ir.KindOutlet, "out_o")
	f.issue("uni_u")

	for _, d := range []string{"2024-01-01", "2024-01-03", "2024-01-04"} {
		f.validate("out_o", f.purchase("stud_a", "out_o", d).ID)
	}
	// stud_b has the same dates but one is never validated.
	for i, d := range []string{"2024-01-01", "2024-01-03"} {
		p := f.purchase("stud_b", "out_o", d)
		if i == 0 {
			f.validate("out_o", p.ID)
		}
	}

	grant := func(student string) bool {
		var ok bool
		f.mustUpdate(func(tx store.Tx) error {
			var err error
			ok, err = f.l.GrantStreakReward(tx, "uni_u", student)
			return err
		})
		return ok
	}

	assert.True(t, grant("stud_a"))
	assert.Len(t, f.rewardsOf("stud_a"), 1)

	assert.False(t, grant("stud_b"))
	assert.Empty(t, f.rewardsOf("stud_b"))
}

func TestInitLedgerAndAssets(t *testing.T) {
	f := newFixture(t)
	f.mustUpdate(func(tx store.Tx) error {
		seed, err := f.l.InitLedger(tx)
		require.NoError(t, err)
		assert.Equal(t, SeedID, seed.ID)
		assert.Nil(t, seed.Date)
		return nil
	})
	f.register(ir.KindUniversity, "uni_a")
	f.issue("uni_a")

	f.mustUpdate(func(tx store.Tx) error {
		all, err := f.l.AllAssets(tx)
		require.NoError(t, err)
		require.Len(t, all, 1+RewardsPerIssue)
		assert.Equal(t, SeedID, all[0].ID)

		ok, err := f.l.AssetExists(tx, SeedID)
		require.NoError(t, err)
		assert.True(t, ok)

		for _, id := range []string{"p_missing", "", "~registry/university", "~counter/reward"} {
			ok, err := f.l.AssetExists(tx, id)
			require.NoError(t, err)
			assert.False(t, ok, id)

			_, err = f.l.ReadAsset(tx, id)
			assert.True(t, IsNotFound(err), id)
		}
		return nil
	})
}

func TestScanSkipsUndecodableRecords(t *testing.T) {
	f := newFixture(t)
	f.register(ir.KindUniversity, "uni_a")
	f.issue("uni_a")
	f.mustUpdate(func(tx store.Tx) error {
		require.NoError(t, tx.Put("legacy", []byte(`{"ID":"legacy","date":0,"docType":"asset"}`)))
		return tx.Put("junk", []byte("not json"))
	})

	f.mustUpdate(func(tx store.Tx) error {
		all, err := f.l.AllAssets(tx)
		require.NoError(t, err)
		assert.Len(t, all, RewardsPerIssue)
		return nil
	})
}

type failingTx struct {
	store.Tx
}

func (failingTx) Scan(string, string) iter.Seq2[store.KV, error] {
	return func(yield func(store.KV, error) bool) {
		yield(store.KV{}, errors.New("disk on fire"))
	}
}

func TestScanErrorsAbort(t *testing.T) {
	f := newFixture(t)
	f.mustUpdate(func(tx store.Tx) error {
		_, err := f.l.AllAssets(failingTx{tx})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk on fire")
		assert.Equal(t, ErrorKind(""), KindOf(err))
		return nil
	})
}

func TestCountersSurviveAcrossLedgers(t *testing.T) {
	db := store.NewMemory()
	for i := range 3 {
		l := New(nil)
		err := db.Update(context.Background(), func(tx store.Tx) error {
			if i == 0 {
				if _, err := l.Register(tx, ir.KindUniversity, "uni_a"); err != nil {
					return err
				}
			}
			out, err := l.IssueRewards(tx, "uni_a")
			if err != nil {
				return err
			}
			assert.Equal(t, fmt.Sprintf("r_%d", i*RewardsPerIssue), out[0].ID)
			return nil
		})
		require.NoError(t, err)
	}
}

func TestErrorFormatting(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Errorf(NotFound, "p_1", "asset does not exist"))
	assert.Equal(t, "wrapped: NOT_FOUND: asset does not exist (id=p_1)", err.Error())
	assert.True(t, IsNotFound(err))
	assert.False(t, IsAlreadyExists(err))
	assert.False(t, IsInvalidArgument(errors.New("plain")))
}
