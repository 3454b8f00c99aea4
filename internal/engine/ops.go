package engine

import (
	"slices"
	"strings"

	"github.com/roach88/perks/internal/ir"
	"github.com/roach88/perks/internal/ledger"
	"github.com/roach88/perks/internal/store"
)

// Operation names.
const (
	OpInitLedger          = "InitLedger"
	OpRegisterUser        = "RegisterUser"
	OpIssueRewardsFor     = "IssueRewardsFor"
	OpListFirstReward     = "ListFirstReward"
	OpTransferReward      = "TransferReward"
	OpListRewards         = "ListRewards"
	OpCreatePurchase      = "CreatePurchase"
	OpListValidPurchases  = "ListValidPurchases"
	OpListOutletPurchases = "ListOutletPurchases"
	OpReadAsset           = "ReadAsset"
	OpAssetExists         = "AssetExists"
	OpValidatePurchase    = "ValidatePurchase"
	OpGetAllAssets        = "GetAllAssets"
	OpGrantStreakReward   = "GrantStreakReward"
)

// param is one positional argument. A param with a kind is an identity
// and is qualified with the kind's prefix before the ledger sees it.
type param struct {
	name string
	kind ir.Kind
}

// rewardEvents collects what an invocation did to rewards. They are
// counted only once the transaction commits.
type rewardEvents struct {
	issued      int
	transferred int
}

type operation struct {
	params   []param
	readOnly bool
	run      func(e *Engine, tx store.Tx, args []string, ev *rewardEvents) (ir.IRValue, error)
}

func (o operation) usage() string {
	names := make([]string, len(o.params))
	for i, p := range o.params {
		names[i] = p.name
	}
	return strings.Join(names, ", ")
}

func (o operation) qualify(args []string) []string {
	out := slices.Clone(args)
	for i, p := range o.params {
		if p.kind != "" {
			out[i] = ir.Qualify(args[i], p.kind)
		}
	}
	return out
}

var (
	studentParam    = param{"studentID", ir.KindStudent}
	outletParam     = param{"outletID", ir.KindOutlet}
	universityParam = param{"universityID", ir.KindUniversity}
)

var operations = map[string]operation{
	OpInitLedger: {
		run: func(e *Engine, tx store.Tx, _ []string, _ *rewardEvents) (ir.IRValue, error) {
			_, err := e.ledger.InitLedger(tx)
			return ir.IRNull{}, err
		},
	},
	OpRegisterUser: {
		params: []param{{name: "identity"}, {name: "kind"}},
		run:    runRegisterUser,
	},
	OpIssueRewardsFor: {
		params: []param{universityParam},
		run: func(e *Engine, tx store.Tx, args []string, ev *rewardEvents) (ir.IRValue, error) {
			issued, err := e.ledger.IssueRewards(tx, args[0])
			if err != nil {
				return nil, err
			}
			ev.issued += len(issued)
			return ir.IRNull{}, nil
		},
	},
	OpListFirstReward: {
		params:   []param{universityParam},
		readOnly: true,
		run: func(e *Engine, tx store.Tx, args []string, ev *rewardEvents) (ir.IRValue, error) {
			r, err := e.ledger.FirstRewardOf(tx, args[0])
			if err != nil || r == nil {
				return ir.IRNull{}, err
			}
			return r.ToIR(), nil
		},
	},
	OpTransferReward: {
		params: []param{universityParam, studentParam},
		run: func(e *Engine, tx store.Tx, args []string, ev *rewardEvents) (ir.IRValue, error) {
			if _, err := e.ledger.TransferReward(tx, args[0], args[1]); err != nil {
				return nil, err
			}
			ev.transferred++
			return ir.IRNull{}, nil
		},
	},
	OpListRewards: {
		params:   []param{{name: "ownerID"}},
		readOnly: true,
		run: func(e *Engine, tx store.Tx, args []string, ev *rewardEvents) (ir.IRValue, error) {
			return assetList(e.ledger.RewardsOf(tx, args[0]))
		},
	},
	OpCreatePurchase: {
		params: []param{studentParam, outletParam, {name: "date"}},
		run: func(e *Engine, tx store.Tx, args []string, ev *rewardEvents) (ir.IRValue, error) {
			a, err := e.ledger.CreatePurchase(tx, args[0], args[1], args[2])
			if err != nil {
				return nil, err
			}
			return a.ToIR(), nil
		},
	},
	OpListValidPurchases: {
		params:   []param{universityParam, studentParam},
		readOnly: true,
		run: func(e *Engine, tx store.Tx, args []string, ev *rewardEvents) (ir.IRValue, error) {
			return assetList(e.ledger.StudentValidPurchases(tx, args[0], args[1]))
		},
	},
	OpListOutletPurchases: {
		params:   []param{outletParam},
		readOnly: true,
		run: func(e *Engine, tx store.Tx, args []string, ev *rewardEvents) (ir.IRValue, error) {
			return assetList(e.ledger.OutletPurchases(tx, args[0]))
		},
	},
	OpReadAsset: {
		params:   []param{{name: "id"}},
		readOnly: true,
		run: func(e *Engine, tx store.Tx, args []string, ev *rewardEvents) (ir.IRValue, error) {
			a, err := e.ledger.ReadAsset(tx, args[0])
			if err != nil {
				return nil, err
			}
			return a.ToIR(), nil
		},
	},
	OpAssetExists: {
		params:   []param{{name: "id"}},
		readOnly: true,
		run: func(e *Engine, tx store.Tx, args []string, ev *rewardEvents) (ir.IRValue, error) {
			ok, err := e.ledger.AssetExists(tx, args[0])
			return ir.IRBool(ok), err
		},
	},
	OpValidatePurchase: {
		params: []param{outletParam, {name: "purchaseID"}},
		run: func(e *Engine, tx store.Tx, args []string, ev *rewardEvents) (ir.IRValue, error) {
			return ir.IRNull{}, e.ledger.ValidatePurchase(tx, args[0], args[1])
		},
	},
	OpGetAllAssets: {
		readOnly: true,
		run: func(e *Engine, tx store.Tx, _ []string, _ *rewardEvents) (ir.IRValue, error) {
			return assetList(e.ledger.AllAssets(tx))
		},
	},
	OpGrantStreakReward: {
		params: []param{universityParam, studentParam},
		run: func(e *Engine, tx store.Tx, args []string, ev *rewardEvents) (ir.IRValue, error) {
			granted, err := e.ledger.GrantStreakReward(tx, args[0], args[1])
			if err != nil {
				return nil, err
			}
			if granted {
				ev.transferred++
			}
			return ir.IRBool(granted), nil
		},
	},
}

// runRegisterUser qualifies the identity by its declared kind. A new
// university is issued its rewards in the same transaction.
func runRegisterUser(e *Engine, tx store.Tx, args []string, ev *rewardEvents) (ir.IRValue, error) {
	kind, err := ir.ParseKind(args[1])
	if err != nil {
		return nil, ledger.Errorf(ledger.InvalidArgument, args[0], "%v", err)
	}
	identity := ir.Qualify(args[0], kind)

	members, err := e.ledger.Register(tx, kind, identity)
	if err != nil {
		return nil, err
	}
	if kind == ir.KindUniversity {
		issued, err := e.ledger.IssueRewards(tx, identity)
		if err != nil {
			return nil, err
		}
		ev.issued += len(issued)
	}
	return ir.StringArray(members), nil
}

func assetList(assets []ir.Asset, err error) (ir.IRValue, error) {
	if err != nil {
		return nil, err
	}
	arr := make(ir.IRArray, len(assets))
	for i, a := range assets {
		arr[i] = a.ToIR()
	}
	return arr, nil
}

// Operations returns every operation name in sorted order.
func Operations() []string {
	names := make([]string, 0, len(operations))
	for name := range operations {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Params returns the argument names of op, or false if op is unknown.
func Params(op string) ([]string, bool) {
	o, ok := operations[op]
	if !ok {
		return nil, false
	}
	names := make([]string, len(o.params))
	for i, p := range o.params {
		names[i] = p.name
	}
	return names, true
}

// ReadOnly reports whether op only reads the store.
func ReadOnly(op string) bool {
	return operations[op].readOnly
}
