package ledger

import (
	"github.com/roach88/perks/internal/ir"
	"github.com/roach88/perks/internal/store"
	"github.com/roach88/perks/internal/streak"
)

// RewardsPerIssue is the number of tokens a university receives per issue.
const RewardsPerIssue = 10

// IssueRewards creates RewardsPerIssue reward tokens owned by a registered
// university and returns them in creation order.
func (l *Ledger) IssueRewards(tx store.Tx, universityID string) ([]ir.Asset, error) {
	if err := l.requireRegistered(tx, ir.KindUniversity, universityID); err != nil {
		return nil, err
	}

	issued := make([]ir.Asset, 0, RewardsPerIssue)
	for range RewardsPerIssue {
		id, err := nextID(tx, rewardCounterKey, ir.RewardPrefix)
		if err != nil {
			return nil, err
		}
		r := ir.NewReward(id, universityID)
		if err := putAsset(tx, r); err != nil {
			return nil, err
		}
		issued = append(issued, r)
	}

	l.logger.Debug("rewards issued", "university", universityID,
		"first", issued[0].ID, "last", issued[len(issued)-1].ID)
	return issued, nil
}

// FirstRewardOf returns the first reward in key order held by owner, or nil.
func (l *Ledger) FirstRewardOf(tx store.Tx, owner string) (*ir.Asset, error) {
	return l.first(tx, func(a ir.Asset) bool { return a.OwnedBy(owner) })
}

// RewardsOf returns every reward held by owner in key order.
func (l *Ledger) RewardsOf(tx store.Tx, owner string) ([]ir.Asset, error) {
	return l.collect(tx, func(a ir.Asset) bool { return a.OwnedBy(owner) })
}

// TransferReward moves the university's first reward to the student.
func (l *Ledger) TransferReward(tx store.Tx, universityID, studentID string) (ir.Asset, error) {
	if err := l.requireRegistered(tx, ir.KindUniversity, universityID); err != nil {
		return ir.Asset{}, err
	}
	if err := l.requireRegistered(tx, ir.KindStudent, studentID); err != nil {
		return ir.Asset{}, err
	}

	r, err := l.FirstRewardOf(tx, universityID)
	if err != nil {
		return ir.Asset{}, err
	}
	if r == nil {
		return ir.Asset{}, Errorf(Unavailable, universityID, "no rewards left")
	}

	r.Owner = &studentID
	if err := putAsset(tx, *r); err != nil {
		return ir.Asset{}, err
	}
	l.logger.Debug("reward transferred", "id", r.ID, "from", universityID, "to", studentID)
	return *r, nil
}

// GrantStreakReward transfers one reward to the student if their
// validated purchase dates qualify under the streak rule. It reports
// whether a reward was transferred.
func (l *Ledger) GrantStreakReward(tx store.Tx, universityID, studentID string) (bool, error) {
	purchases, err := l.StudentValidPurchases(tx, universityID, studentID)
	if err != nil {
		return false, err
	}

	dates := make([]string, 0, len(purchases))
	for _, p := range purchases {
		if p.Date != nil {
			dates = append(dates, *p.Date)
		}
	}
	ok, err := streak.Qualifies(dates)
	if err != nil {
		return false, Errorf(InvalidArgument, studentID, "%v", err)
	}
	if !ok {
		l.logger.Debug("no qualifying streak", "student", studentID, "purchases", len(dates))
		return false, nil
	}

	if _, err := l.TransferReward(tx, universityID, studentID); err != nil {
		return false, err
	}
	return true, nil
}
