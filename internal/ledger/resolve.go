package ledger

import "github.com/drewdunne/prbounty/internal/store"

// Action is what a claim does with the resolved unit.
type Action int

const (
	// ActionCreate shadow-creates a unit under the exact key.
	ActionCreate Action = iota
	// ActionAttach claims an existing open unit.
	ActionAttach
	// ActionAlreadyClaimed rejects the claim.
	ActionAlreadyClaimed
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionAttach:
		return "attach"
	case ActionAlreadyClaimed:
		return "already_claimed"
	}
	return "unknown"
}

// Resolution is the outcome of ResolveKey.
type Resolution struct {
	Action Action
	// Unit is the unit to attach to or the one already claimed. It is nil
	// for ActionCreate.
	Unit *store.ClaimableUnit
}

// ResolveKey decides which unit a claim applies to. exact is the unit at
// (projectID, prNumber), if any; byURL lists units recorded for the pull
// request URL, oldest first.
//
// An exact hit always wins. Otherwise the oldest open URL hit is attached.
// If every URL hit is claimed, the claim is rejected when developerID holds
// one of them and a fresh unit is created under the exact key otherwise.
func ResolveKey(developerID string, exact *store.ClaimableUnit, byURL []store.ClaimableUnit) Resolution {
	if exact != nil {
		if exact.BountyClaimed {
			return Resolution{Action: ActionAlreadyClaimed, Unit: exact}
		}
		return Resolution{Action: ActionAttach, Unit: exact}
	}

	for i := range byURL {
		if !byURL[i].BountyClaimed {
			return Resolution{Action: ActionAttach, Unit: &byURL[i]}
		}
	}
	for i := range byURL {
		if byURL[i].Claimant() == developerID {
			return Resolution{Action: ActionAlreadyClaimed, Unit: &byURL[i]}
		}
	}
	return Resolution{Action: ActionCreate}
}
