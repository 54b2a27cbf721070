// Package chooser implements the stage-1 chooser: the state machine that
// runs on every reset, consults the boot configuration record, the update
// handshake flags, and the reset cause, optionally swaps the active slot,
// and decides which image to boot.
package chooser

import (
	"aqmon/fieldupdate/internal/resetcause"
	"aqmon/fieldupdate/internal/slot"
)

// Decision is the pure output of the decision table: which slot to boot,
// and whether that choice should be persisted to the boot configuration
// record before booting.
type Decision struct {
	Target  slot.Slot
	Persist bool
}

// Decide implements the 12-row boot decision table. It takes the
// already-consumed handshake flags (take_pending/take_valid are
// destructive reads performed once by the caller) and
// the current active slot from the boot configuration record, and returns
// which slot to boot and whether to persist that choice.
//
// Only the (pending=true, valid=true, cause=Software) row changes the
// active slot and persists it — that is the one case where the prior
// application has proven the new image boots and requested the commit.
// The (pending=true, valid=false, cause=Software) row boots the inactive
// slot as a trial without persisting. Every other row is either a normal
// boot of the already-active slot or an abandoned/out-of-order handshake.
// None of the rows except the commit row touches the record.
func Decide(pending, valid bool, cause resetcause.Cause, active slot.Slot) Decision {
	switch {
	case pending && valid && cause == resetcause.Software:
		// The new image proved itself; commit the swap.
		return Decision{Target: active.Other(), Persist: true}
	case pending && valid:
		// Valid was set but we didn't get here via the software reset that
		// was supposed to follow it — wrong path, treat as abandoned.
		return Decision{Target: active, Persist: false}
	case pending && !valid && cause == resetcause.Software:
		// Trial boot of the inactive slot: boot it, but do not persist —
		// if it never sets update_valid and reboots, the next reset's
		// pending flag will already be clear and we fall through to a
		// normal boot of the still-active slot.
		return Decision{Target: active.Other(), Persist: false}
	case pending && !valid:
		// Pending was set but we didn't reach it via a software reset —
		// unintended state, abandon the attempt.
		return Decision{Target: active, Persist: false}
	case !pending && valid:
		// Out of order: valid without pending. Cannot correspond to any
		// legitimate trial boot.
		return Decision{Target: active, Persist: false}
	default:
		// !pending && !valid: the ordinary case, most of the time.
		return Decision{Target: active, Persist: false}
	}
}
