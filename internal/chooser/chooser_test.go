package chooser

import (
	"errors"
	"testing"

	"aqmon/fieldupdate/internal/resetcause"
	"aqmon/fieldupdate/internal/slot"
)

// nonSoftwareCauses enumerates every Cause other than Software, standing in
// for the decision table's "any other" rows: a 6-logical-row table expanded
// across the reset-cause enum's non-Software members for the rows that say
// "any other".
var nonSoftwareCauses = []resetcause.Cause{
	resetcause.PowerOn,
	resetcause.Pin,
	resetcause.Brownout,
	resetcause.IndependentWatchdog,
	resetcause.WindowWatchdog,
	resetcause.LowPower,
	resetcause.Unknown,
}

var anyCause = append([]resetcause.Cause{resetcause.Software}, nonSoftwareCauses...)

func TestDecideTruthTable(t *testing.T) {
	tests := []struct {
		name    string
		pending bool
		valid   bool
		causes  []resetcause.Cause
		want    Decision
	}{
		{
			name: "pending+valid+software: commit swap",
			pending: true, valid: true,
			causes: []resetcause.Cause{resetcause.Software},
			want:   Decision{Target: slot.B, Persist: true},
		},
		{
			name: "pending+valid+other cause: abandon, boot active",
			pending: true, valid: true,
			causes: nonSoftwareCauses,
			want:   Decision{Target: slot.A, Persist: false},
		},
		{
			name: "pending only + software: trial boot inactive, no persist",
			pending: true, valid: false,
			causes: []resetcause.Cause{resetcause.Software},
			want:   Decision{Target: slot.B, Persist: false},
		},
		{
			name: "pending only + other cause: unintended, boot active",
			pending: true, valid: false,
			causes: nonSoftwareCauses,
			want:   Decision{Target: slot.A, Persist: false},
		},
		{
			name: "valid only, any cause: out of order, boot active",
			pending: false, valid: true,
			causes: anyCause,
			want:   Decision{Target: slot.A, Persist: false},
		},
		{
			name: "neither flag, any cause: normal boot",
			pending: false, valid: false,
			causes: anyCause,
			want:   Decision{Target: slot.A, Persist: false},
		},
	}

	active := slot.A
	for _, tc := range tests {
		for _, cause := range tc.causes {
			name := tc.name + "/" + cause.String()
			t.Run(name, func(t *testing.T) {
				got := Decide(tc.pending, tc.valid, cause, active)
				if got != tc.want {
					t.Errorf("Decide(%v, %v, %v, %v) = %+v, want %+v",
						tc.pending, tc.valid, cause, active, got, tc.want)
				}
			})
		}
	}
}

func TestDecideFromSlotB(t *testing.T) {
	// The commit row must swap relative to whichever slot is currently
	// active, not hardcode A->B.
	got := Decide(true, true, resetcause.Software, slot.B)
	want := Decision{Target: slot.A, Persist: true}
	if got != want {
		t.Errorf("Decide from slot B = %+v, want %+v", got, want)
	}
}

type fakeVerifier struct {
	sp, rv uint32
	err    error
}

func (f fakeVerifier) ReadVectorTable(base uint32) (uint32, uint32, error) {
	return f.sp, f.rv, f.err
}

type fakeJumper struct {
	jumped  bool
	jumpBase uint32
}

func (f *fakeJumper) Jump(base uint32) {
	f.jumped = true
	f.jumpBase = base
}

func TestBootSlotValid(t *testing.T) {
	const base = slot.BaseA
	v := fakeVerifier{sp: 0x20020000, rv: base + 0x200}
	j := &fakeJumper{}
	fed := false

	err := BootSlot(base, slot.Size, nil, v, j, func() { fed = true })
	if err != nil {
		t.Fatalf("BootSlot: %v", err)
	}
	if !j.jumped || j.jumpBase != base {
		t.Errorf("Jump not called with base %#x: jumped=%v base=%#x", base, j.jumped, j.jumpBase)
	}
	if !fed {
		t.Error("watchdog was not fed before the jump")
	}
}

func TestBootSlotRejectsOutOfRangeVector(t *testing.T) {
	const base = slot.BaseA
	v := fakeVerifier{sp: 0x20020000, rv: base + slot.Size + 4} // past the end
	j := &fakeJumper{}

	err := BootSlot(base, slot.Size, nil, v, j, nil)
	if err == nil {
		t.Fatal("BootSlot: err = nil, want error for out-of-range reset vector")
	}
	if j.jumped {
		t.Error("Jump was called despite an invalid reset vector")
	}
}

func TestBootSlotRejectsBelowBase(t *testing.T) {
	const base = slot.BaseA
	v := fakeVerifier{sp: 0, rv: base - 4}
	j := &fakeJumper{}

	if err := BootSlot(base, slot.Size, nil, v, j, nil); err == nil {
		t.Fatal("BootSlot: err = nil, want error for reset vector below base")
	}
	if j.jumped {
		t.Error("Jump was called despite a reset vector below base")
	}
}

func TestBootSlotPropagatesVerifierError(t *testing.T) {
	wantErr := errors.New("flash read failed")
	v := fakeVerifier{err: wantErr}
	j := &fakeJumper{}

	err := BootSlot(slot.BaseA, slot.Size, nil, v, j, nil)
	if !errors.Is(err, wantErr) {
		t.Errorf("BootSlot err = %v, want %v", err, wantErr)
	}
	if j.jumped {
		t.Error("Jump was called despite a verifier error")
	}
}
