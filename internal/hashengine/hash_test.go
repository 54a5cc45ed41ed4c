package hashengine

import "testing"

func TestDeadlineFromHashZeroBaseTarget(t *testing.T) {
	h := [8]byte{0, 0, 0, 0, 0, 0, 0, 42}
	if got := DeadlineFromHash(h, 0); got != 42 {
		t.Errorf("DeadlineFromHash with zero baseTarget = %d, want 42", got)
	}
}

func TestDeadlineDeterministic(t *testing.T) {
	var gensig [32]byte
	for i := range gensig {
		gensig[i] = byte(i)
	}
	scoop := make([]byte, ScoopSize)
	for i := range scoop {
		scoop[i] = byte(i * 3)
	}

	d1 := Deadline(gensig, scoop, 1000)
	d2 := Deadline(gensig, scoop, 1000)
	if d1 != d2 {
		t.Fatalf("Deadline not deterministic: %d != %d", d1, d2)
	}
}

func TestDeadlineDiffersByScoop(t *testing.T) {
	var gensig [32]byte
	scoopA := make([]byte, ScoopSize)
	scoopB := make([]byte, ScoopSize)
	scoopB[0] = 1

	hA := H(gensig, scoopA)
	hB := H(gensig, scoopB)
	if hA == hB {
		t.Fatal("expected different hashes for different scoop bytes")
	}
}

func TestDeadlineDiffersByGenSig(t *testing.T) {
	var gensigA, gensigB [32]byte
	gensigB[0] = 1
	scoop := make([]byte, ScoopSize)

	hA := H(gensigA, scoop)
	hB := H(gensigB, scoop)
	if hA == hB {
		t.Fatal("expected different hashes for different generation signatures")
	}
}
