package hashengine

import "testing"

func TestSelectGPUFallsBackToScalar(t *testing.T) {
	for _, pt := range []string{"CUDA", "OPENCL", "cuda"} {
		b := Select(pt, "AUTO")
		if b.Name() != "scalar" {
			t.Errorf("Select(%q, AUTO).Name() = %q, want scalar", pt, b.Name())
		}
	}
}

func TestSelectAutoReturnsUsableBackend(t *testing.T) {
	b := Select("CPU", "AUTO")
	if b == nil {
		t.Fatal("Select returned nil backend")
	}
	// must still behave correctly regardless of which width was picked
	var gensig [32]byte
	scoop := make([]byte, ScoopSize)
	res := b.Verify(gensig, scoop, 0, 1, 1000, 1, 1)
	if res.MinNonce != 0 {
		t.Errorf("MinNonce = %d, want 0", res.MinNonce)
	}
}

func TestSelectUnknownInstructionSetFallsBack(t *testing.T) {
	b := Select("CPU", "BOGUS")
	if b.Name() != "scalar" {
		t.Errorf("Select(CPU, BOGUS).Name() = %q, want scalar", b.Name())
	}
}

func TestSelectExplicitScalar(t *testing.T) {
	b := Select("CPU", "SCALAR")
	if b.Name() != "scalar" {
		t.Errorf("Select(CPU, SCALAR).Name() = %q, want scalar", b.Name())
	}
}
