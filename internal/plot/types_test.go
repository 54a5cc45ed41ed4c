package plot

import (
	"testing"

	"github.com/tos-network/tos-miner/internal/engine"
)

func TestVersionForHeight(t *testing.T) {
	cases := []struct {
		height, poc2From uint64
		want             engine.PoCVersion
	}{
		{100, 0, engine.PoC1},   // PoC2 disabled entirely
		{100, 200, engine.PoC1}, // before activation
		{200, 200, engine.PoC2}, // at activation
		{300, 200, engine.PoC2}, // after activation
	}
	for _, c := range cases {
		if got := VersionForHeight(c.height, c.poc2From); got != c.want {
			t.Errorf("VersionForHeight(%d, %d) = %v, want %v", c.height, c.poc2From, got, c.want)
		}
	}
}

func TestScoopOffsetPoC1IsNonceMajor(t *testing.T) {
	const totalNonces = 10
	off0 := ScoopOffset(engine.PoC1, 0, 0, totalNonces)
	off1 := ScoopOffset(engine.PoC1, 0, 1, totalNonces)
	if off1-off0 != ScoopSize {
		t.Errorf("adjacent scoops within one nonce should be %d bytes apart, got %d", ScoopSize, off1-off0)
	}

	offNonce0 := ScoopOffset(engine.PoC1, 0, 0, totalNonces)
	offNonce1 := ScoopOffset(engine.PoC1, 1, 0, totalNonces)
	if offNonce1-offNonce0 != ScoopsPerNonce*ScoopSize {
		t.Errorf("adjacent nonces at the same scoop should be %d bytes apart, got %d", ScoopsPerNonce*ScoopSize, offNonce1-offNonce0)
	}
}

func TestScoopOffsetPoC2IsScoopMajor(t *testing.T) {
	const totalNonces = 10
	offNonce0 := ScoopOffset(engine.PoC2, 0, 5, totalNonces)
	offNonce1 := ScoopOffset(engine.PoC2, 1, 5, totalNonces)
	if offNonce1-offNonce0 != ScoopSize {
		t.Errorf("adjacent nonces at a fixed scoop should be contiguous (%d bytes apart), got %d", ScoopSize, offNonce1-offNonce0)
	}
}

func TestParseFileName(t *testing.T) {
	cases := []struct {
		name                          string
		wantAccount, wantStart, wantN uint64
		wantErr                       bool
	}{
		{"12345_0_1000", 12345, 0, 1000, false},
		{"12345_0_1000_4", 12345, 0, 1000, false},
		{"not-a-plot-file", 0, 0, 0, true},
		{"12345_abc_1000", 0, 0, 0, true},
	}
	for _, c := range cases {
		account, start, n, err := parseFileName(c.name)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseFileName(%q) expected an error, got none", c.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseFileName(%q) unexpected error: %v", c.name, err)
			continue
		}
		if account != c.wantAccount || start != c.wantStart || n != c.wantN {
			t.Errorf("parseFileName(%q) = (%d, %d, %d), want (%d, %d, %d)",
				c.name, account, start, n, c.wantAccount, c.wantStart, c.wantN)
		}
	}
}

func TestFileRef(t *testing.T) {
	f := &File{Path: "/plots/1_0_100", AccountID: 1, Nonces: 100, Size: 6400000}
	ref := f.Ref()
	if ref.Path != f.Path || ref.AccountID != f.AccountID || ref.Nonces != f.Nonces || ref.Size != f.Size {
		t.Errorf("Ref() = %+v, want fields matching %+v", ref, f)
	}
}
