package engine

import "testing"

func newTestBlockData(height uint64, target uint64) *BlockData {
	return NewBlockData(Challenge{Height: height, BaseTarget: 1000}, target, 1024)
}

func TestArbiterNoCurrentBlockIsError(t *testing.T) {
	a := NewArbiter()
	handle, conf := a.AddDeadline(Deadline{Height: 1, AccountID: 1, Value: 100})
	if handle != nil {
		t.Fatalf("expected nil handle, got %+v", handle)
	}
	if conf == nil || conf.Kind != KindError {
		t.Fatalf("expected KindError, got %+v", conf)
	}
}

func TestArbiterWrongBlockHeight(t *testing.T) {
	a := NewArbiter()
	a.SetCurrent(newTestBlockData(10, 0))

	handle, conf := a.AddDeadline(Deadline{Height: 9, AccountID: 1, Value: 100})
	if handle != nil {
		t.Fatalf("expected nil handle, got %+v", handle)
	}
	if conf == nil || conf.Kind != KindWrongBlock || conf.CurrentHeight != 10 {
		t.Fatalf("expected KindWrongBlock with CurrentHeight=10, got %+v", conf)
	}
}

func TestArbiterNotStrictlyBetterIsSilentDrop(t *testing.T) {
	a := NewArbiter()
	a.SetCurrent(newTestBlockData(10, 0))

	h1, c1 := a.AddDeadline(Deadline{Height: 10, AccountID: 1, Value: 500})
	if h1 == nil || c1.Kind != KindAccepted {
		t.Fatalf("first deadline should be accepted, got handle=%+v conf=%+v", h1, c1)
	}

	h2, c2 := a.AddDeadline(Deadline{Height: 10, AccountID: 1, Value: 600})
	if h2 != nil || c2 != nil {
		t.Fatalf("worse deadline should be a silent drop, got handle=%+v conf=%+v", h2, c2)
	}

	h3, c3 := a.AddDeadline(Deadline{Height: 10, AccountID: 1, Value: 500})
	if h3 != nil || c3 != nil {
		t.Fatalf("equal deadline should be a silent drop, got handle=%+v conf=%+v", h3, c3)
	}
}

func TestArbiterStrictlyBetterReplacesBest(t *testing.T) {
	a := NewArbiter()
	a.SetCurrent(newTestBlockData(10, 0))

	a.AddDeadline(Deadline{Height: 10, AccountID: 1, Value: 500})
	h, c := a.AddDeadline(Deadline{Height: 10, AccountID: 1, Value: 100})
	if h == nil || c.Kind != KindAccepted {
		t.Fatalf("strictly better deadline should be accepted, got handle=%+v conf=%+v", h, c)
	}
	if h.Deadline.Value != 100 {
		t.Fatalf("expected installed deadline 100, got %d", h.Deadline.Value)
	}
}

func TestArbiterTooHighIsSuppressed(t *testing.T) {
	a := NewArbiter()
	a.SetCurrent(newTestBlockData(10, 200))

	h, c := a.AddDeadline(Deadline{Height: 10, AccountID: 1, Value: 500})
	if h != nil {
		t.Fatalf("too-high deadline must not produce a submission handle, got %+v", h)
	}
	if c == nil || c.Kind != KindTooHigh || c.Target != 200 || c.Deadline != 500 {
		t.Fatalf("expected KindTooHigh with target=200 deadline=500, got %+v", c)
	}
}

func TestArbiterZeroTargetAcceptsAnyDeadline(t *testing.T) {
	a := NewArbiter()
	a.SetCurrent(newTestBlockData(10, 0))

	h, c := a.AddDeadline(Deadline{Height: 10, AccountID: 1, Value: 1 << 40})
	if h == nil || c.Kind != KindAccepted {
		t.Fatalf("zero target should accept any deadline, got handle=%+v conf=%+v", h, c)
	}
}

func TestArbiterIndependentAccounts(t *testing.T) {
	a := NewArbiter()
	a.SetCurrent(newTestBlockData(10, 0))

	h1, _ := a.AddDeadline(Deadline{Height: 10, AccountID: 1, Value: 500})
	h2, _ := a.AddDeadline(Deadline{Height: 10, AccountID: 2, Value: 500})
	if h1 == nil || h2 == nil {
		t.Fatalf("distinct accounts must each be admitted independently, got h1=%+v h2=%+v", h1, h2)
	}
}
