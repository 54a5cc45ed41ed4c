package engine

import (
	"sync"
	"testing"
	"time"
)

func TestProgressObserverReportsSnapshots(t *testing.T) {
	arbiter := NewArbiter()
	bd := NewBlockData(Challenge{Height: 9}, 0, 1000)
	arbiter.SetCurrent(bd)

	var mu sync.Mutex
	var snapshots []Snapshot
	obs := NewProgressObserver(arbiter, 10*time.Millisecond, func(s Snapshot) {
		mu.Lock()
		snapshots = append(snapshots, s)
		mu.Unlock()
	})
	obs.Start()
	defer obs.Stop()

	bd.AddReadBytes(500)
	bd.AddVerifyBytes(250)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(snapshots)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(snapshots) == 0 {
		t.Fatal("expected at least one snapshot")
	}
	last := snapshots[len(snapshots)-1]
	if last.Height != 9 {
		t.Errorf("Snapshot.Height = %d, want 9", last.Height)
	}
}

func TestProgressObserverMarksCompletion(t *testing.T) {
	arbiter := NewArbiter()
	bd := NewBlockData(Challenge{Height: 1}, 0, 10)
	arbiter.SetCurrent(bd)

	obs := NewProgressObserver(arbiter, 10*time.Millisecond, nil)
	obs.Start()
	defer obs.Stop()

	bd.AddReadBytes(10)
	bd.AddVerifyBytes(10)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && bd.IsProcessing() {
		time.Sleep(5 * time.Millisecond)
	}

	if bd.IsProcessing() {
		t.Fatal("BlockData should have been marked finished once progress reached 100%")
	}
	if bd.RoundDuration <= 0 {
		t.Fatal("RoundDuration should be set once the round completes")
	}
}
