package tcmud

import (
	"testing"
)

func TestMetricsInitialSnapshotIsZero(t *testing.T) {
	m := NewMetrics()
	snap := m.Snapshot()

	if snap.CmdOps != 0 || snap.PadOps != 0 || snap.CheckConditionOps != 0 {
		t.Fatalf("expected zeroed snapshot, got %+v", snap)
	}
}

func TestMetricsRecordCommandAndCheckCondition(t *testing.T) {
	m := NewMetrics()

	m.RecordCommand(16, 4096, 1_000_000, true)
	m.RecordCommand(16, 0, 500_000, false)
	m.RecordCheckCondition()

	snap := m.Snapshot()
	if snap.CmdOps != 2 {
		t.Errorf("CmdOps = %d, want 2", snap.CmdOps)
	}
	if snap.CheckConditionOps != 1 {
		t.Errorf("CheckConditionOps = %d, want 1", snap.CheckConditionOps)
	}
	if snap.CdbBytes != 32 {
		t.Errorf("CdbBytes = %d, want 32", snap.CdbBytes)
	}
	if snap.DataBytes != 4096 {
		t.Errorf("DataBytes = %d, want 4096", snap.DataBytes)
	}
	wantRate := 50.0
	if snap.CheckConditionRate != wantRate {
		t.Errorf("CheckConditionRate = %v, want %v", snap.CheckConditionRate, wantRate)
	}
}

func TestMetricsRecordPadAndNotify(t *testing.T) {
	m := NewMetrics()
	m.RecordPad()
	m.RecordPad()
	m.RecordNotify()

	snap := m.Snapshot()
	if snap.PadOps != 2 {
		t.Errorf("PadOps = %d, want 2", snap.PadOps)
	}
	if snap.NotifyPokes != 1 {
		t.Errorf("NotifyPokes = %d, want 1", snap.NotifyPokes)
	}
}

func TestMetricsDrainBatchAverage(t *testing.T) {
	m := NewMetrics()
	m.RecordDrainBatch(2)
	m.RecordDrainBatch(4)

	snap := m.Snapshot()
	if snap.AvgDrainBatch != 3 {
		t.Errorf("AvgDrainBatch = %v, want 3", snap.AvgDrainBatch)
	}
}

func TestMetricsObserverForwardsToMetrics(t *testing.T) {
	m := NewMetrics()
	obs := NewMetricsObserver(m)

	obs.ObserveCommand(10, 20, 1000, true)
	obs.ObservePad()
	obs.ObserveCheckCondition()
	obs.ObserveNotify()
	obs.ObserveDrainBatch(3)

	snap := m.Snapshot()
	if snap.CmdOps != 1 || snap.PadOps != 1 || snap.CheckConditionOps != 1 || snap.NotifyPokes != 1 {
		t.Fatalf("unexpected snapshot after observer forwarding: %+v", snap)
	}
}

func TestNoOpObserverDoesNothing(t *testing.T) {
	var obs NoOpObserver
	// must not panic; there is nothing to assert beyond that.
	obs.ObserveCommand(1, 1, 1, true)
	obs.ObservePad()
	obs.ObserveCheckCondition()
	obs.ObserveNotify()
	obs.ObserveDrainBatch(1)
}
