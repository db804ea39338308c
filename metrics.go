package tcmud

import (
	"sync/atomic"
	"time"

	"github.com/behrlich/tcmud/internal/interfaces"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds.
// Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks dispatch-loop statistics across every device a daemon is
// servicing: commands submitted to handlers, PAD entries skipped, CHECK
// CONDITION responses synthesized, notify pokes sent, and ring-drain batch
// sizes.
type Metrics struct {
	CmdOps            atomic.Uint64 // CMD entries dispatched to a handler
	PadOps            atomic.Uint64 // PAD (or unrecognized) entries skipped
	CheckConditionOps atomic.Uint64 // responses synthesized as CHECK CONDITION
	NotifyPokes       atomic.Uint64 // notify-fd wakeups sent to the kernel

	CdbBytes  atomic.Uint64 // cumulative CDB bytes seen
	DataBytes atomic.Uint64 // cumulative iovec payload bytes seen

	DrainBatchTotal atomic.Uint64 // cumulative entries-per-drain-call
	DrainBatchCount atomic.Uint64 // number of drain calls that did work

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordCommand records one dispatched CMD entry. Whether it ended in a
// CHECK CONDITION response is tracked separately via RecordCheckCondition,
// called once per synthesized sense response, not derived from success here.
func (m *Metrics) RecordCommand(cdbLen int, iovBytes uint64, latencyNs uint64, success bool) {
	m.CmdOps.Add(1)
	m.CdbBytes.Add(uint64(cdbLen))
	m.DataBytes.Add(iovBytes)
	m.recordLatency(latencyNs)
}

func (m *Metrics) RecordCheckCondition() { m.CheckConditionOps.Add(1) }

func (m *Metrics) RecordPad() { m.PadOps.Add(1) }

func (m *Metrics) RecordNotify() { m.NotifyPokes.Add(1) }

func (m *Metrics) RecordDrainBatch(entries int) {
	m.DrainBatchTotal.Add(uint64(entries))
	m.DrainBatchCount.Add(1)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time, non-atomic copy of Metrics plus
// derived statistics.
type MetricsSnapshot struct {
	CmdOps            uint64
	PadOps            uint64
	CheckConditionOps uint64
	NotifyPokes       uint64

	CdbBytes  uint64
	DataBytes uint64

	AvgDrainBatch float64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	CommandsPerSecond   float64
	CheckConditionRate  float64 // percentage (0-100) of commands answered CHECK CONDITION
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		CmdOps:            m.CmdOps.Load(),
		PadOps:            m.PadOps.Load(),
		CheckConditionOps: m.CheckConditionOps.Load(),
		NotifyPokes:       m.NotifyPokes.Load(),
		CdbBytes:          m.CdbBytes.Load(),
		DataBytes:         m.DataBytes.Load(),
	}

	batchTotal := m.DrainBatchTotal.Load()
	batchCount := m.DrainBatchCount.Load()
	if batchCount > 0 {
		snap.AvgDrainBatch = float64(batchTotal) / float64(batchCount)
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.CommandsPerSecond = float64(snap.CmdOps) / uptimeSeconds
	}
	if snap.CmdOps > 0 {
		snap.CheckConditionRate = float64(snap.CheckConditionOps) / float64(snap.CmdOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}
	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}
	return LatencyBuckets[numLatencyBuckets-1]
}

// MetricsObserver implements interfaces.Observer, recording into Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveCommand(cdbLen int, iovBytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordCommand(cdbLen, iovBytes, latencyNs, success)
}
func (o *MetricsObserver) ObservePad()            { o.metrics.RecordPad() }
func (o *MetricsObserver) ObserveCheckCondition()  { o.metrics.RecordCheckCondition() }
func (o *MetricsObserver) ObserveNotify()          { o.metrics.RecordNotify() }
func (o *MetricsObserver) ObserveDrainBatch(n int) { o.metrics.RecordDrainBatch(n) }

// NoOpObserver discards everything; useful for callers that don't want
// metrics overhead.
type NoOpObserver struct{}

func (NoOpObserver) ObserveCommand(int, uint64, uint64, bool) {}
func (NoOpObserver) ObservePad()                              {}
func (NoOpObserver) ObserveCheckCondition()                   {}
func (NoOpObserver) ObserveNotify()                            {}
func (NoOpObserver) ObserveDrainBatch(int)                     {}

var _ interfaces.Observer = (*MetricsObserver)(nil)
var _ interfaces.Observer = (*NoOpObserver)(nil)
