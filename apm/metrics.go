// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Metrics sampler: a second background worker that periodically reads
// process/system counters and emits a delta-based metricset line, spec
// §4.5.
//
// Grounded on original_source/src/apm_metrics.c (the ~10s wait-sample-diff
// loop) and apm_cpulinux.c (the four concrete gauge names and formulas).
package apm

import (
	"context"
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/hansenhahn/terra-apm-agent-go/internal/ids"
	"github.com/hansenhahn/terra-apm-agent-go/internal/log"
	"github.com/hansenhahn/terra-apm-agent-go/internal/procstats"
	"github.com/hansenhahn/terra-apm-agent-go/internal/transport"
)

const metricsSampleInterval = 10 * time.Second

type metricsWorker struct {
	transport    *transport.Client
	metadataLine []byte
	statsd       *statsd.Client
	done         chan struct{}
	stopped      chan struct{}
}

func newMetricsWorker(t *transport.Client, metadataLine []byte, statsdAddr string) *metricsWorker {
	var client *statsd.Client
	if statsdAddr != "" {
		c, err := statsd.New(statsdAddr)
		if err != nil {
			log.Warn("metrics: statsd client init failed, continuing without it: %v", err)
		} else {
			client = c
		}
	}
	return &metricsWorker{
		transport:    t,
		metadataLine: metadataLine,
		statsd:       client,
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

type sample struct {
	system  *procstats.System
	process *procstats.Process
}

func collect() (*sample, error) {
	sys, err := procstats.ReadSystemStats()
	if err != nil {
		return nil, err
	}
	proc, err := procstats.ReadProcessStats()
	if err != nil {
		return nil, err
	}
	return &sample{system: sys, process: proc}, nil
}

func (m *metricsWorker) start() {
	prev, err := collect()
	if err != nil {
		log.Error("metrics: initial sample failed: %v", err)
	}

	go func() {
		defer close(m.stopped)
		ticker := time.NewTicker(metricsSampleInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.done:
				return
			case <-ticker.C:
				cur, err := collect()
				if err != nil {
					log.Error("metrics: sample failed: %v", err)
					continue
				}
				if prev != nil {
					m.emit(prev, cur)
				}
				prev = cur
			}
		}
	}()
}

func (m *metricsWorker) shutdown() {
	close(m.done)
	<-m.stopped
	if m.statsd != nil {
		_ = m.statsd.Close()
	}
}

type metricGauge struct {
	Value float64 `json:"value"`
	Type  string  `json:"type"`
}

type metricSet struct {
	Timestamp int64                  `json:"timestamp"`
	Samples   map[string]metricGauge `json:"samples"`
}

// emit computes the deltas between two consecutive samples and POSTs a
// single metricset NDJSON line, matching apm_dump_metrics/apm_stats_to_json.
func (m *metricsWorker) emit(prev, cur *sample) {
	cpuTotalDelta := cur.system.CPUTotal - prev.system.CPUTotal
	cpuUsageDelta := cur.system.CPUUsage - prev.system.CPUUsage
	procTotalDelta := cur.process.ProcTotalTime - prev.process.ProcTotalTime

	var sysPct, procPct float64
	if cpuTotalDelta != 0 {
		sysPct = cpuUsageDelta / cpuTotalDelta
		procPct = procTotalDelta / cpuTotalDelta
	}

	pageSize := float64(os.Getpagesize())
	rssBytes := cur.process.RSS * pageSize

	set := metricSet{
		Timestamp: ids.NowMicros(),
		Samples: map[string]metricGauge{
			"system.cpu.total.norm.pct":         {Value: sysPct, Type: "gauge"},
			"system.process.cpu.total.norm.pct": {Value: procPct, Type: "gauge"},
			"system.process.memory.size":        {Value: cur.process.Vsize, Type: "gauge"},
			"system.process.memory.rss.bytes":   {Value: rssBytes, Type: "gauge"},
		},
	}

	body, err := json.Marshal(map[string]interface{}{"metricset": set})
	if err != nil {
		log.Error("metrics: marshal failed: %v", err)
		return
	}

	payload := make([]byte, 0, len(m.metadataLine)+len(body)+1)
	payload = append(payload, m.metadataLine...)
	payload = append(payload, body...)
	payload = append(payload, '\n')

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := m.transport.PostNDJSON(ctx, "/intake/v2/metrics", payload)
	if err != nil {
		log.Error("metrics: POST failed: %v", err)
	} else {
		defer resp.Close()
		if !resp.Accepted() {
			log.Error("metrics: intake rejected metricset with status %d", resp.StatusCode)
		}
	}

	if m.statsd != nil {
		_ = m.statsd.Gauge("system.cpu.total.norm.pct", sysPct, nil, 1)
		_ = m.statsd.Gauge("system.process.cpu.total.norm.pct", procPct, nil, 1)
		_ = m.statsd.Gauge("system.process.memory.size", cur.process.Vsize, nil, 1)
		_ = m.statsd.Gauge("system.process.memory.rss.bytes", rssBytes, nil, 1)
	}
}
