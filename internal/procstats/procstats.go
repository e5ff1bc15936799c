// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Package procstats reads process and system CPU/memory counters.
//
// Grounded on original_source/src/apm_cpulinux.c (direct /proc/stat and
// /proc/self/stat parsing). A gopsutil-backed fallback covers platforms
// where those files don't exist, extending spec §4.5 to non-Linux hosts
// without changing the Linux wire values.
package procstats

import (
	"bufio"
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/hansenhahn/terra-apm-agent-go/internal/log"
)

const (
	sysStatsPath  = "/proc/stat"
	procStatsPath = "/proc/self/stat"
)

// System holds aggregate CPU jiffie counters, matching apm_system_stats_t.
type System struct {
	CPUTotal float64
	CPUUsage float64
}

// Process holds this process's CPU/memory counters, matching
// apm_process_stats_t.
type Process struct {
	UTime         float64
	STime         float64
	ProcTotalTime float64
	Vsize         float64
	RSS           float64
}

// ReadSystemStats reads /proc/stat's aggregate CPU line, falling back to
// gopsutil on non-Linux hosts.
func ReadSystemStats() (*System, error) {
	if runtime.GOOS != "linux" {
		return readSystemStatsGopsutil()
	}

	f, err := os.Open(sysStatsPath)
	if err != nil {
		log.Error("procstats: open %s failed: %v", sysStatsPath, err)
		return readSystemStatsGopsutil()
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, fmt.Errorf("procstats: %s empty", sysStatsPath)
	}

	var label string
	var user, nice, sys, idle, iowait, irq, softirq, steal uint64
	_, err = fmt.Sscanf(scanner.Text(), "%s %d %d %d %d %d %d %d %d",
		&label, &user, &nice, &sys, &idle, &iowait, &irq, &softirq, &steal)
	if err != nil {
		return nil, fmt.Errorf("procstats: parse %s: %w", sysStatsPath, err)
	}

	total := float64(user + nice + sys + idle + iowait + irq + softirq + steal)
	return &System{
		CPUTotal: total,
		CPUUsage: total - float64(idle+iowait),
	}, nil
}

func readSystemStatsGopsutil() (*System, error) {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return nil, fmt.Errorf("procstats: gopsutil cpu.Times failed: %w", err)
	}
	t := times[0]
	total := t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal
	return &System{CPUTotal: total, CPUUsage: total - t.Idle - t.Iowait}, nil
}

// ReadProcessStats reads /proc/self/stat's utime/stime/vsize/rss fields,
// falling back to gopsutil on non-Linux hosts.
func ReadProcessStats() (*Process, error) {
	if runtime.GOOS != "linux" {
		return readProcessStatsGopsutil()
	}

	data, err := os.ReadFile(procStatsPath)
	if err != nil {
		log.Error("procstats: read %s failed: %v", procStatsPath, err)
		return readProcessStatsGopsutil()
	}

	var pid int
	var comm, state string
	var ppid, pgrp, session, ttyNr, tpgid int
	var flags uint
	var minflt, cminflt, majflt, cmajflt, utime, stime uint64
	_, err = fmt.Sscanf(string(data),
		"%d %s %s %d %d %d %d %d %d %d %d %d %d %d %d",
		&pid, &comm, &state, &ppid, &pgrp, &session, &ttyNr, &tpgid,
		&flags, &minflt, &cminflt, &majflt, &cmajflt, &utime, &stime)
	if err != nil {
		return nil, fmt.Errorf("procstats: parse %s: %w", procStatsPath, err)
	}

	vsize, rss := readVsizeRSS(data)

	return &Process{
		UTime:         float64(utime),
		STime:         float64(stime),
		ProcTotalTime: float64(utime + stime),
		Vsize:         vsize,
		RSS:           rss,
	}, nil
}

// readVsizeRSS extracts fields 23 (vsize) and 24 (rss) of /proc/self/stat,
// matching apm_cpulinux.c's fscanf field-skip pattern. Field 2 (comm) may
// itself contain spaces inside parentheses, so this walks past the closing
// paren before counting remaining whitespace-separated fields.
func readVsizeRSS(data []byte) (vsize, rss float64) {
	closeParen := -1
	for i := len(data) - 1; i >= 0; i-- {
		if data[i] == ')' {
			closeParen = i
			break
		}
	}
	if closeParen < 0 {
		return 0, 0
	}

	rest := data[closeParen+1:]
	var fields [50]string
	n := 0
	start := -1
	for i, c := range rest {
		if c == ' ' || c == '\n' || c == '\t' {
			if start >= 0 {
				if n < len(fields) {
					fields[n] = string(rest[start:i])
				}
				n++
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 && n < len(fields) {
		fields[n] = string(rest[start:])
		n++
	}

	// fields[0] is state (field 3 overall); vsize is field 23 (index 20
	// here), rss is field 24 (index 21).
	if n > 21 {
		fmt.Sscanf(fields[20], "%f", &vsize)
		fmt.Sscanf(fields[21], "%f", &rss)
	}
	return vsize, rss
}

func readProcessStatsGopsutil() (*Process, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("procstats: gopsutil process lookup failed: %w", err)
	}
	times, err := p.Times()
	if err != nil {
		return nil, fmt.Errorf("procstats: gopsutil process.Times failed: %w", err)
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return nil, fmt.Errorf("procstats: gopsutil MemoryInfo failed: %w", err)
	}
	return &Process{
		UTime:         times.User,
		STime:         times.System,
		ProcTotalTime: times.User + times.System,
		Vsize:         float64(mem.VMS),
		RSS:           float64(mem.RSS) / float64(os.Getpagesize()),
	}, nil
}
