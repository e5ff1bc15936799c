// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Package metadata builds the one-shot service/process/system/cloud
// snapshot emitted as the first NDJSON line of every intake batch.
//
// Grounded on original_source/src/apm_metadata.c.
package metadata

import (
	"os"
	"runtime"

	"github.com/hansenhahn/terra-apm-agent-go/internal/ids"
)

const (
	agentName    = "terra-apm-agent-go"
	agentVersion = "1.0.0"
)

// Service describes the instrumented application, matching
// apm_new_service's fields.
type Service struct {
	Name                string `json:"name"`
	Environment         string `json:"environment,omitempty"`
	Version             string `json:"version,omitempty"`
	Agent               Agent  `json:"agent"`
	Language            Lang   `json:"language"`
	Runtime             Lang   `json:"runtime"`
}

// Agent identifies this instrumentation library.
type Agent struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	ActivationMethod  string `json:"activation_method"`
}

// Lang names a language or runtime and its version.
type Lang struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Process describes the OS process, matching apm_new_process.
type Process struct {
	PID   int    `json:"pid"`
	PPID  int    `json:"ppid"`
	Title string `json:"title,omitempty"`
}

// Container describes the cgroup container id, when detected.
type Container struct {
	ID string `json:"id"`
}

// System describes the host, matching apm_new_system.
type System struct {
	DetectedHostname string     `json:"detected_hostname"`
	Architecture     string     `json:"architecture"`
	Platform         string     `json:"platform"`
	Container        *Container `json:"container,omitempty"`
}

// Cloud describes the detected cloud provider, matching apm_cloud_t. Nil
// means no provider could be confirmed (see cloud.go decision 2 in
// DESIGN.md), superseding the original's always-report-azure fallback.
type Cloud struct {
	Provider         string `json:"provider"`
	Region           string `json:"region,omitempty"`
	AvailabilityZone string `json:"availability_zone,omitempty"`
	Account          struct {
		ID string `json:"id,omitempty"`
	} `json:"account"`
	Instance struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"instance"`
	Project struct {
		Name string `json:"name,omitempty"`
	} `json:"project"`
	Machine struct {
		Type string `json:"type,omitempty"`
	} `json:"machine"`
}

// Metadata is the full snapshot, the payload of the NDJSON "metadata" line.
type Metadata struct {
	Service Service `json:"service"`
	Process Process `json:"process"`
	System  System  `json:"system"`
	Cloud   *Cloud  `json:"cloud,omitempty"`
}

// Build takes a one-shot snapshot, probing cloud metadata with the given
// providers (see cloud.go). Pass nil providers to skip cloud detection
// entirely (e.g. in tests or bypass mode).
func Build(name, environment, version string, providers []CloudProvider) Metadata {
	md := Metadata{
		Service: Service{
			Name:        name,
			Environment: environment,
			Version:     version,
			Agent: Agent{
				Name:             agentName,
				Version:          agentVersion,
				ActivationMethod: "unknown",
			},
			Language: Lang{Name: "Go", Version: runtime.Version()},
			Runtime:  Lang{Name: "go", Version: runtime.Version()},
		},
		Process: Process{
			PID:  os.Getpid(),
			PPID: os.Getppid(),
		},
		System: System{
			DetectedHostname: ids.FQDN(),
			Architecture:     runtime.GOARCH,
			Platform:         runtime.GOOS,
		},
	}

	if cloud := ProbeCloud(providers); cloud != nil {
		md.Cloud = cloud
	}

	return md
}
