// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Command example wires up the agent against a local intake endpoint and
// captures one transaction containing an instrumented HTTP call, recorded
// as a nested span, demonstrating the lifecycle spec §4.1/§4.2 describes.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/hansenhahn/terra-apm-agent-go/apm"
	"github.com/hansenhahn/terra-apm-agent-go/apm/contrib/httpinterposer"
	"github.com/hansenhahn/terra-apm-agent-go/internal/metadata"
)

func main() {
	url := flag.String("url", "http://localhost:8200", "intake base URL")
	token := flag.String("token", "", "intake bearer token")
	flag.Parse()

	agent := apm.NewAgent(apm.Config{
		URL:         *url,
		Token:       *token,
		Name:        "example-service",
		Environment: "development",
		Constraints: apm.Constraints{
			FlushIfError:       true,
			FlushIfMinDuration: 10 * time.Millisecond,
		},
		CloudProviders: []metadata.CloudProvider{metadata.CloudAWS, metadata.CloudGCP, metadata.CloudAzure},
		MetricsEnabled: true,
	})
	apm.SetActiveAgent(agent)
	agent.Run()
	defer agent.Shutdown(context.Background())

	agent.BeginTransaction("GET /widgets", "request", "", "")
	defer agent.EndTransaction(apm.OutcomeSuccess, "200")

	// httpinterposer opens and closes its own span around the call, nested
	// under the transaction started above.
	client := httpinterposer.Client()
	resp, err := client.Get("https://example.com")
	if err != nil {
		agent.CatchError("", "http.Error", err.Error(), true)
		return
	}
	resp.Body.Close()
}
