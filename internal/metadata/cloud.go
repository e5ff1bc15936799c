// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Cloud-provider metadata probing.
//
// The original (apm_cloud.c) only implements the Azure IMDS probe for real;
// apm_get_gcp_cloud_metadata and apm_get_aws_cloud_metadata are stubs that
// return an empty struct, and apm_new_metadata always calls the Azure path
// regardless of where the process is actually running (spec §9's open
// question). This resolves that question as spec §9 itself suggests:
// probe each provider with a timeout, and leave Cloud nil if every probe
// fails.
package metadata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/compute/metadata"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"

	"github.com/hansenhahn/terra-apm-agent-go/internal/log"
)

const probeTimeout = 300 * time.Millisecond

// CloudProvider names which provider-specific probe to attempt.
type CloudProvider int

const (
	CloudAWS CloudProvider = iota
	CloudGCP
	CloudAzure
)

// ProbeCloud tries each requested provider in order and returns the first
// one that answers, or nil if all fail or none were requested.
func ProbeCloud(providers []CloudProvider) *Cloud {
	for _, p := range providers {
		var c *Cloud
		switch p {
		case CloudAWS:
			c = probeAWS()
		case CloudGCP:
			c = probeGCP()
		case CloudAzure:
			c = probeAzure()
		}
		if c != nil {
			return c
		}
	}
	return nil
}

func probeAWS() *Cloud {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Debug("metadata: aws config load failed: %v", err)
		return nil
	}
	client := imds.NewFromConfig(cfg)

	doc, err := client.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
	if err != nil {
		log.Debug("metadata: aws imds probe failed: %v", err)
		return nil
	}

	c := &Cloud{Provider: "aws", Region: doc.Region, AvailabilityZone: doc.AvailabilityZone}
	c.Account.ID = doc.AccountID
	c.Instance.ID = doc.InstanceID
	c.Machine.Type = doc.InstanceType
	return c
}

func probeGCP() *Cloud {
	if !metadata.OnGCE() {
		return nil
	}
	c := &Cloud{Provider: "gcp"}
	if zone, err := metadata.Zone(); err == nil {
		c.AvailabilityZone = zone
	}
	if id, err := metadata.InstanceID(); err == nil {
		c.Instance.ID = id
	}
	if name, err := metadata.InstanceName(); err == nil {
		c.Instance.Name = name
	}
	if proj, err := metadata.ProjectID(); err == nil {
		c.Project.Name = proj
	}
	if mtype, err := metadata.Get("instance/machine-type"); err == nil {
		c.Machine.Type = mtype
	}
	return c
}

type azureDoc struct {
	SubscriptionID    string `json:"subscriptionId"`
	VMID              string `json:"vmId"`
	Name              string `json:"name"`
	ResourceGroupName string `json:"resourceGroupName"`
	Zone              string `json:"zone"`
	VMSize            string `json:"vmSize"`
	Location          string `json:"location"`
}

func probeAzure() *Cloud {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"http://169.254.169.254/metadata/instance/compute?api-version=2019-08-15", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Metadata", "true")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Debug("metadata: azure imds probe failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	var doc azureDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		log.Debug("metadata: azure imds decode failed: %v", err)
		return nil
	}

	c := &Cloud{Provider: "azure", Region: doc.Location, AvailabilityZone: doc.Zone}
	c.Account.ID = doc.SubscriptionID
	c.Instance.ID = doc.VMID
	c.Instance.Name = doc.Name
	c.Project.Name = doc.ResourceGroupName
	c.Machine.Type = doc.VMSize
	return c
}
