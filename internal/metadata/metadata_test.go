// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildWithoutCloudProbing(t *testing.T) {
	md := Build("checkout", "production", "1.2.3", nil)

	assert.Equal(t, "checkout", md.Service.Name)
	assert.Equal(t, "production", md.Service.Environment)
	assert.Equal(t, "1.2.3", md.Service.Version)
	assert.Equal(t, agentName, md.Service.Agent.Name)
	assert.Nil(t, md.Cloud, "no providers requested, no probe attempted")
}

func TestContainerOmittedWhenEmpty(t *testing.T) {
	md := Build("svc", "", "", nil)
	assert.Nil(t, md.System.Container)
}
