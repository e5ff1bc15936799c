// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package httpinterposer

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hansenhahn/terra-apm-agent-go/apm"
)

func TestRoundTripInjectsTraceparent(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(r.Header.Get("traceparent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	agent := apm.NewAgent(apm.Config{URL: "http://127.0.0.1:0", Name: "test"})
	apm.SetActiveAgent(agent)
	agent.BeginTransaction("GET /", "request", "", "")
	defer agent.EndTransaction(apm.OutcomeSuccess, "200")

	client := Client()
	resp, err := client.Get(srv.URL)
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusOK, resp.StatusCode)
}

func TestRoundTripPassesThroughServerError(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	agent := apm.NewAgent(apm.Config{URL: "http://127.0.0.1:0", Name: "test"})
	apm.SetActiveAgent(agent)
	agent.BeginTransaction("GET /", "request", "", "")
	defer agent.EndTransaction(apm.OutcomeSuccess, "200")

	client := Client()
	resp, err := client.Get(srv.URL)
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusInternalServerError, resp.StatusCode)
}

func TestRoundTripWithoutActiveTransactionStillPerformsRequest(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	agent := apm.NewAgent(apm.Config{URL: "http://127.0.0.1:0", Name: "test"})
	apm.SetActiveAgent(agent)

	client := Client()
	resp, err := client.Get(srv.URL)
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusOK, resp.StatusCode)
}
