// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Package httpinterposer instruments outbound net/http calls as external
// HTTP spans, the Go analogue of the original's libcurl symbol interposer.
//
// Grounded on original_source/src/contrib/apm_stub_libcurl.c's
// curl_easy_setopt/curl_easy_perform pair: there, intercepting libc symbols
// was the only way to observe an application's HTTP calls without its
// cooperation. Go offers a cooperative seam instead — http.RoundTripper —
// so this package wraps an *http.Client's Transport rather than patching
// libc, while reproducing the exact context field set and traceparent
// injection the C stub recorded.
package httpinterposer

import (
	"fmt"
	"net/http"

	"github.com/hansenhahn/terra-apm-agent-go/apm"
	"github.com/hansenhahn/terra-apm-agent-go/internal/ids"
)

// RoundTripper wraps another http.RoundTripper, opening an external/http
// span around each RoundTrip call against the process's active agent.
type RoundTripper struct {
	next  http.RoundTripper
	agent *apm.Agent
}

// Wrap returns a RoundTripper that instruments next using the process-wide
// active agent (apm.ActiveAgent). A nil next defaults to
// http.DefaultTransport.
func Wrap(next http.RoundTripper) *RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &RoundTripper{next: next, agent: apm.ActiveAgent()}
}

// Client returns an *http.Client whose Transport is instrumented, matching
// the stub's interception of every curl_easy_perform call.
func Client() *http.Client {
	return &http.Client{Transport: Wrap(nil)}
}

// RoundTrip opens a span named "<method> <url>" of type "external"/"http",
// injects a traceparent header, performs the request, and records the exact
// context fields apm_stub_libcurl.c's curl_easy_perform recorded after a
// successful call.
func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	name := fmt.Sprintf("%s %s", req.Method, req.URL.String())
	span := rt.agent.BeginSpan(name, "external", "http")
	if span == nil {
		return rt.next.RoundTrip(req)
	}

	req = req.Clone(req.Context())
	req.Header.Set("traceparent", ids.FormatTraceparent(span.TraceID, span.ID))

	resp, err := rt.next.RoundTrip(req)

	outcome := apm.OutcomeSuccess
	if err != nil || (resp != nil && resp.StatusCode >= 400) {
		outcome = apm.OutcomeFailure
	}

	if err == nil && resp != nil {
		span.SetNumber(float64(resp.StatusCode), "http", "status_code")
	}

	url := req.URL.String()
	span.SetString(url, "service", "target", "name")
	span.SetString("http", "service", "target", "type")
	span.SetString(url, "destination", "service", "name")
	span.SetString(url, "destination", "service", "resource")
	span.SetString("external", "destination", "service", "type")
	span.SetString(req.URL.Hostname(), "destination", "address")
	if port := req.URL.Port(); port != "" {
		var p float64
		fmt.Sscanf(port, "%f", &p)
		span.SetNumber(p, "destination", "port")
	}
	span.SetString(url, "http", "url")
	span.SetString(req.Method, "http", "method")

	rt.agent.EndSpan(outcome)

	return resp, err
}
