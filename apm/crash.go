// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Crash handler: a best-effort path that captures the current transaction,
// synthesizes an error, and delivers it out-of-process, spec §4.6.
//
// Grounded on original_source/src/apm_crash.c. Two things differ from the C
// original by necessity, both already anticipated by spec §9's own design
// notes:
//   - There is no per-architecture RIP/EIP register to splice into frame #1:
//     a Go nil-pointer dereference or out-of-bounds access surfaces as a
//     recoverable runtime.Error panic with its own correct stack already
//     attached, so there is nothing to patch.
//   - Signal delivery differs: Go's runtime treats real memory-fault signals
//     (SIGSEGV from an actual invalid access) as fatal before user code runs,
//     so the equivalent hook point is a deferred recover() in instrumented
//     goroutines, not an installed SIGSEGV action. os/signal.Notify still
//     covers an externally delivered SIGABRT for parity with the original's
//     signal set.
package apm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"time"

	"golang.org/x/sys/unix"

	"github.com/hansenhahn/terra-apm-agent-go/internal/ids"
	"github.com/hansenhahn/terra-apm-agent-go/internal/log"
	"github.com/hansenhahn/terra-apm-agent-go/internal/stackresolver"
)

type crashHandler struct {
	agent *Agent
	sigCh chan os.Signal
	done  chan struct{}
}

func newCrashHandler(a *Agent) *crashHandler {
	return &crashHandler{
		agent: a,
		sigCh: make(chan os.Signal, 1),
		done:  make(chan struct{}),
	}
}

func (h *crashHandler) install() {
	signal.Notify(h.sigCh, unix.SIGABRT)
	go func() {
		for {
			select {
			case sig := <-h.sigCh:
				h.handle(sig.String(), "received fatal signal")
				signal.Stop(h.sigCh)
				// Re-raise so the process exits the way it would have
				// without instrumentation — the handler does not swallow
				// termination, only reports ahead of it.
				_ = unix.Kill(os.Getpid(), unix.SIGABRT)
				return
			case <-h.done:
				return
			}
		}
	}()
}

func (h *crashHandler) uninstall() {
	signal.Stop(h.sigCh)
	close(h.done)
}

// RecoverAndReport is meant to be deferred at the top of any goroutine the
// host spawns. On a panic it reports the panic as a crash-path error and
// re-panics, preserving Go's normal fatal-panic behavior while still
// delivering telemetry first — the Go analogue of apm_crash.c's signal
// handler, entered via defer/recover instead of sigaction.
func (a *Agent) RecoverAndReport() {
	if r := recover(); r != nil {
		if a.crash != nil {
			a.crash.handle("panic", fmt.Sprint(r))
		}
		panic(r)
	}
}

// handle synthesizes an error from the current transaction and delivers it
// out-of-process, matching apm_crash.c steps 3-6. All work here is
// best-effort; failures are logged and swallowed, never escalated.
func (h *crashHandler) handle(signalName, message string) {
	frames := stackresolver.Capture(2)

	tx := h.agent.detachCurrentTransaction()
	if tx == nil {
		log.Error("crash: no active transaction, nothing to report")
		return
	}

	errID := ids.NewErrorID()
	parentID := tx.ID
	if pending := tx.pendingSpan(); pending != nil {
		parentID = pending.ID
	}

	tx.Errors = append(tx.Errors, &Error{
		ID:            errID,
		TransactionID: tx.ID,
		TraceID:       tx.TraceID,
		ParentID:      parentID,
		Culprit:       stackresolver.Culprit(frames),
		Timestamp:     ids.NowMicros(),
		Exception: Exception{
			Type:       signalName,
			Message:    message,
			Handled:    false,
			Stacktrace: framesToStacktrace(frames),
		},
	})

	tx.end(OutcomeFailure, "")

	payload, err := SerializeTransaction(tx)
	if err != nil {
		log.Error("crash: serialize failed: %v", err)
		return
	}
	full := make([]byte, 0, len(h.agent.metadataLine)+len(payload))
	full = append(full, h.agent.metadataLine...)
	full = append(full, payload...)

	h.deliverOutOfProcess(full)
}

// deliverOutOfProcess forks gzip -c | curl -X POST ... and writes the
// payload to its stdin, matching apm_crash.c step 6's "two independent
// binaries" rationale: at crash time the in-process HTTP client state may
// itself be corrupted, so delivery is delegated to external processes.
func (h *crashHandler) deliverOutOfProcess(payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := h.agent.cfg.URL + "/intake/v2/events"
	shellCmd := fmt.Sprintf(
		"gzip -c | curl -s -X POST %q -H %q -H %q -H %q --data-binary @-",
		url,
		"Content-Type: application/x-ndjson",
		"Content-Encoding: gzip",
		"Authorization: Bearer "+h.agent.cfg.Token,
	)

	cmd := exec.CommandContext(ctx, "sh", "-c", shellCmd)
	cmd.Stdin = bytes.NewReader(payload)

	if err := cmd.Run(); err != nil {
		log.Error("crash: out-of-process delivery failed: %v", err)
	}
}
