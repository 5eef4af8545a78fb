package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/open-sspm/resolvers/internal/resolver"
)

func TestEmitCommandError_StructuredForLongRunningCommands(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "info")
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "resolvers poll",
		UsesStructuredLog: true,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	emitCommandError(errors.New("boom"), "command failed", 1, &out)

	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &payload); err != nil {
		t.Fatalf("json.Unmarshal(%q) error = %v", out.String(), err)
	}
	if got := payload["app"]; got != "resolvers" {
		t.Fatalf("app = %v, want %q", got, "resolvers")
	}
	if got := payload["command"]; got != "resolvers poll" {
		t.Fatalf("command = %v, want %q", got, "resolvers poll")
	}
	if got := payload["exit_code"]; got != float64(1) {
		t.Fatalf("exit_code = %v, want %v", got, 1)
	}
	if got := payload["error"]; got != "boom" {
		t.Fatalf("error = %v, want %q", got, "boom")
	}
}

func TestEmitCommandError_IncludesResolverKindAndCode(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "info")
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "resolvers poll",
		UsesStructuredLog: true,
	})
	t.Cleanup(resetCommandExecutionContext)

	verr := resolver.Vendorf(resolver.CodeAlreadyExists, "duplicate host")
	verr.Status = 400
	var out bytes.Buffer
	emitCommandError(fmt.Errorf("infoblox host_records: %w", verr), "command failed", exitCodeFailure, &out)

	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &payload); err != nil {
		t.Fatalf("json.Unmarshal(%q) error = %v", out.String(), err)
	}
	if got := payload["kind"]; got != "vendor" {
		t.Fatalf("kind = %v, want %q", got, "vendor")
	}
	if got := payload["code"]; got != resolver.CodeAlreadyExists {
		t.Fatalf("code = %v, want %q", got, resolver.CodeAlreadyExists)
	}
	if got := payload["status"]; got != float64(400) {
		t.Fatalf("status = %v, want %v", got, 400)
	}
}

func TestEmitCommandError_FallsBackToJSONWhenLoggingEnvInvalid(t *testing.T) {
	t.Setenv("LOG_FORMAT", "invalid")
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "resolvers infoblox-mock",
		UsesStructuredLog: true,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	emitCommandError(errors.New("boom"), "command failed", 1, &out)

	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &payload); err != nil {
		t.Fatalf("expected JSON fallback log, got parse error: %v", err)
	}
}

func TestEmitCommandError_PlainOutputForInteractiveCommands(t *testing.T) {
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "resolvers invoke",
		UsesStructuredLog: false,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	emitCommandError(errors.New("plain boom"), "command failed", 1, &out)
	if got := out.String(); got != "plain boom\n" {
		t.Fatalf("output = %q, want %q", got, "plain boom\n")
	}
}

func TestExitCodeForError(t *testing.T) {
	resetCommandExecutionContext()

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{name: "plain", err: errors.New("nope"), wantCode: 1, wantOut: "nope\n"},
		{name: "canceled", err: fmt.Errorf("poll: %w", context.Canceled), wantCode: exitCodeCanceled, wantOut: "canceled\n"},
		{name: "silent exit", err: resultExit(), wantCode: 1, wantOut: ""},
		{name: "loud exit", err: &exitError{code: 3, err: errors.New("bad flags")}, wantCode: 3, wantOut: "bad flags\n"},
		{name: "usage", err: usageError("unknown connector %q", "acme"), wantCode: exitCodeUsage, wantOut: "unknown connector \"acme\"\n"},
		{name: "resolver config", err: fmt.Errorf("load: %w", resolver.Configf("zoom base url is not configured")), wantCode: exitCodeConfig, wantOut: "load: zoom base url is not configured\n"},
		{name: "resolver vendor", err: resolver.Vendorf(resolver.CodeNotFound, "gone"), wantCode: exitCodeFailure, wantOut: "gone\n"},
	}
	for _, tc := range tests {
		var out bytes.Buffer
		if got := exitCodeForError(tc.err, &out); got != tc.wantCode {
			t.Fatalf("%s: code = %d, want %d", tc.name, got, tc.wantCode)
		}
		if got := out.String(); got != tc.wantOut {
			t.Fatalf("%s: output = %q, want %q", tc.name, got, tc.wantOut)
		}
	}
}

func TestRunMainReturnsZeroOnSuccess(t *testing.T) {
	var out bytes.Buffer
	if got := runMain(func() error { return nil }, &out); got != 0 || out.Len() != 0 {
		t.Fatalf("runMain = %d (%q), want 0", got, out.String())
	}
	if got := runMain(func() error { return resultExit() }, &out); got != 1 || strings.TrimSpace(out.String()) != "" {
		t.Fatalf("runMain = %d (%q), want silent 1", got, out.String())
	}
}
