package main

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
)

func TestInvocationAttributes(t *testing.T) {
	t.Parallel()

	got, err := invocationAttributes(
		`{"fields":{"Name":"Ada"},"tags":"a"}`,
		[]string{"tags=b", "tags=c", "subject=Printer = down"},
		" 42 ",
		"/tickets/42",
	)
	if err != nil {
		t.Fatalf("invocationAttributes error = %v", err)
	}
	want := instance.Attributes{
		"fields":         map[string]any{"Name": "Ada"},
		"tags":           "b,c",
		"subject":        "Printer = down",
		"id":             "42",
		resolver.PathKey: "/tickets/42",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("attrs = %#v, want %#v", got, want)
	}
}

func TestInvocationAttributesRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	if _, err := invocationAttributes("", []string{"novalue"}, "", ""); err == nil {
		t.Fatal("expected error for pair without '='")
	}
	if _, err := invocationAttributes("", []string{"=x"}, "", ""); err == nil {
		t.Fatal("expected error for empty key")
	}
	if _, err := invocationAttributes("[1]", nil, "", ""); err == nil || !strings.Contains(err.Error(), "--attrs-json") {
		t.Fatalf("error = %v, want --attrs-json error", err)
	}
}

func TestWriteResult(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	res := resolver.One(instance.Make("stripe", "customer", instance.Attributes{"id": "cus_1"}))
	if err := writeResult(&out, res); err != nil {
		t.Fatalf("writeResult error = %v", err)
	}
	if got := out.String(); !strings.Contains(got, `"cus_1"`) || strings.Count(got, "\n") != 1 {
		t.Fatalf("output = %q, want one compact JSON line", got)
	}

	out.Reset()
	if err := writeResult(&out, resolver.Fail(resolver.Validationf("missing required field(s): email"))); err != nil {
		t.Fatalf("writeResult error = %v", err)
	}
	if got := out.String(); !strings.Contains(got, `"result":"error"`) || !strings.Contains(got, "email") {
		t.Fatalf("output = %q, want error payload", got)
	}
}

func TestDescribeHandlersIsSorted(t *testing.T) {
	t.Parallel()

	hs := resolver.Handlers{
		{Entity: "ticket", Verb: resolver.VerbQuery},
		{Entity: "contact", Verb: resolver.VerbCreate},
	}
	if got := describeHandlers(hs); got != "contact create, ticket query" {
		t.Fatalf("describeHandlers = %q", got)
	}
}
