package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	invokeAttrs     []string
	invokeAttrsJSON string
	invokeID        string
	invokePath      string
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <connector> <entity> <verb>",
	Short: "Run one CRUD operation and print the result as JSON.",
	Example: `  resolvers invoke zendesk ticket create -a subject="Printer down" -a comment="Third floor"
  resolvers invoke github issue query --id acme/api#7
  resolvers invoke infoblox host_record query -a name=web.example.com`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		attrs, err := invocationAttributes(invokeAttrsJSON, invokeAttrs, invokeID, invokePath)
		if err != nil {
			return err
		}
		return runInvoke(cmd.Context(), cmd, args[0], args[1], args[2], attrs)
	},
}

func init() {
	invokeCmd.Flags().StringArrayVarP(&invokeAttrs, "attr", "a", nil, "Attribute as key=value (repeatable; repeated keys are comma-joined)")
	invokeCmd.Flags().StringVar(&invokeAttrsJSON, "attrs-json", "", "Attributes as a JSON object, applied before --attr")
	invokeCmd.Flags().StringVar(&invokeID, "id", "", "Shorthand for --attr id=<id>")
	invokeCmd.Flags().StringVar(&invokePath, "path", "", "Request path whose last segment identifies the entity")
}

func runInvoke(parent context.Context, cmd *cobra.Command, kind, entity, verb string, attrs instance.Attributes) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := loadRuntime(ctx, cmd.CommandPath(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	def, ok := rt.reg.Get(kind)
	if !ok {
		return usageError("unknown connector %q (known: %s)", kind, strings.Join(rt.reg.Kinds(), ", "))
	}
	conn, err := def.New(rt.deps)
	if err != nil {
		return err
	}
	handlers := conn.Handlers()
	h, ok := handlers.Find(entity, verb)
	if !ok {
		return usageError("%s has no %s operation for %q (available: %s)", def.Kind(), verb, entity, describeHandlers(handlers))
	}

	res := h.Invoke(ctx, def.Kind(), attrs)
	if err := writeResult(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if res.IsError() {
		return resultExit()
	}
	return nil
}

// invocationAttributes merges the JSON object, then key=value pairs, then the id and path shorthands.
func invocationAttributes(rawJSON string, pairs []string, id, path string) (instance.Attributes, error) {
	attrs := instance.Attributes{}
	if strings.TrimSpace(rawJSON) != "" {
		if err := json.Unmarshal([]byte(rawJSON), &attrs); err != nil {
			return nil, fmt.Errorf("--attrs-json: %w", err)
		}
	}
	seen := map[string]bool{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("--attr %q: want key=value", pair)
		}
		if prev, isString := attrs[key].(string); seen[key] && isString {
			value = prev + "," + value
		}
		attrs[key] = value
		seen[key] = true
	}
	if id = strings.TrimSpace(id); id != "" {
		attrs["id"] = id
	}
	if path = strings.TrimSpace(path); path != "" {
		attrs[resolver.PathKey] = path
	}
	return attrs, nil
}

func describeHandlers(hs resolver.Handlers) string {
	names := make([]string, 0, len(hs))
	for _, h := range hs {
		names = append(names, h.Entity+" "+h.Verb)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// writeResult prints the result payload, indented when w is a terminal.
func writeResult(w io.Writer, res resolver.Result) error {
	enc := json.NewEncoder(w)
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(resolver.Payload(res))
}
