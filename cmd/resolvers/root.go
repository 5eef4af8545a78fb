package main

import (
	"sync"

	"github.com/spf13/cobra"
)

// annotationStructuredLog marks long-running commands whose fatal errors are
// logged as structured records instead of plain text.
const annotationStructuredLog = "resolvers.structured-log"

var rootCmd = &cobra.Command{
	Use:           "resolvers",
	Short:         "SaaS connector resolvers: CRUD operations and polling subscriptions.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		setCommandExecutionContext(commandExecutionContext{
			CommandPath:       cmd.CommandPath(),
			UsesStructuredLog: commandUsesStructuredLogging(cmd),
		})
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(pollCmd, invokeCmd, listCmd, infobloxMockCmd)
}

type commandExecutionContext struct {
	CommandPath       string
	UsesStructuredLog bool
}

var (
	executionMu      sync.Mutex
	executionContext commandExecutionContext
)

func setCommandExecutionContext(ctx commandExecutionContext) {
	executionMu.Lock()
	defer executionMu.Unlock()
	executionContext = ctx
}

func resetCommandExecutionContext() {
	setCommandExecutionContext(commandExecutionContext{})
}

func currentCommandExecutionContext() commandExecutionContext {
	executionMu.Lock()
	defer executionMu.Unlock()
	return executionContext
}

func structuredLogging() map[string]string {
	return map[string]string{annotationStructuredLog: "true"}
}

func commandUsesStructuredLogging(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationStructuredLog] == "true" {
			return true
		}
	}
	return false
}
