package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/open-sspm/resolvers/internal/connectors/registry"
	"github.com/spf13/cobra"
)

var listHandlers bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List connectors and whether their credentials are configured.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd.Context(), cmd.CommandPath(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		return writeConnectorList(cmd.OutOrStdout(), rt.reg, rt.deps, listHandlers)
	},
}

func init() {
	listCmd.Flags().BoolVar(&listHandlers, "handlers", false, "Also list each connector's entity operations")
}

func writeConnectorList(w io.Writer, reg *registry.ConnectorRegistry, deps registry.Deps, withHandlers bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := "KIND\tNAME\tSTATUS"
	if withHandlers {
		header += "\tOPERATIONS"
	}
	fmt.Fprintln(tw, header)

	for _, state := range reg.States(deps) {
		def := state.Definition
		line := fmt.Sprintf("%s\t%s\t%s", def.Kind(), def.DisplayName(), state.StatusLabel())
		if withHandlers {
			conn, err := def.New(deps)
			if err != nil {
				return fmt.Errorf("%s: %w", def.Kind(), err)
			}
			line += "\t" + strings.ReplaceAll(describeHandlers(conn.Handlers()), ", ", ",")
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}
