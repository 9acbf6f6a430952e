package cli

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faucetdb/acctd/internal/store"
)

func newVersionCmd(version, commit, date string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]any{
				"version":    version,
				"commit":     commit,
				"built":      date,
				"go_version": runtime.Version(),
				"platform":   runtime.GOOS + "/" + runtime.GOARCH,
				"drivers":    store.Drivers(),
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "acctd %s\n", version)
			fmt.Fprintf(out, "  commit:   %s\n", commit)
			fmt.Fprintf(out, "  built:    %s\n", date)
			fmt.Fprintf(out, "  go:       %s (%s)\n", runtime.Version(), info["platform"])
			fmt.Fprintf(out, "  drivers:  %s\n", strings.Join(store.Drivers(), ", "))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	return cmd
}
