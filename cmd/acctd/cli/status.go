package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check if an acctd server is ready",
		Long:  "Query the readiness endpoint of a running server, which also checks its account store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, serverURL)
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", "http://127.0.0.1:8080", "Base URL of the acctd server")

	return cmd
}

func runStatus(cmd *cobra.Command, serverURL string) error {
	readyAddr := serverURL + "/readyz"
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, readyAddr, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("server at %s is not responding: %w", serverURL, err)
	}
	defer resp.Body.Close()

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	json.NewDecoder(resp.Body).Decode(&body)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server:  %s (%d)\n", serverURL, resp.StatusCode)
	for name, state := range body.Checks {
		fmt.Fprintf(out, "  %-6s %s\n", name+":", state)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server is not ready")
	}
	return nil
}
