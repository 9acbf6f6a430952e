package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/faucetdb/acctd/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		baseURL    string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI specification of the lookup RPCs",
		Example: `  acctd openapi
  acctd openapi --base-url https://accounts.example.org -o spec.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := openapi.GenerateRPCSpec(baseURL)
			data, err := json.MarshalIndent(spec, "", "  ")
			if err != nil {
				return fmt.Errorf("encode spec: %w", err)
			}
			data = append(data, '\n')

			if outputFile == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outputFile, data, 0644); err != nil {
				return fmt.Errorf("write spec: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8080", "Server URL to advertise in the spec")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")

	return cmd
}
