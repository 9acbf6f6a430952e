package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/faucetdb/acctd/internal/client"
)

func newRPCCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "rpc",
		Short: "Call the lookup RPCs of a running server",
	}

	cmd.PersistentFlags().StringVar(&serverURL, "url", "http://127.0.0.1:8080", "Base URL of the acctd server")

	cmd.AddCommand(newRPCLookupCmd(&serverURL))
	cmd.AddCommand(newRPCTokenCmd(&serverURL))

	return cmd
}

// ---------- rpc lookup ----------

func newRPCLookupCmd(serverURL *string) *cobra.Command {
	var (
		email     string
		password  string
		probe     bool
		directory bool
	)

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Call lookup_account",
		Example: `  acctd rpc lookup --email alice@example.org            # prompts for password
  acctd rpc lookup --email alice@example.org --probe    # account id only
  acctd rpc lookup --email jdoe --directory             # directory credentials`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(*serverURL)
			out := cmd.OutOrStdout()

			if probe {
				reply, err := c.LookupAccount(cmd.Context(), email, "")
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "account id: %d\n", reply.ID)
				return nil
			}

			if password == "" {
				pw, err := readPassword()
				if err != nil {
					return err
				}
				password = pw
			}

			if directory {
				reply, err := c.LookupDirectory(cmd.Context(), email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "authenticator: %s\n", reply.Authenticator)
				return nil
			}

			reply, err := c.LookupAccount(cmd.Context(), email, client.PasswdHash(password, email))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "authenticator: %s\n", reply.Authenticator)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email address, or directory uid with --directory (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().BoolVar(&probe, "probe", false, "Only check that the account exists")
	cmd.Flags().BoolVar(&directory, "directory", false, "Authenticate against the server's directory")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagsMutuallyExclusive("probe", "directory")

	return cmd
}

func readPassword() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("no terminal to prompt for a password; pass --password")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if strings.TrimSpace(string(pw)) == "" {
		return "", errors.New("empty password")
	}
	return string(pw), nil
}

// ---------- rpc token ----------

func newRPCTokenCmd(serverURL *string) *cobra.Command {
	var (
		id    int64
		token string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Call login_token_lookup",
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := client.New(*serverURL).LoginTokenLookup(cmd.Context(), id, token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "weak auth: %s\n", reply.WeakAuth)
			fmt.Fprintf(cmd.OutOrStdout(), "user name: %s\n", reply.UserName)
			return nil
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "Account id (required)")
	cmd.Flags().StringVar(&token, "token", "", "Login token (required)")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("token")

	return cmd
}
