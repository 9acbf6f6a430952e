package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/faucetdb/acctd/internal/directory"
	"github.com/faucetdb/acctd/internal/model"
	"github.com/faucetdb/acctd/internal/service"
	"github.com/faucetdb/acctd/internal/store"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Inspect accounts and issue login tokens",
	}

	cmd.AddCommand(newAccountShowCmd())
	cmd.AddCommand(newAccountIssueTokenCmd())

	return cmd
}

// ---------- account show ----------

func newAccountShowCmd() *cobra.Command {
	var (
		email      string
		id         int64
		reveal     bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show an account",
		Example: `  acctd account show --email alice@example.org
  acctd account show --id 42 --reveal`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (email == "") == (id == 0) {
				return errors.New("specify exactly one of --email or --id")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg, quietLogger(cfg))
			if err != nil {
				return err
			}
			defer st.Close()

			var acct *model.Account
			if email != "" {
				acct, err = st.AccountByEmail(cmd.Context(), email)
			} else {
				acct, err = st.AccountByID(cmd.Context(), id)
			}
			if errors.Is(err, store.ErrNotFound) {
				return errors.New("account not found")
			}
			if err != nil {
				return err
			}

			type accountView struct {
				ID             int64  `json:"id"`
				Email          string `json:"email_addr"`
				Name           string `json:"name"`
				Created        string `json:"created"`
				PasswdHashSet  bool   `json:"passwd_hash_set"`
				LoginTokenTime string `json:"login_token_time,omitempty"`
				Authenticator  string `json:"authenticator,omitempty"`
				WeakAuth       string `json:"weak_auth,omitempty"`
			}
			view := accountView{
				ID:            acct.ID,
				Email:         acct.EmailAddr,
				Name:          acct.Name,
				Created:       time.Unix(acct.CreateTime, 0).UTC().Format(time.RFC3339),
				PasswdHashSet: acct.HasPasswdHash(),
			}
			if acct.LoginTokenTime > 0 {
				view.LoginTokenTime = acct.LoginTokenIssuedAt().Format(time.RFC3339)
			}
			if reveal {
				view.Authenticator = acct.Authenticator
				view.WeakAuth = service.WeakAuth(acct)
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), view)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:            %d\n", view.ID)
			fmt.Fprintf(out, "Email:         %s\n", view.Email)
			fmt.Fprintf(out, "Name:          %s\n", view.Name)
			fmt.Fprintf(out, "Created:       %s\n", view.Created)
			fmt.Fprintf(out, "Password hash: %t\n", view.PasswdHashSet)
			if view.LoginTokenTime != "" {
				fmt.Fprintf(out, "Token issued:  %s\n", view.LoginTokenTime)
			}
			if reveal {
				fmt.Fprintf(out, "Authenticator: %s\n", view.Authenticator)
				fmt.Fprintf(out, "Weak auth:     %s\n", view.WeakAuth)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email address")
	cmd.Flags().Int64Var(&id, "id", 0, "Account id")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Also print the authenticator and weak authenticator")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// ---------- account issue-token ----------

func newAccountIssueTokenCmd() *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Issue a login token for an account",
		Long: `Generate a new login token for an account and print it.

The token can be exchanged through login_token_lookup for the account's
weak authenticator until the token window (auth.token_window) expires.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg, quietLogger(cfg))
			if err != nil {
				return err
			}
			defer st.Close()

			token, err := directory.NewAuthenticator()
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			issued := time.Now()
			if err := st.SetLoginToken(cmd.Context(), id, token, issued); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("account %d not found", id)
				}
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "valid until %s\n",
				issued.Add(cfg.Auth.TokenWindow.Std()).UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "Account id (required)")
	cmd.MarkFlagRequired("id")

	return cmd
}
