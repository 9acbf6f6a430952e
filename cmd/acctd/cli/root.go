package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/faucetdb/acctd/internal/config"
)

var cfgFile string

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acctd",
		Short: "Account lookup service for volunteer computing clients",
		Long: `acctd resolves volunteer accounts for client software.

It serves the lookup_account and login_token_lookup RPCs over HTTP, checks
email/password-hash and directory (LDAP) credentials, and hands back the
account authenticator or a weak authenticator derived from it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Init(viper.GetViper(), cfgFile)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./acctd.yaml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newAccountCmd())
	cmd.AddCommand(newRPCCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}
