package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/faucetdb/acctd/internal/directory"
	"github.com/faucetdb/acctd/internal/handler"
	"github.com/faucetdb/acctd/internal/server"
	"github.com/faucetdb/acctd/internal/service"
)

const banner = `
                _      _
  __ _  ___ ___| |_ __| |
 / _' |/ __/ __| __/ _' |
| (_| | (_| (__| || (_| |
 \__,_|\___\___|\__\__,_|
`

func newServeCmd() *cobra.Command {
	var dev bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account lookup server",
		Long:  "Start the HTTP server that answers lookup_account and login_token_lookup.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), dev)
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(ctx context.Context, dev bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, dev)

	fmt.Print(banner)
	fmt.Println()

	// 1. Account store
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("account store ready", "driver", st.Driver())

	// 2. Directory authentication, when enabled
	var svc *service.AccountService
	if cfg.Directory.Enabled {
		dir, err := directory.NewLDAP(cfg.LDAPConfig())
		if err != nil {
			return fmt.Errorf("configure directory: %w", err)
		}
		svc = service.NewAccountService(st, directory.NewProvisioner(dir, st, logger))
		logger.Info("directory authentication enabled", "url", cfg.Directory.URL, "base_dn", cfg.Directory.BaseDN)
	} else {
		svc = service.NewAccountService(st, nil)
	}

	// 3. RPC handlers and HTTP server
	rpc := handler.NewAccountHandler(svc, cfg.HandlerConfig(), handler.WithLogger(logger))
	srvCfg := cfg.ServerConfig()
	srv := server.New(srvCfg, st, rpc, logger)

	fmt.Printf("→ Listening on http://%s:%d\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ RPCs:       /lookup_account  /login_token_lookup\n")
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", srvCfg.Host, srvCfg.Port)
	fmt.Println()

	return srv.ListenAndServe()
}
