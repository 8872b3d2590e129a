package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coursewright/coursewright/internal/artifact"
	"github.com/coursewright/coursewright/internal/config"
	"github.com/coursewright/coursewright/internal/domain"
	"github.com/coursewright/coursewright/internal/gateway"
	"github.com/coursewright/coursewright/internal/generate"
	"github.com/coursewright/coursewright/internal/generate/anthropic"
	"github.com/coursewright/coursewright/internal/hooks"
	"github.com/coursewright/coursewright/internal/logging"
	"github.com/coursewright/coursewright/internal/session"
	"github.com/coursewright/coursewright/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Coursewright API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			// The config file owns log settings unless --log-level overrides
			if logLevel == "" {
				log = logging.NewStyled(cfg.Logging.Level, cfg.Logging.ConsoleStyle)
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			// Session store (SQLite or in-memory)
			var sessions store.SessionStore
			if cfg.Session.Store == "sqlite" {
				dbPath := paths.DBFile(cfg)
				db, err := store.Open(dbPath, log)
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				defer db.Close()
				sessions = store.NewSQLiteStore(db)
				log.Info().Str("path", dbPath).Msg("using SQLite session store")
			} else {
				sessions = store.NewMemoryStore()
				log.Info().Msg("using in-memory session store")
			}

			mgr := session.NewManager(sessions, managerConfig(cfg), log)

			// Lifecycle hooks: audit-log every session event
			hookMgr := hooks.NewManager(log)
			auditLog := log.Sub("audit")
			for _, event := range hooks.AllEvents {
				hookMgr.On(event, "audit", func(_ context.Context, p hooks.Payload) error {
					auditLog.Info().
						Str("event", p.Event).
						Str("sessionId", p.SessionID).
						Msg("session event")
					return nil
				})
			}

			opts := []gateway.ServerOption{
				gateway.WithGenerator(buildGenerator(cfg)),
				gateway.WithMaterializer(artifact.NewMemoryMaterializer()),
				gateway.WithHooks(hookMgr),
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Sweep expired sessions on startup so listings stay clean
			if n, err := mgr.CleanupExpired(ctx); err != nil {
				log.Warn().Err(err).Msg("expired session cleanup failed")
			} else if n > 0 {
				log.Info().Int("removed", n).Msg("cleaned up expired sessions")
			}

			srv := gateway.New(cfg, mgr, log, opts...)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

// managerConfig maps file configuration onto session manager settings.
func managerConfig(cfg config.Config) session.Config {
	return session.Config{
		Limits: domain.Limits{
			MaxMessages: cfg.Session.MaxMessages,
			MaxHistory:  cfg.Session.MaxHistory,
		},
		MaxPerUser:       cfg.Session.MaxPerUser,
		AutoSaveInterval: time.Duration(cfg.Session.AutoSaveSeconds) * time.Second,
		Expiry:           time.Duration(cfg.Session.ExpiryMinutes) * time.Minute,
		CacheTTL:         time.Duration(cfg.Session.CacheTTLSeconds) * time.Second,
	}
}

// buildGenerator selects the content generation provider from config.
func buildGenerator(cfg config.Config) generate.Generator {
	if cfg.Generator.Provider != "anthropic" {
		log.Info().Msg("using mock generation provider")
		return &generate.MockGenerator{}
	}

	opts := []func(o *anthropic.Options){
		anthropic.WithAPIKey(cfg.Generator.APIKey),
		anthropic.WithModel(cfg.Generator.Model),
	}
	if cfg.Generator.MaxTokens > 0 {
		opts = append(opts, anthropic.WithMaxTokens(int64(cfg.Generator.MaxTokens)))
	}
	if cfg.Generator.Temperature != nil {
		opts = append(opts, anthropic.WithTemperature(*cfg.Generator.Temperature))
	}
	if cfg.Generator.InputCostPerMTok > 0 || cfg.Generator.OutputCostPerMTok > 0 {
		opts = append(opts, anthropic.WithCostRates(cfg.Generator.InputCostPerMTok, cfg.Generator.OutputCostPerMTok))
	}
	log.Info().Str("model", cfg.Generator.Model).Msg("using Anthropic generation provider")
	return anthropic.New(opts...)
}
