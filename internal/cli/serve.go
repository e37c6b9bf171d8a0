package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soyeahso/botway/internal/auth"
	"github.com/soyeahso/botway/internal/config"
	"github.com/soyeahso/botway/internal/connector"
	"github.com/soyeahso/botway/internal/dispatch"
	"github.com/soyeahso/botway/internal/gateway"
	"github.com/soyeahso/botway/internal/logging"
	"github.com/soyeahso/botway/internal/metrics"
	"github.com/soyeahso/botway/internal/schema"
	"github.com/soyeahso/botway/internal/store"
	"github.com/soyeahso/botway/internal/usertoken"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the activity webhook server",
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

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if logLevel == "" {
				log = logging.New(nil, cfg.Logging.Level)
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			tokens := buildTokenProvider(cfg, log)
			authenticator := gateway.ResolveAuthenticator(cfg.Auth)

			var opts []gateway.ServerOption
			var dispatchOpts []dispatch.Option

			var m *metrics.Metrics
			if cfg.Metrics.Enabled {
				m = metrics.NewMetrics()
				opts = append(opts, gateway.WithMetrics(m))
				dispatchOpts = append(dispatchOpts, dispatch.WithObserver(m.ObserveActivity))
			}

			var tracers []dispatch.Tracer
			if cfg.Trace.Enabled {
				dbPath := cfg.Trace.Path
				if dbPath == "" {
					dbPath = paths.TraceDB()
				}
				db, err := store.Open(dbPath, log)
				if err != nil {
					return fmt.Errorf("opening trace database: %w", err)
				}
				defer db.Close()
				traceStore := store.NewTraceStore(db)
				opts = append(opts, gateway.WithTraceStore(traceStore))
				tracers = append(tracers, traceStore)
			}

			if cfg.Tap.Enabled {
				tap := gateway.NewTapHub(log)
				opts = append(opts, gateway.WithTap(tap))
				tracers = append(tracers, tap)
			}

			if tracer := dispatch.MultiTracer(tracers...); tracer != nil {
				dispatchOpts = append(dispatchOpts, dispatch.WithTracer(tracer))
			}

			conversations := func(activity *schema.Activity) *connector.Client {
				var copts []connector.Option
				if m != nil {
					copts = append(copts, connector.WithObserver(m.ObserveConnectorCall))
				}
				return connector.New(activity, cfg.Azure.Scope, tokens, log, copts...)
			}
			userTokens := func() *usertoken.Client {
				uopts := []usertoken.Option{
					usertoken.WithEndpoint(cfg.UserToken.Endpoint),
					usertoken.WithScope(cfg.UserToken.Scope),
				}
				if m != nil {
					uopts = append(uopts, usertoken.WithObserver(m.ObserveConnectorCall))
				}
				return usertoken.New(tokens, log, uopts...)
			}

			runtime := dispatch.New(echoHandlers(log), authenticator, conversations, userTokens, log, dispatchOpts...)
			server := gateway.New(cfg, runtime, log, opts...)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return server.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback, custom)")

	return cmd
}

// buildTokenProvider returns real credentials when an app identity is
// configured, otherwise an anonymous provider for local emulators.
func buildTokenProvider(cfg config.Config, log *logging.Logger) auth.TokenProvider {
	if cfg.Azure.ClientID != "" {
		return auth.NewCredentials(auth.CredentialsConfig{
			TenantID:     cfg.Azure.TenantID,
			ClientID:     cfg.Azure.ClientID,
			ClientSecret: cfg.Azure.ClientSecret,
			Authority:    cfg.Azure.Authority,
		}, nil, log)
	}
	log.Warn().Msg("no app identity configured, outbound calls are anonymous")
	return &auth.StaticTokenProvider{}
}

// echoHandlers is the built-in handler set: it echoes messages and
// greets arriving members. Embedders replace this by wiring their own
// dispatch.Handlers.
func echoHandlers(log *logging.Logger) dispatch.Handlers {
	hlog := log.Sub("handlers")
	return dispatch.Handlers{
		OnMessage: func(ctx context.Context, turn *dispatch.TurnContext) error {
			text := turn.Activity().GetText()
			if text == "" {
				return nil
			}
			_, err := turn.Reply(ctx, "echo: "+text)
			return err
		},
		OnConversationUpdate: func(ctx context.Context, turn *dispatch.TurnContext, view *schema.ConversationUpdateView) error {
			if len(view.MembersAdded) == 0 {
				return nil
			}
			_, err := turn.Reply(ctx, "hello!")
			return err
		},
		OnMessageReaction: func(ctx context.Context, turn *dispatch.TurnContext, view *schema.MessageReactionView) error {
			hlog.Info().
				Int("added", len(view.ReactionsAdded)).
				Int("removed", len(view.ReactionsRemoved)).
				Msg("message reaction")
			return nil
		},
	}
}
