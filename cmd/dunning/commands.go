package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	callshandler "dunning/internal/calls/handler"
	httpapi "dunning/internal/http"
	jwttoken "dunning/internal/jwt_token"
	outreachhandler "dunning/internal/outreach/handler"
	"dunning/internal/platform/config"
	"dunning/internal/platform/httpserver"
	"dunning/internal/platform/postgres"
	"dunning/internal/platform/ratelimit"
	"dunning/internal/residents"
	residentshandler "dunning/internal/residents/handler"
	"dunning/internal/residents/importer"
	schedulinghandler "dunning/internal/scheduling/handler"
	verificationhandler "dunning/internal/verification/handler"
	webhookhandler "dunning/internal/webhook/handler"
	id "dunning/pkg/domain"
	"dunning/pkg/requestcontext"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.connectBrokers(ctx); err != nil {
				return err
			}

			orch := a.orchestrator()
			outreachH := outreachhandler.New(a.outreachService(), a.logger, a.metrics)
			routes := httpapi.Routes{
				Tools: []httpapi.Registrar{
					verificationhandler.New(a.verificationService(), a.logger, a.metrics),
					residentshandler.New(residents.NewService(a.store, a.logger), a.logger, a.metrics),
					outreachH,
					schedulinghandler.New(a.schedulingService(), a.logger, a.metrics),
					webhookhandler.New(a.webhookService(orch), a.logger, a.metrics),
				},
				Operator: []httpapi.Registrar{
					callshandler.New(orch, a.logger, a.metrics),
					httpapi.RegistrarFunc(outreachH.RegisterListings),
				},
			}
			opts := httpapi.Options{
				Logger:            a.logger,
				Metrics:           a.metrics,
				Gatherer:          a.registry,
				RequestTimeout:    a.cfg.Server.RequestTimeout,
				WebhookSecret:     a.cfg.Security.WebhookSecret,
				OnWebhookRejected: a.webhookRejected,
				Ready:             a.ready,
			}
			if jwt := a.jwtService(); jwt != nil {
				opts.Validator = jwttoken.NewJWTServiceAdapter(jwt)
			}
			if n := a.cfg.Server.ToolRateLimit; n > 0 {
				opts.ToolLimit = ratelimit.NewStore(n, time.Minute)
				stop := make(chan struct{})
				defer close(stop)
				go opts.ToolLimit.SweepEvery(5*time.Minute, stop)
			}
			if a.cfg.Security.WebhookSecret == "" {
				a.logger.Warn("WEBHOOK_SECRET not set, tool and webhook routes are unauthenticated")
			}

			srv := httpserver.New(a.cfg.Server, httpapi.NewRouter(opts, routes))
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("starting dunning",
					"addr", a.cfg.Server.Addr,
					"env", a.cfg.Environment,
					"voice_provider", a.voice.Name(),
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
				defer cancel()
				a.logger.Info("shutting down")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the database schema",
		Action: func(c *cli.Context) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("DATABASE_URL is required")
			}
			ctx, cancel := context.WithTimeout(c.Context, time.Minute)
			defer cancel()
			if err := postgres.Migrate(ctx, cfg.Database.URL); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "schema applied")
			return nil
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import-residents",
		Usage: "Upsert residents from an .xlsx export",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "workbook path", Required: true},
			&cli.StringFlag{Name: "sheet", Usage: "sheet name, defaults to the first sheet"},
		},
		Action: func(c *cli.Context) error {
			a, err := newApp(c.Context)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := []importer.Option{importer.WithAuditor(a.auditor), importer.WithLogger(a.logger)}
			if sheet := c.String("sheet"); sheet != "" {
				opts = append(opts, importer.WithSheet(sheet))
			}
			ctx := requestcontext.WithTime(c.Context, time.Now())
			summary, err := importer.New(a.store, a.txr, opts...).ImportFile(ctx, c.String("file"))
			if err != nil {
				return err
			}
			return printJSON(c, summary)
		},
	}
}

func callCommand() *cli.Command {
	return &cli.Command{
		Name:  "call",
		Usage: "Place one outbound call and wait for its outcome",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "resident", Aliases: []string{"r"}, Usage: "resident id", Required: true},
			&cli.DurationFlag{Name: "wait", Usage: "wait before fetching call details (overrides VOICE_POLL_WAIT)"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if wait := c.Duration("wait"); wait > 0 {
				a.cfg.Voice.PollWait = wait
			}

			attempt, err := a.orchestrator().Run(requestcontext.WithTime(ctx, time.Now()), id.ResidentID(c.String("resident")))
			if attempt != nil {
				if perr := printJSON(c, attempt); perr != nil {
					return perr
				}
			}
			return err
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue an operator bearer token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "operator", Usage: "operator uuid, random when empty"},
			&cli.StringFlag{Name: "role", Value: "collector"},
			&cli.DurationFlag{Name: "ttl", Value: 12 * time.Hour},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if cfg.Security.JWTSigningKey == "" {
				return errors.New("JWT_SIGNING_KEY is required")
			}
			operator := uuid.New()
			if raw := c.String("operator"); raw != "" {
				if operator, err = uuid.Parse(raw); err != nil {
					return fmt.Errorf("operator: %w", err)
				}
			}
			svc := jwttoken.NewJWTService(cfg.Security.JWTSigningKey, cfg.Security.JWTIssuer, operatorAudience)
			token, err := svc.GenerateOperatorToken(operator, c.String("role"), c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
