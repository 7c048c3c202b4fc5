package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "hallpass",
		Usage:   "moderation gateway for the school assistant chatbot",
		Version: versioninfo.Short(),
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/hallpass/hallpass.sqlite",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection for counters, flags, and cache (optional; in-process fallback)",
			EnvVars: []string{"HALLPASS_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the HTTP API",
			Value:   ":8100",
			EnvVars: []string{"HALLPASS_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":8101",
			EnvVars: []string{"HALLPASS_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "admin-token",
			Usage:   "bearer token for the admin API; admin routes disabled when empty",
			EnvVars: []string{"HALLPASS_ADMIN_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "config-file",
			Usage:   "path to the persisted moderation config JSON",
			Value:   "data/hallpass/moderation_config.json",
			EnvVars: []string{"HALLPASS_CONFIG_FILE"},
		},
		&cli.StringFlag{
			Name:    "denylist-file",
			Usage:   "path to the persisted denylist JSON",
			Value:   "data/hallpass/denylist.json",
			EnvVars: []string{"HALLPASS_DENYLIST_FILE"},
		},
		&cli.StringFlag{
			Name:    "knowledge-file",
			Usage:   "path to the resource catalog JSON",
			Value:   "data/hallpass/knowledge_base.json",
			EnvVars: []string{"HALLPASS_KNOWLEDGE_FILE"},
		},
		&cli.StringFlag{
			Name:    "gemini-api-key",
			Usage:   "API key for the Gemini backend; canned fallback responses when empty",
			EnvVars: []string{"GEMINI_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "gemini-model",
			Value:   "gemini-1.5-flash",
			EnvVars: []string{"GEMINI_MODEL"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "webhook for block/unblock notifications (optional)",
			EnvVars: []string{"HALLPASS_SLACK_WEBHOOK_URL"},
		},
		&cli.IntFlag{
			Name:    "log-retention-days",
			Usage:   "delete message log rows older than this many days; 0 keeps everything",
			Value:   0,
			EnvVars: []string{"HALLPASS_LOG_RETENTION_DAYS"},
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "render templates from disk and log at debug level",
			EnvVars: []string{"DEBUG"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()

		level := slog.LevelInfo
		if cctx.Bool("debug") {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)

		// Enable OTLP HTTP exporter
		// For relevant environment variables:
		// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlptrace#readme-environment-variables
		// At a minimum, you need to set
		// OTEL_EXPORTER_OTLP_ENDPOINT=http://localhost:4318
		if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
			logger.Info("setting up trace exporter", "endpoint", ep)
			exp, err := otlptracehttp.New(ctx)
			if err != nil {
				logger.Error("failed to create trace exporter", "err", err)
				os.Exit(1)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := exp.Shutdown(shutdownCtx); err != nil {
					logger.Error("failed to shut down trace exporter", "err", err)
				}
			}()

			tp := tracesdk.NewTracerProvider(
				tracesdk.WithBatcher(exp),
				tracesdk.WithResource(resource.NewWithAttributes(
					semconv.SchemaURL,
					semconv.ServiceNameKey.String("hallpass"),
					attribute.String("env", os.Getenv("ENVIRONMENT")),
					attribute.Int64("ID", 1),
				)),
			)
			otel.SetTracerProvider(tp)
		}

		srv, err := NewServer(ctx, logger, ServerConfig{
			DatabaseURL:      cctx.String("database-url"),
			RedisURL:         cctx.String("redis-url"),
			Bind:             cctx.String("bind"),
			MetricsListen:    cctx.String("metrics-listen"),
			AdminToken:       cctx.String("admin-token"),
			ConfigFile:       cctx.String("config-file"),
			DenylistFile:     cctx.String("denylist-file"),
			KnowledgeFile:    cctx.String("knowledge-file"),
			GeminiAPIKey:     cctx.String("gemini-api-key"),
			GeminiModel:      cctx.String("gemini-model"),
			SlackWebhookURL:  cctx.String("slack-webhook-url"),
			LogRetentionDays: cctx.Int("log-retention-days"),
			Debug:            cctx.Bool("debug"),
		})
		if err != nil {
			return err
		}
		return srv.RunUntilShutdown(ctx)
	},
}
