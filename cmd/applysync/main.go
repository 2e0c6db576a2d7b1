package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/applysync/internal"
	"github.com/starford/applysync/internal/session"
	pkgconfig "github.com/starford/applysync/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if v := os.Getenv("APPLYSYNC_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	load := pkgconfig.LoadOptional[internal.Config]
	if cmd.IsSet("config") {
		load = pkgconfig.Load[internal.Config]
	}
	if err := load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	return internal.RunMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithLogger(logger),
		internal.WithVersion(version),
	)
}

func devBackend(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunDevBackend(ctx, internal.WithConfig(cfg))
}

func tokenSet(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tok := cmd.Args().First()
	if tok == "" || tok == "-" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read token from stdin: %w", err)
		}
		tok = line
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return fmt.Errorf("token is empty")
	}

	f, err := session.NewFile(cfg.Session.TokenFile)
	if err != nil {
		return err
	}
	if err := f.SetToken(tok); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "token saved to %s\n", f.Path())
	return nil
}

func tokenClear(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f, err := session.NewFile(cfg.Session.TokenFile)
	if err != nil {
		return err
	}
	if err := f.SetToken(""); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "signed out")
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "applysync",
		Usage:   "Sync layer for a job application tracker: local HTTP mirror, MCP tools and a dev backend",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the local HTTP mirror and event stream",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Expose applications and notes as MCP tools over stdio",
				Action: mcp,
			},
			{
				Name:   "dev-backend",
				Usage:  "Run the reference tracker backend on SQLite",
				Action: devBackend,
			},
			{
				Name:  "token",
				Usage: "Manage the stored session token",
				Commands: []*cli.Command{
					{
						Name:      "set",
						Usage:     "Store a bearer token (reads stdin when omitted or -)",
						ArgsUsage: "[token]",
						Action:    tokenSet,
					},
					{
						Name:   "clear",
						Usage:  "Remove the stored token",
						Action: tokenClear,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
