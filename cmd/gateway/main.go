package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/aman-churiwal/quotagate/internal/config"
	"github.com/aman-churiwal/quotagate/internal/metrics"
	"github.com/aman-churiwal/quotagate/internal/server"
	"github.com/aman-churiwal/quotagate/internal/service"
	"github.com/aman-churiwal/quotagate/internal/storage"
	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

type CLI struct {
	Serve    ServeCmd    `cmd:"" default:"1" help:"Run the gateway."`
	Validate ValidateCmd `cmd:"" help:"Validate the configuration file and exit."`
	Token    TokenCmd    `cmd:"" help:"Issue an admin token signed with JWT_SECRET."`

	Config   string `short:"c" help:"Path to config file (.json, .yaml)." default:"config.json" type:"path"`
	EnvFile  string `help:"Optional .env file loaded before the config." default:".env"`
	LogLevel string `help:"Log level (trace, debug, info, warn, error)." default:"info" env:"LOG_LEVEL"`

	logger hclog.Logger
}

func (cli *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type ServeCmd struct{}

func (c *ServeCmd) Run(cli *CLI) error {
	logger := cli.logger

	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	logger.Info("config loaded", "path", cli.Config, "services", len(cfg.Services), "backend", cfg.Storage.Backend)

	backend, err := storage.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	recorder := metrics.NewPrometheus()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		recorder,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := server.New(cfg, backend, server.Options{
		Logger:   logger,
		Recorder: recorder,
		Gatherer: registry,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, ":"+cfg.Port)
	})
	if backend.Sweeper != nil {
		interval := time.Duration(cfg.Storage.SweepIntervalSeconds) * time.Second
		g.Go(func() error {
			return storage.RunJanitor(ctx, backend.Sweeper, interval, logger)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("gateway exited")
	return nil
}

type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	fmt.Printf("%s: ok (%d services, backend %s)\n", cli.Config, len(cfg.Services), cfg.Storage.Backend)
	return nil
}

type TokenCmd struct {
	Subject string        `arg:"" help:"Operator the token is issued to."`
	Role    string        `help:"Role claim." default:"admin"`
	TTL     time.Duration `help:"Token lifetime." default:"24h"`
}

func (c *TokenCmd) Run(cli *CLI) error {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if cfg, err := config.Load(cli.Config); err == nil {
			secret = cfg.JWTSecret
		}
	}

	token, err := service.NewTokenService(secret, c.TTL).Issue(c.Subject, c.Role)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// envFileFromArgs finds --env-file on the raw command line. The file has to
// be loaded before kong reads env-backed flags such as LOG_LEVEL.
func envFileFromArgs(args []string) string {
	path := ".env"
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return path
		case arg == "--env-file" && i+1 < len(args):
			path = args[i+1]
			i++
		case strings.HasPrefix(arg, "--env-file="):
			path = strings.TrimPrefix(arg, "--env-file=")
		}
	}
	return path
}

func loadEnvFile(args []string) error {
	path := envFileFromArgs(args)
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func newParser(cli *CLI) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("gateway"),
		kong.Description("HTTP gateway enforcing fixed-window rate limits per service"),
		kong.UsageOnError(),
	)
}

func main() {
	args := os.Args[1:]

	// Load env if it exists
	if err := loadEnvFile(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cli := CLI{}
	parser, err := newParser(&cli)
	if err != nil {
		panic(err)
	}
	ctx, err := parser.Parse(args)
	parser.FatalIfErrorf(err)

	cli.logger = hclog.New(&hclog.LoggerOptions{
		Name:  "quotagate",
		Level: hclog.LevelFromString(cli.LogLevel),
	})

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
