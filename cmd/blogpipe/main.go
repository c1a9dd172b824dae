package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"blogpipe/internal/domain/config"
	"blogpipe/internal/logger"
)

var version = "dev"

// Globals are shared by every subcommand.
type Globals struct {
	Config  string           `short:"c" help:"Configuration file path" default:"site.yaml" type:"path"`
	Env     []string         `help:"Dotenv files loaded before the configuration" default:".env"`
	Verbose bool             `short:"v" help:"Enable debug logging"`
	Pretty  bool             `help:"Human readable console logs"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`
}

// Load reads dotenv files and the configuration, then builds the root
// logger from it.
func (g *Globals) Load() (config.Config, zerolog.Logger, error) {
	if err := config.LoadDotEnv(g.Env...); err != nil {
		return config.Config{}, logger.Nop(), fmt.Errorf("load env: %w", err)
	}
	cfg, err := config.Load(g.Config)
	if err != nil {
		return cfg, logger.Nop(), fmt.Errorf("load config %s: %w", g.Config, err)
	}
	level := cfg.Log.Level
	if g.Verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Pretty: g.Pretty || cfg.Log.Pretty})
	return cfg, log, nil
}

type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" help:"Serve the blog with live reload and a JSON API"`
	Build   BuildCmd   `cmd:"" help:"Write the static site and refresh the catalog"`
	Inspect InspectCmd `cmd:"" help:"Show what the pipeline derives for one document"`
	Check   CheckCmd   `cmd:"" help:"Report broken references and unreadable documents"`
	List    ListCmd    `cmd:"" help:"List documents from the catalog written by build"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("blogpipe"),
		kong.Description("Markdown blog content pipeline."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	err := kctx.Run(&cli.Globals)
	kctx.FatalIfErrorf(err)
}
