package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pforret/stemmogram/internal/cache"
	"github.com/pforret/stemmogram/internal/cli"
	"github.com/pforret/stemmogram/internal/config"
	"github.com/pforret/stemmogram/internal/ffmpeg"
	"github.com/pforret/stemmogram/internal/logger"
	"github.com/pforret/stemmogram/internal/metadata"
	"github.com/pforret/stemmogram/internal/pipeline"
	"github.com/pforret/stemmogram/internal/renderer"
	"github.com/pforret/stemmogram/internal/separate"
	"github.com/pforret/stemmogram/internal/strip"
)

// version is set via ldflags at build time
// Local dev builds: "dev"
// Release builds: git tag (e.g. "v0.1.0")
var version = "dev"

var CLI struct {
	Input     string `arg:"" name:"input" help:"Input audio file (mp3, wav, flac, ...)" optional:""`
	Visual    string `help:"Strip content: spectro, wave, spectro,wave or mel" default:"spectro"`
	Scale     string `help:"Amplitude scale: lin, log, sqrt or cbrt" default:"log"`
	Colors    string `help:"Tint palette: simple, ocean or inferno" default:"simple"`
	Cache     string `help:"Cache id; defaults to the input file name"`
	CacheRoot string `help:"Cache directory; defaults to the user cache dir"`
	Output    string `short:"o" help:"Output file name; defaults to <input>_<mode>.png"`
	Outdir    string `help:"Output directory" default:"output"`
	Serial    bool   `help:"Render stem strips one at a time"`
	Debug     bool   `help:"Verbose logging"`
	Version   bool   `help:"Show version information"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("stemmogram"),
		kong.Description("Split a track into vocals, other, bass and drums and render one spectral summary image."),
		kong.Vars{"version": version},
		kong.UsageOnError(),
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)
	_ = kctx

	if CLI.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	if CLI.Input == "" {
		cli.PrintError("<input> is required")
		os.Exit(1)
	}
	if _, err := os.Stat(CLI.Input); os.IsNotExist(err) {
		cli.PrintError(fmt.Sprintf("input file does not exist: %s", CLI.Input))
		os.Exit(1)
	}

	req, err := config.ParseRequest(CLI.Visual, CLI.Scale, CLI.Colors, CLI.Cache, CLI.Input)
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	log, err := logger.New(CLI.Debug)
	if err != nil {
		cli.PrintError(fmt.Sprintf("failed to initialize logging: %v", err))
		os.Exit(1)
	}
	defer log.Sync()

	cli.PrintBanner()

	if err := run(req, log); err != nil {
		cli.PrintError(fmt.Sprintf("%s failed: %v", pipeline.FailedStage(err), err))
		os.Exit(1)
	}
}

func run(req config.Request, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec, err := ffmpeg.NewExecutor(ffmpeg.Config{Logger: log})
	if err != nil {
		return err
	}

	cacheRoot := CLI.CacheRoot
	if cacheRoot == "" {
		cacheRoot = cache.DefaultRoot()
	}
	artifacts, err := cache.New(cacheRoot, log)
	if err != nil {
		return err
	}

	p := pipeline.New(
		separate.New("", log),
		strip.NewGenerator(exec, artifacts, log),
		metadata.NewExtractor(exec, log),
		renderer.NewCompositor(),
		artifacts,
		log,
	)

	cli.PrintInfo("Input", CLI.Input)
	cli.PrintInfo("Visual", string(req.Mode))
	cli.PrintInfo("Scale", string(req.Scale))
	cli.PrintInfo("Palette", string(req.Palette))

	start := time.Now()
	out, err := p.Run(ctx, pipeline.Options{
		Input:      CLI.Input,
		OutDir:     CLI.Outdir,
		OutputName: CLI.Output,
		Request:    req,
		Serial:     CLI.Serial,
	})
	if err != nil {
		return err
	}

	cli.PrintRunSummary(out, cli.FormatDuration(time.Since(start)), string(req.Mode), req.CacheID)
	return nil
}
