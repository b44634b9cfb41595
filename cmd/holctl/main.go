// Command holctl drives the runtime from the command line: digests over
// files, ZIP inspection through the archive commands, the command manifest
// and running a compiled guest module under wazero.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/hpp2334/hol-runtime/internal/config"
)

// CLI defines the command-line interface.
var CLI struct {
	LogLevel string `name:"log-level" help:"Override HOL_LOG_LEVEL (debug, info, warn, error)"`

	Digest   DigestCmd   `cmd:"" help:"Compute digests of files in one pass"`
	Zip      ZipGroup    `cmd:"" help:"Inspect ZIP archives through the archive commands"`
	Commands CommandsCmd `cmd:"" help:"Print the command manifest as JSON"`
	Run      RunCmd      `cmd:"" help:"Compute digests through a guest module"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// ZipGroup contains archive operations.
type ZipGroup struct {
	Ls  ZipLsCmd  `cmd:"" help:"List the entries of an archive"`
	Cat ZipCatCmd `cmd:"" help:"Write one entry of an archive to stdout"`
}

// Globals is bound into every command's Run method.
type Globals struct {
	Out    io.Writer
	Logger *slog.Logger
	Config config.Config
}

func newGlobals(cfg config.Config, levelOverride string, out, logs io.Writer) (*Globals, error) {
	if levelOverride != "" {
		cfg.LogLevel = levelOverride
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: cfg.Level()}))
	return &Globals{Out: out, Logger: logger, Config: cfg}, nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("holctl"),
		kong.Description("Command and digest runtime tool"),
		kong.UsageOnError(),
	)

	cfg, err := config.Load()
	ctx.FatalIfErrorf(err)
	g, err := newGlobals(cfg, CLI.LogLevel, os.Stdout, os.Stderr)
	ctx.FatalIfErrorf(err)

	ctx.FatalIfErrorf(ctx.Run(g))
}
