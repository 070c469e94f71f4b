package main

import (
	"context"
	"log/slog"

	"github.com/tonimelisma/ftpsession/internal/config"
)

// CLIFlags holds the persistent flag values of one invocation.
type CLIFlags struct {
	ConfigPath  string
	Credentials string
	Owner       string
	Insecure    bool
	JSON        bool
	Verbose     bool
	Quiet       bool
}

// CLIContext carries everything a subcommand needs: flags, the resolved
// configuration (nil for commands annotated with skipConfigAnnotation), and
// a logger tagged with this invocation's session ID.
type CLIContext struct {
	Flags     CLIFlags
	Cfg       *config.Resolved
	Logger    *slog.Logger
	SessionID string

	closeLog func() error
}

// Close releases the log file, if one was opened.
func (cc *CLIContext) Close() error {
	if cc.closeLog == nil {
		return nil
	}

	return cc.closeLog()
}

type cliContextKey struct{}

func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

func cliContextFrom(ctx context.Context) *CLIContext {
	if ctx == nil {
		return nil
	}

	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)

	return cc
}

// mustCLIContext returns the CLIContext installed by the root command's
// pre-run. A missing context is a wiring bug.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("cli context not initialized")
	}

	return cc
}
