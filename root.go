package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/ftpsession/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// skipConfigAnnotation marks commands that must run even when the config
// file is missing or broken, because they create or repair it.
const skipConfigAnnotation = "skip_config"

// logFilePerms restricts log files to the owner; they contain host names
// and login IDs.
const logFilePerms = 0o600

// newRootCmd builds the fully-assembled root command with all subcommands
// registered.
func newRootCmd() *cobra.Command {
	var flags CLIFlags

	cmd := &cobra.Command{
		Use:     "ftpsession",
		Short:   "Resilient FTP session client with advisory locks",
		Long:    "Work with files on an FTP(S) server through a session that reconnects on failure and keeps its working directory in step with the server.",
		Version: version,
		// We print errors ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupCLIContext(cmd, flags)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if cc := cliContextFrom(cmd.Context()); cc != nil {
				return cc.Close()
			}

			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "config file path")
	pf.StringVar(&flags.Credentials, "credentials", "", "credentials file path")
	pf.StringVar(&flags.Owner, "owner", "", "owner ID for lock commands (default: login ID)")
	pf.BoolVar(&flags.Insecure, "insecure", false, "skip TLS certificate verification")
	pf.BoolVar(&flags.JSON, "json", false, "output in JSON format")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newPwdCmd())
	cmd.AddCommand(newExistsCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newAppendCmd())
	cmd.AddCommand(newMkdirCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newRmdirCmd())
	cmd.AddCommand(newMvCmd())
	cmd.AddCommand(newCpCmd())
	cmd.AddCommand(newBackupCmd())
	cmd.AddCommand(newLockCmd())
	cmd.AddCommand(newUnlockCmd())
	cmd.AddCommand(newLockStatusCmd())

	return cmd
}

// setupCLIContext resolves configuration, builds the logger and installs
// the CLIContext on the command's context.
func setupCLIContext(cmd *cobra.Command, flags CLIFlags) error {
	cc := &CLIContext{
		Flags:     flags,
		SessionID: uuid.NewString(),
	}

	if cmd.Annotations[skipConfigAnnotation] == "" {
		resolved, err := config.Resolve(config.ReadEnvOverrides(), cliOverrides(cmd, flags))
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		cc.Cfg = resolved
	}

	logger, closeLog, err := buildLogger(cc.Cfg, flags, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	cc.Logger = logger.With(slog.String("session_id", cc.SessionID))
	cc.closeLog = closeLog

	ctx := shutdownContext(cmd.Context(), cc.Logger)
	cmd.SetContext(withCLIContext(ctx, cc))

	return nil
}

// cliOverrides passes only the flags the user actually set.
func cliOverrides(cmd *cobra.Command, flags CLIFlags) config.CLIOverrides {
	cli := config.CLIOverrides{ConfigPath: flags.ConfigPath}

	if cmd.Flags().Changed("credentials") {
		cli.CredentialsFile = &flags.Credentials
	}

	if cmd.Flags().Changed("owner") {
		cli.LockOwner = &flags.Owner
	}

	if cmd.Flags().Changed("insecure") {
		cli.Insecure = &flags.Insecure
	}

	return cli
}

// buildLogger creates the invocation's logger. Console output defaults to
// warnings so command output stays readable; log_file receives the config
// log_level instead. --verbose and --quiet win over both.
func buildLogger(cfg *config.Resolved, flags CLIFlags, stderr io.Writer) (*slog.Logger, func() error, error) {
	level := slog.LevelWarn
	out := stderr
	format := "auto"

	var closeFn func() error

	if cfg != nil {
		format = cfg.LogFormat

		if cfg.LogFile != "" {
			f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerms)
			if err != nil {
				return nil, nil, fmt.Errorf("opening log file: %w", err)
			}

			out = f
			closeFn = f.Close
			level = parseLevel(cfg.LogLevel)
		}
	}

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if useTextFormat(format, out) {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler), closeFn, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// useTextFormat resolves log_format. "auto" picks text for terminals and
// JSON for files and pipes.
func useTextFormat(format string, w io.Writer) bool {
	switch format {
	case "text":
		return true
	case "json":
		return false
	}

	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
