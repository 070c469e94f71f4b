package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tonimelisma/ftpsession/internal/credentials"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store FTP credentials for later commands",
		Long: `Store the host, login ID and password used by every other command.

The password is read from the first line of stdin. The credentials file is
written with owner-only permissions.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	cmd.Flags().String("host", "", "FTP server host name (required)")
	cmd.Flags().String("user", "", "login ID (required)")
	cmd.Flags().Bool("no-verify", false, "save without test-connecting first")

	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Connect and display the login identity and lock owner",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
}

// readPassword reads the password from r. On a terminal it prompts on
// prompt and reads without echo; otherwise it takes the first line, so
// passwords can be piped in.
func readPassword(r io.Reader, prompt io.Writer) (string, error) {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")

		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)

		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}

		return string(pw), nil
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	host, _ := cmd.Flags().GetString("host")
	user, _ := cmd.Flags().GetString("user")
	noVerify, _ := cmd.Flags().GetBool("no-verify")

	password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	creds := credentials.Credentials{
		Host:     strings.TrimSpace(host),
		ID:       strings.TrimSpace(user),
		Password: password,
	}

	if err := creds.Validate(); err != nil {
		return err
	}

	if !noVerify {
		fs, err := connectSession(cmd.Context(), cc, creds)
		if err != nil {
			return err
		}

		_ = fs.Close()
	}

	if err := credentials.Save(cc.Cfg.CredentialsFile, creds); err != nil {
		return err
	}

	cc.Logger.Info("credentials saved", slog.Any("creds", creds), slog.String("path", cc.Cfg.CredentialsFile))
	cc.Statusf("Saved credentials for %s to %s\n", creds, cc.Cfg.CredentialsFile)

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	path := cc.Cfg.CredentialsFile

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cc.Statusf("No credentials stored at %s\n", path)

			return nil
		}

		return fmt.Errorf("removing %s: %w", path, err)
	}

	cc.Logger.Info("credentials removed", slog.String("path", path))
	cc.Statusf("Removed %s\n", path)

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	ID         string `json:"id"`
	Host       string `json:"host"`
	LockOwner  string `json:"lock_owner"`
	WorkingDir string `json:"working_dir"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	return withFTPSession(cmd.Context(), func(cc *CLIContext, fs *FTPSession) error {
		wd, err := fs.WorkingDir(cmd.Context())
		if err != nil {
			return err
		}

		out := whoamiOutput{
			ID:         fs.Editor(),
			Host:       fs.Creds.Host,
			LockOwner:  fs.Owner(),
			WorkingDir: wd,
		}

		if cc.Flags.JSON {
			return printJSON(cmd.OutOrStdout(), out)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "User:        %s\n", out.ID)
		fmt.Fprintf(w, "Host:        %s\n", out.Host)
		fmt.Fprintf(w, "Lock owner:  %s\n", out.LockOwner)
		fmt.Fprintf(w, "Working dir: %s\n", out.WorkingDir)

		return nil
	})
}
