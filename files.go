package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ftpsession/internal/remotepath"
	"github.com/tonimelisma/ftpsession/internal/session"
)

// errPathMissing makes `exists` exit non-zero without printing an error.
var errPathMissing = errors.New("path does not exist")

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [dir]",
		Short: "List the names in a remote directory",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLs,
	}
}

func newPwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pwd",
		Short: "Print the server's working directory after login",
		Args:  cobra.NoArgs,
		RunE:  runPwd,
	}
}

func newExistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <path>",
		Short: "Check whether a remote file or directory exists",
		Long: `Check whether a remote file or directory exists.

Exits 0 when the path exists and 1 when it does not.`,
		Args: cobra.ExactArgs(1),
		RunE: runExists,
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <remote-path> [local-path]",
		Short: "Download a file (to stdout when no local path is given)",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runGet,
	}
}

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <local-path> <remote-path>",
		Short: "Upload a file, replacing any existing one",
		Args:  cobra.ExactArgs(2),
		RunE:  runPut,
	}

	cmd.Flags().BoolP("create", "p", false, "create missing remote directories")

	return cmd
}

func newAppendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "append <remote-path> [local-path]",
		Short: "Append a local file (or stdin) to a remote file",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runAppend,
	}
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a directory and any missing parents",
		Args:  cobra.ExactArgs(1),
		RunE:  runMkdir,
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a remote file",
		Args:  cobra.ExactArgs(1),
		RunE:  runRm,
	}
}

func newRmdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir <dir>",
		Short: "Delete a directory and the files directly inside it",
		Long: `Delete a remote directory. Files directly inside it are deleted first.
Subdirectories are not descended into; a directory that still contains
one is reported as an error.`,
		Args: cobra.ExactArgs(1),
		RunE: runRmdir,
	}
}

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <path> <new-name>",
		Short: "Rename a file or directory within its directory",
		Args:  cobra.ExactArgs(2),
		RunE:  runMv,
	}
}

func newCpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cp <path> <dest-dir> [new-name]",
		Short: "Copy a remote file through the client",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runCp,
	}

	cmd.Flags().BoolP("create", "p", false, "create the destination directory if missing")
	cmd.Flags().Bool("ignore-missing", false, "succeed silently when the source is missing")

	return cmd
}

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup <path>",
		Short: "Copy a remote file next to itself under a timestamped name",
		Args:  cobra.ExactArgs(1),
		RunE:  runBackup,
	}
}

// remoteArg normalizes a remote path argument to NFC, the form the server
// stores names in.
func remoteArg(arg string) string {
	return remotepath.Normalize(arg)
}

// rootedArg resolves a remote path argument against the root, where every
// session starts.
func rootedArg(arg string) string {
	return remotepath.Resolve(remotepath.Root, remoteArg(arg))
}

// splitRemote splits a remote path argument into the absolute directory to
// enter and the leaf name.
func splitRemote(arg string) (dir, name string) {
	dir, name = remotepath.Split(remoteArg(arg))

	return remotepath.Resolve(remotepath.Root, dir), name
}

// enterParent moves the session into the directory containing p and
// returns the leaf name.
func enterParent(ctx context.Context, fs *FTPSession, p string, create bool) (string, error) {
	dir, name := splitRemote(p)
	if name == "" || name == remotepath.Root {
		return "", fmt.Errorf("%q does not name a file", p)
	}

	if err := fs.SetDirectory(ctx, dir, create); err != nil {
		return "", err
	}

	return name, nil
}

func runLs(cmd *cobra.Command, args []string) error {
	dir := remotepath.Root
	if len(args) > 0 {
		dir = remoteArg(args[0])
	}

	return withFTPSession(cmd.Context(), func(cc *CLIContext, fs *FTPSession) error {
		names, err := fs.List(cmd.Context(), dir)
		if err != nil {
			return err
		}

		sort.Strings(names)

		cc.Logger.Debug("listed directory", slog.String("dir", dir), slog.Int("count", len(names)))

		if cc.Flags.JSON {
			return printJSON(cmd.OutOrStdout(), names)
		}

		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}

		return nil
	})
}

func runPwd(cmd *cobra.Command, _ []string) error {
	return withFTPSession(cmd.Context(), func(_ *CLIContext, fs *FTPSession) error {
		wd, err := fs.WorkingDir(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), wd)

		return nil
	})
}

func runExists(cmd *cobra.Command, args []string) error {
	p := remoteArg(args[0])

	return withFTPSession(cmd.Context(), func(cc *CLIContext, fs *FTPSession) error {
		found := fs.Exists(cmd.Context(), p)

		if cc.Flags.JSON {
			if err := printJSON(cmd.OutOrStdout(), map[string]any{"path": p, "exists": found}); err != nil {
				return err
			}
		} else if !cc.Flags.Quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %t\n", p, found)
		}

		if !found {
			return errPathMissing
		}

		return nil
	})
}

func runGet(cmd *cobra.Command, args []string) error {
	dir, name := splitRemote(args[0])

	return withFTPSession(cmd.Context(), func(cc *CLIContext, fs *FTPSession) error {
		body, err := fs.GetFileAsString(cmd.Context(), dir, name)
		if err != nil {
			return err
		}

		if len(args) < 2 || args[1] == "-" {
			_, err = io.WriteString(cmd.OutOrStdout(), body)

			return err
		}

		if err := os.WriteFile(args[1], []byte(body), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", args[1], err)
		}

		cc.Statusf("Downloaded %s to %s (%s)\n", remotepath.Join(dir, name), args[1], formatSize(int64(len(body))))

		return nil
	})
}

func runPut(cmd *cobra.Command, args []string) error {
	local := args[0]
	create, _ := cmd.Flags().GetBool("create")

	info, err := os.Stat(local)
	if err != nil {
		return fmt.Errorf("reading %s: %w", local, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory", local)
	}

	return withFTPSession(cmd.Context(), func(cc *CLIContext, fs *FTPSession) error {
		name, err := enterParent(cmd.Context(), fs, args[1], create)
		if err != nil {
			return err
		}

		if err := fs.PutFile(cmd.Context(), local, name); err != nil {
			return err
		}

		cc.Statusf("Uploaded %s to %s (%s)\n", local, remotepath.Join(fs.Cwd(), name), formatSize(info.Size()))

		return nil
	})
}

func runAppend(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)

	if len(args) < 2 || args[1] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[1])
	}

	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	return withFTPSession(cmd.Context(), func(cc *CLIContext, fs *FTPSession) error {
		name, err := enterParent(cmd.Context(), fs, args[0], false)
		if err != nil {
			return err
		}

		if err := fs.AppendString(cmd.Context(), name, string(data)); err != nil {
			return err
		}

		cc.Statusf("Appended %s to %s\n", formatSize(int64(len(data))), remotepath.Join(fs.Cwd(), name))

		return nil
	})
}

func runMkdir(cmd *cobra.Command, args []string) error {
	p := remoteArg(args[0])

	return withFTPSession(cmd.Context(), func(cc *CLIContext, fs *FTPSession) error {
		if err := fs.SetDirectory(cmd.Context(), p, true); err != nil {
			return err
		}

		cc.Statusf("Created %s\n", fs.Cwd())

		return nil
	})
}

func runRm(cmd *cobra.Command, args []string) error {
	return withFTPSession(cmd.Context(), func(cc *CLIContext, fs *FTPSession) error {
		name, err := enterParent(cmd.Context(), fs, args[0], false)
		if err != nil {
			return err
		}

		if err := fs.DeleteFile(cmd.Context(), name); err != nil {
			return err
		}

		cc.Statusf("Deleted %s\n", remotepath.Join(fs.Cwd(), name))

		return nil
	})
}

func runRmdir(cmd *cobra.Command, args []string) error {
	p := remoteArg(args[0])

	if remotepath.IsRoot(p) {
		return errors.New("refusing to delete the root directory")
	}

	return withFTPSession(cmd.Context(), func(cc *CLIContext, fs *FTPSession) error {
		if err := fs.DeleteDirectory(cmd.Context(), p); err != nil {
			return err
		}

		cc.Statusf("Deleted %s\n", p)

		return nil
	})
}

func runMv(cmd *cobra.Command, args []string) error {
	newName := remoteArg(args[1])

	return withFTPSession(cmd.Context(), func(cc *CLIContext, fs *FTPSession) error {
		name, err := enterParent(cmd.Context(), fs, args[0], false)
		if err != nil {
			return err
		}

		if err := fs.Rename(cmd.Context(), name, newName); err != nil {
			return err
		}

		cc.Statusf("Renamed %s to %s\n", remotepath.Join(fs.Cwd(), name), newName)

		return nil
	})
}

func runCp(cmd *cobra.Command, args []string) error {
	oldDir, oldName := splitRemote(args[0])
	newDir := rootedArg(args[1])

	newName := ""
	if len(args) > 2 {
		newName = remoteArg(args[2])
	}

	create, _ := cmd.Flags().GetBool("create")
	ignoreMissing, _ := cmd.Flags().GetBool("ignore-missing")

	return withFTPSession(cmd.Context(), func(cc *CLIContext, fs *FTPSession) error {
		err := fs.CopyAndRenameFile(cmd.Context(), oldDir, oldName, newDir, newName, session.CopyOptions{
			Create:        create,
			IgnoreMissing: ignoreMissing,
		})
		if err != nil {
			return err
		}

		if newName == "" {
			newName = oldName
		}

		cc.Statusf("Copied %s to %s\n", remotepath.Join(oldDir, oldName), remotepath.Join(newDir, newName))

		return nil
	})
}

func runBackup(cmd *cobra.Command, args []string) error {
	p := rootedArg(args[0])

	return withFTPSession(cmd.Context(), func(cc *CLIContext, fs *FTPSession) error {
		backup, err := fs.BackupServerFile(cmd.Context(), p)
		if err != nil {
			return err
		}

		if cc.Flags.JSON {
			return printJSON(cmd.OutOrStdout(), map[string]string{"path": p, "backup": backup})
		}

		fmt.Fprintln(cmd.OutOrStdout(), backup)

		return nil
	})
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}

	return nil
}
