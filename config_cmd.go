package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ftpsession/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "init",
		Short:       "Write a commented default config file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE:        runConfigInit,
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a key in the config file",
		Long: `Set a key in the config file, creating the file if needed.

The edited file is validated before it is written, so a bad value leaves
the existing file untouched. Lists (transfer_banners) are written as given,
for example: config set transfer_banners '["226 Transfer complete"]'`,
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE:        runConfigSet,
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the config file path in use",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE:        runConfigPath,
	}
}

// configPath resolves the config file path without loading it, for
// commands that must work on a missing or broken file.
func configPath(cc *CLIContext) string {
	return config.ResolvePath(config.ReadEnvOverrides(), config.CLIOverrides{ConfigPath: cc.Flags.ConfigPath})
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	if cc.Cfg == nil {
		return errors.New("no configuration loaded")
	}

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), cc.Cfg)
	}

	return config.RenderEffective(cc.Cfg, cmd.OutOrStdout())
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	path := configPath(cc)

	if err := config.CreateDefault(path); err != nil {
		return err
	}

	cc.Statusf("Wrote %s\n", path)

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	path := configPath(cc)

	if err := config.SetKey(path, args[0], args[1]); err != nil {
		return fmt.Errorf("setting %s: %w", args[0], err)
	}

	cc.Statusf("Set %s in %s\n", args[0], path)

	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	fmt.Fprintln(cmd.OutOrStdout(), configPath(cc))

	return nil
}
