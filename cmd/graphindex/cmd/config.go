package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/graphindex/configs"
	"github.com/Aman-CERP/graphindex/internal/config"
	"github.com/Aman-CERP/graphindex/internal/output"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Show and create graphindex configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/graphindex/config.yaml)
  3. Project config (.graphindex.yaml)
  4. Environment variables (GRAPHINDEX_*)`,
		Example: `  # Create .graphindex.yaml in the current directory
  graphindex config init

  # Create the user config with connection settings
  graphindex config init --user

  # Show effective configuration
  graphindex config show`,
	}

	cmd.AddCommand(newConfigInitCmd(opts))
	cmd.AddCommand(newConfigShowCmd(opts))
	cmd.AddCommand(newConfigPathCmd(opts))

	return cmd
}

func newConfigInitCmd(opts *rootOptions) *cobra.Command {
	var force, user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from the template",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, template := projectConfigPath(opts), configs.ProjectConfigTemplate
			if user {
				path, template = config.GetUserConfigPath(), configs.UserConfigTemplate
			}
			return runConfigInit(cmd, path, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file (a backup is kept)")
	cmd.Flags().BoolVar(&user, "user", false, "Create the user config instead of the project config")

	return cmd
}

func newConfigShowCmd(opts *rootOptions) *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Example: `  graphindex config show
  graphindex config show --json
  graphindex config show --source user`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, opts, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, project, defaults")

	return cmd
}

func newConfigPathCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print configuration file paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "user:    %s\nproject: %s\n",
				config.GetUserConfigPath(), projectConfigPath(opts))
			return err
		},
	}
}

func projectConfigPath(opts *rootOptions) string {
	dir := opts.configDir
	if dir == "" {
		dir = "."
	}
	return config.ProjectConfigPath(dir)
}

func runConfigInit(cmd *cobra.Command, path, template string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.Statusf("", "Location: %s", path)
			out.Status("", "Use --force to overwrite (a backup is kept)")
			return nil
		}

		backupPath, err := config.Backup(path)
		if err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
		out.Statusf("", "Backup: %s", backupPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(template), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Successf("Created %s", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, opts *rootOptions, jsonOutput bool, source string) error {
	var (
		cfg *config.Config
		err error
	)

	switch source {
	case "merged":
		dir := opts.configDir
		if dir == "" {
			dir = "."
		}
		cfg, err = config.Load(dir)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

	case "defaults":
		cfg = config.NewConfig()

	case "user", "project":
		path := config.GetUserConfigPath()
		if source == "project" {
			path = projectConfigPath(opts)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				output.New(cmd.OutOrStdout()).Warningf("No %s configuration at %s", source, path)
				return nil
			}
			return fmt.Errorf("failed to read %s config: %w", source, err)
		}
		cfg = &config.Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse %s config: %w", source, err)
		}

	default:
		return fmt.Errorf("invalid source %q: use merged, user, project or defaults", source)
	}

	if cfg.Graph.Password != "" {
		cfg.Graph.Password = "********"
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
