package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/parari/internal/config"
)

var (
	configInitForce   bool
	configInitProject bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View or create Parari configuration.

Configuration is read from, lowest to highest precedence:
  1. Built-in defaults
  2. ~/.config/parari/config.yaml ($XDG_CONFIG_HOME/parari/config.yaml)
  3. .parari.yaml in the repository or any parent directory
  4. PARARI_* environment variables (e.g. PARARI_WORKTREES_MAX=10)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
	configInitCmd.Flags().BoolVar(&configInitProject, "project", false, "Write .parari.yaml in the repository instead of the user config")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.GetUserConfigPath()
	if configInitProject {
		repoPath, err := resolveRepo(directory)
		if err != nil {
			return err
		}
		path = filepath.Join(repoPath, config.ProjectConfigName)
	}

	if err := config.WriteTemplate(path, configInitForce); err != nil {
		return err
	}
	out := newPrinter(cmd.OutOrStdout())
	out.printStatus("✓", out.green, "Wrote %s", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	// Outside a repository only the user layer applies.
	repoPath, err := resolveRepo(directory)
	if err != nil {
		repoPath = ""
	}

	cfg, err := loadConfig(repoPath)
	if err != nil {
		return err
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, src := range configSources(repoPath) {
		fmt.Fprintf(w, "# source: %s\n", src)
	}
	_, err = w.Write(data)
	return err
}

// configSources lists the files that contributed to the effective config.
func configSources(repoPath string) []string {
	if configPath != "" {
		return []string{configPath}
	}

	var sources []string
	if _, err := os.Stat(config.GetUserConfigPath()); err == nil {
		sources = append(sources, config.GetUserConfigPath())
	}
	if repoPath != "" {
		if p := config.GetProjectConfigPath(repoPath); p != "" {
			sources = append(sources, p)
		}
	}
	if len(sources) == 0 {
		sources = append(sources, "built-in defaults")
	}
	return sources
}
