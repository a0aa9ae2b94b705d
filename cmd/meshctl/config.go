package main

import (
	"fmt"
	"os"

	"github.com/silentmesh/mesh/meshconfig"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate or render mesh node configuration",
}

var (
	configDir string
	configEnv string
)

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load configuration and report every validation issue",
	RunE:  runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Load configuration (defaults plus overrides) and print it as YAML",
	RunE:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory to search for <env>.yaml/default.yaml/config.yaml")
	configCmd.PersistentFlags().StringVar(&configEnv, "env", "", "Environment name (overrides MESH_ENV)")
}

func loadOpts() meshconfig.LoaderOptions {
	opts := meshconfig.DefaultLoaderOptions()
	if configDir != "" {
		opts.ConfigDir = configDir
	}
	if configEnv != "" {
		opts.Environment = configEnv
	}
	return opts
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	opts := loadOpts()
	opts.SkipValidation = true
	cfg, err := meshconfig.Load(opts)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	issues := meshconfig.Validate(cfg)
	if len(issues) == 0 {
		fmt.Println("configuration OK")
		return nil
	}

	hasError := false
	for _, issue := range issues {
		fmt.Fprintln(os.Stderr, issue.String())
		if issue.Severity == meshconfig.SeverityError {
			hasError = true
		}
	}
	if hasError {
		return fmt.Errorf("configuration has blocking errors")
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := meshconfig.Load(loadOpts())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
