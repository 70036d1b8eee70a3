package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperlinklaw/recordlink/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/recordlink.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new recordlink configuration file",
		Long: `Initialize creates a new .recordlink configuration file in the current directory.

The generated file includes:
- Default thresholds for auto-linking and OCR
- Commented examples for index hints and the escalation service
- Documentation for all available options

Examples:
  # Create .recordlink in current directory
  recordlink init

  # Create config file at a specific path
  recordlink init -o myconfig.yaml

  # Force overwrite existing file
  recordlink init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	// Check if file already exists
	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	// Read template from embedded filesystem
	content, err := configTemplate.ReadFile("templates/recordlink.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	// Create parent directories if needed
	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Write configuration file
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(cmd.OutOrStdout(), "\nEdit this file to configure settings such as:")
	fmt.Fprintln(cmd.OutOrStdout(), "  - The auto-link confidence threshold")
	fmt.Fprintln(cmd.OutOrStdout(), "  - Index header hints for unusual briefs")
	fmt.Fprintln(cmd.OutOrStdout(), "  - OCR and escalation service endpoints")

	return nil
}
