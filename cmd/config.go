package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"threatmon/config"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
	Long:  `Configure the analysis endpoint and the history database location.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Print the configuration in effect, after command-line overrides, as YAML.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configEndpointCmd = &cobra.Command{
	Use:   "endpoint [url]",
	Short: "Configure the analysis endpoint",
	Long: `Show the current analysis endpoint or update it.
If a URL is provided as an argument, it will be used as the new endpoint.
Otherwise, an interactive prompt will be shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigEndpoint,
}

var configDBCmd = &cobra.Command{
	Use:   "db [path]",
	Short: "Configure history database location",
	Long: `Show current history database location or update it to a new path.
If a path is provided as an argument, it will be used as the new location.
Otherwise, an interactive prompt will be shown.`,
	RunE: runConfigDB,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEndpointCmd)
	configCmd.AddCommand(configDBCmd)
}

func cleanPath(path string) (string, error) {
	// Remove any quotes
	path = strings.Trim(path, `"'`)

	// Remove any backslashes used for escaping
	path = strings.ReplaceAll(path, `\`, "")

	// Expand home directory if path starts with ~
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error expanding home directory: %v", err)
		}
		path = filepath.Join(home, path[2:])
	}

	return path, nil
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist: %s", dir)
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// updateConfigFile applies change to the file config, leaving command-line
// overrides out of what gets saved.
func updateConfigFile(change func(*config.Config)) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	change(&cfg)

	return config.Save(path, cfg)
}

func runConfigEndpoint(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Current endpoint: %s\n", settings.Endpoint)

	var endpoint string
	if len(args) > 0 {
		endpoint = strings.TrimSpace(args[0])
		if err := validateRequestURL(endpoint); err != nil {
			return err
		}
	} else {
		endpointPrompt := promptui.Prompt{
			Label:    "Analysis endpoint",
			Default:  settings.Endpoint,
			Validate: validateRequestURL,
		}

		var err error
		endpoint, err = endpointPrompt.Run()
		if err != nil {
			return fmt.Errorf("endpoint prompt failed: %v", err)
		}
		endpoint = strings.TrimSpace(endpoint)
	}

	if err := updateConfigFile(func(c *config.Config) { c.Endpoint = endpoint }); err != nil {
		return fmt.Errorf("error saving endpoint: %w", err)
	}

	fmt.Fprintf(out, "Endpoint updated to: %s\n", endpoint)
	return nil
}

func runConfigDB(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	currentPath, err := settings.HistoryPath()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current history database: %s\n", currentPath)

	var newPath string

	if len(args) > 0 {
		// Use path from command line argument
		newPath = strings.Join(args, " ") // Join all args to handle paths with spaces
		newPath, err = cleanPath(newPath)
		if err != nil {
			return err
		}
		if err := validatePath(newPath); err != nil {
			return err
		}
	} else {
		pathPrompt := promptui.Prompt{
			Label:   "Enter new history database path",
			Default: currentPath,
			Validate: func(input string) error {
				cleanInput, err := cleanPath(input)
				if err != nil {
					return err
				}
				return validatePath(cleanInput)
			},
		}

		newPath, err = pathPrompt.Run()
		if err != nil {
			return fmt.Errorf("path prompt failed: %v", err)
		}

		newPath, err = cleanPath(newPath)
		if err != nil {
			return err
		}
	}

	if currentPath != newPath {
		if err := moveHistory(out, currentPath, newPath, len(args) == 0); err != nil {
			return err
		}
	}

	if err := updateConfigFile(func(c *config.Config) { c.History.Path = newPath }); err != nil {
		return fmt.Errorf("error saving database path: %w", err)
	}

	fmt.Fprintf(out, "History database location updated to: %s\n", newPath)
	return nil
}

// moveHistory carries the existing history over to newPath. A file already at
// newPath is used as it is and never overwritten.
func moveHistory(out io.Writer, currentPath, newPath string, interactive bool) error {
	if _, err := os.Stat(currentPath); os.IsNotExist(err) {
		return nil
	}

	if _, err := os.Stat(newPath); err == nil {
		fmt.Fprintf(out, "Using existing database at %s; nothing copied.\n", newPath)
		return nil
	}

	if interactive {
		copyPrompt := promptui.Prompt{
			Label:     "Would you like to copy existing database to the new location",
			IsConfirm: true,
		}
		if _, err := copyPrompt.Run(); err != nil {
			return nil // User chose not to copy
		}
	}

	if err := copyFile(currentPath, newPath); err != nil {
		return fmt.Errorf("error copying database: %w", err)
	}
	fmt.Fprintln(out, "Database copied successfully!")
	return nil
}

// copyFile copies src to dst, failing if dst already exists.
func copyFile(src, dst string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(dst)
		return err
	}
	return f.Close()
}
