package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/persistorai/cobuy/client"
)

func newInitCmd() *cobra.Command {
	var (
		initURL    string
		initAPIKey string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up cobuy CLI configuration",
		Long:  "Interactive setup wizard that creates ~/.cobuy/config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			nonInteractive := initURL != "" || initAPIKey != ""
			return runInit(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), initURL, initAPIKey, nonInteractive)
		},
	}

	// Shadows the persistent --url and --api-key.
	cmd.Flags().StringVar(&initURL, "url", "", "Server URL (non-interactive mode)")
	cmd.Flags().StringVar(&initAPIKey, "api-key", "", "API key (non-interactive mode)")
	return cmd
}

func runInit(ctx context.Context, in io.Reader, out io.Writer, url, apiKey string, nonInteractive bool) error {
	if !nonInteractive {
		fmt.Fprintln(out, "\n  cobuy setup")
		fmt.Fprintln(out, "  ───────────")
		fmt.Fprintln(out)

		reader := bufio.NewReader(in)

		fmt.Fprintf(out, "  Server URL [%s]: ", defaultURL)
		line, _ := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			url = line
		}

		fmt.Fprint(out, "  API Key: ")
		keyLine, _ := reader.ReadString('\n')
		apiKey = strings.TrimSpace(keyLine)
	}

	if url == "" {
		url = defaultURL
	}
	if apiKey == "" {
		return fmt.Errorf("API key is required")
	}

	if !nonInteractive {
		fmt.Fprint(out, "\n  Testing connection... ")
	}

	ver, err := testConnection(ctx, url, apiKey)
	if err != nil {
		if !nonInteractive {
			fmt.Fprintln(out, "✗")
		}
		return fmt.Errorf("connection failed: %w", err)
	}

	if !nonInteractive {
		fmt.Fprintf(out, "✓ Connected (v%s)\n", ver)
	}

	cfgPath, err := writeConfig(url, apiKey)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	if nonInteractive {
		fmt.Fprintf(out, "Config saved to %s\n", cfgPath)
		return nil
	}

	fmt.Fprintf(out, "\n  ✓ Config saved to %s\n", cfgPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Next steps:")
	fmt.Fprintln(out, "    cobuy doctor      # Full diagnostic check")
	fmt.Fprintln(out, "    cobuy train       # Train your first model")
	fmt.Fprintln(out, "    cobuy --help      # See all commands")
	fmt.Fprintln(out)

	return nil
}

// testConnection checks the server is up and the key is accepted. A merchant
// without a model yet still counts as authenticated.
func testConnection(ctx context.Context, url, apiKey string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c := client.New(url, client.WithAPIKey(apiKey))

	health, err := c.Health(ctx)
	if err != nil {
		return "", err
	}

	if _, err := c.Model.Get(ctx); err != nil && !client.IsNotTrained(err) {
		return "", err
	}

	if health.Version == "" {
		return "unknown", nil
	}
	return health.Version, nil
}

func writeConfig(url, apiKey string) (string, error) {
	cfgPath, err := configPath()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return "", err
	}

	cfg := configFile{
		Profiles: map[string]configProfile{
			"default": {URL: url, APIKey: apiKey},
		},
		ActiveProfile: "default",
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return "", err
	}

	return cfgPath, nil
}
