// Command cobuy is the operator CLI for the cobuy recommender API.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/persistorai/cobuy/client"
)

// Build-time variables set via ldflags.
var (
	version   = "0.1.0"
	commit    = ""
	buildDate = ""
)

const defaultURL = "http://localhost:3040"

var (
	apiClient *client.Client
	flagURL   string
	flagKey   string
	flagFmt   string
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("cobuy version %s (commit: %s, built: %s)", version, commit, buildDate)
	}
	return fmt.Sprintf("cobuy version %s-dev", version)
}

// configFile is ~/.cobuy/config.yaml. The flat url/api_key pair is used
// when no profile matches.
type configFile struct {
	URL           string                   `yaml:"url,omitempty"`
	APIKey        string                   `yaml:"api_key,omitempty"`
	Profiles      map[string]configProfile `yaml:"profiles,omitempty"`
	ActiveProfile string                   `yaml:"active_profile,omitempty"`
}

type configProfile struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// settings returns the URL and key of the active profile, falling back to
// the flat fields.
func (f *configFile) settings() (url, apiKey string) {
	url, apiKey = f.URL, f.APIKey

	name := f.ActiveProfile
	if name == "" {
		name = "default"
	}
	if p, ok := f.Profiles[name]; ok {
		if p.URL != "" {
			url = p.URL
		}
		if p.APIKey != "" {
			apiKey = p.APIKey
		}
	}

	return url, apiKey
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cobuy", "config.yaml"), nil
}

// loadConfigFile reads the config file. The returned path is set even when
// reading fails so callers can report it.
func loadConfigFile() (string, *configFile, error) {
	path, err := configPath()
	if err != nil {
		return "", nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return path, nil, err
	}

	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return path, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return path, &cfg, nil
}

// resolveConfig fills flagURL and flagKey. Flags win over COBUY_URL and
// COBUY_API_KEY, which win over the config file.
func resolveConfig() {
	if flagURL == defaultURL {
		if v := os.Getenv("COBUY_URL"); v != "" {
			flagURL = v
		}
	}
	if flagKey == "" {
		flagKey = os.Getenv("COBUY_API_KEY")
	}

	_, cfg, err := loadConfigFile()
	if err != nil {
		return
	}

	url, apiKey := cfg.settings()
	if flagURL == defaultURL && url != "" {
		flagURL = url
	}
	if flagKey == "" && apiKey != "" {
		flagKey = apiKey
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "cobuy",
		Short:   "cobuy CLI: co-purchase recommendations for your store",
		Version: versionString(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch flagFmt {
			case "json", "table", "quiet":
			default:
				return errors.New("--format must be json, table or quiet")
			}
			resolveConfig()
			var opts []client.Option
			if flagKey != "" {
				opts = append(opts, client.WithAPIKey(flagKey))
			}
			apiClient = client.New(flagURL, opts...)
			return nil
		},
		SilenceUsage: true,
	}
	root.SetVersionTemplate("{{.Version}}\n")

	root.PersistentFlags().StringVar(&flagURL, "url", defaultURL, "cobuy server URL (env: COBUY_URL)")
	root.PersistentFlags().StringVar(&flagKey, "api-key", "", "API key (env: COBUY_API_KEY)")
	root.PersistentFlags().StringVar(&flagFmt, "format", "json", "Output format: json|table|quiet")

	initCmd := newInitCmd()
	initCmd.PersistentPreRunE = func(*cobra.Command, []string) error { return nil } // no client needed

	root.AddCommand(initCmd)
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newTrainCmd())
	root.AddCommand(newRecommendCmd())
	root.AddCommand(newModelCmd())
	root.AddCommand(newRunsCmd())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
