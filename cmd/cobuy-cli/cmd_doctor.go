package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/cobuy/client"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration and connectivity",
		Long:  "Run diagnostic checks against config, server, readiness, and auth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

type checkResult struct {
	Name   string
	Passed bool
	Detail string
	Hint   string
}

// runDoctor assumes PersistentPreRunE has already resolved flagURL, flagKey
// and apiClient.
func runDoctor(ctx context.Context, out io.Writer) error {
	fmt.Fprintln(out, "\ncobuy doctor")
	fmt.Fprintln(out, "============")

	results := doctorChecks(ctx)

	fmt.Fprintln(out)
	allPassed := true
	for _, r := range results {
		mark := "✅"
		if !r.Passed {
			mark = "❌"
			allPassed = false
		}
		if r.Detail != "" {
			fmt.Fprintf(out, "%s %s: %s\n", mark, r.Name, r.Detail)
		} else {
			fmt.Fprintf(out, "%s %s\n", mark, r.Name)
		}
		if !r.Passed && r.Hint != "" {
			fmt.Fprintf(out, "   Hint: %s\n", r.Hint)
		}
	}

	fmt.Fprintln(out)
	if !allPassed {
		fmt.Fprintln(out, "❌ Some checks failed.")
		return errors.New("doctor found issues")
	}

	fmt.Fprintln(out, "✅ All checks passed!")
	return nil
}

func doctorChecks(ctx context.Context) []checkResult {
	var results []checkResult

	// 1. Config file.
	cfgPath, _, cfgErr := loadConfigFile()
	if cfgErr != nil {
		results = append(results, checkResult{
			Name: "Config file", Detail: cfgPath, Hint: "Run: cobuy init",
		})
	} else {
		results = append(results, checkResult{
			Name: "Config file", Passed: true, Detail: fmt.Sprintf("found (%s)", cfgPath),
		})
	}

	// 2. Server URL.
	results = append(results, checkResult{
		Name: "Server URL", Passed: flagURL != "", Detail: flagURL,
		Hint: "Set --url, COBUY_URL, or run cobuy init",
	})

	// 3. API key.
	if flagKey == "" {
		results = append(results, checkResult{
			Name: "API key", Hint: "Set --api-key, COBUY_API_KEY, or run cobuy init",
		})
	} else {
		results = append(results, checkResult{Name: "API key", Passed: true, Detail: "configured"})
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// 4. Server reachable.
	health, err := apiClient.Health(ctx)
	if err != nil {
		return append(results, checkResult{
			Name: "Server reachable", Detail: flagURL,
			Hint: fmt.Sprintf("Is the cobuy server running? Error: %v", err),
		})
	}
	results = append(results, checkResult{
		Name: "Server reachable", Passed: true,
		Detail: fmt.Sprintf("v%s, database %s", health.Version, health.Database),
	})

	// 5. Server ready.
	ready, err := apiClient.Ready(ctx)
	switch {
	case err != nil:
		results = append(results, checkResult{Name: "Server ready", Hint: err.Error()})
	case ready.Status != "ready":
		results = append(results, checkResult{
			Name: "Server ready", Detail: formatChecks(ready.Checks),
			Hint: "Check the database and artifact directory on the server",
		})
	default:
		results = append(results, checkResult{Name: "Server ready", Passed: true, Detail: ready.Status})
	}

	// 6. Authentication.
	if flagKey != "" {
		_, err := apiClient.Model.Get(ctx)
		switch {
		case err == nil:
			results = append(results, checkResult{Name: "Authentication", Passed: true, Detail: "valid"})
		case client.IsNotTrained(err):
			results = append(results, checkResult{Name: "Authentication", Passed: true, Detail: "valid (no model trained yet)"})
		case client.IsUnauthorized(err):
			results = append(results, checkResult{Name: "Authentication", Hint: "Check your API key"})
		default:
			results = append(results, checkResult{Name: "Authentication", Hint: fmt.Sprintf("Unexpected error: %v", err)})
		}
	}

	return results
}

func formatChecks(checks map[string]string) string {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + checks[name]
	}
	return strings.Join(parts, ", ")
}
