package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/agenda/internal/api/handlers"
)

func newHealthcheckCommand() *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is ready",
		Long: `Performs a readiness check by calling the /readyz endpoint.

This command is meant for container HEALTHCHECK directives. It exits with
code 0 if the server reports healthy, non-zero otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := url
			if target == "" {
				port := os.Getenv("SERVER_PORT")
				if port == "" {
					port = "8080"
				}
				target = fmt.Sprintf("http://localhost:%s/readyz", port)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			status, err := checkHealth(ctx, &http.Client{}, target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status: %s\n", status)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "readiness URL (default: http://localhost:{SERVER_PORT}/readyz)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")

	return cmd
}

// checkHealth fetches a readiness report and returns its status. Any status
// other than "healthy" is an error.
func checkHealth(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var report handlers.HealthCheck
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return "", fmt.Errorf("invalid health response (HTTP %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || report.Status != "healthy" {
		return report.Status, fmt.Errorf("server unhealthy: status=%q (HTTP %d)", report.Status, resp.StatusCode)
	}
	return report.Status, nil
}
