package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running server's health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 10 * time.Second}
			url := strings.TrimSuffix(serverURL, "/") + "/healthz"

			resp, err := client.Get(url)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unhealthy: HTTP %d", resp.StatusCode)
			}

			var body struct {
				Status string `json:"status"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			cmd.Printf("%s\n", body.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", envOrDefault("CASTLEGATE_SERVER", "http://localhost:8080"),
		"Server URL (env: CASTLEGATE_SERVER)")

	return cmd
}
