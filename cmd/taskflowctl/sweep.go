package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

const (
	serverURLEnv  = "TASKFLOW_SERVER_URL"
	adminTokenEnv = "TASKFLOW_ADMIN_TOKEN"

	defaultServerURL = "http://localhost:8080"
	requestTimeout   = 15 * time.Second
)

// sweepStatus mirrors one entry of GET /api/admin/sweeps.
type sweepStatus struct {
	Sweep   string `json:"sweep"`
	Running bool   `json:"running"`
}

// adminClient calls the admin endpoints of a running server.
type adminClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAdminClient(baseURL, token string) (*adminClient, error) {
	if token == "" {
		return nil, fmt.Errorf("an admin access token is required (--token or %s)", adminTokenEnv)
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	return &adminClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
	}, nil
}

func (c *adminClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *adminClient) listSweeps(ctx context.Context) ([]sweepStatus, error) {
	var sweeps []sweepStatus
	if err := c.do(ctx, http.MethodGet, "/api/admin/sweeps", &sweeps); err != nil {
		return nil, err
	}
	return sweeps, nil
}

func (c *adminClient) triggerSweep(ctx context.Context, kind string) error {
	if kind == "" || strings.ContainsAny(kind, "/?#") {
		return errors.New("invalid sweep name")
	}
	return c.do(ctx, http.MethodPost, "/api/admin/sweeps/"+url.PathEscape(kind), nil)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newSweepCmd() *cobra.Command {
	var serverURL, token string

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Inspect and trigger background sweeps on a running server",
	}
	sweepCmd.PersistentFlags().StringVar(&serverURL, "server", envOr(serverURLEnv, defaultServerURL), "server base URL")
	sweepCmd.PersistentFlags().StringVar(&token, "token", os.Getenv(adminTokenEnv), "admin access token")

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered sweeps and whether they are running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAdminClient(serverURL, token)
			if err != nil {
				return err
			}
			sweeps, err := client.listSweeps(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SWEEP\tSTATE")
			for _, s := range sweeps {
				state := "idle"
				if s.Running {
					state = "running"
				}
				fmt.Fprintf(tw, "%s\t%s\n", s.Sweep, state)
			}
			return tw.Flush()
		},
	}

	trigger := &cobra.Command{
		Use:     "trigger <sweep>",
		Short:   "Start a sweep now, outside its schedule",
		Example: "  taskflowctl sweep trigger due-date",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAdminClient(serverURL, token)
			if err != nil {
				return err
			}
			if err := client.triggerSweep(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sweep %s started\n", args[0])
			return nil
		},
	}

	sweepCmd.AddCommand(list, trigger)
	return sweepCmd
}
