package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	botzie "github.com/manovDev/agario-botzie"
	"github.com/manovDev/agario-botzie/internal/control"
)

const clientTimeout = 10 * time.Second

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a bot session through the control API",
		Long: `Validates the session locally, then posts it to the control API.
The reply lists the bots in their initial connecting state.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			nickname, _ := cmd.Flags().GetString("nickname")
			room, _ := cmd.Flags().GetString("room")
			count, _ := cmd.Flags().GetInt("bots")
			feeding, _ := cmd.Flags().GetBool("feeding")
			splitting, _ := cmd.Flags().GetBool("splitting")

			cfg := botzie.SessionConfig{
				Nickname:         nickname,
				RoomURL:          room,
				BotCount:         count,
				FeedingEnabled:   feeding,
				SplittingEnabled: splitting,
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			body, err := json.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encoding session: %w", err)
			}

			var result control.StartResult
			if err := call(cmd, http.MethodPost, "/api/bots/start", body, &result); err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (session %s)\n", result.Message, result.SessionID)
			for _, bot := range result.Bots {
				fmt.Fprintf(out, "  %-24s %s\n", bot.Nickname, bot.Status)
			}
			return nil
		},
	}
	cmd.Flags().String("nickname", "", "Player nickname the bots are named after")
	cmd.Flags().String("room", "", "Room or server address")
	cmd.Flags().Int("bots", 1, "Number of bots (1-50)")
	cmd.Flags().Bool("feeding", false, "Set the feedingEnabled flag on the session")
	cmd.Flags().Bool("splitting", false, "Set the splittingEnabled flag on the session")
	return cmd
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop every bot session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result control.StopResult
			if err := call(cmd, http.MethodPost, "/api/bots/stop", nil, &result); err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d sessions)\n", result.Message, result.Stopped)
			return nil
		},
	}
}

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List active bot sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var listing control.Listing
			if err := call(cmd, http.MethodGet, "/api/bots/sessions", nil, &listing); err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd.OutOrStdout(), listing)
			}
			out := cmd.OutOrStdout()
			if listing.TotalSessions == 0 {
				fmt.Fprintln(out, "No active sessions.")
				return nil
			}
			for _, session := range listing.ActiveSessions {
				fmt.Fprintf(out, "%s  %-16s %3d bots  %s  started %s\n",
					session.ID, session.Nickname, session.BotCount, session.RoomURL,
					session.StartedAt.Format(time.RFC3339))
			}
			fmt.Fprintf(out, "%d active\n", listing.TotalSessions)
			return nil
		},
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of a start request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), botzie.SessionConfigSchema())
		},
	}
}

type apiError struct {
	Error string `json:"error"`
}

// call sends one request to the control API and decodes a 2xx reply into
// out. Other replies surface the API's error text.
func call(cmd *cobra.Command, method, path string, body []byte, out any) error {
	base, _ := cmd.Flags().GetString("api")
	url := strings.TrimRight(base, "/") + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(runContext(cmd), method, url, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{
		Timeout:   clientTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("contacting control API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading reply: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var reply apiError
		if json.Unmarshal(data, &reply) == nil && reply.Error != "" {
			return fmt.Errorf("control API: %s (%d)", reply.Error, resp.StatusCode)
		}
		return fmt.Errorf("control API: unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding reply: %w", err)
	}
	return nil
}
