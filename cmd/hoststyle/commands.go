package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kalambet/hoststyle/internal/analysis"
	"github.com/kalambet/hoststyle/internal/config"
	"github.com/kalambet/hoststyle/internal/profile"
	"github.com/kalambet/hoststyle/internal/tracker"
)

// localTracker runs the engine in-process against the server's profile API,
// falling back to the on-disk profile directory when the server is down.
func localTracker(cfg config.Config, logger *zap.Logger) *tracker.Tracker {
	primary := profile.NewRemoteStore(cfg.Remote.BaseURL, cfg.Remote.Timeout)
	fallback := profile.NewFileStore(cfg.Storage.ProfileDir())
	manager := profile.NewManager(primary, fallback, logger, nil)
	return tracker.New(manager, logger, nil, nil)
}

// setupLocal loads config and resolves the host id from --host or the
// persisted identity.
func setupLocal(cmd *cobra.Command) (*tracker.Tracker, string, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return nil, "", nil, err
	}

	hostID, _ := cmd.Flags().GetString("host")
	if hostID == "" {
		if hostID, err = config.EnsureHostID(&cfg); err != nil {
			return nil, "", nil, err
		}
	}
	return localTracker(cfg, logger), hostID, logger, nil
}

// --- track ---

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Apply a completed session to the host's style profile",
	Long: `Apply a completed session to the host's style profile and print the refreshed report.

Examples:
  hoststyle track --file ./session.json
  cat session.json | hoststyle track --file - --host host_42
  hoststyle track --file ./session.json --async`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}
		async, _ := cmd.Flags().GetBool("async")

		data, err := readInput(cmd.InOrStdin(), file)
		if err != nil {
			return err
		}
		session, err := analysis.ParseSession(data)
		if err != nil {
			return err
		}

		t, hostID, logger, err := setupLocal(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		if async {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			id, err := client.enqueueMeeting(cmd.Context(), hostID, data)
			if err != nil {
				return fmt.Errorf("queueing session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			printSuccess("Queued meeting for %s, check it with: hoststyle job %s", hostID, id)
			return nil
		}

		report, err := t.Track(cmd.Context(), hostID, session)
		if err != nil {
			return fmt.Errorf("tracking session: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), report.Text)
		printSuccess("Tracked meeting #%d for %s", report.MeetingCount, hostID)
		return nil
	},
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("reading session: invalid JSON")
	}
	return data, nil
}

func init() {
	trackCmd.Flags().String("file", "", "session JSON file (- for stdin)")
	trackCmd.Flags().String("host", "", "host identity (default: configured host.id)")
	trackCmd.Flags().Bool("async", false, "queue the session on the running server instead of tracking locally")
}

// --- report ---

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the host's current style report",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, hostID, logger, err := setupLocal(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		report := t.CurrentReport(cmd.Context(), hostID)
		if report == nil {
			printWarning("No meetings tracked yet for %s", hostID)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.Text)
		return nil
	},
}

func init() {
	reportCmd.Flags().String("host", "", "host identity (default: configured host.id)")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect host style profiles",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the host's profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, hostID, logger, err := setupLocal(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(t.Profile(cmd.Context(), hostID))
	},
}

func init() {
	profileShowCmd.Flags().String("host", "", "host identity (default: configured host.id)")
	profileCmd.AddCommand(profileShowCmd)
}

// --- hosts ---

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "List hosts stored on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		hosts, err := client.hosts(cmd.Context())
		if err != nil {
			return err
		}
		if len(hosts) == 0 {
			printWarning("No hosts stored yet")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "HOST\tMEETINGS\tUPDATED")
		for _, h := range hosts {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", h.HostID, h.TotalMeetings, h.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

// --- job ---

var jobCmd = &cobra.Command{
	Use:   "job <id>",
	Short: "Show the outcome of a queued meeting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		status, err := client.job(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printStatus("Job", "%s", status.ID)
		printStatus("Host", "%s", status.HostID)
		printStatus("Status", "%s (attempt %d of %d)", status.Status, status.Attempts, status.MaxAttempts)
		if status.LastError != "" {
			printStatus("Last error", "%s", status.LastError)
		}
		if status.Report != nil {
			fmt.Fprintln(cmd.OutOrStdout(), status.Report.Text)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Set a configuration value",
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.ValidKeys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
