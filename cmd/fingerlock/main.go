package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/npratt/fingerlock/internal/config"
	"github.com/npratt/fingerlock/internal/daemon"
	"github.com/npratt/fingerlock/internal/events"
	"github.com/npratt/fingerlock/internal/worker"
)

var version = "dev"

// getDaemonClient creates a daemon client by finding daemon.json in the project.
func getDaemonClient() (*daemon.Client, error) {
	info, err := daemon.FindDaemonInfo("")
	if err != nil {
		return nil, err
	}
	return daemon.NewClient(info.SocketPath), nil
}

// printStatus writes a human-readable status report.
func printStatus(w io.Writer, status *daemon.StatusResponse) {
	_, _ = fmt.Fprintf(w, "Workflow: %s (%s)\n", status.WorkflowID, status.Mode)
	_, _ = fmt.Fprintf(w, "State: %s\n", status.State)
	_, _ = fmt.Fprintf(w, "Wrong attempts: %d/%d\n", status.WrongAttempts, status.Threshold)
	if status.LockoutDeadline != "" {
		_, _ = fmt.Fprintf(w, "Locked out until: %s\n", status.LockoutDeadline)
	}
	if status.Done {
		verdict := "rejected"
		if status.Accepted {
			verdict = "accepted"
		}
		_, _ = fmt.Fprintf(w, "Result: %s\n", verdict)
	}
	_, _ = fmt.Fprintf(w, "Uptime: %s\n", status.Uptime)
	_, _ = fmt.Fprintf(w, "Started: %s\n", status.StartTime)
}

// printPersisted reports the saved attempt state when no workflow runs.
func printPersisted(w io.Writer, st events.State, now time.Time) {
	_, _ = fmt.Fprintln(w, "No workflow running")
	if st.Status != "" {
		_, _ = fmt.Fprintf(w, "Last status: %s\n", st.Status)
	}
	_, _ = fmt.Fprintf(w, "Wrong attempts: %d\n", st.WrongAttempts)
	if st.LockoutDeadline != nil && st.LockoutDeadline.After(now) {
		_, _ = fmt.Fprintf(w, "Locked out for another %s\n", st.LockoutDeadline.Sub(now).Round(time.Second))
	}
}

func main() {
	logLevel := &slog.LevelVar{}
	logger := newLogger(os.Stderr, logLevel)

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(config.EnvKeyReplacer)
	viper.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "fingerlock",
		Short: "Fingerprint authentication workflow",
		Long: `fingerlock runs a fingerprint verification or enrollment workflow
against the system sensor. It starts the sensor only while its host has
focus, counts bad swipes and locks the sensor out after too many of them.

The workflow is hosted in a terminal UI, or headless behind a Unix socket
that the focus, blur, dismiss and status commands talk to.`,
		SilenceUsage: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String(FlagConfig, "", "Config file path (default: .fingerlock/config.yaml)")
	rootCmd.PersistentFlags().String(FlagLogFile, "", "Event log path")
	rootCmd.PersistentFlags().String(FlagStateFile, "", "State file path")
	rootCmd.PersistentFlags().String(FlagSocketPath, "", "Unix socket path for workflow control")
	rootCmd.PersistentFlags().String(FlagSlotFile, "", "Credential slot flag file")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "fingerlock %s\n", version)
		},
	}

	workflowCmd := func(use, short, long string, kind workflowKind) *cobra.Command {
		c := &cobra.Command{
			Use:   use,
			Short: short,
			Long:  long,
			// verify, enroll and enable share flag names, so each binds its
			// own flags when it is the command being run.
			PreRunE: func(cmd *cobra.Command, args []string) error {
				return viper.BindPFlags(cmd.LocalFlags())
			},
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWorkflow(cmd, logger, logLevel, kind)
			},
		}
		c.Flags().Bool(FlagTUI, false, "Host the workflow in the terminal UI")
		c.Flags().Bool(FlagHeadless, false, "Host the workflow behind the control socket")
		c.Flags().Bool(FlagFocused, false, "Treat the host as focused from the start")
		c.Flags().String(FlagBackend, config.BackendFprintd, "Sensor backend (fprintd, mock)")
		c.Flags().String(FlagFinger, "any", "fprintd finger name")
		c.Flags().Bool(FlagMetrics, false, "Serve Prometheus metrics")
		c.Flags().String(FlagMetricsAddr, "127.0.0.1:9477", "Metrics listen address")
		return c
	}

	verifyCmd := workflowCmd("verify", "Verify a fingerprint",
		`Verify a fingerprint against the enrolled credential.

Exits 0 when the fingerprint is recognized and 2 when the workflow ends
without acceptance.`,
		workflowKind{mode: worker.ModeVerify})

	enrollCmd := workflowCmd("enroll", "Enroll a fingerprint",
		`Enroll a new fingerprint. With --use-pinentry a backup passcode is collected
through pinentry first. A successful enrollment turns fingerprint unlock on.`,
		workflowKind{mode: worker.ModeEnroll})
	enrollCmd.Flags().Bool(FlagPinentry, false, "Ask for a backup passcode with pinentry")

	enableCmd := workflowCmd("enable", "Turn fingerprint unlock on after a verification",
		`Verify a fingerprint and, once it is recognized, turn fingerprint
unlock on.`,
		workflowKind{mode: worker.ModeVerify, enableOnAccept: true})

	disableCmd := &cobra.Command{
		Use:   "disable",
		Short: "Turn fingerprint unlock off",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := newSensor(cfg, logger)
			if err != nil {
				return fmt.Errorf("create sensor: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			if err := s.SetCredentialSlotEnabled(ctx, false); err != nil {
				return fmt.Errorf("disable credential slot: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Fingerprint unlock disabled")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show workflow status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			client, err := getDaemonClient()
			if err != nil {
				cfg, _, cfgErr := loadConfig(cmd)
				if cfgErr != nil {
					return err
				}
				st, stErr := events.LoadState(cfg.Paths.State)
				if stErr != nil {
					return fmt.Errorf("read state: %w", stErr)
				}
				if viper.GetBool(FlagJSON) {
					data, err := json.MarshalIndent(st, "", "  ")
					if err != nil {
						return fmt.Errorf("marshal state: %w", err)
					}
					_, _ = fmt.Fprintln(out, string(data))
					return nil
				}
				printPersisted(out, st, time.Now())
				return nil
			}

			status, err := client.Status()
			if err != nil {
				return err
			}

			if viper.GetBool(FlagJSON) {
				data, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal status: %w", err)
				}
				_, _ = fmt.Fprintln(out, string(data))
				return nil
			}
			printStatus(out, status)
			return nil
		},
	}
	statusCmd.Flags().Bool(FlagJSON, false, "Output status as JSON")
	_ = viper.BindPFlag(FlagJSON, statusCmd.Flags().Lookup(FlagJSON))

	notifyCmd := func(use, short, done string, call func(*daemon.Client) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := getDaemonClient()
				if err != nil {
					return err
				}
				if err := call(client); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), done)
				return nil
			},
		}
	}

	focusCmd := notifyCmd("focus", "Tell the headless workflow its UI gained focus",
		"Focus reported", (*daemon.Client).Focus)
	blurCmd := notifyCmd("blur", "Tell the headless workflow its UI lost focus",
		"Blur reported", (*daemon.Client).Blur)
	dismissCmd := notifyCmd("dismiss", "Dismiss the headless workflow",
		"Dismiss requested - the workflow ends once the sensor settles", (*daemon.Client).Dismiss)

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "View recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			logPath := viper.GetString(FlagLogFile)
			if info, err := daemon.FindDaemonInfo(""); err == nil {
				logPath = info.LogPath
			} else {
				cfg, _, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				logPath = cfg.Paths.Log
			}

			if viper.GetBool(FlagFollow) {
				return tailFollow(cmd.Context(), cmd.OutOrStdout(), logPath)
			}
			return tailLast(cmd.OutOrStdout(), logPath, viper.GetInt(FlagCount))
		},
	}
	eventsCmd.Flags().Bool(FlagFollow, false, "Follow event stream (like tail -f)")
	eventsCmd.Flags().Int(FlagCount, 20, "Number of recent events to show")
	eventsCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(focusCmd)
	rootCmd.AddCommand(blurCmd)
	rootCmd.AddCommand(dismissCmd)
	rootCmd.AddCommand(eventsCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if errors.Is(err, errRejected) {
			os.Exit(2)
		}
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
