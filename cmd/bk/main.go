package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"bk-go/internal/app"
	"bk-go/internal/bk"
	"bk-go/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Full", "Retrieve").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "bk",
	Short: "Directory backup tool",
	Long:  "bk snapshots directory trees into full, incremental or differential archives\nstored locally or in an S3-compatible object store.",
}

var fullCmd = &cobra.Command{
	Use:   "full SRC",
	Short: "Run a full backup of a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		freq, _ := cmd.Flags().GetString("schedule")

		a, err := newApp("Full")
		if err != nil {
			return err
		}
		defer a.Close()

		record, err := a.RunFull(cmd.Context(), args[0], freq)
		if err != nil {
			return fmt.Errorf("full backup failed: %w", err)
		}

		fmt.Printf("Backup complete: %s\n", record.ID)
		if freq != "" {
			fmt.Printf("Scheduled %s backups for %s\n", freq, record.SourcePath)
		}
		return nil
	},
}

var incrementalCmd = &cobra.Command{
	Use:   "incremental BACKUP_ID SRC",
	Short: "Back up changes since the lineage's last run",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Incremental")
		if err != nil {
			return err
		}
		defer a.Close()

		record, err := a.RunIncremental(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("incremental backup failed: %w", err)
		}

		fmt.Printf("Backup complete: %s\n", record.ID)
		return nil
	},
}

var differentialCmd = &cobra.Command{
	Use:   "differential BACKUP_ID SRC",
	Short: "Back up changes since the lineage's full backup",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Differential")
		if err != nil {
			return err
		}
		defer a.Close()

		record, err := a.RunDifferential(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("differential backup failed: %w", err)
		}

		fmt.Printf("Backup complete: %s\n", record.ID)
		return nil
	},
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve BACKUP_ID DEST",
	Short: "Restore a backup archive into a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Retrieve")
		if err != nil {
			return err
		}
		defer a.Close()

		restored, err := a.Retrieve(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("retrieve failed: %w", err)
		}

		fmt.Printf("Restored to %s\n", restored)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("List")
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.List()
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No backups recorded.")
			return nil
		}

		for _, r := range records {
			when := r.Timestamp
			if t, err := time.Parse(bk.TimestampLayout, r.Timestamp); err == nil {
				when = t.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%s  %-12s  %s  %-6s  %s\n", r.ID, r.Kind, when, r.StorageKind, r.SourcePath)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete BACKUP_ID",
	Short: "Delete a backup archive and its record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Delete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Delete(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}

		fmt.Printf("Deleted backup %s\n", args[0])
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair drift between metadata and storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Reconcile")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Reconcile(cmd.Context()); err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}

		fmt.Println("Reconciliation complete.")
		return nil
	},
}

// schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage recurring backups",
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add FREQUENCY BACKUP_ID",
	Short: "Schedule a recorded backup to recur (daily, weekly or monthly)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ScheduleAdd")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ScheduleAdd(args[0], args[1]); err != nil {
			return err
		}

		fmt.Printf("Scheduled %s backups for %s\n", args[0], args[1])
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedule entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ScheduleList")
		if err != nil {
			return err
		}
		defer a.Close()

		statuses, err := a.ScheduleList()
		if err != nil {
			return err
		}

		if len(statuses) == 0 {
			fmt.Println("No schedules configured.")
			return nil
		}

		for _, s := range statuses {
			lastRun := "never"
			if !s.LastRun.IsZero() {
				lastRun = s.LastRun.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%s  %-8s  last run: %s\n", s.Entry.BackupID, s.Entry.Frequency, lastRun)
		}
		return nil
	},
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Fire every due schedule entry once",
	Long:  "Evaluates all schedule entries and runs the due ones. Invoke periodically\nfrom cron or a systemd timer; the command never sleeps or polls.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ScheduleRun")
		if err != nil {
			return err
		}
		defer a.Close()

		fired, err := a.RunDueSchedules(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Fired %d scheduled backup(s)\n", fired)
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		remote, _ := cmd.Flags().GetBool("remote")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if remote {
			cfg.StorageType = bk.StorageRemote
			if err := promptRemote(&cfg.Remote); err != nil {
				return err
			}
		}

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Storage:  %s\n", cfg.StorageType)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Storage:   %s\n", cfg.StorageType)
		fmt.Printf("Format:    %s\n", cfg.ArchiveFormat)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Data Dir:  %s\n", cfg.DataDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		if cfg.StorageType == bk.StorageRemote {
			fmt.Printf("Endpoint:  %s\n", cfg.Remote.Endpoint)
			fmt.Printf("Bucket:    %s\n", cfg.Remote.Bucket)
		}
		return nil
	},
}

var configKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the archive encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Keygen")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetupEncryption(); err != nil {
			return err
		}

		fmt.Println("Key pair generated. Set encryption type = \"age\" in the config to enable.")
		return nil
	},
}

// promptRemote gathers object store settings interactively. The secret
// key is read without echo.
func promptRemote(rc *config.RemoteConfig) error {
	reader := bufio.NewReader(os.Stdin)

	prompt := func(label string) (string, error) {
		fmt.Printf("%s: ", label)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	var err error
	if rc.Endpoint, err = prompt("Endpoint (host:port)"); err != nil {
		return err
	}
	if rc.Bucket, err = prompt("Bucket"); err != nil {
		return err
	}
	if rc.AccessKey, err = prompt("Access key"); err != nil {
		return err
	}

	fmt.Print("Secret key: ")
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("reading secret key: %w", err)
	}
	rc.SecretKey = strings.TrimSpace(string(secret))

	use, err := prompt("Use TLS (y/n)")
	if err != nil {
		return err
	}
	rc.Secure = strings.EqualFold(use, "y") || strings.EqualFold(use, "yes")
	return nil
}

func init() {
	fullCmd.Flags().String("schedule", "", "Recur this backup (daily, weekly or monthly)")

	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeygenCmd)
	configInitCmd.Flags().Bool("remote", false, "Configure remote object store storage")

	rootCmd.AddCommand(fullCmd)
	rootCmd.AddCommand(incrementalCmd)
	rootCmd.AddCommand(differentialCmd)
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(configCmd)
}
