package main

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nimbusdb/nimbusdb"
	"github.com/nimbusdb/nimbusdb/internal/config"
)

// newServeCmd builds the long-running demo command: it opens the data
// directory, re-reads the config file on SIGHUP (when --config is set,
// printing "config reloaded" each time; the open database keeps the
// settings it was opened with), and blocks until SIGINT/SIGTERM, closing the database cleanly on the way out. There is no
// network listener here - embedding hosts call into the Go API directly,
// this command exists to keep a data directory warm (and its indexes
// backfilled) for operational testing.
func newServeCmd(configFile *string) *cobra.Command {
	var pidFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Open a data directory and hold it open, re-reading config on SIGHUP, until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}

			db, err := nimbusdb.Open(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if pidFile != "" {
				if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
					return err
				}
				defer os.Remove(pidFile)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if *configFile != "" {
				manager := config.NewConfigManager(cfg, *configFile)
				manager.SetOnUpdate(func(old, newCfg *config.Config) {
					cmd.Println("config reloaded")
				})

				reload := make(chan os.Signal, 1)
				signal.Notify(reload, syscall.SIGHUP)
				defer signal.Stop(reload)
				go func() {
					for {
						select {
						case <-ctx.Done():
							return
						case <-reload:
							if err := manager.Reload(); err != nil {
								cmd.PrintErrln("reload failed:", err)
							}
						}
					}
				}()
			}

			cmd.Printf("serving %d collection(s) from %s\n", len(db.Collections()), cfg.Storage.DataDir)
			<-ctx.Done()
			cmd.Println("shutting down")
			return nil
		},
	}
	cmd.Flags().StringVar(&pidFile, "pid-file", "", "write the process id to this file for 'nimbusdb config reload' to signal")
	return cmd
}
