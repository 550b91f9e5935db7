package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/nimbusdb/nimbusdb"
)

func newBackupCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Take or restore an online backup of a data directory",
	}
	cmd.AddCommand(newBackupRunCmd(configFile), newBackupRestoreCmd())
	return cmd
}

func newBackupRunCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run <target-path>",
		Short: "Write a consistent backup archive of the running data directory to target-path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(*configFile)
			if err != nil {
				return err
			}
			defer db.Close()

			stamp, err := db.OnlineBackup(args[0])
			if err != nil {
				return err
			}
			cmd.Printf("backup written to %s at %s\n", args[0], stamp.Format(time.RFC3339))
			return nil
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <archive-path> <data-dir>",
		Short: "Restore a backup archive into a fresh data directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := nimbusdb.Restore(args[0], args[1]); err != nil {
				return err
			}
			cmd.Printf("restored %s into %s\n", args[0], args[1])
			return nil
		},
	}
}
