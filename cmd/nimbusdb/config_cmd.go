package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nimbusdb/nimbusdb/internal/config"
)

func newConfigCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}
	cmd.AddCommand(newConfigValidateCmd(configFile), newConfigShowCmd(configFile), newConfigReloadCmd())
	return cmd
}

func newConfigReloadCmd() *cobra.Command {
	var pidFile string

	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Signal a running 'nimbusdb serve' process to reload its config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(pidFile)
			if err != nil {
				return fmt.Errorf("reading pid file: %w", err)
			}
			pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
			if err != nil {
				return fmt.Errorf("pid file %s does not contain a valid pid: %w", pidFile, err)
			}
			proc, err := os.FindProcess(pid)
			if err != nil {
				return err
			}
			if err := proc.Signal(syscall.SIGHUP); err != nil {
				return fmt.Errorf("signaling pid %d: %w", pid, err)
			}
			cmd.Printf("sent reload signal to pid %d\n", pid)
			return nil
		},
	}
	cmd.Flags().StringVar(&pidFile, "pid-file", "/var/run/nimbusdb.pid", "path to the pid file written by 'nimbusdb serve --pid-file'")
	return cmd
}

func newConfigValidateCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file (or built-in defaults) and report any errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			errs := config.ValidateConfig(cfg)
			if len(errs) == 0 {
				cmd.Println("configuration is valid")
				return nil
			}
			for _, e := range errs {
				cmd.Println(e)
			}
			return fmt.Errorf("%d validation error(s)", len(errs))
		},
	}
}

func newConfigShowCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			cmd.Print(string(out))
			return nil
		},
	}
}
