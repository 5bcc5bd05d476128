// Command driftwoodd runs the driftwood IRC daemon.
//
// Out of scope per spec.md §1 ("thin wrappers"): this file owns argument
// parsing and signal-driven shutdown only. The core server is
// github.com/driftwood-irc/driftwood/internal/ircd.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/driftwood-irc/driftwood/internal/ircd"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	log := logrus.StandardLogger()

	var (
		port       uint16
		password   string
		configFile string
	)

	root := &cobra.Command{
		Use:   "driftwoodd",
		Short: "A minimal single-process IRC server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(log, port, password, configFile)
		},
	}

	root.Flags().Uint16Var(&port, "port", 0, "Listening port (1-65535).")
	root.Flags().StringVar(&password, "password", "", "Server admission password.")
	root.Flags().StringVar(&configFile, "config", "", "Optional TOML configuration file.")

	if err := root.Execute(); err != nil {
		log.WithError(err).Error("fatal")
		os.Exit(1)
	}
}

func run(log *logrus.Logger, port uint16, password, configFile string) error {
	var srv *ircd.Server

	if configFile != "" {
		cfg, err := ircd.LoadConfig(configFile)
		if err != nil {
			return err
		}
		srv = ircd.New(cfg.ListenPort, cfg.Password)
		srv.Apply(cfg)
		if port != 0 {
			srv.Apply(&ircd.Config{ListenPort: port})
		}
		if password != "" {
			srv.Apply(&ircd.Config{Password: password})
		}
	} else {
		if port == 0 || password == "" {
			return errMissingArgs
		}
		srv = ircd.New(port, password)
	}

	srv.SetLogger(log)

	if err := srv.Setup(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		srv.Stop()
	}()

	return srv.Run()
}

var errMissingArgs = argError("you must provide either --config, or both --port and --password")

type argError string

func (e argError) Error() string { return string(e) }
