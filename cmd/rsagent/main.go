// Command rsagent serves the remote screen services of one machine:
// registration, access control, connectivity and chat.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/errors"
	"github.com/spf13/pflag"

	"remote-screen-rpc/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("rsagent", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path of the YAML configuration (default $"+config.EnvPath+")")
	logLevel := flags.String("log-level", "", "loggo specification overriding the configured log-level")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		return errors.Trace(err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.ConfigureLogging(); err != nil {
		return errors.Trace(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := cfg.OpenRegistry()
	if err != nil {
		return errors.Annotate(err, "opening registry")
	}
	defer reg.Close()

	agent := NewAgent(cfg, reg)
	if err := agent.Start(ctx); err != nil {
		return errors.Trace(err)
	}
	<-ctx.Done()
	logger.Infof("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Agent.ShutdownTimeout)
	defer cancel()
	return errors.Trace(agent.Stop(stopCtx))
}
