// Command rsclient opens a session with a remote screen agent, reports the
// access mode of every feature and optionally changes some of them.
//
//	rsclient --config client.yaml --set RemoteControl=Denied
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/juju/errors"
	"github.com/spf13/pflag"

	"remote-screen-rpc/config"
	"remote-screen-rpc/services/accesscontrol"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("rsclient", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path of the YAML configuration (default $"+config.EnvPath+")")
	logLevel := flags.String("log-level", "", "loggo specification overriding the configured log-level")
	sets := flags.StringArray("set", nil, "change the access mode of a feature, as feature=access (repeatable)")
	message := flags.String("message", "", "send this message to the agent's machine chat")
	keep := flags.Bool("keep", false, "leave the session open instead of disconnecting")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	changes, err := parseChanges(*sets)
	if err != nil {
		return errors.Trace(err)
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

	sess := newSession(cfg, reg, os.Stdout)
	defer sess.close()
	return errors.Trace(sess.run(ctx, plan{
		changes:    changes,
		message:    *message,
		disconnect: !*keep,
	}))
}

// change is one --set argument.
type change struct {
	feature accesscontrol.AccessControl
	access  accesscontrol.Access
}

func parseChanges(sets []string) ([]change, error) {
	changes := make([]change, 0, len(sets))
	for _, set := range sets {
		name, value, ok := strings.Cut(set, "=")
		if !ok {
			return nil, errors.NotValidf("--set %q, want feature=access", set)
		}
		feature, err := accesscontrol.ParseAccessControl(strings.TrimSpace(name))
		if err != nil {
			return nil, errors.Trace(err)
		}
		access, err := accesscontrol.ParseAccess(strings.TrimSpace(value))
		if err != nil {
			return nil, errors.Trace(err)
		}
		changes = append(changes, change{feature: feature, access: access})
	}
	return changes, nil
}
