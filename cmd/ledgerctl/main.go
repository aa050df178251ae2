package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"
	_ "time/tzdata"

	"github.com/google/subcommands"
)

var configPath = flag.String("config", os.Getenv("KAIROS_CONFIG"), "path to a YAML config file (env vars override it)")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "ledger")
	}

	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
