package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/ghatdev/redoxfs/internal/config"
	"github.com/ghatdev/redoxfs/internal/registry"
	"github.com/ghatdev/redoxfs/pkg/utils"
)

const usage = "redoxfs-mounts [--config path] [--prune]"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var (
		configPath string
		prune      bool
	)

	flagSet := pflag.NewFlagSet("redoxfs-mounts", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&configPath, "config", "", "path to the config file")
	flagSet.BoolVar(&prune, "prune", false, "delete records whose daemon is gone")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(stdout, "usage: "+usage)
			fmt.Fprint(stdout, flagSet.FlagUsages())
			return 0
		}
		fmt.Fprintf(stderr, "redoxfs-mounts: %v\n%s\n", err, usage)
		return 1
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "redoxfs-mounts: %v\n", err)
		return 1
	}
	if !cfg.Registry.Enabled {
		fmt.Fprintln(stderr, "redoxfs-mounts: the mount registry is disabled")
		return 1
	}

	ctx := context.Background()
	db, err := registry.Open(ctx, cfg.Registry.Path)
	if err != nil {
		fmt.Fprintf(stderr, "redoxfs-mounts: %v\n", err)
		return 1
	}
	defer db.Close()

	if err := list(ctx, db, stdout, prune, utils.ProcessAlive); err != nil {
		fmt.Fprintf(stderr, "redoxfs-mounts: %v\n", err)
		return 1
	}
	return 0
}

func list(ctx context.Context, db *sql.DB, out io.Writer, prune bool, alive func(int) bool) error {
	if prune {
		n, err := registry.PruneMounts(ctx, db, alive)
		if err != nil {
			return fmt.Errorf("failed to prune mounts: %w", err)
		}
		fmt.Fprintf(out, "pruned %d record(s)\n", n)
	}

	mounts, err := registry.ListMounts(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to list mounts: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPID\tDAEMON\tSTATUS\tDISK\tFS UUID\tMOUNTPOINT\tUPDATED")
	for _, m := range mounts {
		daemon := "gone"
		if alive(m.Pid) {
			daemon = "running"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			m.ID, m.Pid, daemon, m.Status, m.DiskPath, m.FSUUID, m.Mountpoint,
			m.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
