// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ManuGH/tablo-rescue/internal/config"
	"github.com/ManuGH/tablo-rescue/internal/version"
)

// cliFlags holds the raw command line values.
type cliFlags struct {
	outDir             string
	ids                []int64
	force              bool
	dump               bool
	dbFile             string
	verbose            bool
	debug              bool
	showVersion        bool
	configPath         string
	acceptSizeMismatch bool
	nfo                bool
	checkDB            bool
	metricsFile        string
	logFormat          string
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func isUsageError(err error) bool {
	var ue usageError
	return errors.As(err, &ue)
}

func newRootCmd(stdout, stderr io.Writer, exitCode *int) *cobra.Command {
	var f cliFlags

	cmd := &cobra.Command{
		Use:   "tablo-rescue PATH",
		Short: "Rescue recordings from a Tablo DVR drive",
		Long: `Reads the Tablo database found on the drive mounted at PATH, matches every
recording against the video data on the drive and copies the recoverable ones
to the output directory. The drive is never written to.

Recordings are reported as recoverable, missing, ambiguous (more than one
candidate on disk) or size-mismatch (on-disk size disagrees with the database).
Only recoverable recordings are copied unless --accept-size-mismatch is given.`,
		Example: `  tablo-rescue /mnt/tablo -D
  tablo-rescue /mnt/tablo -D -I 1201
  tablo-rescue /mnt/tablo -o ~/Videos -I 1201,1202
  tablo-rescue /mnt/tablo --nfo -v`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.showVersion {
				_, err := fmt.Fprintln(stdout, version.String())
				return err
			}
			if len(args) == 0 {
				return usageError{msg: "missing drive mount point PATH"}
			}

			// "-I 1 2 3" leaves 2 and 3 as positional arguments.
			for _, a := range args[1:] {
				id, err := strconv.ParseInt(a, 10, 64)
				if err != nil || len(f.ids) == 0 {
					return usageError{msg: fmt.Sprintf("unexpected argument %q", a)}
				}
				f.ids = append(f.ids, id)
			}

			cfg, err := config.NewLoader(f.configPath, version.Version).Load(overrides(cmd, f)...)
			if err != nil {
				return err
			}

			a := &app{
				cfg:    cfg,
				mount:  args[0],
				ids:    f.ids,
				dump:   f.dump,
				stdout: stdout,
				stderr: stderr,
			}
			code, err := a.run(cmd.Context())
			*exitCode = code
			return err
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{msg: err.Error()}
	})

	fl := cmd.Flags()
	fl.StringVarP(&f.outDir, "outdir", "o", config.DefaultOutDir(), "output directory, created if absent")
	fl.Int64SliceVarP(&f.ids, "id", "I", nil, "recording id(s) to process; repeatable or comma separated")
	fl.BoolVarP(&f.force, "force", "f", false, "overwrite existing output files")
	fl.BoolVarP(&f.dump, "dump", "D", false, "list recordings (or show details for -I ids) instead of copying")
	fl.StringVar(&f.dbFile, "dbfile", "", "use this database file instead of searching the drive")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "log progress (info level)")
	fl.BoolVarP(&f.debug, "debug", "d", false, "log everything (debug level)")
	fl.BoolVarP(&f.showVersion, "version", "V", false, "print version and exit")
	fl.StringVar(&f.configPath, "config", "", "YAML configuration file")
	fl.BoolVar(&f.acceptSizeMismatch, "accept-size-mismatch", false, "copy recordings whose size disagrees with the database")
	fl.BoolVar(&f.nfo, "nfo", false, "write a Kodi .nfo sidecar next to each copied recording")
	fl.BoolVar(&f.checkDB, "check-db", false, "run a read-only integrity check on the database first")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write run metrics to this node_exporter textfile")
	fl.StringVar(&f.logFormat, "log-format", "console", "log format: console or json")

	return cmd
}

// overrides turns the flags the user actually set into config overrides, so
// unset flags never mask the file or environment.
func overrides(cmd *cobra.Command, f cliFlags) []config.Override {
	changed := cmd.Flags().Changed
	var out []config.Override
	if changed("outdir") {
		out = append(out, func(c *config.AppConfig) { c.OutDir = f.outDir })
	}
	if changed("force") {
		out = append(out, func(c *config.AppConfig) { c.Force = f.force })
	}
	if changed("dbfile") {
		out = append(out, func(c *config.AppConfig) { c.DBFile = f.dbFile })
	}
	if changed("accept-size-mismatch") {
		out = append(out, func(c *config.AppConfig) { c.AcceptSizeMismatch = f.acceptSizeMismatch })
	}
	if changed("nfo") {
		out = append(out, func(c *config.AppConfig) { c.WriteNFO = f.nfo })
	}
	if changed("check-db") {
		out = append(out, func(c *config.AppConfig) { c.CheckDB = f.checkDB })
	}
	if changed("metrics-file") {
		out = append(out, func(c *config.AppConfig) { c.MetricsFile = f.metricsFile })
	}
	if changed("log-format") {
		out = append(out, func(c *config.AppConfig) { c.LogFormat = f.logFormat })
	}
	switch {
	case f.debug:
		out = append(out, func(c *config.AppConfig) { c.LogLevel = "debug" })
	case f.verbose:
		out = append(out, func(c *config.AppConfig) { c.LogLevel = "info" })
	}
	return out
}
