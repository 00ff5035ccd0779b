package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fmeng/anstore"
	"github.com/fmeng/anstore/config"
	"github.com/fmeng/anstore/internal/logging"
	"github.com/fmeng/anstore/introspect"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	modules    []string
	roots      []string
	configFile string
	format     string
	logLevel   string
	logFile    string
	tests      bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "anstore",
		Short: "Inspect marker annotations of Go modules",
		Long: `anstore reads the Go sources of one or more modules, finds the marker types
(types documented with "+anstore:marker") and lists every declaration using them.

Scan roots come from --root, from positional arguments, from the config file
(anstore.scan.roots and any key below it) and from ANSTORE_SCAN_ROOTS* variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch flags.format {
			case formatTable, formatJSON:
				return nil
			default:
				return fmt.Errorf("unknown format %q (want %s or %s)", flags.format, formatTable, formatJSON)
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringSliceVarP(&flags.modules, "module", "m", []string{"."}, "directory holding a go.mod; the first one is the main module")
	pf.StringSliceVarP(&flags.roots, "root", "r", nil, "package path to scan, with its subpackages")
	pf.StringVarP(&flags.configFile, "config", "c", "", "config file (yaml, toml or json)")
	pf.StringVarP(&flags.format, "format", "o", formatTable, "output format: table or json")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error (default $"+logging.LevelEnv+" or info)")
	pf.StringVar(&flags.logFile, "log-file", "", "write JSON logs to a rotated file instead of stderr")
	pf.BoolVar(&flags.tests, "tests", false, "also read _test.go files")

	cmd.AddCommand(
		newUnitsCmd(flags),
		newIndexCmd(flags),
		newDescribeCmd(flags),
		newVersionCmd(),
	)
	return cmd
}

// session is an opened registry with its logger.
type session struct {
	reg   *anstore.Registry
	src   *introspect.Source
	close func()
}

func (f *globalFlags) open(ctx context.Context, cmd *cobra.Command, args []string) (*session, error) {
	v, err := config.Load(ctx, config.LoadOptions{ConfigFile: f.configFile})
	if err != nil {
		return nil, err
	}

	logs, closeLogs, err := logging.New(logging.Options{
		Level:   f.logLevel,
		File:    f.logFile,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	roots := append(append([]string(nil), f.roots...), args...)
	reg, src, err := anstore.New(ctx, &anstore.Config{
		ModuleDirs:   f.modules,
		Roots:        roots,
		Viper:        v,
		Logger:       logs.GetLogger(),
		IncludeTests: f.tests,
	})
	if err != nil {
		closeLogs()
		return nil, err
	}
	return &session{reg: reg, src: src, close: closeLogs}, nil
}

func (f *globalFlags) render(cmd *cobra.Command, r anstore.Renderable) {
	if f.format == formatJSON {
		fmt.Fprintln(cmd.OutOrStdout(), r.PrettyJson("  "))
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), r.PrettyTable())
}
