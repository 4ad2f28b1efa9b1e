package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gitrdm/kuaa/internal/config"
	"github.com/gitrdm/kuaa/internal/logging"
	"github.com/gitrdm/kuaa/pkg/lexicon"
)

// version is set at link time with -ldflags "-X main.version=...".
var version = "v0.1.0"

// usageError marks bad invocations so main can pick the exit code.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

func isUsage(err error) bool {
	var u usageError
	return errors.As(err, &u)
}

// usageArgs marks positional argument errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// app carries the state shared by every subcommand.
type app struct {
	configPath  string
	lexiconPath string
	logLevel    string

	cfg config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "kuaa",
		Short:         "Rule-based machine translation with constraint-solved coverings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	// Subcommands inherit the flag error handler.
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "TOML configuration file")
	root.PersistentFlags().StringVar(&a.lexiconPath, "lexicon", "", "YAML language pack (overrides the config file)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(newTranslateCmd(a), newCheckCmd(a), newVersionCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.lexiconPath != "" {
		cfg.Lexicon = a.lexiconPath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	log, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return usageError{err}
	}
	a.cfg = cfg
	a.log = log
	return nil
}

func (a *app) loadLexicon(path string) (*lexicon.Lexicon, error) {
	if path == "" {
		return nil, usagef("no lexicon given: pass --lexicon or set lexicon in the config file")
	}
	lex, err := lexicon.Load(path)
	if err != nil {
		return nil, err
	}
	a.log.Debug("lexicon loaded", "path", path, "source", lex.Source(), "target", lex.Target(),
		"groups", len(lex.SourceGroups()))
	return lex, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  usageArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "kuaa", version)
		},
	}
}
