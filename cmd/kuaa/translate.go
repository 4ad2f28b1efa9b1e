package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gitrdm/kuaa/internal/metrics"
	"github.com/gitrdm/kuaa/internal/parallel"
	"github.com/gitrdm/kuaa/pkg/transfer"
)

type translateFlags struct {
	all         bool
	interactive bool
	stats       bool
	workers     int
	solutions   int
	maxOutputs  int
}

func newTranslateCmd(a *app) *cobra.Command {
	var f translateFlags
	cmd := &cobra.Command{
		Use:   "translate [sentence...]",
		Short: "Translate sentences given as arguments or one per line on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTranslate(cmd, f, args)
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&f.all, "all", false, "realize every word order of every covering")
	fl.BoolVar(&f.interactive, "interactive", false, "ask before searching for another word order")
	fl.BoolVar(&f.stats, "stats", false, "print solver and realization counters to stderr")
	fl.IntVar(&f.workers, "workers", -1, "sentences translated in parallel (0 means one per CPU)")
	fl.IntVar(&f.solutions, "solutions", -1, "coverings tried per sentence (0 means all)")
	fl.IntVar(&f.maxOutputs, "max-outputs", -1, "word orders per tree (0 means no cap)")
	return cmd
}

func (a *app) options(cmd *cobra.Command, f translateFlags) transfer.TranslateOptions {
	opts := transfer.TranslateOptions{
		Solutions: a.cfg.Solver.MaxSolutions,
		Realize: transfer.RealizeOptions{
			All: a.cfg.Realize.AllTrans,
			Max: a.cfg.Realize.MaxOutputs,
		},
	}
	if cmd.Flags().Changed("all") {
		opts.Realize.All = f.all
	}
	if f.solutions >= 0 {
		opts.Solutions = f.solutions
	}
	if f.maxOutputs >= 0 {
		opts.Realize.Max = f.maxOutputs
	}
	if f.all && f.solutions < 0 {
		opts.Solutions = 0
	}
	return opts
}

func (a *app) runTranslate(cmd *cobra.Command, f translateFlags, args []string) error {
	if f.interactive && f.all {
		return usagef("--interactive and --all are mutually exclusive")
	}
	if f.interactive && len(args) == 0 {
		return usagef("--interactive reads answers from stdin; pass sentences as arguments")
	}
	lex, err := a.loadLexicon(a.cfg.Lexicon)
	if err != nil {
		return err
	}

	m := metrics.New()
	tr := transfer.NewTranslator(lex,
		transfer.WithLogger(a.log),
		transfer.WithRecorder(m),
		transfer.WithMaxPropagation(a.cfg.Solver.MaxPropagation),
	)
	opts := a.options(cmd, f)

	sentences := args
	if len(sentences) == 0 {
		if sentences, err = readLines(cmd.InOrStdin()); err != nil {
			return err
		}
	}

	workers := a.cfg.Batch.Workers
	if f.workers >= 0 {
		workers = f.workers
	}
	if f.interactive {
		workers = 1
		opts.Realize.Continue = prompter(cmd.InOrStdin(), cmd.ErrOrStderr())
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	results, err := parallel.Map(ctx, parallel.Workers(workers), sentences,
		func(ctx context.Context, _ int, raw string) (transfer.Result, error) {
			return tr.Translate(ctx, raw, opts)
		})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, res := range results {
		writeResult(out, res, len(results) > 1 || opts.Solutions != 1)
	}
	if f.stats {
		return m.WriteSummary(cmd.ErrOrStderr())
	}
	return nil
}

// writeResult prints one line per covering. Several coverings or sentences
// are prefixed with the source and numbered, and segments with alternative
// realizations list them.
func writeResult(w io.Writer, res transfer.Result, verbose bool) {
	if !verbose {
		for _, t := range res.Translations {
			fmt.Fprintln(w, t)
		}
		return
	}
	fmt.Fprintf(w, "%s\n", res.Source)
	for i, t := range res.Translations {
		fmt.Fprintf(w, "  %d: %s\n", i+1, t)
		if i >= len(res.Solutions) {
			continue
		}
		for _, seg := range res.Solutions[i].Segments() {
			if len(seg.Outputs) > 1 {
				fmt.Fprintf(w, "     %s: %s\n", strings.Join(seg.Source, " "), strings.Join(seg.Outputs, " / "))
			}
		}
	}
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read sentences: %w", err)
	}
	return lines, nil
}

// prompter shows each realization and asks whether to search for another.
func prompter(in io.Reader, out io.Writer) func(*transfer.TreeTrans, int) bool {
	br := bufio.NewReader(in)
	return func(tt *transfer.TreeTrans, output int) bool {
		fmt.Fprintf(out, "%s\nsearch for another realization? [y/N] ", tt.OutputStrings[output])
		answer, _ := br.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true
		}
		return false
	}
}
