package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitrdm/kuaa/pkg/lexicon"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [lexicon.yaml]",
		Short: "Validate a language pack and report every problem",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Lexicon
			if len(args) == 1 {
				path = args[0]
			}
			lex, err := a.loadLexicon(path)
			if err != nil {
				var verr *lexicon.ValidationError
				if errors.As(err, &verr) {
					for _, p := range verr.Problems {
						fmt.Fprintln(cmd.OutOrStdout(), "  -", p)
					}
					return fmt.Errorf("%s: %d problem(s)", path, len(verr.Problems))
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s -> %s, %d groups)\n",
				path, lex.Source(), lex.Target(), len(lex.SourceGroups()))
			return nil
		},
	}
}
