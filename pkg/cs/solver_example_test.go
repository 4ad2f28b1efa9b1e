package cs_test

import (
	"context"
	"fmt"

	"github.com/gitrdm/kuaa/pkg/cs"
)

// ExampleSolver_Generator orders three words so that the first precedes
// the third, pulling solutions one at a time.
func ExampleSolver_Generator() {
	words := []string{"John", "died", "yesterday"}
	vars := make([]*cs.Var, len(words))
	for i := range vars {
		vars[i] = cs.NewIVar(fmt.Sprintf("o%d", i), cs.Range(0, len(words)), true)
	}
	order, err := cs.NewOrder(vars)
	if err != nil {
		panic(err)
	}
	pairs := cs.NewDetVar("pairs", cs.NewIntSet(cs.PairCode(0, 2, len(words))))
	prec, err := cs.NewPrecedenceSelection(pairs, vars)
	if err != nil {
		panic(err)
	}

	solver := cs.NewSolver("ordering", []cs.Constraint{prec, order}, cs.NewDStore("example"))
	g := solver.Generator()
	for g.Next(context.Background()) {
		out := make([]string, len(words))
		for i, v := range vars {
			pos, _ := v.IntValue(g.Store())
			out[pos] = words[i]
		}
		fmt.Println(out)
	}
	// Output:
	// [John died yesterday]
	// [John yesterday died]
	// [died John yesterday]
}
