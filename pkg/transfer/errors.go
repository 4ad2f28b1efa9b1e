package transfer

import (
	"errors"
	"fmt"
)

// Recoverable build failures. They mean "this combination of target groups
// does not work"; the caller moves on to the next combination.
var (
	ErrUnification   = errors.New("target features fail to unify")
	ErrAgreement     = errors.New("agreement conflict")
	ErrOrderConflict = errors.New("contradictory order constraints")
)

// ConstructionError reports a violated invariant while instantiating a
// group or building a tree. It halts processing of the sentence.
type ConstructionError struct {
	Group  string
	Span   []int // sentence node indices involved
	Reason string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construction error in group %s over %v: %s", e.Group, e.Span, e.Reason)
}
