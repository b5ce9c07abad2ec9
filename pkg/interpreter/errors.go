package interpreter

import (
	"fmt"

	"github.com/octaspire/dern-sub003/pkg/runtime"
)

// AbortError is raised as a panic by the abort builtin. Hosts recover it
// and stop the program.
type AbortError struct {
	Message string
}

func (e AbortError) Error() string {
	return fmt.Sprintf("abort: %s", e.Message)
}

// ordinal renders a 1-based argument position the way error messages do.
func ordinal(index int) string {
	return fmt.Sprintf("%dth", index+1)
}

// checkMutable consumes one mutation of target, returning an Error value
// when target is constant.
func (i *Interpreter) checkMutable(name string, target *runtime.Value, index int) *runtime.Value {
	if target.ConsumeMutation() {
		return nil
	}
	return i.store.NewErrorf("Builtin '%s' tried to modify a constant value at %s argument.", name, ordinal(index))
}
