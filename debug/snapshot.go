// Package debug renders engine state snapshots for post-mortem use.
package debug

import (
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"

	"dotmatrix"
)

var dumper = spew.ConfigState{Indent: "  ", DisableMethods: true}

// DumpState writes a readable dump of the engine state, typically
// called when the engine stops on a fatal error.
func DumpState(w io.Writer, emu *dotmatrix.Emu) {
	state := emu.Snapshot()

	fmt.Fprintf(w, "engine state at mcycle %d\n", state.Clock)
	fmt.Fprintf(w, "AF=%04X BC=%04X DE=%04X HL=%04X SP=%04X PC=%04X\n",
		state.Registers.AF(), state.Registers.BC(), state.Registers.DE(),
		state.Registers.HL(), state.Registers.SP, state.Registers.PC)
	dumper.Fdump(w, state)
}
