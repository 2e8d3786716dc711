package facts

import (
	"fmt"
	"strings"
)

// Dump renders every fact in index order. Two builds over the same
// program must produce byte-identical dumps; the determinism tests
// compare exactly this.
func (idx *Index) Dump() string {
	var sb strings.Builder
	p := idx.prog
	fmt.Fprintf(&sb, "unit %s\n", p.Unit)

	for ci := range p.Contracts {
		c := &p.Contracts[ci]
		fmt.Fprintf(&sb, "contract %s kind=%s", c.Name, c.Kind)
		if err := idx.LinearErrs[ci]; err != nil {
			fmt.Fprintf(&sb, " linearization-error=%q\n", err.Error())
			continue
		}
		sb.WriteString(" c3=[")
		for i, cid := range idx.Linearization[ci] {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(p.Contracts[cid].Name)
		}
		sb.WriteString("]\n")

		for _, s := range idx.Slots[ci] {
			fmt.Fprintf(&sb, "  slot %d %s (from %s)\n", s.Slot, p.Vars[s.Var].Name, p.Contracts[s.DeclaredIn].Name)
		}
		for _, s := range idx.Selectors[ci] {
			fmt.Fprintf(&sb, "  selector %s %s\n", s.Hex(), s.Signature)
		}
	}

	for fi := range p.Functions {
		f := &p.Functions[fi]
		fmt.Fprintf(&sb, "fn %s.%s kind=%s vis=%s", p.Contracts[f.Contract].Name, f.Name, f.Kind, f.Visibility)
		if idx.ReachesExternal[fi] {
			sb.WriteString(" reaches-external")
		}
		sb.WriteString("\n")
		for _, callee := range idx.Calls[fi] {
			fmt.Fprintf(&sb, "  calls %s\n", p.Functions[callee].Name)
		}
		for _, ec := range idx.ExternalCalls[fi] {
			fmt.Fprintf(&sb, "  external #%d kind=%s call=%s target=%q value=%t checked=%t @%d\n",
				ec.Ordinal, ec.Kind, ec.Call, ec.Target, ec.TransfersValue, ec.Checked, ec.Span.Start)
		}
		for _, a := range idx.Reads[fi] {
			fmt.Fprintf(&sb, "  read %s after=%t\n", p.Vars[a.Var].Name, a.AfterExternalCall)
		}
		for _, a := range idx.Writes[fi] {
			fmt.Fprintf(&sb, "  write %s after=%t compound=%t @%d\n",
				p.Vars[a.Var].Name, a.AfterExternalCall, a.Compound, a.Span.Start)
		}
	}
	return sb.String()
}
