package hir

import (
	"fmt"
	"strings"
)

// Dump renders blocks in spec.md §6/§8's textual debug format, the
// compatibility contract the golden-dump tests compare byte-for-byte (the
// exact shape confirmed against the literal strings in
// original_source/test/test-hir.cc):
//
//	# Block <id>[ (loop)]
//	i<N> = <InstrName>[[<operand>]][(i<arg>, ...)]
//	# succ: <id>[ <id>]
//	--------
//
// An instruction's trailing `(args...)` is omitted entirely when it has no
// arguments (`i0 = Entry`, not `i0 = Entry()`), and a block's `# succ:` line
// is omitted entirely when it has no successors (a Return-terminated block
// has none). φs are listed before ordinary instructions within a block,
// matching the Basic Block model's separate phis/instructions lists
// (spec.md §3); both lists are already in creation order.
func Dump(blocks []*Block) string {
	var sb strings.Builder
	for i, blk := range blocks {
		if i > 0 {
			sb.WriteString("--------\n")
		}
		if blk.IsLoopHeader {
			fmt.Fprintf(&sb, "# Block %d (loop)\n", blk.ID)
		} else {
			fmt.Fprintf(&sb, "# Block %d\n", blk.ID)
		}
		for _, v := range blk.Phis {
			if v.Removed {
				continue
			}
			sb.WriteString(dumpValue(v))
			sb.WriteString("\n")
		}
		for _, v := range blk.Instrs {
			if v.Removed {
				continue
			}
			sb.WriteString(dumpValue(v))
			sb.WriteString("\n")
		}
		if blk.nsuccs > 0 {
			sb.WriteString("# succ:")
			for s := 0; s < blk.nsuccs; s++ {
				fmt.Fprintf(&sb, " %d", blk.Succs[s].ID)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func dumpValue(v *Value) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "i%d = %s", v.ID, v.Tag)
	if v.HasOperand {
		fmt.Fprintf(&sb, "[%s]", v.Operand)
	}
	if len(v.Args) > 0 {
		sb.WriteString("(")
		for i, a := range v.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "i%d", a.ID)
		}
		sb.WriteString(")")
	}
	return sb.String()
}
