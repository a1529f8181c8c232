package hir

import "candor/internal/ast"

// infer runs spec.md §4.2's representation-inference fixed-point pass:
// CalculateRepresentation is applied to every live value until no bitmask
// changes. Values are visited in block then φ-then-instruction order each
// round; the pass is a fixed point so visiting order does not affect the
// result, only how many rounds it takes to settle.
func infer(blocks []*Block) {
	changed := true
	for changed {
		changed = false
		for _, blk := range blocks {
			for _, v := range blk.Phis {
				if v.Removed {
					continue
				}
				if r := calcRepresentation(v); r != v.Repr {
					v.Repr = r
					changed = true
				}
			}
			for _, v := range blk.Instrs {
				if v.Removed {
					continue
				}
				if r := calcRepresentation(v); r != v.Repr {
					v.Repr = r
					changed = true
				}
			}
		}
	}
}

func calcRepresentation(v *Value) Representation {
	switch v.Tag {
	case NilConst:
		return RepNil

	case Literal:
		if v.Source == nil {
			return RepAny
		}
		switch v.Source.Kind {
		case ast.Number:
			return RepNumber
		case ast.String:
			return RepString
		case ast.True, ast.False:
			return RepBoolean
		case ast.Nil:
			return RepNil
		}
		return RepAny

	case Phi:
		if len(v.Args) == 0 {
			return RepAny
		}
		r := ^Representation(0)
		for _, a := range v.Args {
			r &= a.Repr
		}
		return r

	case BinOp:
		switch v.Operand {
		case "+", "-", "*", "/":
			return RepNumber
		case "==", "!=", "===", "!==", "<", ">", "<=", ">=":
			return RepBoolean
		case "&", "|", "^":
			return RepSmi
		}
		return RepAny

	case StoreContext:
		if len(v.Args) > 0 {
			return v.Args[0].Repr
		}
		return RepAny

	case AllocateObject, Clone:
		return RepObject

	case AllocateArray:
		return RepArray

	case Function:
		return RepFunction

	case Typeof:
		return RepString

	case Sizeof:
		return RepNumber

	case Keysof:
		return RepArray

	case Not:
		return RepBoolean

	default:
		return RepAny
	}
}
