package expr

import (
	"fmt"
	"strings"
)

// Display renders e as a compact, fully-parenthesized s-expression for
// diagnostics (trace output, error messages, `kernelctl` output): never
// consulted by any part of the kernel's core algorithms, which is why it
// lives alongside the other node types rather than gating behind a
// separate rendering package. Bound variables print by de Bruijn index,
// not by name hint, since name hints are not guaranteed unique or even
// present (spec.md §3 invariant 3: alpha-equivalence ignores them).
func Display(e Expr) string {
	var sb strings.Builder
	display(&sb, e)
	return sb.String()
}

func display(sb *strings.Builder, e Expr) {
	switch n := e.(type) {
	case *VarExpr:
		fmt.Fprintf(sb, "#%d", n.Idx)
	case *ConstExpr:
		sb.WriteString(n.Name)
		for _, l := range n.Levels {
			sb.WriteByte(' ')
			sb.WriteString(l.String())
		}
	case *SortExpr:
		fmt.Fprintf(sb, "(Sort %s)", n.Level)
	case *AppExpr:
		sb.WriteString("(")
		display(sb, n.Fn)
		for _, a := range n.Args {
			sb.WriteByte(' ')
			display(sb, a)
		}
		sb.WriteString(")")
	case *LambdaExpr:
		fmt.Fprintf(sb, "(lambda (%s ", n.NameHint)
		display(sb, n.Domain)
		sb.WriteString(") ")
		display(sb, n.Body)
		sb.WriteString(")")
	case *PiExpr:
		fmt.Fprintf(sb, "(Pi (%s ", n.NameHint)
		display(sb, n.Domain)
		sb.WriteString(") ")
		display(sb, n.Body)
		sb.WriteString(")")
	case *SigmaExpr:
		fmt.Fprintf(sb, "(Sigma (%s ", n.NameHint)
		display(sb, n.Domain)
		sb.WriteString(") ")
		display(sb, n.Body)
		sb.WriteString(")")
	case *PairExpr:
		sb.WriteString("(pair ")
		display(sb, n.First)
		sb.WriteByte(' ')
		display(sb, n.Second)
		sb.WriteString(")")
	case *ProjExpr:
		if n.First {
			sb.WriteString("(fst ")
		} else {
			sb.WriteString("(snd ")
		}
		display(sb, n.Arg)
		sb.WriteString(")")
	case *LetExpr:
		fmt.Fprintf(sb, "(let (%s", n.NameHint)
		if n.Type != nil {
			sb.WriteString(" : ")
			display(sb, n.Type)
		}
		sb.WriteString(" = ")
		display(sb, n.Value)
		sb.WriteString(") ")
		display(sb, n.Body)
		sb.WriteString(")")
	case *HEqExpr:
		sb.WriteString("(heq ")
		display(sb, n.Lhs)
		sb.WriteByte(' ')
		display(sb, n.Rhs)
		sb.WriteString(")")
	case *MetaVarExpr:
		fmt.Fprintf(sb, "?%d", n.ID)
	case *ValueExpr:
		sb.WriteString(n.V.Display())
	default:
		sb.WriteString("<?>")
	}
}
