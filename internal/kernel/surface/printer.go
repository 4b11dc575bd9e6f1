package surface

import (
	"fmt"
	"strconv"
	"strings"

	"kernelnerd/internal/kernel/expr"
)

// Print renders e back into the grammar ReadExpr accepts, so that
// Print(must(ReadExpr(Print(e)))) reproduces e's canonical term (up to
// binder name hints, which are diagnostic only). This is deliberately a
// different renderer from expr.Display: Display is free-form diagnostic
// output, while Print's output is a contract other tooling (kernelctl,
// fixture round-trip tests) can parse back.
func Print(e expr.Expr) string {
	var sb strings.Builder
	print_(&sb, e)
	return sb.String()
}

func print_(sb *strings.Builder, e expr.Expr) {
	switch n := e.(type) {
	case *expr.VarExpr:
		fmt.Fprintf(sb, "(var %d)", n.Idx)
	case *expr.ConstExpr:
		sb.WriteString("(const ")
		sb.WriteString(strconv.Quote(n.Name))
		for _, l := range n.Levels {
			sb.WriteByte(' ')
			sb.WriteString(PrintLevel(l))
		}
		sb.WriteString(")")
	case *expr.SortExpr:
		fmt.Fprintf(sb, "(sort %s)", PrintLevel(n.Level))
	case *expr.AppExpr:
		sb.WriteString("(app ")
		print_(sb, n.Fn)
		for _, a := range n.Args {
			sb.WriteByte(' ')
			print_(sb, a)
		}
		sb.WriteString(")")
	case *expr.LambdaExpr:
		printBinder(sb, "lambda", n.NameHint, n.Domain, n.Body)
	case *expr.PiExpr:
		printBinder(sb, "pi", n.NameHint, n.Domain, n.Body)
	case *expr.SigmaExpr:
		printBinder(sb, "sigma", n.NameHint, n.Domain, n.Body)
	case *expr.PairExpr:
		sb.WriteString("(pair ")
		print_(sb, n.First)
		sb.WriteByte(' ')
		print_(sb, n.Second)
		sb.WriteByte(' ')
		print_(sb, n.Type)
		sb.WriteString(")")
	case *expr.ProjExpr:
		if n.First {
			sb.WriteString("(proj1 ")
		} else {
			sb.WriteString("(proj2 ")
		}
		print_(sb, n.Arg)
		sb.WriteString(")")
	case *expr.LetExpr:
		sb.WriteString("(let ")
		sb.WriteString(binderName(n.NameHint))
		sb.WriteByte(' ')
		if n.Type != nil {
			print_(sb, n.Type)
			sb.WriteByte(' ')
		}
		print_(sb, n.Value)
		sb.WriteByte(' ')
		print_(sb, n.Body)
		sb.WriteString(")")
	case *expr.HEqExpr:
		sb.WriteString("(heq ")
		print_(sb, n.Lhs)
		sb.WriteByte(' ')
		print_(sb, n.Rhs)
		sb.WriteString(")")
	default:
		// MetaVar and Value have no surface form (spec.md §3: metavariables
		// never appear in source text, and Value plugins are driven by the
		// environment, not written by hand); fall back to the diagnostic
		// renderer so Print never panics on a term it can't round-trip.
		sb.WriteString(expr.Display(e))
	}
}

func printBinder(sb *strings.Builder, form, nameHint string, domain, body expr.Expr) {
	sb.WriteString("(")
	sb.WriteString(form)
	sb.WriteByte(' ')
	sb.WriteString(binderName(nameHint))
	sb.WriteByte(' ')
	print_(sb, domain)
	sb.WriteByte(' ')
	print_(sb, body)
	sb.WriteString(")")
}

func binderName(nameHint string) string {
	if nameHint == "" {
		return "_"
	}
	return nameHint
}

// PrintLevel renders a universe level back into the grammar ReadLevel
// accepts (the zero level prints as the symbol "zero", not expr.Level's
// own diagnostic "0", so it round-trips through readLevel).
func PrintLevel(l *expr.Level) string {
	switch l.Kind() {
	case expr.LevelZero:
		return "zero"
	case expr.LevelSucc:
		return fmt.Sprintf("(succ %s)", PrintLevel(l.SuccArg()))
	case expr.LevelMax:
		a, b := l.MaxArgs()
		return fmt.Sprintf("(max %s %s)", PrintLevel(a), PrintLevel(b))
	case expr.LevelUVar:
		return l.UVarName()
	default:
		return "?level"
	}
}
