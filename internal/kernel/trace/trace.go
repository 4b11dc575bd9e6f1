// Package trace builds proof/derivation trees over kernel operations for
// diagnostics (spec.md supplemented feature: a human- or tool-consumable
// record of how a type or unification result was reached), the same role
// internal/mangle/proof_tree.go's ProofTreeTracer plays for Datalog query
// results in the teacher. Unlike that tracer, which reconstructs premises
// heuristically from a Datalog engine it does not control the internals
// of, this package calls straight into internal/kernel/infer/unify — its
// trees are exact, not reconstructed, but it still bounds recursion depth
// the same way proof_tree.go does (spec.md has no inherent depth limit on
// a term's structural depth; a degenerate or adversarial term could still
// make a rendered trace unusably large).
package trace

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"kernelnerd/internal/kernel/env"
	"kernelnerd/internal/kernel/expr"
	"kernelnerd/internal/kernel/infer"
	"kernelnerd/internal/kernel/mvar"
	"kernelnerd/internal/kernel/unify"
	"kernelnerd/internal/klog"
)

// DefaultMaxDepth bounds how many structural levels of a term a trace
// descends into, mirroring proof_tree.go's buildDerivationNode's literal
// "depth < 10" cutoff.
const DefaultMaxDepth = 10

// Node is one entry in a derivation tree: an operation applied to a term,
// its result (or error), and the child nodes for its structural
// subterms (spec.md supplemented feature; mirrors proof_tree.go's
// DerivationNode, renamed to this module's domain).
type Node struct {
	ID       string
	ParentID string
	Op       string // "infer", "check", "unify"
	Term     string // expr.Display of the term this node is about
	Type     string // expr.Display of the inferred type, empty on error
	Err      string // non-empty if this node's operation failed
	Depth    int
	Children []*Node
}

// Tracer allocates node ids and bounds recursion depth for the trees it
// builds. The zero value is not usable; construct with NewTracer.
type Tracer struct {
	mu       sync.Mutex
	seq      int64
	maxDepth int
}

// NewTracer creates a Tracer with the given maximum structural descent
// depth; 0 means DefaultMaxDepth.
func NewTracer(maxDepth int) *Tracer {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Tracer{maxDepth: maxDepth}
}

func (t *Tracer) nextID() string {
	t.mu.Lock()
	t.seq++
	id := t.seq
	t.mu.Unlock()
	return fmt.Sprintf("node_%d", id)
}

// TraceInfer builds a full derivation tree for infer_type(e, ctx): the
// root node is e's own inferred type, and each structural subterm of e
// (App's function and arguments, a binder's domain and body, and so on)
// becomes a child node computed the same way, down to maxDepth. Beyond
// that depth, infer.Infer still runs (so the reported type is always
// correct) but no further children are recorded.
func (t *Tracer) TraceInfer(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, e expr.Expr) (*Node, expr.Expr, error) {
	timer := klog.StartTimer(klog.CategoryInfer, "trace_infer")
	defer timer.Stop()
	node, typ, err := t.traceInfer(en, m, ctx, e, "", 0)
	return node, typ, err
}

func (t *Tracer) traceInfer(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, e expr.Expr, parentID string, depth int) (*Node, expr.Expr, error) {
	node := &Node{ID: t.nextID(), ParentID: parentID, Op: "infer", Term: expr.Display(e), Depth: depth}

	typ, err := infer.Infer(en, m, ctx, e)
	if err != nil {
		node.Err = err.Error()
		return node, nil, err
	}
	node.Type = expr.Display(typ)

	if depth < t.maxDepth {
		for _, child := range structuralChildren(en, m, ctx, e) {
			if child.entersBinder && child.domainForBinder == nil {
				continue // couldn't establish a binder type (e.g. an ill-typed let value); skip rather than extend with a nil domain
			}
			childCtx := ctx
			if child.entersBinder {
				childCtx = ctx.Extend(child.nameHint, child.domainForBinder)
			}
			childNode, _, _ := t.traceInfer(en, m, childCtx, child.expr, node.ID, depth+1)
			node.Children = append(node.Children, childNode)
		}
	}
	return node, typ, nil
}

// TraceCheck is TraceInfer followed by a convertibility check against typ,
// recording the whole thing as a single "check" root wrapping an "infer"
// subtree.
func (t *Tracer) TraceCheck(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, e, typ expr.Expr) (*Node, error) {
	root := &Node{ID: t.nextID(), Op: "check", Term: expr.Display(e), Type: expr.Display(typ)}

	child, _, err := t.traceInfer(en, m, ctx, e, root.ID, 1)
	root.Children = append(root.Children, child)
	if err != nil {
		root.Err = err.Error()
		return root, err
	}

	if err := infer.Check(en, m, ctx, e, typ); err != nil {
		root.Err = err.Error()
		return root, err
	}
	return root, nil
}

// TraceUnify records a single node for a Unify call: unlike TraceInfer,
// unification does not have an obvious structural subterm tree to descend
// into ahead of time (its own recursion is data-dependent on how far the
// two terms agree), so this reports one span rather than reconstructing
// unify's internal call graph.
func (t *Tracer) TraceUnify(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, a, b expr.Expr) (*Node, error) {
	timer := klog.StartTimer(klog.CategoryUnify, "trace_unify")
	defer timer.Stop()

	node := &Node{
		ID:   t.nextID(),
		Op:   "unify",
		Term: fmt.Sprintf("%s =?= %s", expr.Display(a), expr.Display(b)),
	}
	err := unify.Unify(en, m, ctx, a, b)
	if err != nil {
		node.Err = err.Error()
		return node, err
	}
	return node, nil
}

// structChild is one structural subterm of an expression, along with
// enough information to extend a typing context across a binder.
type structChild struct {
	expr            expr.Expr
	entersBinder    bool
	nameHint        string
	domainForBinder expr.Expr
}

// structuralChildren enumerates e's immediate structural subterms, the
// same Expr-kind dispatch infer.Infer itself uses, so a trace's tree shape
// always matches how infer actually recurses. en/m/ctx are only consulted
// for LetExpr, whose bound name's domain (for extending ctx across the
// body) is its value's inferred type when unannotated, not the value
// itself.
func structuralChildren(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, e expr.Expr) []structChild {
	switch n := e.(type) {
	case *expr.AppExpr:
		children := make([]structChild, 0, len(n.Args)+1)
		children = append(children, structChild{expr: n.Fn})
		for _, a := range n.Args {
			children = append(children, structChild{expr: a})
		}
		return children
	case *expr.LambdaExpr:
		return []structChild{
			{expr: n.Domain},
			{expr: n.Body, entersBinder: true, nameHint: n.NameHint, domainForBinder: n.Domain},
		}
	case *expr.PiExpr:
		return []structChild{
			{expr: n.Domain},
			{expr: n.Body, entersBinder: true, nameHint: n.NameHint, domainForBinder: n.Domain},
		}
	case *expr.SigmaExpr:
		return []structChild{
			{expr: n.Domain},
			{expr: n.Body, entersBinder: true, nameHint: n.NameHint, domainForBinder: n.Domain},
		}
	case *expr.PairExpr:
		return []structChild{{expr: n.First}, {expr: n.Second}}
	case *expr.ProjExpr:
		return []structChild{{expr: n.Arg}}
	case *expr.LetExpr:
		children := []structChild{{expr: n.Value}}
		letTyp := n.Type
		if letTyp == nil {
			if inferred, err := infer.Infer(en, m, ctx, n.Value); err == nil {
				letTyp = inferred
			}
		} else {
			children = append(children, structChild{expr: n.Type})
		}
		children = append(children, structChild{expr: n.Body, entersBinder: true, nameHint: n.NameHint, domainForBinder: letTyp})
		return children
	case *expr.HEqExpr:
		return []structChild{{expr: n.Lhs}, {expr: n.Rhs}}
	default:
		// Var, Const, Sort, MetaVar, Value are leaves.
		return nil
	}
}

// RenderASCII renders the tree rooted at n as indented ASCII art, adapted
// from proof_tree.go's RenderASCII/renderNodeASCII.
func (n *Node) RenderASCII() string {
	var sb strings.Builder
	renderNodeASCII(&sb, n, "", true)
	return sb.String()
}

func renderNodeASCII(sb *strings.Builder, n *Node, prefix string, isLast bool) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	status := n.Type
	if n.Err != "" {
		status = "ERROR: " + n.Err
	}
	fmt.Fprintf(sb, "%s%s[%s] %s : %s\n", prefix, connector, n.Op, n.Term, status)

	childPrefix := prefix
	if isLast {
		childPrefix += "    "
	} else {
		childPrefix += "│   "
	}
	for i, child := range n.Children {
		renderNodeASCII(sb, child, childPrefix, i == len(n.Children)-1)
	}
}

// jsonNode mirrors proof_tree.go's RenderJSON shape, adapted to this
// package's Node fields.
type jsonNode struct {
	ID       string      `json:"id"`
	ParentID string      `json:"parent_id,omitempty"`
	Op       string      `json:"op"`
	Term     string      `json:"term"`
	Type     string      `json:"type,omitempty"`
	Err      string      `json:"error,omitempty"`
	Depth    int         `json:"depth"`
	Children []*jsonNode `json:"children,omitempty"`
}

func toJSONNode(n *Node) *jsonNode {
	jn := &jsonNode{ID: n.ID, ParentID: n.ParentID, Op: n.Op, Term: n.Term, Type: n.Type, Err: n.Err, Depth: n.Depth}
	for _, c := range n.Children {
		jn.Children = append(jn.Children, toJSONNode(c))
	}
	return jn
}

// RenderJSON renders the tree rooted at n as indented JSON.
func (n *Node) RenderJSON() ([]byte, error) {
	return json.MarshalIndent(toJSONNode(n), "", "  ")
}
