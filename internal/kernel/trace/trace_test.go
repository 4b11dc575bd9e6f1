package trace

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"kernelnerd/internal/kernel/env"
	"kernelnerd/internal/kernel/expr"
	"kernelnerd/internal/kernel/mvar"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTraceInferBuildsTreeOverApplication(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))
	require.NoError(t, en.AddPostulate("n", expr.MkConst("Int")))
	id := expr.MkLambda("x", expr.MkConst("Int"), expr.MkVar(0))
	app := expr.MkApp(id, expr.MkConst("n"))

	tracer := NewTracer(0)
	root, typ, err := tracer.TraceInfer(en, nil, nil, app)
	require.NoError(t, err)
	assert.Same(t, expr.MkConst("Int"), typ)
	assert.Equal(t, "infer", root.Op)
	require.Len(t, root.Children, 2) // Fn, Arg
	assert.Equal(t, expr.Display(id), root.Children[0].Term)
	assert.Equal(t, expr.Display(expr.MkConst("n")), root.Children[1].Term)
}

func TestTraceInferRecordsErrorAtFailingNode(t *testing.T) {
	en := env.New()
	_, _, err := NewTracer(0).TraceInfer(en, nil, nil, expr.MkConst("missing"))
	require.Error(t, err)
}

func TestTraceInferRespectsMaxDepth(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))
	nested := expr.MkLambda("x", expr.MkConst("Int"), expr.MkLambda("y", expr.MkConst("Int"), expr.MkVar(1)))

	tracer := NewTracer(1)
	root, _, err := tracer.TraceInfer(en, nil, nil, nested)
	require.NoError(t, err)
	require.Len(t, root.Children, 2)
	// Depth 1 allowed one level of descent; the inner lambda's own children
	// (depth 2) are not recorded.
	assert.Empty(t, root.Children[1].Children)
}

func TestTraceCheckWrapsInferSubtree(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))

	tracer := NewTracer(0)
	root, err := tracer.TraceCheck(en, nil, nil, expr.MkConst("Int"), expr.MkSort(expr.LZero()))
	require.NoError(t, err)
	assert.Equal(t, "check", root.Op)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "infer", root.Children[0].Op)
}

func TestTraceUnifyReportsSuccessAndFailure(t *testing.T) {
	en := env.New()
	m := mvar.New(en, nil, 64)
	tracer := NewTracer(0)

	node, err := tracer.TraceUnify(en, m, nil, expr.MkConst("Nat"), expr.MkConst("Nat"))
	require.NoError(t, err)
	assert.Equal(t, "unify", node.Op)
	assert.Empty(t, node.Err)

	node, err = tracer.TraceUnify(en, m, nil, expr.MkConst("Nat"), expr.MkConst("Bool"))
	require.Error(t, err)
	assert.NotEmpty(t, node.Err)
}

func TestRenderASCIIIncludesEachNode(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))
	require.NoError(t, en.AddPostulate("n", expr.MkConst("Int")))
	id := expr.MkLambda("x", expr.MkConst("Int"), expr.MkVar(0))
	app := expr.MkApp(id, expr.MkConst("n"))

	tracer := NewTracer(0)
	root, _, err := tracer.TraceInfer(en, nil, nil, app)
	require.NoError(t, err)

	out := root.RenderASCII()
	assert.True(t, strings.Contains(out, "[infer]"))
	assert.True(t, strings.Count(out, "\n") >= 3)
}

func TestRenderJSONRoundTripsShape(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))

	tracer := NewTracer(0)
	root, _, err := tracer.TraceInfer(en, nil, nil, expr.MkConst("Int"))
	require.NoError(t, err)

	raw, err := root.RenderJSON()
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "infer", decoded["op"])
}
