// Package transform implements a fixed-point AST rewriter: it normalizes
// identifiers, lifts member/index access on snapshot-typed expressions into
// .child(...) chains, inserts trailing .val() when a snapshot escapes into
// a value context, expands env.X and oneOf(...), and inlines function
// calls.
//
// The staged, repeat-until-quiescent shape of Run mirrors
// open-policy-agent/opa's ast.Compiler: each call performs one full
// pre-order + post-order pass and reports whether it changed anything; the
// caller (internal/ruletree, or internal/compile's function-body resolution loop)
// re-invokes until a pass makes no change.
package transform

import (
	"fmt"
	"time"

	"github.com/dbrules/rulesc/internal/expr"
	"github.com/dbrules/rulesc/internal/functable"
	"github.com/dbrules/rulesc/internal/observability"
)

// Context carries everything a single transform pass needs to resolve
// identifiers: the lexically in-scope names, known ref depths, the current
// tree depth, which snapshot ("newData" or "data") backs .ref expansion,
// and the function table for inlining.
//
// Locals holds every name that is simply "in scope" — wildcard captures and
// function parameters alike — so the enter rule neither errors on it nor
// sugars a bare reference into a zero-argument call. Wildcards is the
// subset that is additionally snapshot-typed: a wildcard capture names the
// database snapshot at the matched child, so reading it in a value context
// appends .val() exactly like root/data/newData — this is what turns
// data.foo[$bar] into data.child('foo').child($bar.val()).
// Function parameters are never marked this way: they are gone by the time
// coercion would matter, replaced by the caller's argument AST during
// inlining (leave rule 5).
type Context struct {
	Locals    map[string]bool
	Wildcards map[string]bool
	Refs      map[string]int
	Level     int
	Base      string // "newData" (value/write position) or "data" (read position)
	Funcs     *functable.Table
	Metrics   *observability.Metrics // nil when the caller isn't recording metrics
}

// NewContext builds a Context for compiling an expression at the given tree
// depth with the given lexical scope.
func NewContext(locals map[string]bool, refs map[string]int, level int, base string, funcs *functable.Table) *Context {
	if locals == nil {
		locals = map[string]bool{}
	}
	if refs == nil {
		refs = map[string]int{}
	}
	return &Context{Locals: locals, Wildcards: map[string]bool{}, Refs: refs, Level: level, Base: base, Funcs: funcs}
}

// Run performs a single fixed-point pass over n and reports whether
// anything changed. Call it repeatedly (see ToFixedPoint) until it returns
// changed=false.
func Run(n *expr.Node, ctx *Context) (*expr.Node, bool, error) {
	return runCallPosition(n, ctx, position{})
}

// ToFixedPoint drives Run to quiescence, bounding work with a static
// iteration cap that guards against a runaway rewrite (e.g. a pathological
// function-inlining chain).
//
// A snapshot-typed result left standing once the tree stops changing is the
// whole compiled expression escaping into a value context: a bare
// `data.foo[$bar]` rule body must compile to
// `data.child('foo').child($bar.val()).val()`, not the opaque snapshot
// without its trailing .val(). valueContext applies this same coercion to
// every nested position; ToFixedPoint is the one caller responsible for the
// outermost position, since nothing wraps it in a further value context.
func ToFixedPoint(n *expr.Node, ctx *Context) (*expr.Node, error) {
	const maxIterations = 10000
	start := time.Now()
	for i := 0; i < maxIterations; i++ {
		next, changed, err := Run(n, ctx)
		if err != nil {
			return nil, err
		}
		n = next
		if !changed {
			if n != nil && n.Snapshot {
				n = expr.MethodCall(n, "val")
			}
			if ctx.Metrics != nil {
				ctx.Metrics.TransformPassesTotal.Observe(float64(i + 1))
				ctx.Metrics.FixedPointDuration.Observe(time.Since(start).Seconds())
			}
			return n, nil
		}
	}
	return nil, fmt.Errorf("transform did not converge after %d iterations (possible inlining cycle)", maxIterations)
}

// position records the syntactic slot a node occupies in its parent. The
// only slot any leave rule needs to distinguish is "directly the callee of a
// call": a member or identifier there names a method/function, so it is
// exempt from the member-lift and value-coercion rules that apply to every
// other position (those are handled locally by valueContext and by the
// computed-index handling in transformMember, not by threading more slots
// through here).
type position struct {
	isCallCallee bool
}

func runCallPosition(n *expr.Node, ctx *Context, pos position) (*expr.Node, bool, error) {
	if n == nil {
		return nil, false, nil
	}

	switch n.Kind {
	case expr.KindLiteral:
		return n, false, nil

	case expr.KindIdentifier:
		return transformIdentifier(n, ctx, pos)

	case expr.KindMember:
		return transformMember(n, ctx, pos)

	case expr.KindCall:
		return transformCall(n, ctx, pos)

	case expr.KindUnary:
		arg, changed, err := valueContext(n.Arg, ctx)
		if err != nil {
			return nil, false, err
		}
		out := n
		if changed {
			out = &expr.Node{Kind: expr.KindUnary, Op: n.Op, Arg: arg}
		}
		return out, changed, nil

	case expr.KindBinary, expr.KindLogical:
		left, lc, err := valueContext(n.Left, ctx)
		if err != nil {
			return nil, false, err
		}
		right, rc, err := valueContext(n.Right, ctx)
		if err != nil {
			return nil, false, err
		}
		out := n
		if lc || rc {
			out = &expr.Node{Kind: n.Kind, Op: n.Op, Left: left, Right: right}
		}
		return out, lc || rc, nil

	case expr.KindConditional:
		test, tc, err := valueContext(n.Test, ctx)
		if err != nil {
			return nil, false, err
		}
		cons, cc, err := valueContext(n.Cons, ctx)
		if err != nil {
			return nil, false, err
		}
		alt, ac, err := valueContext(n.Alt, ctx)
		if err != nil {
			return nil, false, err
		}
		out := n
		if tc || cc || ac {
			out = &expr.Node{Kind: expr.KindConditional, Test: test, Cons: cons, Alt: alt}
		}
		return out, tc || cc || ac, nil

	case expr.KindSequence:
		changed := false
		items := make([]*expr.Node, len(n.Items))
		for i, it := range n.Items {
			v, c, err := valueContext(it, ctx)
			if err != nil {
				return nil, false, err
			}
			items[i] = v
			changed = changed || c
		}
		out := n
		if changed {
			out = &expr.Node{Kind: expr.KindSequence, Items: items}
		}
		return out, changed, nil
	}

	return n, false, nil
}

// valueContext transforms n as a plain expression slot (binary operand,
// call argument, conditional test/branch, unary operand, sequence item)
// and applies leave rule 3 (snapshot value coercion) since none of these
// positions is exempt.
func valueContext(n *expr.Node, ctx *Context) (*expr.Node, bool, error) {
	out, changed, err := runCallPosition(n, ctx, position{})
	if err != nil {
		return nil, false, err
	}
	if out != nil && out.Snapshot {
		return expr.MethodCall(out, "val"), true, nil
	}
	return out, changed, nil
}
