package transform

import (
	"fmt"

	"github.com/dbrules/rulesc/internal/expr"
)

// transformCall marks .child()/.parent() calls snapshot-typed, expands
// oneOf(...), and inlines calls to user-defined or built-in value-type
// functions.
func transformCall(n *expr.Node, ctx *Context, pos position) (*expr.Node, bool, error) {
	callee, calleeChanged, err := runCallPosition(n.Callee, ctx, position{isCallCallee: true})
	if err != nil {
		return nil, false, err
	}

	if callee.Kind == expr.KindIdentifier && callee.Name == "oneOf" {
		return expandOneOf(n.Args, ctx)
	}

	if callee.Kind == expr.KindIdentifier && !ctx.Locals[callee.Name] && ctx.Funcs.Has(callee.Name) {
		return inlineCall(callee.Name, n.Args, ctx)
	}

	args := make([]*expr.Node, len(n.Args))
	argsChanged := false
	for i, a := range n.Args {
		v, c, err := valueContext(a, ctx)
		if err != nil {
			return nil, false, err
		}
		args[i] = v
		argsChanged = argsChanged || c
	}

	snap := isChildOrParentCallee(callee)
	if !calleeChanged && !argsChanged && snap == n.Snapshot {
		return n, false, nil
	}
	return &expr.Node{Kind: expr.KindCall, Callee: callee, Args: args, Snapshot: snap}, true, nil
}

// isChildOrParentCallee reports whether callee is the bare identifier
// child/parent, or a dotted <obj>.child/<obj>.parent access — the enter
// rule 2 condition under which the resulting call is snapshot-typed.
func isChildOrParentCallee(callee *expr.Node) bool {
	switch callee.Kind {
	case expr.KindIdentifier:
		return callee.Name == "child" || callee.Name == "parent"
	case expr.KindMember:
		return !callee.Computed && callee.Property != nil &&
			(callee.Property.Name == "child" || callee.Property.Name == "parent")
	}
	return false
}

// expandOneOf implements leave rule 4: oneOf(a, b, c, ...) becomes
// newData.val() == a || newData.val() == b || ..., left-associated.
func expandOneOf(rawArgs []*expr.Node, ctx *Context) (*expr.Node, bool, error) {
	if len(rawArgs) == 0 {
		return nil, false, fmt.Errorf("oneOf requires at least one argument")
	}
	var result *expr.Node
	for _, raw := range rawArgs {
		arg, _, err := valueContext(raw, ctx)
		if err != nil {
			return nil, false, err
		}
		base := &expr.Node{Kind: expr.KindIdentifier, Name: "newData", Snapshot: true}
		eq := &expr.Node{Kind: expr.KindBinary, Op: "==", Left: expr.MethodCall(base, "val"), Right: arg}
		if result == nil {
			result = eq
		} else {
			result = &expr.Node{Kind: expr.KindLogical, Op: "||", Left: result, Right: eq}
		}
	}
	return result, true, nil
}

// inlineCall implements leave rule 5: clone the callee's already-transformed
// body and substitute every free parameter occurrence by the corresponding
// argument AST, deep-cloning at every use site so no subtree is aliased
// across call sites.
func inlineCall(name string, rawArgs []*expr.Node, ctx *Context) (*expr.Node, bool, error) {
	fn, ok := ctx.Funcs.Lookup(name)
	if !ok {
		return nil, false, fmt.Errorf("unknown reference: call to undefined function %s", name)
	}
	ctx.Funcs.MarkUsed(name)
	if len(rawArgs) != len(fn.Params) {
		return nil, false, fmt.Errorf("function %s: expected %d argument(s), got %d", name, len(fn.Params), len(rawArgs))
	}
	if ctx.Metrics != nil {
		ctx.Metrics.FunctionsInlinedTotal.Inc()
	}

	subs := make(map[string]*expr.Node, len(fn.Params))
	for i, p := range fn.Params {
		subs[p] = rawArgs[i]
	}
	return substitute(fn.Body, subs), true, nil
}

// substitute rebuilds n, replacing every free occurrence of a parameter
// identifier with a fresh deep clone of its bound argument. Property
// identifiers of a dotted member access are never substituted — they name a
// field, not a variable reference, mirroring the enter-rule 1 exclusion.
func substitute(n *expr.Node, subs map[string]*expr.Node) *expr.Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case expr.KindIdentifier:
		if repl, ok := subs[n.Name]; ok {
			return repl.Clone()
		}
		return n.Clone()
	case expr.KindMember:
		out := &expr.Node{Kind: expr.KindMember, Object: substitute(n.Object, subs), Property: n.Property.Clone(), Computed: n.Computed}
		if n.Computed {
			out.Index = substitute(n.Index, subs)
		}
		return out
	case expr.KindCall:
		args := make([]*expr.Node, len(n.Args))
		for i, a := range n.Args {
			args[i] = substitute(a, subs)
		}
		return &expr.Node{Kind: expr.KindCall, Callee: substitute(n.Callee, subs), Args: args}
	case expr.KindUnary:
		return &expr.Node{Kind: expr.KindUnary, Op: n.Op, Arg: substitute(n.Arg, subs)}
	case expr.KindBinary, expr.KindLogical:
		return &expr.Node{Kind: n.Kind, Op: n.Op, Left: substitute(n.Left, subs), Right: substitute(n.Right, subs)}
	case expr.KindConditional:
		return &expr.Node{Kind: expr.KindConditional, Test: substitute(n.Test, subs), Cons: substitute(n.Cons, subs), Alt: substitute(n.Alt, subs)}
	case expr.KindSequence:
		items := make([]*expr.Node, len(n.Items))
		for i, it := range n.Items {
			items[i] = substitute(it, subs)
		}
		return &expr.Node{Kind: expr.KindSequence, Items: items}
	default: // KindLiteral
		return n.Clone()
	}
}
