package transform

import (
	"fmt"

	"github.com/dbrules/rulesc/internal/expr"
	"github.com/dbrules/rulesc/internal/observability"
)

// transformIdentifier classifies a bare identifier:
//
//  1. a currently in-scope local (wildcard capture or function parameter)
//     keeps its name as written; a wildcard capture is additionally marked
//     snapshot-typed here, while a function parameter is never marked — it
//     is replaced by the caller's argument AST during inlining;
//  2. auth/now/env/query/oneOf pass through unmarked;
//  3. root is snapshot-typed; next/prev are renamed to newData/data and
//     snapshot-typed; newData/data are snapshot-typed in place;
//  4. a name bound by an enclosing .ref is expanded to a .parent() chain
//     rooted at the current Base snapshot;
//  5. a bare reference to a known function name, used anywhere other than
//     as the callee of an explicit call, is sugared into a zero-argument
//     call so the later inlining rule can always operate on a CallExpression;
//  6. anything else is an unknown reference.
func transformIdentifier(n *expr.Node, ctx *Context, pos position) (*expr.Node, bool, error) {
	name := n.Name

	if ctx.Locals[name] {
		if ctx.Wildcards[name] {
			return markSnapshotKeepName(n), !n.Snapshot, nil
		}
		return n, false, nil
	}

	switch name {
	case "auth", "now", "env", "query", "oneOf":
		return n, false, nil
	case "root":
		return markSnapshot(n, "root"), !n.Snapshot, nil
	case "next":
		return markSnapshot(n, "newData"), true, nil
	case "prev":
		return markSnapshot(n, "data"), true, nil
	case "newData", "data":
		return markSnapshot(n, name), !n.Snapshot, nil
	}

	if level, ok := ctx.Refs[name]; ok {
		return expandRef(ctx, level), true, nil
	}

	if ctx.Funcs.Has(name) {
		if pos.isCallCallee {
			return n, false, nil
		}
		return expr.Call(expr.Ident(name)), true, nil
	}

	return nil, false, fmt.Errorf("unknown reference: %s", name)
}

func markSnapshot(n *expr.Node, name string) *expr.Node {
	if n.Name == name && n.Snapshot {
		return n
	}
	return &expr.Node{Kind: expr.KindIdentifier, Name: name, Snapshot: true}
}

// markSnapshotKeepName marks n snapshot-typed without renaming it, used for
// wildcard-capture identifiers which keep their author-chosen name.
func markSnapshotKeepName(n *expr.Node) *expr.Node {
	if n.Snapshot {
		return n
	}
	return &expr.Node{Kind: expr.KindIdentifier, Name: n.Name, Snapshot: true}
}

// expandRef builds the <base>.parent().parent()... chain that a .ref binding
// at level refLevel resolves to when referenced from the current depth: one
// .parent() per level of tree descended since the ref was captured.
func expandRef(ctx *Context, refLevel int) *expr.Node {
	n := &expr.Node{Kind: expr.KindIdentifier, Name: ctx.Base, Snapshot: true}
	for i := 0; i < ctx.Level-refLevel; i++ {
		n = snapshotMethodCall(n, "parent")
	}
	return n
}

func snapshotMethodCall(obj *expr.Node, method string) *expr.Node {
	c := expr.MethodCall(obj, method)
	c.Snapshot = true
	return c
}

func (ctx *Context) cloneLocals(extra string) map[string]bool {
	locals := make(map[string]bool, len(ctx.Locals)+1)
	for k, v := range ctx.Locals {
		locals[k] = v
	}
	locals[extra] = true
	return locals
}

// WithLocal brings name into scope as a plain local (a function parameter):
// the enter rule leaves bare references to it alone, but it is never
// snapshot-typed by that rule, because it will be replaced outright by the
// caller's argument AST during inlining.
func (ctx *Context) WithLocal(name string) *Context {
	return &Context{Locals: ctx.cloneLocals(name), Wildcards: ctx.Wildcards, Refs: ctx.Refs, Level: ctx.Level, Base: ctx.Base, Funcs: ctx.Funcs, Metrics: ctx.Metrics}
}

// WithWildcard brings name into scope as a wildcard capture: in addition to
// being left alone by the enter rule, it is snapshot-typed, so reading it in
// a value context appends .val(). Used by internal/ruletree when descending
// into a $-keyed child's subtree.
func (ctx *Context) WithWildcard(name string) *Context {
	wildcards := make(map[string]bool, len(ctx.Wildcards)+1)
	for k, v := range ctx.Wildcards {
		wildcards[k] = v
	}
	wildcards[name] = true
	return &Context{Locals: ctx.cloneLocals(name), Wildcards: wildcards, Refs: ctx.Refs, Level: ctx.Level, Base: ctx.Base, Funcs: ctx.Funcs, Metrics: ctx.Metrics}
}

// WithRef returns a Context with name bound as a ref at the current level
// (used by internal/ruletree when it encounters a .ref keyword).
func (ctx *Context) WithRef(name string) *Context {
	refs := make(map[string]int, len(ctx.Refs)+1)
	for k, v := range ctx.Refs {
		refs[k] = v
	}
	refs[name] = ctx.Level
	return &Context{Locals: ctx.Locals, Wildcards: ctx.Wildcards, Refs: refs, Level: ctx.Level, Base: ctx.Base, Funcs: ctx.Funcs, Metrics: ctx.Metrics}
}

// AtLevel returns a Context descended to the given tree depth, preserving
// scope and ref bindings.
func (ctx *Context) AtLevel(level int) *Context {
	return &Context{Locals: ctx.Locals, Wildcards: ctx.Wildcards, Refs: ctx.Refs, Level: level, Base: ctx.Base, Funcs: ctx.Funcs, Metrics: ctx.Metrics}
}

// WithBase returns a Context whose ref-expansion base snapshot is switched
// (oneOf expansion always uses newData), used when a .read rule (base "data") is compiled alongside
// .write/.validate rules (base "newData") at the same tree node.
func (ctx *Context) WithBase(base string) *Context {
	return &Context{Locals: ctx.Locals, Wildcards: ctx.Wildcards, Refs: ctx.Refs, Level: ctx.Level, Base: base, Funcs: ctx.Funcs, Metrics: ctx.Metrics}
}

// WithMetrics returns a Context that reports transform-pass counts and
// fixed-point timing to m. Used by internal/ruletree and internal/compile
// to thread an *observability.Metrics through compilation when one was
// supplied by the caller.
func (ctx *Context) WithMetrics(m *observability.Metrics) *Context {
	return &Context{Locals: ctx.Locals, Wildcards: ctx.Wildcards, Refs: ctx.Refs, Level: ctx.Level, Base: ctx.Base, Funcs: ctx.Funcs, Metrics: m}
}
