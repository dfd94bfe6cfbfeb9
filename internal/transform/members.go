package transform

import (
	"fmt"
	"os"

	"github.com/dbrules/rulesc/internal/expr"
)

// transformMember implements the member-expression leave rules: env.X
// expansion, snapshot member lift into .child(...), and the coercion that
// follows from a lifted or otherwise snapshot-typed result.
//
// A Member directly in callee position (pos.isCallCallee) is a method
// selector, e.g. the `data.child` in `data.child('x')`: it names a method
// to invoke, not a value to read, so it is never lifted or coerced — only
// its Object is transformed.
func transformMember(n *expr.Node, ctx *Context, pos position) (*expr.Node, bool, error) {
	if pos.isCallCallee {
		obj, changed, err := runCallPosition(n.Object, ctx, position{})
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return n, false, nil
		}
		return &expr.Node{Kind: expr.KindMember, Object: obj, Property: n.Property, Index: n.Index, Computed: n.Computed}, true, nil
	}

	if isEnvAccess(n) {
		return expandEnv(n)
	}

	obj, objChanged, err := runCallPosition(n.Object, ctx, position{})
	if err != nil {
		return nil, false, err
	}

	var idx *expr.Node
	idxChanged := false
	if n.Computed {
		idx, idxChanged, err = valueContext(n.Index, ctx)
		if err != nil {
			return nil, false, err
		}
	}

	if obj != nil && obj.Snapshot {
		var key *expr.Node
		if n.Computed {
			key = idx
		} else {
			key = expr.StringLit(n.Property.Name)
		}
		call := expr.MethodCall(obj, "child", key)
		call.Snapshot = true
		return call, true, nil
	}

	changed := objChanged || idxChanged
	out := n
	if changed {
		out = &expr.Node{Kind: expr.KindMember, Object: obj, Property: n.Property, Index: idx, Computed: n.Computed}
	}
	return out, changed, nil
}

// isEnvAccess reports whether n reads a key out of the env builtin, e.g.
// env.FOO or env['FOO'].
func isEnvAccess(n *expr.Node) bool {
	return n.Object != nil && n.Object.Kind == expr.KindIdentifier && n.Object.Name == "env"
}

// expandEnv resolves env.X / env['X'] to the process environment value at
// compile time, as a string literal (empty string if unset). A computed
// access with a non-literal key is a compile error since the variable name
// must be fully known at compile time.
func expandEnv(n *expr.Node) (*expr.Node, bool, error) {
	var key string
	if n.Computed {
		if n.Index == nil || n.Index.Kind != expr.KindLiteral || n.Index.LitType != expr.LitString {
			return nil, false, fmt.Errorf("env[...] requires a literal string key")
		}
		key = n.Index.Str
	} else {
		key = n.Property.Name
	}
	return expr.StringLit(os.Getenv(key)), true, nil
}
