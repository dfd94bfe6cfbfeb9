// Package ruletree walks a decoded rule document depth-first, compiling each node's
// .read/.write/.value expressions with internal/transform, synthesizing
// hasChildren() and .indexOn from required/indexed keyword annotations,
// propagating deep index requests up to the nearest wildcard ancestor, and
// closing off nodes that declare neither `.more` nor a wildcard child.
package ruletree

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dbrules/rulesc/internal/docnode"
	"github.com/dbrules/rulesc/internal/expr"
	"github.com/dbrules/rulesc/internal/functable"
	"github.com/dbrules/rulesc/internal/observability"
	"github.com/dbrules/rulesc/internal/transform"
)

// Warning is a non-fatal finding surfaced during compilation: a redundant
// index, an unreferenced function, or similar authoring smell that doesn't
// block the compile.
type Warning struct {
	Path    string
	Message string
}

// Compile transforms the decoded rule tree rooted at root into the JSON
// shape the realtime-database security-rules format expects. funcs must
// already have every function body resolved to a fixed point. An optional
// *observability.Metrics records rules-compiled-by-kind and transform
// timing for the whole tree.
func Compile(root *docnode.Node, funcs *functable.Table, metrics ...*observability.Metrics) (map[string]interface{}, []Warning, error) {
	if root == nil {
		return nil, nil, fmt.Errorf("document has no root rule tree")
	}
	var m *observability.Metrics
	if len(metrics) > 0 {
		m = metrics[0]
	}
	b := &builder{funcs: funcs, metrics: m}
	ctx := transform.NewContext(nil, nil, 0, "newData", funcs).WithMetrics(m)
	out, err := b.transformBranch(root, ctx, "/")
	if err != nil {
		return nil, b.warnings, err
	}
	if bubbled, ok := out[".indexChildrenOn"]; ok {
		paths := bubbled.([]string)
		if len(paths) > 0 {
			return nil, b.warnings, fmt.Errorf("dangling deep index %v at root: must be nested under a wildcard", paths)
		}
		delete(out, ".indexChildrenOn")
	}
	return out, b.warnings, nil
}

type builder struct {
	funcs    *functable.Table
	warnings []Warning
	metrics  *observability.Metrics
}

func (b *builder) warn(path, msg string) {
	b.warnings = append(b.warnings, Warning{Path: path, Message: msg})
	log.Warn().Str("path", path).Msg(msg)
}

func (b *builder) countRule(kind string) {
	if b.metrics != nil {
		b.metrics.RulesCompiledByKind.WithLabelValues(kind).Inc()
	}
}

// dedupeIndex removes repeated index field requests, warning once per
// duplicate (a redundant `indexed` annotation reachable through more than
// one child, or a deep index bubbled up from two different wildcard
// descendants naming the same field).
func (b *builder) dedupeIndex(path string, fields []string) []string {
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if seen[f] {
			b.warn(path, fmt.Sprintf("redundant index on %q", f))
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// transformBranch compiles one node of the rule tree and recurses into its
// children. path is the node's location for diagnostics only.
func (b *builder) transformBranch(raw *docnode.Node, ctx *transform.Context, path string) (map[string]interface{}, error) {
	node := raw
	if node.IsScalar {
		node = &docnode.Node{Pairs: []docnode.Pair{{Key: ".value", Value: &docnode.Node{IsScalar: true, Scalar: node.Scalar}}}}
	}

	out := map[string]interface{}{}

	// Bind an optional .ref before compiling anything else at this node, so
	// the ref is visible to this node's own .read/.write/.value too.
	if refVal, ok := node.Get(".ref"); ok {
		name, ok := refVal.AsString()
		if !ok {
			return nil, fmt.Errorf(".ref at %s must be a string", path)
		}
		if isWildcard(name) || functable.Builtins[name] || ctx.Locals[name] {
			return nil, fmt.Errorf(".ref %q at %s: name is a wildcard, a builtin, or already in scope", name, path)
		}
		if _, exists := ctx.Refs[name]; exists {
			return nil, fmt.Errorf(".ref %q at %s: name is already bound by an enclosing .ref", name, path)
		}
		ctx = ctx.WithRef(name)
	}

	var validateParts []string
	moreAllowed := false
	hasWildcard := false
	sawReadOrWrite := false
	sawReadWriteCombo := false
	var requiredChildren []string
	var indexedChildren []string
	var indexedGrandChildren []string

	for _, pair := range node.Pairs {
		key := pair.Key
		switch key {
		case ".ref":
			continue // consumed above

		case ".read", ".write", ".validate":
			if key != ".validate" {
				if sawReadWriteCombo {
					return nil, fmt.Errorf("%s%s conflicts with .read/write on the same node", path, key)
				}
				sawReadOrWrite = true
			}
			raw, ok := pair.Value.AsString()
			if !ok {
				return nil, fmt.Errorf("%s%s must be a string expression", path, key)
			}
			base := "newData"
			if key == ".read" {
				base = "data"
			}
			text, err := b.compileExprText(raw, ctx.WithBase(base), path+key)
			if err != nil {
				return nil, err
			}
			if key == ".validate" {
				validateParts = append(validateParts, text)
			} else {
				out[key] = text
			}
			b.countRule(strings.TrimPrefix(key, "."))

		case ".read/write":
			if sawReadOrWrite {
				return nil, fmt.Errorf("%s.read/write conflicts with .read or .write on the same node", path)
			}
			sawReadWriteCombo = true
			raw, ok := pair.Value.AsString()
			if !ok {
				return nil, fmt.Errorf("%s.read/write must be a string expression", path)
			}
			readText, err := b.compileExprText(raw, ctx.WithBase("data"), path+".read/write")
			if err != nil {
				return nil, err
			}
			writeText, err := b.compileExprText(raw, ctx.WithBase("newData"), path+".read/write")
			if err != nil {
				return nil, err
			}
			out[".read"] = readText
			out[".write"] = writeText
			b.countRule("read")
			b.countRule("write")

		case ".value":
			raw, ok := pair.Value.AsString()
			if !ok {
				return nil, fmt.Errorf("%s.value must be a string expression", path)
			}
			_, body, err := stripValueKeywords(raw)
			if err != nil {
				return nil, fmt.Errorf("%s.value: %w", path, err)
			}
			if body == "any" {
				moreAllowed = true
			}
			text, err := b.compileExprText(body, ctx.WithBase("newData"), path+".value")
			if err != nil {
				return nil, err
			}
			validateParts = append(validateParts, text)
			b.countRule("validate")

		case ".more":
			s, _ := pair.Value.AsString()
			if s == "true" {
				moreAllowed = true
			}

		default:
			bareKey, sfx, err := stripKeySuffixes(key)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			if isControlKey(bareKey) {
				return nil, fmt.Errorf("unknown control key %q at %s", bareKey, path)
			}

			childCtx := ctx.AtLevel(ctx.Level + 1)
			if isWildcard(bareKey) {
				if hasWildcard {
					return nil, fmt.Errorf("%s: at most one wildcard child is allowed, found a second at %q", path, bareKey)
				}
				hasWildcard = true
				childCtx = ctx.WithWildcard(bareKey).AtLevel(ctx.Level + 1)
			}

			kw, _, err := stripValueKeywords(childRawValueString(pair.Value))
			if err != nil {
				return nil, fmt.Errorf("%s%s: %w", path, key, err)
			}
			if kw.required {
				if isWildcard(bareKey) {
					return nil, fmt.Errorf("%s%s: required is not allowed on a wildcard key", path, key)
				}
				requiredChildren = append(requiredChildren, bareKey)
			}
			if kw.indexed {
				if isWildcard(bareKey) {
					indexedChildren = append(indexedChildren, ".value")
				} else {
					indexedGrandChildren = append(indexedGrandChildren, bareKey)
				}
			}

			if sfx.few && !isWildcard(bareKey) {
				return nil, fmt.Errorf("%s%s: /few is only allowed on a wildcard key", path, key)
			}

			childEncrypt := map[string]interface{}{}
			if kw.encrypted {
				childEncrypt["value"] = kw.encryptPat
			}
			if sfx.encrypted {
				childEncrypt["key"] = sfx.encryptPat
			}
			if sfx.few {
				childEncrypt["few"] = true
			}

			childJSON, err := b.transformBranch(pair.Value, childCtx, path+bareKey+"/")
			if err != nil {
				return nil, err
			}
			if len(childEncrypt) > 0 {
				childJSON[".encrypt"] = childEncrypt
			}
			if rawBubbled, ok := childJSON[".indexChildrenOn"]; ok {
				delete(childJSON, ".indexChildrenOn")
				bubbled := rawBubbled.([]string)
				if isWildcard(bareKey) {
					indexedChildren = append(indexedChildren, bubbled...)
				} else {
					for _, p := range bubbled {
						indexedGrandChildren = append(indexedGrandChildren, bareKey+"/"+p)
					}
				}
			}

			out[bareKey] = childJSON
		}
	}

	if len(requiredChildren) > 0 {
		validateParts = append([]string{hasChildrenExprText(requiredChildren)}, validateParts...)
	}
	if len(validateParts) > 0 {
		out[".validate"] = strings.Join(validateParts, " && ")
	}

	if len(indexedChildren) > 0 {
		out[".indexOn"] = b.dedupeIndex(path, indexedChildren)
		b.countRule("indexOn")
	}
	if len(indexedGrandChildren) > 0 {
		out[".indexChildrenOn"] = b.dedupeIndex(path, indexedGrandChildren)
	}

	if !moreAllowed && !hasWildcard {
		if _, exists := out["$other"]; !exists {
			out["$other"] = map[string]interface{}{".validate": false}
		}
	}

	return out, nil
}

// compileExprText parses raw, runs it to a fixed point under ctx, and
// returns its canonical printed text.
func (b *builder) compileExprText(raw string, ctx *transform.Context, path string) (string, error) {
	n, err := expr.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	n, err = transform.ToFixedPoint(n, ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return expr.Print(n), nil
}

// hasChildrenExprText builds the newData.hasChildren([...]) validate
// fragment directly as text: the expression grammar has no array-literal
// syntax of its own (arrays only ever appear in this one synthesized
// position), so there is nothing to gain from routing it through the AST.
func hasChildrenExprText(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteSingle(n)
	}
	return "newData.hasChildren([" + strings.Join(quoted, ", ") + "])"
}

// quoteSingle renders a field name the same way internal/expr's printer
// renders string literals, so a synthesized hasChildren([...]) fragment
// reads like the rest of the compiled expression text around it.
func quoteSingle(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString("\\'")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// childRawValueString returns the string a child's own .value keyword
// prefix should be inspected from: the child's shorthand scalar, or its
// explicit .value entry, or "" if neither applies (a pure mapping child
// with no .value carries no required/indexed/encrypted annotation).
func childRawValueString(child *docnode.Node) string {
	s, _ := child.AsString()
	return s
}
