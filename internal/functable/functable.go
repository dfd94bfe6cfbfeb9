// Package functable builds the table of user-defined and built-in
// value-type functions available to every expression in the rule tree.
package functable

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dbrules/rulesc/internal/expr"
)

// Builtins is the reserved identifier set that function parameters must not
// shadow, and that the transformer treats specially.
var Builtins = map[string]bool{
	"auth": true, "now": true, "root": true, "next": true,
	"newData": true, "prev": true, "data": true, "env": true, "query": true,
}

// builtinValueFuncs are appended to every document's function list before
// parsing.
var builtinValueFuncs = []Entry{
	{Signature: "boolean", Body: "next.isBoolean()"},
	{Signature: "string", Body: "next.isString()"},
	{Signature: "number", Body: "next.isNumber()"},
	{Signature: "any", Body: "true"},
}

// builtinFuncNames is the set of names builtinValueFuncs declares, used to
// exclude them from the document-defined "unused function" warning: an
// unreferenced built-in isn't an author mistake.
var builtinFuncNames = map[string]bool{"boolean": true, "string": true, "number": true, "any": true}

// Entry is one raw (signature, body) pair as decoded from the YAML
// `functions` sequence of single-entry mappings.
type Entry struct {
	Signature string
	Body      string
}

// Function is a fully parsed function definition.
type Function struct {
	Name   string
	Params []string
	Body   *expr.Node
}

// Table holds every function available to the document, keyed by name.
type Table struct {
	funcs map[string]*Function
	order []string
	used  map[string]bool
}

var signatureRE = regexp.MustCompile(`^\s*(\w+)\s*(?:\((.*?)\))?\s*$`)

// Build parses the `functions` sequence (with built-ins appended) into a
// Table. It fails on a malformed signature, a duplicate name, or a
// parameter that shadows a builtin identifier. It does not resolve
// function-to-function references — that is done by repeatedly applying
// the transform package to each body until a fixed point, which the driver
// (internal/compile) drives using Table.Set.
func Build(entries []Entry) (*Table, error) {
	t := &Table{funcs: make(map[string]*Function), used: make(map[string]bool)}

	all := make([]Entry, 0, len(entries)+len(builtinValueFuncs))
	all = append(all, entries...)
	all = append(all, builtinValueFuncs...)

	for _, e := range all {
		m := signatureRE.FindStringSubmatch(e.Signature)
		if m == nil {
			return nil, fmt.Errorf("invalid signature %q", e.Signature)
		}
		name := m[1]
		params := splitParams(m[2])

		if _, exists := t.funcs[name]; exists {
			return nil, fmt.Errorf("duplicate function definition: %s", name)
		}

		for _, p := range params {
			if Builtins[p] {
				return nil, fmt.Errorf("function %s: parameter %q shadows builtin", name, p)
			}
		}

		body, err := expr.Parse(e.Body)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", name, err)
		}

		t.funcs[name] = &Function{Name: name, Params: params, Body: body}
		t.order = append(t.order, name)
		log.Debug().Str("function", name).Int("params", len(params)).Msg("parsed function definition")
	}

	return t, nil
}

func splitParams(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var params []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			params = append(params, p)
		}
	}
	return params
}

// Lookup returns the function named name, if any.
func (t *Table) Lookup(name string) (*Function, bool) {
	f, ok := t.funcs[name]
	return f, ok
}

// Has reports whether name is a known function (used by the transformer to
// distinguish "unknown reference" from "call to a function").
func (t *Table) Has(name string) bool {
	_, ok := t.funcs[name]
	return ok
}

// Set replaces the body of a function after a transform pass. Used by the
// driver's fixed-point loop over function bodies.
func (t *Table) Set(name string, body *expr.Node) {
	if f, ok := t.funcs[name]; ok {
		f.Body = body
	}
}

// Names returns function names in declaration order (document functions
// first, then built-ins), for deterministic iteration.
func (t *Table) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// MarkUsed records that name was inlined at some call site. Called by
// internal/transform's inlineCall every time a function reference is
// resolved, so the driver can warn about document-defined functions that a
// compile never actually reached.
func (t *Table) MarkUsed(name string) {
	t.used[name] = true
}

// Unused returns the document-defined function names (declaration order,
// builtins excluded) that MarkUsed was never called for.
func (t *Table) Unused() []string {
	var out []string
	for _, name := range t.order {
		if builtinFuncNames[name] || t.used[name] {
			continue
		}
		out = append(out, name)
	}
	return out
}
