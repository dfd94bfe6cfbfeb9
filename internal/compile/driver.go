// Package compile is the top-level driver: it wires internal/functable,
// internal/transform, internal/ruletree and internal/encrypt into the
// single Compile(document) entry point that cmd/rulesc (and any other
// embedder) calls.
package compile

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dbrules/rulesc/internal/docnode"
	"github.com/dbrules/rulesc/internal/encrypt"
	"github.com/dbrules/rulesc/internal/functable"
	"github.com/dbrules/rulesc/internal/observability"
	"github.com/dbrules/rulesc/internal/ruletree"
	"github.com/dbrules/rulesc/internal/transform"
)

// Result is the outcome of a successful compile.
type Result struct {
	RunID     string
	Rules     map[string]interface{}
	Firecrypt map[string]interface{} // nil when no node carried an .encrypt annotation
	Warnings  []ruletree.Warning
}

// Compile runs the full pipeline against an already-decoded document:
// function-table construction, fixed-point resolution of function bodies
// against each other, tree transformation, and encryption-annotation
// extraction. Every run is stamped with a uuid so a caller wiring
// internal/history can correlate a compile with its audit row. An optional
// *observability.Metrics is passed through to the transform and ruletree
// packages so a caller can observe the pipeline's internals.
func Compile(doc *docnode.Document, metrics ...*observability.Metrics) (*Result, error) {
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()
	logger.Debug().Int("functions", len(doc.Functions)).Msg("compiling")

	var m *observability.Metrics
	if len(metrics) > 0 {
		m = metrics[0]
	}
	start := time.Now()

	entries := make([]functable.Entry, len(doc.Functions))
	for i, f := range doc.Functions {
		entries[i] = functable.Entry{Signature: f.Signature, Body: f.Body}
	}
	table, err := functable.Build(entries)
	if err != nil {
		return nil, &CompileError{Message: err.Error(), Err: err}
	}

	if err := resolveFunctions(table, m); err != nil {
		return nil, &CompileError{Message: err.Error(), Err: err}
	}

	rules, warnings, err := ruletree.Compile(doc.Root, table, m)
	if err != nil {
		return nil, &CompileError{Message: err.Error(), Err: err}
	}

	for _, name := range table.Unused() {
		warnings = append(warnings, ruletree.Warning{Path: "/functions/" + name, Message: fmt.Sprintf("function %q is defined but never referenced", name)})
	}

	firecrypt := encrypt.Extract(rules)

	if m != nil {
		m.CompileDuration.Observe(time.Since(start).Seconds())
	}

	logger.Info().Int("warnings", len(warnings)).Bool("firecrypt", firecrypt != nil).Msg("compile finished")

	return &Result{RunID: runID, Rules: rules, Firecrypt: firecrypt, Warnings: warnings}, nil
}

// resolveFunctions repeatedly transforms every function body until a full
// pass changes none of them, failing with a diagnosable error rather than
// looping forever on a mutually recursive pair.
func resolveFunctions(table *functable.Table, metrics *observability.Metrics) error {
	const maxPasses = 2000
	names := table.Names()
	for pass := 0; pass < maxPasses; pass++ {
		changedAny := false
		for _, name := range names {
			fn, ok := table.Lookup(name)
			if !ok {
				continue
			}
			ctx := paramContext(fn.Params, table, metrics)
			newBody, changed, err := transform.Run(fn.Body, ctx)
			if err != nil {
				return fmt.Errorf("function %s: %w", name, err)
			}
			if changed {
				table.Set(name, newBody)
				changedAny = true
			}
		}
		if !changedAny {
			return nil
		}
	}
	return fmt.Errorf("function definitions did not converge after %d passes (possible recursive function definition)", maxPasses)
}

func paramContext(params []string, table *functable.Table, metrics *observability.Metrics) *transform.Context {
	ctx := transform.NewContext(nil, nil, 0, "newData", table).WithMetrics(metrics)
	for _, p := range params {
		ctx = ctx.WithLocal(p)
	}
	return ctx
}
