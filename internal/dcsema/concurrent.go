package dcsema

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/dc-lift/dcsema/internal/ir"
	"github.com/dc-lift/dcsema/internal/semtable"
)

// ModuleJob is one independent translation unit for ConcurrentTranslate:
// a machine module's functions plus the symbol table for its external
// call targets.
type ModuleJob struct {
	Name        string
	Funcs       []*MCFunction
	SymbolNames map[uint64]string
}

// ModuleResult pairs a completed job with its translated IR module, or
// the error that stopped it.
type ModuleResult struct {
	Job    ModuleJob
	Module *ir.Module
	Err    error
}

// ConcurrentTranslate translates each job's module on its own Translator
// and RegisterSet pair, respecting spec.md section 5's "independent
// Translator instances may run on separate threads against the same
// build-time Tables, never against the same Function" allowance: every
// goroutine below gets its own Translator, and Tables is read-only once
// built, so no synchronization is needed between them.
//
// hooks and layout are shared by value across every job; a TargetHooks
// whose closures carry mutable state not safe for concurrent use must
// not be passed here.
func ConcurrentTranslate(ctx context.Context, tables semtable.Tables, layout RegisterLayout, hooks TargetHooks, jobs []ModuleJob, maxParallel int) []ModuleResult {
	results := make([]ModuleResult, len(jobs))

	if maxParallel <= 0 {
		maxParallel = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(min(maxParallel, len(jobs)))

	for i, job := range jobs {
		g.Go(func(i int, job ModuleJob) func() error {
			return func() error {
				select {
				case <-ctx.Done():
					results[i] = ModuleResult{Job: job, Err: ctx.Err()}
					return ctx.Err()
				default:
				}

				mod, err := translateModule(tables, layout, hooks, job)
				results[i] = ModuleResult{Job: job, Module: mod, Err: err}
				return err
			}
		}(i, job))
	}

	// Errors are carried per-result, not propagated past Wait: one
	// module's fatal error must not cancel the sibling modules already
	// in flight, since they have nothing in common but Tables.
	_ = g.Wait()

	return results
}

func translateModule(tables semtable.Tables, layout RegisterLayout, hooks TargetHooks, job ModuleJob) (*ir.Module, error) {
	t := New(tables, layout, hooks)
	t.SwitchToModule(job.Name, job.Funcs, job.SymbolNames)

	for _, mcFn := range job.Funcs {
		t.SwitchToFunction(mcFn)
		for _, mcBB := range mcFn.Blocks {
			t.SwitchToBasicBlock(mcBB)
			for i := range mcBB.Insts {
				if _, err := t.TranslateInst(&mcBB.Insts[i]); err != nil {
					return nil, err
				}
			}
			t.FinalizeBasicBlock()
		}
		t.FinalizeFunction()
	}

	return t.FinalizeModule(), nil
}
