package pipeline

import (
	"context"

	"qsol/internal/desugar"
	"qsol/internal/diag"
	"qsol/internal/elaborate"
	"qsol/internal/kernel"
	"qsol/internal/loader"
	"qsol/internal/lower"
	"qsol/internal/resolve"
	"qsol/internal/source"
	"qsol/internal/typecheck"
	"qsol/internal/validate"
)

// Frontend is the scenario-independent half of the pipeline: spec.md
// §4.1's Module Loader through §4.9's Lowerer, run once per source root
// regardless of how many scenarios are later ground against its IR.
type Frontend struct {
	IR    *kernel.IR
	Files *source.FileSet
	Bag   *diag.Bag
}

// Compile runs the loader, elaborator, resolver, type checker,
// validator, desugarer, and lowerer in sequence, stopping at the first
// stage boundary that either observes ctx cancellation or accumulates an
// error-severity diagnostic (matching spec.md §5's "each stage reads an
// immutable snapshot produced by the previous" sequencing and its
// stage-boundary cancellation contract). A nil IR means the frontend
// could not reach lowering; Bag always holds every diagnostic collected
// up to that point.
func Compile(ctx context.Context, rootPath string) *Frontend {
	bag := diag.NewBag()
	res, loadBag := loader.Load(rootPath)
	bag.Merge(loadBag)
	if res == nil {
		return &Frontend{Bag: bag}
	}
	if cancelled(ctx, bag) {
		return &Frontend{Files: res.Files, Bag: bag}
	}
	if bag.HasErrors() {
		return &Frontend{Files: res.Files, Bag: bag}
	}

	prog := elaborate.Elaborate(res.Program, bag)
	if bag.HasErrors() || cancelled(ctx, bag) {
		return &Frontend{Files: res.Files, Bag: bag}
	}

	table := resolve.Resolve(prog, bag)
	if bag.HasErrors() || cancelled(ctx, bag) {
		return &Frontend{Files: res.Files, Bag: bag}
	}

	typecheck.Check(prog, table, bag)
	validate.Program(prog, table, bag)
	if bag.HasErrors() || cancelled(ctx, bag) {
		return &Frontend{Files: res.Files, Bag: bag}
	}

	prog = desugar.Program(prog)
	if cancelled(ctx, bag) {
		return &Frontend{Files: res.Files, Bag: bag}
	}

	ir := lower.Program(prog)
	return &Frontend{IR: ir, Files: res.Files, Bag: bag}
}
