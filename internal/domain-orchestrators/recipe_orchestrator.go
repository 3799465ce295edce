package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
	"github.com/ochairo/pybuild/internal/domain/interfaces"
)

// Recipe is a named, ordered list of root builders for one deployment target
type Recipe struct {
	Name     string
	Builders []*Builder
}

// RunOptions selects the actions of a recipe run. Unset options are no-ops;
// selected actions run in the order of the fields below.
type RunOptions struct {
	Reset    bool
	Download bool
	Install  bool
	Build    bool
	Clean    bool
	ZipLib   bool

	// Dump writes the resolved builders as "yml" or "json" into DumpDir
	Dump    string
	DumpDir string
}

func (o RunOptions) phases() []Phase {
	var out []Phase
	for _, p := range []struct {
		on    bool
		phase Phase
	}{
		{o.Reset, PhaseReset},
		{o.Download, PhaseDownload},
		{o.Install, PhaseInstall},
		{o.Build, PhaseBuild},
		{o.Clean, PhaseClean},
		{o.ZipLib, PhaseZipLib},
	} {
		if p.on {
			out = append(out, p.phase)
		}
	}
	return out
}

// PhaseReport records one completed phase
type PhaseReport struct {
	Phase    Phase
	Builder  string
	Duration time.Duration
}

// RunResult contains the result of a recipe run
type RunResult struct {
	Recipe        string
	Phases        []PhaseReport
	DumpFiles     []string
	TotalDuration time.Duration
	Success       bool
	Error         error
}

// RecipeOrchestrator runs recipes with fail-fast semantics
type RecipeOrchestrator struct {
	logger interfaces.Logger
}

// NewRecipeOrchestrator creates a new recipe orchestrator
func NewRecipeOrchestrator(logger interfaces.Logger) *RecipeOrchestrator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &RecipeOrchestrator{logger: logger}
}

// Run executes the selected actions for every root builder of recipe.
// The dependency graph is checked for cycles before anything touches disk,
// and the first failure aborts the run.
func (o *RecipeOrchestrator) Run(ctx context.Context, recipe *Recipe, opts RunOptions) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{Recipe: recipe.Name}

	if err := CheckCycles(recipe.Builders); err != nil {
		result.Error = err
		return result, err
	}

	if opts.Dump != "" {
		files, err := WriteDump(recipe, opts.DumpDir, opts.Dump)
		if err != nil {
			result.Error = &PhaseError{Phase: PhaseDump, Builder: recipe.Name, Err: err}
			return result, result.Error
		}
		result.DumpFiles = files
	}

	r := newRun()
	for _, phase := range opts.phases() {
		for _, b := range recipe.Builders {
			if err := ctx.Err(); err != nil {
				result.Error = err
				return result, err
			}
			phaseStart := time.Now()
			o.logger.Info("Starting phase", interfaces.F("recipe", recipe.Name), interfaces.F("builder", b.String()), interfaces.F("phase", string(phase)))

			if err := actions[phase](ctx, b, r); err != nil {
				var phaseErr *PhaseError
				if !errors.As(err, &phaseErr) {
					err = &PhaseError{Phase: phase, Builder: b.String(), Err: err}
				}
				o.logFailure(err)
				result.Error = err
				result.TotalDuration = time.Since(start)
				return result, err
			}
			result.Phases = append(result.Phases, PhaseReport{
				Phase:    phase,
				Builder:  b.String(),
				Duration: time.Since(phaseStart),
			})
		}
	}

	result.Success = true
	result.TotalDuration = time.Since(start)
	return result, nil
}

func (o *RecipeOrchestrator) logFailure(err error) {
	fields := []interfaces.Field{interfaces.F("code", string(domainerrors.CodeOf(err)))}
	var phaseErr *PhaseError
	if errors.As(err, &phaseErr) {
		fields = append(fields, interfaces.F("phase", string(phaseErr.Phase)), interfaces.F("builder", phaseErr.Builder))
	}
	var toolErr *domainerrors.ToolInvocationError
	if errors.As(err, &toolErr) {
		fields = append(fields, interfaces.F("command", toolErr.Command), interfaces.F("exit_code", toolErr.ExitCode))
	}
	o.logger.Error("Recipe failed", fields...)
}

// Summary returns a human-readable summary of the run
func (r *RunResult) Summary() string {
	if !r.Success {
		return fmt.Sprintf("Recipe %s failed: %v", r.Recipe, r.Error)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Recipe %s complete (%v)", r.Recipe, r.TotalDuration.Round(time.Millisecond))
	for _, p := range r.Phases {
		fmt.Fprintf(&sb, "\n  %-12s %-32s %v", p.Phase, p.Builder, p.Duration.Round(time.Millisecond))
	}
	for _, f := range r.DumpFiles {
		fmt.Fprintf(&sb, "\n  dumped %s", f)
	}
	return sb.String()
}
