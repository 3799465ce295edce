package orchestrators

import (
	"context"
	"fmt"

	"github.com/ochairo/pybuild/internal/domain/interfaces"
)

// Phase names one step of a builder lifecycle
type Phase string

// Builder phases
const (
	PhaseReset       Phase = "reset"
	PhaseDownload    Phase = "download"
	PhasePreprocess  Phase = "preprocess"
	PhaseBuild       Phase = "build"
	PhasePostprocess Phase = "postprocess"
	PhaseInstall     Phase = "install"
	PhaseClean       Phase = "clean"
	PhaseZipLib      Phase = "ziplib"
	PhaseDump        Phase = "dump"
)

// PhaseStep binds a phase to the builder operation that implements it
type PhaseStep struct {
	Phase Phase

	// SkipWhenBuilt leaves the step out when the product already exists
	SkipWhenBuilt bool

	fn func(ctx context.Context, b *Builder, r *run) error
}

// PhaseTable is the ordered install sequence. A profile without a
// Setup.local, patch or rewrite makes the matching step a no-op.
var PhaseTable = []PhaseStep{
	{Phase: PhaseReset, SkipWhenBuilt: true, fn: func(ctx context.Context, b *Builder, _ *run) error { return b.Reset(ctx) }},
	{Phase: PhaseDownload, SkipWhenBuilt: true, fn: func(ctx context.Context, b *Builder, r *run) error {
		return b.download(ctx, !b.Profile.SkipDependencyDownload, r)
	}},
	{Phase: PhasePreprocess, SkipWhenBuilt: true, fn: func(ctx context.Context, b *Builder, _ *run) error { return b.Preprocess(ctx) }},
	{Phase: PhaseBuild, fn: func(ctx context.Context, b *Builder, r *run) error { return b.build(ctx, r) }},
	{Phase: PhasePostprocess, fn: func(ctx context.Context, b *Builder, _ *run) error { return b.Postprocess(ctx) }},
}

// actions are the phases selectable for a recipe run
var actions = map[Phase]func(ctx context.Context, b *Builder, r *run) error{
	PhaseReset: func(ctx context.Context, b *Builder, _ *run) error { return b.Reset(ctx) },
	PhaseDownload: func(ctx context.Context, b *Builder, r *run) error {
		return b.download(ctx, !b.Profile.SkipDependencyDownload, r)
	},
	PhaseInstall: func(ctx context.Context, b *Builder, r *run) error { return b.install(ctx, r) },
	PhaseBuild:   func(ctx context.Context, b *Builder, r *run) error { return b.build(ctx, r) },
	PhaseClean:   func(ctx context.Context, b *Builder, _ *run) error { return b.Clean(ctx) },
	PhaseZipLib:  func(ctx context.Context, b *Builder, _ *run) error { return b.ZipLib(ctx) },
}

// Install runs the steps of PhaseTable in order. An existing product keeps
// its prefix and is only post-processed again; use Reset to rebuild it.
func (b *Builder) Install(ctx context.Context) error {
	return b.install(ctx, newRun())
}

func (b *Builder) install(ctx context.Context, r *run) error {
	built := b.ProductExists()
	if built {
		b.log("install").Info("Product built already, keeping prefix", interfaces.F("prefix", b.Prefix()))
	}
	for _, step := range PhaseTable {
		if built && step.SkipWhenBuilt {
			continue
		}
		if err := step.fn(ctx, b, r); err != nil {
			return &PhaseError{Phase: step.Phase, Builder: b.String(), Err: err}
		}
	}
	return nil
}

// PhaseError reports the phase and builder of the first failure
type PhaseError struct {
	Phase   Phase
	Builder string
	Err     error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Phase, e.Builder, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
