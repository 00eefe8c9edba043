package runs

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/sectional/internal/alignment"
	"github.com/JaimeStill/sectional/internal/fields"
	"github.com/JaimeStill/sectional/internal/workflow"
)

// Engine is the categorization setup shared by all runs.
type Engine struct {
	Runtime    *workflow.Runtime
	Options    workflow.Options
	References alignment.References
}

// Prepared is an executed run whose artifacts are not yet stored.
type Prepared struct {
	Run    Run
	Fields []fields.Field
	Result *workflow.Result

	artifacts []artifact
}

// Prepare extracts fields from the upload, executes the workflow, and
// encodes the artifacts.
func Prepare(ctx context.Context, eng Engine, cmd CreateCommand) (*Prepared, error) {
	fs, err := Extract(cmd.Filename, cmd.Data)
	if err != nil {
		return nil, err
	}

	refs := cmd.References
	if refs.Empty() {
		refs = eng.References
	}
	opts := eng.Options
	if cmd.MaxCycles > 0 {
		opts.MaxCycles = cmd.MaxCycles
	}

	rt := eng.Runtime
	if rt == nil {
		rt = &workflow.Runtime{}
	}
	res, err := workflow.Execute(ctx, rt, fs, refs, opts)
	if err != nil {
		return nil, fmt.Errorf("execute run: %w", err)
	}

	id := uuid.New()
	run := Run{
		ID:         id,
		Filename:   cmd.Filename,
		Profile:    profileName(rt),
		FieldCount: len(fs),
		Score:      res.BestScore,
		Aligned:    res.Aligned,
		Status:     status(res),
		Cycles:     len(res.Cycles),
		BestCycle:  res.BestCycle,
		Residual:   res.Residual,
		StorageKey: Prefix(id),
	}
	if cmd.CreatedBy != "" {
		run.CreatedBy = &cmd.CreatedBy
	}

	artifacts, err := buildArtifacts(cmd.Data, http.DetectContentType(cmd.Data), fs, res)
	if err != nil {
		return nil, err
	}

	return &Prepared{Run: run, Fields: fs, Result: res, artifacts: artifacts}, nil
}

func status(res *workflow.Result) string {
	switch {
	case res.Report.NoReference:
		return StatusUnreferenced
	case res.Aligned:
		return StatusAligned
	default:
		return StatusUnaligned
	}
}

func profileName(rt *workflow.Runtime) string {
	if rt.Registry != nil && rt.Registry.Name() != "" {
		return rt.Registry.Name()
	}
	if rt.Rules != nil && rt.Rules.Registry().Name() != "" {
		return rt.Rules.Registry().Name()
	}
	return "default"
}
