package runs

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/sectional/pkg/formatting"
	"github.com/JaimeStill/sectional/pkg/pagination"
	"github.com/JaimeStill/sectional/pkg/query"
	"github.com/JaimeStill/sectional/pkg/repository"
	"github.com/JaimeStill/sectional/pkg/storage"
)

type repo struct {
	db         *sql.DB
	storage    storage.System
	engine     Engine
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a run repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	engine Engine,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		engine:     engine,
		logger:     logger.With("system", "runs"),
		pagination: pagination,
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, r.pagination, maxUploadSize)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Run], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Filename", "Profile")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRun)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Run, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	run, err := repository.QueryOne(ctx, r.db, q, args, scanRun)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &run, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Run, error) {
	p, err := Prepare(ctx, r.engine, cmd)
	if err != nil {
		return nil, err
	}
	for _, d := range p.Result.Diagnostics {
		r.logger.Warn("run diagnostic", "id", p.Run.ID, "diagnostic", d)
	}

	if err := uploadArtifacts(ctx, r.storage, p.Run.StorageKey, p.artifacts); err != nil {
		r.compensate(p.Run.StorageKey)
		return nil, fmt.Errorf("store artifacts: %w", err)
	}

	q := `
		INSERT INTO runs(id, filename, profile, field_count, score, aligned, status, cycles, best_cycle, residual, storage_key, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, filename, profile, field_count, score, aligned, status, cycles, best_cycle, residual, storage_key, created_by, created_at`

	args := []any{
		p.Run.ID,
		p.Run.Filename,
		p.Run.Profile,
		p.Run.FieldCount,
		p.Run.Score,
		p.Run.Aligned,
		p.Run.Status,
		p.Run.Cycles,
		p.Run.BestCycle,
		p.Run.Residual,
		p.Run.StorageKey,
		p.Run.CreatedBy,
	}

	run, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Run, error) {
		return repository.QueryOne(ctx, tx, q, args, scanRun)
	})
	if err != nil {
		r.compensate(p.Run.StorageKey)
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info(
		"run created",
		"id", run.ID,
		"filename", run.Filename,
		"size", formatting.FormatBytes(int64(len(cmd.Data)), 1),
		"fields", run.FieldCount,
		"score", run.Score,
		"status", run.Status,
	)
	return &run, nil
}

func (r *repo) Artifacts(ctx context.Context, id uuid.UUID) ([]ArtifactInfo, error) {
	run, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	return listArtifacts(ctx, r.storage, run.StorageKey)
}

func (r *repo) Artifact(ctx context.Context, id uuid.UUID, name string) (io.ReadCloser, error) {
	run, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	return downloadArtifact(ctx, r.storage, run.StorageKey, name)
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	run, err := r.Find(ctx, id)
	if err != nil {
		return err
	}

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExecExpectOne(ctx, tx, "DELETE FROM runs WHERE id = $1", id)
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if n, delErr := r.storage.DeletePrefix(ctx, run.StorageKey); delErr != nil {
		r.logger.Warn("artifact delete failed after DB delete", "prefix", run.StorageKey, "error", delErr)
	} else {
		r.logger.Info("run deleted", "id", id, "artifacts", n)
	}
	return nil
}

// compensate removes artifacts of a run that could not be recorded. It runs
// on a fresh context so that a cancelled request still cleans up.
func (r *repo) compensate(prefix string) {
	if _, err := r.storage.DeletePrefix(context.Background(), prefix); err != nil {
		r.logger.Warn("compensating artifact delete failed", "prefix", prefix, "error", err)
	}
}
