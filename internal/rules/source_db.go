package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/JaimeStill/sectional/pkg/repository"
)

// DatabaseSource stores rule sets in the rule_sets table, one row per
// section with include and exclude held as jsonb.
type DatabaseSource struct {
	db *sql.DB
}

// NewDatabaseSource returns a source backed by db.
func NewDatabaseSource(db *sql.DB) *DatabaseSource {
	return &DatabaseSource{db: db}
}

func scanSet(s repository.Scanner) (Set, error) {
	var include, exclude []byte
	if err := s.Scan(&include, &exclude); err != nil {
		return Set{}, err
	}

	var set Set
	if err := json.Unmarshal(include, &set.Include); err != nil {
		return Set{}, fmt.Errorf("%w: include: %w", ErrCorrupt, err)
	}
	if err := json.Unmarshal(exclude, &set.Exclude); err != nil {
		return Set{}, fmt.Errorf("%w: exclude: %w", ErrCorrupt, err)
	}
	return set, nil
}

func (d *DatabaseSource) Load(ctx context.Context, section int) (Set, error) {
	q := `SELECT include, exclude FROM rule_sets WHERE section = $1`
	set, err := repository.QueryOne(ctx, d.db, q, []any{section}, scanSet)
	if err != nil {
		return Set{}, repository.MapError(err, ErrNotFound, ErrCorrupt)
	}
	return set, nil
}

func (d *DatabaseSource) Save(ctx context.Context, section int, set Set) error {
	if set.Include == nil {
		set.Include = []Rule{}
	}
	if set.Exclude == nil {
		set.Exclude = []Rule{}
	}
	include, err := json.Marshal(set.Include)
	if err != nil {
		return err
	}
	exclude, err := json.Marshal(set.Exclude)
	if err != nil {
		return err
	}

	_, err = repository.WithTx(ctx, d.db, func(tx *sql.Tx) (struct{}, error) {
		q := `
			INSERT INTO rule_sets (section, include, exclude, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (section) DO UPDATE
			SET include = EXCLUDED.include, exclude = EXCLUDED.exclude, updated_at = NOW()`
		return struct{}{}, repository.ExecExpectOne(ctx, tx, q, section, include, exclude)
	})
	return err
}

func (d *DatabaseSource) Sections(ctx context.Context) ([]int, error) {
	q := `SELECT section FROM rule_sets ORDER BY section`
	return repository.QueryMany(ctx, d.db, q, nil, func(s repository.Scanner) (int, error) {
		var id int
		err := s.Scan(&id)
		return id, err
	})
}
