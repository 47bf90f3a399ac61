package repository

import (
	"context"
	"time"

	"fx-advisor/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

const defaultListLimit = 200

const predictionColumns = `id, base, target, predicted_at, target_date,
       predicted_rate, probability_up, predicted_direction, decision, confidence,
       resolved_at, actual_rate, was_correct`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PredictionRepository persists live analyses so they can be scored once
// their target date passes.
type PredictionRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPredictionRepository(pool PgxPool, tracer trace.Tracer) *PredictionRepository {
	return &PredictionRepository{pool: pool, tracer: tracer}
}

func (r *PredictionRepository) Insert(ctx context.Context, p domain.Prediction) (*domain.Prediction, error) {
	_, span := r.tracer.Start(ctx, "prediction-repo.insert")
	defer span.End()

	row := r.pool.QueryRow(ctx, `
INSERT INTO fx_predictions (
    base, target, predicted_at, target_date,
    predicted_rate, probability_up, predicted_direction, decision, confidence
) VALUES (
    $1, $2, $3, $4,
    $5, $6, $7, $8, $9
)
RETURNING `+predictionColumns,
		p.Base,
		p.Target,
		p.PredictedAt.UTC(),
		p.TargetDate.UTC(),
		p.PredictedRate,
		p.ProbabilityUp,
		string(p.PredictedDirection),
		string(p.Decision),
		p.Confidence,
	)
	return scanPrediction(row)
}

// ListUnresolvedDue returns unresolved predictions whose target date is on or
// before asOf, oldest first.
func (r *PredictionRepository) ListUnresolvedDue(ctx context.Context, asOf time.Time, limit int) ([]domain.Prediction, error) {
	_, span := r.tracer.Start(ctx, "prediction-repo.list-unresolved-due")
	defer span.End()

	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.pool.Query(ctx, `
SELECT `+predictionColumns+`
FROM fx_predictions
WHERE resolved_at IS NULL
  AND target_date <= $1
ORDER BY target_date ASC, id ASC
LIMIT $2`, asOf.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return collectPredictions(rows)
}

func (r *PredictionRepository) Resolve(ctx context.Context, id int64, actualRate float64, wasCorrect bool, resolvedAt time.Time) error {
	_, span := r.tracer.Start(ctx, "prediction-repo.resolve")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `
UPDATE fx_predictions
SET resolved_at = $2,
    actual_rate = $3,
    was_correct = $4
WHERE id = $1
  AND resolved_at IS NULL`, id, resolvedAt.UTC(), actualRate, wasCorrect)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListResolvedSince returns resolved predictions made at or after since,
// ordered by prediction time.
func (r *PredictionRepository) ListResolvedSince(ctx context.Context, since time.Time) ([]domain.Prediction, error) {
	_, span := r.tracer.Start(ctx, "prediction-repo.list-resolved-since")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT `+predictionColumns+`
FROM fx_predictions
WHERE resolved_at IS NOT NULL
  AND predicted_at >= $1
ORDER BY predicted_at ASC, id ASC`, since.UTC())
	if err != nil {
		return nil, err
	}
	return collectPredictions(rows)
}

func collectPredictions(rows pgx.Rows) ([]domain.Prediction, error) {
	defer rows.Close()

	var out []domain.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(s scanner) (*domain.Prediction, error) {
	var out domain.Prediction
	var direction, decision string
	var resolvedAt pgtype.Timestamptz
	var actualRate pgtype.Float8
	var wasCorrect pgtype.Bool

	if err := s.Scan(
		&out.ID,
		&out.Base,
		&out.Target,
		&out.PredictedAt,
		&out.TargetDate,
		&out.PredictedRate,
		&out.ProbabilityUp,
		&direction,
		&decision,
		&out.Confidence,
		&resolvedAt,
		&actualRate,
		&wasCorrect,
	); err != nil {
		return nil, err
	}
	out.PredictedDirection = domain.Direction(direction)
	out.Decision = domain.Decision(decision)
	out.PredictedAt = out.PredictedAt.UTC()
	out.TargetDate = out.TargetDate.UTC()

	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		out.ResolvedAt = &t
	}
	if actualRate.Valid {
		v := actualRate.Float64
		out.ActualRate = &v
	}
	if wasCorrect.Valid {
		v := wasCorrect.Bool
		out.WasCorrect = &v
	}
	return &out, nil
}
