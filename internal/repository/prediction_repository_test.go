package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fx-advisor/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func TestInsertReturnsStoredPrediction(t *testing.T) {
	predictedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.FixedZone("AEST", 10*3600))
	pool := &fakePool{row: fakeRow{values: []any{
		int64(7), "inr", "aud", predictedAt, time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC),
		0.018, 0.62, "up", "wait", 0.55,
		pgtype.Timestamptz{}, pgtype.Float8{}, pgtype.Bool{},
	}}}
	repo := NewPredictionRepository(pool, testTracer)

	got, err := repo.Insert(context.Background(), domain.Prediction{
		Base:               "inr",
		Target:             "aud",
		PredictedAt:        predictedAt,
		TargetDate:         time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC),
		PredictedRate:      0.018,
		ProbabilityUp:      0.62,
		PredictedDirection: domain.DirectionUp,
		Decision:           domain.DecisionWait,
		Confidence:         0.55,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != 7 || got.PredictedDirection != domain.DirectionUp || got.Decision != domain.DecisionWait {
		t.Fatalf("unexpected prediction: %+v", got)
	}
	if got.PredictedAt.Location() != time.UTC {
		t.Fatalf("expected UTC timestamps, got %s", got.PredictedAt.Location())
	}
	if got.ResolvedAt != nil || got.ActualRate != nil || got.WasCorrect != nil {
		t.Fatalf("expected unresolved prediction, got %+v", got)
	}
	if !strings.Contains(pool.lastSQL, "INSERT INTO fx_predictions") {
		t.Fatalf("unexpected sql: %s", pool.lastSQL)
	}
	if pool.lastArgs[2].(time.Time).Location() != time.UTC {
		t.Fatal("expected predicted_at to be written in UTC")
	}
}

func TestScanPredictionResolvedFields(t *testing.T) {
	resolvedAt := time.Date(2026, 3, 18, 1, 0, 0, 0, time.UTC)
	row := fakeRow{values: []any{
		int64(3), "inr", "aud", time.Now(), time.Now(),
		0.018, 0.3, "down", "send_now", 0.66,
		pgtype.Timestamptz{Time: resolvedAt, Valid: true},
		pgtype.Float8{Float64: 0.0178, Valid: true},
		pgtype.Bool{Bool: true, Valid: true},
	}}

	got, err := scanPrediction(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ResolvedAt == nil || !got.ResolvedAt.Equal(resolvedAt) {
		t.Fatalf("unexpected resolved_at: %v", got.ResolvedAt)
	}
	if got.ActualRate == nil || *got.ActualRate != 0.0178 {
		t.Fatalf("unexpected actual rate: %v", got.ActualRate)
	}
	if got.WasCorrect == nil || !*got.WasCorrect {
		t.Fatalf("unexpected was_correct: %v", got.WasCorrect)
	}
}

func TestScanPredictionPropagatesError(t *testing.T) {
	want := errors.New("scan failed")
	if _, err := scanPrediction(fakeRow{err: want}); !errors.Is(err, want) {
		t.Fatalf("expected scan error, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	pool := &fakePool{tag: pgconn.NewCommandTag("UPDATE 1")}
	repo := NewPredictionRepository(pool, testTracer)

	if err := repo.Resolve(context.Background(), 9, 0.019, true, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.lastArgs[0] != int64(9) || pool.lastArgs[2] != 0.019 || pool.lastArgs[3] != true {
		t.Fatalf("unexpected args: %v", pool.lastArgs)
	}

	pool.tag = pgconn.NewCommandTag("UPDATE 0")
	if err := repo.Resolve(context.Background(), 9, 0.019, true, time.Now()); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected ErrNoRows for an already resolved prediction, got %v", err)
	}
}

func TestListUnresolvedDueDefaultsLimit(t *testing.T) {
	pool := &fakePool{queryErr: errors.New("stop")}
	repo := NewPredictionRepository(pool, testTracer)

	if _, err := repo.ListUnresolvedDue(context.Background(), time.Now(), 0); err == nil {
		t.Fatal("expected query error")
	}
	if pool.lastArgs[1] != defaultListLimit {
		t.Fatalf("expected default limit %d, got %v", defaultListLimit, pool.lastArgs[1])
	}
}

type fakePool struct {
	row      fakeRow
	tag      pgconn.CommandTag
	queryErr error
	lastSQL  string
	lastArgs []any
}

func (f *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL, f.lastArgs = sql, args
	return f.tag, nil
}

func (f *fakePool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.lastSQL, f.lastArgs = sql, args
	return nil, f.queryErr
}

func (f *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL, f.lastArgs = sql, args
	return f.row
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *int64:
			*d = v.(int64)
		case *string:
			*d = v.(string)
		case *float64:
			*d = v.(float64)
		case *time.Time:
			*d = v.(time.Time)
		case *pgtype.Timestamptz:
			*d = v.(pgtype.Timestamptz)
		case *pgtype.Float8:
			*d = v.(pgtype.Float8)
		case *pgtype.Bool:
			*d = v.(pgtype.Bool)
		default:
			return errors.New("unsupported destination")
		}
	}
	return nil
}
