package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/todoflow-labs/task-tracker/internal/metrics"
)

type traceKey struct{}

type traceStart struct {
	at  time.Time
	sql string
}

// QueryTracer observes every query duration and warns on slow ones.
type QueryTracer struct {
	logger        *zerolog.Logger
	slowThreshold time.Duration
}

// NewQueryTracer defaults slowThreshold to 100ms when zero.
func NewQueryTracer(logger *zerolog.Logger, slowThreshold time.Duration) *QueryTracer {
	if slowThreshold == 0 {
		slowThreshold = 100 * time.Millisecond
	}
	return &QueryTracer{logger: logger, slowThreshold: slowThreshold}
}

func (t *QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceKey{}, traceStart{at: time.Now(), sql: data.SQL})
}

func (t *QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(traceKey{}).(traceStart)
	if !ok {
		return
	}
	took := time.Since(start.at)
	metrics.RecordDBQuery(operationOf(start.sql), took)

	if took > t.slowThreshold {
		sql := strings.Join(strings.Fields(start.sql), " ")
		if len(sql) > 200 {
			sql = sql[:200] + "..."
		}
		t.logger.Warn().
			Str("sql", sql).
			Dur("took", took).
			Str("command_tag", data.CommandTag.String()).
			Msg("slow query")
	}
}

// operationOf returns the leading SQL keyword in lower case.
func operationOf(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}
