package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"

	apperrors "github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/resilience"
)

// Querier runs a query and hands every row to fn. postgres.Client
// implements it.
type Querier interface {
	QueryEach(ctx context.Context, query string, args []any, fn func(row postgres.Scanner) error) error
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// quoteTable quotes an optionally schema-qualified table name.
func quoteTable(table string) (string, error) {
	if !tableName.MatchString(table) {
		return "", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid table name %q", table)
	}
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, "."), nil
}

// LoadTable reads every (id, text) row of table and pushes them in id order.
// Rows are buffered before the push so a retried read never pushes twice.
func LoadTable(ctx context.Context, db Querier, table string, target Pusher) (int, error) {
	quoted, err := quoteTable(table)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT id, text FROM %s ORDER BY id", quoted)
	logger := slog.Default().With("component", "table-source", "table", table)

	var payloads [][]byte
	var ids []uint32
	err = resilience.Retry(ctx, "load-"+table, resilience.RetryConfig{
		MaxAttempts:  4,
		InitialDelay: 250 * time.Millisecond,
		Retryable:    func(err error) bool { return !errors.Is(err, apperrors.ErrInvalidInput) },
	}, func(ctx context.Context) error {
		payloads, ids = payloads[:0], ids[:0]
		return db.QueryEach(ctx, query, nil, func(row postgres.Scanner) error {
			var id int64
			var text string
			if err := row.Scan(&id, &text); err != nil {
				return fmt.Errorf("scanning row: %w", err)
			}
			if id < 0 || id > int64(^uint32(0)) {
				return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "id %d does not fit an identity", id)
			}
			payloads = append(payloads, []byte(text))
			ids = append(ids, uint32(id))
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("loading table %s: %w", table, err)
	}

	for start := 0; start < len(payloads); start += batchSize {
		end := min(start+batchSize, len(payloads))
		if err := target.PushAll(payloads[start:end], ids[start:end]); err != nil {
			return start, fmt.Errorf("pushing rows of %s: %w", table, err)
		}
	}
	logger.Info("table loaded", "rows", len(payloads))
	return len(payloads), nil
}
