package pgstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/etnz/tradebook/resolver"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const itemColumns = `cusip, users, priority, status, attempts, last_attempt_at, claimed_at,
	last_error, created_at, ticker, source, confidence`

// Queue is a resolver.QueueStore in the resolution_queue table.
type Queue struct {
	db     *pgxpool.Pool
	policy resolver.Policy
}

// NewQueue returns the queue stored in 'db', applying 'policy'.
func NewQueue(db *pgxpool.Pool, policy resolver.Policy) *Queue {
	return &Queue{db: db, policy: policy}
}

func (q *Queue) Enqueue(ctx context.Context, cusip, userID string, priority int, now time.Time) (resolver.Item, error) {
	query := `
		INSERT INTO resolution_queue (cusip, users, priority, status, created_at)
		VALUES ($1, CASE WHEN $2::text = '' THEN '{}'::text[] ELSE ARRAY[$2::text] END, $3, 'pending', $4)
		ON CONFLICT (cusip) DO UPDATE SET
			users = CASE
				WHEN $2::text = '' OR $2::text = ANY(resolution_queue.users) THEN resolution_queue.users
				ELSE ARRAY(SELECT u FROM unnest(array_append(resolution_queue.users, $2::text)) AS u ORDER BY u)
			END,
			status = CASE
				WHEN $3 > resolution_queue.priority AND resolution_queue.status = 'failed' THEN 'pending'
				ELSE resolution_queue.status
			END,
			attempts = CASE
				WHEN $3 > resolution_queue.priority AND resolution_queue.status = 'failed' THEN 0
				ELSE resolution_queue.attempts
			END,
			priority = GREATEST(resolution_queue.priority, $3)
		RETURNING ` + itemColumns

	it, err := scanItem(q.db.QueryRow(ctx, query, cusip, userID, priority, now))
	if err != nil {
		return it, fmt.Errorf("failed to enqueue %s: %w", cusip, err)
	}
	return it, nil
}

// Claim selects and marks the eligible items in a single statement. Rows
// locked by a concurrent claim are skipped.
func (q *Queue) Claim(ctx context.Context, now time.Time, limit int) ([]resolver.Item, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	backoffs := make([]float64, 0, len(q.policy.Backoffs))
	for _, b := range q.policy.Backoffs {
		backoffs = append(backoffs, b.Seconds())
	}
	if len(backoffs) == 0 {
		backoffs = []float64{0}
	}
	query := `
		UPDATE resolution_queue SET status = 'processing', claimed_at = $1
		WHERE cusip IN (
			SELECT cusip FROM resolution_queue
			WHERE (status = 'pending' AND (attempts = 0 OR last_attempt_at <= $1 -
					make_interval(secs => ($3::float8[])[LEAST(attempts, cardinality($3::float8[]))])))
				OR (status = 'processing' AND claimed_at <= $1 - make_interval(secs => $4::float8))
			ORDER BY priority DESC, created_at, cusip
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + itemColumns

	rows, err := q.db.Query(ctx, query, now, limit, backoffs, q.policy.VisibilityTimeout.Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to claim queue items: %w", err)
	}
	defer rows.Close()

	var items []resolver.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claimed items: %w", err)
	}
	// RETURNING does not keep the subquery order.
	slices.SortFunc(items, func(a, b resolver.Item) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.CUSIP, b.CUSIP)
	})
	return items, nil
}

func (q *Queue) Complete(ctx context.Context, cusip string, m resolver.Mapping, now time.Time) (resolver.Item, error) {
	query := `
		UPDATE resolution_queue SET
			status = 'completed', attempts = attempts + 1, last_attempt_at = $2, last_error = '',
			ticker = $3, source = $4, confidence = $5
		WHERE cusip = $1
		RETURNING ` + itemColumns

	it, err := scanItem(q.db.QueryRow(ctx, query, cusip, now, m.Ticker, string(m.Source), string(m.Confidence)))
	if errors.Is(err, pgx.ErrNoRows) {
		return it, resolver.ErrNotQueued
	}
	if err != nil {
		return it, fmt.Errorf("failed to complete %s: %w", cusip, err)
	}
	return it, nil
}

func (q *Queue) Fail(ctx context.Context, cusip string, cause error, now time.Time) (resolver.Item, error) {
	var last string
	if cause != nil {
		last = cause.Error()
	}
	query := `
		UPDATE resolution_queue SET
			attempts = attempts + 1, last_attempt_at = $2, last_error = $3,
			status = CASE WHEN attempts + 1 >= $4 THEN 'failed' ELSE 'pending' END
		WHERE cusip = $1
		RETURNING ` + itemColumns

	it, err := scanItem(q.db.QueryRow(ctx, query, cusip, now, last, q.policy.MaxAttempts))
	if errors.Is(err, pgx.ErrNoRows) {
		return it, resolver.ErrNotQueued
	}
	if err != nil {
		return it, fmt.Errorf("failed to fail %s: %w", cusip, err)
	}
	return it, nil
}

func (q *Queue) Get(ctx context.Context, cusip string) (resolver.Item, bool, error) {
	query := `SELECT ` + itemColumns + ` FROM resolution_queue WHERE cusip = $1`
	it, err := scanItem(q.db.QueryRow(ctx, query, cusip))
	if errors.Is(err, pgx.ErrNoRows) {
		return it, false, nil
	}
	if err != nil {
		return it, false, fmt.Errorf("failed to get %s: %w", cusip, err)
	}
	return it, true, nil
}

func (q *Queue) List(ctx context.Context) ([]resolver.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM resolution_queue ORDER BY cusip`
	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}
	defer rows.Close()

	var items []resolver.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue items: %w", err)
	}
	return items, nil
}

// scanItem reads the itemColumns of a row.
func scanItem(row pgx.Row) (resolver.Item, error) {
	var (
		it                   resolver.Item
		status, source, conf string
		lastAttempt, claimed *time.Time
	)
	err := row.Scan(&it.CUSIP, &it.Users, &it.Priority, &status, &it.Attempts, &lastAttempt, &claimed,
		&it.LastError, &it.CreatedAt, &it.Ticker, &source, &conf)
	if err != nil {
		return resolver.Item{}, err
	}
	it.Status = resolver.Status(status)
	it.Source = resolver.Source(source)
	it.Confidence = resolver.Confidence(conf)
	if lastAttempt != nil {
		it.LastAttemptAt = *lastAttempt
	}
	if claimed != nil {
		it.ClaimedAt = *claimed
	}
	return it, nil
}

var _ resolver.QueueStore = (*Queue)(nil)
