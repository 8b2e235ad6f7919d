package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/yegors/arrival-board/internal/arrivals"
	"github.com/yegors/arrival-board/pkg/logger"
)

// ArrivalRecord is one stored arrival from one poll
type ArrivalRecord struct {
	ID                   int64     `json:"id"`
	PollTime             time.Time `json:"poll_time"`
	StopID               string    `json:"stop_id"`
	Position             int       `json:"position"` // Index within the poll, upstream order
	Route                string    `json:"route"`
	Vehicle              string    `json:"vehicle"`
	Destination          string    `json:"destination"`
	StopsAway            int       `json:"stops_away"`
	MinutesUntilArrival  int       `json:"minutes_until_arrival"`
	ExpectedArrivalEpoch int64     `json:"expected_arrival_epoch"`
	MilesAway            float64   `json:"miles_away"`
	EstimatedOccupancy   int       `json:"estimated_occupancy"`
}

// ArrivalStorage keeps the history of successful polls
type ArrivalStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewArrivalStorage creates the arrivals table on db if needed
func NewArrivalStorage(db *sql.DB, log *logger.Logger) (*ArrivalStorage, error) {
	s := &ArrivalStorage{
		db:     db,
		logger: log.Named("sqlite"),
	}
	if err := s.initDB(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *ArrivalStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *ArrivalStorage) initDB() error {
	s.logger.Info("Initializing database schema")

	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS arrivals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			poll_time TEXT NOT NULL,
			stop_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			route TEXT NOT NULL,
			vehicle TEXT NOT NULL,
			destination TEXT NOT NULL,
			stops_away INTEGER NOT NULL,
			minutes_until_arrival INTEGER NOT NULL,
			expected_arrival_epoch INTEGER NOT NULL,
			miles_away REAL NOT NULL,
			estimated_occupancy INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create arrivals table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_arrivals_poll_time ON arrivals(poll_time)`)
	if err != nil {
		return fmt.Errorf("failed to create poll_time index: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_arrivals_route ON arrivals(route)`)
	if err != nil {
		return fmt.Errorf("failed to create route index: %w", err)
	}

	return nil
}

// RecordArrivals stores every arrival of one poll in a single transaction
func (s *ArrivalStorage) RecordArrivals(ctx context.Context, pollTime time.Time, stopID string, list []arrivals.Arrival) error {
	if len(list) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO arrivals
		(poll_time, stop_id, position, route, vehicle, destination, stops_away,
		 minutes_until_arrival, expected_arrival_epoch, miles_away, estimated_occupancy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	polled := pollTime.UTC().Format(time.RFC3339)
	for i, a := range list {
		if _, err := stmt.ExecContext(ctx,
			polled,
			stopID,
			i,
			a.Route,
			a.Vehicle,
			a.Destination,
			a.StopsAway,
			a.MinutesUntilArrival,
			a.ExpectedArrivalEpoch(),
			a.MilesAway,
			a.EstimatedOccupancy,
		); err != nil {
			return fmt.Errorf("failed to insert arrival: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit arrivals: %w", err)
	}

	s.logger.Debug("Recorded arrivals",
		logger.String("stop_id", stopID),
		logger.Int("count", len(list)))
	return nil
}

// Recent returns the newest records, optionally for a single route
// (case-insensitive), newest poll first
func (s *ArrivalStorage) Recent(ctx context.Context, route string, limit int) ([]*ArrivalRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, poll_time, stop_id, position, route, vehicle, destination, stops_away,
		       minutes_until_arrival, expected_arrival_epoch, miles_away, estimated_occupancy
		FROM arrivals`
	args := []any{}
	if route != "" {
		query += ` WHERE UPPER(route) = ?`
		args = append(args, strings.ToUpper(strings.TrimSpace(route)))
	}
	query += ` ORDER BY poll_time DESC, position ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query arrivals: %w", err)
	}
	defer rows.Close()

	var records []*ArrivalRecord
	for rows.Next() {
		var (
			r        ArrivalRecord
			pollTime string
		)
		if err := rows.Scan(
			&r.ID,
			&pollTime,
			&r.StopID,
			&r.Position,
			&r.Route,
			&r.Vehicle,
			&r.Destination,
			&r.StopsAway,
			&r.MinutesUntilArrival,
			&r.ExpectedArrivalEpoch,
			&r.MilesAway,
			&r.EstimatedOccupancy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan arrival: %w", err)
		}

		r.PollTime, err = time.Parse(time.RFC3339, pollTime)
		if err != nil {
			s.logger.Warn("Failed to parse poll time",
				logger.String("value", pollTime),
				logger.Error(err))
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating arrivals: %w", err)
	}

	return records, nil
}

// Count returns the number of stored records
func (s *ArrivalStorage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM arrivals`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count arrivals: %w", err)
	}
	return n, nil
}

// Prune deletes records polled before cutoff and returns how many were removed
func (s *ArrivalStorage) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM arrivals WHERE poll_time < ?`,
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to prune arrivals: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned row count: %w", err)
	}
	if n > 0 {
		s.logger.Info("Pruned arrival history",
			logger.Int64("rows", n),
			logger.Time("cutoff", cutoff))
	}
	return n, nil
}

// RunRetention prunes records older than keep every interval until ctx ends.
// keep <= 0 disables pruning.
func (s *ArrivalStorage) RunRetention(ctx context.Context, interval, keep time.Duration) {
	if keep <= 0 {
		return
	}

	prune := func() {
		if _, err := s.Prune(ctx, time.Now().Add(-keep)); err != nil {
			s.logger.Error("Failed to prune arrival history", logger.Error(err))
		}
	}
	prune()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			prune()
		case <-ctx.Done():
			return
		}
	}
}
