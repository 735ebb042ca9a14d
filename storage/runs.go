package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"ewintr.nl/shortscout/model"
)

func (s *SQL) SaveRun(ctx context.Context, r *model.RunReport) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("could not marshal run report: %w", err)
	}

	query := s.rebind(`INSERT INTO discovery_runs (run_id, source, started_at, finished_at, partial, inserted, report)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query,
		r.RunID, string(r.Source), normalizeTime(r.StartedAt), normalizeTime(r.FinishedAt), r.Partial, r.Inserted, string(body),
	); err != nil {
		return fmt.Errorf("could not save run report: %w", err)
	}

	return nil
}

func (s *SQL) LatestRuns(ctx context.Context, limit int) ([]*model.RunReport, error) {
	if limit < 1 || limit > MaxPageSize {
		limit = DefaultPageSize
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT report FROM discovery_runs ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("could not query run reports: %w", err)
	}
	defer rows.Close()

	reports := []*model.RunReport{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var r model.RunReport
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("could not unmarshal run report: %w", err)
		}
		reports = append(reports, &r)
	}

	return reports, rows.Err()
}
