package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PutStage records a stage result for a case. An existing result for the same
// stage index is replaced.
func (s *Store) PutStage(ctx context.Context, result StageResult) (*StageResult, error) {
	if strings.TrimSpace(result.CaseID) == "" {
		return nil, errors.New("put stage: case id required")
	}
	if result.Index < 0 {
		return nil, fmt.Errorf("put stage: invalid stage index %d", result.Index)
	}
	if result.Status == "" {
		result.Status = StageCompleted
	}
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE cases SET updated_at = ? WHERE id = ?`, formatTime(time.Now().UTC()), result.CaseID)
		if err != nil {
			return err
		}
		if err := requireAffected(res, result.CaseID); err != nil {
			return err
		}
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO stage_results (`+stageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(case_id, stage_index) DO UPDATE SET
                id = excluded.id,
                name = excluded.name,
                input = excluded.input,
                output = excluded.output,
                status = excluded.status,
                retry_count = excluded.retry_count,
                duration_ms = excluded.duration_ms,
                error_message = excluded.error_message,
                created_at = excluded.created_at`,
			result.ID,
			result.CaseID,
			result.Index,
			result.Name,
			result.Input,
			result.Output,
			string(result.Status),
			result.RetryCount,
			result.Duration.Milliseconds(),
			nullableString(result.ErrorMessage),
			formatTime(result.CreatedAt),
		)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrCaseNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("put stage: %w", err)
	}
	return &result, nil
}

// Stages returns the stage results of a case ordered by stage index.
func (s *Store) Stages(ctx context.Context, caseID string) ([]StageResult, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+stageColumns+` FROM stage_results WHERE case_id = ? ORDER BY stage_index`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var results []StageResult
	for rows.Next() {
		result, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage result: %w", err)
		}
		results = append(results, *result)
	}
	return results, rows.Err()
}

// DeleteStage removes the result stored for one stage index.
func (s *Store) DeleteStage(ctx context.Context, caseID string, index int) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM stage_results WHERE case_id = ? AND stage_index = ?`, caseID, index)
	if err != nil {
		return false, fmt.Errorf("delete stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanStage(row scanner) (*StageResult, error) {
	var (
		result     StageResult
		status     string
		durationMS int64
		errMsg     sql.NullString
		createdRaw string
	)
	if err := row.Scan(
		&result.ID,
		&result.CaseID,
		&result.Index,
		&result.Name,
		&result.Input,
		&result.Output,
		&status,
		&result.RetryCount,
		&durationMS,
		&errMsg,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	result.Status = StageStatus(status)
	result.Duration = time.Duration(durationMS) * time.Millisecond
	result.ErrorMessage = errMsg.String
	if created, err := parseTimeString(createdRaw); err == nil {
		result.CreatedAt = created
	}
	return &result, nil
}
