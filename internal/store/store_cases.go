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

// NewCase describes a case to create.
type NewCase struct {
	Name      string
	Facts     string
	PartyRole string
	CaseType  string
	Tags      []string
}

// CreateCase inserts a new case. Names are trimmed and must be unique.
func (s *Store) CreateCase(ctx context.Context, input NewCase) (*Case, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrEmptyName
	}
	now := time.Now().UTC()
	id := uuid.NewString()

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO cases (`+caseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		name,
		input.Facts,
		nullableString(strings.TrimSpace(input.PartyRole)),
		nullableString(strings.TrimSpace(input.CaseType)),
		encodeTags(input.Tags),
		nil,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create case %q: %w", name, ErrDuplicateName)
		}
		return nil, fmt.Errorf("insert case: %w", err)
	}
	return s.GetCase(ctx, id)
}

// GetCase fetches a case and its ordered stage results. It returns nil when the
// case does not exist.
func (s *Store) GetCase(ctx context.Context, id string) (*Case, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = ?`, id)
	return s.loadCase(ctx, row, "get case")
}

// FindCaseByName fetches a case by its exact (trimmed) name.
func (s *Store) FindCaseByName(ctx context.Context, name string) (*Case, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE name = ?`, strings.TrimSpace(name))
	return s.loadCase(ctx, row, "find case")
}

// ResolveCase looks a case up by ID first and then by name.
func (s *Store) ResolveCase(ctx context.Context, ref string) (*Case, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	c, err := s.GetCase(ctx, ref)
	if err != nil || c != nil {
		return c, err
	}
	return s.FindCaseByName(ctx, ref)
}

func (s *Store) loadCase(ctx context.Context, row scanner, op string) (*Case, error) {
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	stages, err := s.Stages(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Stages = stages
	return c, nil
}

// ListCases returns every case, newest first, with stage results attached.
func (s *Store) ListCases(ctx context.Context) ([]*Case, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+caseColumns+` FROM cases ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	var cases []*Case
	byID := make(map[string]*Case)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, c)
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	stageRows, err := s.db.QueryContext(ctx, `SELECT `+stageColumns+` FROM stage_results ORDER BY case_id, stage_index`)
	if err != nil {
		return nil, fmt.Errorf("list stage results: %w", err)
	}
	defer stageRows.Close()
	for stageRows.Next() {
		result, err := scanStage(stageRows)
		if err != nil {
			return nil, fmt.Errorf("scan stage result: %w", err)
		}
		if c, ok := byID[result.CaseID]; ok {
			c.Stages = append(c.Stages, *result)
		}
	}
	return cases, stageRows.Err()
}

// UpdateCase persists name, facts, party role, case type, and tags.
func (s *Store) UpdateCase(ctx context.Context, c *Case) error {
	if c == nil {
		return errors.New("case is nil")
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return ErrEmptyName
	}
	c.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE cases SET name = ?, facts = ?, party_role = ?, case_type = ?, tags_json = ?, updated_at = ? WHERE id = ?`,
		c.Name,
		c.Facts,
		nullableString(strings.TrimSpace(c.PartyRole)),
		nullableString(strings.TrimSpace(c.CaseType)),
		encodeTags(c.Tags),
		formatTime(c.UpdatedAt),
		c.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("rename case to %q: %w", c.Name, ErrDuplicateName)
		}
		return fmt.Errorf("update case: %w", err)
	}
	return requireAffected(res, c.ID)
}

// SetPetition stores the final petition text for a case.
func (s *Store) SetPetition(ctx context.Context, caseID, petition string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE cases SET petition = ?, updated_at = ? WHERE id = ?`,
		nullableString(petition),
		formatTime(time.Now().UTC()),
		caseID,
	)
	if err != nil {
		return fmt.Errorf("set petition: %w", err)
	}
	return requireAffected(res, caseID)
}

// DeleteCase removes a case and its stage results.
func (s *Store) DeleteCase(ctx context.Context, id string) (bool, error) {
	var affected int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM stage_results WHERE case_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM cases WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete case: %w", err)
	}
	return affected > 0, nil
}

// ClearCases removes every case and stage result. Settings and templates are kept.
func (s *Store) ClearCases(ctx context.Context) (int64, error) {
	var affected int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM stage_results`); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM cases`)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear cases: %w", err)
	}
	return affected, nil
}

func requireAffected(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrCaseNotFound, id)
	}
	return nil
}

func scanCase(row scanner) (*Case, error) {
	var (
		c          Case
		partyRole  sql.NullString
		caseType   sql.NullString
		tagsJSON   sql.NullString
		petition   sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Facts, &partyRole, &caseType, &tagsJSON, &petition, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	c.PartyRole = partyRole.String
	c.CaseType = caseType.String
	c.Tags = decodeTags(tagsJSON.String)
	c.Petition = petition.String
	if created, err := parseTimeString(createdRaw); err == nil {
		c.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		c.UpdatedAt = updated
	}
	return &c, nil
}
