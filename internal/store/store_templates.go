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

const templateColumns = "id, name, content, created_at, updated_at"

// Template placeholders.
const (
	PlaceholderCaseName       = "{{caseName}}"
	PlaceholderStageSummaries = "{{stageSummaries}}"
)

// CreateTemplate inserts a named template.
func (s *Store) CreateTemplate(ctx context.Context, name, content string) (*Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	now := time.Now().UTC()
	tmpl := &Template{ID: uuid.NewString(), Name: name, Content: content, CreatedAt: now, UpdatedAt: now}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?)`,
		tmpl.ID, tmpl.Name, tmpl.Content, formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create template %q: %w", name, ErrDuplicateName)
		}
		return nil, fmt.Errorf("insert template: %w", err)
	}
	return tmpl, nil
}

// UpdateTemplate replaces a template's content.
func (s *Store) UpdateTemplate(ctx context.Context, id, content string) error {
	res, err := s.execWithRetry(ctx, `UPDATE templates SET content = ?, updated_at = ? WHERE id = ?`,
		content, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update template: %s not found", id)
	}
	return nil
}

// Template looks a template up by ID or name. It returns nil when absent.
func (s *Store) Template(ctx context.Context, ref string) (*Template, error) {
	ctx = ensureContext(ctx)
	ref = strings.TrimSpace(ref)
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ? OR name = ? LIMIT 1`, ref, ref)
	tmpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return tmpl, nil
}

// ListTemplates returns all templates ordered by name.
func (s *Store) ListTemplates(ctx context.Context) ([]*Template, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()
	var out []*Template
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, tmpl)
	}
	return out, rows.Err()
}

// DeleteTemplate removes a template by ID.
func (s *Store) DeleteTemplate(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Render fills the template placeholders for c. Stage summaries are the
// completed stage outputs separated by blank lines.
func (t *Template) Render(c *Case) string {
	if t == nil {
		return ""
	}
	var name string
	var summaries []string
	if c != nil {
		name = c.Name
		summaries = c.CompletedOutputs()
	}
	replacer := strings.NewReplacer(
		PlaceholderCaseName, name,
		PlaceholderStageSummaries, strings.Join(summaries, "\n\n"),
	)
	return replacer.Replace(t.Content)
}

func scanTemplate(row scanner) (*Template, error) {
	var (
		tmpl       Template
		createdRaw string
		updatedRaw string
	)
	if err := row.Scan(&tmpl.ID, &tmpl.Name, &tmpl.Content, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		tmpl.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		tmpl.UpdatedAt = updated
	}
	return &tmpl, nil
}
