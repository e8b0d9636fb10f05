package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	domain "github.com/dukhanin/contract-advisor/internal/domain/documents"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Save inserts an analysis record
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.AnalysisRecord) error {
	const q = `
INSERT INTO document_analyses
  (id, user_id, filename, content_hash, result_json, created_at)
VALUES (?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  user_id=VALUES(user_id), filename=VALUES(filename), content_hash=VALUES(content_hash), result_json=VALUES(result_json);
`
	// Ensure non-nullable fields have safe defaults
	user := stringOrDash(a.UserID)
	filename := stringOrDash(a.Filename)
	result := a.ResultJSON
	if strings.TrimSpace(result) == "" {
		// result_json column requires valid JSON; use empty object
		result = "{}"
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, q, a.ID, user, filename, a.ContentHash, result, createdAt)
	return err
}

// Paginate returns a page of analysis records ordered by created_at desc
func (r *AnalysisRepository) Paginate(ctx context.Context, userID string, page, pageSize int) ([]*domain.AnalysisRecord, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, user_id, filename, content_hash, result_json, created_at
FROM document_analyses
WHERE user_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, userID, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AnalysisRecord
	for rows.Next() {
		var a domain.AnalysisRecord
		var created time.Time
		if err := rows.Scan(&a.ID, &a.UserID, &a.Filename, &a.ContentHash, &a.ResultJSON, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = created
		out = append(out, &a)
	}
	return out, rows.Err()
}

// LatestByHash returns the newest analysis stored for a content hash, or nil
func (r *AnalysisRepository) LatestByHash(ctx context.Context, contentHash string) (*domain.AnalysisRecord, error) {
	const q = `
SELECT id, user_id, filename, content_hash, result_json, created_at
FROM document_analyses
WHERE content_hash=?
ORDER BY created_at DESC, id DESC
LIMIT 1;`
	row := r.db.QueryRowContext(ctx, q, contentHash)
	var a domain.AnalysisRecord
	var created time.Time
	if err := row.Scan(&a.ID, &a.UserID, &a.Filename, &a.ContentHash, &a.ResultJSON, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	a.CreatedAt = created
	return &a, nil
}
