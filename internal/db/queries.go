package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/warnerco/schematica/internal/errors"
	"github.com/warnerco/schematica/internal/schematic"
)

// schematicColumns is the column list used by all read queries.
const schematicColumns = `id, model, name, component, version, summary, url,
	category, status, tags_json, specs_json, last_verified,
	created_at, updated_at, deleted_at`

// Insert adds a new schematic. Fails with ALREADY_EXISTS on ID conflict.
func Insert(db *sql.DB, s *schematic.Schematic) error {
	tagsJSON, specsJSON, err := marshalJSONFields(s)
	if err != nil {
		return errors.NewInternal(err)
	}

	_, err = db.Exec(`
		INSERT INTO schematics (id, model, name, component, version, summary, url,
			category, status, tags_json, specs_json, last_verified,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Model, s.Name, s.Component, s.Version, s.Summary, toNullString(strOrNil(s.URL)),
		s.Category, string(s.Status), tagsJSON, specsJSON, toNullString(strOrNil(s.LastVerified)),
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewAlreadyExists(s.ID)
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError detects SQLite unique constraint violations.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}

// GetByID retrieves a schematic by ID.
// Returns NOT_FOUND if the schematic doesn't exist or is soft-deleted
// (unless includeDeleted).
func GetByID(db *sql.DB, id string, includeDeleted bool) (*schematic.Schematic, error) {
	query := fmt.Sprintf("SELECT %s FROM schematics WHERE id = ?", schematicColumns)
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}
	return scanSchematic(db.QueryRow(query, id))
}

// UpdateByID updates a schematic's mutable fields.
func UpdateByID(db *sql.DB, s *schematic.Schematic) error {
	tagsJSON, specsJSON, err := marshalJSONFields(s)
	if err != nil {
		return errors.NewInternal(err)
	}

	result, err := db.Exec(`
		UPDATE schematics
		SET model = ?, name = ?, component = ?, version = ?, summary = ?, url = ?,
			category = ?, status = ?, tags_json = ?, specs_json = ?,
			last_verified = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		s.Model, s.Name, s.Component, s.Version, s.Summary, toNullString(strOrNil(s.URL)),
		s.Category, string(s.Status), tagsJSON, specsJSON,
		toNullString(strOrNil(s.LastVerified)), s.UpdatedAt,
		s.ID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rows == 0 {
		return errors.NewNotFound(s.ID)
	}
	return nil
}

// SoftDelete marks a schematic as deleted without removing the row.
func SoftDelete(db *sql.DB, id string, now int64) error {
	result, err := db.Exec(
		"UPDATE schematics SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL",
		now, id,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rows == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// ListFilters are optional filters for List.
type ListFilters struct {
	Category *string
	Model    *string
	Status   *string
}

// List returns schematics ordered by ID, with optional filters and pagination.
func List(db *sql.DB, filters ListFilters, limit, offset int, includeDeleted bool) ([]schematic.Schematic, int, error) {
	where := []string{"1=1"}
	args := []any{}

	if !includeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	if filters.Category != nil {
		where = append(where, "category = ?")
		args = append(args, *filters.Category)
	}
	if filters.Model != nil {
		where = append(where, "model = ?")
		args = append(args, *filters.Model)
	}
	if filters.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *filters.Status)
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM schematics WHERE " + whereClause
	if err := db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	// SQLite treats LIMIT -1 as unlimited.
	if limit <= 0 {
		limit = -1
	}
	query := fmt.Sprintf(
		"SELECT %s FROM schematics WHERE %s ORDER BY id ASC LIMIT ? OFFSET ?",
		schematicColumns, whereClause,
	)
	args = append(args, limit, offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var results []schematic.Schematic
	for rows.Next() {
		s, err := scanSchematicRows(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return results, total, nil
}

// MaxNumericID returns the highest numeric suffix among WRN-xxxxx IDs,
// or 0 if the catalog is empty. Used for ID allocation.
func MaxNumericID(db *sql.DB) (int, error) {
	var maxID sql.NullString
	err := db.QueryRow("SELECT MAX(id) FROM schematics WHERE id LIKE 'WRN-%'").Scan(&maxID)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	if !maxID.Valid {
		return 0, nil
	}

	var n int
	if _, err := fmt.Sscanf(maxID.String, "WRN-%d", &n); err != nil {
		return 0, nil
	}
	return n, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanSchematic(row *sql.Row) (*schematic.Schematic, error) {
	s, err := scanFrom(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("schematic")
	}
	return s, err
}

func scanSchematicRows(rows *sql.Rows) (*schematic.Schematic, error) {
	return scanFrom(rows)
}

func scanFrom(sc scanner) (*schematic.Schematic, error) {
	var s schematic.Schematic
	var status string
	var url, tagsJSON, specsJSON, lastVerified sql.NullString
	var deletedAt sql.NullInt64

	err := sc.Scan(
		&s.ID, &s.Model, &s.Name, &s.Component, &s.Version, &s.Summary, &url,
		&s.Category, &status, &tagsJSON, &specsJSON, &lastVerified,
		&s.CreatedAt, &s.UpdatedAt, &deletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, errors.NewInternal(err)
	}

	s.Status = schematic.Status(status)
	s.URL = url.String
	s.LastVerified = lastVerified.String
	if deletedAt.Valid {
		v := deletedAt.Int64
		s.DeletedAt = &v
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &s.Tags); err != nil {
			return nil, errors.NewInternal(err)
		}
	}
	if specsJSON.Valid && specsJSON.String != "" {
		if err := json.Unmarshal([]byte(specsJSON.String), &s.Specifications); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	return &s, nil
}

// marshalJSONFields serializes tags and specifications for storage.
func marshalJSONFields(s *schematic.Schematic) (tags, specs sql.NullString, err error) {
	if len(s.Tags) > 0 {
		b, err := json.Marshal(s.Tags)
		if err != nil {
			return tags, specs, err
		}
		tags = sql.NullString{String: string(b), Valid: true}
	}
	if len(s.Specifications) > 0 {
		b, err := json.Marshal(s.Specifications)
		if err != nil {
			return tags, specs, err
		}
		specs = sql.NullString{String: string(b), Valid: true}
	}
	return tags, specs, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
