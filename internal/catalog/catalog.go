// Package catalog implements CRUD operations over the schematic catalog.
// The SQLite table is the source of truth; the in-memory retrieval index
// is kept in sync on every write so searches see changes immediately.
package catalog

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/warnerco/schematica/internal/db"
	"github.com/warnerco/schematica/internal/errors"
	"github.com/warnerco/schematica/internal/index"
	"github.com/warnerco/schematica/internal/schematic"
)

// maxNumericID is the largest allocatable catalog number under the
// WRN-%05d format.
const maxNumericID = 99999

// Catalog owns the schematic table and mirrors every record into the
// retrieval index.
type Catalog struct {
	db  *sql.DB
	idx *index.Memory
	log *zap.Logger
	now func() time.Time
}

// New creates a catalog over an initialized database and index.
func New(database *sql.DB, idx *index.Memory, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{db: database, idx: idx, log: log, now: time.Now}
}

// Index returns the retrieval index backing this catalog.
func (c *Catalog) Index() *index.Memory {
	return c.idx
}

// LoadIndex mirrors all live records into the retrieval index. Called
// once at startup.
func (c *Catalog) LoadIndex() (int, error) {
	all, _, err := db.List(c.db, db.ListFilters{}, 0, 0, false)
	if err != nil {
		return 0, err
	}
	for _, s := range all {
		c.idx.Put(s)
	}
	return len(all), nil
}

// CreateInput holds the caller-supplied fields for a new schematic.
type CreateInput struct {
	ID             string         `json:"id,omitempty"`
	Model          string         `json:"model"`
	Name           string         `json:"name"`
	Component      string         `json:"component"`
	Version        string         `json:"version,omitempty"`
	Summary        string         `json:"summary"`
	URL            string         `json:"url,omitempty"`
	Category       string         `json:"category"`
	Status         string         `json:"status,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Specifications map[string]any `json:"specifications,omitempty"`
	LastVerified   string         `json:"last_verified,omitempty"`
}

// Create validates the input, allocates an ID when none is given, and
// persists the record.
func (c *Catalog) Create(input CreateInput) (*schematic.Schematic, error) {
	if strings.TrimSpace(input.Model) == "" {
		return nil, errors.NewInvalidRequest("model is required")
	}
	if strings.TrimSpace(input.Component) == "" {
		return nil, errors.NewInvalidRequest("component is required")
	}
	if !schematic.ValidCategory(input.Category) {
		return nil, errors.NewInvalidCategory(input.Category, schematic.ValidCategories)
	}

	status := input.Status
	if status == "" {
		status = string(schematic.StatusActive)
	}
	if !schematic.ValidStatus(status) {
		return nil, errors.NewInvalidStatus(status, statusNames())
	}

	id := strings.ToUpper(strings.TrimSpace(input.ID))
	if id == "" {
		next, err := c.nextID()
		if err != nil {
			return nil, err
		}
		id = next
	} else if !schematic.IDPattern.MatchString(id) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("id %q does not match the WRN-##### format", id))
	}

	now := c.now().Unix()
	s := &schematic.Schematic{
		ID:             id,
		Model:          strings.ToUpper(strings.TrimSpace(input.Model)),
		Name:           strings.TrimSpace(input.Name),
		Component:      strings.TrimSpace(input.Component),
		Version:        input.Version,
		Summary:        strings.TrimSpace(input.Summary),
		URL:            input.URL,
		Category:       input.Category,
		Status:         schematic.Status(status),
		Tags:           input.Tags,
		Specifications: input.Specifications,
		LastVerified:   input.LastVerified,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := db.Insert(c.db, s); err != nil {
		return nil, err
	}
	c.idx.Put(*s)
	c.log.Info("schematic created", zap.String("id", s.ID), zap.String("model", s.Model))
	return s, nil
}

// Get returns a live schematic by ID.
func (c *Catalog) Get(id string) (*schematic.Schematic, error) {
	return db.GetByID(c.db, normalizeID(id), false)
}

// UpdateInput holds the mutable fields of a schematic. Nil pointers mean
// "leave unchanged".
type UpdateInput struct {
	Name           *string        `json:"name,omitempty"`
	Component      *string        `json:"component,omitempty"`
	Version        *string        `json:"version,omitempty"`
	Summary        *string        `json:"summary,omitempty"`
	URL            *string        `json:"url,omitempty"`
	Category       *string        `json:"category,omitempty"`
	Status         *string        `json:"status,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Specifications map[string]any `json:"specifications,omitempty"`
	LastVerified   *string        `json:"last_verified,omitempty"`
}

// Update applies a partial update to an existing schematic.
func (c *Catalog) Update(id string, input UpdateInput) (*schematic.Schematic, error) {
	s, err := db.GetByID(c.db, normalizeID(id), false)
	if err != nil {
		return nil, err
	}

	if input.Category != nil {
		if !schematic.ValidCategory(*input.Category) {
			return nil, errors.NewInvalidCategory(*input.Category, schematic.ValidCategories)
		}
		s.Category = *input.Category
	}
	if input.Status != nil {
		if !schematic.ValidStatus(*input.Status) {
			return nil, errors.NewInvalidStatus(*input.Status, statusNames())
		}
		s.Status = schematic.Status(*input.Status)
	}
	if input.Name != nil {
		s.Name = strings.TrimSpace(*input.Name)
	}
	if input.Component != nil {
		s.Component = strings.TrimSpace(*input.Component)
	}
	if input.Version != nil {
		s.Version = *input.Version
	}
	if input.Summary != nil {
		s.Summary = strings.TrimSpace(*input.Summary)
	}
	if input.URL != nil {
		s.URL = *input.URL
	}
	if input.Tags != nil {
		s.Tags = input.Tags
	}
	if input.Specifications != nil {
		s.Specifications = input.Specifications
	}
	if input.LastVerified != nil {
		s.LastVerified = *input.LastVerified
	}
	s.UpdatedAt = c.now().Unix()

	if err := db.UpdateByID(c.db, s); err != nil {
		return nil, err
	}
	c.idx.Put(*s)
	c.log.Info("schematic updated", zap.String("id", s.ID))
	return s, nil
}

// Delete soft-deletes a schematic and drops it from the index.
func (c *Catalog) Delete(id string) error {
	nid := normalizeID(id)
	if err := db.SoftDelete(c.db, nid, c.now().Unix()); err != nil {
		return err
	}
	c.idx.Delete(nid)
	c.log.Info("schematic deleted", zap.String("id", nid))
	return nil
}

// ListInput holds filters and pagination for List.
type ListInput struct {
	Category string `json:"category,omitempty"`
	Model    string `json:"model,omitempty"`
	Status   string `json:"status,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// ListResult is a page of schematics plus the unpaginated total.
type ListResult struct {
	Schematics []schematic.Schematic `json:"schematics"`
	Total      int                   `json:"total"`
}

// List returns live schematics matching the filters, ordered by ID.
func (c *Catalog) List(input ListInput) (*ListResult, error) {
	filters := db.ListFilters{
		Category: strOrNil(input.Category),
		Model:    strOrNil(strings.ToUpper(input.Model)),
		Status:   strOrNil(input.Status),
	}
	items, total, err := db.List(c.db, filters, input.Limit, input.Offset, false)
	if err != nil {
		return nil, err
	}
	return &ListResult{Schematics: items, Total: total}, nil
}

// All returns every live schematic, used by graph indexing.
func (c *Catalog) All() ([]schematic.Schematic, error) {
	items, _, err := db.List(c.db, db.ListFilters{}, 0, 0, false)
	return items, err
}

func (c *Catalog) nextID() (string, error) {
	max, err := db.MaxNumericID(c.db)
	if err != nil {
		return "", err
	}
	if max >= maxNumericID {
		return "", errors.NewIDExhausted()
	}
	return fmt.Sprintf("WRN-%05d", max+1), nil
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func statusNames() []string {
	names := make([]string, 0, len(schematic.ValidStatuses))
	for _, s := range schematic.ValidStatuses {
		names = append(names, string(s))
	}
	return names
}

func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
