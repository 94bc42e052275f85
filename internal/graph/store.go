package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warnerco/schematica/internal/errors"
)

// edge is one directed edge in the in-memory mirror.
type edge struct {
	peer      string // the entity on the other end
	predicate string
}

// Store is the SQLite-backed triplet store with an in-memory adjacency
// mirror for traversal. SQLite provides persistence; the mirror answers
// neighbor and path queries without touching disk.
//
// The mirror is guarded by an RWMutex: overlapping pipeline requests only
// ever take read locks, writers (AddEntity/AddRelationship) take the write
// lock.
type Store struct {
	db  *sql.DB
	log *zap.Logger

	mu       sync.RWMutex
	nodes    map[string]bool
	outgoing map[string][]edge // subject -> edges to objects
	incoming map[string][]edge // object -> edges from subjects
}

// NewStore creates a graph store over the given database handle and loads
// the persisted triplets into the in-memory mirror.
func NewStore(db *sql.DB, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		db:       db,
		log:      log,
		nodes:    make(map[string]bool),
		outgoing: make(map[string][]edge),
		incoming: make(map[string][]edge),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load populates the adjacency mirror from SQLite.
func (s *Store) load() error {
	rows, err := s.db.Query("SELECT id FROM entities")
	if err != nil {
		return errors.NewInternal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return errors.NewInternal(err)
		}
		s.nodes[id] = true
	}
	if err := rows.Err(); err != nil {
		return errors.NewInternal(err)
	}

	trows, err := s.db.Query("SELECT subject, predicate, object FROM triplets")
	if err != nil {
		return errors.NewInternal(err)
	}
	defer trows.Close()
	for trows.Next() {
		var subject, predicate, object string
		if err := trows.Scan(&subject, &predicate, &object); err != nil {
			return errors.NewInternal(err)
		}
		s.addEdgeLocked(subject, predicate, object)
	}
	return trows.Err()
}

// addEdgeLocked updates the mirror. Caller must hold the write lock
// (or be in single-threaded initialization).
func (s *Store) addEdgeLocked(subject, predicate, object string) {
	s.nodes[subject] = true
	s.nodes[object] = true
	s.outgoing[subject] = append(s.outgoing[subject], edge{peer: object, predicate: predicate})
	s.incoming[object] = append(s.incoming[object], edge{peer: subject, predicate: predicate})
}

// AddEntity inserts or replaces an entity node.
func (s *Store) AddEntity(ctx context.Context, e Entity) error {
	var metadataJSON sql.NullString
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return errors.NewInternal(err)
		}
		metadataJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO entities (id, entity_type, name, metadata_json) VALUES (?, ?, ?, ?)",
		e.ID, e.Type, e.Name, metadataJSON,
	)
	if err != nil {
		return errors.NewStoreUnavailable("graph", err)
	}

	s.mu.Lock()
	s.nodes[e.ID] = true
	s.mu.Unlock()
	return nil
}

// AddRelationship inserts a triplet. Duplicate triplets are ignored.
// Returns false if the triplet already existed.
func (s *Store) AddRelationship(ctx context.Context, f Fact) (bool, error) {
	if !ValidPredicate(f.Predicate) {
		return false, errors.NewInvalidPredicate(f.Predicate, ValidPredicates)
	}

	var metadataJSON sql.NullString
	if len(f.Metadata) > 0 {
		b, err := json.Marshal(f.Metadata)
		if err != nil {
			return false, errors.NewInternal(err)
		}
		metadataJSON = sql.NullString{String: string(b), Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO triplets (subject, predicate, object, metadata_json, created_at) VALUES (?, ?, ?, ?, ?)",
		f.Subject, f.Predicate, f.Object, metadataJSON, time.Now().Unix(),
	)
	if err != nil {
		return false, errors.NewStoreUnavailable("graph", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	if rows == 0 {
		return false, nil
	}

	s.mu.Lock()
	s.addEdgeLocked(f.Subject, f.Predicate, f.Object)
	s.mu.Unlock()
	return true, nil
}

// GetEntity returns the entity with the given ID, or NOT_FOUND.
func (s *Store) GetEntity(ctx context.Context, id string) (*Entity, error) {
	var e Entity
	var metadataJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, entity_type, name, metadata_json FROM entities WHERE id = ?", id,
	).Scan(&e.ID, &e.Type, &e.Name, &metadataJSON)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewStoreUnavailable("graph", err)
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &e.Metadata); err != nil {
			return nil, errors.NewInternal(err)
		}
	}
	return &e, nil
}

// Exists reports whether an entity node is present in the graph.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[id]
}

// Related returns facts where the given entity is the subject
// (outgoing relationships), optionally filtered by predicate.
func (s *Store) Related(ctx context.Context, subject, predicate string) ([]Fact, error) {
	return s.queryFacts(ctx, "subject", subject, predicate)
}

// Subjects returns facts where the given entity is the object
// (incoming relationships), optionally filtered by predicate.
func (s *Store) Subjects(ctx context.Context, object, predicate string) ([]Fact, error) {
	return s.queryFacts(ctx, "object", object, predicate)
}

func (s *Store) queryFacts(ctx context.Context, column, id, predicate string) ([]Fact, error) {
	query := "SELECT subject, predicate, object, metadata_json FROM triplets WHERE " + column + " = ?"
	args := []any{id}
	if predicate != "" {
		query += " AND predicate = ?"
		args = append(args, predicate)
	}
	query += " ORDER BY subject, predicate, object"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStoreUnavailable("graph", err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		var metadataJSON sql.NullString
		if err := rows.Scan(&f.Subject, &f.Predicate, &f.Object, &metadataJSON); err != nil {
			return nil, errors.NewInternal(err)
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &f.Metadata); err != nil {
				return nil, errors.NewInternal(err)
			}
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// Neighbors returns up to limit facts touching the given entity, following
// edges in the requested direction. Results are sorted (subject, predicate,
// object) so repeated calls are deterministic.
func (s *Store) Neighbors(ctx context.Context, entityID string, direction Direction, limit int) ([]Fact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var facts []Fact
	if direction == DirectionOutgoing || direction == DirectionBoth {
		for _, e := range s.outgoing[entityID] {
			facts = append(facts, Fact{Subject: entityID, Predicate: e.predicate, Object: e.peer})
		}
	}
	if direction == DirectionIncoming || direction == DirectionBoth {
		for _, e := range s.incoming[entityID] {
			facts = append(facts, Fact{Subject: e.peer, Predicate: e.predicate, Object: entityID})
		}
	}
	s.mu.RUnlock()

	sort.Slice(facts, func(i, j int) bool {
		if facts[i].Subject != facts[j].Subject {
			return facts[i].Subject < facts[j].Subject
		}
		if facts[i].Predicate != facts[j].Predicate {
			return facts[i].Predicate < facts[j].Predicate
		}
		return facts[i].Object < facts[j].Object
	})

	if limit > 0 && len(facts) > limit {
		facts = facts[:limit]
	}
	return facts, nil
}

// ShortestPath finds the shortest undirected path between two entities using
// BFS, bounded by maxHops. A missing path within the hop bound yields
// Found=false, never an error.
func (s *Store) ShortestPath(ctx context.Context, source, target string, maxHops int) (PathResult, error) {
	if err := ctx.Err(); err != nil {
		return PathResult{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.nodes[source] || !s.nodes[target] {
		return PathResult{Found: false}, nil
	}
	if source == target {
		return PathResult{Found: true, Path: []string{source}}, nil
	}

	// BFS over the undirected view, tracking predecessors for path rebuild.
	prev := map[string]string{}
	hops := map[string]int{source: 0}
	queue := []string{source}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if hops[cur] >= maxHops {
			continue
		}

		for _, next := range s.undirectedPeersLocked(cur) {
			if _, visited := hops[next.peer]; visited {
				continue
			}
			prev[next.peer] = cur
			hops[next.peer] = hops[cur] + 1
			if next.peer == target {
				path := rebuildPath(prev, source, target)
				return PathResult{Found: true, Path: path, Facts: s.pathFactsLocked(path)}, nil
			}
			queue = append(queue, next.peer)
		}
	}

	return PathResult{Found: false}, nil
}

// undirectedPeersLocked returns all edges of a node regardless of direction,
// in sorted order for deterministic traversal. Caller holds the read lock.
func (s *Store) undirectedPeersLocked(id string) []edge {
	peers := make([]edge, 0, len(s.outgoing[id])+len(s.incoming[id]))
	peers = append(peers, s.outgoing[id]...)
	peers = append(peers, s.incoming[id]...)
	sort.Slice(peers, func(i, j int) bool { return peers[i].peer < peers[j].peer })
	return peers
}

// rebuildPath walks the predecessor map back from target to source.
func rebuildPath(prev map[string]string, source, target string) []string {
	path := []string{target}
	for cur := target; cur != source; {
		cur = prev[cur]
		path = append(path, cur)
	}
	// Reverse into source -> target order
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// pathFactsLocked resolves each consecutive pair in the path to the fact
// connecting them, trying the forward direction first. Caller holds the
// read lock.
func (s *Store) pathFactsLocked(path []string) []Fact {
	var facts []Fact
	for i := 0; i+1 < len(path); i++ {
		from, to := path[i], path[i+1]
		found := false
		for _, e := range s.outgoing[from] {
			if e.peer == to {
				facts = append(facts, Fact{Subject: from, Predicate: e.predicate, Object: to})
				found = true
				break
			}
		}
		if found {
			continue
		}
		for _, e := range s.incoming[from] {
			if e.peer == to {
				facts = append(facts, Fact{Subject: to, Predicate: e.predicate, Object: from})
				break
			}
		}
	}
	return facts
}

// Stats returns entity and relationship counts grouped by type/predicate.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		EntityTypes:     make(map[string]int),
		PredicateCounts: make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, "SELECT entity_type, COUNT(*) FROM entities GROUP BY entity_type")
	if err != nil {
		return stats, errors.NewStoreUnavailable("graph", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return stats, errors.NewInternal(err)
		}
		stats.EntityTypes[t] = n
		stats.EntityCount += n
	}
	if err := rows.Err(); err != nil {
		return stats, errors.NewInternal(err)
	}

	prows, err := s.db.QueryContext(ctx, "SELECT predicate, COUNT(*) FROM triplets GROUP BY predicate")
	if err != nil {
		return stats, errors.NewStoreUnavailable("graph", err)
	}
	defer prows.Close()
	for prows.Next() {
		var p string
		var n int
		if err := prows.Scan(&p, &n); err != nil {
			return stats, errors.NewInternal(err)
		}
		stats.PredicateCounts[p] = n
		stats.RelationshipCount += n
	}
	return stats, prows.Err()
}

// SearchEntities returns entities whose ID or name contains the query
// (case-insensitive LIKE match), sorted by ID.
func (s *Store) SearchEntities(ctx context.Context, query string) ([]Entity, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, entity_type, name, metadata_json FROM entities WHERE id LIKE ? OR name LIKE ? ORDER BY id",
		pattern, pattern,
	)
	if err != nil {
		return nil, errors.NewStoreUnavailable("graph", err)
	}
	defer rows.Close()

	var results []Entity
	for rows.Next() {
		var e Entity
		var metadataJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.Type, &e.Name, &metadataJSON); err != nil {
			return nil, errors.NewInternal(err)
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &e.Metadata); err != nil {
				return nil, errors.NewInternal(err)
			}
		}
		results = append(results, e)
	}
	return results, rows.Err()
}
