package graph

import (
	"context"
	"database/sql"
	"testing"

	"github.com/warnerco/schematica/internal/db"
	"github.com/warnerco/schematica/internal/errors"
	"github.com/warnerco/schematica/internal/schematic"
)

func setupStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	s, err := NewStore(database, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s, database
}

func mustRelate(t *testing.T, s *Store, subject, predicate, object string) {
	t.Helper()
	if _, err := s.AddRelationship(context.Background(), Fact{
		Subject: subject, Predicate: predicate, Object: object,
	}); err != nil {
		t.Fatalf("AddRelationship(%s %s %s) error = %v", subject, predicate, object, err)
	}
}

func TestAddRelationship(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	added, err := s.AddRelationship(ctx, Fact{
		Subject: "WRN-00001", Predicate: PredicateDependsOn, Object: "component:power_system",
	})
	if err != nil {
		t.Fatalf("AddRelationship() error = %v", err)
	}
	if !added {
		t.Error("added = false, want true")
	}

	// Duplicate triplet is ignored, not an error
	added, err = s.AddRelationship(ctx, Fact{
		Subject: "WRN-00001", Predicate: PredicateDependsOn, Object: "component:power_system",
	})
	if err != nil {
		t.Fatalf("duplicate AddRelationship() error = %v", err)
	}
	if added {
		t.Error("added = true for duplicate, want false")
	}

	if !s.Exists("WRN-00001") || !s.Exists("component:power_system") {
		t.Error("relationship endpoints not registered as nodes")
	}
}

func TestAddRelationship_InvalidPredicate(t *testing.T) {
	s, _ := setupStore(t)

	_, err := s.AddRelationship(context.Background(), Fact{
		Subject: "WRN-00001", Predicate: "admires", Object: "WRN-00002",
	})
	if !errors.Is(err, errors.ErrInvalidPredicate) {
		t.Fatalf("error = %v, want INVALID_PREDICATE", err)
	}
}

func TestNeighbors_Directions(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	mustRelate(t, s, "WRN-00001", PredicateDependsOn, "component:power_system")
	mustRelate(t, s, "WRN-00002", PredicateDependsOn, "component:power_system")
	mustRelate(t, s, "component:power_system", PredicateRelatedTo, "component:thermal_system")

	incoming, err := s.Neighbors(ctx, "component:power_system", DirectionIncoming, 10)
	if err != nil {
		t.Fatalf("Neighbors(incoming) error = %v", err)
	}
	if len(incoming) != 2 {
		t.Fatalf("incoming = %d facts, want 2", len(incoming))
	}
	// Sorted by subject for deterministic output
	if incoming[0].Subject != "WRN-00001" || incoming[1].Subject != "WRN-00002" {
		t.Errorf("incoming order = %v", incoming)
	}

	outgoing, err := s.Neighbors(ctx, "component:power_system", DirectionOutgoing, 10)
	if err != nil {
		t.Fatalf("Neighbors(outgoing) error = %v", err)
	}
	if len(outgoing) != 1 || outgoing[0].Object != "component:thermal_system" {
		t.Errorf("outgoing = %v, want single related_to fact", outgoing)
	}

	both, err := s.Neighbors(ctx, "component:power_system", DirectionBoth, 10)
	if err != nil {
		t.Fatalf("Neighbors(both) error = %v", err)
	}
	if len(both) != 3 {
		t.Errorf("both = %d facts, want 3", len(both))
	}
}

func TestNeighbors_Limit(t *testing.T) {
	s, _ := setupStore(t)

	mustRelate(t, s, "WRN-00001", PredicateDependsOn, "component:power_system")
	mustRelate(t, s, "WRN-00002", PredicateDependsOn, "component:power_system")
	mustRelate(t, s, "WRN-00003", PredicateDependsOn, "component:power_system")

	facts, err := s.Neighbors(context.Background(), "component:power_system", DirectionBoth, 2)
	if err != nil {
		t.Fatalf("Neighbors() error = %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("len = %d, want 2", len(facts))
	}
}

func TestNeighbors_UnknownEntity(t *testing.T) {
	s, _ := setupStore(t)

	facts, err := s.Neighbors(context.Background(), "component:ghost", DirectionBoth, 10)
	if err != nil {
		t.Fatalf("Neighbors() error = %v", err)
	}
	if len(facts) != 0 {
		t.Fatalf("facts = %v, want none", facts)
	}
}

func TestShortestPath(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	// WRN-00001 -> power_system <- WRN-00002; traversal is undirected
	mustRelate(t, s, "WRN-00001", PredicateDependsOn, "component:power_system")
	mustRelate(t, s, "WRN-00002", PredicateDependsOn, "component:power_system")

	result, err := s.ShortestPath(ctx, "WRN-00001", "WRN-00002", 5)
	if err != nil {
		t.Fatalf("ShortestPath() error = %v", err)
	}
	if !result.Found {
		t.Fatal("Found = false, want true")
	}
	want := []string{"WRN-00001", "component:power_system", "WRN-00002"}
	if len(result.Path) != len(want) {
		t.Fatalf("Path = %v, want %v", result.Path, want)
	}
	for i := range want {
		if result.Path[i] != want[i] {
			t.Fatalf("Path = %v, want %v", result.Path, want)
		}
	}
	if len(result.Facts) != 2 {
		t.Errorf("Facts = %v, want 2 connecting facts", result.Facts)
	}
}

func TestShortestPath_NotFound(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	mustRelate(t, s, "WRN-00001", PredicateDependsOn, "component:power_system")
	mustRelate(t, s, "WRN-00002", PredicateDependsOn, "component:thermal_system")

	result, err := s.ShortestPath(ctx, "WRN-00001", "WRN-00002", 5)
	if err != nil {
		t.Fatalf("ShortestPath() error = %v", err)
	}
	if result.Found {
		t.Errorf("Found = true for disconnected entities, want false")
	}
}

func TestShortestPath_HopBound(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	// Chain of length 3: a -> b -> c -> d
	mustRelate(t, s, "a", PredicateRelatedTo, "b")
	mustRelate(t, s, "b", PredicateRelatedTo, "c")
	mustRelate(t, s, "c", PredicateRelatedTo, "d")

	result, err := s.ShortestPath(ctx, "a", "d", 2)
	if err != nil {
		t.Fatalf("ShortestPath() error = %v", err)
	}
	if result.Found {
		t.Error("Found = true within 2 hops, want false")
	}

	result, err = s.ShortestPath(ctx, "a", "d", 3)
	if err != nil {
		t.Fatalf("ShortestPath() error = %v", err)
	}
	if !result.Found {
		t.Error("Found = false within 3 hops, want true")
	}
}

func TestShortestPath_SameEntity(t *testing.T) {
	s, _ := setupStore(t)

	mustRelate(t, s, "WRN-00001", PredicateDependsOn, "component:power_system")

	result, err := s.ShortestPath(context.Background(), "WRN-00001", "WRN-00001", 5)
	if err != nil {
		t.Fatalf("ShortestPath() error = %v", err)
	}
	if !result.Found || len(result.Path) != 1 {
		t.Errorf("result = %+v, want single-node path", result)
	}
}

func TestStore_ReloadFromDisk(t *testing.T) {
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init() error = %v", err)
	}
	defer database.Close()

	s1, err := NewStore(database, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	mustRelate(t, s1, "WRN-00001", PredicateDependsOn, "component:power_system")

	// A fresh store over the same database sees the persisted triplet
	s2, err := NewStore(database, nil)
	if err != nil {
		t.Fatalf("second NewStore() error = %v", err)
	}
	facts, err := s2.Neighbors(context.Background(), "WRN-00001", DirectionOutgoing, 10)
	if err != nil {
		t.Fatalf("Neighbors() error = %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("facts = %v, want the persisted relationship", facts)
	}
}

func TestStats(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	if err := s.AddEntity(ctx, Entity{ID: "WRN-00001", Type: EntityTypeSchematic, Name: "actuator"}); err != nil {
		t.Fatalf("AddEntity() error = %v", err)
	}
	if err := s.AddEntity(ctx, Entity{ID: "component:power_system", Type: EntityTypeComponent, Name: "power system"}); err != nil {
		t.Fatalf("AddEntity() error = %v", err)
	}
	mustRelate(t, s, "WRN-00001", PredicateDependsOn, "component:power_system")

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.EntityCount != 2 {
		t.Errorf("EntityCount = %d, want 2", stats.EntityCount)
	}
	if stats.RelationshipCount != 1 {
		t.Errorf("RelationshipCount = %d, want 1", stats.RelationshipCount)
	}
	if stats.EntityTypes[EntityTypeComponent] != 1 {
		t.Errorf("EntityTypes = %v", stats.EntityTypes)
	}
	if stats.PredicateCounts[PredicateDependsOn] != 1 {
		t.Errorf("PredicateCounts = %v", stats.PredicateCounts)
	}
}

func TestSearchEntities(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	if err := s.AddEntity(ctx, Entity{ID: "component:power_system", Type: EntityTypeComponent, Name: "power system"}); err != nil {
		t.Fatalf("AddEntity() error = %v", err)
	}
	if err := s.AddEntity(ctx, Entity{ID: "component:thermal_system", Type: EntityTypeComponent, Name: "thermal system"}); err != nil {
		t.Fatalf("AddEntity() error = %v", err)
	}

	results, err := s.SearchEntities(ctx, "power")
	if err != nil {
		t.Fatalf("SearchEntities() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != "component:power_system" {
		t.Fatalf("results = %v, want the power system entity", results)
	}
}

func TestGetEntity(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	if err := s.AddEntity(ctx, Entity{
		ID: "model:WC-0220", Type: EntityTypeModel, Name: "WC-0220",
		Metadata: map[string]any{"series": "industrial"},
	}); err != nil {
		t.Fatalf("AddEntity() error = %v", err)
	}

	e, err := s.GetEntity(ctx, "model:WC-0220")
	if err != nil {
		t.Fatalf("GetEntity() error = %v", err)
	}
	if e.Name != "WC-0220" || e.Metadata["series"] != "industrial" {
		t.Errorf("entity = %+v", e)
	}

	if _, err := s.GetEntity(ctx, "model:ghost"); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("GetEntity(missing) error = %v, want NOT_FOUND", err)
	}
}

func TestIndexSchematics(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	schematics := []schematic.Schematic{
		{
			ID: "WRN-00001", Model: "WC-0220", Name: "Atlas",
			Component: "hydraulic actuator", Category: "mobility",
			Status: schematic.StatusActive,
			Summary: "Hydraulic lift actuator with battery backup",
			Tags:    []string{"hydraulic"},
		},
		{
			ID: "WRN-00002", Model: "WC-0220", Name: "Atlas",
			Component: "battery module", Category: "power",
			Status:  schematic.StatusActive,
			Summary: "Main battery module",
		},
	}

	summary, err := s.IndexSchematics(ctx, schematics)
	if err != nil {
		t.Fatalf("IndexSchematics() error = %v", err)
	}
	if summary.EntitiesAdded == 0 || summary.RelationshipsAdded == 0 {
		t.Fatalf("summary = %+v, want entities and relationships added", summary)
	}

	// Summary keyword "hydraulic" produced a component node and edge
	facts, err := s.Neighbors(ctx, "component:hydraulic_system", DirectionIncoming, 10)
	if err != nil {
		t.Fatalf("Neighbors() error = %v", err)
	}
	if len(facts) != 1 || facts[0].Subject != "WRN-00001" {
		t.Errorf("hydraulic facts = %v", facts)
	}

	// Both schematics mention "battery" -> shared power_system node
	facts, err = s.Neighbors(ctx, "component:power_system", DirectionIncoming, 10)
	if err != nil {
		t.Fatalf("Neighbors() error = %v", err)
	}
	if len(facts) != 2 {
		t.Errorf("power facts = %v, want 2", facts)
	}

	// Same-model schematics get symmetric compatibility edges
	result, err := s.ShortestPath(ctx, "WRN-00001", "WRN-00002", 1)
	if err != nil {
		t.Fatalf("ShortestPath() error = %v", err)
	}
	if !result.Found {
		t.Error("compatible_with edge missing between same-model schematics")
	}

	// Indexing again adds nothing new
	again, err := s.IndexSchematics(ctx, schematics)
	if err != nil {
		t.Fatalf("second IndexSchematics() error = %v", err)
	}
	if again.RelationshipsAdded != 0 {
		t.Errorf("RelationshipsAdded = %d on reindex, want 0", again.RelationshipsAdded)
	}
}
