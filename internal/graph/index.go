package graph

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/warnerco/schematica/internal/schematic"
)

// componentKeywords maps summary/component keywords to component entity IDs.
// The indexer and the pipeline's entity recognizer share this table so a
// query mention and an indexed component resolve to the same node.
var componentKeywords = map[string]string{
	"hydraulic":  "component:hydraulic_system",
	"sensor":     "component:sensor_array",
	"motor":      "component:motor_system",
	"battery":    "component:power_system",
	"thermal":    "component:thermal_system",
	"lidar":      "component:lidar_system",
	"camera":     "component:vision_system",
	"wireless":   "component:communication_system",
	"safety":     "component:safety_system",
	"gripper":    "component:manipulation_system",
	"welding":    "component:welding_system",
	"navigation": "component:navigation_system",
}

// ComponentKeywords returns the shared keyword -> component entity table.
func ComponentKeywords() map[string]string {
	return componentKeywords
}

// IndexSummary reports what an indexing run added.
type IndexSummary struct {
	EntitiesAdded      int `json:"entities_added"`
	RelationshipsAdded int `json:"relationships_added"`
	TotalEntities      int `json:"total_entities"`
	TotalRelationships int `json:"total_relationships"`
}

// IndexSchematics auto-extracts entities and relationships from catalog
// records: status, category and model nodes with their edges, component
// nodes inferred from summaries, tag nodes, and compatible_with links
// between schematics of the same model.
func (s *Store) IndexSchematics(ctx context.Context, schematics []schematic.Schematic) (IndexSummary, error) {
	var summary IndexSummary
	seen := make(map[string]bool)

	addEntity := func(e Entity) error {
		if seen[e.ID] {
			return nil
		}
		if err := s.AddEntity(ctx, e); err != nil {
			return err
		}
		seen[e.ID] = true
		summary.EntitiesAdded++
		return nil
	}

	addRel := func(f Fact) error {
		added, err := s.AddRelationship(ctx, f)
		if err != nil {
			return err
		}
		if added {
			summary.RelationshipsAdded++
		}
		return nil
	}

	for i := range schematics {
		sc := &schematics[i]

		if err := addEntity(Entity{
			ID:   sc.ID,
			Type: EntityTypeSchematic,
			Name: fmt.Sprintf("%s - %s: %s", sc.Model, sc.Name, sc.Component),
			Metadata: map[string]any{
				"model":     sc.Model,
				"component": sc.Component,
				"version":   sc.Version,
			},
		}); err != nil {
			return summary, err
		}

		statusID := "status:" + string(sc.Status)
		if err := addEntity(Entity{ID: statusID, Type: EntityTypeStatus, Name: string(sc.Status)}); err != nil {
			return summary, err
		}
		if err := addRel(Fact{Subject: sc.ID, Predicate: PredicateHasStatus, Object: statusID}); err != nil {
			return summary, err
		}

		categoryID := "category:" + sc.Category
		if err := addEntity(Entity{ID: categoryID, Type: EntityTypeCategory, Name: sc.Category}); err != nil {
			return summary, err
		}
		if err := addRel(Fact{Subject: sc.ID, Predicate: PredicateHasCategory, Object: categoryID}); err != nil {
			return summary, err
		}

		if sc.Model != "" {
			modelID := "model:" + sc.Model
			if err := addEntity(Entity{ID: modelID, Type: EntityTypeModel, Name: sc.Model}); err != nil {
				return summary, err
			}
			if err := addRel(Fact{Subject: sc.ID, Predicate: PredicateBelongsToModel, Object: modelID}); err != nil {
				return summary, err
			}
		}

		// Infer component entities from summary and component text
		text := strings.ToLower(sc.Summary + " " + sc.Component)
		for keyword, componentID := range componentKeywords {
			if !strings.Contains(text, keyword) {
				continue
			}
			name := strings.ReplaceAll(strings.TrimPrefix(componentID, "component:"), "_", " ")
			if err := addEntity(Entity{ID: componentID, Type: EntityTypeComponent, Name: name}); err != nil {
				return summary, err
			}
			if err := addRel(Fact{Subject: sc.ID, Predicate: PredicateContains, Object: componentID}); err != nil {
				return summary, err
			}
		}

		for _, tag := range sc.Tags {
			tagID := "tag:" + tag
			if err := addEntity(Entity{ID: tagID, Type: EntityTypeTag, Name: tag}); err != nil {
				return summary, err
			}
			if err := addRel(Fact{Subject: sc.ID, Predicate: PredicateHasTag, Object: tagID}); err != nil {
				return summary, err
			}
		}
	}

	// Second pass: compatibility edges between schematics of the same model
	byModel := make(map[string][]string)
	for i := range schematics {
		if m := schematics[i].Model; m != "" {
			byModel[m] = append(byModel[m], schematics[i].ID)
		}
	}
	for _, ids := range byModel {
		for i, a := range ids {
			for _, b := range ids[i+1:] {
				if err := addRel(Fact{Subject: a, Predicate: PredicateCompatibleWith, Object: b}); err != nil {
					return summary, err
				}
				if err := addRel(Fact{Subject: b, Predicate: PredicateCompatibleWith, Object: a}); err != nil {
					return summary, err
				}
			}
		}
	}

	s.mu.RLock()
	summary.TotalEntities = len(s.nodes)
	s.mu.RUnlock()

	stats, err := s.Stats(ctx)
	if err == nil {
		summary.TotalRelationships = stats.RelationshipCount
	}

	s.log.Info("graph indexing complete",
		zap.Int("entities_added", summary.EntitiesAdded),
		zap.Int("relationships_added", summary.RelationshipsAdded),
	)

	return summary, nil
}
