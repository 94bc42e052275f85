package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/warnerco/schematica/internal/catalog"
	"github.com/warnerco/schematica/internal/errors"
	"github.com/warnerco/schematica/internal/graph"
	"github.com/warnerco/schematica/internal/index"
	"github.com/warnerco/schematica/internal/scratchpad"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(a *app) *cli.App {
	cliApp := &cli.App{
		Name:    "schematica",
		Usage:   "WARNERCO robot schematic retrieval",
		Version: Version,
		Commands: []*cli.Command{
			queryCmd(a),
			searchCmd(a),
			getCmd(a),
			listCmd(a),
			createCmd(a),
			updateCmd(a),
			deleteCmd(a),
			relateCmd(a),
			neighborsCmd(a),
			pathCmd(a),
			indexCmd(a),
			scratchpadCmd(a),
			statsCmd(a),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// queryCmd runs the full retrieval pipeline.
func queryCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Answer a question using the full retrieval pipeline",
		ArgsUsage: "<question>",
		Action: func(c *cli.Context) error {
			question := strings.Join(c.Args().Slice(), " ")
			result, err := a.pipe.Run(context.Background(), question)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

// searchCmd searches the retrieval index.
func searchCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the schematic catalog by keyword relevance",
		ArgsUsage: "<terms>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Filter by category"},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Filter by robot model"},
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Filter by status"},
			&cli.IntFlag{Name: "top-k", Aliases: []string{"k"}, Usage: "Maximum results (default from config)"},
		},
		Action: func(c *cli.Context) error {
			topK := c.Int("top-k")
			if topK <= 0 {
				topK = a.cfg.RetrievalTopK
			}
			candidates, err := a.catalog.Index().Search(
				context.Background(),
				strings.Join(c.Args().Slice(), " "),
				index.Filters{
					Category: c.String("category"),
					Model:    strings.ToUpper(c.String("model")),
					Status:   c.String("status"),
				},
				topK,
			)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"candidates": candidates, "count": len(candidates)})
		},
	}
}

// getCmd fetches a schematic by ID.
func getCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Fetch a schematic by catalog ID",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("id is required"))
			}
			s, err := a.catalog.Get(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(s)
		},
	}
}

// listCmd lists schematics.
func listCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List schematics with optional filters",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Filter by category"},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Filter by robot model"},
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Filter by status"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			result, err := a.catalog.List(catalog.ListInput{
				Category: c.String("category"),
				Model:    c.String("model"),
				Status:   c.String("status"),
				Limit:    c.Int("limit"),
				Offset:   c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

// createCmd adds a schematic to the catalog.
func createCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Add a schematic to the catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Required: true, Usage: "Robot model identifier"},
			&cli.StringFlag{Name: "component", Required: true, Usage: "Component this schematic documents"},
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Required: true, Usage: "Component category"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Robot name"},
			&cli.StringFlag{Name: "summary", Usage: "Technical description"},
			&cli.StringFlag{Name: "id", Usage: "Explicit catalog ID (WRN-#####)"},
			&cli.StringFlag{Name: "version", Usage: "Component revision"},
			&cli.StringFlag{Name: "url", Usage: "Schematic document link"},
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "active|deprecated|draft"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
		},
		Action: func(c *cli.Context) error {
			s, err := a.catalog.Create(catalog.CreateInput{
				ID:        c.String("id"),
				Model:     c.String("model"),
				Name:      c.String("name"),
				Component: c.String("component"),
				Version:   c.String("version"),
				Summary:   c.String("summary"),
				URL:       c.String("url"),
				Category:  c.String("category"),
				Status:    c.String("status"),
				Tags:      parseTags(c.String("tags")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(s)
		},
	}
}

// updateCmd applies a partial update.
func updateCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update fields of an existing schematic",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "New robot name"},
			&cli.StringFlag{Name: "component", Usage: "New component description"},
			&cli.StringFlag{Name: "version", Usage: "New revision"},
			&cli.StringFlag{Name: "summary", Usage: "New technical summary"},
			&cli.StringFlag{Name: "url", Usage: "New document link"},
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "New category"},
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "New status"},
			&cli.StringFlag{Name: "tags", Usage: "Replacement comma-separated tags"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("id is required"))
			}

			input := catalog.UpdateInput{}
			setIf(c, "name", &input.Name)
			setIf(c, "component", &input.Component)
			setIf(c, "version", &input.Version)
			setIf(c, "summary", &input.Summary)
			setIf(c, "url", &input.URL)
			setIf(c, "category", &input.Category)
			setIf(c, "status", &input.Status)
			if c.IsSet("tags") {
				input.Tags = parseTags(c.String("tags"))
			}

			s, err := a.catalog.Update(c.Args().First(), input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(s)
		},
	}
}

// deleteCmd soft-deletes a schematic.
func deleteCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Soft-delete a schematic",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("id is required"))
			}
			id := c.Args().First()
			if err := a.catalog.Delete(id); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"deleted": strings.ToUpper(id)})
		},
	}
}

// relateCmd adds a graph relationship.
func relateCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "relate",
		Usage:     "Add a relationship triplet to the knowledge graph",
		ArgsUsage: "<subject> <predicate> <object>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 3 {
				return outputError(errors.NewInvalidRequest("usage: relate <subject> <predicate> <object>"))
			}
			args := c.Args().Slice()
			added, err := a.graph.AddRelationship(context.Background(), graph.Fact{
				Subject:   args[0],
				Predicate: args[1],
				Object:    args[2],
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"subject": args[0], "predicate": args[1], "object": args[2], "added": added,
			})
		},
	}
}

// neighborsCmd lists relationships touching an entity.
func neighborsCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "neighbors",
		Usage:     "List relationships touching an entity",
		ArgsUsage: "<entity>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "direction", Aliases: []string{"d"}, Value: "both", Usage: "outgoing|incoming|both"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum facts (default from config)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("entity is required"))
			}
			limit := c.Int("limit")
			if limit <= 0 {
				limit = a.cfg.GraphNeighborLimit
			}
			facts, err := a.graph.Neighbors(
				context.Background(),
				c.Args().First(),
				graph.Direction(c.String("direction")),
				limit,
			)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"facts": facts, "count": len(facts)})
		},
	}
}

// pathCmd finds the shortest relationship chain between two entities.
func pathCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "path",
		Usage:     "Find the shortest relationship chain between two entities",
		ArgsUsage: "<source> <target>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max-hops", Usage: "Maximum path length (default from config)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return outputError(errors.NewInvalidRequest("usage: path <source> <target>"))
			}
			maxHops := c.Int("max-hops")
			if maxHops <= 0 {
				maxHops = a.cfg.GraphLookupMaxHops
			}
			result, err := a.graph.ShortestPath(
				context.Background(), c.Args().Get(0), c.Args().Get(1), maxHops)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

// indexCmd rebuilds graph entities from the catalog.
func indexCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Rebuild knowledge-graph entities and relationships from the catalog",
		Action: func(c *cli.Context) error {
			all, err := a.catalog.All()
			if err != nil {
				return outputError(err)
			}
			summary, err := a.graph.IndexSchematics(context.Background(), all)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(summary)
		},
	}
}

// scratchpadCmd manages session working memory.
func scratchpadCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "scratchpad",
		Usage: "Manage session working memory",
		Subcommands: []*cli.Command{
			{
				Name:      "write",
				Usage:     "Record an observation",
				ArgsUsage: "<subject> <predicate> <content>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "object", Aliases: []string{"o"}, Usage: "Related entity ID"},
					&cli.BoolFlag{Name: "no-minimize", Usage: "Store content verbatim"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 3 {
						return outputError(errors.NewInvalidRequest("usage: scratchpad write <subject> <predicate> <content>"))
					}
					args := c.Args().Slice()
					result, err := a.pad.Write(context.Background(), scratchpad.WriteInput{
						Subject:   args[0],
						Predicate: args[1],
						Content:   strings.Join(args[2:], " "),
						Object:    c.String("object"),
						Minimize:  !c.Bool("no-minimize"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(result)
				},
			},
			{
				Name:  "read",
				Usage: "Read observations, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Usage: "Filter by subject"},
					&cli.StringFlag{Name: "predicate", Aliases: []string{"p"}, Usage: "Filter by predicate"},
				},
				Action: func(c *cli.Context) error {
					entries, err := a.pad.Read(context.Background(), scratchpad.ReadInput{
						Subject:   c.String("subject"),
						Predicate: c.String("predicate"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"entries": entries, "count": len(entries)})
				},
			},
			{
				Name:  "clear",
				Usage: "Remove observations by subject and/or age",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Usage: "Only this subject"},
					&cli.IntFlag{Name: "older-than", Usage: "Only entries older than N minutes"},
				},
				Action: func(c *cli.Context) error {
					input := scratchpad.ClearInput{Subject: c.String("subject")}
					if c.IsSet("older-than") {
						d := time.Duration(c.Int("older-than")) * time.Minute
						input.OlderThan = &d
					}
					return outputJSON(map[string]any{"cleared": a.pad.Clear(input)})
				},
			},
			{
				Name:  "stats",
				Usage: "Show scratchpad token accounting",
				Action: func(c *cli.Context) error {
					return outputJSON(a.pad.Stats())
				},
			},
		},
	}
}

// statsCmd shows statistics across the memory subsystems.
func statsCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show memory subsystem statistics",
		Action: func(c *cli.Context) error {
			graphStats, err := a.graph.Stats(context.Background())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"scratchpad":     a.pad.Stats(),
				"graph":          graphStats,
				"index_size":     a.catalog.Index().Len(),
				"recent_queries": a.catalog.Index().RecentHits(10),
			})
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if appErr, ok := err.(*errors.Error); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", appErr.Code, appErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// setIf copies a flag value into a field pointer when the flag was set.
func setIf(c *cli.Context, flag string, dst **string) {
	if c.IsSet(flag) {
		v := c.String(flag)
		*dst = &v
	}
}
