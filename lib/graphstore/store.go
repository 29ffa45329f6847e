// Package graphstore persists scraped records into Neo4j. Every
// write is a merge-by-key upsert: re-running a crawl over the same
// pages updates nodes in place and never duplicates nodes or edges,
// so concurrent workers and re-scrapes are safe without any locking
// beyond the store's own transaction isolation.
package graphstore

import (
	"context"
	"fmt"
	"log/slog"

	"royalgraph/lib/scrapers/royalroad"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/graphstore")

type Config struct {
	URI      string `json:"uri"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
}

type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

// Open connects to the store and verifies the connection. A failure
// here is the crawl's only fatal failure mode, callers are expected
// to abort the run on error.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return Store{}, fmt.Errorf("failed to create driver: %w", err)
	}
	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		return Store{}, fmt.Errorf("failed to reach graph store at %s: %w", cfg.URI, err)
	}
	slog.InfoContext(ctx, "connected to graph store", "uri", cfg.URI, "database", cfg.Database)
	return Store{driver: driver, database: cfg.Database}, nil
}

func (s Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Upsert routes a record to the right writer. Records that are
// neither Fiction nor Review shaped are logged and dropped, they
// never fail the batch.
func (s Store) Upsert(ctx context.Context, record any) error {
	switch r := record.(type) {
	case royalroad.Fiction:
		return s.UpsertFiction(ctx, r)
	case royalroad.Review:
		return s.UpsertReview(ctx, r)
	default:
		slog.WarnContext(ctx, "dropping unrecognized record", "type", fmt.Sprintf("%T", record))
		return nil
	}
}

const mergeFictionCypher = `
MERGE (f:Fiction {id: $fiction_id})
ON CREATE SET
    f.created_at = datetime(),
    f.updated_at = datetime()
ON MATCH SET
    f.updated_at = datetime()
SET f += $properties
`

const mergeUserCypher = `
MERGE (u:User {id: $author_id})
ON CREATE SET
    u.created_at = datetime(),
    u.updated_at = datetime()
ON MATCH SET
    u.updated_at = datetime()
`

const mergeWroteFictionCypher = `
MATCH (u:User {id: $author_id}), (f:Fiction {id: $fiction_id})
MERGE (u)-[:WROTE_FICTION]->(f)
`

// UpsertFiction merges the Fiction node keyed by fiction id and, when
// the author resolved, a minimal User node plus the WROTE_FICTION
// edge. The node merge plus edge merges form one transaction.
func (s Store) UpsertFiction(ctx context.Context, f royalroad.Fiction) error {
	ctx, span := tracer.Start(ctx, "UpsertFiction")
	defer span.End()
	span.SetAttributes(attribute.Int64("fiction_id", f.FictionID))

	if f.FictionID == 0 {
		slog.WarnContext(ctx, "fiction record missing fiction_id, skipping")
		return nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, mergeFictionCypher, map[string]any{
			"fiction_id": f.FictionID,
			"properties": fictionProperties(f),
		})
		if err != nil {
			return nil, err
		}

		if f.AuthorID == nil {
			return nil, nil
		}
		_, err = tx.Run(ctx, mergeUserCypher, map[string]any{"author_id": *f.AuthorID})
		if err != nil {
			return nil, err
		}
		_, err = tx.Run(ctx, mergeWroteFictionCypher, map[string]any{
			"author_id":  *f.AuthorID,
			"fiction_id": f.FictionID,
		})
		return nil, err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fiction upsert failed")
		return fmt.Errorf("failed to upsert fiction %d: %w", f.FictionID, err)
	}

	slog.DebugContext(ctx, "upserted fiction", "fiction_id", f.FictionID)
	return nil
}

const mergeReviewCypher = `
MERGE (r:Review {id: $review_id})
ON CREATE SET
    r.created_at = datetime(),
    r.updated_at = datetime()
ON MATCH SET
    r.updated_at = datetime()
SET r += $properties
`

const mergeWroteReviewCypher = `
MATCH (u:User {id: $author_id}), (r:Review {id: $review_id})
MERGE (u)-[:WROTE_REVIEW]->(r)
`

const mergeReviewsCypher = `
MATCH (r:Review {id: $review_id}), (f:Fiction {id: $fiction_id})
MERGE (r)-[:REVIEWS]->(f)
`

// UpsertReview merges the Review node keyed by review id, the
// reviewer's minimal User node and WROTE_REVIEW edge when the
// reviewer resolved, and the REVIEWS edge to the Fiction when the
// fiction id is present. A review without a review id is rejected
// before any write happens.
func (s Store) UpsertReview(ctx context.Context, r royalroad.Review) error {
	ctx, span := tracer.Start(ctx, "UpsertReview")
	defer span.End()
	span.SetAttributes(attribute.Int64("review_id", r.ReviewID))

	if r.ReviewID == 0 {
		slog.WarnContext(ctx, "review record missing review_id, skipping")
		return nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, mergeReviewCypher, map[string]any{
			"review_id":  r.ReviewID,
			"properties": reviewProperties(r),
		})
		if err != nil {
			return nil, err
		}

		if r.ReviewerID != nil {
			_, err = tx.Run(ctx, mergeUserCypher, map[string]any{"author_id": *r.ReviewerID})
			if err != nil {
				return nil, err
			}
			_, err = tx.Run(ctx, mergeWroteReviewCypher, map[string]any{
				"author_id": *r.ReviewerID,
				"review_id": r.ReviewID,
			})
			if err != nil {
				return nil, err
			}
		}

		if r.FictionID != 0 {
			_, err = tx.Run(ctx, mergeReviewsCypher, map[string]any{
				"review_id":  r.ReviewID,
				"fiction_id": r.FictionID,
			})
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "review upsert failed")
		return fmt.Errorf("failed to upsert review %d: %w", r.ReviewID, err)
	}

	slog.DebugContext(ctx, "upserted review", "review_id", r.ReviewID)
	return nil
}

// fictionProperties builds the overwritable property set. Identity
// keys live in the MERGE clause, created_at/updated_at are managed by
// it, and provenance fields stay out of the graph; absent fields are
// left unset rather than nulled.
func fictionProperties(f royalroad.Fiction) map[string]any {
	props := map[string]any{}
	if f.Title != "" {
		props["title"] = f.Title
	}
	if f.Author != "" {
		props["author"] = f.Author
	}
	if f.URL != "" {
		props["url"] = f.URL
	}
	if f.Description != "" {
		props["description"] = f.Description
	}
	if len(f.Tags) > 0 {
		props["tags"] = f.Tags
	}
	if f.Rating != nil {
		props["rating"] = *f.Rating
	}
	if f.FollowerCount != nil {
		props["follower_count"] = *f.FollowerCount
	}
	return props
}

func reviewProperties(r royalroad.Review) map[string]any {
	props := map[string]any{}
	if r.Title != "" {
		props["review_title"] = r.Title
	}
	if r.Text != "" {
		props["review"] = r.Text
	}
	if r.Reviewer != "" {
		props["by"] = r.Reviewer
	}
	if r.ReviewedAtTime != "" {
		props["reviewed_at_time"] = r.ReviewedAtTime
	}
	if r.ReviewedAtChapter != "" {
		props["reviewed_at_chapter"] = r.ReviewedAtChapter
	}
	if r.OverallRating != nil {
		props["overall_rating"] = *r.OverallRating
	}
	if r.StyleRating != nil {
		props["style_rating"] = *r.StyleRating
	}
	if r.StoryRating != nil {
		props["story_rating"] = *r.StoryRating
	}
	if r.GrammarRating != nil {
		props["grammar_rating"] = *r.GrammarRating
	}
	if r.CharacterRating != nil {
		props["character_rating"] = *r.CharacterRating
	}
	return props
}
