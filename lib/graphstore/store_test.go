package graphstore

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"royalgraph/lib/scrapers/royalroad"
	"royalgraph/lib/telemetry"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupStore(t testing.TB) Store {
	ctx := context.Background()

	t.Cleanup(telemetry.SetupForTesting(t, "lib/graphstore"))

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "neo4j:5",
			ExposedPorts: []string{"7687/tcp"},
			Env: map[string]string{
				"NEO4J_AUTH": "neo4j/letmein123",
			},
			WaitingFor: wait.ForLog("Started."),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		err := container.Terminate(context.Background())
		if err != nil {
			t.Fatal(err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "7687/tcp", "")
	require.NoError(t, err)

	store, err := Open(ctx, Config{
		URI:      "bolt://" + endpoint,
		Username: "neo4j",
		Password: "letmein123",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close(context.Background())
	})

	return store
}

func runQuery(t testing.TB, s Store, cypher string, params map[string]any) []*neo4j.Record {
	ctx := context.Background()
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	records, err := neo4j.ExecuteRead(ctx, session,
		func(tx neo4j.ManagedTransaction) ([]*neo4j.Record, error) {
			res, err := tx.Run(ctx, cypher, params)
			if err != nil {
				return nil, err
			}
			return res.Collect(ctx)
		})
	require.NoError(t, err)
	return records
}

func float64Ptr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64       { return &v }

func TestUpsertUnrecognizedRecord(t *testing.T) {
	// dropped before any session is opened, so a zero store is fine
	var store Store
	require.NoError(t, store.Upsert(context.Background(), struct{ Payload string }{"junk"}))
}

func TestUpsertFiction(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	fiction := royalroad.Fiction{
		FictionID:     89034,
		Title:         "Nightmare Realm Summoner",
		Author:        "PaleDrake",
		URL:           "https://www.royalroad.com/fiction/89034/nightmare-realm-summoner",
		Description:   "He signed the contract.",
		Tags:          []string{"Fantasy", "LitRPG"},
		Rating:        float64Ptr(4.53),
		FollowerCount: int64Ptr(1532),
		AuthorID:      int64Ptr(4521),
		ScrapedAt:     time.Now().UTC().Format(time.RFC3339),
		Version:       royalroad.SchemaVersion,
	}
	require.NoError(t, store.UpsertFiction(ctx, fiction))

	records := runQuery(t, store,
		`MATCH (f:Fiction {id: $id}) RETURN f.title AS title, f.created_at AS created, f.updated_at AS updated`,
		map[string]any{"id": int64(89034)})
	require.Len(t, records, 1)
	title, _ := records[0].Get("title")
	require.Equal(t, "Nightmare Realm Summoner", title)
	created1, _ := records[0].Get("created")
	updated1, _ := records[0].Get("updated")

	// scrape bookkeeping never lands on the node
	records = runQuery(t, store,
		`MATCH (f:Fiction {id: $id}) RETURN f.scraped_at AS scraped, f.version AS version`,
		map[string]any{"id": int64(89034)})
	scraped, _ := records[0].Get("scraped")
	require.Nil(t, scraped)
	version, _ := records[0].Get("version")
	require.Nil(t, version)

	// author node and authorship edge come along
	records = runQuery(t, store,
		`MATCH (u:User {id: $id})-[:WROTE_FICTION]->(f:Fiction) RETURN count(f) AS c`,
		map[string]any{"id": int64(4521)})
	count, _ := records[0].Get("c")
	require.Equal(t, int64(1), count)

	// a re-scrape with a changed field updates in place; fields absent
	// from the new record keep their old value
	time.Sleep(time.Millisecond * 250)
	second := fiction
	second.Title = "Nightmare Realm Summoner (Rewrite)"
	second.Description = ""
	require.NoError(t, store.UpsertFiction(ctx, second))

	records = runQuery(t, store,
		`MATCH (f:Fiction {id: $id})
		 RETURN count(f) AS c, f.title AS title, f.description AS description,
		        f.created_at AS created, f.updated_at AS updated`,
		map[string]any{"id": int64(89034)})
	require.Len(t, records, 1)
	count, _ = records[0].Get("c")
	require.Equal(t, int64(1), count)
	title, _ = records[0].Get("title")
	require.Equal(t, "Nightmare Realm Summoner (Rewrite)", title)
	description, _ := records[0].Get("description")
	require.Equal(t, "He signed the contract.", description)

	created2, _ := records[0].Get("created")
	updated2, _ := records[0].Get("updated")
	require.Equal(t, created1, created2)
	require.True(t, updated2.(time.Time).After(updated1.(time.Time)))

	// the authorship edge does not duplicate either
	records = runQuery(t, store,
		`MATCH (:User {id: $id})-[e:WROTE_FICTION]->(:Fiction) RETURN count(e) AS c`,
		map[string]any{"id": int64(4521)})
	count, _ = records[0].Get("c")
	require.Equal(t, int64(1), count)
}

func TestUpsertReview(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertFiction(ctx, royalroad.Fiction{
		FictionID: 89034,
		Title:     "Nightmare Realm Summoner",
	}))

	review := royalroad.Review{
		ReviewID:       1271589,
		Title:          "A solid power fantasy",
		Text:           "The pacing is relentless.",
		Reviewer:       "SomeReviewer",
		ReviewerID:     int64Ptr(887),
		ReviewedAtTime: "2023-01-15T10:30:00Z",
		OverallRating:  float64Ptr(4.0),
		FictionID:      89034,
	}
	require.NoError(t, store.UpsertReview(ctx, review))
	// idempotent, running twice leaves one node and one of each edge
	require.NoError(t, store.UpsertReview(ctx, review))

	records := runQuery(t, store,
		`MATCH (r:Review {id: $id}) RETURN count(r) AS c, r.review_title AS title, r.overall_rating AS rating`,
		map[string]any{"id": int64(1271589)})
	require.Len(t, records, 1)
	count, _ := records[0].Get("c")
	require.Equal(t, int64(1), count)
	title, _ := records[0].Get("title")
	require.Equal(t, "A solid power fantasy", title)
	rating, _ := records[0].Get("rating")
	require.Equal(t, 4.0, rating)

	records = runQuery(t, store,
		`MATCH (:User {id: $id})-[e:WROTE_REVIEW]->(:Review) RETURN count(e) AS c`,
		map[string]any{"id": int64(887)})
	count, _ = records[0].Get("c")
	require.Equal(t, int64(1), count)

	records = runQuery(t, store,
		`MATCH (:Review {id: $rid})-[e:REVIEWS]->(:Fiction {id: $fid}) RETURN count(e) AS c`,
		map[string]any{"rid": int64(1271589), "fid": int64(89034)})
	count, _ = records[0].Get("c")
	require.Equal(t, int64(1), count)

	// a review without identity is rejected before any write
	require.NoError(t, store.UpsertReview(ctx, royalroad.Review{Title: "anonymous"}))
	records = runQuery(t, store, `MATCH (r:Review) RETURN count(r) AS c`, nil)
	count, _ = records[0].Get("c")
	require.Equal(t, int64(1), count)
}
