package neo4j

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
	"github.com/kirillkom/hybrid-memory/internal/infrastructure/resilience"
)

// Rooms stores the hierarchy as (:Room)-[:CHILD_OF]->(:Room).
type Rooms struct {
	run      queryRunner
	executor *resilience.Executor
	close    func(context.Context) error
}

type queryRunner func(ctx context.Context, cypher string, params map[string]any, write bool) ([]*neo4j.Record, error)

func Connect(ctx context.Context, uri, user, password string, executor *resilience.Executor) (*Rooms, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}

	run := func(ctx context.Context, cypher string, params map[string]any, write bool) ([]*neo4j.Record, error) {
		routing := neo4j.ExecuteQueryWithReadersRouting()
		if write {
			routing = neo4j.ExecuteQueryWithWritersRouting()
		}
		result, err := neo4j.ExecuteQuery(ctx, driver, cypher, params, neo4j.EagerResultTransformer, routing)
		if err != nil {
			return nil, err
		}
		return result.Records, nil
	}

	rooms := &Rooms{run: run, executor: executor, close: driver.Close}
	if err := rooms.ensureConstraints(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return rooms, nil
}

func (r *Rooms) Close(ctx context.Context) error {
	if r.close == nil {
		return nil
	}
	return r.close(ctx)
}

func (r *Rooms) ensureConstraints(ctx context.Context) error {
	_, err := r.run(ctx, `CREATE CONSTRAINT room_id IF NOT EXISTS FOR (r:Room) REQUIRE r.id IS UNIQUE`, nil, true)
	if err != nil {
		return fmt.Errorf("ensure room constraint: %w", err)
	}
	return nil
}

func (r *Rooms) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	const cypher = `
MATCH (r:Room {id: $id})
OPTIONAL MATCH (r)-[:CHILD_OF]->(p:Room)
RETURN r.id AS id, coalesce(r.display_name, '') AS display_name, p.id AS parent_id
LIMIT 1`

	records, err := resilience.Do(ctx, r.executor, "neo4j.get_room", func(callCtx context.Context) ([]*neo4j.Record, error) {
		return r.run(callCtx, cypher, map[string]any{"id": roomID}, false)
	}, classifyNeo4jError)
	if err != nil {
		return nil, resilience.WrapTemporary("neo4j get room", err, classifyNeo4jError)
	}
	if len(records) == 0 {
		return nil, domain.WrapError(domain.ErrRoomNotFound, "get room", fmt.Errorf("id=%s", roomID))
	}

	rec := records[0]
	id, _, err := neo4j.GetRecordValue[string](rec, "id")
	if err != nil {
		return nil, fmt.Errorf("decode room id: %w", err)
	}
	name, _, err := neo4j.GetRecordValue[string](rec, "display_name")
	if err != nil {
		return nil, fmt.Errorf("decode room name: %w", err)
	}
	parentID, _, err := neo4j.GetRecordValue[string](rec, "parent_id")
	if err != nil {
		return nil, fmt.Errorf("decode room parent: %w", err)
	}
	return &domain.Room{ID: id, ParentID: parentID, DisplayName: name}, nil
}

// UpsertRoom replaces the room's single CHILD_OF edge.
func (r *Rooms) UpsertRoom(ctx context.Context, room domain.Room) error {
	const cypher = `
MERGE (r:Room {id: $id})
SET r.display_name = $display_name
WITH r
OPTIONAL MATCH (r)-[old:CHILD_OF]->(:Room)
DELETE old
WITH DISTINCT r
FOREACH (_ IN CASE WHEN $parent_id <> '' THEN [1] ELSE [] END |
	MERGE (p:Room {id: $parent_id})
	MERGE (r)-[:CHILD_OF]->(p)
)`

	params := map[string]any{
		"id":           room.ID,
		"display_name": room.DisplayName,
		"parent_id":    room.ParentID,
	}
	_, err := resilience.Do(ctx, r.executor, "neo4j.upsert_room", func(callCtx context.Context) ([]*neo4j.Record, error) {
		return r.run(callCtx, cypher, params, true)
	}, classifyNeo4jError)
	if err != nil {
		return resilience.WrapTemporary("neo4j upsert room", err, classifyNeo4jError)
	}
	return nil
}

func classifyNeo4jError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) || neo4j.IsRetryable(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ClassifyTransportError(err)
}
