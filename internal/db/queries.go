package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/linkograph/internal/models"
)

// saveLinkedSQL replaces the stored collection in one transaction, so readers see
// either the previous run or this one.
const saveLinkedSQL = `
	BEGIN TRANSACTION;
	DELETE linked_episode;
	FOR $ep IN $episodes {
		UPSERT type::record("linked_episode", $ep.id) CONTENT $ep.doc;
	};
	COMMIT TRANSACTION;
`

type linkedEpisodeRow struct {
	ID        surrealmodels.RecordID `json:"id"`
	Position  int                    `json:"position"`
	MovesJSON string                 `json:"moves_json"`
	Links     [][]float64            `json:"links"`
}

// SaveLinked stores every linked episode of a collection, replacing what was there.
func (c *Client) SaveLinked(ctx context.Context, collection models.LinkedCollection, runID string) error {
	episodes := make([]map[string]any, 0, len(collection))
	for i, ep := range collection {
		doc, err := episodeDocument(i, ep, runID)
		if err != nil {
			return fmt.Errorf("episode %q: %w", ep.ID, err)
		}
		episodes = append(episodes, map[string]any{"id": ep.ID, "doc": doc})
	}

	_, err := surrealdb.Query[any](ctx, c.db, saveLinkedSQL, map[string]any{"episodes": episodes})
	if err != nil {
		return fmt.Errorf("save linked episodes: %w", wrapQueryError(err))
	}
	c.logger.Info("linked episodes stored", "episodes", len(collection))
	return nil
}

// LoadLinked reads the stored collection back in its original order.
func (c *Client) LoadLinked(ctx context.Context) (models.LinkedCollection, error) {
	results, err := surrealdb.Query[[]linkedEpisodeRow](ctx, c.db, `
		SELECT id, position, moves_json, links FROM linked_episode ORDER BY position
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("load linked episodes: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return models.LinkedCollection{}, nil
	}

	rows := (*results)[0].Result
	out := make(models.LinkedCollection, 0, len(rows))
	for _, row := range rows {
		ep, err := row.linkedEpisode()
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}

// CountLinked returns the number of stored linked episodes.
func (c *Client) CountLinked(ctx context.Context) (int, error) {
	results, err := surrealdb.Query[[]struct {
		Count int `json:"count"`
	}](ctx, c.db, "SELECT count() FROM linked_episode GROUP ALL", nil)
	if err != nil {
		return 0, fmt.Errorf("count linked episodes: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}

func episodeDocument(position int, ep models.LinkedEpisode, runID string) (map[string]any, error) {
	moves := ep.Moves
	if moves == nil {
		moves = []models.Move{}
	}
	movesJSON, err := models.Marshal(moves)
	if err != nil {
		return nil, fmt.Errorf("encode moves: %w", err)
	}
	decoded := []any{}
	if err := json.Unmarshal(movesJSON, &decoded); err != nil {
		return nil, fmt.Errorf("decode moves: %w", err)
	}

	// Rows must be non-nil so an empty row is stored as [] rather than NONE.
	links := make([][]float64, len(ep.Links))
	for i, row := range ep.Links {
		links[i] = append(make([]float64, 0, len(row)), row...)
	}

	doc := map[string]any{
		"position":   position,
		"moves":      decoded,
		"moves_json": string(movesJSON),
		"move_count": len(moves),
		"links":      links,
	}
	if runID != "" {
		doc["run_id"] = runID
	}
	return doc, nil
}

func (r linkedEpisodeRow) linkedEpisode() (models.LinkedEpisode, error) {
	id, err := recordIDString(r.ID)
	if err != nil {
		return models.LinkedEpisode{}, err
	}

	var moves []models.Move
	if err := json.Unmarshal([]byte(r.MovesJSON), &moves); err != nil {
		return models.LinkedEpisode{}, fmt.Errorf("episode %q: decode moves: %w", id, err)
	}

	links := models.LinkTable(r.Links)
	if links == nil {
		links = models.NewLinkTable(0)
	}
	if err := links.Validate(); err != nil {
		return models.LinkedEpisode{}, fmt.Errorf("episode %q: %w", id, err)
	}
	if links.Len() != len(moves) {
		return models.LinkedEpisode{}, fmt.Errorf("episode %q: links cover %d moves, episode has %d", id, links.Len(), len(moves))
	}
	return models.LinkedEpisode{ID: id, Moves: moves, Links: links}, nil
}

// recordIDString extracts the string key from a SurrealDB RecordID.
func recordIDString(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected ID type: %T (expected string)", id.ID)
	}
	return s, nil
}
