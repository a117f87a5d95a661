package store

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/linkograph/internal/db"
	"github.com/raphaelgruber/linkograph/internal/models"
)

// SurrealStore keeps linked collections in SurrealDB.
type SurrealStore struct {
	client *db.Client
	target string
	runID  string
}

// Compile-time check that SurrealStore implements Store.
var _ Store = (*SurrealStore)(nil)

// OpenSurreal connects to SurrealDB and initializes the schema.
func OpenSurreal(ctx context.Context, target, runID string) (*SurrealStore, error) {
	return openSurreal(ctx, target, runID, true)
}

func openSurreal(ctx context.Context, target, runID string, initSchema bool) (*SurrealStore, error) {
	cfg, err := db.ParseURL(target)
	if err != nil {
		return nil, persistErr("open", redact(target), err)
	}
	client, err := db.NewClient(ctx, cfg, slog.Default())
	if err != nil {
		return nil, persistErr("open", redact(target), err)
	}
	if initSchema {
		if err := client.InitSchema(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, persistErr("open", redact(target), err)
		}
	}
	return &SurrealStore{client: client, target: redact(target), runID: runID}, nil
}

func (s *SurrealStore) String() string { return s.target }

// Close closes the SurrealDB connection.
func (s *SurrealStore) Close() error {
	return s.client.Close(context.Background())
}

// Save replaces the stored collection in one transaction.
func (s *SurrealStore) Save(ctx context.Context, collection models.LinkedCollection) error {
	return persistErr("save", s.target, s.client.SaveLinked(ctx, collection, s.runID))
}

// Load reads the stored collection in its original order.
func (s *SurrealStore) Load(ctx context.Context) (models.LinkedCollection, error) {
	c, err := s.client.LoadLinked(ctx)
	if err != nil {
		return nil, persistErr("load", s.target, err)
	}
	return c, nil
}
