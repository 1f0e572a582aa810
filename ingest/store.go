package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type DBConfig struct {
	DSN          string        `split_words:"true" required:"true"`
	MaxOpenConns int           `split_words:"true" default:"8"`
	ConnTimeout  time.Duration `split_words:"true" default:"10s"`
}

// Connect opens a Postgres-backed bun DB and verifies connectivity.
func Connect(ctx context.Context, cfg DBConfig) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)

	db := bun.NewDB(sqldb, pgdialect.New())

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping record store: %w", err)
	}
	return db, nil
}

// Store persists parsed HL7 records.
type Store struct {
	db bun.IDB
}

func NewStore(db bun.IDB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	models := []any{(*MessageRecord)(nil), (*SegmentRecord)(nil)}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

// Insert writes one message row and its segment rows in a single transaction,
// filling each SegmentRecord's MessageID from the inserted message.
func (s *Store) Insert(ctx context.Context, msg *MessageRecord, segments []SegmentRecord) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(msg).Exec(ctx); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if len(segments) == 0 {
			return nil
		}
		for i := range segments {
			segments[i].MessageID = msg.ID
		}
		if _, err := tx.NewInsert().Model(&segments).Exec(ctx); err != nil {
			return fmt.Errorf("insert segments: %w", err)
		}
		return nil
	})
}
