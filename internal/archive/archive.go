package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tavernkeep/rules-server-go/internal/config"
	"github.com/tavernkeep/rules-server-go/internal/game/events"
)

const insertEvent = `
INSERT INTO events (
	id, lineage_id, revision, type, phase, canceled, status_message,
	parent_id, source_id, target_id, amount, metadata, occurred_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO NOTHING`

// Archive persists terminal event revisions to PostgreSQL. Writes are
// buffered and flushed by a background worker, so queue dispatch never
// waits on the database.
type Archive struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	pending chan events.Event
	done    chan struct{}
}

// New connects to the database and starts the flush worker.
func New(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	a := &Archive{
		pool:    pool,
		logger:  logger,
		pending: make(chan events.Event, 1024),
		done:    make(chan struct{}),
	}
	go a.flush()
	return a, nil
}

// Attach subscribes the archive to every terminal event revision on the
// queue. Returns the listener handles for detaching.
func (a *Archive) Attach(q *events.Queue) []int {
	record := func(evt events.Event, _ uuid.UUID) *events.Event {
		select {
		case a.pending <- evt:
		default:
			a.logger.Warn("archive buffer full, dropping event",
				zap.String("event_id", evt.ID.String()),
			)
		}
		return &evt
	}
	return []int{
		q.AddListener("", events.PhaseCompletion, uuid.Nil, record),
		q.AddListener("", events.PhaseCancel, uuid.Nil, record),
	}
}

// flush drains the pending buffer until Close.
func (a *Archive) flush() {
	defer close(a.done)
	for evt := range a.pending {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.store(ctx, evt); err != nil {
			a.logger.Error("archiving event failed",
				zap.String("event_id", evt.ID.String()),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// store writes one event revision.
func (a *Archive) store(ctx context.Context, evt events.Event) error {
	_, err := a.pool.Exec(ctx, insertEvent,
		evt.ID, evt.LineageID, evt.Revision,
		string(evt.Type), string(evt.Phase),
		evt.Canceled, evt.StatusMessage,
		nilIfZero(evt.ParentID), nilIfZero(evt.SourceID), nilIfZero(evt.TargetID),
		evt.Amount, evt.Metadata, evt.Timestamp,
	)
	return err
}

// Close drains remaining writes and releases the connection pool.
func (a *Archive) Close() {
	close(a.pending)
	<-a.done
	a.pool.Close()
}

// nilIfZero maps the zero uuid to SQL NULL.
func nilIfZero(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
