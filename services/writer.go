package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/Dosada05/contest-system/brackets"
	"github.com/Dosada05/contest-system/metrics"
	"github.com/Dosada05/contest-system/models"
	"github.com/Dosada05/contest-system/realtime"
	"github.com/Dosada05/contest-system/repositories"
	"github.com/Dosada05/contest-system/storage"
)

// Notifier pushes bracket changes to live watchers.
type Notifier interface {
	BroadcastToRoom(roomID string, msg realtime.Message)
}

// ViewCache stores rendered bracket views; a nil result means a miss.
type ViewCache interface {
	Get(ctx context.Context, contestID int) ([]byte, error)
	Set(ctx context.Context, contestID int, view []byte) error
	Invalidate(ctx context.Context, contestID int) error
}

// Deps wires the contest services. Notifier, Cache, Archive and Metrics are
// optional.
type Deps struct {
	Tx       Transactor
	Contests repositories.ContestRepository
	Members  repositories.MemberRepository
	Rounds   repositories.RoundRepository
	Matches  repositories.MatchRepository
	Engine   *brackets.Engine
	Logger   *slog.Logger

	Notifier        Notifier
	Cache           ViewCache
	Archive         storage.FileUploader
	Metrics         *metrics.Engine
	TickParallelism int
}

// bracketWriter runs one engine operation per transaction and publishes the
// result once it is committed.
type bracketWriter struct {
	tx       Transactor
	store    *contestStore
	engine   *brackets.Engine
	logger   *slog.Logger
	notifier Notifier
	cache    ViewCache
	archive  storage.FileUploader
	metrics  *metrics.Engine
}

func newBracketWriter(d Deps) *bracketWriter {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	engine := d.Engine
	if engine == nil {
		engine = brackets.NewEngine(brackets.WithLogger(logger))
	}
	return &bracketWriter{
		tx: d.Tx,
		store: &contestStore{
			contests: d.Contests,
			members:  d.Members,
			rounds:   d.Rounds,
			matches:  d.Matches,
		},
		engine:   engine,
		logger:   logger,
		notifier: d.Notifier,
		cache:    d.Cache,
		archive:  d.Archive,
		metrics:  d.Metrics,
	}
}

type mutation func(c *models.Contest) (bool, error)

// buildPolicy decides whether an unbuilt contest gets its bracket laid out
// before the mutation runs; nil never builds.
type buildPolicy func(c *models.Contest) bool

func buildAlways(*models.Contest) bool { return true }

func buildWhenDue(today time.Time) buildPolicy {
	return func(c *models.Contest) bool {
		return !brackets.Day(c.StartedOn).After(brackets.Day(today))
	}
}

// mutate loads the contest, optionally builds it, applies fn and writes back
// every touched row in one transaction.
func (w *bracketWriter) mutate(ctx context.Context, contestID int, op string, build buildPolicy, fn mutation) (*models.Contest, bool, error) {
	var (
		contest *models.Contest
		changed bool
		from    models.State
	)
	err := w.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		c, err := w.store.load(ctx, exec, contestID)
		if err != nil {
			return err
		}
		from = c.State

		built := false
		if build != nil && c.Created() && len(c.Rounds) == 0 && build(c) {
			if err := w.engine.Build(c); err != nil {
				return err
			}
			if err := w.store.insertLayout(ctx, exec, c); err != nil {
				return err
			}
			built = true
		}

		before := takeSnapshot(c)
		moved, err := fn(c)
		if err != nil {
			return err
		}
		contest, changed = c, moved || built
		if !changed {
			return nil
		}
		return w.store.save(ctx, exec, c, before)
	})
	if err != nil {
		if errors.Is(err, ErrConcurrentUpdate) && w.metrics != nil {
			w.metrics.Conflicts.Inc()
		}
		return nil, false, err
	}

	if changed {
		w.published(ctx, contest, op, from)
	}
	return contest, changed, nil
}

// published runs after commit: nothing here may fail the operation.
func (w *bracketWriter) published(ctx context.Context, c *models.Contest, op string, from models.State) {
	if w.metrics != nil {
		w.metrics.Transitions.WithLabelValues(op).Inc()
	}
	if w.cache != nil {
		if err := w.cache.Invalidate(ctx, c.ID); err != nil {
			w.logger.Warn("failed to invalidate bracket cache", slog.Int("contest_id", c.ID), slog.Any("error", err))
		}
	}

	view := NewBracketView(c)
	msgType := realtime.MessageBracketUpdated
	switch {
	case c.Finished():
		msgType = realtime.MessageContestFinished
		w.archiveBracket(ctx, view)
	case from == models.StateCreated && c.Started():
		msgType = realtime.MessageContestStarted
	case op == opOutcome:
		msgType = realtime.MessageMatchFinished
	}
	if w.notifier != nil {
		w.notifier.BroadcastToRoom(realtime.ContestRoom(c.ID), realtime.Message{Type: msgType, Payload: view})
	}
}

func (w *bracketWriter) archiveBracket(ctx context.Context, view *BracketView) {
	if w.archive == nil {
		return
	}
	data, err := json.Marshal(view)
	if err != nil {
		w.logger.Error("failed to encode bracket for archive", slog.Int("contest_id", view.ID), slog.Any("error", err))
		return
	}
	res, err := w.archive.Upload(ctx, storage.BracketKey(view.ID), "application/json", bytes.NewReader(data))
	if err != nil {
		w.logger.Error("failed to archive bracket", slog.Int("contest_id", view.ID), slog.Any("error", err))
		return
	}
	w.logger.Info("bracket archived", slog.Int("contest_id", view.ID), slog.String("key", res.Key), slog.String("location", res.Location))
}
