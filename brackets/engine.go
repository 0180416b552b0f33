package brackets

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Dosada05/contest-system/models"
)

// Engine drives contests through their bracket. It keeps no per-contest state,
// so one engine serves every contest; callers serialize work per contest.
type Engine struct {
	judge  Judge
	logger *slog.Logger

	mu  sync.Mutex // guards rnd
	rnd *rand.Rand
}

type Option func(*Engine)

func WithJudge(j Judge) Option {
	return func(e *Engine) { e.judge = j }
}

// WithRand sets the source used when a contest asks for shuffled seeding.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rnd = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		judge:  DateJudge{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rnd == nil {
		now := uint64(time.Now().UnixNano())
		e.rnd = rand.New(rand.NewPCG(now, now>>7))
	}
	return e
}

// shuffler hands out a generator of its own for one seeding pass. Only the
// seeds are drawn from the shared source, so parallel builds never touch the
// same PCG state and a fixed WithRand source still gives repeatable layouts.
func (e *Engine) shuffler() *rand.Rand {
	e.mu.Lock()
	seed1, seed2 := e.rnd.Uint64(), e.rnd.Uint64()
	e.mu.Unlock()
	return rand.New(rand.NewPCG(seed1, seed2))
}

func (e *Engine) strategyOf(c *models.Contest) (Strategy, error) {
	return StrategyFor(c.Strategy)
}

func (e *Engine) indexOf(c *models.Contest, r *models.Round) int {
	for i, candidate := range c.Rounds {
		if candidate == r {
			return i
		}
	}
	return -1
}

// baseDate is the day the first wave of round idx opens: the contest start
// for round I, otherwise one interval after the prior round's last window.
func baseDate(c *models.Contest, idx int) time.Time {
	if idx == 0 {
		return Day(c.StartedOn)
	}
	prior := c.Rounds[idx-1]
	if len(prior.Matches) == 0 {
		return Day(c.StartedOn)
	}
	last := prior.Matches[len(prior.Matches)-1]
	return Day(last.FinishedOn).AddDate(0, 0, c.WaveInterval)
}
