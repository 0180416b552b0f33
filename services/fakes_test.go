package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Dosada05/contest-system/models"
	"github.com/Dosada05/contest-system/realtime"
	"github.com/Dosada05/contest-system/repositories"
	"github.com/Dosada05/contest-system/storage"
)

// memDB is an in-memory stand-in for the four contest tables. Rows are stored
// as value copies so callers never share memory with it.
type memDB struct {
	mu sync.Mutex

	nextID   int
	contests map[int]models.Contest
	members  map[int][]models.ParticipantRef
	rounds   map[int]models.Round
	roundPos map[int]int
	matches  map[int]models.Match
	matchPos map[int]int

	// beforeContestUpdate runs ahead of every contest CAS, inside the lock.
	beforeContestUpdate func(db *memDB, c *models.Contest)
	listCalls           int
}

func newMemDB() *memDB {
	return &memDB{
		contests: map[int]models.Contest{},
		members:  map[int][]models.ParticipantRef{},
		rounds:   map[int]models.Round{},
		roundPos: map[int]int{},
		matches:  map[int]models.Match{},
		matchPos: map[int]int{},
	}
}

type memState struct {
	nextID   int
	contests map[int]models.Contest
	members  map[int][]models.ParticipantRef
	rounds   map[int]models.Round
	roundPos map[int]int
	matches  map[int]models.Match
	matchPos map[int]int
}

func (db *memDB) save() memState {
	db.mu.Lock()
	defer db.mu.Unlock()
	return memState{
		nextID:   db.nextID,
		contests: maps.Clone(db.contests),
		members:  maps.Clone(db.members),
		rounds:   maps.Clone(db.rounds),
		roundPos: maps.Clone(db.roundPos),
		matches:  maps.Clone(db.matches),
		matchPos: maps.Clone(db.matchPos),
	}
}

func (db *memDB) restore(s memState) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nextID = s.nextID
	db.contests, db.members = s.contests, s.members
	db.rounds, db.roundPos = s.rounds, s.roundPos
	db.matches, db.matchPos = s.matches, s.matchPos
}

func (db *memDB) id() int {
	db.nextID++
	return db.nextID
}

// memTx serializes transactions and rolls the tables back when fn fails.
type memTx struct {
	mu sync.Mutex
	db *memDB
}

func (t *memTx) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	before := t.db.save()
	if err := fn(nil); err != nil {
		t.db.restore(before)
		return err
	}
	return nil
}

type memContestRepo struct{ db *memDB }

func (r *memContestRepo) Create(ctx context.Context, exec repositories.SQLExecutor, c *models.Contest) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.contests {
		if existing.Title == c.Title {
			return repositories.ErrContestTitleConflict
		}
	}
	c.ID = r.db.id()
	c.Version = 1
	row := *c
	row.Members, row.Rounds = nil, nil
	r.db.contests[c.ID] = row
	return nil
}

func (r *memContestRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Contest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row, ok := r.db.contests[id]
	if !ok {
		return nil, repositories.ErrContestNotFound
	}
	return &row, nil
}

func (r *memContestRepo) List(ctx context.Context, state *models.State) ([]*models.Contest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Contest
	for _, id := range slices.Sorted(maps.Keys(r.db.contests)) {
		row := r.db.contests[id]
		if state == nil || row.State == *state {
			out = append(out, &row)
		}
	}
	return out, nil
}

func (r *memContestRepo) ListDueIDs(ctx context.Context, today time.Time) ([]int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	ids := make([]int, 0)
	for _, id := range slices.Sorted(maps.Keys(r.db.contests)) {
		row := r.db.contests[id]
		if row.Started() || (row.Created() && !row.StartedOn.After(today)) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memContestRepo) Update(ctx context.Context, exec repositories.SQLExecutor, c *models.Contest) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.beforeContestUpdate != nil {
		r.db.beforeContestUpdate(r.db, c)
	}
	row, ok := r.db.contests[c.ID]
	if !ok || row.Version != c.Version {
		return fmt.Errorf("contest %d at version %d: %w", c.ID, c.Version, repositories.ErrVersionConflict)
	}
	c.Version++
	row = *c
	row.Members, row.Rounds = nil, nil
	r.db.contests[c.ID] = row
	return nil
}

type memMemberRepo struct{ db *memDB }

func (r *memMemberRepo) CreateBatch(ctx context.Context, exec repositories.SQLExecutor, contestID int, members []models.ParticipantRef) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	seen := map[models.ParticipantRef]bool{}
	for _, m := range append(slices.Clone(r.db.members[contestID]), members...) {
		if seen[m] {
			return repositories.ErrMemberDuplicate
		}
		seen[m] = true
	}
	r.db.members[contestID] = append(slices.Clone(r.db.members[contestID]), members...)
	return nil
}

func (r *memMemberRepo) ListByContest(ctx context.Context, exec repositories.SQLExecutor, contestID int) ([]models.ParticipantRef, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.listCalls++
	return slices.Clone(r.db.members[contestID]), nil
}

type memRoundRepo struct{ db *memDB }

func (r *memRoundRepo) Create(ctx context.Context, exec repositories.SQLExecutor, round *models.Round, position int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	round.ID = r.db.id()
	round.Version = 1
	row := *round
	row.Matches = nil
	r.db.rounds[round.ID] = row
	r.db.roundPos[round.ID] = position
	return nil
}

func (r *memRoundRepo) ListByContest(ctx context.Context, exec repositories.SQLExecutor, contestID int) ([]*models.Round, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Round
	for _, row := range r.db.rounds {
		if row.ContestID == contestID {
			out = append(out, &row)
		}
	}
	slices.SortFunc(out, func(a, b *models.Round) int { return r.db.roundPos[a.ID] - r.db.roundPos[b.ID] })
	return out, nil
}

func (r *memRoundRepo) Update(ctx context.Context, exec repositories.SQLExecutor, round *models.Round) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row, ok := r.db.rounds[round.ID]
	if !ok || row.Version != round.Version {
		return fmt.Errorf("round %d: %w", round.ID, repositories.ErrVersionConflict)
	}
	round.Version++
	row.State, row.Version = round.State, round.Version
	r.db.rounds[round.ID] = row
	return nil
}

type memMatchRepo struct{ db *memDB }

func (r *memMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, m *models.Match, position int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m.ID = r.db.id()
	m.Version = 1
	r.db.matches[m.ID] = *m
	r.db.matchPos[m.ID] = position
	return nil
}

func (r *memMatchRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row, ok := r.db.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return &row, nil
}

func (r *memMatchRepo) ContestIDOf(ctx context.Context, exec repositories.SQLExecutor, matchID int) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row, ok := r.db.matches[matchID]
	if !ok {
		return 0, repositories.ErrMatchNotFound
	}
	return r.db.rounds[row.RoundID].ContestID, nil
}

func (r *memMatchRepo) ListByContest(ctx context.Context, exec repositories.SQLExecutor, contestID int) ([]*models.Match, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Match
	for _, row := range r.db.matches {
		if r.db.rounds[row.RoundID].ContestID == contestID {
			out = append(out, &row)
		}
	}
	key := func(m *models.Match) [2]int { return [2]int{r.db.roundPos[m.RoundID], r.db.matchPos[m.ID]} }
	slices.SortFunc(out, func(a, b *models.Match) int {
		ka, kb := key(a), key(b)
		if ka[0] != kb[0] {
			return ka[0] - kb[0]
		}
		return ka[1] - kb[1]
	})
	return out, nil
}

func (r *memMatchRepo) Update(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row, ok := r.db.matches[m.ID]
	if !ok || row.Version != m.Version {
		return fmt.Errorf("match %d: %w", m.ID, repositories.ErrVersionConflict)
	}
	m.Version++
	r.db.matches[m.ID] = *m
	return nil
}

type recordedMessage struct {
	room string
	msg  realtime.Message
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []recordedMessage
}

func (n *fakeNotifier) BroadcastToRoom(roomID string, msg realtime.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, recordedMessage{room: roomID, msg: msg})
}

func (n *fakeNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.messages))
	for _, m := range n.messages {
		out = append(out, m.msg.Type)
	}
	return out
}

type fakeCache struct {
	mu          sync.Mutex
	views       map[int][]byte
	invalidated []int
	getErr      error
}

func newFakeCache() *fakeCache { return &fakeCache{views: map[int][]byte{}} }

func (c *fakeCache) Get(ctx context.Context, id int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.views[id], nil
}

func (c *fakeCache) Set(ctx context.Context, id int, view []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[id] = view
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (u *fakeUploader) Upload(ctx context.Context, key, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.objects == nil {
		u.objects = map[string][]byte{}
	}
	u.objects[key] = buf.Bytes()
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *fakeUploader) Delete(ctx context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.objects, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string { return "https://archive.test/" + key }
