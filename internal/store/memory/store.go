// Package memory is an in-process domain.LedgerStore. Writes are staged in a
// transaction overlay and merged under a single lock, so they are atomic and
// totally ordered. State is lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

type state struct {
	nextLeagueID uint64
	leagues      map[uint64]domain.League
	predictions  map[domain.Key]domain.Prediction
	outcomes     map[domain.MarketID]domain.MarketOutcome
	scores       map[domain.Key]domain.ScoreEntry
	applied      map[domain.Key]domain.ResolutionMark
	events       []domain.Event
}

func newState() *state {
	return &state{
		nextLeagueID: 1,
		leagues:      make(map[uint64]domain.League),
		predictions:  make(map[domain.Key]domain.Prediction),
		outcomes:     make(map[domain.MarketID]domain.MarketOutcome),
		scores:       make(map[domain.Key]domain.ScoreEntry),
		applied:      make(map[domain.Key]domain.ResolutionMark),
	}
}

// Store implements domain.LedgerStore in memory.
type Store struct {
	mu    sync.RWMutex
	state *state
}

// New returns an empty store whose first league id is 1.
func New() *Store {
	return &Store{state: newState()}
}

// Atomic runs fn against a staged view of the store and merges the staged
// writes only if fn returns nil. fn's error is returned unchanged.
func (s *Store) Atomic(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := newTx(s.state)
	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (s *Store) NextLeagueID(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.nextLeagueID, nil
}

func (s *Store) GetLeague(_ context.Context, id uint64) (domain.League, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLeague(s.state.leagues, nil, id)
}

func (s *Store) ListLeagues(_ context.Context) ([]domain.League, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listLeagues(s.state.leagues, nil), nil
}

func (s *Store) GetPrediction(_ context.Context, leagueID uint64, marketID domain.MarketID, participant domain.Account) (domain.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.predictions[domain.Key{LeagueID: leagueID, MarketID: marketID, Participant: participant}], nil
}

func (s *Store) GetMarketOutcome(_ context.Context, marketID domain.MarketID) (domain.MarketOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.outcomes[marketID], nil
}

func (s *Store) GetScore(_ context.Context, leagueID uint64, participant domain.Account) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.scores[scoreKey(leagueID, participant)].Score, nil
}

func (s *Store) ListScores(_ context.Context, leagueID uint64) ([]domain.ScoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listScores(s.state.scores, nil, leagueID), nil
}

func (s *Store) ResolutionApplied(_ context.Context, key domain.Key) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state.applied[key]
	return ok, nil
}

func (s *Store) ListEvents(_ context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.state.events
	if opts.Offset > 0 {
		if opts.Offset >= len(events) {
			return nil, nil
		}
		events = events[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(events) {
		events = events[:opts.Limit]
	}
	out := make([]domain.Event, len(events))
	copy(out, events)
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// tx stages writes on top of the committed state.
type tx struct {
	base         *state
	nextLeagueID uint64
	leagues      map[uint64]domain.League
	predictions  map[domain.Key]domain.Prediction
	outcomes     map[domain.MarketID]domain.MarketOutcome
	scores       map[domain.Key]domain.ScoreEntry
	applied      map[domain.Key]domain.ResolutionMark
	events       []domain.Event
}

func newTx(base *state) *tx {
	return &tx{
		base:         base,
		nextLeagueID: base.nextLeagueID,
		leagues:      make(map[uint64]domain.League),
		predictions:  make(map[domain.Key]domain.Prediction),
		outcomes:     make(map[domain.MarketID]domain.MarketOutcome),
		scores:       make(map[domain.Key]domain.ScoreEntry),
		applied:      make(map[domain.Key]domain.ResolutionMark),
	}
}

func (t *tx) commit() {
	b := t.base
	b.nextLeagueID = t.nextLeagueID
	for k, v := range t.leagues {
		b.leagues[k] = v
	}
	for k, v := range t.predictions {
		b.predictions[k] = v
	}
	for k, v := range t.outcomes {
		b.outcomes[k] = v
	}
	for k, v := range t.scores {
		b.scores[k] = v
	}
	for k, v := range t.applied {
		b.applied[k] = v
	}
	for _, ev := range t.events {
		ev.Seq = int64(len(b.events) + 1)
		b.events = append(b.events, ev)
	}
}

func (t *tx) NextLeagueID(_ context.Context) (uint64, error) {
	return t.nextLeagueID, nil
}

func (t *tx) GetLeague(_ context.Context, id uint64) (domain.League, error) {
	return getLeague(t.base.leagues, t.leagues, id)
}

func (t *tx) ListLeagues(_ context.Context) ([]domain.League, error) {
	return listLeagues(t.base.leagues, t.leagues), nil
}

func (t *tx) GetPrediction(_ context.Context, leagueID uint64, marketID domain.MarketID, participant domain.Account) (domain.Prediction, error) {
	k := domain.Key{LeagueID: leagueID, MarketID: marketID, Participant: participant}
	if p, ok := t.predictions[k]; ok {
		return p, nil
	}
	return t.base.predictions[k], nil
}

func (t *tx) GetMarketOutcome(_ context.Context, marketID domain.MarketID) (domain.MarketOutcome, error) {
	if o, ok := t.outcomes[marketID]; ok {
		return o, nil
	}
	return t.base.outcomes[marketID], nil
}

func (t *tx) GetScore(_ context.Context, leagueID uint64, participant domain.Account) (int64, error) {
	k := scoreKey(leagueID, participant)
	if s, ok := t.scores[k]; ok {
		return s.Score, nil
	}
	return t.base.scores[k].Score, nil
}

func (t *tx) ListScores(_ context.Context, leagueID uint64) ([]domain.ScoreEntry, error) {
	return listScores(t.base.scores, t.scores, leagueID), nil
}

func (t *tx) ResolutionApplied(_ context.Context, key domain.Key) (bool, error) {
	if _, ok := t.applied[key]; ok {
		return true, nil
	}
	_, ok := t.base.applied[key]
	return ok, nil
}

func (t *tx) AllocateLeagueID(_ context.Context) (uint64, error) {
	id := t.nextLeagueID
	t.nextLeagueID++
	return id, nil
}

func (t *tx) InsertLeague(_ context.Context, league domain.League) error {
	if _, err := getLeague(t.base.leagues, t.leagues, league.ID); err == nil {
		return fmt.Errorf("memory: insert league %d: already exists", league.ID)
	}
	t.leagues[league.ID] = league
	return nil
}

func (t *tx) PutPrediction(_ context.Context, p domain.Prediction) error {
	t.predictions[p.Key()] = p
	return nil
}

func (t *tx) PutMarketOutcome(_ context.Context, o domain.MarketOutcome) error {
	t.outcomes[o.MarketID] = o
	return nil
}

func (t *tx) PutScore(_ context.Context, s domain.ScoreEntry) error {
	t.scores[scoreKey(s.LeagueID, s.Participant)] = s
	return nil
}

func (t *tx) MarkResolutionApplied(_ context.Context, mark domain.ResolutionMark) error {
	t.applied[mark.Key] = mark
	return nil
}

func (t *tx) AppendEvent(_ context.Context, ev domain.Event) error {
	t.events = append(t.events, ev)
	return nil
}

func scoreKey(leagueID uint64, participant domain.Account) domain.Key {
	return domain.Key{LeagueID: leagueID, Participant: participant}
}

func getLeague(base, staged map[uint64]domain.League, id uint64) (domain.League, error) {
	if l, ok := staged[id]; ok {
		return l, nil
	}
	if l, ok := base[id]; ok {
		return l, nil
	}
	return domain.League{}, fmt.Errorf("memory: league %d: %w", id, domain.ErrNotFound)
}

func listLeagues(base, staged map[uint64]domain.League) []domain.League {
	out := make([]domain.League, 0, len(base)+len(staged))
	for id, l := range base {
		if _, ok := staged[id]; !ok {
			out = append(out, l)
		}
	}
	for _, l := range staged {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func listScores(base, staged map[domain.Key]domain.ScoreEntry, leagueID uint64) []domain.ScoreEntry {
	var out []domain.ScoreEntry
	for k, s := range base {
		if k.LeagueID != leagueID {
			continue
		}
		if _, ok := staged[k]; !ok {
			out = append(out, s)
		}
	}
	for k, s := range staged {
		if k.LeagueID == leagueID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Participant.Hex() < out[j].Participant.Hex()
	})
	return out
}

var (
	_ domain.LedgerStore = (*Store)(nil)
	_ domain.LedgerTx    = (*tx)(nil)
)
