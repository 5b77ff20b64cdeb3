package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictionleague/internal/domain"
	"github.com/alanyoungcy/predictionleague/internal/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.LedgerStore { return newTestStore(t) })
}

func TestReopenKeepsState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	who := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	err = s.Atomic(ctx, func(tx domain.LedgerTx) error {
		id, err := tx.AllocateLeagueID(ctx)
		if err != nil {
			return err
		}
		if err := tx.InsertLeague(ctx, domain.League{ID: id, Name: "persisted", Creator: who, Exists: true}); err != nil {
			return err
		}
		return tx.PutScore(ctx, domain.ScoreEntry{LeagueID: id, Participant: who, Score: -625})
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	next, err := s.NextLeagueID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next)

	l, err := s.GetLeague(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "persisted", l.Name)
	assert.Equal(t, who, l.Creator)
	assert.True(t, l.CreatedAt.IsZero())

	score, err := s.GetScore(ctx, 1, who)
	require.NoError(t, err)
	assert.Equal(t, int64(-625), score)
}

func TestMarkResolutionAppliedTwiceFails(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := domain.Key{
		LeagueID:    1,
		MarketID:    common.HexToHash("0x01"),
		Participant: common.HexToAddress("0x00000000000000000000000000000000000000a1"),
	}
	mark := func() error {
		return s.Atomic(ctx, func(tx domain.LedgerTx) error {
			return tx.MarkResolutionApplied(ctx, domain.ResolutionMark{Key: key, Delta: -1})
		})
	}
	require.NoError(t, mark())
	assert.Error(t, mark())
}
