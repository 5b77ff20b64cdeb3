package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

const (
	devKey    = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddr   = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	aliceAddr = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	rainCond  = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

const rainMarket = `[{
	"id": "501",
	"question": "Will it rain in London on Nov 1?",
	"conditionId": "` + rainCond + `",
	"slug": "rain-london-nov-1",
	"endDate": "2026-11-01T00:00:00Z",
	"active": true,
	"closed": false,
	"outcomes": "[\"Yes\",\"No\"]",
	"outcomePrices": "[\"0.62\",\"0.38\"]",
	"volume": "1234.5"
}]`

// setupEnv points leaguebot at a temporary sqlite ledger and a fake Gamma
// API that knows one market.
func setupEnv(t *testing.T) {
	t.Helper()
	gamma := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if id := r.URL.Query().Get("condition_ids"); id != "" && id != rainCond {
			_, _ = w.Write([]byte("[]"))
			return
		}
		_, _ = w.Write([]byte(rainMarket))
	}))
	t.Cleanup(gamma.Close)

	t.Setenv("LEAGUE_STORE_DRIVER", "sqlite")
	t.Setenv("LEAGUE_SQLITE_PATH", filepath.Join(t.TempDir(), "league.db"))
	t.Setenv("LEAGUE_WALLET_PRIVATE_KEY", devKey)
	t.Setenv("LEAGUE_GAMMA_HOST", gamma.URL)
	t.Setenv("LEAGUE_REDIS_ENABLED", "false")
	t.Setenv("LEAGUE_S3_ENABLED", "false")
	for _, k := range []string{envLeagueID, envMarketID, envWinningOutcome, envParticipants} {
		t.Setenv(k, "")
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	c := newCLI(&out, &logs)
	root := c.root()
	root.SetArgs(append([]string{"--config", ""}, args...))
	err := root.ExecuteContext(context.Background())
	c.close()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "leaguebot %v", args)
	return out
}

func TestLeagueLifecycle(t *testing.T) {
	setupEnv(t)

	assert.Contains(t, mustRun(t, "league", "create", "weekly"), "league 1 created: weekly")
	assert.Contains(t, mustRun(t, "league", "list"), "weekly")
	assert.Contains(t, mustRun(t, "league", "get", "1"), devAddr)

	mustRun(t, "predict", "submit", "--league", "1", "--market", "m1", "--forecast", "75")
	assert.Contains(t, mustRun(t, "predict", "get", "--league", "1", "--market", "m1", "--participant", devAddr), "75%")

	out := mustRun(t, "resolve", "--league", "1", "--market", "m1", "--outcome", "yes",
		"--participants", devAddr+","+aliceAddr)
	assert.Contains(t, out, "oracle:    outcome recorded")
	assert.Contains(t, out, "-625")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "resolution complete")
	assert.Contains(t, out, "warning: deltas are not recorded")
	assert.Contains(t, out, "market context unavailable")

	assert.Equal(t, "-625\n", mustRun(t, "score", "get", "--league", "1", "--participant", devAddr))
	assert.Contains(t, mustRun(t, "outcome", "get", "--market", "m1"), "yes")

	board := mustRun(t, "score", "board", "--league", "1", "--markets", "m1")
	assert.Contains(t, board, "m1 (yes)")
	assert.Contains(t, board, "75%")

	events := mustRun(t, "events")
	for _, want := range []string{"league_created", "prediction_submitted", "market_resolved", "score_updated"} {
		assert.Contains(t, events, want)
	}
}

func TestResolveIdempotentRerun(t *testing.T) {
	setupEnv(t)
	mustRun(t, "league", "create", "weekly")
	mustRun(t, "predict", "submit", "--league", "1", "--market", rainCond, "--forecast", "25")

	args := []string{"resolve", "--league", "1", "--market", rainCond, "--outcome", "no", "--participants", devAddr, "--idempotent"}
	first := mustRun(t, args...)
	assert.Contains(t, first, "Will it rain in London on Nov 1?")
	assert.Contains(t, first, "Yes=0.620, No=0.380")
	assert.NotContains(t, first, "warning")

	second := mustRun(t, args...)
	assert.Contains(t, second, "already resolved no, write skipped")
	assert.Contains(t, second, "already_applied")

	assert.Equal(t, "-625\n", mustRun(t, "score", "get", "--league", "1", "--participant", devAddr))
}

func TestPrivilegedCommandsNeedOwner(t *testing.T) {
	setupEnv(t)
	t.Setenv("LEAGUE_ACCESS_OWNER", aliceAddr)

	_, err := run(t, "outcome", "set", "--market", "m1", "--outcome", "yes")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = run(t, "score", "update", "--league", "1", "--participant", aliceAddr, "--delta", "5")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestMarketsCommand(t *testing.T) {
	setupEnv(t)

	out := mustRun(t, "markets", "--status", "all", "--end-date-min", "2026-10-01")
	assert.Contains(t, out, rainCond)
	assert.Contains(t, out, "62.0")
	assert.Contains(t, out, "open")

	show := mustRun(t, "markets", "show", rainCond)
	assert.Contains(t, show, "rain-london-nov-1")
	assert.Contains(t, show, "Yes / No")

	_, err := run(t, "markets", "--end-date-min", "tomorrow")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestOptionalBackendsDisabled(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "events", "--stream")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = run(t, "reports", "list", "--league", "1")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestResolveRequest(t *testing.T) {
	env := map[string]string{
		envLeagueID:       "7",
		envMarketID:       "m9",
		envWinningOutcome: "NO",
		envParticipants:   aliceAddr + ", " + devAddr,
	}
	getenv := func(k string) string { return env[k] }

	t.Run("env fallbacks", func(t *testing.T) {
		req, err := resolveFlags{}.request(getenv)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), req.LeagueID)
		assert.False(t, req.WinningOutcome)
		assert.Equal(t, []domain.Account{common.HexToAddress(aliceAddr), common.HexToAddress(devAddr)}, req.Participants)
	})

	t.Run("flags win", func(t *testing.T) {
		req, err := resolveFlags{league: "3", outcome: "yes", participants: aliceAddr}.request(getenv)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), req.LeagueID)
		assert.True(t, req.WinningOutcome)
		assert.Len(t, req.Participants, 1)
	})

	tests := []struct {
		name  string
		flags resolveFlags
		env   map[string]string
		want  string
	}{
		{"missing league", resolveFlags{market: "m", outcome: "yes", participants: aliceAddr}, nil, "league id required"},
		{"bad league", resolveFlags{league: "-1", market: "m", outcome: "yes", participants: aliceAddr}, nil, "not an unsigned integer"},
		{"missing market", resolveFlags{league: "1", outcome: "yes", participants: aliceAddr}, nil, "market id required"},
		{"missing outcome", resolveFlags{league: "1", market: "m", participants: aliceAddr}, nil, "winning outcome required"},
		{"bad outcome", resolveFlags{league: "1", market: "m", outcome: "maybe", participants: aliceAddr}, nil, "maybe"},
		{"empty participants", resolveFlags{league: "1", market: "m", outcome: "yes", participants: " , "}, nil, "participant list is empty"},
		{"bad participant", resolveFlags{league: "1", market: "m", outcome: "yes", participants: "bob"}, nil, "bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.flags.request(func(k string) string { return tt.env[k] })
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
