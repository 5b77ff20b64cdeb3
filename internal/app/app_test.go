package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictionleague/internal/access"
	"github.com/alanyoungcy/predictionleague/internal/config"
	"github.com/alanyoungcy/predictionleague/internal/domain"
	"github.com/alanyoungcy/predictionleague/internal/resolution"
)

const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	devAddr   = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	aliceAddr = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	gamma := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	t.Cleanup(gamma.Close)

	cfg := config.Defaults()
	cfg.Store.Driver = config.DriverMemory
	cfg.Wallet.PrivateKey = devKey
	cfg.Gamma.Host = gamma.URL
	return &cfg
}

func marketID(t *testing.T, label string) domain.MarketID {
	t.Helper()
	id, err := domain.MarketIDFromLabel(label)
	require.NoError(t, err)
	return id
}

func TestWireMemoryStore(t *testing.T) {
	ctx := context.Background()
	deps, cleanup, err := Wire(ctx, memoryConfig(t), quietLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, devAddr, deps.Operator)
	require.NotNil(t, deps.Signer)
	assert.Nil(t, deps.Archive)
	assert.Nil(t, deps.Events)
	assert.False(t, deps.Notifier.Enabled())

	id, err := deps.Ledger.CreateLeague(ctx, deps.Operator, "weekly")
	require.NoError(t, err)
	market := marketID(t, "m1")
	require.NoError(t, deps.Ledger.SubmitPrediction(ctx, aliceAddr, id, market, 75))

	// The provider knows no such market; the lookup is advisory.
	report, err := deps.Engine.Resolve(ctx, resolution.Request{
		LeagueID:       id,
		MarketID:       market,
		WinningOutcome: true,
		Participants:   []domain.Account{aliceAddr},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(resolution.StatusScored))

	score, err := deps.Ledger.GetScore(ctx, id, aliceAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(-625), score)
}

func TestWireBadKey(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Wallet.PrivateKey = "0xnothex"
	_, _, err := Wire(context.Background(), cfg, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wire: wallet")
}

func TestWireUnknownDriver(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Store.Driver = "mongo"
	_, _, err := Wire(context.Background(), cfg, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestWireWithoutWalletDeniesWrites(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig(t)
	cfg.Wallet.PrivateKey = ""

	deps, cleanup, err := Wire(ctx, cfg, quietLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, domain.Account{}, deps.Operator)
	_, err = deps.Ledger.SetMarketOutcome(ctx, aliceAddr, marketID(t, "m1"), true)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthorizer(t *testing.T) {
	ctx := context.Background()
	bob := common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")

	tests := []struct {
		name     string
		cfg      config.AccessConfig
		operator domain.Account
		allowed  []domain.Account
		denied   []domain.Account
	}{
		{
			name:     "operator is owner",
			operator: devAddr,
			allowed:  []domain.Account{devAddr},
			denied:   []domain.Account{aliceAddr},
		},
		{
			name:     "explicit owner replaces operator",
			cfg:      config.AccessConfig{Owner: aliceAddr.Hex()},
			operator: devAddr,
			allowed:  []domain.Account{aliceAddr},
			denied:   []domain.Account{devAddr},
		},
		{
			name:     "operators extend owner",
			cfg:      config.AccessConfig{Operators: []string{bob.Hex()}},
			operator: devAddr,
			allowed:  []domain.Account{devAddr, bob},
			denied:   []domain.Account{aliceAddr},
		},
		{
			name:   "nobody configured",
			denied: []domain.Account{devAddr, {}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := authorizer(tt.cfg, tt.operator)
			require.NoError(t, err)
			for _, a := range tt.allowed {
				assert.NoError(t, auth.Authorize(ctx, a, access.ActionUpdateScore), a.Hex())
			}
			for _, a := range tt.denied {
				assert.ErrorIs(t, auth.Authorize(ctx, a, access.ActionUpdateScore), domain.ErrUnauthorized, a.Hex())
			}
		})
	}
}

func TestAuthorizerRejectsBadAddresses(t *testing.T) {
	_, err := authorizer(config.AccessConfig{Owner: "alice"}, devAddr)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = authorizer(config.AccessConfig{Operators: []string{"0x12"}}, devAddr)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestAppOpenClose(t *testing.T) {
	a := New(memoryConfig(t), quietLogger())
	deps, err := a.Open(context.Background())
	require.NoError(t, err)

	again, err := a.Open(context.Background())
	require.NoError(t, err)
	assert.Same(t, deps, again)

	a.Close()
	a.Close()
}
