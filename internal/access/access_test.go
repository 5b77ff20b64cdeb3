package access

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func TestOwner(t *testing.T) {
	ctx := context.Background()
	o := NewOwner(alice)

	assert.NoError(t, o.Authorize(ctx, alice, ActionUpdateScore))
	assert.NoError(t, o.Authorize(ctx, alice, ActionSetMarketOutcome))
	assert.ErrorIs(t, o.Authorize(ctx, bob, ActionUpdateScore), domain.ErrUnauthorized)
	assert.ErrorIs(t, o.Authorize(ctx, domain.Account{}, ActionUpdateScore), domain.ErrUnauthorized)
}

func TestOwnerZeroAddressAllowsNobody(t *testing.T) {
	o := NewOwner(domain.Account{})
	assert.ErrorIs(t, o.Authorize(context.Background(), domain.Account{}, ActionUpdateScore), domain.ErrUnauthorized)
}

func TestKeySet(t *testing.T) {
	ctx := context.Background()
	ks := NewKeySet(alice, bob).Grant(carol, ActionSetMarketOutcome)

	assert.NoError(t, ks.Authorize(ctx, alice, ActionUpdateScore))
	assert.NoError(t, ks.Authorize(ctx, bob, ActionSetMarketOutcome))
	assert.NoError(t, ks.Authorize(ctx, carol, ActionSetMarketOutcome))
	assert.ErrorIs(t, ks.Authorize(ctx, carol, ActionUpdateScore), domain.ErrUnauthorized)
}

func TestDenyAll(t *testing.T) {
	err := DenyAll{}.Authorize(context.Background(), alice, ActionUpdateScore)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Contains(t, err.Error(), "update score")
}
