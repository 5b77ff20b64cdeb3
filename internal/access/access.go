// Package access decides which accounts may perform privileged ledger
// actions. The ledger consults a single Authorizer at the entry of every
// privileged operation, so swapping the policy never touches ledger code.
package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// Action names a privileged ledger operation.
type Action string

const (
	ActionSetMarketOutcome Action = "set_market_outcome"
	ActionUpdateScore      Action = "update_score"
)

// Authorizer grants or denies a privileged action to a caller. Denials wrap
// domain.ErrUnauthorized.
type Authorizer interface {
	Authorize(ctx context.Context, caller domain.Account, action Action) error
}

// Owner permits exactly one account.
type Owner struct {
	owner domain.Account
}

// NewOwner returns a single-owner policy.
func NewOwner(owner domain.Account) *Owner {
	return &Owner{owner: owner}
}

func (o *Owner) Authorize(_ context.Context, caller domain.Account, action Action) error {
	if caller == (domain.Account{}) || caller != o.owner {
		return denied(caller, action)
	}
	return nil
}

// Account returns the owner.
func (o *Owner) Account() domain.Account { return o.owner }

// KeySet permits any of a fixed set of accounts, optionally per action.
type KeySet struct {
	any       map[domain.Account]bool
	perAction map[Action]map[domain.Account]bool
}

// NewKeySet returns a policy allowing every listed account all actions.
func NewKeySet(accounts ...domain.Account) *KeySet {
	ks := &KeySet{
		any:       make(map[domain.Account]bool, len(accounts)),
		perAction: make(map[Action]map[domain.Account]bool),
	}
	for _, a := range accounts {
		if a != (domain.Account{}) {
			ks.any[a] = true
		}
	}
	return ks
}

// Grant allows account to perform only the given actions, in addition to
// whatever it is already allowed.
func (k *KeySet) Grant(account domain.Account, actions ...Action) *KeySet {
	if account == (domain.Account{}) {
		return k
	}
	for _, act := range actions {
		m, ok := k.perAction[act]
		if !ok {
			m = make(map[domain.Account]bool)
			k.perAction[act] = m
		}
		m[account] = true
	}
	return k
}

func (k *KeySet) Authorize(_ context.Context, caller domain.Account, action Action) error {
	if k.any[caller] || k.perAction[action][caller] {
		return nil
	}
	return denied(caller, action)
}

// DenyAll rejects every privileged action. It is the policy of a read-only
// deployment with no configured owner.
type DenyAll struct{}

func (DenyAll) Authorize(_ context.Context, caller domain.Account, action Action) error {
	return denied(caller, action)
}

func denied(caller domain.Account, action Action) error {
	return fmt.Errorf("%w: account %s may not %s", domain.ErrUnauthorized,
		caller.Hex(), strings.ReplaceAll(string(action), "_", " "))
}

var (
	_ Authorizer = (*Owner)(nil)
	_ Authorizer = (*KeySet)(nil)
	_ Authorizer = DenyAll{}
)
