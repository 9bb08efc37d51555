package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"crosspay/go-backend/pkg/models"
)

// Provisioner derives and caches exactly one smart account per owner address.
//
// Concurrent EnsureAccount calls for the same owner coalesce into the single
// outstanding provisioning request; provisioning is not idempotent-safe to
// fire twice. A failed attempt resets to uninitialized so the caller may try
// again; there is no automatic retry.
type Provisioner struct {
	svc AccountService

	group singleflight.Group

	mu      sync.RWMutex
	state   models.ProvisioningState
	account *models.SmartAccount
}

func NewProvisioner(svc AccountService) *Provisioner {
	return &Provisioner{svc: svc, state: models.ProvisioningUninitialized}
}

func (p *Provisioner) State() models.ProvisioningState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Cached returns the provisioned account for the owner without any external
// call, if one exists.
func (p *Provisioner) Cached(ownerAddress string) (models.SmartAccount, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.account == nil || !models.SameAddress(p.account.OwnerAddress, ownerAddress) {
		return models.SmartAccount{}, false
	}
	return *p.account, true
}

// EnsureAccount returns the cached account for the owner, or provisions one.
// The provider is called at most once regardless of how many callers arrive
// while the request is outstanding; all of them observe the same result.
func (p *Provisioner) EnsureAccount(ctx context.Context, ownerAddress string) (models.SmartAccount, error) {
	if account, ok := p.Cached(ownerAddress); ok {
		return account, nil
	}

	key := strings.ToLower(strings.TrimSpace(ownerAddress))
	v, err, _ := p.group.Do(key, func() (any, error) {
		if account, ok := p.Cached(ownerAddress); ok {
			return account, nil
		}
		p.setState(models.ProvisioningInFlight)
		account, err := p.svc.CreateSmartAccount(ctx, ownerAddress)
		if err != nil {
			p.setState(models.ProvisioningUninitialized)
			return nil, wrapStage(StageProvision, fmt.Errorf("%w: %s", ErrProvisioningFailed, err))
		}
		p.store(account)
		return account, nil
	})
	if err != nil {
		return models.SmartAccount{}, err
	}
	return v.(models.SmartAccount), nil
}

// Reset drops the cached account, typically on session teardown.
func (p *Provisioner) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.account = nil
	p.state = models.ProvisioningUninitialized
}

func (p *Provisioner) setState(state models.ProvisioningState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
}

func (p *Provisioner) store(account models.SmartAccount) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := account
	p.account = &copied
	p.state = models.ProvisioningReady
}
