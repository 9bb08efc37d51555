package app

import (
	"sync"
	"time"

	"crosspay/go-backend/pkg/models"
)

// Session is the only process-wide mutable state: the authenticated user's
// linked identities, the optional smart account, and its cached balance.
//
// Every mutation happens strictly after provider confirmation. In-flight
// operations capture the epoch at their start; the epoch changes on teardown,
// so late results against a torn-down session are discarded on resolution.
type Session struct {
	mu            sync.RWMutex
	epoch         uint64
	ready         bool
	authenticated bool
	primary       string
	links         []models.LinkedIdentity
	account       *models.SmartAccount
	balance       *models.Balance
}

func NewSession() *Session {
	return &Session{}
}

// Begin installs provider-confirmed session state. The wallet identity, if
// present, becomes the primary address.
func (s *Session) Begin(ps models.ProviderSession) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.ready = ps.Ready
	s.authenticated = ps.Authenticated
	s.links = append([]models.LinkedIdentity(nil), ps.LinkedIdentities...)
	s.primary = ""
	for _, li := range s.links {
		if li.Kind == models.IdentityKindWallet {
			s.primary = li.ExternalID
			break
		}
	}
	s.account = nil
	s.balance = nil
	return s.epoch
}

// Teardown invalidates the session. Any suspended operation holding an older
// epoch will have its result discarded.
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.ready = false
	s.authenticated = false
	s.primary = ""
	s.links = nil
	s.account = nil
	s.balance = nil
}

func (s *Session) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *Session) PrimaryAddress() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primary, s.primary != ""
}

func (s *Session) Account() (models.SmartAccount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return models.SmartAccount{}, false
	}
	return *s.account, true
}

func (s *Session) Balance() (models.Balance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.balance == nil {
		return models.Balance{}, false
	}
	return *s.balance, true
}

func (s *Session) Links() []models.LinkedIdentity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.LinkedIdentity(nil), s.links...)
}

func (s *Session) LinkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.links)
}

func (s *Session) HasLink(kind models.IdentityKind, externalID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLink(kind, externalID) >= 0
}

// AddLink records a provider-confirmed link. Returns false when the epoch no
// longer matches; the caller must treat the operation as discarded.
func (s *Session) AddLink(epoch uint64, li models.LinkedIdentity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || !s.authenticated {
		return false
	}
	if s.findLink(li.Kind, li.ExternalID) >= 0 {
		return true
	}
	if li.LinkedAt.IsZero() {
		li.LinkedAt = time.Now().UTC()
	}
	s.links = append(s.links, li)
	if li.Kind == models.IdentityKindWallet && s.primary == "" {
		s.primary = li.ExternalID
	}
	return true
}

// RemoveLink records a provider-confirmed unlink under the same epoch rules.
// The size check runs under the same lock as the mutation: a removal that
// would empty the set is refused with ErrLastLinkedIdentity even after
// provider confirmation, so racing unlinks cannot drain the set.
func (s *Session) RemoveLink(epoch uint64, kind models.IdentityKind, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || !s.authenticated {
		return ErrSessionTornDown
	}
	idx := s.findLink(kind, externalID)
	if idx < 0 {
		return nil
	}
	if len(s.links) <= 1 {
		return ErrLastLinkedIdentity
	}
	s.links = append(s.links[:idx], s.links[idx+1:]...)
	if kind == models.IdentityKindWallet && s.primary == externalID {
		s.primary = ""
		s.account = nil
		s.balance = nil
	}
	return nil
}

// SetAccount installs a provisioned smart account if the epoch still matches
// and the owner is still the session's primary address.
func (s *Session) SetAccount(epoch uint64, account models.SmartAccount) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || !s.authenticated {
		return false
	}
	if !models.SameAddress(account.OwnerAddress, s.primary) {
		return false
	}
	copied := account
	s.account = &copied
	return true
}

// SetBalance overwrites the cached balance if the epoch matches and the
// balance belongs to the current smart account. A mismatched address means a
// stale refresh; it is discarded, not applied.
func (s *Session) SetBalance(epoch uint64, scwAddress string, balance models.Balance) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || !s.authenticated {
		return false
	}
	if s.account == nil || !models.SameAddress(s.account.SCWAddress, scwAddress) {
		return false
	}
	copied := balance
	s.balance = &copied
	return true
}

func (s *Session) Snapshot(provisioning models.ProvisioningState) models.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := models.SessionSnapshot{
		Ready:             s.ready,
		Authenticated:     s.authenticated,
		PrimaryAddress:    s.primary,
		LinkedIdentities:  append([]models.LinkedIdentity(nil), s.links...),
		ProvisioningState: provisioning,
	}
	if s.account != nil {
		copied := *s.account
		snap.SmartAccount = &copied
	}
	if s.balance != nil {
		copied := *s.balance
		snap.Balance = &copied
	}
	return snap
}

func (s *Session) findLink(kind models.IdentityKind, externalID string) int {
	for i, li := range s.links {
		if li.Kind == kind && li.ExternalID == externalID {
			return i
		}
	}
	return -1
}
