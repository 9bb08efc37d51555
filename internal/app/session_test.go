package app

import (
	"errors"
	"testing"

	"crosspay/go-backend/pkg/models"
)

func beginWalletSession(s *Session) uint64 {
	return s.Begin(models.ProviderSession{
		Ready:         true,
		Authenticated: true,
		LinkedIdentities: []models.LinkedIdentity{
			{Kind: models.IdentityKindWallet, ExternalID: testOwner},
		},
	})
}

func TestSessionBeginPicksWalletAsPrimary(t *testing.T) {
	s := NewSession()
	s.Begin(models.ProviderSession{
		Ready:         true,
		Authenticated: true,
		LinkedIdentities: []models.LinkedIdentity{
			{Kind: models.IdentityKindEmail, ExternalID: "user@example.com"},
			{Kind: models.IdentityKindWallet, ExternalID: testOwner},
		},
	})

	primary, ok := s.PrimaryAddress()
	if !ok || primary != testOwner {
		t.Fatalf("expected primary %q, got %q (ok=%v)", testOwner, primary, ok)
	}
	if s.LinkCount() != 2 {
		t.Fatalf("expected 2 links, got %d", s.LinkCount())
	}
}

func TestSessionTeardownBumpsEpoch(t *testing.T) {
	s := NewSession()
	epoch := beginWalletSession(s)

	s.Teardown()

	if s.Epoch() == epoch {
		t.Fatal("expected epoch to advance on teardown")
	}
	if s.Authenticated() {
		t.Fatal("expected unauthenticated session after teardown")
	}
	if _, ok := s.PrimaryAddress(); ok {
		t.Fatal("expected no primary address after teardown")
	}
}

func TestSessionAddLinkRejectsStaleEpoch(t *testing.T) {
	s := NewSession()
	epoch := beginWalletSession(s)
	s.Teardown()

	added := s.AddLink(epoch, models.LinkedIdentity{
		Kind: models.IdentityKindEmail, ExternalID: "user@example.com",
	})
	if added {
		t.Fatal("expected a stale-epoch link to be discarded")
	}
	if s.LinkCount() != 0 {
		t.Fatalf("expected 0 links, got %d", s.LinkCount())
	}
}

func TestSessionSetAccountRequiresMatchingOwner(t *testing.T) {
	s := NewSession()
	epoch := beginWalletSession(s)

	other := "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
	if s.SetAccount(epoch, models.SmartAccount{OwnerAddress: other, SCWAddress: testSCW}) {
		t.Fatal("expected an account for a different owner to be rejected")
	}
	if !s.SetAccount(epoch, models.SmartAccount{OwnerAddress: testOwner, SCWAddress: testSCW}) {
		t.Fatal("expected an account for the primary owner to be accepted")
	}
}

func TestSessionSetBalanceRejectsMismatchedAddress(t *testing.T) {
	s := NewSession()
	epoch := beginWalletSession(s)
	if !s.SetAccount(epoch, models.SmartAccount{OwnerAddress: testOwner, SCWAddress: testSCW}) {
		t.Fatal("SetAccount failed")
	}

	if s.SetBalance(epoch, "0x8617E340B3D01FA5F11F306F4090FD50E238070D", models.Balance{Amount: "1"}) {
		t.Fatal("expected a balance for another address to be discarded")
	}
	if _, ok := s.Balance(); ok {
		t.Fatal("expected no cached balance")
	}
	if !s.SetBalance(epoch, testSCW, models.Balance{Amount: "10500000"}) {
		t.Fatal("expected matching balance to be accepted")
	}
	balance, ok := s.Balance()
	if !ok || balance.Amount != "10500000" {
		t.Fatalf("unexpected balance: %+v (ok=%v)", balance, ok)
	}
}

func TestSessionRemovePrimaryWalletDropsAccount(t *testing.T) {
	s := NewSession()
	epoch := s.Begin(models.ProviderSession{
		Ready:         true,
		Authenticated: true,
		LinkedIdentities: []models.LinkedIdentity{
			{Kind: models.IdentityKindWallet, ExternalID: testOwner},
			{Kind: models.IdentityKindEmail, ExternalID: "user@example.com"},
		},
	})
	if !s.SetAccount(epoch, models.SmartAccount{OwnerAddress: testOwner, SCWAddress: testSCW}) {
		t.Fatal("SetAccount failed")
	}

	if err := s.RemoveLink(epoch, models.IdentityKindWallet, testOwner); err != nil {
		t.Fatalf("RemoveLink failed: %v", err)
	}
	if _, ok := s.PrimaryAddress(); ok {
		t.Fatal("expected primary address to be cleared")
	}
	if _, ok := s.Account(); ok {
		t.Fatal("expected smart account to be dropped with its owner")
	}
}

func TestSessionRemoveLinkRefusesEmptyingSet(t *testing.T) {
	s := NewSession()
	epoch := s.Begin(models.ProviderSession{
		Ready:         true,
		Authenticated: true,
		LinkedIdentities: []models.LinkedIdentity{
			{Kind: models.IdentityKindWallet, ExternalID: testOwner},
			{Kind: models.IdentityKindEmail, ExternalID: "user@example.com"},
		},
	})

	if err := s.RemoveLink(epoch, models.IdentityKindEmail, "user@example.com"); err != nil {
		t.Fatalf("RemoveLink on a two-identity set: %v", err)
	}
	err := s.RemoveLink(epoch, models.IdentityKindWallet, testOwner)
	if !errors.Is(err, ErrLastLinkedIdentity) {
		t.Fatalf("expected ErrLastLinkedIdentity, got %v", err)
	}
	if got := s.LinkCount(); got != 1 {
		t.Fatalf("link count = %d, want 1", got)
	}
}

func TestSessionSnapshotCopiesState(t *testing.T) {
	s := NewSession()
	epoch := beginWalletSession(s)
	if !s.SetAccount(epoch, models.SmartAccount{OwnerAddress: testOwner, SCWAddress: testSCW}) {
		t.Fatal("SetAccount failed")
	}

	snap := s.Snapshot(models.ProvisioningReady)
	if !snap.Ready || !snap.Authenticated {
		t.Fatalf("unexpected snapshot flags: %+v", snap)
	}
	if snap.SmartAccount == nil || snap.SmartAccount.SCWAddress != testSCW {
		t.Fatalf("unexpected snapshot account: %+v", snap.SmartAccount)
	}
	if snap.ProvisioningState != models.ProvisioningReady {
		t.Fatalf("unexpected provisioning state: %q", snap.ProvisioningState)
	}

	snap.LinkedIdentities[0].ExternalID = "mutated"
	if s.Links()[0].ExternalID != testOwner {
		t.Fatal("snapshot must not alias session state")
	}
}
