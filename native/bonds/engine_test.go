package bonds_test

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"veritasor/core/state"
	"veritasor/native/bonds"
	"veritasor/storage"
)

type stubAttestations struct {
	existing map[string]bool
	revoked  map[string]bool
}

func newStubAttestations() *stubAttestations {
	return &stubAttestations{
		existing: make(map[string]bool),
		revoked:  make(map[string]bool),
	}
}

func attKey(business [20]byte, period string) string {
	return fmt.Sprintf("%x/%s", business, period)
}

func (s *stubAttestations) add(business [20]byte, period string) {
	s.existing[attKey(business, period)] = true
}

func (s *stubAttestations) revoke(business [20]byte, period string) {
	s.revoked[attKey(business, period)] = true
}

func (s *stubAttestations) HasAttestation(business [20]byte, period string) (bool, error) {
	return s.existing[attKey(business, period)], nil
}

func (s *stubAttestations) IsRevoked(business [20]byte, period string) (bool, error) {
	return s.revoked[attKey(business, period)], nil
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestEngine(t *testing.T) (*bonds.Engine, *state.Manager, *stubAttestations, [20]byte) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	manager := state.NewManager(db)
	if err := manager.RegisterToken("VUSD", "Veritasor USD", 6); err != nil {
		t.Fatalf("register token: %v", err)
	}
	atts := newStubAttestations()
	engine := bonds.NewEngine()
	engine.SetState(manager)
	engine.SetAttestationSource(atts)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	admin := newTestAddress(0xAD)
	if err := engine.Initialize(admin); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return engine, manager, atts, admin
}

func bondTerms(structure bonds.BondStructure, face, min, max int64, shareBps uint32) *bonds.Bond {
	return &bonds.Bond{
		FaceValue:       big.NewInt(face),
		Structure:       structure,
		RevenueShareBps: shareBps,
		MinPayment:      big.NewInt(min),
		MaxPayment:      big.NewInt(max),
		MaturityPeriods: 12,
		Token:           "VUSD",
	}
}

func fund(t *testing.T, manager *state.Manager, addr [20]byte, amount int64) {
	t.Helper()
	if err := manager.SetBalance(addr[:], "VUSD", big.NewInt(amount)); err != nil {
		t.Fatalf("fund %x: %v", addr, err)
	}
}

func TestIssueBondValidation(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	issuer := newTestAddress(0x01)
	owner := newTestAddress(0x02)

	cases := []struct {
		name  string
		mod   func(b *bonds.Bond)
		owner [20]byte
	}{
		{"zero face value", func(b *bonds.Bond) { b.FaceValue = big.NewInt(0) }, owner},
		{"share bps too high", func(b *bonds.Bond) { b.RevenueShareBps = 10_001 }, owner},
		{"negative min payment", func(b *bonds.Bond) { b.MinPayment = big.NewInt(-1) }, owner},
		{"zero max payment", func(b *bonds.Bond) { b.MaxPayment = big.NewInt(0); b.MinPayment = big.NewInt(0) }, owner},
		{"max below min", func(b *bonds.Bond) { b.MinPayment = big.NewInt(10); b.MaxPayment = big.NewInt(5) }, owner},
		{"zero maturity", func(b *bonds.Bond) { b.MaturityPeriods = 0 }, owner},
		{"unregistered token", func(b *bonds.Bond) { b.Token = "DOGE" }, owner},
		{"owner equals issuer", func(b *bonds.Bond) {}, issuer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			terms := bondTerms(bonds.StructureFixed, 1_000_000, 100, 200, 0)
			tc.mod(terms)
			if _, err := engine.IssueBond(issuer, tc.owner, terms); err == nil {
				t.Fatalf("expected issuance to fail")
			}
		})
	}
}

func TestIssueAssignsMonotonicIDs(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	issuer := newTestAddress(0x01)
	owner := newTestAddress(0x02)

	first, err := engine.IssueBond(issuer, owner, bondTerms(bonds.StructureFixed, 1_000_000, 100, 200, 0))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := engine.IssueBond(issuer, owner, bondTerms(bonds.StructureFixed, 1_000_000, 100, 200, 0))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if second != first+1 {
		t.Fatalf("ids not monotonic: %d then %d", first, second)
	}
	bond, ok, err := engine.Bond(first)
	if err != nil || !ok {
		t.Fatalf("bond lookup: ok=%v err=%v", ok, err)
	}
	if bond.Status != bonds.BondActive {
		t.Fatalf("new bond not active: %s", bond.Status)
	}
	total, err := engine.TotalRedeemed(first)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Sign() != 0 {
		t.Fatalf("fresh bond has non-zero total: %s", total)
	}
}

func TestRedeemFixedStructure(t *testing.T) {
	engine, manager, atts, _ := newTestEngine(t)
	issuer := newTestAddress(0x01)
	owner := newTestAddress(0x02)
	fund(t, manager, issuer, 10_000_000)

	id, err := engine.IssueBond(issuer, owner, bondTerms(bonds.StructureFixed, 10_000_000, 500_000, 500_000, 0))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	atts.add(issuer, "2026-01")

	record, err := engine.Redeem(id, "2026-01", big.NewInt(123_456_789))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if record.Amount.Int64() != 500_000 {
		t.Fatalf("fixed redemption = %s, want 500000", record.Amount)
	}
	balance, err := manager.Balance(owner[:], "VUSD")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 500_000 {
		t.Fatalf("owner received %s, want 500000", balance)
	}
}

func TestRedeemRevenueLinkedStructure(t *testing.T) {
	engine, manager, atts, _ := newTestEngine(t)
	issuer := newTestAddress(0x01)
	owner := newTestAddress(0x02)
	fund(t, manager, issuer, 100_000_000)

	id, err := engine.IssueBond(issuer, owner, bondTerms(bonds.StructureRevenueLinked, 50_000_000, 100_000, 1_000_000, 1_000))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := []struct {
		period  string
		revenue int64
		want    int64
	}{
		{"2026-01", 5_000_000, 500_000},   // 10% share within bounds
		{"2026-02", 500_000, 100_000},     // share below min, clamped up
		{"2026-03", 15_000_000, 1_000_000}, // share above max, clamped down
	}
	for _, tc := range cases {
		atts.add(issuer, tc.period)
		record, err := engine.Redeem(id, tc.period, big.NewInt(tc.revenue))
		if err != nil {
			t.Fatalf("redeem %s: %v", tc.period, err)
		}
		if record.Amount.Int64() != tc.want {
			t.Fatalf("period %s: redemption %s, want %d", tc.period, record.Amount, tc.want)
		}
	}
}

func TestRedeemHybridStructure(t *testing.T) {
	engine, manager, atts, _ := newTestEngine(t)
	issuer := newTestAddress(0x01)
	owner := newTestAddress(0x02)
	fund(t, manager, issuer, 10_000_000)

	id, err := engine.IssueBond(issuer, owner, bondTerms(bonds.StructureHybrid, 10_000_000, 200_000, 800_000, 500))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	atts.add(issuer, "2026-01")

	// 5% of 10,000,000 = 500,000 revenue component + 200,000 minimum = 700,000.
	record, err := engine.Redeem(id, "2026-01", big.NewInt(10_000_000))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if record.Amount.Int64() != 700_000 {
		t.Fatalf("hybrid redemption = %s, want 700000", record.Amount)
	}

	// A huge revenue period caps at the max payment.
	atts.add(issuer, "2026-02")
	record, err = engine.Redeem(id, "2026-02", big.NewInt(1_000_000_000))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if record.Amount.Int64() != 800_000 {
		t.Fatalf("hybrid redemption = %s, want 800000", record.Amount)
	}
}

func TestDoubleRedemptionFails(t *testing.T) {
	engine, manager, atts, _ := newTestEngine(t)
	issuer := newTestAddress(0x01)
	owner := newTestAddress(0x02)
	fund(t, manager, issuer, 10_000_000)

	id, err := engine.IssueBond(issuer, owner, bondTerms(bonds.StructureFixed, 10_000_000, 500_000, 500_000, 0))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	atts.add(issuer, "2026-01")

	first, err := engine.Redeem(id, "2026-01", big.NewInt(0))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if _, err := engine.Redeem(id, "2026-01", big.NewInt(0)); !errors.Is(err, bonds.ErrAlreadyRedeemed) {
		t.Fatalf("expected ErrAlreadyRedeemed, got %v", err)
	}

	total, err := engine.TotalRedeemed(id)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Cmp(first.Amount) != 0 {
		t.Fatalf("total changed after failed double redemption: %s", total)
	}
	record, ok, err := engine.Redemption(id, "2026-01")
	if err != nil || !ok {
		t.Fatalf("record: ok=%v err=%v", ok, err)
	}
	if record.Amount.Cmp(first.Amount) != 0 || record.RedeemedAt != first.RedeemedAt {
		t.Fatalf("record changed after failed double redemption: %+v", record)
	}
}

func TestRedeemCanonicalizesPeriod(t *testing.T) {
	engine, manager, atts, _ := newTestEngine(t)
	issuer := newTestAddress(0x01)
	owner := newTestAddress(0x02)
	fund(t, manager, issuer, 10_000_000)

	id, err := engine.IssueBond(issuer, owner, bondTerms(bonds.StructureFixed, 2_000_000, 500_000, 500_000, 0))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	atts.add(issuer, "2026-02")

	first, err := engine.Redeem(id, "2026-02", big.NewInt(0))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	// Whitespace variants of the period map to the same redemption slot; a
	// second attempt must trip the double-payment guard, not pay again.
	for _, variant := range []string{" 2026-02", "2026-02 ", "\t2026-02\n"} {
		if _, err := engine.Redeem(id, variant, big.NewInt(0)); !errors.Is(err, bonds.ErrAlreadyRedeemed) {
			t.Fatalf("period %q: expected ErrAlreadyRedeemed, got %v", variant, err)
		}
	}
	total, err := engine.TotalRedeemed(id)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Cmp(first.Amount) != 0 {
		t.Fatalf("total %s after variant attempts, want %s", total, first.Amount)
	}
	record, ok, err := engine.Redemption(id, " 2026-02")
	if err != nil || !ok {
		t.Fatalf("variant lookup: ok=%v err=%v", ok, err)
	}
	if record.Period != "2026-02" {
		t.Fatalf("stored period %q, want canonical form", record.Period)
	}

	if _, err := engine.Redeem(id, "   ", big.NewInt(0)); !errors.Is(err, bonds.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod for blank period, got %v", err)
	}
}

func TestFaceValueCapAndFullRedemption(t *testing.T) {
	engine, manager, atts, _ := newTestEngine(t)
	issuer := newTestAddress(0x01)
	owner := newTestAddress(0x02)
	fund(t, manager, issuer, 10_000_000)

	id, err := engine.IssueBond(issuer, owner, bondTerms(bonds.StructureFixed, 800_000, 500_000, 500_000, 0))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	for _, period := range []string{"2026-01", "2026-02", "2026-03"} {
		atts.add(issuer, period)
	}

	first, err := engine.Redeem(id, "2026-01", big.NewInt(0))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if first.Amount.Int64() != 500_000 {
		t.Fatalf("first redemption %s, want 500000", first.Amount)
	}

	// The final payment is capped to the 300,000 headroom, not the nominal
	// 500,000, and the bond flips to FullyRedeemed.
	second, err := engine.Redeem(id, "2026-02", big.NewInt(0))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if second.Amount.Int64() != 300_000 {
		t.Fatalf("capped redemption %s, want 300000", second.Amount)
	}
	bond, ok, err := engine.Bond(id)
	if err != nil || !ok {
		t.Fatalf("bond: ok=%v err=%v", ok, err)
	}
	if bond.Status != bonds.BondFullyRedeemed {
		t.Fatalf("expected FullyRedeemed, got %s", bond.Status)
	}
	total, err := engine.TotalRedeemed(id)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Cmp(bond.FaceValue) != 0 {
		t.Fatalf("total %s != face value %s", total, bond.FaceValue)
	}
	remaining, err := engine.RemainingValue(id)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if remaining.Sign() != 0 {
		t.Fatalf("remaining value %s, want 0", remaining)
	}

	if _, err := engine.Redeem(id, "2026-03", big.NewInt(0)); !errors.Is(err, bonds.ErrBondNotActive) {
		t.Fatalf("expected ErrBondNotActive after full redemption, got %v", err)
	}
}

func TestRedeemRequiresValidAttestation(t *testing.T) {
	engine, manager, atts, _ := newTestEngine(t)
	issuer := newTestAddress(0x01)
	owner := newTestAddress(0x02)
	fund(t, manager, issuer, 10_000_000)

	id, err := engine.IssueBond(issuer, owner, bondTerms(bonds.StructureFixed, 10_000_000, 500_000, 500_000, 0))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := engine.Redeem(id, "2026-01", big.NewInt(0)); !errors.Is(err, bonds.ErrAttestationMissing) {
		t.Fatalf("expected ErrAttestationMissing, got %v", err)
	}

	atts.add(issuer, "2026-01")
	atts.revoke(issuer, "2026-01")
	if _, err := engine.Redeem(id, "2026-01", big.NewInt(0)); !errors.Is(err, bonds.ErrAttestationRevoked) {
		t.Fatalf("expected ErrAttestationRevoked, got %v", err)
	}

	if _, err := engine.Redeem(id, "2026-02", big.NewInt(-1)); !errors.Is(err, bonds.ErrInvalidRevenue) {
		t.Fatalf("expected ErrInvalidRevenue, got %v", err)
	}
}

func TestTransferOwnership(t *testing.T) {
	engine, manager, atts, _ := newTestEngine(t)
	issuer := newTestAddress(0x01)
	owner := newTestAddress(0x02)
	buyer := newTestAddress(0x03)
	fund(t, manager, issuer, 10_000_000)

	id, err := engine.IssueBond(issuer, owner, bondTerms(bonds.StructureFixed, 10_000_000, 500_000, 500_000, 0))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := engine.TransferOwnership(id, buyer, owner); !errors.Is(err, bonds.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := engine.TransferOwnership(id, owner, owner); !errors.Is(err, bonds.ErrSelfTransfer) {
		t.Fatalf("expected ErrSelfTransfer, got %v", err)
	}
	if err := engine.TransferOwnership(id, owner, buyer); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	current, ok, err := engine.Owner(id)
	if err != nil || !ok {
		t.Fatalf("owner: ok=%v err=%v", ok, err)
	}
	if current != buyer {
		t.Fatalf("owner not updated: %x", current)
	}

	// Redemption pays the holder of record at call time.
	atts.add(issuer, "2026-01")
	if _, err := engine.Redeem(id, "2026-01", big.NewInt(0)); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	balance, err := manager.Balance(buyer[:], "VUSD")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 500_000 {
		t.Fatalf("new owner received %s, want 500000", balance)
	}
	oldBalance, err := manager.Balance(owner[:], "VUSD")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if oldBalance.Sign() != 0 {
		t.Fatalf("previous owner received %s, want 0", oldBalance)
	}
}

func TestMarkDefaulted(t *testing.T) {
	engine, manager, atts, admin := newTestEngine(t)
	issuer := newTestAddress(0x01)
	owner := newTestAddress(0x02)
	fund(t, manager, issuer, 10_000_000)

	id, err := engine.IssueBond(issuer, owner, bondTerms(bonds.StructureFixed, 10_000_000, 500_000, 500_000, 0))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := engine.MarkDefaulted(owner, id); !errors.Is(err, bonds.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := engine.MarkDefaulted(admin, id); err != nil {
		t.Fatalf("mark defaulted: %v", err)
	}
	bond, ok, err := engine.Bond(id)
	if err != nil || !ok {
		t.Fatalf("bond: ok=%v err=%v", ok, err)
	}
	if bond.Status != bonds.BondDefaulted {
		t.Fatalf("expected Defaulted, got %s", bond.Status)
	}
	if err := engine.MarkDefaulted(admin, id); !errors.Is(err, bonds.ErrBondNotActive) {
		t.Fatalf("expected ErrBondNotActive on double default, got %v", err)
	}

	atts.add(issuer, "2026-01")
	if _, err := engine.Redeem(id, "2026-01", big.NewInt(0)); !errors.Is(err, bonds.ErrBondNotActive) {
		t.Fatalf("expected ErrBondNotActive after default, got %v", err)
	}
}

func TestRedeemInsufficientIssuerBalance(t *testing.T) {
	engine, manager, atts, _ := newTestEngine(t)
	issuer := newTestAddress(0x01)
	owner := newTestAddress(0x02)
	fund(t, manager, issuer, 100) // far below the fixed payment

	id, err := engine.IssueBond(issuer, owner, bondTerms(bonds.StructureFixed, 10_000_000, 500_000, 500_000, 0))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	atts.add(issuer, "2026-01")

	if _, err := engine.Redeem(id, "2026-01", big.NewInt(0)); err == nil {
		t.Fatalf("expected redemption to fail on transfer")
	}
	// Nothing was recorded for the failed attempt.
	if _, ok, err := engine.Redemption(id, "2026-01"); err != nil || ok {
		t.Fatalf("record written despite failed transfer: ok=%v err=%v", ok, err)
	}
	total, err := engine.TotalRedeemed(id)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Sign() != 0 {
		t.Fatalf("total advanced despite failed transfer: %s", total)
	}
}
