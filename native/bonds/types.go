package bonds

import (
	"fmt"
	"math/big"
	"strings"
)

// BondStructure selects the payout formula applied at redemption time.
type BondStructure uint8

const (
	// StructureFixed pays the configured minimum every period regardless of
	// revenue.
	StructureFixed BondStructure = iota
	// StructureRevenueLinked pays a revenue share clamped between the minimum
	// and maximum payment.
	StructureRevenueLinked
	// StructureHybrid pays the minimum plus a revenue share, capped at the
	// maximum payment.
	StructureHybrid
)

// Valid reports whether the structure value is within the supported range.
func (s BondStructure) Valid() bool {
	switch s {
	case StructureFixed, StructureRevenueLinked, StructureHybrid:
		return true
	default:
		return false
	}
}

func (s BondStructure) String() string {
	switch s {
	case StructureFixed:
		return "fixed"
	case StructureRevenueLinked:
		return "revenue_linked"
	case StructureHybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ParseStructure maps the canonical structure names back to their enum values.
func ParseStructure(s string) (BondStructure, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed":
		return StructureFixed, nil
	case "revenue_linked":
		return StructureRevenueLinked, nil
	case "hybrid":
		return StructureHybrid, nil
	default:
		return 0, fmt.Errorf("%w: unknown structure %q", ErrInvalidBond, s)
	}
}

// BondStatus represents the bond lifecycle. FullyRedeemed and Defaulted are
// terminal.
type BondStatus uint8

const (
	BondActive BondStatus = iota
	BondFullyRedeemed
	BondDefaulted
)

// Valid reports whether the status value is within the supported range.
func (s BondStatus) Valid() bool {
	switch s {
	case BondActive, BondFullyRedeemed, BondDefaulted:
		return true
	default:
		return false
	}
}

func (s BondStatus) String() string {
	switch s {
	case BondActive:
		return "active"
	case BondFullyRedeemed:
		return "fully_redeemed"
	case BondDefaulted:
		return "defaulted"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Bond captures the issuance terms and runtime status of a revenue-backed
// bond. All amounts are denominated in the smallest unit of Token.
type Bond struct {
	ID              uint64
	Issuer          [20]byte
	FaceValue       *big.Int
	Structure       BondStructure
	RevenueShareBps uint32
	MinPayment      *big.Int
	MaxPayment      *big.Int
	MaturityPeriods uint32
	Token           string
	Status          BondStatus
	IssuedAt        uint64
}

// Clone returns a deep copy of the bond so callers can safely mutate the copy
// without affecting the stored instance.
func (b *Bond) Clone() *Bond {
	if b == nil {
		return nil
	}
	clone := *b
	clone.FaceValue = cloneBigInt(b.FaceValue)
	clone.MinPayment = cloneBigInt(b.MinPayment)
	clone.MaxPayment = cloneBigInt(b.MaxPayment)
	return &clone
}

// SanitizeBond validates and normalises the supplied bond terms, returning a
// cloned instance. The function does not mutate the original value.
func SanitizeBond(b *Bond) (*Bond, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil bond", ErrInvalidBond)
	}
	clone := b.Clone()
	clone.Token = strings.ToUpper(strings.TrimSpace(clone.Token))
	if clone.Token == "" {
		return nil, fmt.Errorf("%w: token required", ErrInvalidBond)
	}
	if !clone.Structure.Valid() {
		return nil, fmt.Errorf("%w: unknown structure %d", ErrInvalidBond, clone.Structure)
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %d", ErrInvalidBond, clone.Status)
	}
	if clone.FaceValue.Sign() <= 0 {
		return nil, fmt.Errorf("%w: face value must be positive", ErrInvalidBond)
	}
	if clone.RevenueShareBps > bpsDenominator {
		return nil, fmt.Errorf("%w: revenue share bps out of range", ErrInvalidBond)
	}
	if clone.MinPayment.Sign() < 0 {
		return nil, fmt.Errorf("%w: min payment must be non-negative", ErrInvalidBond)
	}
	if clone.MaxPayment.Sign() <= 0 {
		return nil, fmt.Errorf("%w: max payment must be positive", ErrInvalidBond)
	}
	if clone.MaxPayment.Cmp(clone.MinPayment) < 0 {
		return nil, fmt.Errorf("%w: max payment below min payment", ErrInvalidBond)
	}
	if clone.MaturityPeriods == 0 {
		return nil, fmt.Errorf("%w: maturity periods must be positive", ErrInvalidBond)
	}
	return clone, nil
}

// RedemptionRecord is the write-once settlement record for one (bond, period)
// pair. Amount holds the actual post-cap payment, not the nominal one.
type RedemptionRecord struct {
	BondID          uint64
	Period          string
	AttestedRevenue *big.Int
	Amount          *big.Int
	RedeemedAt      uint64
}

// Clone returns a deep copy of the redemption record.
func (r *RedemptionRecord) Clone() *RedemptionRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.AttestedRevenue = cloneBigInt(r.AttestedRevenue)
	clone.Amount = cloneBigInt(r.Amount)
	return &clone
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
