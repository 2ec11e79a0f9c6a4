package bonds

import "fmt"

var (
	adminKeyBytes           = []byte("bonds/admin")
	bondCounterKeyBytes     = []byte("bonds/next-id")
	bondPrefix              = []byte("bonds/record/")
	ownerPrefix             = []byte("bonds/owner/")
	redemptionPrefix        = []byte("bonds/redemption/")
	totalRedeemedPrefix     = []byte("bonds/total-redeemed/")
	disputePrefix           = []byte("bonds/dispute/record/")
	disputeCounterKeyBytes  = []byte("bonds/dispute/next-id")
	disputeAttestIdxPrefix  = []byte("bonds/dispute/by-attestation/")
	disputeChallengerPrefix = []byte("bonds/dispute/by-challenger/")
)

func adminKey() []byte {
	return append([]byte(nil), adminKeyBytes...)
}

func bondCounterKey() []byte {
	return append([]byte(nil), bondCounterKeyBytes...)
}

func bondKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", bondPrefix, id))
}

func ownerKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", ownerPrefix, id))
}

func redemptionKey(id uint64, period string) []byte {
	return []byte(fmt.Sprintf("%s%d/%s", redemptionPrefix, id, period))
}

func totalRedeemedKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", totalRedeemedPrefix, id))
}

func disputeKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", disputePrefix, id))
}

func disputeCounterKey() []byte {
	return append([]byte(nil), disputeCounterKeyBytes...)
}

func disputeAttestationIndexKey(business [20]byte, period string) []byte {
	return []byte(fmt.Sprintf("%s%x/%s", disputeAttestIdxPrefix, business, period))
}

func disputeChallengerIndexKey(challenger [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", disputeChallengerPrefix, challenger))
}
