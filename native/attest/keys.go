package attest

import "fmt"

var (
	recordPrefix       = []byte("attest/record/")
	anomalyPrefix      = []byte("attest/anomaly/")
	revocationPrefix   = []byte("attest/revoked/")
	adminKeyBytes      = []byte("attest/admin")
	feeConfigKeyBytes  = []byte("attest/fees/config")
	bracketsKeyBytes   = []byte("attest/fees/brackets")
	tierDiscountPrefix = []byte("attest/fees/tier/")
	businessTierPrefix = []byte("attest/fees/business-tier/")
	usageCountPrefix   = []byte("attest/fees/count/")
)

func attestationKey(business [20]byte, period string) []byte {
	return []byte(fmt.Sprintf("%s%x/%s", recordPrefix, business, period))
}

func anomalyKey(business [20]byte, period string) []byte {
	return []byte(fmt.Sprintf("%s%x/%s", anomalyPrefix, business, period))
}

func revocationKey(business [20]byte, period string) []byte {
	return []byte(fmt.Sprintf("%s%x/%s", revocationPrefix, business, period))
}

func adminKey() []byte {
	return append([]byte(nil), adminKeyBytes...)
}

func feeConfigKey() []byte {
	return append([]byte(nil), feeConfigKeyBytes...)
}

func bracketsKey() []byte {
	return append([]byte(nil), bracketsKeyBytes...)
}

func tierDiscountKey(tier uint32) []byte {
	return []byte(fmt.Sprintf("%s%d", tierDiscountPrefix, tier))
}

func businessTierKey(business [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", businessTierPrefix, business))
}

func usageCountKey(business [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", usageCountPrefix, business))
}
