package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"veritasor/core/state"
	"veritasor/native/attest"
	"veritasor/native/bonds"
	"veritasor/storage"
)

const testAuthToken = "test-secret"

type attestBridge struct {
	engine *attest.Engine
}

func (b attestBridge) HasAttestation(business [20]byte, period string) (bool, error) {
	_, ok, err := b.engine.Get(business, period)
	return ok, err
}

func (b attestBridge) IsRevoked(business [20]byte, period string) (bool, error) {
	return b.engine.IsRevoked(business, period)
}

func testAddressHex(fill byte) string {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = fill
	}
	return fmt.Sprintf("0x%x", raw)
}

func newTestServer(t *testing.T) (*httptest.Server, *state.Manager) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	manager := state.NewManager(db)
	if err := manager.RegisterToken("VUSD", "Veritasor USD", 6); err != nil {
		t.Fatalf("register token: %v", err)
	}

	var admin [20]byte
	for i := range admin {
		admin[i] = 0xAD
	}
	attestEngine := attest.NewEngine()
	attestEngine.SetState(manager)
	if err := attestEngine.Initialize(admin); err != nil {
		t.Fatalf("initialize attest: %v", err)
	}
	bondEngine := bonds.NewEngine()
	bondEngine.SetState(manager)
	bondEngine.SetAttestationSource(attestBridge{engine: attestEngine})
	if err := bondEngine.Initialize(admin); err != nil {
		t.Fatalf("initialize bonds: %v", err)
	}

	server := NewServer(attestEngine, bondEngine, testAuthToken, nil)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return ts, manager
}

func call(t *testing.T, ts *httptest.Server, token, method string, params interface{}) *RPCResponse {
	t.Helper()
	req := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	httpReq, err := http.NewRequest(http.MethodPost, ts.URL+"/", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	decoded := &RPCResponse{}
	if err := json.NewDecoder(resp.Body).Decode(decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return decoded
}

// tryCall mirrors call but reports failures instead of ending the test, so it
// is safe to use from spawned goroutines.
func tryCall(ts *httptest.Server, token, method string, params interface{}) (*RPCResponse, error) {
	req := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequest(http.MethodPost, ts.URL+"/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	decoded := &RPCResponse{}
	if err := json.NewDecoder(resp.Body).Decode(decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

func TestConcurrentDuplicatesSerialized(t *testing.T) {
	ts, manager := newTestServer(t)
	issuer := testAddressHex(0x01)
	owner := testAddressHex(0x02)
	root := "0x" + string(bytes.Repeat([]byte("ab"), 32))

	issuerAddr, err := decodeAddress(issuer)
	if err != nil {
		t.Fatalf("decode issuer: %v", err)
	}
	if err := manager.SetBalance(issuerAddr[:], "VUSD", big.NewInt(10_000_000)); err != nil {
		t.Fatalf("fund issuer: %v", err)
	}

	resp := call(t, ts, testAuthToken, "bonds_issue", bondsIssueParams{
		Issuer:          issuer,
		InitialOwner:    owner,
		FaceValue:       "10000000",
		Structure:       "fixed",
		MinPayment:      "500000",
		MaxPayment:      "500000",
		MaturityPeriods: 12,
		Token:           "VUSD",
	})
	if resp.Error != nil {
		t.Fatalf("issue failed: %+v", resp.Error)
	}
	bondID := uint64(resp.Result.(float64))

	const workers = 8

	// Racing submissions for one (business, period): exactly one may win the
	// write-once slot.
	results := make(chan bool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := tryCall(ts, testAuthToken, "attest_submit", attestSubmitParams{
				Business: issuer, Period: "2026-01", Root: root, Timestamp: 1, Version: 1,
			})
			results <- err == nil && resp.Error == nil
		}()
	}
	wg.Wait()
	close(results)
	successes := 0
	for ok := range results {
		if ok {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("%d concurrent submissions accepted, want exactly 1", successes)
	}

	// Racing redemptions for one (bond, period): exactly one payment.
	results = make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := tryCall(ts, testAuthToken, "bonds_redeem", bondsRedeemParams{
				BondID: bondID, Period: "2026-01", AttestedRevenue: "1000000",
			})
			results <- err == nil && resp.Error == nil
		}()
	}
	wg.Wait()
	close(results)
	successes = 0
	for ok := range results {
		if ok {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("%d concurrent redemptions accepted, want exactly 1", successes)
	}

	resp = call(t, ts, "", "bonds_get", bondsQueryParams{BondID: bondID})
	if resp.Error != nil {
		t.Fatalf("get failed: %+v", resp.Error)
	}
	bond := resp.Result.(map[string]interface{})
	if bond["totalRedeemed"] != "500000" {
		t.Fatalf("totalRedeemed %v after racing redemptions, want 500000", bond["totalRedeemed"])
	}
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}
}

func TestMethodNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := call(t, ts, "", "nope_method", nil)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp.Error)
	}
}

func TestMutatingMethodsRequireAuth(t *testing.T) {
	ts, _ := newTestServer(t)
	params := attestSubmitParams{
		Business:  testAddressHex(0x01),
		Period:    "2026-01",
		Root:      "0x" + string(bytes.Repeat([]byte("ab"), 32)),
		Timestamp: 1,
		Version:   1,
	}
	resp := call(t, ts, "", "attest_submit", params)
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized without token, got %+v", resp.Error)
	}
	resp = call(t, ts, "wrong-token", "attest_submit", params)
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized with bad token, got %+v", resp.Error)
	}
}

func TestAttestSubmitAndGet(t *testing.T) {
	ts, _ := newTestServer(t)
	business := testAddressHex(0x01)
	root := "0x" + string(bytes.Repeat([]byte("ab"), 32))

	resp := call(t, ts, testAuthToken, "attest_submit", attestSubmitParams{
		Business:  business,
		Period:    "2026-01",
		Root:      root,
		Timestamp: 1_700_000_000,
		Version:   1,
	})
	if resp.Error != nil {
		t.Fatalf("submit failed: %+v", resp.Error)
	}

	resp = call(t, ts, "", "attest_get", attestQueryParams{Business: business, Period: "2026-01"})
	if resp.Error != nil {
		t.Fatalf("get failed: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result shape: %T", resp.Result)
	}
	if result["root"] != root {
		t.Fatalf("root mismatch: %v", result["root"])
	}
	if result["revoked"] != false {
		t.Fatalf("fresh attestation marked revoked")
	}

	resp = call(t, ts, "", "attest_verify", attestVerifyParams{Business: business, Period: "2026-01", Root: root})
	if resp.Error != nil || resp.Result != true {
		t.Fatalf("verify failed: result=%v err=%+v", resp.Result, resp.Error)
	}
}

func TestBondLifecycleOverRPC(t *testing.T) {
	ts, manager := newTestServer(t)
	issuer := testAddressHex(0x01)
	owner := testAddressHex(0x02)
	root := "0x" + string(bytes.Repeat([]byte("ab"), 32))

	issuerAddr, err := decodeAddress(issuer)
	if err != nil {
		t.Fatalf("decode issuer: %v", err)
	}
	if err := manager.SetBalance(issuerAddr[:], "VUSD", big.NewInt(10_000_000)); err != nil {
		t.Fatalf("fund issuer: %v", err)
	}

	resp := call(t, ts, testAuthToken, "bonds_issue", bondsIssueParams{
		Issuer:          issuer,
		InitialOwner:    owner,
		FaceValue:       "10000000",
		Structure:       "fixed",
		MinPayment:      "500000",
		MaxPayment:      "500000",
		MaturityPeriods: 12,
		Token:           "VUSD",
	})
	if resp.Error != nil {
		t.Fatalf("issue failed: %+v", resp.Error)
	}
	bondID := uint64(resp.Result.(float64))

	// Redemption needs an attestation from the issuer first.
	resp = call(t, ts, testAuthToken, "bonds_redeem", bondsRedeemParams{
		BondID: bondID, Period: "2026-01", AttestedRevenue: "1000000",
	})
	if resp.Error == nil {
		t.Fatalf("redeem without attestation succeeded")
	}

	resp = call(t, ts, testAuthToken, "attest_submit", attestSubmitParams{
		Business: issuer, Period: "2026-01", Root: root, Timestamp: 1, Version: 1,
	})
	if resp.Error != nil {
		t.Fatalf("submit failed: %+v", resp.Error)
	}
	resp = call(t, ts, testAuthToken, "bonds_redeem", bondsRedeemParams{
		BondID: bondID, Period: "2026-01", AttestedRevenue: "1000000",
	})
	if resp.Error != nil {
		t.Fatalf("redeem failed: %+v", resp.Error)
	}
	record := resp.Result.(map[string]interface{})
	if record["amount"] != "500000" {
		t.Fatalf("redemption amount %v, want 500000", record["amount"])
	}

	resp = call(t, ts, "", "bonds_get", bondsQueryParams{BondID: bondID})
	if resp.Error != nil {
		t.Fatalf("get failed: %+v", resp.Error)
	}
	bond := resp.Result.(map[string]interface{})
	if bond["totalRedeemed"] != "500000" || bond["status"] != "active" {
		t.Fatalf("unexpected bond state: %v", bond)
	}

	// Dispute round trip against the attestation.
	resp = call(t, ts, testAuthToken, "dispute_open", disputeOpenParams{
		Challenger: owner, Business: issuer, Period: "2026-01", Kind: "revenue_overstated",
	})
	if resp.Error != nil {
		t.Fatalf("dispute open failed: %+v", resp.Error)
	}
	disputeID := uint64(resp.Result.(float64))
	resp = call(t, ts, testAuthToken, "dispute_resolve", disputeResolveParams{
		DisputeID: disputeID, Resolver: testAddressHex(0xAD), Outcome: "reversed",
	})
	if resp.Error != nil {
		t.Fatalf("dispute resolve failed: %+v", resp.Error)
	}
	resp = call(t, ts, testAuthToken, "dispute_close", disputeQueryParams{DisputeID: disputeID})
	if resp.Error != nil {
		t.Fatalf("dispute close failed: %+v", resp.Error)
	}
	resp = call(t, ts, "", "dispute_get", disputeQueryParams{DisputeID: disputeID})
	if resp.Error != nil {
		t.Fatalf("dispute get failed: %+v", resp.Error)
	}
	dispute := resp.Result.(map[string]interface{})
	if dispute["status"] != "closed" {
		t.Fatalf("dispute status %v, want closed", dispute["status"])
	}
}
