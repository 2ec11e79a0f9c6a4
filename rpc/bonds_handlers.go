package rpc

import (
	"net/http"

	"veritasor/native/bonds"
	"veritasor/observability/metrics"
)

type bondsIssueParams struct {
	Issuer          string `json:"issuer"`
	InitialOwner    string `json:"initialOwner"`
	FaceValue       string `json:"faceValue"`
	Structure       string `json:"structure"`
	RevenueShareBps uint32 `json:"revenueShareBps"`
	MinPayment      string `json:"minPayment"`
	MaxPayment      string `json:"maxPayment"`
	MaturityPeriods uint32 `json:"maturityPeriods"`
	Token           string `json:"token"`
}

type bondsQueryParams struct {
	BondID uint64 `json:"bondId"`
}

type bondsRedeemParams struct {
	BondID          uint64 `json:"bondId"`
	Period          string `json:"period"`
	AttestedRevenue string `json:"attestedRevenue"`
}

type bondsRedemptionParams struct {
	BondID uint64 `json:"bondId"`
	Period string `json:"period"`
}

type bondsTransferParams struct {
	BondID       uint64 `json:"bondId"`
	CurrentOwner string `json:"currentOwner"`
	NewOwner     string `json:"newOwner"`
}

type bondsDefaultParams struct {
	Caller string `json:"caller"`
	BondID uint64 `json:"bondId"`
}

type bondResult struct {
	ID              uint64 `json:"id"`
	Issuer          string `json:"issuer"`
	Owner           string `json:"owner"`
	FaceValue       string `json:"faceValue"`
	Structure       string `json:"structure"`
	RevenueShareBps uint32 `json:"revenueShareBps"`
	MinPayment      string `json:"minPayment"`
	MaxPayment      string `json:"maxPayment"`
	MaturityPeriods uint32 `json:"maturityPeriods"`
	Token           string `json:"token"`
	Status          string `json:"status"`
	IssuedAt        uint64 `json:"issuedAt"`
	TotalRedeemed   string `json:"totalRedeemed"`
	RemainingValue  string `json:"remainingValue"`
}

type redemptionResult struct {
	BondID          uint64 `json:"bondId"`
	Period          string `json:"period"`
	AttestedRevenue string `json:"attestedRevenue"`
	Amount          string `json:"amount"`
	RedeemedAt      uint64 `json:"redeemedAt"`
}

func formatRedemption(record *bonds.RedemptionRecord) redemptionResult {
	return redemptionResult{
		BondID:          record.BondID,
		Period:          record.Period,
		AttestedRevenue: formatAmount(record.AttestedRevenue),
		Amount:          formatAmount(record.Amount),
		RedeemedAt:      record.RedeemedAt,
	}
}

func (s *Server) handleBondsIssue(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params bondsIssueParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	issuer, err := decodeAddress(params.Issuer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid issuer address", err.Error())
		return
	}
	owner, err := decodeAddress(params.InitialOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid initialOwner address", err.Error())
		return
	}
	structure, err := bonds.ParseStructure(params.Structure)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid structure", err.Error())
		return
	}
	faceValue, err := parseAmount(params.FaceValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid faceValue", err.Error())
		return
	}
	minPayment, err := parseAmount(params.MinPayment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid minPayment", err.Error())
		return
	}
	maxPayment, err := parseAmount(params.MaxPayment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid maxPayment", err.Error())
		return
	}
	terms := &bonds.Bond{
		FaceValue:       faceValue,
		Structure:       structure,
		RevenueShareBps: params.RevenueShareBps,
		MinPayment:      minPayment,
		MaxPayment:      maxPayment,
		MaturityPeriods: params.MaturityPeriods,
		Token:           params.Token,
	}
	id, err := s.bonds.IssueBond(issuer, owner, terms)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "issuance rejected", err.Error())
		return
	}
	writeResult(w, req.ID, id)
}

func (s *Server) handleBondsGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params bondsQueryParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	bond, ok, err := s.bonds.Bond(params.BondID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load bond", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "bond not found", params.BondID)
		return
	}
	owner, _, err := s.bonds.Owner(params.BondID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load owner", err.Error())
		return
	}
	total, err := s.bonds.TotalRedeemed(params.BondID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load total", err.Error())
		return
	}
	remaining, err := s.bonds.RemainingValue(params.BondID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load remaining value", err.Error())
		return
	}
	writeResult(w, req.ID, bondResult{
		ID:              bond.ID,
		Issuer:          formatAddress(bond.Issuer),
		Owner:           formatAddress(owner),
		FaceValue:       formatAmount(bond.FaceValue),
		Structure:       bond.Structure.String(),
		RevenueShareBps: bond.RevenueShareBps,
		MinPayment:      formatAmount(bond.MinPayment),
		MaxPayment:      formatAmount(bond.MaxPayment),
		MaturityPeriods: bond.MaturityPeriods,
		Token:           bond.Token,
		Status:          bond.Status.String(),
		IssuedAt:        bond.IssuedAt,
		TotalRedeemed:   formatAmount(total),
		RemainingValue:  formatAmount(remaining),
	})
}

func (s *Server) handleBondsRedeem(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params bondsRedeemParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	revenue, err := parseAmount(params.AttestedRevenue)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid attestedRevenue", err.Error())
		return
	}
	record, err := s.bonds.Redeem(params.BondID, params.Period, revenue)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "redemption rejected", err.Error())
		return
	}
	metrics.RedemptionSettled()
	writeResult(w, req.ID, formatRedemption(record))
}

func (s *Server) handleBondsRedemption(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params bondsRedemptionParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	record, ok, err := s.bonds.Redemption(params.BondID, params.Period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load redemption", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "redemption not found", nil)
		return
	}
	writeResult(w, req.ID, formatRedemption(record))
}

func (s *Server) handleBondsTransferOwnership(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params bondsTransferParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	currentOwner, err := decodeAddress(params.CurrentOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid currentOwner address", err.Error())
		return
	}
	newOwner, err := decodeAddress(params.NewOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid newOwner address", err.Error())
		return
	}
	if err := s.bonds.TransferOwnership(params.BondID, currentOwner, newOwner); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "transfer rejected", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleBondsMarkDefaulted(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params bondsDefaultParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.bonds.MarkDefaulted(caller, params.BondID); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "default rejected", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}
