package rpc

import (
	"net/http"

	"veritasor/native/attest"
	"veritasor/observability/metrics"
)

type attestSubmitParams struct {
	Business  string `json:"business"`
	Period    string `json:"period"`
	Root      string `json:"root"`
	Timestamp uint64 `json:"timestamp"`
	Version   uint32 `json:"version"`
}

type attestQueryParams struct {
	Business string `json:"business"`
	Period   string `json:"period"`
}

type attestVerifyParams struct {
	Business string `json:"business"`
	Period   string `json:"period"`
	Root     string `json:"root"`
}

type attestRevokeParams struct {
	Caller   string `json:"caller"`
	Business string `json:"business"`
	Period   string `json:"period"`
	Reason   string `json:"reason"`
}

type attestAnomalyParams struct {
	Updater  string `json:"updater"`
	Business string `json:"business"`
	Period   string `json:"period"`
	Flags    uint32 `json:"flags"`
	Score    uint32 `json:"score"`
}

type attestAnalyticsParams struct {
	Caller    string `json:"caller"`
	Analytics string `json:"analytics"`
}

type attestConfigureFeesParams struct {
	Caller    string `json:"caller"`
	Token     string `json:"token"`
	Collector string `json:"collector"`
	BaseFee   string `json:"baseFee"`
	Enabled   bool   `json:"enabled"`
}

type attestFeeEnabledParams struct {
	Caller  string `json:"caller"`
	Enabled bool   `json:"enabled"`
}

type attestTierDiscountParams struct {
	Caller      string `json:"caller"`
	Tier        uint32 `json:"tier"`
	DiscountBps uint32 `json:"discountBps"`
}

type attestBusinessTierParams struct {
	Caller   string `json:"caller"`
	Business string `json:"business"`
	Tier     uint32 `json:"tier"`
}

type attestVolumeBracketsParams struct {
	Caller     string   `json:"caller"`
	Thresholds []uint64 `json:"thresholds"`
	Discounts  []uint32 `json:"discounts"`
}

type attestQuoteParams struct {
	Business string `json:"business"`
}

type attestationResult struct {
	Business  string `json:"business"`
	Period    string `json:"period"`
	Root      string `json:"root"`
	Timestamp uint64 `json:"timestamp"`
	Version   uint32 `json:"version"`
	FeePaid   string `json:"feePaid"`
	Revoked   bool   `json:"revoked"`
}

type anomalyResult struct {
	Business string `json:"business"`
	Period   string `json:"period"`
	Flags    uint32 `json:"flags"`
	Score    uint32 `json:"score"`
}

type feeConfigResult struct {
	Token     string `json:"token"`
	Collector string `json:"collector"`
	BaseFee   string `json:"baseFee"`
	Enabled   bool   `json:"enabled"`
}

func formatAttestation(business [20]byte, period string, att *attest.Attestation, revoked bool) attestationResult {
	return attestationResult{
		Business:  formatAddress(business),
		Period:    period,
		Root:      formatRoot(att.Root),
		Timestamp: att.Timestamp,
		Version:   att.Version,
		FeePaid:   formatAmount(att.FeePaid),
		Revoked:   revoked,
	}
}

func (s *Server) handleAttestSubmit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params attestSubmitParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	business, err := decodeAddress(params.Business)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid business address", err.Error())
		return
	}
	root, err := decodeRoot(params.Root)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid root", err.Error())
		return
	}
	att, err := s.attest.Submit(business, params.Period, root, params.Timestamp, params.Version)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "submission rejected", err.Error())
		return
	}
	metrics.AttestationSubmitted()
	writeResult(w, req.ID, formatAttestation(business, att.Period, att, false))
}

func (s *Server) handleAttestGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params attestQueryParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	business, err := decodeAddress(params.Business)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid business address", err.Error())
		return
	}
	att, ok, err := s.attest.Get(business, params.Period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load attestation", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "attestation not found", nil)
		return
	}
	revoked, err := s.attest.IsRevoked(business, att.Period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load revocation", err.Error())
		return
	}
	writeResult(w, req.ID, formatAttestation(business, att.Period, att, revoked))
}

func (s *Server) handleAttestVerify(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params attestVerifyParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	business, err := decodeAddress(params.Business)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid business address", err.Error())
		return
	}
	root, err := decodeRoot(params.Root)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid root", err.Error())
		return
	}
	matches, err := s.attest.Verify(business, params.Period, root)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "verification failed", err.Error())
		return
	}
	writeResult(w, req.ID, matches)
}

func (s *Server) handleAttestRevoke(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params attestRevokeParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	business, err := decodeAddress(params.Business)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid business address", err.Error())
		return
	}
	if err := s.attest.Revoke(caller, business, params.Period, params.Reason); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "revocation rejected", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleAttestSetAnomaly(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params attestAnomalyParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	updater, err := decodeAddress(params.Updater)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid updater address", err.Error())
		return
	}
	business, err := decodeAddress(params.Business)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid business address", err.Error())
		return
	}
	if err := s.attest.SetAnomaly(updater, business, params.Period, params.Flags, params.Score); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "anomaly update rejected", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleAttestGetAnomaly(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params attestQueryParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	business, err := decodeAddress(params.Business)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid business address", err.Error())
		return
	}
	record, ok, err := s.attest.GetAnomaly(business, params.Period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load anomaly record", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "anomaly record not found", nil)
		return
	}
	writeResult(w, req.ID, anomalyResult{
		Business: formatAddress(business),
		Period:   params.Period,
		Flags:    record.Flags,
		Score:    record.Score,
	})
}

func (s *Server) handleAttestAddAnalytics(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params attestAnalyticsParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	analytics, err := decodeAddress(params.Analytics)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid analytics address", err.Error())
		return
	}
	if err := s.attest.AddAuthorizedAnalytics(caller, analytics); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "authorization rejected", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleAttestRemoveAnalytics(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params attestAnalyticsParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	analytics, err := decodeAddress(params.Analytics)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid analytics address", err.Error())
		return
	}
	if err := s.attest.RemoveAuthorizedAnalytics(caller, analytics); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "deauthorization rejected", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleAttestConfigureFees(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params attestConfigureFeesParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	collector, err := decodeAddress(params.Collector)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collector address", err.Error())
		return
	}
	baseFee, err := parseAmount(params.BaseFee)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid baseFee", err.Error())
		return
	}
	if err := s.attest.ConfigureFees(caller, params.Token, collector, baseFee, params.Enabled); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "fee configuration rejected", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleAttestSetFeeEnabled(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params attestFeeEnabledParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.attest.SetFeeEnabled(caller, params.Enabled); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "fee toggle rejected", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleAttestSetTierDiscount(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params attestTierDiscountParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.attest.SetTierDiscount(caller, params.Tier, params.DiscountBps); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "tier discount rejected", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleAttestSetBusinessTier(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params attestBusinessTierParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	business, err := decodeAddress(params.Business)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid business address", err.Error())
		return
	}
	if err := s.attest.SetBusinessTier(caller, business, params.Tier); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "business tier rejected", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleAttestSetVolumeBrackets(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params attestVolumeBracketsParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.attest.SetVolumeBrackets(caller, params.Thresholds, params.Discounts); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "volume brackets rejected", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleAttestQuoteFee(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params attestQuoteParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	business, err := decodeAddress(params.Business)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid business address", err.Error())
		return
	}
	fee, err := s.attest.QuoteFee(business)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to quote fee", err.Error())
		return
	}
	writeResult(w, req.ID, formatAmount(fee))
}

func (s *Server) handleAttestFeeConfig(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	cfg, ok, err := s.attest.FeeConfig()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load fee config", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "fees not configured", nil)
		return
	}
	writeResult(w, req.ID, feeConfigResult{
		Token:     cfg.Token,
		Collector: formatAddress(cfg.Collector),
		BaseFee:   formatAmount(cfg.BaseFee),
		Enabled:   cfg.Enabled,
	})
}
