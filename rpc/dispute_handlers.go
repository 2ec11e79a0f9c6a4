package rpc

import (
	"net/http"

	"veritasor/native/bonds"
)

type disputeOpenParams struct {
	Challenger string `json:"challenger"`
	Business   string `json:"business"`
	Period     string `json:"period"`
	Kind       string `json:"kind"`
	Evidence   string `json:"evidence,omitempty"`
}

type disputeResolveParams struct {
	DisputeID uint64 `json:"disputeId"`
	Resolver  string `json:"resolver"`
	Outcome   string `json:"outcome"`
	Notes     string `json:"notes,omitempty"`
}

type disputeQueryParams struct {
	DisputeID uint64 `json:"disputeId"`
}

type disputeAttestationParams struct {
	Business string `json:"business"`
	Period   string `json:"period"`
}

type disputeChallengerParams struct {
	Challenger string `json:"challenger"`
}

type arbiterParams struct {
	Caller  string `json:"caller"`
	Arbiter string `json:"arbiter"`
}

type resolutionResult struct {
	Resolver   string `json:"resolver"`
	Outcome    string `json:"outcome"`
	ResolvedAt uint64 `json:"resolvedAt"`
	Notes      string `json:"notes,omitempty"`
}

type disputeResult struct {
	ID         uint64            `json:"id"`
	Challenger string            `json:"challenger"`
	Business   string            `json:"business"`
	Period     string            `json:"period"`
	Kind       string            `json:"kind"`
	Evidence   string            `json:"evidence,omitempty"`
	Status     string            `json:"status"`
	OpenedAt   uint64            `json:"openedAt"`
	Resolution *resolutionResult `json:"resolution,omitempty"`
}

func formatDispute(d *bonds.Dispute) disputeResult {
	result := disputeResult{
		ID:         d.ID,
		Challenger: formatAddress(d.Challenger),
		Business:   formatAddress(d.Business),
		Period:     d.Period,
		Kind:       d.Kind,
		Evidence:   d.Evidence,
		Status:     d.Status.String(),
		OpenedAt:   d.OpenedAt,
	}
	if d.Resolution != nil {
		result.Resolution = &resolutionResult{
			Resolver:   formatAddress(d.Resolution.Resolver),
			Outcome:    d.Resolution.Outcome,
			ResolvedAt: d.Resolution.ResolvedAt,
			Notes:      d.Resolution.Notes,
		}
	}
	return result
}

func (s *Server) handleDisputeOpen(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params disputeOpenParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	challenger, err := decodeAddress(params.Challenger)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid challenger address", err.Error())
		return
	}
	business, err := decodeAddress(params.Business)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid business address", err.Error())
		return
	}
	id, err := s.bonds.OpenDispute(challenger, business, params.Period, params.Kind, params.Evidence)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "dispute rejected", err.Error())
		return
	}
	writeResult(w, req.ID, id)
}

func (s *Server) handleDisputeResolve(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params disputeResolveParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	resolver, err := decodeAddress(params.Resolver)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid resolver address", err.Error())
		return
	}
	if err := s.bonds.ResolveDispute(params.DisputeID, resolver, params.Outcome, params.Notes); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "resolution rejected", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleDisputeClose(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params disputeQueryParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	if err := s.bonds.CloseDispute(params.DisputeID); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "close rejected", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleDisputeGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params disputeQueryParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	dispute, ok, err := s.bonds.Dispute(params.DisputeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load dispute", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "dispute not found", params.DisputeID)
		return
	}
	writeResult(w, req.ID, formatDispute(dispute))
}

func (s *Server) handleDisputeListByAttestation(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params disputeAttestationParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	business, err := decodeAddress(params.Business)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid business address", err.Error())
		return
	}
	ids, err := s.bonds.DisputesByAttestation(business, params.Period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to list disputes", err.Error())
		return
	}
	writeResult(w, req.ID, ids)
}

func (s *Server) handleDisputeListByChallenger(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params disputeChallengerParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	challenger, err := decodeAddress(params.Challenger)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid challenger address", err.Error())
		return
	}
	ids, err := s.bonds.DisputesByChallenger(challenger)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to list disputes", err.Error())
		return
	}
	writeResult(w, req.ID, ids)
}

func (s *Server) handleDisputeAddArbiter(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params arbiterParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	arbiter, err := decodeAddress(params.Arbiter)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid arbiter address", err.Error())
		return
	}
	if err := s.bonds.AddArbiter(caller, arbiter); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "arbiter grant rejected", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleDisputeRemoveArbiter(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params arbiterParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	arbiter, err := decodeAddress(params.Arbiter)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid arbiter address", err.Error())
		return
	}
	if err := s.bonds.RemoveArbiter(caller, arbiter); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "arbiter removal rejected", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}
