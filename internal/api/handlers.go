package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	apperrors "github.com/portfolio-tracker/internal/errors"
	"github.com/portfolio-tracker/internal/ledger"
	"github.com/portfolio-tracker/internal/logging"
	"github.com/portfolio-tracker/internal/service"
)

// holdingDTO is the wire form of one ledger row.
type holdingDTO struct {
	Source      string  `json:"source"`
	Asset       string  `json:"asset"`
	Kind        string  `json:"kind"`
	Amount      string  `json:"amount"`
	PriceFiat   *string `json:"priceFiat,omitempty"`
	PriceCrypto *string `json:"priceCrypto,omitempty"`
	ValueFiat   string  `json:"valueFiat"`
	ValueCrypto *string `json:"valueCrypto,omitempty"`
}

type portfolioResponse struct {
	CycleID     string                 `json:"cycleId"`
	Timestamp   time.Time              `json:"timestamp"`
	BaseFiat    string                 `json:"baseFiat"`
	BaseCrypto  string                 `json:"baseCrypto,omitempty"`
	TotalFiat   string                 `json:"totalFiat"`
	TotalCrypto *string                `json:"totalCrypto,omitempty"`
	Holdings    []holdingDTO           `json:"holdings"`
	Skipped     []ledger.SourceFailure `json:"skipped,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePortfolio refreshes the ledger from live sources and returns it.
// Each request is a full aggregation cycle; there is no cross-request state.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.portfolio.Refresh(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPortfolioResponse(holdings))
}

// handleRisk refreshes the ledger and derives the risk snapshot from it.
func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.portfolio.Refresh(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	snapshot, err := s.portfolio.RiskSnapshot(r.Context(), holdings.Ledger)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func toPortfolioResponse(h *service.Holdings) portfolioResponse {
	led := h.Ledger

	resp := portfolioResponse{
		CycleID:    led.CycleID.String(),
		Timestamp:  led.Timestamp,
		BaseFiat:   led.BaseFiat,
		BaseCrypto: led.BaseCrypto,
		TotalFiat:  h.TotalFiat.StringFixed(2),
		Skipped:    h.Failures,
	}
	if h.TotalCrypto.Valid {
		v := h.TotalCrypto.Decimal.String()
		resp.TotalCrypto = &v
	}

	for _, row := range led.Rows() {
		dto := holdingDTO{
			Source:    row.Key.Source,
			Asset:     row.Key.Asset,
			Kind:      row.Kind.String(),
			Amount:    row.Amount.String(),
			ValueFiat: row.ValueFiat().StringFixed(2),
		}
		if row.PriceFiat.Valid {
			v := row.PriceFiat.Decimal.String()
			dto.PriceFiat = &v
		}
		if row.PriceCrypto.Valid {
			v := row.PriceCrypto.Decimal.String()
			dto.PriceCrypto = &v
		}
		if value := row.ValueCrypto(); value.Valid {
			v := value.Decimal.String()
			dto.ValueCrypto = &v
		}
		resp.Holdings = append(resp.Holdings, dto)
	}

	return resp
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeError maps the error taxonomy onto HTTP statuses: configuration and
// reference problems are the caller's setup (422), upstream and history
// problems are gateway-side (502).
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).WithError(err).Error("Request failed")

	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	message := "internal error"

	var ce *apperrors.CategorizedError
	if errors.As(err, &ce) {
		code = ce.Code
		message = ce.Message
		switch ce.Category {
		case apperrors.CategoryConfiguration, apperrors.CategoryUnresolvedReference:
			status = http.StatusUnprocessableEntity
		case apperrors.CategoryAuthentication, apperrors.CategoryCredential:
			status = http.StatusBadGateway
		case apperrors.CategoryUpstream:
			status = http.StatusBadGateway
		case apperrors.CategoryInsufficientHistory:
			status = http.StatusConflict
		}
	}

	var resp errorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
