package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/poolfund/lending-service/internal/lending"
	"github.com/poolfund/lending-service/internal/service"
)

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	user, err := h.svc.Register(req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.svc.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// CreatePool handles pool creation (admin only)
func (h *Handler) CreatePool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RiskLevel      int     `json:"risk_level"`
		InitialFunds   uint64  `json:"initial_funds"`
		AttachedAmount *uint64 `json:"attached_amount,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pool, err := h.svc.CreatePool(r.Context(), req.RiskLevel, req.InitialFunds, req.AttachedAmount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pool)
}

// AddFunds handles pool top-up (admin only)
func (h *Handler) AddFunds(w http.ResponseWriter, r *http.Request) {
	poolID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}
	var req struct {
		Amount         uint64  `json:"amount"`
		AttachedAmount *uint64 `json:"attached_amount,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.AddFunds(r.Context(), poolID, req.Amount, req.AttachedAmount); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListPools returns all capital pools
func (h *Handler) ListPools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Pools())
}

// RequestLoan handles a borrower's loan request
func (h *Handler) RequestLoan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount       uint64 `json:"amount"`
		DurationDays int    `json:"duration_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	duration := time.Duration(req.DurationDays) * 24 * time.Hour
	loan, err := h.svc.RequestLoan(r.Context(), req.Amount, duration)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

// RepayLoan handles loan repayment
func (h *Handler) RepayLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan id")
		return
	}
	var req struct {
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.RepayLoan(r.Context(), loanID, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetLoan returns a single loan
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	loan, err := h.svc.Loan(r.Context(), loanID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// GetScore returns the caller's credit score
func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	score, err := h.svc.Score(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"score": score})
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[key], 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine errors onto HTTP statuses: unknown ids are
// 404, identity mismatches 403, state conflicts 409, other business
// rejections 400, fatal conditions 500.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lending.ErrLoanNotFound), errors.Is(err, lending.ErrPoolNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lending.ErrNotBorrower):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, lending.ErrActiveLoanExists), errors.Is(err, lending.ErrAlreadyRepaid):
		writeError(w, http.StatusConflict, err.Error())
	case lending.IsFatal(err):
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, lending.ErrAmountOutOfBounds),
		errors.Is(err, lending.ErrInvalidDuration),
		errors.Is(err, lending.ErrCreditScoreTooLow),
		errors.Is(err, lending.ErrNoSuitablePool),
		errors.Is(err, lending.ErrInsufficientFunds),
		errors.Is(err, lending.ErrInsufficientRepayment),
		errors.Is(err, lending.ErrInvalidRiskLevel),
		errors.Is(err, lending.ErrZeroAmount),
		errors.Is(err, lending.ErrFundsMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
