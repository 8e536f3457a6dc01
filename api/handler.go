package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/orcohen/crypto-logs/auth"
	"github.com/orcohen/crypto-logs/domain"
)

type Pipeline interface {
	Refresh(ctx context.Context, wallet string) ([]domain.Transaction, error)
	RecentLogs(ctx context.Context) ([]domain.StoredTransaction, error)
}

type Authenticator interface {
	Authenticate(username, password string) (auth.User, bool)
}

// Handler serves the JSON API consumed by the separate front-end.
type Handler struct {
	pipeline    Pipeline
	credentials Authenticator
}

func NewHandler(pipeline Pipeline, credentials Authenticator) *Handler {
	return &Handler{pipeline: pipeline, credentials: credentials}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username,omitempty"`
	Wallet   string `json:"wallet,omitempty"`
	Message  string `json:"message,omitempty"`
}

type dashboardResponse struct {
	Wallet           string               `json:"wallet"`
	TransactionCount int                  `json:"transaction_count"`
	TotalEthSent     float64              `json:"total_eth_sent"`
	Transactions     []domain.Transaction `json:"transactions"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request loginRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJson(w, http.StatusBadRequest, errorResponse{Message: "Invalid request body."})
		return
	}

	user, ok := h.credentials.Authenticate(request.Username, request.Password)
	if !ok {
		writeJson(w, http.StatusUnauthorized, loginResponse{
			Success: false,
			Message: "Invalid username or password.",
		})
		return
	}

	writeJson(w, http.StatusOK, loginResponse{
		Success:  true,
		Username: request.Username,
		Wallet:   user.Wallet,
	})
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		// rejected before any pipeline work
		writeJson(w, http.StatusBadRequest, errorResponse{Message: "Missing wallet address."})
		return
	}

	transactions, err := h.pipeline.Refresh(r.Context(), wallet)
	if err != nil {
		log.Printf("Error refreshing wallet logs: %v", err)
		http.Error(w, "Error fetching transactions", http.StatusInternalServerError)
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}

	writeJson(w, http.StatusOK, dashboardResponse{
		Wallet:           wallet,
		TransactionCount: len(transactions),
		TotalEthSent:     domain.TotalEthSent(transactions),
		Transactions:     transactions,
	})
}

func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.pipeline.RecentLogs(r.Context())
	if err != nil {
		log.Printf("Error reading logs: %v", err)
		http.Error(w, "Error reading logs", http.StatusInternalServerError)
		return
	}
	if logs == nil {
		logs = []domain.StoredTransaction{}
	}
	writeJson(w, http.StatusOK, logs)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Content-Type", "application/json")
	_, err := w.Write([]byte("{\"status\":\"UP\"}"))
	if err != nil {
		log.Printf("Error writing status response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
