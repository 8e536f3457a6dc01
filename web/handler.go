// Package web serves the server-rendered variant of the dashboard. It shares
// the retention pipeline with the JSON API and only differs in presentation
// and in keeping the wallet in a cookie session instead of the request.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/orcohen/crypto-logs/auth"
	"github.com/orcohen/crypto-logs/domain"
	"github.com/orcohen/crypto-logs/session"
	"github.com/pkg/errors"
)

//go:embed templates/*.html
var templateFiles embed.FS

const sessionCookie = "session_id"

type Pipeline interface {
	Refresh(ctx context.Context, wallet string) ([]domain.Transaction, error)
	RecentLogs(ctx context.Context) ([]domain.StoredTransaction, error)
}

type Authenticator interface {
	Authenticate(username, password string) (auth.User, bool)
}

type SessionStore interface {
	Create(username, wallet string) (string, error)
	Get(id string) (*session.Session, error)
}

type Handler struct {
	pipeline    Pipeline
	credentials Authenticator
	sessions    SessionStore
	templates   *template.Template
}

func NewHandler(pipeline Pipeline, credentials Authenticator, sessions SessionStore) (*Handler, error) {
	templates, err := template.New("").Funcs(template.FuncMap{
		"datetimeformat": datetimeFormat,
	}).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parsing templates")
	}
	return &Handler{
		pipeline:    pipeline,
		credentials: credentials,
		sessions:    sessions,
		templates:   templates,
	}, nil
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", h.Home)
	mux.HandleFunc("/reg", h.Reg)
	mux.HandleFunc("/login", h.Login)
	mux.HandleFunc("/dashboard", h.Dashboard)
	mux.HandleFunc("/logs", h.Logs)
}

type pageData struct {
	PageClass    string
	Username     string
	Wallet       string
	Transactions []domain.Transaction
	Logs         []domain.StoredTransaction
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	h.render(w, "home.html", pageData{PageClass: "home-page"})
}

// Reg renders the registration form; submitting it only redirects to the
// dashboard, nothing is persisted.
func (h *Handler) Reg(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.render(w, "reg.html", pageData{PageClass: "register-page"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.render(w, "login.html", pageData{PageClass: "login-page"})
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")

	user, ok := h.credentials.Authenticate(username, password)
	if !ok {
		_, _ = fmt.Fprint(w, "Login failed. Invalid username or password.")
		return
	}

	id, err := h.sessions.Create(username, user.Wallet)
	if err != nil {
		log.Printf("Error creating session: %v", err)
		http.Error(w, "Error creating session", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
	})
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	currentSession := h.currentSession(r)
	if currentSession == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	transactions, err := h.pipeline.Refresh(r.Context(), currentSession.Wallet)
	if err != nil {
		log.Printf("Error refreshing wallet logs: %v", err)
		http.Error(w, "Error fetching transactions", http.StatusInternalServerError)
		return
	}

	h.render(w, "dashboard.html", pageData{
		PageClass:    "dashboard-page",
		Username:     currentSession.Username,
		Wallet:       currentSession.Wallet,
		Transactions: transactions,
	})
}

func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.pipeline.RecentLogs(r.Context())
	if err != nil {
		log.Printf("Error reading logs: %v", err)
		http.Error(w, "Error reading logs", http.StatusInternalServerError)
		return
	}
	h.render(w, "logs.html", pageData{PageClass: "dashboard-page", Logs: logs})
}

func (h *Handler) currentSession(r *http.Request) *session.Session {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil
	}
	currentSession, err := h.sessions.Get(cookie.Value)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			log.Printf("Error reading session: %v", err)
		}
		return nil
	}
	return currentSession
}

func (h *Handler) render(w http.ResponseWriter, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := h.templates.ExecuteTemplate(w, name, data)
	if err != nil {
		log.Printf("Error rendering template [%s]: %v", name, err)
	}
}

// datetimeFormat renders an epoch-seconds string the way the dashboard
// displays timestamps. Unparsable values pass through unchanged.
func datetimeFormat(value string) string {
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return value
	}
	return time.Unix(seconds, 0).UTC().Format("2006-01-02 15:04:05")
}
