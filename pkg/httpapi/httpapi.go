// Package httpapi exposes the REST surface for accounts and projects.
// The collaboration core never calls into this package; it exists so
// authenticated clients can manage persistent boards.
package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/boardsync/boardsync/pkg/crypto"
	"github.com/boardsync/boardsync/pkg/model"
	"github.com/boardsync/boardsync/pkg/store"
)

// maxSnapshotBytes bounds stored board snapshots.
const maxSnapshotBytes = 1 << 20

// API serves the account and project routes backed by a DataStore.
type API struct {
	store store.DataStore
}

// New creates an API bound to a store.
func New(st store.DataStore) *API {
	return &API{store: st}
}

// Register mounts all routes on the router.
func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/api/auth/register", a.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", a.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/me", a.withAccount(a.handleMe)).Methods(http.MethodGet)

	r.HandleFunc("/api/projects", a.withAccount(a.handleListProjects)).Methods(http.MethodGet)
	r.HandleFunc("/api/projects", a.withAccount(a.handleCreateProject)).Methods(http.MethodPost)
	r.HandleFunc("/api/projects/{id}", a.withAccount(a.handleRenameProject)).Methods(http.MethodPut)
	r.HandleFunc("/api/projects/{id}/snapshot", a.withAccount(a.handleSaveSnapshot)).Methods(http.MethodPut)
	r.HandleFunc("/api/projects/{id}/snapshot", a.withAccount(a.handleGetSnapshot)).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// withAccount resolves the bearer token to an account and passes it through.
func (a *API) withAccount(next func(http.ResponseWriter, *http.Request, *model.Account)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		account, err := a.store.GetAccountByTokenHash(crypto.HashToken(token))
		if err != nil {
			slog.Error("token lookup failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if account == nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r, account)
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token  string        `json:"token"`
	UserID string        `json:"userId"`
	Role   string        `json:"role"`
	User   model.Account `json:"user"`
}

// stableID renders the account's authenticated session identity.
func stableID(account *model.Account) string {
	return model.AuthenticatedUserID(account.ID)
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.ValidateUsername(creds.Username); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if creds.Password == "" {
		writeError(w, http.StatusBadRequest, "password must not be empty")
		return
	}

	existing, err := a.store.GetAccountByUsername(creds.Username)
	if err != nil {
		slog.Error("account lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	account, err := a.store.CreateAccount(creds.Username, crypto.HashPassword(creds.Password, salt), salt, model.GlobalUser)
	if err != nil {
		slog.Error("account create failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	a.issueToken(w, account)
	slog.Info("account registered", "username", account.Username, "id", account.ID)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := a.store.GetAccountByUsername(creds.Username)
	if err != nil {
		slog.Error("account lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if account == nil || !crypto.VerifyPassword(creds.Password, account.Salt, account.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	a.issueToken(w, account)
}

func (a *API) issueToken(w http.ResponseWriter, account *model.Account) {
	token, err := crypto.GenerateToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := a.store.CreateToken(crypto.HashToken(token), account.ID); err != nil {
		slog.Error("token create failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		Token:  token,
		UserID: stableID(account),
		Role:   account.Role.String(),
		User:   *account,
	})
}

func (a *API) handleMe(w http.ResponseWriter, _ *http.Request, account *model.Account) {
	writeJSON(w, http.StatusOK, map[string]any{
		"userId": stableID(account),
		"role":   account.Role.String(),
		"user":   *account,
	})
}

func (a *API) handleListProjects(w http.ResponseWriter, _ *http.Request, account *model.Account) {
	projects, err := a.store.ListProjects(account.ID)
	if err != nil {
		slog.Error("project list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (a *API) handleCreateProject(w http.ResponseWriter, r *http.Request, account *model.Account) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		req.Name = "New Project"
	}

	project, err := a.store.CreateProject(account.ID, req.Name)
	if err != nil {
		slog.Error("project create failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// ownedProject loads the project and checks it belongs to the caller.
// Admins may touch any project.
func (a *API) ownedProject(w http.ResponseWriter, r *http.Request, account *model.Account) *model.Project {
	id := mux.Vars(r)["id"]
	project, err := a.store.GetProject(id)
	if err != nil {
		slog.Error("project lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return nil
	}
	if project.OwnerID != account.ID && account.Role != model.GlobalAdmin {
		writeError(w, http.StatusForbidden, "not your project")
		return nil
	}
	return project
}

func (a *API) handleRenameProject(w http.ResponseWriter, r *http.Request, account *model.Account) {
	project := a.ownedProject(w, r, account)
	if project == nil {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := a.store.RenameProject(project.ID, req.Name); err != nil {
		slog.Error("project rename failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	project.Name = req.Name
	writeJSON(w, http.StatusOK, project)
}

func (a *API) handleSaveSnapshot(w http.ResponseWriter, r *http.Request, account *model.Account) {
	project := a.ownedProject(w, r, account)
	if project == nil {
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxSnapshotBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}
	if len(data) > maxSnapshotBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "snapshot too large")
		return
	}
	if !json.Valid(data) {
		writeError(w, http.StatusBadRequest, "snapshot must be valid JSON")
		return
	}

	if err := a.store.SaveSnapshot(project.ID, data); err != nil {
		slog.Error("snapshot save failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleGetSnapshot(w http.ResponseWriter, r *http.Request, account *model.Account) {
	project := a.ownedProject(w, r, account)
	if project == nil {
		return
	}

	data, err := a.store.GetSnapshot(project.ID)
	if err != nil {
		slog.Error("snapshot load failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if data == nil {
		writeError(w, http.StatusNotFound, "no snapshot")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
