package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"prophit/internal/auth"
	"prophit/internal/config"
	"prophit/internal/notify"
	"prophit/internal/predict"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

const userContextKey contextKey = "user"

type UserContext struct {
	UserID string
	Email  string
	Token  string
}

type Server struct {
	cfg     config.APIConfig
	log     *slog.Logger
	auth    *auth.SupabaseClient
	svc     *predict.Service
	discord *notify.Discord
	mux     *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, authClient *auth.SupabaseClient, svc *predict.Service, discord *notify.Discord) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		log:     logger,
		auth:    authClient,
		svc:     svc,
		discord: discord,
		mux:     chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/predictions", s.handlePredictionsList)
			r.Get("/predictions/{id}", s.handlePredictionDetail)
			r.Post("/predictions/{id}/submissions", s.handleSubmit)
			r.Get("/leaderboard", s.handleLeaderboard)
			r.Get("/me/stats", s.handleMyStats)
			r.Get("/me/submissions", s.handleMySubmissions)
			r.Post("/sync/replay", s.handleSyncReplay)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.adminMiddleware)
			r.Post("/predictions", s.handleCreatePrediction)
			r.Post("/predictions/{id}/resolve", s.handleResolve)
			r.Post("/predictions/{id}/rescore", s.handleRescore)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.auth.VerifyAccessToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Sprintf("invalid token: %v", err))
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			UserID: user.ID,
			Email:  user.Email,
			Token:  token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-Admin-Token"))
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			writeError(w, http.StatusForbidden, "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	v := ctx.Value(userContextKey)
	user, ok := v.(UserContext)
	if !ok || user.UserID == "" {
		return UserContext{}, errors.New("missing auth context")
	}
	return user, nil
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := s.auth.SignUp(r.Context(), strings.TrimSpace(in.Email), strings.TrimSpace(in.Password), strings.TrimSpace(in.Username))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if session.User.ID != "" {
		if err := s.svc.EnsureProfile(r.Context(), session.User.ID, session.User.Email, in.Username); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := s.auth.Login(r.Context(), strings.TrimSpace(in.Email), strings.TrimSpace(in.Password))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := s.svc.EnsureProfile(r.Context(), session.User.ID, session.User.Email, session.User.Username()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handlePredictionsList(w http.ResponseWriter, r *http.Request) {
	scope := s.scopeFromQuery(r)
	if r.URL.Query().Get("resolved") == "1" {
		limit := queryInt(r, "limit", 50)
		out, err := s.svc.ListResolvedPredictions(r.Context(), scope, limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"predictions": out})
		return
	}
	out, err := s.svc.ListOpenPredictions(r.Context(), scope)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": out})
}

func (s *Server) handlePredictionDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prediction id")
		return
	}
	out, err := s.svc.GetPrediction(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prediction id")
		return
	}
	var in struct {
		Choice     int    `json:"choice"`
		Confidence int    `json:"confidence"`
		Rationale  string `json:"rationale"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.svc.Submit(r.Context(), predict.SubmitInput{
		PredictionID:   id,
		UserID:         user.UserID,
		Choice:         in.Choice,
		Confidence:     in.Confidence,
		Rationale:      in.Rationale,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	scope := s.scopeFromQuery(r)
	limit := queryInt(r, "limit", 100)
	out, err := s.svc.Rank(r.Context(), scope, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": out, "season": scope.Season, "week": scope.Week})
}

func (s *Server) handleMyStats(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	scope := s.scopeFromQuery(r)
	st, err := s.svc.GetUserStats(r.Context(), user.UserID, scope.Season, scope.Week)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	tier, badges := s.svc.StatsView(st)
	writeJSON(w, http.StatusOK, map[string]any{"stats": st, "tier": tier, "badges": badges})
}

func (s *Server) handleMySubmissions(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	scope := s.scopeFromQuery(r)
	limit := queryInt(r, "limit", 50)
	out, err := s.svc.ListUserSubmissions(r.Context(), user.UserID, scope.Season, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": out})
}

func (s *Server) handleSyncReplay(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Commands []predict.ReplayCommand `json:"commands"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	results := s.svc.ReplaySubmissions(r.Context(), user.UserID, in.Commands)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleCreatePrediction(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Season           int       `json:"season"`
		Week             int       `json:"week"`
		Category         string    `json:"category"`
		Options          []string  `json:"options"`
		OracleChoice     int       `json:"oracle_choice"`
		OracleConfidence int       `json:"oracle_confidence"`
		OracleRationale  string    `json:"oracle_rationale"`
		DataRefs         []string  `json:"data_refs"`
		ExpiresAt        time.Time `json:"expires_at"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Season == 0 {
		in.Season = s.cfg.Season
	}
	out, err := s.svc.CreatePrediction(r.Context(), predict.CreatePredictionInput{
		Season:           in.Season,
		Week:             in.Week,
		Category:         in.Category,
		Options:          in.Options,
		OracleChoice:     in.OracleChoice,
		OracleConfidence: in.OracleConfidence,
		OracleRationale:  in.OracleRationale,
		DataRefs:         in.DataRefs,
		ExpiresAt:        in.ExpiresAt,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prediction id")
		return
	}
	var in struct {
		ActualResult int `json:"actual_result"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.svc.Resolve(r.Context(), id, in.ActualResult)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.discord.AnnounceResolution(out.Prediction, out.ScoredCount)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRescore(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prediction id")
		return
	}
	out, err := s.svc.Rescore(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) scopeFromQuery(r *http.Request) predict.Scope {
	return predict.Scope{
		Season:   queryInt(r, "season", s.cfg.Season),
		Week:     queryInt(r, "week", 0),
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, predict.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, predict.ErrInvalidSpec),
		errors.Is(err, predict.ErrInvalidChoice),
		errors.Is(err, predict.ErrInvalidConfidence),
		errors.Is(err, predict.ErrResultOutOfRange):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, predict.ErrPredictionClosed),
		errors.Is(err, predict.ErrDuplicateSubmission),
		errors.Is(err, predict.ErrAlreadyResolved),
		errors.Is(err, predict.ErrNotResolved),
		errors.Is(err, predict.ErrDuplicateIdempotency),
		errors.Is(err, predict.ErrTxConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
