package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"finch-forex-backend/internal/chat"
	"finch-forex-backend/internal/config"
	"finch-forex-backend/internal/conversation"
	"finch-forex-backend/internal/db"
	"finch-forex-backend/internal/gateway"
	"finch-forex-backend/internal/intent"
	"finch-forex-backend/internal/lifecycle"
	"finch-forex-backend/internal/store"
	"finch-forex-backend/internal/types"
)

type Server struct {
	router        *chi.Mux
	cfg           config.Config
	store         *store.MemoryStore
	tokenStore    *store.FileTokenStore
	database      *db.DB
	databaseStore *store.DatabaseStore
	history       *store.HistoryStore
	oauthCfg      *oauth2.Config
	replies       *chat.ReplySpec

	// newGateway builds a session-scoped processor client; swapped in tests.
	newGateway func(creds gateway.CredentialProvider) gateway.Client
}

func NewServer(cfg config.Config) (*Server, error) {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// OAuth2 config (may be partially empty if env not set; handlers check)
	oCfg := &oauth2.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		RedirectURL:  cfg.OAuthRedirectURL,
		Scopes:       cfg.OAuthScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.OAuthAuthURL,
			TokenURL: cfg.OAuthTokenURL,
		},
	}

	var database *db.DB
	var databaseStore *store.DatabaseStore
	if cfg.DatabaseURL != "" {
		var err error
		database, err = db.New(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := database.RunMigrations("./migrations"); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Println("database connection established")
		databaseStore = store.NewDatabaseStore(database)
	} else {
		log.Println("warning: DB_URL not provided, using file-based credential storage only")
	}

	var history *store.HistoryStore
	if cfg.RedisAddr != "" {
		history = store.NewHistoryStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		log.Println("redis history persistence enabled")
	}

	replies, err := chat.LoadReplySpec(cfg.RepliesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load reply spec: %w", err)
	}

	s := &Server{
		router:        r,
		cfg:           cfg,
		store:         store.NewMemoryStore(),
		tokenStore:    store.NewFileTokenStore(cfg.TokenFile),
		database:      database,
		databaseStore: databaseStore,
		history:       history,
		oauthCfg:      oCfg,
		replies:       replies,
	}
	s.newGateway = func(creds gateway.CredentialProvider) gateway.Client {
		return gateway.NewHTTPClient(cfg.ProcessorURL, creds)
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Post("/api/chat", s.handleChat)
	s.router.Post("/api/chat/select", s.handleSelect)
	s.router.Get("/api/chat/history", s.handleHistory)
	s.router.Post("/api/payments/{id}/confirm", s.handleConfirm)
	s.router.Post("/api/payments/{id}/reject", s.handleReject)
	s.router.Get("/api/accounts", s.handleAccounts)
	// Platform OAuth
	s.router.Get("/api/auth/status", s.handleAuthStatus)
	s.router.Get("/api/auth/login", s.handleAuthLogin)
	s.router.Get("/api/auth/callback", s.handleAuthCallback)
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// session returns (building if needed) the live session for the request.
func (s *Server) session(sid string) *store.Session {
	return s.store.GetOrCreate(sid, func(sid string) *store.Session {
		chatLog := conversation.NewLog()
		if s.history != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if messages, err := s.history.LoadHistory(ctx, sid); err == nil && len(messages) > 0 {
				chatLog.Restore(messages)
			}
		}
		gw := s.newGateway(sessionCredential{server: s, sid: sid})
		return &store.Session{
			ID:        sid,
			Log:       chatLog,
			Gateway:   gw,
			Lifecycle: lifecycle.NewController(gw, chatLog),
		}
	})
}

func (s *Server) pipeline(sess *store.Session) *chat.Pipeline {
	return chat.NewPipeline(sess.Gateway, sess.Log, s.replies)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	sid := getOrCreateSessionID(r, w)
	sess := s.session(sid)

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()
	msg, err := s.pipeline(sess).Submit(ctx, req.Message)
	if err != nil {
		s.writeSubmitError(w, sid, err)
		return
	}
	s.saveHistory(sid, sess)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Session-Id", sid)
	_ = json.NewEncoder(w).Encode(types.ChatResponse{SessionID: sid, Message: msg})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req types.SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sid := getOrCreateSessionID(r, w)
	sess := s.session(sid)

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()
	resolver := chat.NewResolver(s.pipeline(sess).Submit)
	msg, err := resolver.Select(ctx, req.Name, req.Amount, req.Currency)
	if err != nil {
		if err == chat.ErrNoSubmitHandler {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeSubmitError(w, sid, err)
		return
	}
	s.saveHistory(sid, sess)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Session-Id", sid)
	_ = json.NewEncoder(w).Encode(types.ChatResponse{SessionID: sid, Message: msg})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sid := getOrCreateSessionID(r, w)
	sess := s.session(sid)

	// A fresh session with prior intents on the platform gets them replayed
	// as resolved cards.
	if sess.Log.Len() == 0 {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		if raws, err := sess.Gateway.ListPaymentIntents(ctx); err == nil && len(raws) > 0 {
			restored := make([]conversation.Message, 0, len(raws))
			for i, raw := range raws {
				action := intent.Normalize(raw)
				restored = append(restored, conversation.Message{
					ID:        i,
					Sender:    conversation.SenderSystem,
					Text:      s.replies.Render(&action),
					CreatedAt: time.Now(),
					Status:    conversation.StatusCompleted,
					Action:    &action,
				})
			}
			sess.Log.Restore(restored)
		} else if err != nil && gateway.IsAuthExpired(err) {
			s.expireSession(w, sid)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Session-Id", sid)
	_ = json.NewEncoder(w).Encode(types.HistoryResponse{SessionID: sid, Messages: sess.Log.Messages()})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	s.handlePaymentCommand(w, r, func(ctx context.Context, sess *store.Session, id string) error {
		return sess.Lifecycle.Confirm(ctx, id)
	})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.handlePaymentCommand(w, r, func(ctx context.Context, sess *store.Session, id string) error {
		return sess.Lifecycle.Reject(ctx, id)
	})
}

func (s *Server) handlePaymentCommand(w http.ResponseWriter, r *http.Request, run func(context.Context, *store.Session, string) error) {
	paymentID := chi.URLParam(r, "id")
	if strings.TrimSpace(paymentID) == "" {
		s.writeError(w, http.StatusBadRequest, "payment id is required")
		return
	}
	sid := getOrCreateSessionID(r, w)
	sess := s.session(sid)

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()
	if err := run(ctx, sess, paymentID); err != nil {
		if gateway.IsAuthExpired(err) {
			s.expireSession(w, sid)
			return
		}
		if gateway.IsValidation(err) {
			s.writeError(w, http.StatusBadRequest, gateway.UserMessage(err))
			return
		}
		// Gateway failure: the card shows an inline banner with retry; no
		// new message is spawned. The state carries the message.
	}
	s.saveHistory(sid, sess)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Session-Id", sid)
	_ = json.NewEncoder(w).Encode(types.PaymentStatusResponse{
		PaymentID: paymentID,
		State:     sess.Lifecycle.StateFor(paymentID),
	})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	sid := getOrCreateSessionID(r, w)
	sess := s.session(sid)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	accounts, err := sess.Gateway.GetAccounts(ctx)
	if err != nil {
		if gateway.IsAuthExpired(err) {
			s.expireSession(w, sid)
			return
		}
		s.writeError(w, http.StatusBadGateway, gateway.UserMessage(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"accounts": accounts})
}

// writeSubmitError maps pipeline errors: validation/busy are local, auth
// expiry abandons the session.
func (s *Server) writeSubmitError(w http.ResponseWriter, sid string, err error) {
	if gateway.IsAuthExpired(err) {
		s.expireSession(w, sid)
		return
	}
	if err == chat.ErrBusy {
		s.writeError(w, http.StatusConflict, "a request is already in progress")
		return
	}
	if gateway.IsValidation(err) {
		s.writeError(w, http.StatusBadRequest, gateway.UserMessage(err))
		return
	}
	log.Printf("[chat] submit failed: %v", err)
	s.writeError(w, http.StatusInternalServerError, "something went wrong. Please try again.")
}

// expireSession clears the stored credential and signals the front end to
// re-authenticate. The redirect itself happens client-side.
func (s *Server) expireSession(w http.ResponseWriter, sid string) {
	s.store.ClearToken(sid)
	if s.databaseStore != nil {
		_ = s.databaseStore.DeleteSessionAuth(sid)
	}
	if s.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.history.DropHistory(ctx, sid)
	}
	ClearSessionCookie(w)
	s.writeError(w, http.StatusUnauthorized, "session_expired")
}

func (s *Server) saveHistory(sid string, sess *store.Session) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.history.SaveHistory(ctx, sid, sess.Log.Messages()); err != nil {
		log.Printf("[history] save failed for session %s: %v", sid, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg})
}

func newSessionID() string {
	return uuid.NewString()
}

// getSessionID retrieves the session ID from cookie, header, or query parameter
func getSessionID(r *http.Request) string {
	if cookie, err := GetSessionCookie(r); err == nil && cookie != "" {
		return cookie
	}
	if sid := r.Header.Get("X-Session-Id"); sid != "" {
		return sid
	}
	if sid := r.URL.Query().Get("sessionId"); sid != "" {
		return sid
	}
	return ""
}

// getOrCreateSessionID gets the existing session ID or creates a new one, setting the cookie
func getOrCreateSessionID(r *http.Request, w http.ResponseWriter) string {
	sid := getSessionID(r)
	if sid == "" {
		sid = newSessionID()
		SetSessionCookie(w, sid)
	}
	return sid
}

// sessionCredential resolves the bearer token for a session with the same
// fallback order everywhere: memory cache, database, token file, env token.
type sessionCredential struct {
	server *Server
	sid    string
}

func (c sessionCredential) Token() string {
	s := c.server
	if tok := s.store.GetToken(c.sid); tok != "" {
		return tok
	}
	if s.databaseStore != nil {
		if auth, err := s.databaseStore.GetSessionAuth(c.sid); err == nil && auth != nil && strings.TrimSpace(auth.AccessToken) != "" {
			s.store.SetToken(c.sid, auth.AccessToken)
			return auth.AccessToken
		}
	}
	if tok, err := s.tokenStore.Read(); err == nil && tok != nil && strings.TrimSpace(tok.AccessToken) != "" {
		return tok.AccessToken
	}
	return s.cfg.ProcessorToken
}
