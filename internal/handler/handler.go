package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"deafbot/config"
	"deafbot/internal/dialogue"
	"deafbot/internal/domain"
	"deafbot/internal/matching"
	"deafbot/internal/repository"
	"deafbot/internal/transport"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Geocoder resolves what the user typed (or the point they shared) into a
// location. A *geocoder.CityNotFoundError means the place does not exist; any
// other error is transient.
type Geocoder interface {
	Resolve(ctx context.Context, input string) (domain.Location, error)
	ResolvePoint(ctx context.Context, lat, lon float64) (domain.Location, error)
}

type Handler struct {
	logger *zap.Logger
	cfg    *config.Config
	ctx    context.Context
	tr     transport.Transport
	db     *sql.DB

	userRepo    *repository.UserRepository
	profileRepo *repository.ProfileRepository
	likeRepo    *repository.LikeRepository
	cache       *repository.LocationCache
	matcher     *matching.Matcher
	geocoder    Geocoder
	states      *dialogue.Storage

	limiter *rate.Limiter
	wg      sync.WaitGroup
}

// NewHandler wires the repositories over db. cache may be nil, in which case
// the health check skips Redis.
func NewHandler(logger *zap.Logger, cfg *config.Config, ctx context.Context, db *sql.DB, geo Geocoder, cache *repository.LocationCache) *Handler {
	profileRepo := repository.NewProfileRepository(db)
	likeRepo := repository.NewLikeRepository(db)

	notifyRate := cfg.NotifyRate
	if notifyRate <= 0 {
		notifyRate = 30
	}

	return &Handler{
		logger:      logger,
		cfg:         cfg,
		ctx:         ctx,
		db:          db,
		userRepo:    repository.NewUserRepository(db),
		profileRepo: profileRepo,
		likeRepo:    likeRepo,
		cache:       cache,
		matcher:     matching.NewMatcher(profileRepo, likeRepo),
		geocoder:    geo,
		states:      dialogue.NewStorage(),
		limiter:     rate.NewLimiter(rate.Every(time.Second/time.Duration(notifyRate)), 1),
	}
}

func (h *Handler) SetTransport(t transport.Transport) { h.tr = t }

// Wait blocks until background notifications have finished.
func (h *Handler) Wait() { h.wg.Wait() }

func (h *Handler) DefaultHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	ev, ok := Classify(update)
	if !ok {
		return
	}
	h.logger.Debug("Received update",
		zap.Int64("user_id", int64(ev.UserID)),
		zap.Stringer("kind", ev.Kind),
		zap.Int("text_len", len(ev.Text)),
		zap.String("command", ev.Command),
		zap.String("callback", ev.CallbackData),
	)
	h.HandleEvent(ctx, ev)
}

func (h *Handler) StartWebServer(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.HealthHandler)
	mux.HandleFunc("/api/stats", h.StatsHandler)

	addr := fmt.Sprintf(":%s", h.cfg.Port)
	h.logger.Info("Web server listening", zap.String("address", addr))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		h.logger.Info("Shutting down web server...")
		if err := server.Shutdown(context.Background()); err != nil {
			h.logger.Error("Error shutting down server", zap.Error(err))
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		h.logger.Error("Web server error", zap.Error(err))
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis,omitempty"`
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok"}
	code := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Error("Database health check failed", zap.Error(err))
		resp.Status, resp.Database = "degraded", err.Error()
		code = http.StatusServiceUnavailable
	}
	// Redis only backs the location cache, so its failure does not fail the check.
	if h.cache != nil {
		resp.Redis = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			h.logger.Warn("Redis health check failed", zap.Error(err))
			resp.Redis = err.Error()
		}
	}

	h.writeJSON(w, code, resp)
}

type statsResponse struct {
	Users    int `json:"users"`
	Profiles int `json:"profiles"`
	Likes    int `json:"pending_likes"`
	Views    int `json:"views"`
}

func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s, err := h.likeRepo.Stats(r.Context())
	if err != nil {
		h.logger.Error("Failed to collect stats", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, statsResponse{
		Users:    s.Users,
		Profiles: s.Profiles,
		Likes:    s.Likes,
		Views:    s.Views,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
