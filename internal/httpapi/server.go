// Package httpapi exposes the pod's operations over HTTP: a thin
// transport binding, not a new contract. Every handler validates,
// delegates to the pod, and serializes — no business logic lives here.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"shelfpod/internal/observability"
	"shelfpod/internal/order"
	"shelfpod/internal/pod"
	"shelfpod/internal/shelves"
)

var validate = validator.New()

// CreateOrderRequest is the validated body of POST /orders.
type CreateOrderRequest struct {
	Name      string  `json:"name" validate:"required"`
	Temp      string  `json:"temp" validate:"required,oneof=hot cold frozen"`
	ShelfLife int64   `json:"shelfLife" validate:"required,gt=0"`
	DecayRate float64 `json:"decayRate" validate:"gte=0"`
}

// OrderView is the JSON projection of an order returned by the API.
type OrderView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Temperature string `json:"temperature"`
	State       string `json:"state"`
}

func toView(o *order.Order) OrderView {
	return OrderView{
		ID:          o.ID,
		Name:        o.Name,
		Temperature: string(o.Temperature),
		State:       o.State().String(),
	}
}

// AddOrderResponse is the JSON body returned by POST /orders.
type AddOrderResponse struct {
	Added bool      `json:"added"`
	State string    `json:"state"`
	Shelf string    `json:"shelf"`
	Order OrderView `json:"order"`
}

// ShelfView is the JSON projection of a shelf descriptor.
type ShelfView struct {
	ID              string  `json:"id"`
	Capacity        int     `json:"capacity"`
	Temperature     string  `json:"temperature"`
	DecayRateFactor float64 `json:"decayRateFactor"`
}

// Server wires chi routes onto a ShelfPod and an optional stats observer.
type Server struct {
	pod    *pod.ShelfPod
	stats  *observability.StatsObserver
	logger *zap.Logger
	router chi.Router
	clock  func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithStatsObserver attaches a stats observer whose snapshot is exposed at
// GET /stats.
func WithStatsObserver(stats *observability.StatsObserver) Option {
	return func(s *Server) { s.stats = stats }
}

// WithLogger attaches a structured logger for request logging.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer builds an HTTP server over shelfPod.
func NewServer(shelfPod *pod.ShelfPod, opts ...Option) *Server {
	s := &Server{pod: shelfPod, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the server's http.Handler, ready to be passed to
// http.Server or httptest.NewServer.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler)
	r.Use(s.logRequest)

	r.Post("/orders", s.handleCreateOrder)
	r.Get("/orders", s.handleListOrders)
	r.Post("/orders/poll", s.handlePollOrder)
	r.Get("/shelves", s.handleGetShelves)
	r.Get("/stats", s.handleStats)
	r.Get("/healthz", s.handleHealthz)

	return r
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.logger != nil {
			s.logger.Debug("http request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	o := order.New(req.Name, order.Temperature(req.Temp), req.ShelfLife, req.DecayRate, s.clock())
	result := s.pod.AddOrder(o)

	writeJSON(w, http.StatusOK, AddOrderResponse{
		Added: result.Added,
		State: result.State.String(),
		Shelf: string(result.Shelf),
		Order: toView(o),
	})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.pod.ListOrders()
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toView(o))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handlePollOrder(w http.ResponseWriter, r *http.Request) {
	o := s.pod.PollOrder()
	if o == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toView(o))
}

func (s *Server) handleGetShelves(w http.ResponseWriter, r *http.Request) {
	shelfList := s.pod.GetShelves()
	views := make([]ShelfView, 0, len(shelfList))
	for _, sh := range shelfList {
		views = append(views, shelfToView(sh))
	}
	writeJSON(w, http.StatusOK, views)
}

func shelfToView(sh shelves.Shelf) ShelfView {
	return ShelfView{
		ID:              sh.ID,
		Capacity:        sh.Capacity,
		Temperature:     string(sh.Temperature),
		DecayRateFactor: sh.DecayRateFactor,
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusOK, observability.Snapshot{})
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
