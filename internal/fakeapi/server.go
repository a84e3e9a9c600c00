// Package fakeapi is an in-memory inventory REST server with fault injection.
// The demo CLI and the end-to-end tests run the sync client against it.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/c0deZ3R0/go-inventory-sync/inventory"
	"github.com/c0deZ3R0/go-inventory-sync/logging"
	"github.com/c0deZ3R0/go-inventory-sync/transport/httptransport"
)

const (
	maxBodyBytes        = 1 << 20
	maxDecompressedBody = 4 << 20
)

// Error codes carried in ErrorBody.Code.
const (
	CodeReferenced  = "REFERENCED"
	CodeNotFound    = "NOT_FOUND"
	CodeInvalid     = "INVALID"
	CodeUnavailable = "UNAVAILABLE"
	CodeInjected    = "INJECTED_FAILURE"
)

// Server holds products and orders in memory.
type Server struct {
	mu       sync.Mutex
	products map[int64]inventory.Product
	orders   map[int64]inventory.Order
	nextID   int64

	down     bool
	failNext int
	delay    time.Duration
	requests []string

	logger *logging.Logger
	router chi.Router
}

type Option func(*Server)

func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithFirstID sets the first server-assigned ID.
func WithFirstID(id int64) Option {
	return func(s *Server) { s.nextID = id }
}

// New creates an empty server.
func New(opts ...Option) *Server {
	s := &Server{
		products: make(map[int64]inventory.Product),
		orders:   make(map[int64]inventory.Order),
		nextID:   1,
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(logging.Component("fakeapi"))
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.faults)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httptransport.WriteJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.listProducts)
		r.Post("/", s.createProduct)
		r.Patch("/{id}", s.updateProduct)
		r.Delete("/{id}", s.deleteProduct)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", s.listOrders)
		r.Post("/tags", s.addTags)
		r.Patch("/{id}", s.updateOrder)
		r.Delete("/{id}", s.deleteOrder)
		r.Delete("/{id}/tags/{tag}", s.removeTag)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetDown makes every request except /health fail with 503.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// FailNext makes the next n requests fail with 500.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// SetDelay delays every response by d.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Requests returns "METHOD path" for every request that reached a handler.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// SeedProduct stores p, assigning an ID when p.ID is zero.
func (s *Server) SeedProduct(p inventory.Product) inventory.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.allocID()
	}
	s.products[p.ID] = p
	return p
}

// SeedOrder stores o, assigning an ID when o.ID is zero.
func (s *Server) SeedOrder(o inventory.Order) inventory.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.allocID()
	}
	if o.Tags == nil {
		o.Tags = []string{}
	}
	s.orders[o.ID] = o
	return o
}

// Product returns the stored product with the given ID.
func (s *Server) Product(id int64) (inventory.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

// Order returns the stored order with the given ID.
func (s *Server) Order(id int64) (inventory.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

// Products returns all products ordered by ID.
func (s *Server) Products() []inventory.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Orders returns all orders ordered by ID.
func (s *Server) Orders() []inventory.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.Order, 0, len(s.orders))
	for _, o := range s.orders {
		o.Tags = append([]string{}, o.Tags...)
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) allocID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.RequestURI()),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)))
	})
}

func (s *Server) faults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		s.mu.Lock()
		down, delay := s.down, s.delay
		inject := !down && s.failNext > 0
		if inject {
			s.failNext--
		}
		s.requests = append(s.requests, r.Method+" "+r.URL.RequestURI())
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		switch {
		case down:
			httptransport.WriteError(w, r, http.StatusServiceUnavailable, "service unavailable", CodeUnavailable)
		case inject:
			httptransport.WriteError(w, r, http.StatusInternalServerError, "injected failure", CodeInjected)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// decodeBody reads a JSON body through the size and encoding guards.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	reader, cleanup, err := httptransport.SafeRequestReader(w, r, maxBodyBytes, maxDecompressedBody)
	defer cleanup()
	if err == nil {
		err = json.NewDecoder(reader).Decode(dst)
	}
	if err != nil {
		httptransport.WriteError(w, r, httptransport.StatusForBodyError(err), err.Error(), CodeInvalid)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httptransport.WriteError(w, r, http.StatusBadRequest, "invalid id", CodeInvalid)
		return 0, false
	}
	return id, true
}

func notFound(w http.ResponseWriter, r *http.Request, kind string, id int64) {
	httptransport.WriteError(w, r, http.StatusNotFound, fmt.Sprintf("%s %d not found", kind, id), CodeNotFound)
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	httptransport.WriteJSON(w, r, http.StatusOK, s.Products())
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var p inventory.Product
	if !decodeBody(w, r, &p) {
		return
	}
	if p.Name == "" || p.Quantity < 0 || p.Price.IsNegative() {
		httptransport.WriteError(w, r, http.StatusUnprocessableEntity, "name, quantity and price are required", CodeInvalid)
		return
	}
	if p.Status == "" {
		p.Status = inventory.ProductActive
	}
	if p.MinOrderQuantity < 1 {
		p.MinOrderQuantity = 1
	}

	p.ID = 0
	p = s.SeedProduct(p)
	s.logger.Info("product created", slog.Int64("id", p.ID), slog.String("name", p.Name))
	httptransport.WriteJSON(w, r, http.StatusCreated, p)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch inventory.ProductPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if err := patch.Validate(); err != nil {
		httptransport.WriteError(w, r, http.StatusUnprocessableEntity, err.Error(), CodeInvalid)
		return
	}

	s.mu.Lock()
	p, found := s.products[id]
	if found {
		p = patch.Apply(p)
		s.products[id] = p
	}
	s.mu.Unlock()

	if !found {
		notFound(w, r, "product", id)
		return
	}
	httptransport.WriteJSON(w, r, http.StatusOK, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	force := r.URL.Query().Get("force") == "true"

	s.mu.Lock()
	_, found := s.products[id]
	referenced := found && !force && s.referencedLocked(id)
	if found && !referenced {
		delete(s.products, id)
	}
	s.mu.Unlock()

	switch {
	case !found:
		notFound(w, r, "product", id)
	case referenced:
		httptransport.WriteError(w, r, http.StatusConflict, "product is referenced by active orders", CodeReferenced)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) referencedLocked(productID int64) bool {
	for _, o := range s.orders {
		if o.Status != inventory.OrderActive {
			continue
		}
		for _, item := range o.Items {
			if item.ProductID == productID {
				return true
			}
		}
	}
	return false
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	httptransport.WriteJSON(w, r, http.StatusOK, s.Orders())
}

func (s *Server) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch inventory.OrderPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if err := patch.Validate(); err != nil {
		httptransport.WriteError(w, r, http.StatusUnprocessableEntity, err.Error(), CodeInvalid)
		return
	}

	s.mu.Lock()
	o, found := s.orders[id]
	if found {
		o = patch.Apply(o)
		s.orders[id] = o
	}
	s.mu.Unlock()

	if !found {
		notFound(w, r, "order", id)
		return
	}
	httptransport.WriteJSON(w, r, http.StatusOK, o)
}

func (s *Server) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	_, found := s.orders[id]
	delete(s.orders, id)
	s.mu.Unlock()

	if !found {
		notFound(w, r, "order", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addTags(w http.ResponseWriter, r *http.Request) {
	var req httptransport.TagsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Tags) == 0 || len(req.OrderIDs) == 0 {
		httptransport.WriteError(w, r, http.StatusUnprocessableEntity, "tags and orderIds are required", CodeInvalid)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range req.OrderIDs {
		if _, ok := s.orders[id]; !ok {
			notFound(w, r, "order", id)
			return
		}
	}
	for _, id := range req.OrderIDs {
		o := s.orders[id]
		o.Tags = append(append([]string{}, o.Tags...), req.Tags...)
		s.orders[id] = o
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	tag := chi.URLParam(r, "tag")
	if unescaped, err := url.PathUnescape(tag); err == nil {
		tag = unescaped
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, found := s.orders[id]
	if !found {
		notFound(w, r, "order", id)
		return
	}
	for i, t := range o.Tags {
		if t == tag {
			tags := append([]string{}, o.Tags[:i]...)
			o.Tags = append(tags, o.Tags[i+1:]...)
			s.orders[id] = o
			break
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
