package httptransport

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/c0deZ3R0/productsync/logging"
)

// Server is an in-memory implementation of the product API. It backs the
// mock-remote command and the client and engine tests.
type Server struct {
	router  chi.Router
	options *ServerOptions
	logger  *slog.Logger

	mu       sync.RWMutex
	products []JSONProduct
	nextID   int64
	failing  bool
	uploads  map[string][]byte
}

// NewServer creates an empty server.
func NewServer(opts ...ServerOption) *Server {
	options := applyServerOptions(opts...)
	logger := options.Logger
	if logger == nil {
		logger = logging.WithComponent(logging.Component("mock-remote")).Logger
	}

	s := &Server{
		options:  options,
		logger:   logger,
		products: []JSONProduct{},
		uploads:  make(map[string][]byte),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5, "application/json"))
	r.Use(s.failureInjector)

	r.Get(pathHealth, func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get(pathList, s.handleList)
	r.Post(pathAdd, s.handleAdd)
	r.Get(options.ImagePrefix+"{name}", s.handleUpload)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetFailing makes every endpoint except the health check answer 503.
func (s *Server) SetFailing(failing bool) {
	s.mu.Lock()
	s.failing = failing
	s.mu.Unlock()
}

// Products returns a copy of the listing.
func (s *Server) Products() []JSONProduct {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JSONProduct, len(s.products))
	copy(out, s.products)
	return out
}

// Add appends a product as if it had been created through the API.
func (s *Server) Add(p JSONProduct) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.products = append(s.products, p)
	return strconv.FormatInt(s.nextID, 10)
}

type seedFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	Name  string `yaml:"product_name"`
	Type  string `yaml:"product_type"`
	Price string `yaml:"price"`
	Tax   string `yaml:"tax"`
	Image string `yaml:"image"`
}

// LoadSeed reads a YAML file of products and appends them to the listing.
func (s *Server) LoadSeed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed %s: %w", path, err)
	}
	return s.LoadSeedData(data)
}

// LoadSeedData is LoadSeed for in-memory YAML.
func (s *Server) LoadSeedData(data []byte) error {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}

	for i, sp := range seed.Products {
		price, err := decimal.NewFromString(sp.Price)
		if err != nil {
			return fmt.Errorf("seed product %d (%s): bad price: %w", i, sp.Name, err)
		}
		tax, err := decimal.NewFromString(sp.Tax)
		if err != nil {
			return fmt.Errorf("seed product %d (%s): bad tax: %w", i, sp.Name, err)
		}
		p := JSONProduct{ProductName: sp.Name, ProductType: sp.Type, Price: price, Tax: tax}
		if sp.Image != "" {
			image := sp.Image
			p.Image = &image
		}
		s.Add(p)
	}

	s.logger.Info("Seed loaded", "count", len(seed.Products))
	return nil
}

func (s *Server) failureInjector(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		failing := s.failing
		s.mu.RUnlock()
		if failing && r.URL.Path != pathHealth {
			respondWithError(w, http.StatusServiceUnavailable, "service unavailable")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.Products())
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.options.MaxUploadSize)
	if err := r.ParseMultipartForm(s.options.MaxUploadSize); err != nil {
		s.logger.Warn("Rejected create request", "error", err)
		respondWithError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	name := strings.TrimSpace(r.FormValue(fieldName))
	typ := strings.TrimSpace(r.FormValue(fieldType))
	if name == "" || typ == "" {
		respondWithError(w, http.StatusBadRequest, "product_name and product_type are required")
		return
	}
	price, err := decimal.NewFromString(r.FormValue(fieldPrice))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "price must be a number")
		return
	}
	tax, err := decimal.NewFromString(r.FormValue(fieldTax))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "tax must be a number")
		return
	}

	p := JSONProduct{ProductName: name, ProductType: typ, Price: price, Tax: tax}
	if files := r.MultipartForm.File[fieldFiles]; len(files) > 0 {
		image, err := s.saveUpload(files[0])
		if err != nil {
			s.logger.Error("Failed to store upload", "error", err)
			respondWithError(w, http.StatusInternalServerError, "could not store image")
			return
		}
		p.Image = &image
	}

	id := s.Add(p)
	s.logger.Info("Product added", "product_id", id, "name", name)
	ok := true
	respondWithJSON(w, http.StatusOK, JSONCreateResponse{
		Message:   "Product added Successfully!",
		ProductID: id,
		Success:   &ok,
	})
}

func (s *Server) saveUpload(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	key := uuid.NewString() + mimetype.Detect(data).Extension()

	if dir := s.options.UploadDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(dir, key), data, 0o644); err != nil {
			return "", err
		}
	} else {
		s.mu.Lock()
		s.uploads[key] = data
		s.mu.Unlock()
	}
	return s.options.ImagePrefix + key, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(chi.URLParam(r, "name"))

	var data []byte
	if dir := s.options.UploadDir; dir != "" {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		data = b
	} else {
		s.mu.RLock()
		b, ok := s.uploads[name]
		s.mu.RUnlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		data = b
	}

	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, JSONError{Message: message, Success: false})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
