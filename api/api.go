// Package api serves the workspace provisioning proxy: a small HTTP surface
// that creates projects under the operator's hosting team using static
// service credentials, so end users never need their own hosting account.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/awnumar/memguard"
	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"
)

// DefaultProvisionHost is the hosting provider's API host used when no
// override is configured.
const DefaultProvisionHost = "https://api.convex.dev"

//go:embed openapi.yaml
var openapiSpec []byte

// Config holds the static provisioning credentials. ServiceToken and
// TeamSlug are required; a zero value leaves the API in an unconfigured
// state that answers every provisioning request with a configuration error.
type Config struct {
	ServiceToken  string
	TeamSlug      string
	ProvisionHost string
}

// API holds the dependencies needed by the provisioning handlers.
type API struct {
	token      *memguard.Enclave // nil when unconfigured
	teamSlug   string
	host       string
	httpClient *http.Client
	logger     *slog.Logger
	projects   *ProjectLog // optional
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger. If not set, a default JSON logger
// writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithHTTPClient sets the client used for upstream provider calls.
func WithHTTPClient(c *http.Client) Option {
	return func(a *API) {
		a.httpClient = c
	}
}

// WithProjectLog records every provisioned project in the given log.
func WithProjectLog(l *ProjectLog) Option {
	return func(a *API) {
		a.projects = l
	}
}

// New creates a new API instance. The service token is sealed into a
// memguard enclave immediately; the plaintext is only opened per upstream
// request.
func New(cfg Config, opts ...Option) *API {
	a := &API{
		teamSlug: cfg.TeamSlug,
		host:     cfg.ProvisionHost,
	}
	if cfg.ServiceToken != "" {
		a.token = memguard.NewEnclave([]byte(cfg.ServiceToken))
	}
	if a.host == "" {
		a.host = DefaultProvisionHost
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return a
}

// Router returns a chi.Router with all provisioning routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Post("/auto-provision", a.AutoProvision)

	return r
}
