package main

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/diewo77/invoice-analytics/httpx"
	"github.com/diewo77/invoice-analytics/internal/chat"
	"github.com/diewo77/invoice-analytics/internal/events"
	"github.com/diewo77/invoice-analytics/internal/handlers"
	applog "github.com/diewo77/invoice-analytics/internal/log"
	"github.com/diewo77/invoice-analytics/internal/services"
	"github.com/diewo77/invoice-analytics/view"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	DB         *gorm.DB
	Analytics  *services.AnalyticsService
	Dispatcher *chat.Dispatcher
	Events     events.Publisher
	Logger     *applog.Logger
	CORSOrigin string
	APIBase    string
}

// App is the main application handler that sets up all routes.
type App struct {
	mux     *http.ServeMux
	handler http.Handler
	deps    Deps
	chat    *handlers.ChatHandler
}

// NewApp creates a new application with all routes configured.
func NewApp(deps Deps) *App {
	if deps.Logger == nil {
		deps.Logger = applog.Discard()
	}
	if deps.APIBase == "" {
		deps.APIBase = "/api"
	}
	app := &App{mux: http.NewServeMux(), deps: deps}
	app.setupRoutes()
	app.handler = httpx.Chain(app.mux,
		httpx.RequestLogger(deps.Logger),
		httpx.Recover,
		httpx.CORS(deps.CORSOrigin),
	)
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Drain waits for chat query events still being published.
func (a *App) Drain() { a.chat.Wait() }

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	handlers.RegisterHealth(a.mux, a.deps.DB)
	handlers.NewAnalyticsHandler(a.deps.Analytics).Register(a.mux)
	a.chat = handlers.NewChatHandler(a.deps.Dispatcher, a.deps.Events)
	a.chat.Register(a.mux)

	a.mux.Handle("GET /static/", view.Static())
	a.mux.HandleFunc("GET /{$}", view.Dashboard(a.deps.APIBase))
}
