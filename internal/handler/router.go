package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	menuHandler "github.com/takeawayhq/voicedesk/backend/internal/handler/menu"
	ordersHandler "github.com/takeawayhq/voicedesk/backend/internal/handler/orders"
	voiceHandler "github.com/takeawayhq/voicedesk/backend/internal/handler/voice"
	menuModel "github.com/takeawayhq/voicedesk/backend/internal/model/menu"
	dialogService "github.com/takeawayhq/voicedesk/backend/internal/service/dialog"
	intentService "github.com/takeawayhq/voicedesk/backend/internal/service/intent"
	orderService "github.com/takeawayhq/voicedesk/backend/internal/service/order"
	"github.com/takeawayhq/voicedesk/backend/pkg/utils"
)

// Deps collects everything the router mounts.
type Deps struct {
	Menu         menuModel.Provider
	Sessions     *dialogService.SessionStore
	Machine      *dialogService.Machine
	Intents      *intentService.Service
	Orders       orderService.Store
	Cancellation *orderService.Cancellation
	Clock        orderService.Clock
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	voice := voiceHandler.New(deps.Sessions, deps.Machine, deps.Intents)
	menu := menuHandler.New(deps.Menu)
	orders := ordersHandler.New(deps.Orders, deps.Cancellation, deps.Clock)

	r.Route("/api", func(api chi.Router) {
		voice.RegisterRoutes(api)
		menu.RegisterRoutes(api)
		orders.RegisterRoutes(api)

		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
