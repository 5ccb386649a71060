package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
)

// NewRouter builds the API router with its middleware stack.
func NewRouter(h *EventHandler, authn *auth.Authenticator, corsOrigins []string, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(log))
	r.Use(CORS(corsOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found - "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", HealthCheck)

	requireAuth := authn.Middleware(writeError)
	organizers := auth.RequireRole(writeError, auth.RolePartner, auth.RoleAdmin)
	admins := auth.RequireRole(writeError, auth.RoleAdmin)

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/{id}/book", h.Book)

			r.With(organizers).Post("/", h.CreateEvent)
			r.With(organizers).Get("/{id}/bookings", h.ListBookings)
			r.With(admins).Delete("/{id}/bookings/{userId}", h.CancelBooking)
		})
	})

	return r
}
