package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"careroute/pkg/handlers"
)

// NewRouter wires the API routes, the metrics endpoint and request logging.
func NewRouter(handler *handlers.Handler, gatherer prometheus.Gatherer, logger *logrus.Logger) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/chat/message", handler.ChatMessage).Methods("POST")
	router.HandleFunc("/escalations", handler.TriggerEscalation).Methods("POST")
	router.HandleFunc("/escalations/{id}/resolve", handler.ResolveEscalation).Methods("POST")
	router.HandleFunc("/escalations/{user_id}", handler.ListEscalations).Methods("GET")
	router.HandleFunc("/stats/escalations", handler.EscalationStats).Methods("GET")
	router.HandleFunc("/bookings", handler.RequestBooking).Methods("POST")
	router.HandleFunc("/bookings/{user_id}", handler.ListBookings).Methods("GET")
	router.HandleFunc("/assessments", handler.Assessments).Methods("GET")
	router.HandleFunc("/assessments/{id}/submit", handler.SubmitAssessment).Methods("POST")
	router.HandleFunc("/assessments/results/{user_id}", handler.AssessmentResults).Methods("GET")
	router.HandleFunc("/sessions/{id}", handler.GetSession).Methods("GET")
	router.HandleFunc("/capabilities", handler.Capabilities).Methods("GET")
	router.HandleFunc("/escalation-rules", handler.EscalationRules).Methods("GET")
	router.HandleFunc("/health", handler.Health).Methods("GET")
	router.HandleFunc("/status", handler.Status).Methods("GET")

	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	router.Use(loggingMiddleware(logger))
	return router
}

func NewHTTPServer(port string, handler *handlers.Handler, gatherer prometheus.Gatherer, logger *logrus.Logger) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      NewRouter(handler, gatherer, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Debug("HTTP request processed")
		})
	}
}
