package api

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/finfx/finfx-server/service/bot"
	"github.com/finfx/finfx-server/service/botpackage"
	"github.com/finfx/finfx-server/service/broker"
	"github.com/finfx/finfx-server/service/credentials"
	"github.com/finfx/finfx-server/service/dashboard"
	"github.com/finfx/finfx-server/service/kyc"
	"github.com/finfx/finfx-server/service/notifications"
	"github.com/finfx/finfx-server/service/packages"
	"github.com/finfx/finfx-server/service/signals"
	"github.com/finfx/finfx-server/service/subscription"
	"github.com/finfx/finfx-server/service/user"
)

type APIServer struct {
	address string
	db      *gorm.DB
}

func NewApiServer(address string, db *gorm.DB) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	userHandler := user.NewHandler(s.db)
	userHandler.RegisterRoutes(subrouter)

	botHandler := bot.NewHandler(s.db)
	botHandler.RegisterRoutes(subrouter)

	packageHandler := packages.NewHandler(s.db)
	packageHandler.RegisterRoutes(subrouter)

	botPackageHandler := botpackage.NewHandler(s.db)
	botPackageHandler.RegisterRoutes(subrouter)

	subscriptionHandler := subscription.NewHandler(s.db)
	subscriptionHandler.RegisterRoutes(subrouter)

	pusher := notifications.NewPusher(s.db)

	signalHandler := signals.NewSignalHandler(s.db, pusher)
	signalHandler.RegisterRoutes(subrouter)

	brokerHandler := broker.NewHandler(s.db)
	brokerHandler.RegisterRoutes(subrouter)

	credentialHandler := credentials.NewHandler(s.db)
	credentialHandler.RegisterRoutes(subrouter)

	kycHandler := kyc.NewHandler(s.db)
	kycHandler.RegisterRoutes(subrouter)

	notificationHandler := notifications.NewNotificationHandler(s.db, pusher)
	notificationHandler.RegisterRoutes(subrouter)

	dashboardHandler := dashboard.NewDashboardHandler(s.db)
	dashboardHandler.RegisterRoutes(subrouter)

	cors := handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins()),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, handlers.LoggingHandler(os.Stdout, cors(router)))
}

func allowedOrigins() []string {
	origins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if origins == "" {
		return []string{"*"}
	}
	return strings.Split(origins, ",")
}
