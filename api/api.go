package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vocdoni/fhe-survey/log"
	"github.com/vocdoni/fhe-survey/survey"
)

// APIConfig type represents the configuration for the API HTTP server.
// It includes the host, port and the survey engine instance to serve.
type APIConfig struct {
	Host   string
	Port   int
	Engine *survey.Engine
}

// API type represents the survey API HTTP server.
type API struct {
	router *chi.Mux
	engine *survey.Engine
}

// New creates a new API instance with the given configuration and starts the
// HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Engine == nil {
		return nil, fmt.Errorf("missing survey engine instance")
	}
	a := &API{
		engine: conf.Engine,
	}

	// Initialize router
	a.initRouter()
	go func() {
		log.Infow("Starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", SurveysEndpoint, "method", "POST")
	a.router.Post(SurveysEndpoint, a.newSurvey)
	log.Infow("register handler", "endpoint", SurveysEndpoint, "method", "GET")
	a.router.Get(SurveysEndpoint, a.surveyList)
	log.Infow("register handler", "endpoint", SurveyEndpoint, "method", "GET")
	a.router.Get(SurveyEndpoint, a.surveyInfo)
	log.Infow("register handler", "endpoint", QuestionEndpoint, "method", "GET")
	a.router.Get(QuestionEndpoint, a.question)
	log.Infow("register handler", "endpoint", OptionEndpoint, "method", "GET")
	a.router.Get(OptionEndpoint, a.optionHandle)
	log.Infow("register handler", "endpoint", VotedEndpoint, "method", "GET")
	a.router.Get(VotedEndpoint, a.voted)
	log.Infow("register handler", "endpoint", ResultsEndpoint, "method", "GET")
	a.router.Get(ResultsEndpoint, a.results)
	log.Infow("register handler", "endpoint", AuditEndpoint, "method", "GET")
	a.router.Get(AuditEndpoint, a.auditRoot)
	log.Infow("register handler", "endpoint", VotesEndpoint, "method", "POST")
	a.router.Post(VotesEndpoint, a.newVote)
	log.Infow("register handler", "endpoint", EndEndpoint, "method", "POST")
	a.router.Post(EndEndpoint, a.endSurvey)
	log.Infow("register handler", "endpoint", DecryptionEndpoint, "method", "POST")
	a.router.Post(DecryptionEndpoint, a.requestDecryption)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	// Create the router with a basic middleware stack
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	// Register the API handlers
	a.registerHandlers()
}
