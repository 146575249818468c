package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/defeso/backend/internal/middleware"
	"github.com/defeso/backend/internal/usecase"
)

// Server is the REST edge wiring every pipeline stage behind its route.
type Server struct {
	classify      *usecase.ClassifyBatch
	extract       *usecase.ExtractDocuments
	evaluate      *usecase.EvaluateEligibility
	lookup        *usecase.LookupLegalCase
	solDashboard  *usecase.BuildSolicitationDashboard
	procDashboard *usecase.BuildProcessDashboard
	solicit       usecase.SolicitationStore
	documents     usecase.DocumentStore
	eligibility   usecase.EligibilityStore
	rateLimiter   *middleware.RateLimiter
	corsOrigin    string
	maxUpload     int64
	logger        *log.Logger

	httpServer *http.Server
}

// Config carries the edge settings the server needs.
type Config struct {
	CORSOrigin        string
	MaxCallsPerMinute int
	MaxUploadSizeMB   int
}

// NewServer wires the handlers.
func NewServer(
	cfg Config,
	classify *usecase.ClassifyBatch,
	extract *usecase.ExtractDocuments,
	evaluate *usecase.EvaluateEligibility,
	lookup *usecase.LookupLegalCase,
	solDashboard *usecase.BuildSolicitationDashboard,
	procDashboard *usecase.BuildProcessDashboard,
	solicit usecase.SolicitationStore,
	documents usecase.DocumentStore,
	eligibility usecase.EligibilityStore,
) *Server {
	return &Server{
		classify:      classify,
		extract:       extract,
		evaluate:      evaluate,
		lookup:        lookup,
		solDashboard:  solDashboard,
		procDashboard: procDashboard,
		solicit:       solicit,
		documents:     documents,
		eligibility:   eligibility,
		rateLimiter: middleware.NewRateLimiter(middleware.RateLimitConfig{
			MaxCallsPerMinute: cfg.MaxCallsPerMinute,
		}),
		corsOrigin: cfg.CORSOrigin,
		maxUpload:  int64(cfg.MaxUploadSizeMB) << 20,
		logger:     log.New(log.Writer(), "[API] ", log.LstdFlags),
	}
}

// Router builds the route table. Exposed for handler tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.CORS(s.corsOrigin))
	r.Use(middleware.RequestContext)
	r.Use(s.rateLimiter.Middleware)

	r.HandleFunc("/classificador", s.handleClassify).Methods("POST")
	r.HandleFunc("/extracao", s.handleExtract).Methods("POST")
	r.HandleFunc("/extracao/{solicitacaoID}", s.handleExtract).Methods("POST")
	r.HandleFunc("/elegibilidade/{solicitacaoID}", s.handleEvaluate).Methods("POST")

	// Fixed paths register before the {solicitacaoID} catch-all.
	r.HandleFunc("/solicitacao/dashboard", s.handleSolicitationDashboard).Methods("GET")
	r.HandleFunc("/solicitacao/{solicitacaoID}", s.handleGetSolicitation).Methods("GET")
	r.HandleFunc("/processos/dashboard", s.handleProcessDashboard).Methods("GET")
	r.HandleFunc("/processos/consultar/{numeroProcesso}", s.handleLookupCase).Methods("GET")

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/metrics/snapshot", s.handleMetricsSnapshot).Methods("GET")
	return r
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, port string) error {
	s.httpServer = &http.Server{
		Addr:         ":" + port,
		Handler:      s.Router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on :%s", port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
