package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/catalog"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
	"gopkg.in/yaml.v3"
)

var log = logger.GetOrCreate("api")

const (
	apiKeyHeader    = "X-Api-Key"
	yamlContentType = "application/yaml; charset=utf-8"
	shutdownTimeout = 5 * time.Second
)

// ErrNoListenAddress signals that no listen address has been provided
var ErrNoListenAddress = errors.New("no listen address")

// ErrNilMetricsHandler signals that a nil scrape handler has been provided
var ErrNilMetricsHandler = errors.New("nil metrics handler")

// ErrNilMetaProvider signals that a nil meta provider has been provided
var ErrNilMetaProvider = errors.New("nil meta provider")

// ErrNilGeneralHandler signals that a nil general handler has been provided
var ErrNilGeneralHandler = errors.New("nil general handler")

// ErrNoAddressBound signals that none of the listen addresses could be bound
var ErrNoAddressBound = errors.New("no listen address could be bound")

// ArgsWebServer defines the web server arguments
type ArgsWebServer struct {
	ListenAddresses []string
	AdminAPIKey     string
	MetricsHandler  http.Handler
	MetaProvider    MetaProvider
	GeneralHandler  func(http.Handler) http.Handler
}

type server struct {
	router          *gin.Engine
	listenAddresses []string
	boundAddresses  []string
	adminAPIKey     string
	metricsHandler  http.Handler
	metaProvider    MetaProvider
	generalHandler  func(http.Handler) http.Handler
	httpServers     []*http.Server
	wg              sync.WaitGroup
}

// NewServer initializes the Gin engine and mounts all routes
func NewServer(args ArgsWebServer) (*server, error) {
	if len(args.ListenAddresses) == 0 {
		return nil, ErrNoListenAddress
	}
	if args.MetricsHandler == nil {
		return nil, ErrNilMetricsHandler
	}
	if check.IfNil(args.MetaProvider) {
		return nil, ErrNilMetaProvider
	}
	if args.GeneralHandler == nil {
		return nil, ErrNilGeneralHandler
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(gin.Recovery())

	s := &server{
		router:          router,
		listenAddresses: args.ListenAddresses,
		adminAPIKey:     args.AdminAPIKey,
		metricsHandler:  args.MetricsHandler,
		metaProvider:    args.MetaProvider,
		generalHandler:  args.GeneralHandler,
	}

	s.setupRoutes()
	return s, nil
}

func (s *server) setupRoutes() {
	s.router.GET("/metrics", gin.WrapH(s.metricsHandler))
	s.router.GET("/", s.handleIndex)

	api := s.router.Group("/api")
	if len(s.adminAPIKey) > 0 {
		api.Use(s.authAPIKey())
	}
	{
		api.GET("/projects", s.handleProjects)
		api.GET("/projects/:namespace/metrics", s.handleProjectMetrics)
		api.GET("/projects/:namespace/config", s.handleProjectConfig)
	}
}

// Start binds every listen address and serves connections on each bound one.
// It fails only if no address could be bound.
func (s *server) Start() error {
	handler := s.generalHandler(s.router)

	for _, address := range s.listenAddresses {
		ln, err := net.Listen("tcp", address)
		if err != nil {
			log.Error("failed to listen", "address", address, "error", err)
			continue
		}

		httpServer := &http.Server{
			Addr:              ln.Addr().String(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		s.httpServers = append(s.httpServers, httpServer)
		s.boundAddresses = append(s.boundAddresses, ln.Addr().String())

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			log.Info("starting HTTP server", "address", httpServer.Addr)

			errServe := httpServer.Serve(ln)
			if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
				log.Error("http server failed", "address", httpServer.Addr, "error", errServe)
			}
		}()
	}

	if len(s.httpServers) == 0 {
		return fmt.Errorf("%w: %v", ErrNoAddressBound, s.listenAddresses)
	}

	return nil
}

// Addresses returns the actual bound addresses
func (s *server) Addresses() []string {
	return s.boundAddresses
}

// Close gracefully stops all servers
func (s *server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var lastErr error
	for _, httpServer := range s.httpServers {
		err := httpServer.Shutdown(ctx)
		if err != nil {
			log.Error("failed to shut down http server", "address", httpServer.Addr, "error", err)
			lastErr = err
		}
	}
	s.wg.Wait()

	return lastErr
}

func (s *server) authAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(apiKeyHeader)
		if key != s.adminAPIKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"metrics":  "/metrics",
		"projects": "/api/projects",
	})
}

func (s *server) handleProjects(c *gin.Context) {
	projects, err := s.metaProvider.Projects(c.Request.Context())
	if err != nil {
		s.upstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (s *server) handleProjectMetrics(c *gin.Context) {
	namespace := c.Param("namespace")
	metrics, err := s.metaProvider.Metrics(c.Request.Context(), namespace)
	if err != nil {
		s.upstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"namespace": namespace,
		"metrics":   metrics,
	})
}

func (s *server) handleProjectConfig(c *gin.Context) {
	namespace := c.Param("namespace")
	snippet, err := s.metaProvider.ConfigSnippet(c.Request.Context(), namespace)
	if err != nil {
		s.upstreamError(c, err)
		return
	}

	body, err := yaml.Marshal(map[string]map[string]catalog.Snippet{
		"metrics": {namespace: snippet},
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, yamlContentType, body)
}

func (s *server) upstreamError(c *gin.Context, err error) {
	log.Warn("meta request failed", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}
