// Package credtrust wires the certificate trust engine into an HTTP server.
package credtrust

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	log "github.com/sirupsen/logrus"

	"github.com/eduverify/credtrust/api/adminapi"
	"github.com/eduverify/credtrust/internal/cache"
	"github.com/eduverify/credtrust/lifecycle"
	"github.com/eduverify/credtrust/notify"
	"github.com/eduverify/credtrust/otp"
	"github.com/eduverify/credtrust/proof"
	"github.com/eduverify/credtrust/storage/model"
	"github.com/eduverify/credtrust/verification"
)

const defaultReputationCachePeriod = 5 * time.Second

// EndpointConf configures an endpoint by the path it is served at and the
// URL it is reachable under from outside
type EndpointConf struct {
	Path string `yaml:"path"`
	URL  string `yaml:"url"`
}

// IsSet reports whether the endpoint is enabled
func (c EndpointConf) IsSet() bool {
	return c.Path != "" || c.URL != ""
}

// ValidateURL derives the external URL from rootURL and the path unless it
// was configured explicitly, and returns it
func (c *EndpointConf) ValidateURL(rootURL string) string {
	if c.URL == "" {
		c.URL, _ = url.JoinPath(rootURL, c.Path)
	}
	return c.URL
}

// Components are the engine parts the HTTP surface delegates to
type Components struct {
	Lifecycle    *lifecycle.Service
	Verification *verification.Engine
	OTP          *otp.Authenticator
	Signer       *proof.Signer
	Notifier     notify.Notifier
	Cache        cache.Cache
	// ReputationCachePeriod is how long reputation blocks are served from
	// the cache
	ReputationCachePeriod time.Duration
}

// Options controls optional parts of the HTTP surface
type Options struct {
	// ProofKeysEndpoint is where the proof signing keys are published
	ProofKeysEndpoint EndpointConf
	// Admin enables the admin API
	Admin *adminapi.Options
	// AccessLog receives the http access log; nil disables it
	AccessLog io.Writer
}

// Server serves the public and admin API
type Server struct {
	Components
	server     *fiber.App
	serverConf ServerConf
	backends   model.Backends
	// admin serves the admin API when it listens on its own port
	admin     *fiber.App
	adminPort int
}

// FiberServerConfig is the fiber.Config that is used to init the http fiber.App
var FiberServerConfig = fiber.Config{
	ReadTimeout:    3 * time.Second,
	WriteTimeout:   20 * time.Second,
	IdleTimeout:    150 * time.Second,
	ReadBufferSize: 8192,
	ErrorHandler:   handleError,
	Network:        "tcp",
}

// NewServer creates a new Server and registers all endpoints
func NewServer(serverConf ServerConf, backends model.Backends, components Components, opts Options) (
	*Server, error,
) {
	if tps := serverConf.TrustedProxies; len(tps) > 0 {
		FiberServerConfig.TrustedProxies = serverConf.TrustedProxies
		FiberServerConfig.EnableTrustedProxyCheck = true
	}
	FiberServerConfig.ProxyHeader = serverConf.ForwardedIPHeader
	server := fiber.New(FiberServerConfig)
	server.Use(recover.New())
	server.Use(compress.New())
	if opts.AccessLog != nil {
		server.Use(logger.New(logger.Config{Output: opts.AccessLog}))
	}
	server.Use(requestid.New())

	if components.Cache == nil {
		components.Cache = cache.Nop{}
	}
	if components.ReputationCachePeriod == 0 {
		components.ReputationCachePeriod = defaultReputationCachePeriod
	}
	if components.Notifier == nil {
		components.Notifier = notify.LogNotifier{}
	}
	s := &Server{
		Components: components,
		server:     server,
		serverConf: serverConf,
		backends:   backends,
	}

	v1 := server.Group("/api/v1")
	s.registerCertificates(v1)
	s.registerVerify(v1)
	s.registerReputation(v1)
	s.registerOTP(v1)
	s.registerAuth(v1)
	if s.Signer != nil && opts.ProofKeysEndpoint.Path != "" {
		s.addProofKeysEndpoint(opts.ProofKeysEndpoint)
	}

	if opts.Admin != nil {
		adminRouter := fiber.Router(server)
		if opts.Admin.Port > 0 {
			s.admin = fiber.New(FiberServerConfig)
			s.admin.Use(recover.New())
			s.admin.Use(requestid.New())
			adminRouter = s.admin
			s.adminPort = opts.Admin.Port
		}
		if err := adminapi.Register(
			adminRouter.Group("/api/v1/admin"), serverConf.ExternalURL, backends, adminapi.Services{
				Lifecycle: components.Lifecycle,
				OnChange:  s.invalidateReputations,
			}, opts.Admin,
		); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// App returns the underlying fiber.App
func (s *Server) App() *fiber.App {
	return s.server
}

// HttpHandlerFunc returns an http.HandlerFunc for serving all the necessary endpoints
func (s *Server) HttpHandlerFunc() http.HandlerFunc {
	return adaptor.FiberApp(s.server)
}

// Listen starts an http server at the specific address for serving all the
// necessary endpoints
func (s *Server) Listen(addr string) error {
	return s.server.Listen(addr)
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown() error {
	if s.admin != nil {
		if err := s.admin.Shutdown(); err != nil {
			return err
		}
	}
	return s.server.Shutdown()
}

// AdminApp returns the fiber.App serving the admin API if it listens on
// its own port, otherwise nil
func (s *Server) AdminApp() *fiber.App {
	return s.admin
}

// httpsRedirect permanently redirects every request to its https url
func httpsRedirect(ctx *fiber.Ctx) error {
	//goland:noinspection HttpUrlsUsage
	target := strings.Replace(ctx.Request().URI().String(), "http://", "https://", 1)
	return ctx.Redirect(target, fiber.StatusPermanentRedirect)
}

// Start serves the public (and, if configured separately, the admin) api
// and blocks until the public listener stops. After a Shutdown it returns
// nil.
func (s *Server) Start() error {
	conf := s.serverConf
	if s.admin != nil {
		addr := fmt.Sprintf("%s:%d", conf.IPListen, s.adminPort)
		log.WithField("addr", addr).Info("starting admin api server")
		go func() {
			if err := s.admin.Listen(addr); err != nil {
				log.WithError(err).Fatal("admin api server failed")
			}
		}()
	}
	if !conf.TLS.Enabled {
		addr := fmt.Sprintf("%s:%d", conf.IPListen, conf.Port)
		log.WithField("addr", addr).Info("TLS is disabled, starting http server")
		return s.server.Listen(addr)
	}
	if conf.TLS.RedirectHTTP {
		redirect := fiber.New(FiberServerConfig)
		redirect.All("*", httpsRedirect)
		log.Info("starting http to https redirect on port 80")
		go func() {
			if err := redirect.Listen(fmt.Sprintf("%s:80", conf.IPListen)); err != nil {
				log.WithError(err).Error("http redirect server failed")
			}
		}()
	}
	log.Info("TLS enabled, starting https server on port 443")
	return s.server.ListenTLS(fmt.Sprintf("%s:443", conf.IPListen), conf.TLS.Cert, conf.TLS.Key)
}
