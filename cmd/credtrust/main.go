package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/eduverify/credtrust"
	"github.com/eduverify/credtrust/cmd/credtrust/config"
	"github.com/eduverify/credtrust/identity"
	"github.com/eduverify/credtrust/internal/logger"
	"github.com/eduverify/credtrust/internal/version"
	"github.com/eduverify/credtrust/lifecycle"
	"github.com/eduverify/credtrust/otp"
	"github.com/eduverify/credtrust/verification"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("could not load .env file")
	}
	var configFile string
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}
	config.Load(configFile)
	c := config.Get()
	if err := logger.Init(c.Logging.LoggerConf()); err != nil {
		log.WithError(err).Fatal("could not init logger")
	}
	log.WithField("version", version.VERSION).Info("Loaded Config")

	ctx := context.Background()
	backs, err := config.LoadStorageBackends(c.Storage, c.API.Admin.Argon2idParams)
	if err != nil {
		log.Fatal(err)
	}

	redisClient := c.Caching.RedisClient()
	reputationCache, err := config.LoadCache(ctx, c.Caching, redisClient)
	if err != nil {
		log.Fatal(err)
	}
	otpStore, err := config.OTPStore(c.OTP, backs, redisClient)
	if err != nil {
		log.Fatal(err)
	}

	natsConn, err := c.NATS.Connect()
	if err != nil {
		log.Fatal(err)
	}
	publisher := c.NATS.Publisher(natsConn)
	notifier, err := c.Notify.Notifier(natsConn)
	if err != nil {
		log.Fatal(err)
	}

	signer, err := c.Proof.Signer()
	if err != nil {
		log.Fatal(err)
	}
	if signer != nil {
		log.WithFields(
			log.Fields{
				"kid":  signer.KeyID(),
				"jwks": c.Proof.KeysEndpoint.ValidateURL(c.Server.ExternalURL),
			},
		).Info("Loaded proof signing key")
	}

	service := lifecycle.NewService(
		backs.Certificates, backs.Events,
		lifecycle.WithGenerator(identity.NewGenerator()),
		lifecycle.WithAssessor(c.Issuance.Assessor()),
		lifecycle.WithPolicy(
			lifecycle.KVPolicy{
				KV:       backs.KV,
				Defaults: c.Issuance.Policy,
			},
		),
		lifecycle.WithPublisher(publisher),
	)

	accessLog, err := c.Logging.AccessLog()
	if err != nil {
		log.WithError(err).Fatal("could not open access log")
	}
	server, err := credtrust.NewServer(
		c.Server, backs, credtrust.Components{
			Lifecycle:             service,
			Verification:          verification.NewEngine(backs.Certificates, publisher),
			OTP:                   otp.NewAuthenticator(otpStore, notifier, c.OTP.Options(backs.KV)...),
			Signer:                signer,
			Notifier:              notifier,
			Cache:                 reputationCache,
			ReputationCachePeriod: c.Caching.MaxLifetime.Duration(),
		}, credtrust.Options{
			ProofKeysEndpoint: c.Proof.KeysEndpoint,
			Admin:             c.AdminOptions(),
			AccessLog:         accessLog,
		},
	)
	if err != nil {
		log.Fatal(err)
	}
	log.Info("Added Endpoints")

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		log.WithField("signal", <-sig).Info("shutting down")
		if err := server.Shutdown(); err != nil {
			log.WithError(err).Error("error during shutdown")
		}
		if natsConn != nil {
			if err := natsConn.Drain(); err != nil {
				log.WithError(err).Warn("failed to drain nats connection")
			}
		}
	}()
	if err = server.Start(); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
	<-stopped
}
