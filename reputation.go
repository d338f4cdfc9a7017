package credtrust

import (
	"context"
	"net/url"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/eduverify/credtrust/internal/cache"
	"github.com/eduverify/credtrust/verification"
)

func (s *Server) registerReputation(r fiber.Router) {
	r.Get("/institutions/:name/reputation", s.handleReputation)
}

func (s *Server) handleReputation(ctx *fiber.Ctx) error {
	name, err := url.PathUnescape(ctx.Params("name"))
	if err != nil {
		name = ctx.Params("name")
	}
	key := cache.Key(cache.KeyReputation, name)
	var rep verification.Reputation
	found, err := s.Cache.Get(ctx.UserContext(), key, &rep)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("could not read reputation cache")
	}
	if found {
		return ctx.JSON(rep)
	}
	computed, err := s.Verification.Reputation(ctx.UserContext(), name)
	if err != nil {
		return writeError(ctx, err)
	}
	if err = s.Cache.Set(ctx.UserContext(), key, computed, s.ReputationCachePeriod); err != nil {
		log.WithError(err).WithField("key", key).Warn("could not cache reputation")
	}
	return ctx.JSON(computed)
}

// invalidateReputations drops all cached reputation blocks
func (s *Server) invalidateReputations() {
	if err := s.Cache.Clear(context.Background(), cache.KeyReputation); err != nil {
		log.WithError(err).Error("could not clear reputation cache")
	}
}

// reputationCacheInvalidationMiddleware clears cached reputation blocks
// for requests that successfully change certificate state. It should be
// attached only to non-GET routes.
func (s *Server) reputationCacheInvalidationMiddleware(ctx *fiber.Ctx) error {
	if err := ctx.Next(); err != nil {
		return err
	}
	status := ctx.Response().StatusCode()
	if status >= 200 && status < 300 {
		s.invalidateReputations()
	}
	return nil
}
