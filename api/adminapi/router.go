package adminapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/eduverify/credtrust/lifecycle"
	"github.com/eduverify/credtrust/storage/model"
)

// Options controls optional features of the admin API registration.
type Options struct {
	// UsersEnabled mounts the user management endpoints; a nil *Options
	// passed to Register enables them.
	UsersEnabled bool
	// Port, when > 0, is the port the admin API listens on separately; it is
	// used for the server url in the api docs.
	Port int
	// IssuanceDefaults is the issuance policy in effect while no policy
	// was stored through the settings endpoint
	IssuanceDefaults lifecycle.Policy
	// OTPDefaults are the configured one-time code settings
	OTPDefaults OTPSettings
}

// Services are the engine components the admin API acts on
type Services struct {
	Lifecycle *lifecycle.Service
	// OnChange is called after a certificate changed state
	OnChange func()
}

// Register mounts all admin API routes under the provided group. The docs
// are public, everything else requires an admin once the first user exists.
func Register(
	r fiber.Router, serverURL string, storages model.Backends, services Services, opts *Options,
) error {
	if opts == nil {
		opts = &Options{UsersEnabled: true}
	}
	if err := registerDocs(r, adaptServerURLPort(serverURL, opts.Port)); err != nil {
		return err
	}

	r.Use(authMiddleware(storages.Users))

	if services.Lifecycle != nil {
		registerCertificates(r, services.Lifecycle, services.OnChange)
	}
	registerSettings(r, storages.KV, *opts)
	if opts.UsersEnabled {
		registerUsers(r, storages.Users)
	}
	return nil
}
