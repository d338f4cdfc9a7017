package adminapi

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"tideland.dev/go/slices"

	"github.com/eduverify/credtrust/api/apimodel"
	"github.com/eduverify/credtrust/internal/utils"
	"github.com/eduverify/credtrust/lifecycle"
	"github.com/eduverify/credtrust/storage/model"
)

// OTPSettings are the runtime adjustable one-time code settings
type OTPSettings struct {
	// MaxAttempts is the number of wrong codes after which a session is
	// locked; 0 disables the cap
	MaxAttempts int `json:"max_attempts"`
}

// unknownKeys returns the keys of the JSON object body that are not json
// tag names of the struct v
func unknownKeys(body []byte, v any) ([]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	return slices.Subtract(keys, utils.TagNamesOf(v, "json")), nil
}

// parseSettings overlays the JSON body onto out, rejecting unknown keys
func parseSettings(body []byte, out any) *apimodel.Error {
	unknown, err := unknownKeys(body, out)
	if err != nil {
		e := apimodel.ErrorInvalidRequest("invalid body")
		return &e
	}
	if len(unknown) > 0 {
		e := apimodel.ErrorInvalidRequest(fmt.Sprintf("unknown settings: %v", unknown))
		return &e
	}
	if err = json.Unmarshal(body, out); err != nil {
		e := apimodel.ErrorInvalidRequest("invalid body")
		return &e
	}
	return nil
}

func currentOTPSettings(kv model.KeyValueStore, defaults OTPSettings) (OTPSettings, error) {
	settings := defaults
	var n int
	found, err := kv.GetAs(model.KeyValueScopeOTP, model.KeyValueKeyMaxAttempts, &n)
	if err != nil {
		return settings, err
	}
	if found {
		settings.MaxAttempts = n
	}
	return settings, nil
}

var settingScopes = []string{
	model.KeyValueScopeIssuance,
	model.KeyValueScopeOTP,
}

// registerSettings wires the issuance policy and otp settings. Updates are
// partial: fields missing in the body keep their current value.
func registerSettings(r fiber.Router, kv model.KeyValueStore, opts Options) {
	g := r.Group("/settings")
	policySource := lifecycle.KVPolicy{
		KV:       kv,
		Defaults: opts.IssuanceDefaults,
	}

	g.Get(
		"/", func(c *fiber.Ctx) error {
			overrides := make(map[string]map[string]json.RawMessage, len(settingScopes))
			for _, scope := range settingScopes {
				stored, err := kv.Scope(scope)
				if err != nil {
					return storeError(c, err, "")
				}
				overrides[scope] = make(map[string]json.RawMessage, len(stored))
				for k, v := range stored {
					overrides[scope][k] = json.RawMessage(v)
				}
			}
			return c.JSON(overrides)
		},
	)
	g.Delete(
		"/:scope", func(c *fiber.Ctx) error {
			scope := c.Params("scope")
			if !slices.IsMember(scope, settingScopes) {
				return c.Status(fiber.StatusNotFound).JSON(apimodel.ErrorNotFound("unknown settings scope"))
			}
			stored, err := kv.Scope(scope)
			if err != nil {
				return storeError(c, err, "")
			}
			for k := range stored {
				if err = kv.Delete(scope, k); err != nil {
					return storeError(c, err, "")
				}
			}
			return c.SendStatus(fiber.StatusNoContent)
		},
	)

	g.Get(
		"/issuance", func(c *fiber.Ctx) error {
			policy, err := policySource.IssuancePolicy()
			if err != nil {
				return storeError(c, err, "")
			}
			return c.JSON(policy)
		},
	)
	g.Put(
		"/issuance", func(c *fiber.Ctx) error {
			policy, err := policySource.IssuancePolicy()
			if err != nil {
				return storeError(c, err, "")
			}
			if e := parseSettings(c.Body(), &policy); e != nil {
				return c.Status(fiber.StatusBadRequest).JSON(e)
			}
			if policy.RetryBudget < 0 {
				return c.Status(fiber.StatusBadRequest).JSON(
					apimodel.ErrorInvalidRequest("retry_budget must not be negative"),
				)
			}
			if err = lifecycle.StorePolicy(kv, policy); err != nil {
				return storeError(c, err, "")
			}
			return c.JSON(policy)
		},
	)

	g.Get(
		"/otp", func(c *fiber.Ctx) error {
			settings, err := currentOTPSettings(kv, opts.OTPDefaults)
			if err != nil {
				return storeError(c, err, "")
			}
			return c.JSON(settings)
		},
	)
	g.Put(
		"/otp", func(c *fiber.Ctx) error {
			settings, err := currentOTPSettings(kv, opts.OTPDefaults)
			if err != nil {
				return storeError(c, err, "")
			}
			if e := parseSettings(c.Body(), &settings); e != nil {
				return c.Status(fiber.StatusBadRequest).JSON(e)
			}
			if settings.MaxAttempts < 0 {
				return c.Status(fiber.StatusBadRequest).JSON(
					apimodel.ErrorInvalidRequest("max_attempts must not be negative"),
				)
			}
			if err = kv.SetAny(model.KeyValueScopeOTP, model.KeyValueKeyMaxAttempts, settings.MaxAttempts); err != nil {
				return storeError(c, err, "")
			}
			return c.JSON(settings)
		},
	)
}
