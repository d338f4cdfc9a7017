package config

import (
	"github.com/pkg/errors"

	"github.com/eduverify/credtrust/api/adminapi"
	"github.com/eduverify/credtrust/storage"
)

// apiConf holds API-related configuration
type apiConf struct {
	Admin adminAPIConf `yaml:"admin"`
}

type adminAPIConf struct {
	Enabled        bool                   `yaml:"enabled"`
	UsersEnabled   bool                   `yaml:"users_enabled"`
	Port           int                    `yaml:"port"`
	Argon2idParams storage.Argon2idParams `yaml:"password_hashing"`
}

var defaultAPIConf = apiConf{
	Admin: adminAPIConf{
		Enabled:      true,
		UsersEnabled: true,
		Port:         0, // 0 means use main server
		Argon2idParams: storage.Argon2idParams{
			Time:        1,
			MemoryKiB:   64 * 1024,
			Parallelism: 4,
			KeyLen:      64,
			SaltLen:     32,
		},
	},
}

func (c *apiConf) validate() error {
	p := c.Admin.Argon2idParams
	if p.Time == 0 || p.MemoryKiB == 0 || p.Parallelism == 0 || p.KeyLen == 0 || p.SaltLen == 0 {
		return errors.New("password_hashing parameters must be positive")
	}
	return nil
}

// AdminOptions returns the admin API options or nil if the admin API is
// disabled
func (c *Config) AdminOptions() *adminapi.Options {
	if !c.API.Admin.Enabled {
		return nil
	}
	return &adminapi.Options{
		UsersEnabled:     c.API.Admin.UsersEnabled,
		Port:             c.API.Admin.Port,
		IssuanceDefaults: c.Issuance.Policy,
		OTPDefaults:      adminapi.OTPSettings{MaxAttempts: c.OTP.MaxAttempts},
	}
}
