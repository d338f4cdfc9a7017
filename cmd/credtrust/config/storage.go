package config

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/eduverify/credtrust/storage"
	"github.com/eduverify/credtrust/storage/model"
)

// driverMemory keeps all data in process memory; it is meant for demos and
// tests and loses everything on restart
const driverMemory storage.DriverType = "memory"

type storageConf struct {
	Driver          storage.DriverType `yaml:"driver"`
	DataDir         string             `yaml:"data_dir"`
	DSN             string             `yaml:"dsn"`
	storage.DSNConf `yaml:",inline"`
	Debug           bool `yaml:"debug"`
}

func (c *storageConf) validate() error {
	switch c.Driver {
	case driverMemory:
		return nil
	case storage.DriverSQLite:
		if c.DataDir == "" && c.DSN == "" {
			return errors.New("data_dir must be specified")
		}
		return nil
	case storage.DriverMySQL, storage.DriverPostgres:
	default:
		return errors.Errorf("unsupported driver '%s'", c.Driver)
	}
	var err error
	if c.DSN == "" {
		c.DSN, err = storage.DSN(c.Driver, c.DSNConf)
	}
	return err
}

var defaultStorageConf = storageConf{
	Driver: storage.DriverSQLite,
	DSNConf: storage.DSNConf{
		User: "credtrust",
		Host: "localhost",
		DB:   "credtrust",
	},
	Debug: false,
}

// LoadStorageBackends loads and returns the storage backends for the passed
// storage and password hashing configuration
func LoadStorageBackends(c storageConf, usersHash storage.Argon2idParams) (model.Backends, error) {
	if c.Driver == driverMemory {
		log.Warn("using in-memory storage; all data is lost on restart")
		return storage.LoadMemoryBackends(usersHash), nil
	}
	cfg := storage.Config{
		Driver:    c.Driver,
		DSN:       c.DSN,
		DataDir:   c.DataDir,
		Debug:     c.Debug,
		UsersHash: usersHash,
	}
	backs, err := storage.LoadStorageBackends(cfg)
	if err != nil {
		return model.Backends{}, err
	}
	log.WithField("driver", c.Driver).Info("Loaded storage backend")
	return backs, nil
}
