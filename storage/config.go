package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eduverify/credtrust/storage/model"
)

// DriverType names a supported database
type DriverType string

// Supported database drivers
const (
	DriverSQLite   DriverType = "sqlite"
	DriverMySQL    DriverType = "mysql"
	DriverPostgres DriverType = "postgres"
)

// sqliteFile is the database file created in the data dir when no dsn is set
const sqliteFile = "credtrust.db"

type dialect struct {
	defaultPort int
	// dsn renders a connection string from the, already defaulted, DSNConf
	dsn  func(DSNConf) string
	open func(dsn string) gorm.Dialector
}

var dialects = map[DriverType]dialect{
	DriverSQLite: {
		open: sqlite.Open,
	},
	DriverMySQL: {
		defaultPort: 3306,
		dsn: func(c DSNConf) string {
			return fmt.Sprintf(
				"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True", c.User, c.Password, c.Host, c.Port, c.DB,
			)
		},
		open: mysql.Open,
	},
	DriverPostgres: {
		defaultPort: 5432,
		dsn: func(c DSNConf) string {
			return fmt.Sprintf(
				"host=%s user=%s password=%s dbname=%s port=%d", c.Host, c.User, c.Password, c.DB, c.Port,
			)
		},
		open: postgres.Open,
	},
}

// DSNConf holds the connection parameters of a database server
type DSNConf struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       string `yaml:"db"`
}

// DSN builds the connection string for a database server. Drivers without
// a server (sqlite) return an error.
func DSN(driver DriverType, conf DSNConf) (string, error) {
	d, ok := dialects[driver]
	if !ok {
		return "", errors.Errorf("unsupported driver '%s'", driver)
	}
	if d.dsn == nil {
		return "", errors.Errorf("driver %s does not use dsn", driver)
	}
	if conf.Port == 0 {
		conf.Port = d.defaultPort
	}
	return d.dsn(conf), nil
}

// Config is the database configuration
type Config struct {
	Driver DriverType
	// DSN is the connection string; for sqlite it is the database file and
	// ":memory:" gives a throw-away database
	DSN string
	// DataDir holds the sqlite database file if DSN is empty
	DataDir string
	// Debug logs every statement
	Debug     bool
	UsersHash Argon2idParams
}

// gormLogger forwards gorm's log output to logrus
func gormLogger(debug bool) logger.Interface {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	return logger.New(
		log.StandardLogger(), logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// Connect opens the database described by cfg
func Connect(cfg Config) (*gorm.DB, error) {
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, errors.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	dsn := cfg.DSN
	if dsn == "" && cfg.Driver == DriverSQLite {
		dsn = filepath.Join(cfg.DataDir, sqliteFile)
	}
	db, err := gorm.Open(
		d.open(dsn), &gorm.Config{
			Logger:         gormLogger(cfg.Debug),
			TranslateError: true,
		},
	)
	return db, errors.Wrapf(err, "failed to open %s database", cfg.Driver)
}

// LoadStorageBackends connects to and migrates the database and returns the
// stores backed by it
func LoadStorageBackends(cfg Config) (model.Backends, error) {
	warehouse, err := NewStorage(cfg)
	if err != nil {
		return model.Backends{}, err
	}
	return model.Backends{
		Certificates: warehouse.CertificateStorage(),
		Events:       warehouse.CertificateEventStorage(),
		OTP:          warehouse.OTPStorage(),
		Users:        warehouse.UsersStorage(),
		KV:           warehouse.KeyValue(),
	}, nil
}
