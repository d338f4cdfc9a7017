// Package config loads and validates the credtrust configuration file.
package config

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/fileutils"
	"gopkg.in/yaml.v3"

	"github.com/eduverify/credtrust"
)

// EnvConfigFile names the environment variable that may point to the
// config file
const EnvConfigFile = "CREDTRUST_CONFIG"

// Config holds the complete credtrust configuration
type Config struct {
	Server   credtrust.ServerConf `yaml:"server"`
	Logging  loggingConf          `yaml:"logging"`
	Storage  storageConf          `yaml:"storage"`
	Caching  cachingConf          `yaml:"cache"`
	OTP      otpConf              `yaml:"otp"`
	Issuance issuanceConf         `yaml:"issuance"`
	Notify   notifyConf           `yaml:"notify"`
	NATS     natsConf             `yaml:"nats"`
	Proof    proofConf            `yaml:"proof"`
	API      apiConf              `yaml:"api"`
}

type configValidator interface {
	validate() error
}

var conf *Config

var possibleConfigLocations = []string{
	"config.yaml",
	"/config/config.yaml",
	"/etc/credtrust/config.yaml",
}

func defaultConfig() *Config {
	return &Config{
		Server:   defaultServerConf,
		Logging:  defaultLoggingConf(),
		Storage:  defaultStorageConf,
		Caching:  defaultCachingConf,
		OTP:      defaultOTPConf,
		Issuance: defaultIssuanceConf,
		Notify:   defaultNotifyConf,
		NATS:     defaultNATSConf,
		Proof:    defaultProofConf,
		API:      defaultAPIConf,
	}
}

var defaultServerConf = credtrust.ServerConf{
	Port: 7672,
}

// Get returns the loaded Config
func Get() *Config {
	return conf
}

// Load reads the config file and validates it. The file is taken from the
// passed name, EnvConfigFile, or the first existing default location. It
// terminates the process on failure.
func Load(filename string) {
	if filename == "" {
		filename = os.Getenv(EnvConfigFile)
	}
	if filename == "" {
		for _, f := range possibleConfigLocations {
			if fileutils.FileExists(f) {
				filename = f
				break
			}
		}
	}
	if filename == "" {
		log.Fatal("no config file found")
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		log.WithError(err).WithField("file", filename).Fatal("could not read config file")
	}
	c, err := Parse(data)
	if err != nil {
		log.WithError(err).WithField("file", filename).Fatal("invalid config")
	}
	conf = c
}

// Parse overlays the passed yaml onto the defaults, fills secrets from the
// environment, and validates every section
func Parse(data []byte) (*Config, error) {
	c := defaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "could not parse config")
	}
	c.fillFromEnv()
	for name, section := range map[string]configValidator{
		"logging":  &c.Logging,
		"storage":  &c.Storage,
		"cache":    &c.Caching,
		"otp":      &c.OTP,
		"issuance": &c.Issuance,
		"notify":   &c.Notify,
		"nats":     &c.NATS,
		"proof":    &c.Proof,
		"api":      &c.API,
	} {
		if err := section.validate(); err != nil {
			return nil, errors.Wrapf(err, "error in %s conf", name)
		}
	}
	if c.Notify.Email.Type == notifierNATS && c.NATS.URL == "" {
		return nil, errors.New("error in notify conf: email notifier 'nats' requires nats.url")
	}
	if c.NATS.PublishEvents && c.NATS.URL == "" {
		return nil, errors.New("error in nats conf: publish_events requires url")
	}
	if c.Proof.Enabled && c.Proof.Issuer == "" {
		c.Proof.Issuer = c.Server.ExternalURL
	}
	return c, nil
}

// Environment variables that may carry secrets instead of the config file
const (
	EnvTwilioAccountSID = "TWILIO_ACCOUNT_SID"
	EnvTwilioAuthToken  = "TWILIO_AUTH_TOKEN"
	EnvRedisPassword    = "REDIS_PASSWORD"
	EnvDBPassword       = "DB_PASSWORD"
)

func envDefault(value *string, env string) {
	if *value == "" {
		*value = os.Getenv(env)
	}
}

func (c *Config) fillFromEnv() {
	envDefault(&c.Notify.SMS.AccountSID, EnvTwilioAccountSID)
	envDefault(&c.Notify.SMS.AuthToken, EnvTwilioAuthToken)
	envDefault(&c.Caching.Password, EnvRedisPassword)
	envDefault(&c.Storage.Password, EnvDBPassword)
}
