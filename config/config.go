package config

import (
	_ "embed"
	"strings"
)

const (
	CurrentEnvProd    = "prod"
	CurrentEnvStaging = "staging"
)

//go:embed current-env
var CurrentEnv string

func init() {
	CurrentEnv = strings.TrimSpace(CurrentEnv)

	if CurrentEnv != CurrentEnvProd && CurrentEnv != CurrentEnvStaging {
		panic("invalid environment")
	}
}

// Common struct for values that differ between staging and production environments
type Differs[T any] struct {
	Staging T `yaml:"staging" comment:"Staging value" validate:"required"`
	Prod    T `yaml:"prod" comment:"Production value" validate:"required"`
}

func (d *Differs[T]) Parse() T {
	if CurrentEnv == CurrentEnvProd {
		return d.Prod
	} else if CurrentEnv == CurrentEnvStaging {
		return d.Staging
	} else {
		panic("invalid environment")
	}
}

type Config struct {
	Sites      Sites      `yaml:"sites" validate:"required"`
	Onboarding Onboarding `yaml:"onboarding" validate:"required"`
	Providers  Providers  `yaml:"providers" validate:"required"`
	Meta       Meta       `yaml:"meta" validate:"required"`
}

type Sites struct {
	Frontend string          `yaml:"frontend" default:"https://dash.onerouter.dev" comment:"Dashboard frontend URL" validate:"required"`
	API      Differs[string] `yaml:"api" default:"https://api.onerouter.dev" comment:"This service's public URL" validate:"required"`
	Gateway  Differs[string] `yaml:"gateway" default:"https://gateway.onerouter.dev" comment:"Upstream gateway API base URL" validate:"required"`
}

type Onboarding struct {
	SessionTTL        int  `yaml:"session_ttl" default:"3600" comment:"Staging session TTL in seconds. Sessions hold unencrypted credential material and must expire even if never committed" validate:"required"`
	VerifyCredentials bool `yaml:"verify_credentials" default:"false" comment:"Ping the provider APIs to verify credentials before commit"`
}

type Providers struct {
	PaypalUseSandbox bool `yaml:"paypal_use_sandbox" default:"true" comment:"Use the Paypal sandbox API base when verifying uploaded Paypal credentials"`
}

type Meta struct {
	PostgresURL string          `yaml:"postgres_url" default:"postgresql:///onerouter" comment:"Postgres URL" validate:"required"`
	RedisURL    string          `yaml:"redis_url" default:"redis://localhost:6379" comment:"Redis URL" validate:"required"`
	Port        Differs[string] `yaml:"port" default:":8081" comment:"Port to run the server on" validate:"required"`
	UrgentAlert string          `yaml:"urgent_alert" default:"" comment:"Contact shown on terminal gateway failures"`
}
