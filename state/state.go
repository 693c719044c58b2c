package state

import (
	"context"
	"os"
	"time"

	"onerouter/auditlog"
	"onerouter/config"
	"onerouter/credcheck"
	"onerouter/migrations"
	"onerouter/onboarding"
	"onerouter/upstream"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/infinitybotlist/eureka/genconfig"
	"github.com/infinitybotlist/eureka/snippets"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Logger    *zap.SugaredLogger
	Context   = context.Background()
	Validator = validator.New()

	Config *config.Config

	Gateway  *upstream.Client
	Switcher *upstream.SwitchCoordinator
	Flow     *onboarding.Flow
	Sessions *onboarding.SessionStore
	Audit    *auditlog.AuditLog
)

func Setup() {
	Validator.RegisterValidation("notblank", validators.NotBlank)
	Validator.RegisterValidation("nospaces", snippets.ValidatorNoSpaces)

	genconfig.GenConfig(config.Config{})

	cfg, err := os.ReadFile("config.yaml")

	if err != nil {
		panic(err)
	}

	err = yaml.Unmarshal(cfg, &Config)

	if err != nil {
		panic(err)
	}

	err = Validator.Struct(Config)

	if err != nil {
		panic("configError: " + err.Error())
	}

	Pool, err = pgxpool.New(Context, Config.Meta.PostgresURL)

	if err != nil {
		panic(err)
	}

	Logger = snippets.CreateZap().Sugar()

	migrations.Migrate(Context, Pool, Logger.Desugar())

	rOptions, err := redis.ParseURL(Config.Meta.RedisURL)

	if err != nil {
		panic(err)
	}

	Redis = redis.NewClient(rOptions)

	Gateway = upstream.New(Config.Sites.Gateway.Parse(), nil, Logger.Desugar())

	Switcher = upstream.NewSwitchCoordinator(Gateway, Logger.Desugar())

	Sessions = &onboarding.SessionStore{
		Redis: Redis,
		TTL:   time.Duration(Config.Onboarding.SessionTTL) * time.Second,
	}

	Flow = &onboarding.Flow{
		Sessions: Sessions,
		Gateway:  Gateway,
		Redis:    Redis,
		Logger:   Logger.Desugar(),
	}

	if Config.Onboarding.VerifyCredentials {
		checker := &credcheck.Checker{
			Logger:     Logger.Desugar(),
			UseSandbox: Config.Providers.PaypalUseSandbox,
		}

		Flow.VerifyCredentials = checker.Verify
	}

	Audit = &auditlog.AuditLog{
		Pool:   Pool,
		Logger: Logger.Desugar(),
	}

	go func() {
		// Prime the gateway csrf token and the environment mode cache so the
		// first dashboard request does not pay for them
		if err := Gateway.Csrf.Init(Context); err != nil {
			Logger.Error("Failed to prime gateway csrf token: ", err)
		}

		if _, err := Switcher.RefreshMode(Context); err != nil {
			Logger.Error("Failed to prime environment mode: ", err)
		}
	}()
}
