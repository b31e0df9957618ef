package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/authcore-dev/authcore/internal/accounts"
	"github.com/authcore-dev/authcore/internal/analytics"
	"github.com/authcore-dev/authcore/internal/breach"
	"github.com/authcore-dev/authcore/internal/config"
	"github.com/authcore-dev/authcore/internal/delivery"
	"github.com/authcore-dev/authcore/internal/events"
	"github.com/authcore-dev/authcore/internal/handlers/api"
	"github.com/authcore-dev/authcore/internal/mfa"
	"github.com/authcore-dev/authcore/internal/middlewares"
	"github.com/authcore-dev/authcore/internal/password"
	"github.com/authcore-dev/authcore/internal/profiles"
	"github.com/authcore-dev/authcore/internal/render"
	"github.com/authcore-dev/authcore/internal/secrets"
	"github.com/authcore-dev/authcore/internal/sessions"
	"github.com/authcore-dev/authcore/internal/store"
	"github.com/authcore-dev/authcore/model"
	"github.com/authcore-dev/authcore/params"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
	gitTag    string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "authcore - authentication security core service"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

// mustParseDSN validates the DSN up front and forces parseTime, which gorm
// needs to scan DATETIME columns into time.Time.
func mustParseDSN(dsn string) string {
	dsnCfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		slog.Error("Invalid MySQL DSN", "error", err)
		os.Exit(1)
	}
	dsnCfg.ParseTime = true
	return dsnCfg.FormatDSN()
}

func mustInitDatabase(dbConfig config.MySQLConfig) *gorm.DB {
	db, err := gorm.Open(mysql.Open(mustParseDSN(dbConfig.Dsn)), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   dbConfig.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	// analytics range queries go to the replica when one is configured
	if dbConfig.ReplicaDsn != "" {
		err = db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: []gorm.Dialector{mysql.Open(mustParseDSN(dbConfig.ReplicaDsn))},
		}, &model.SecurityEvent{}, &model.Session{}))
		if err != nil {
			slog.Error("Failed to register read replica", "error", err)
			os.Exit(1)
		}
	}

	if err := db.AutoMigrate(model.Models...); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}

	return db
}

func mustInitMailSender(mailCfg config.MailConfig) delivery.MailSender {
	if mailCfg.Backend != "smtp" {
		slog.Error("Unsupported mail sender backend", "backend", mailCfg.Backend)
		os.Exit(1)
	}
	sender, err := delivery.NewSMTPMailSender(delivery.SMTPConfig{
		Host:     mailCfg.SMTP.Host,
		Port:     mailCfg.SMTP.Port,
		Username: mailCfg.SMTP.Username,
		Password: mailCfg.SMTP.Password,
		TLS:      mailCfg.SMTP.TLS,
		CertFile: mailCfg.SMTP.CertFile,
		KeyFile:  mailCfg.SMTP.KeyFile,
		CAFile:   mailCfg.SMTP.CAFile,
	}, mailCfg.SMTP.From)
	if err != nil {
		slog.Error("Failed to initialize mail sender", "error", err)
		os.Exit(1)
	}
	return sender
}

func mustInitSMSSender(smsCfg config.SMSConfig) delivery.SMSSender {
	if smsCfg.Backend == "webhook" {
		return delivery.NewWebhookSMSSender(smsCfg.WebhookURL, smsCfg.APIKey, params.ServerWriteTimeout)
	}
	return delivery.LogSMSSender{}
}

func mustInitBreachChecker(passwordCfg config.PasswordConfig) breach.Checker {
	if !passwordCfg.BreachCheck {
		return breach.NullChecker{}
	}
	return breach.NewClient(passwordCfg.BreachBaseURL, params.BreachCheckTimeout)
}

func mustInitRedisStorage(redisCfg config.RedisConfig) *redis.Storage {
	return redis.New(redis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
}

func mustInitRenderer(siteName string, templateDir string) *render.Renderer {
	renderer, err := render.New(map[string]interface{}{"siteName": siteName}, templateDir)
	if err != nil {
		slog.Error("Failed to load mail templates", "error", err)
		os.Exit(1)
	}
	return renderer
}

func mustInitCipher(masterKey string) *secrets.Cipher {
	cipher, err := secrets.NewCipher(masterKey)
	if err != nil {
		slog.Error("Failed to initialize secret cipher", "error", err)
		os.Exit(1)
	}
	return cipher
}

func run(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}

	mustInitLogger(cfg.Debug || ctx.IsSet(debugFlag.Name))

	db := mustInitDatabase(cfg.MySQL)
	redisStorage := mustInitRedisStorage(cfg.Redis)
	cacheStorage := store.NewRedisStorage(redisStorage.Conn())
	renderer := mustInitRenderer(cfg.SiteName, cfg.TemplateDir)
	mailSender := mustInitMailSender(cfg.Mail)
	smsSender := mustInitSMSSender(cfg.SMS)
	breachChecker := mustInitBreachChecker(cfg.Password)
	cipher := mustInitCipher(cfg.MasterKey)

	registry := prometheus.NewRegistry()
	metrics := events.NewMetrics(registry)

	// repositories
	var (
		accountRepo    = accounts.NewAccountRepository(db)
		profileRepo    = profiles.NewProfileRepository(db)
		factorRepo     = mfa.NewFactorSecretRepository(db)
		backupCodeRepo = mfa.NewBackupCodeRepository(db)
		sessionRepo    = sessions.NewSessionRepository(db)
		historyRepo    = password.NewHistoryRepository(db)
		eventRepo      = events.NewEventRepository(db)
	)

	// services
	var (
		eventLog       = events.NewLogger(eventRepo, events.LogSink{}, metrics)
		fingerprinter  = sessions.NewFingerprinter(cfg.MasterKey)
		sessionManager = sessions.NewManager(sessionRepo, profileRepo, fingerprinter, eventLog, cfg.Session.MaxAge, cfg.Session.MaxConcurrent)
		passwordEngine = password.NewEngine(profileRepo, historyRepo, breachChecker, accountRepo, mailSender, renderer, eventLog)
		mfaService     = mfa.NewService(
			mfa.Config{
				Issuer:       cfg.SiteName,
				MaxAttempts:  cfg.MFA.MaxAttempts,
				LockDuration: cfg.MFA.LockoutDuration,
			},
			accountRepo, profileRepo, factorRepo, backupCodeRepo,
			cacheStorage, cipher, smsSender, mailSender, renderer,
			sessionManager, eventLog,
		)
		analyticsEngine = analytics.NewEngine(eventRepo, sessionRepo, profileRepo, eventLog)
	)

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.ErrorHandler,
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	router.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api.RegisterRoutes(
		router,
		api.NewMFAHandler(mfaService),
		api.NewSessionHandler(sessionManager, eventLog),
		api.NewPasswordHandler(passwordEngine),
		api.NewAnalyticsHandler(analyticsEngine),
	)

	go sessionManager.StartSweeper(ctx.Context, params.SessionSweepInterval)
	go analyticsEngine.StartSweeper(ctx.Context, params.AnomalySweepInterval, cfg.Analytics.SiteIDs, cfg.Analytics.WindowDays)
	go startHealthCheckServer(redisStorage.Conn(), db)

	return router.Listen(cfg.ListenAddr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
