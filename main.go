package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/orcohen/crypto-logs/api"
	"github.com/orcohen/crypto-logs/auth"
	"github.com/orcohen/crypto-logs/elastic"
	"github.com/orcohen/crypto-logs/etherscan"
	"github.com/orcohen/crypto-logs/metrics"
	"github.com/orcohen/crypto-logs/retention"
	"github.com/orcohen/crypto-logs/session"
	"github.com/orcohen/crypto-logs/web"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "CRYPTO_LOGS"

func main() {
	if err := run(); err != nil {
		log.Fatalf("main: exited with error: %s", err.Error())
	}
}

func run() error {
	log.SetOutput(os.Stdout) // default is stderr

	config := zap.NewProductionConfig()
	// this is just for sugar, to display a readable date instead of an epoch time
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)
	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("creating logger: %v", err)
	}
	defer logger.Sync()
	sLogger := logger.Sugar()

	var cfg struct {
		Server struct {
			HttpHost        string `conf:"default:0.0.0.0:8000"`
			MetricsHttpHost string `conf:"default:0.0.0.0:9999"`
		}
		Explorer struct {
			BaseUrl string        `conf:"default:https://api.etherscan.io"`
			ApiKey  string        `conf:"optional,noprint"`
			Timeout time.Duration `conf:"default:20s"`
		}
		Elastic struct {
			Addresses       []string `conf:"default:https://localhost:9200"`
			Username        string   `conf:"default:elastic"`
			Password        string   `conf:"optional"`
			IndexName       string   `conf:"default:wallet-logs"`
			CertificatePath string   `conf:"default:http_ca.crt"`
			MaxRetries      int      `conf:"default:5"`
		}
		Auth struct {
			UsersFile string `conf:"default:users.json"`
		}
		Session struct {
			StoreFolder string `conf:"default:store"`
		}
		Metrics struct {
			Namespace string `conf:"default:crypto_logs"`
		}
	}

	// load config
	if err := conf.Parse(os.Args[1:], envPrefix, &cfg); err != nil {
		switch {
		case errors.Is(err, conf.ErrHelpWanted):
			usage, err := conf.Usage(envPrefix, &cfg)
			if err != nil {
				return errors.Wrap(err, "generating config usage")
			}
			fmt.Println(usage)
			return nil
		case errors.Is(err, conf.ErrVersionWanted):
			version, err := conf.VersionString(envPrefix, &cfg)
			if err != nil {
				return errors.Wrap(err, "generating config version")
			}
			fmt.Println(version)
			return nil
		}
		return errors.Wrap(err, "parsing config")
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return errors.Wrap(err, "generating config for output")
	}
	log.Printf("main: Config :\n%v\n", out)

	credentials, err := auth.Load(cfg.Auth.UsersFile)
	if err != nil {
		return errors.Wrap(err, "loading users")
	}

	cert, err := os.ReadFile(cfg.Elastic.CertificatePath)
	if err != nil {
		log.Printf("[WARN] main: could not read elastic certificate: %v", err)
	}
	esClient, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     cfg.Elastic.Addresses,
		Username:      cfg.Elastic.Username,
		Password:      cfg.Elastic.Password,
		CACert:        cert,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.Elastic.MaxRetries,
	})
	if err != nil {
		return errors.Wrap(err, "creating elastic client")
	}
	store := elastic.NewClient(esClient, cfg.Elastic.IndexName)
	if err := store.CreateIndex(context.Background()); err != nil {
		// requests fail later anyway if the store stays unreachable
		log.Printf("[WARN] main: could not bootstrap index: %v", err)
	}

	sessions, err := session.NewStore(cfg.Session.StoreFolder)
	if err != nil {
		return errors.Wrap(err, "creating session store")
	}
	defer sessions.Close()

	explorerClient := etherscan.NewClient(cfg.Explorer.BaseUrl, cfg.Explorer.ApiKey, cfg.Explorer.Timeout)

	m := metrics.NewMetrics(cfg.Metrics.Namespace)
	pipeline := retention.NewPipeline(explorerClient, store, m, sLogger)

	apiHandler := api.NewHandler(pipeline, credentials)
	webHandler, err := web.NewHandler(pipeline, credentials, sessions)
	if err != nil {
		return errors.Wrap(err, "creating web handler")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", apiHandler.Login)
	mux.HandleFunc("/api/dashboard", apiHandler.Dashboard)
	mux.HandleFunc("/api/logs", apiHandler.Logs)
	mux.HandleFunc("/health", apiHandler.Health)
	webHandler.Register(mux)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverError := make(chan error, 1)
	go func() {
		log.Printf("main: Starting server on addr [%s].", cfg.Server.HttpHost)
		serverError <- http.ListenAndServe(cfg.Server.HttpHost, mux)
	}()

	metricsServerError := make(chan error, 1)
	go func() {
		log.Printf("main: Starting metrics server on addr [%s].", cfg.Server.MetricsHttpHost)
		http.Handle("/metrics", promhttp.Handler())
		metricsServerError <- http.ListenAndServe(cfg.Server.MetricsHttpHost, nil)
	}()

	log.Println("main: Service started.")

	for {
		select {
		case <-shutdown:
			log.Println("main: Received shutdown signal, shutting down...")
			return nil
		case err := <-serverError:
			return errors.Wrap(err, "[ERROR] starting server endpoint")
		case err := <-metricsServerError:
			return errors.Wrap(err, "[ERROR] starting metrics endpoint")
		}
	}
}
