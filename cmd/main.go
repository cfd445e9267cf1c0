package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/splatgrid/api"
	"github.com/aukilabs/splatgrid/claims"
	"github.com/aukilabs/splatgrid/featureflag"
	splathttp "github.com/aukilabs/splatgrid/http"
	"github.com/aukilabs/splatgrid/lease"
	"github.com/aukilabs/splatgrid/models"
	"github.com/aukilabs/splatgrid/seed"
	"github.com/aukilabs/splatgrid/smoketest"
	"github.com/aukilabs/splatgrid/store"
	"github.com/aukilabs/splatgrid/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

var (
	// The splatgrid version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "splatgrid_info",
		Help:        "Splatgrid information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"SPLATGRID_ADDR"                 help:"Listening address for client requests."`
	AdminAddr          string        `cli:""        env:"SPLATGRID_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"SPLATGRID_PUBLIC_ENDPOINT"      help:"The public endpoint where this server is reachable."`
	AuthSecret         string        `cli:""        env:"SPLATGRID_AUTH_SECRET"          help:"The secret used to verify user access tokens."`
	AuthSecretFile     string        `cli:""        env:"SPLATGRID_AUTH_SECRET_FILE"     help:"The file that contains the secret used to verify user access tokens."`
	LogLevel           string        `cli:""        env:"SPLATGRID_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"SPLATGRID_LOG_INDENT"           help:"Indent logs."`
	Store              storeConfig   `cli:""        env:"-"                              help:"Store configuration."`
	MapsFile           string        `cli:""        env:"SPLATGRID_MAPS_FILE"            help:"YAML file that defines the bounded maps. Defaults to a 3x3 starter map."`
	ReservationTTL     time.Duration `cli:""        env:"SPLATGRID_RESERVATION_TTL"      help:"The time a reserved cell is held."`
	MaxClaimCells      int           `cli:",hidden" env:"SPLATGRID_MAX_CLAIM_CELLS"      help:"The maximum number of cells of a claim. Zero means no limit."`
	RateLimit          rateConfig    `cli:",hidden" env:"-"                              help:"Rate limit configuration."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"SPLATGRID_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by feed connection."`
	Events             eventsConfig  `cli:",hidden" env:"-"                              help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"SPLATGRID_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                              help:"Show version."`
	Help               bool          `cli:""        env:"-"                              help:"Show help."`
}

type storeConfig struct {
	Driver     string `cli:"" env:"SPLATGRID_STORE_DRIVER"      help:"Store driver (memory|sqlite)."`
	SQLitePath string `cli:"" env:"SPLATGRID_STORE_SQLITE_PATH" help:"SQLite database file."`
}

type rateConfig struct {
	RPS   float64 `cli:",hidden" env:"SPLATGRID_RATE_LIMIT_RPS"   help:"Allowed mutations per second and per user."`
	Burst int     `cli:",hidden" env:"SPLATGRID_RATE_LIMIT_BURST" help:"Allowed burst of mutations per user."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"SPLATGRID_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"SPLATGRID_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"SPLATGRID_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"SPLATGRID_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		ReservationTTL:     models.DefaultReservationTTL,
		LogSummaryInterval: time.Minute,
		Store: storeConfig{
			Driver:     "memory",
			SQLitePath: "splatgrid.db",
		},
		RateLimit: rateConfig{
			RPS:   5,
			Burst: 10,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts splatgrid server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	secret, err := loadAuthSecret(conf)
	if err != nil {
		logs.Fatal(errors.New("error loading auth secret").Wrap(err))
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "splatgrid",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	s, err := openStore(conf.Store)
	if err != nil {
		logs.Fatal(err)
	}
	defer s.Close()

	maps, err := seed.Load(conf.MapsFile)
	if err != nil {
		logs.Fatal(err)
	}

	var ready atomic.Bool
	if err := seed.Seed(ctx, s, maps); err != nil {
		logs.Fatal(errors.New("seeding maps failed").Wrap(err))
	}
	ready.Store(true)

	readinessCheck := ready.Load
	featureFlags := featureflag.New(conf.FeatureFlags)
	auth := splathttp.Authenticator{Secret: secret}
	hub := &websocket.Hub{FeatureFlags: featureFlags}

	a := &api.API{
		Leases: &lease.Manager{
			Store:     s,
			TTL:       conf.ReservationTTL,
			Publisher: hub,
		},
		Claims: &claims.Registry{
			Store:     s,
			MaxCells:  conf.MaxClaimCells,
			Publisher: hub,
		},
		Auth: auth,
		Hub:  hub,
		Limiter: &splathttp.LimiterPool{
			RPS:   conf.RateLimit.RPS,
			Burst: conf.RateLimit.Burst,
		},
		FeatureFlags:       featureFlags,
		PublicEndpoint:     conf.PublicEndpoint,
		LogSummaryInterval: conf.LogSummaryInterval,
		Context:            ctx,
	}

	var service http.ServeMux
	service.Handle("/health", splathttp.HandleWithCORS(http.HandlerFunc(splathttp.HandleHealthCheck)))
	service.Handle("/version", splathttp.HandleWithCORS(splathttp.HandleVersion(version)))
	service.Handle("/ready", splathttp.HandleWithCORS(splathttp.HandleReadyCheck(readinessCheck)))
	service.Handle("/", splathttp.HandleWithCORS(a.Handler()))

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", splathttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", splathttp.HandleReadyCheck(readinessCheck))
	admin.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		MakeToken: auth.MintToken,
		SendResult: func(ctx context.Context, res smoketest.Results) error {
			logs.WithTag("to_endpoint", res.ToEndpoint).
				WithTag("status", res.Status).
				WithTag("latency_ms", res.LatencyMilliSec).
				WithTag("error", res.Error).
				Info("smoke test result")
			return nil
		},
	}))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("store", conf.Store.Driver).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting splatgrid server")

	splathttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			splathttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func openStore(conf storeConfig) (store.Store, error) {
	switch conf.Driver {
	case "memory":
		return store.NewMemory(), nil

	case "sqlite":
		s, err := store.OpenSQLite(conf.SQLitePath)
		if err != nil {
			return nil, errors.New("opening sqlite store failed").
				WithTag("path", conf.SQLitePath).
				Wrap(err)
		}
		return s, nil

	default:
		return nil, errors.New("unknown store driver").
			WithTag("driver", conf.Driver)
	}
}

func loadAuthSecret(conf config) ([]byte, error) {
	secret := conf.AuthSecret

	if len(conf.AuthSecretFile) != 0 {
		b, err := os.ReadFile(conf.AuthSecretFile)
		if err != nil {
			return nil, errors.New("error loading auth secret from file").
				WithTag("file_name", conf.AuthSecretFile).
				Wrap(err)
		}
		secret = string(b)
	}

	secret = strings.TrimSpace(secret)
	if len(secret) == 0 {
		return nil, errors.New("auth secret is empty")
	}
	return []byte(secret), nil
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if len(conf.AuthSecret) != 0 &&
		len(conf.AuthSecretFile) != 0 {
		return errors.New("have to specify either auth secret or auth secret file, not both")
	}

	if len(conf.AuthSecret) == 0 &&
		len(conf.AuthSecretFile) == 0 {
		return errors.New("have to specify either auth secret or auth secret file")
	}

	if conf.ReservationTTL <= 0 {
		return errors.New("reservation ttl must be positive").
			WithTag("reservation_ttl", conf.ReservationTTL)
	}
	return nil
}
