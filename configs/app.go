package configs

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type AppConfigs struct {
	DatabaseURL    string `env:"EMBEDQ_DATABASE_URL,notEmpty"`
	ListenAddr     string `env:"EMBEDQ_LISTEN_ADDR" envDefault:"localhost:8080"`
	SkipMigrations bool   `env:"EMBEDQ_SKIP_MIGRATIONS" envDefault:"false"` // set when the platform owns the schema (e.g. managed Supabase)
	MetricsEnabled bool   `env:"EMBEDQ_METRICS_ENABLED" envDefault:"true"`

	IndexerURL     string        `env:"EMBEDQ_INDEXER_URL,notEmpty"`
	IndexerAPIKey  string        `env:"EMBEDQ_INDEXER_API_KEY"`
	IndexerTimeout time.Duration `env:"EMBEDQ_INDEXER_TIMEOUT" envDefault:"30s"` // a timed-out indexing call is a regular item failure

	DefaultBatchSize int           `env:"EMBEDQ_DEFAULT_BATCH_SIZE" envDefault:"10"`
	MaxBatchSize     int           `env:"EMBEDQ_MAX_BATCH_SIZE" envDefault:"100"`
	MaxRetries       int           `env:"EMBEDQ_MAX_RETRIES" envDefault:"5"`
	BackoffBase      time.Duration `env:"EMBEDQ_BACKOFF_BASE" envDefault:"5m"`
	BackoffMax       time.Duration `env:"EMBEDQ_BACKOFF_MAX" envDefault:"24h"`
	WorkerLimit      int           `env:"EMBEDQ_WORKER_LIMIT" envDefault:"10"` // max in-flight indexing calls within one pass

	MaxProcessingTime time.Duration `env:"EMBEDQ_MAX_PROCESSING_TIME" envDefault:"5m"` // items stuck in processing longer than this are considered stale

	SchedulerEnabled bool `env:"EMBEDQ_SCHEDULER_ENABLED" envDefault:"true"`

	JobsIntervals JobsIntervals
	ServerConfig  ServerConfig
}

type JobsIntervals struct {
	Scheduler       time.Duration `env:"EMBEDQ_SCHEDULER_INTERVAL" envDefault:"5m"`
	StaleRecovery   time.Duration `env:"EMBEDQ_STALE_RECOVERY_INTERVAL" envDefault:"1m"`
	QueueDepthGauge time.Duration `env:"EMBEDQ_QUEUE_DEPTH_INTERVAL" envDefault:"30s"`
}

type ServerConfig struct {
	Timeouts ServerTimeouts
}

type ServerTimeouts struct {
	Handle     time.Duration
	Write      time.Duration
	Read       time.Duration
	ReadHeader time.Duration
	Idle       time.Duration
}

func NewAppConfig() (*AppConfigs, error) {
	var appConfigs AppConfigs
	if err := env.Parse(&appConfigs); err != nil {
		return nil, err
	}

	appConfigs.ServerConfig = ServerConfig{
		Timeouts: ServerTimeouts{
			Handle:     appConfigs.IndexerTimeout + 30*time.Second, // one pass settles within the indexer timeout plus store round-trips
			Write:      appConfigs.IndexerTimeout + 45*time.Second,
			Read:       15 * time.Second,
			ReadHeader: 10 * time.Second,
			Idle:       5 * time.Minute,
		},
	}
	return &appConfigs, nil
}

// BackoffDelay returns the cool-down window for an item that has been attempted
// n times: base * 2^(n-1), capped at the configured maximum. Items that were
// never attempted carry no delay.
func (ac *AppConfigs) BackoffDelay(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	if attempts > 32 {
		return ac.BackoffMax
	}
	delay := ac.BackoffBase << (attempts - 1)
	if delay <= 0 || delay > ac.BackoffMax {
		return ac.BackoffMax
	}
	return delay
}
