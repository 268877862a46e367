package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	StorageBackend string `long:"storage-backend" env:"STORAGE_BACKEND" default:"local" choice:"local" choice:"remote" description:"Storage backend: local filesystem or remote object store"`
	DataDir        string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Root directory for local blob storage"`
	MongoURI       string `long:"mongo-uri" env:"MONGO_URI" default:"mongodb://localhost:27017" description:"MongoDB connection URI for the remote object store"`
	MongoDatabase  string `long:"mongo-database" env:"MONGO_DATABASE" default:"newsroom" description:"MongoDB database name for the remote object store"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for source processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"3600" description:"Scheduler interval in seconds"`
	FetchTimeout      int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-source fetch timeout in seconds"`
	FetchWindowHours  int    `long:"fetch-window" env:"FETCH_WINDOW" default:"72" description:"How far back a fetch cycle looks, in hours"`
	RetentionDays     int    `long:"retention-days" env:"RETENTION_DAYS" default:"14" description:"Days an archived item is retained before pruning"`
	QualityRulesFile  string `long:"quality-rules" env:"QUALITY_RULES" default:"./quality.yml" description:"Path to the quality filter rules file"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Collaborator configuration
	SummarizerEndpoint string `long:"summarizer-endpoint" env:"SUMMARIZER_ENDPOINT" default:"https://api.openai.com/v1/chat/completions" description:"OpenAI-compatible chat completions endpoint"`
	SummarizerModel    string `long:"summarizer-model" env:"SUMMARIZER_MODEL" default:"gpt-4o-mini" description:"Model used for editorial summaries"`
	SummarizerAPIKey   string `long:"summarizer-api-key" env:"SUMMARIZER_API_KEY" description:"API key for the summarization service"`
	DeliveryEndpoint   string `long:"delivery-endpoint" env:"DELIVERY_ENDPOINT" description:"Newsletter delivery API endpoint (optional)"`
	DeliveryAPIKey     string `long:"delivery-api-key" env:"DELIVERY_API_KEY" description:"API key for the delivery service"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Newsroom/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		StorageBackend:     raw.StorageBackend,
		DataDir:            raw.DataDir,
		MongoURI:           raw.MongoURI,
		MongoDatabase:      raw.MongoDatabase,
		Port:               raw.Port,
		WorkerCount:        raw.WorkerCount,
		SchedulerInterval:  raw.SchedulerInterval,
		FetchTimeout:       raw.FetchTimeout,
		FetchWindowHours:   raw.FetchWindowHours,
		RetentionDays:      raw.RetentionDays,
		QualityRulesFile:   raw.QualityRulesFile,
		APIAccessKey:       raw.APIAccessKey,
		SummarizerEndpoint: raw.SummarizerEndpoint,
		SummarizerModel:    raw.SummarizerModel,
		SummarizerAPIKey:   raw.SummarizerAPIKey,
		DeliveryEndpoint:   raw.DeliveryEndpoint,
		DeliveryAPIKey:     raw.DeliveryAPIKey,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Used by tests.
func Set(c *Cfg) {
	globalCfg = c
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
