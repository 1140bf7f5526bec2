// internal/infra/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Journal backends.
const (
	JournalNone      = "none"
	JournalPostgres  = "postgres"
	JournalFirestore = "firestore"
)

// Metadata publishers.
const (
	PublisherNone = "none"
	PublisherGCS  = "gcs"
	PublisherIrys = "irys"
)

const defaultRPCURL = "https://api.devnet.solana.com"

// Config is everything the issuer needs, resolved once at startup.
type Config struct {
	Solana   SolanaConfig   `mapstructure:"solana"`
	Keys     KeysConfig     `mapstructure:"keys"`
	Issuance IssuanceConfig `mapstructure:"issuance"`
	GCP      GCPConfig      `mapstructure:"gcp"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type SolanaConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	Commitment     string        `mapstructure:"commitment"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	// PriorityFeeMicroLamports prepends a compute-unit price instruction when non-zero.
	PriorityFeeMicroLamports uint64 `mapstructure:"priority_fee_micro_lamports"`
}

// KeysConfig selects the fee payer and optional mint authority key sources.
// Secret text wins over a keypair file; a Secret Manager name wins over both.
type KeysConfig struct {
	Secret            string `mapstructure:"secret"`
	KeypairFile       string `mapstructure:"keypair_file"`
	SecretManagerName string `mapstructure:"secret_manager_name"`

	MintAuthorityFile       string `mapstructure:"mint_authority_file"`
	MintAuthoritySecretName string `mapstructure:"mint_authority_secret_name"`
}

type IssuanceConfig struct {
	PrecheckHoldingAccount bool  `mapstructure:"precheck_holding_account"`
	AnchorRefreshAttempts  int   `mapstructure:"anchor_refresh_attempts"`
	RentCacheEntries       int64 `mapstructure:"rent_cache_entries"`
	BatchConcurrency       int   `mapstructure:"batch_concurrency"`
	ReadBackBalance        bool  `mapstructure:"read_back_balance"`
}

type GCPConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type JournalConfig struct {
	Backend             string `mapstructure:"backend"`
	PostgresDSN         string `mapstructure:"postgres_dsn"`
	FirestoreCollection string `mapstructure:"firestore_collection"`
}

type MetadataConfig struct {
	Publisher        string        `mapstructure:"publisher"`
	GCSBucket        string        `mapstructure:"gcs_bucket"`
	GCSPublicBaseURL string        `mapstructure:"gcs_public_base_url"`
	ArweaveBaseURL   string        `mapstructure:"arweave_base_url"`
	ArweaveAPIKey    string        `mapstructure:"arweave_api_key"`
	UploadTimeout    time.Duration `mapstructure:"upload_timeout"`
}

type NotifyConfig struct {
	SendGridAPIKey string   `mapstructure:"sendgrid_api_key"`
	From           string   `mapstructure:"from"`
	FromName       string   `mapstructure:"from_name"`
	To             []string `mapstructure:"to"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("solana.rpc_url", defaultRPCURL)
	v.SetDefault("solana.commitment", "confirmed")
	v.SetDefault("solana.request_timeout", 12*time.Second)
	v.SetDefault("solana.poll_interval", 500*time.Millisecond)
	v.SetDefault("solana.priority_fee_micro_lamports", 26000)

	v.SetDefault("issuance.precheck_holding_account", false)
	v.SetDefault("issuance.anchor_refresh_attempts", 0)
	v.SetDefault("issuance.rent_cache_entries", 64)
	v.SetDefault("issuance.batch_concurrency", 4)
	v.SetDefault("issuance.read_back_balance", true)

	v.SetDefault("gcp.project_id", "narratives-development-26c2d")

	v.SetDefault("journal.backend", JournalNone)
	v.SetDefault("journal.firestore_collection", "issuances")

	v.SetDefault("metadata.publisher", PublisherNone)
	v.SetDefault("metadata.gcs_public_base_url", "https://storage.googleapis.com")
	v.SetDefault("metadata.upload_timeout", 30*time.Second)

	v.SetDefault("notify.from_name", "Narratives Mint")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// env names kept from the deployed services
var envBindings = map[string][]string{
	"solana.rpc_url":                     {"SOLANA_RPC_URL", "DEVNET_URL", "SOLANA_RPC_ENDPOINT"},
	"solana.commitment":                  {"SOLANA_COMMITMENT"},
	"solana.priority_fee_micro_lamports": {"SOLANA_PRIORITY_FEE"},
	"keys.secret":                        {"SECRET_KEY"},
	"keys.keypair_file":                  {"SOLANA_KEYPAIR_FILE"},
	"keys.secret_manager_name":           {"SOLANA_FEE_PAYER_SECRET"},
	"keys.mint_authority_file":           {"SOLANA_MINT_AUTHORITY_FILE"},
	"keys.mint_authority_secret_name":    {"SOLANA_MINT_KEY_SECRET"},
	"issuance.precheck_holding_account":  {"ISSUANCE_PRECHECK_HOLDING"},
	"issuance.anchor_refresh_attempts":   {"ISSUANCE_ANCHOR_REFRESH_ATTEMPTS"},
	"issuance.batch_concurrency":         {"ISSUANCE_BATCH_CONCURRENCY"},
	"gcp.project_id":                     {"GCP_PROJECT_ID", "FIRESTORE_PROJECT_ID"},
	"gcp.credentials_file":               {"GOOGLE_APPLICATION_CREDENTIALS"},
	"journal.backend":                    {"JOURNAL_BACKEND"},
	"journal.postgres_dsn":               {"DATABASE_URL"},
	"journal.firestore_collection":       {"ISSUANCES_COLLECTION"},
	"metadata.publisher":                 {"METADATA_PUBLISHER"},
	"metadata.gcs_bucket":                {"GCS_BUCKET"},
	"metadata.arweave_base_url":          {"ARWEAVE_BASE_URL"},
	"metadata.arweave_api_key":           {"ARWEAVE_API_KEY"},
	"notify.sendgrid_api_key":            {"SENDGRID_API_KEY"},
	"notify.from":                        {"SENDGRID_FROM"},
	"notify.to":                          {"ISSUANCE_NOTIFY_TO"},
	"log.level":                          {"LOG_LEVEL"},
	"metrics.addr":                       {"METRICS_ADDR"},
}

// Load reads the optional YAML file at path, overlays the environment, and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if p := strings.TrimSpace(path); p != "" {
		v.SetConfigFile(p)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", p, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Solana.RPCURL = strings.TrimSpace(c.Solana.RPCURL)
	c.Solana.Commitment = strings.ToLower(strings.TrimSpace(c.Solana.Commitment))
	c.Journal.Backend = strings.ToLower(strings.TrimSpace(c.Journal.Backend))
	c.Metadata.Publisher = strings.ToLower(strings.TrimSpace(c.Metadata.Publisher))
	c.Metadata.ArweaveBaseURL = strings.TrimRight(strings.TrimSpace(c.Metadata.ArweaveBaseURL), "/")
	c.Metadata.GCSPublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Metadata.GCSPublicBaseURL), "/")

	to := c.Notify.To[:0]
	for _, addr := range c.Notify.To {
		for _, part := range strings.Split(addr, ",") {
			if p := strings.TrimSpace(part); p != "" {
				to = append(to, p)
			}
		}
	}
	c.Notify.To = to
}

// Validate fails fast on settings that would make an issuance undefined.
// Optional features stay disabled when their settings are empty.
func (c *Config) Validate() error {
	if !isHTTPURL(c.Solana.RPCURL) {
		return fmt.Errorf("config: solana.rpc_url must start with http:// or https:// (got %q)", c.Solana.RPCURL)
	}
	switch c.Solana.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("config: solana.commitment must be processed, confirmed or finalized (got %q)", c.Solana.Commitment)
	}
	if c.Solana.PollInterval <= 0 {
		return fmt.Errorf("config: solana.poll_interval must be positive")
	}
	if c.Issuance.AnchorRefreshAttempts < 0 {
		return fmt.Errorf("config: issuance.anchor_refresh_attempts must not be negative")
	}
	if c.Issuance.BatchConcurrency < 1 {
		return fmt.Errorf("config: issuance.batch_concurrency must be at least 1")
	}
	if c.Issuance.RentCacheEntries < 1 {
		return fmt.Errorf("config: issuance.rent_cache_entries must be at least 1")
	}

	switch c.Journal.Backend {
	case JournalNone:
	case JournalPostgres:
		if strings.TrimSpace(c.Journal.PostgresDSN) == "" {
			return fmt.Errorf("config: journal.postgres_dsn is required for the postgres journal")
		}
	case JournalFirestore:
		if strings.TrimSpace(c.GCP.ProjectID) == "" {
			return fmt.Errorf("config: gcp.project_id is required for the firestore journal")
		}
		if strings.TrimSpace(c.Journal.FirestoreCollection) == "" {
			return fmt.Errorf("config: journal.firestore_collection is empty")
		}
	default:
		return fmt.Errorf("config: unknown journal.backend %q", c.Journal.Backend)
	}

	switch c.Metadata.Publisher {
	case PublisherNone:
	case PublisherGCS:
		b := strings.TrimSpace(c.Metadata.GCSBucket)
		if b == "" || strings.ContainsAny(b, " \t\r\n") {
			return fmt.Errorf("config: metadata.gcs_bucket is invalid (got %q)", c.Metadata.GCSBucket)
		}
	case PublisherIrys:
		if !isHTTPURL(c.Metadata.ArweaveBaseURL) {
			return fmt.Errorf("config: metadata.arweave_base_url must start with http:// or https:// (got %q)", c.Metadata.ArweaveBaseURL)
		}
	default:
		return fmt.Errorf("config: unknown metadata.publisher %q", c.Metadata.Publisher)
	}

	if strings.TrimSpace(c.Notify.SendGridAPIKey) != "" {
		if strings.TrimSpace(c.Notify.From) == "" || len(c.Notify.To) == 0 {
			return fmt.Errorf("config: notify.from and notify.to are required when sendgrid is enabled")
		}
	}
	return nil
}

// NotifyEnabled reports whether issuance mails should be sent.
func (c *Config) NotifyEnabled() bool {
	return strings.TrimSpace(c.Notify.SendGridAPIKey) != ""
}

func isHTTPURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
