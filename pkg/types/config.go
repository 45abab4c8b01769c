package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the fixed per-call HTTP timeout. A timeout is a terminal
	// failure for that call.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "istat-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// SDMXConfig holds settings for the SDMX REST service.
type SDMXConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the REST root (default "https://sdmx.istat.it/SDMXWS/rest").
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// DataflowAgency is the agency owning dataflow definitions (default "IT1").
	DataflowAgency string `json:"dataflow_agency" yaml:"dataflow_agency" mapstructure:"dataflow_agency"`

	// DefaultCodelistVersion is used when an enumeration reference omits
	// its version (default "1.0").
	DefaultCodelistVersion string `json:"default_codelist_version" yaml:"default_codelist_version" mapstructure:"default_codelist_version"`

	// RateLimitRetries is the number of HTTP 429 retries. Zero disables
	// retrying entirely.
	RateLimitRetries int `json:"rate_limit_retries" yaml:"rate_limit_retries" mapstructure:"rate_limit_retries"`
}

// StoreBackend selects the document store implementation.
type StoreBackend string

const (
	StoreFilesystem StoreBackend = "fs"
	StoreMinio      StoreBackend = "minio"
)

// MinioConfig holds settings for the S3-compatible document store.
type MinioConfig struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Bucket    string `json:"bucket" yaml:"bucket" mapstructure:"bucket"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl" mapstructure:"use_ssl"`
	AccessKey string `json:"access_key,omitempty" yaml:"access_key,omitempty" mapstructure:"access_key"`
	SecretKey string `json:"secret_key,omitempty" yaml:"secret_key,omitempty" mapstructure:"secret_key"`
}

// StoreConfig holds settings for the document store shared by all stages.
type StoreConfig struct {
	// Backend is "fs" (default) or "minio".
	Backend StoreBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Root is the base directory for the filesystem backend
	// (contains mappings/, constraints/, series/).
	Root string `json:"root" yaml:"root" mapstructure:"root"`

	Minio MinioConfig `json:"minio" yaml:"minio" mapstructure:"minio"`
}

// CatalogConfig holds settings for the series catalog.
type CatalogConfig struct {
	// Dir is the base directory for the catalog (contains index/).
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// LogConfig holds settings for the log reporter.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "text" (default) or "json".
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// MetricsConfig holds settings for the metrics reporter.
type MetricsConfig struct {
	// Textfile, when set, receives the run's metrics in the Prometheus text
	// exposition format on exit (node_exporter textfile collector).
	Textfile string `json:"textfile" yaml:"textfile" mapstructure:"textfile"`
}

// Config groups all settings for the pipeline.
type Config struct {
	SDMX    SDMXConfig    `json:"sdmx" yaml:"sdmx" mapstructure:"sdmx"`
	Store   StoreConfig   `json:"store" yaml:"store" mapstructure:"store"`
	Catalog CatalogConfig `json:"catalog" yaml:"catalog" mapstructure:"catalog"`
	Log     LogConfig     `json:"log" yaml:"log" mapstructure:"log"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}
