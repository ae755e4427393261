// Package replica provides file-based engine configuration.
package replica

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

// FileConfig mirrors the engine options in a YAML file so a static
// deployment can configure the engine without code changes. Durations are
// Go duration strings ("30s", "2m", "1h30m"). Sizes are byte counts.
// Unset, zero or negative values fall back to the engine defaults.
type FileConfig struct {
	// Targets lists the storage backends, one entry per replica.
	Targets []TargetConfig `yaml:"targets"`

	// Quorum is the number of backends that must commit an upload.
	Quorum int `yaml:"quorum"`

	// MinPartSize and MaxPartSize bound the planned multipart part size.
	MinPartSize int64 `yaml:"min_part_size"`
	MaxPartSize int64 `yaml:"max_part_size"`

	// TargetPartCount is the preferred number of parts per multipart upload.
	TargetPartCount int `yaml:"target_part_count"`

	// MultipartThreshold is the object size at which uploads go multipart.
	MultipartThreshold int64 `yaml:"multipart_threshold"`

	// DownloadChunkSize is the ranged-read chunk size for downloads.
	DownloadChunkSize int64 `yaml:"download_chunk_size"`

	// MaxObjectSize is the largest object Upload accepts.
	MaxObjectSize int64 `yaml:"max_object_size"`

	// BackendConcurrency bounds how many backends replicate at once.
	BackendConcurrency int `yaml:"backend_concurrency"`

	// CallTimeout bounds each backend call. "0s" disables the bound.
	CallTimeout string `yaml:"call_timeout"`

	// MaxRetries is the retry count for transient backend errors.
	// Omitted keeps the default; explicit zero disables retries.
	MaxRetries *int `yaml:"max_retries"`

	// TokenSecret enables signed access tokens when non-empty.
	TokenSecret string `yaml:"token_secret"`

	// TokenTTL is the access-token lifetime.
	TokenTTL string `yaml:"token_ttl"`

	// ShareTTL is the default share-link lifetime.
	ShareTTL string `yaml:"share_ttl"`

	// RateLimit admits this many uploads per identity per RatePeriod.
	// Omitted keeps the default; explicit zero disables the gate.
	RateLimit *int `yaml:"rate_limit"`

	// RatePeriod is the rate-limit window.
	RatePeriod string `yaml:"rate_period"`

	// ScratchRoot is where downloads without a destination land.
	ScratchRoot string `yaml:"scratch_root"`
}

// TargetConfig is one backend entry in a config file. Fields carry the
// same meaning as replicatypes.Target.
type TargetConfig struct {
	Name              string  `yaml:"name"`
	Endpoint          string  `yaml:"endpoint"`
	Region            string  `yaml:"region"`
	Bucket            string  `yaml:"bucket"`
	AccessKeyID       string  `yaml:"access_key_id"`
	SecretAccessKey   string  `yaml:"secret_access_key"`
	Priority          int     `yaml:"priority"`
	PathStyle         bool    `yaml:"path_style"`
	PartSizeLimit     int64   `yaml:"part_size_limit"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// LoadConfig reads a YAML engine configuration and converts it into
// options for New. Runtime wiring (logger, metrics, progress sinks)
// cannot live in a file and is appended in code:
//
//	opts, err := replica.LoadConfig("/etc/replica.yml")
//	if err != nil {
//		return err
//	}
//	engine, err := replica.New(append(opts, replica.WithLogger(logger))...)
//
// A minimal config file:
//
//	targets:
//	  - name: primary
//	    region: eu-west-1
//	    bucket: replica-primary
//	    access_key_id: AKIA...
//	    secret_access_key: ...
//	    priority: 1
//	  - name: mirror
//	    endpoint: https://minio.internal:9000
//	    region: us-east-1
//	    bucket: replica-mirror
//	    access_key_id: minio
//	    secret_access_key: ...
//	    path_style: true
//	    priority: 2
//	quorum: 2
//	call_timeout: 2m
func LoadConfig(path string) ([]replicatypes.Option, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config.Options()
}

// Options converts the file configuration into engine options. Only set
// fields produce options; New fills defaults for the rest and validates
// the targets. Options fails only on malformed duration strings.
func (c *FileConfig) Options() ([]replicatypes.Option, error) {
	var opts []replicatypes.Option

	if len(c.Targets) > 0 {
		targets := make([]replicatypes.Target, 0, len(c.Targets))
		for _, t := range c.Targets {
			targets = append(targets, replicatypes.Target{
				Name:              t.Name,
				Endpoint:          t.Endpoint,
				Region:            t.Region,
				Bucket:            t.Bucket,
				AccessKeyID:       t.AccessKeyID,
				SecretAccessKey:   t.SecretAccessKey,
				Priority:          t.Priority,
				PathStyle:         t.PathStyle,
				PartSizeLimit:     t.PartSizeLimit,
				RequestsPerSecond: t.RequestsPerSecond,
			})
		}
		opts = append(opts, WithTargets(targets...))
	}

	if c.Quorum > 0 {
		opts = append(opts, WithQuorum(c.Quorum))
	}
	if c.MinPartSize > 0 {
		opts = append(opts, WithMinPartSize(c.MinPartSize))
	}
	if c.MaxPartSize > 0 {
		opts = append(opts, WithMaxPartSize(c.MaxPartSize))
	}
	if c.TargetPartCount > 0 {
		opts = append(opts, WithTargetPartCount(c.TargetPartCount))
	}
	if c.MultipartThreshold > 0 {
		opts = append(opts, WithMultipartThreshold(c.MultipartThreshold))
	}
	if c.DownloadChunkSize > 0 {
		opts = append(opts, WithDownloadChunkSize(c.DownloadChunkSize))
	}
	if c.MaxObjectSize > 0 {
		opts = append(opts, WithMaxObjectSize(c.MaxObjectSize))
	}
	if c.BackendConcurrency > 0 {
		opts = append(opts, WithBackendConcurrency(c.BackendConcurrency))
	}

	if c.CallTimeout != "" {
		d, err := time.ParseDuration(c.CallTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid call_timeout %q: %w", c.CallTimeout, err)
		}
		opts = append(opts, WithCallTimeout(d))
	}
	if c.MaxRetries != nil {
		opts = append(opts, WithMaxRetries(*c.MaxRetries))
	}

	if c.TokenSecret != "" {
		opts = append(opts, WithTokenSecret([]byte(c.TokenSecret)))
	}
	if c.TokenTTL != "" {
		d, err := time.ParseDuration(c.TokenTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid token_ttl %q: %w", c.TokenTTL, err)
		}
		opts = append(opts, WithTokenTTL(d))
	}
	if c.ShareTTL != "" {
		d, err := time.ParseDuration(c.ShareTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid share_ttl %q: %w", c.ShareTTL, err)
		}
		opts = append(opts, WithShareTTL(d))
	}

	var ratePeriod time.Duration
	if c.RatePeriod != "" {
		d, err := time.ParseDuration(c.RatePeriod)
		if err != nil {
			return nil, fmt.Errorf("invalid rate_period %q: %w", c.RatePeriod, err)
		}
		ratePeriod = d
	}
	switch {
	case c.RateLimit != nil:
		opts = append(opts, WithRateLimit(*c.RateLimit, ratePeriod))
	case ratePeriod > 0:
		// A period without a limit keeps the default limit.
		opts = append(opts, WithRateLimit(DefaultRateLimit, ratePeriod))
	}

	if c.ScratchRoot != "" {
		opts = append(opts, WithScratchRoot(c.ScratchRoot))
	}

	return opts, nil
}
