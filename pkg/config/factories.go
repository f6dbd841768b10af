package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/voservices/vospace/internal/logger"
	"github.com/voservices/vospace/pkg/backend"
	backendfs "github.com/voservices/vospace/pkg/backend/fs"
	backends3 "github.com/voservices/vospace/pkg/backend/s3"
	"github.com/voservices/vospace/pkg/store"
	badgerstore "github.com/voservices/vospace/pkg/store/badger"
	"github.com/voservices/vospace/pkg/store/memory"
	"github.com/voservices/vospace/pkg/transfer"
)

// BuildTables merges configured capability overrides over the built-in
// defaults. Absent sections keep the defaults.
func BuildTables(cfg *TablesConfig) transfer.Tables {
	t := transfer.DefaultTables()
	if len(cfg.AcceptsViews) > 0 {
		t.AcceptsViews = cfg.AcceptsViews
	}
	if len(cfg.ProvidesViews) > 0 {
		t.ProvidesViews = cfg.ProvidesViews
	}
	if len(cfg.ServerGetProtocols) > 0 {
		t.ServerGetProtocols = cfg.ServerGetProtocols
	}
	if len(cfg.ServerPutProtocols) > 0 {
		t.ServerPutProtocols = cfg.ServerPutProtocols
	}
	if len(cfg.ClientGetProtocols) > 0 {
		t.ClientGetProtocols = cfg.ClientGetProtocols
	}
	if len(cfg.ClientPutProtocols) > 0 {
		t.ClientPutProtocols = cfg.ClientPutProtocols
	}
	return t
}

// CreateStore creates a metadata store based on configuration.
//
// The Type field determines which implementation is used; the
// corresponding type-specific map is decoded and passed to the
// constructor.
//
// Supported types:
//   - "memory": in-memory storage, ephemeral
//   - "badger": BadgerDB storage, persistent
func CreateStore(ctx context.Context, space *SpaceConfig, cfg *StoreConfig) (store.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		return memory.New(space.RootURI, space.DataRoot), nil
	case "badger":
		return createBadgerStore(space, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown store type: %q (supported: memory, badger)", cfg.Type)
	}
}

func createBadgerStore(space *SpaceConfig, options map[string]any) (store.Store, error) {
	type badgerOptions struct {
		DBPath string `mapstructure:"db_path"`
	}

	var opts badgerOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode badger store options: %w", err)
	}
	if opts.DBPath == "" {
		return nil, fmt.Errorf("badger store: db_path is required")
	}

	st, err := badgerstore.New(opts.DBPath, space.RootURI, space.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return st, nil
}

// CreateBackend creates a byte store based on configuration.
//
// Supported types:
//   - "filesystem": local filesystem storage
//   - "s3": Amazon S3 or any S3-compatible service
func CreateBackend(ctx context.Context, cfg *BackendConfig) (backend.Backend, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemBackend(cfg.Filesystem)
	case "s3":
		return createS3Backend(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown backend type: %q (supported: filesystem, s3)", cfg.Type)
	}
}

func createFilesystemBackend(options map[string]any) (backend.Backend, error) {
	type fsOptions struct {
		Path string `mapstructure:"path"`
	}

	var opts fsOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem backend options: %w", err)
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("filesystem backend: path is required")
	}

	be, err := backendfs.New(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem backend: %w", err)
	}
	return be, nil
}

func createS3Backend(ctx context.Context, options map[string]any) (backend.Backend, error) {
	type s3Options struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var opts s3Options
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode S3 backend options: %w", err)
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("S3 backend: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("S3 backend: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(opts.Region))

	// Custom endpoint support for MinIO, Localstack, and Ceph RGW.
	if opts.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               opts.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default chain.
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing for compatibility with MinIO/Localstack.
		if opts.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	be, err := backends3.New(ctx, backends3.Config{
		Client:    client,
		Bucket:    opts.Bucket,
		KeyPrefix: opts.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 backend: %w", err)
	}

	logger.Info("S3 backend initialized: bucket=%s, region=%s, prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)

	return be, nil
}
