package awsconfig

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

var ErrInvalidConfig = errors.New("awsconfig: invalid config")

// Config selects the region, credentials and (for LocalStack or other
// emulators) the endpoint shared by the SQS, SNS and DynamoDB clients.
// Empty credentials fall back to the SDK's default chain.
type Config struct {
	Region      string `env:"AWS_REGION" envDefault:"us-east-1"`
	AccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	SecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`
	// Endpoint overrides every service endpoint, e.g. http://localhost:4566.
	Endpoint string `env:"AWS_ENDPOINT_URL"`
}

// Option adjusts SDK loading.
type Option func(*options)

type options struct {
	httpClient *http.Client
	loadOpts   []func(*config.LoadOptions) error
}

// WithHTTPClient sets the HTTP client used by the SDK.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLoadOption appends a raw SDK load option.
func WithLoadOption(opt func(*config.LoadOptions) error) Option {
	return func(o *options) { o.loadOpts = append(o.loadOpts, opt) }
}

// Clients holds the service clients the relay uses.
type Clients struct {
	SQS      *sqs.Client
	SNS      *sns.Client
	DynamoDB *dynamodb.Client
}

// Load resolves the SDK configuration described by cfg.
func Load(ctx context.Context, cfg Config, opts ...Option) (aws.Config, error) {
	if cfg.Region == "" {
		return aws.Config{}, fmt.Errorf("%w: region is required", ErrInvalidConfig)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}
	if o.httpClient != nil {
		loadOpts = append(loadOpts, config.WithHTTPClient(o.httpClient))
	}
	loadOpts = append(loadOpts, o.loadOpts...)

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("awsconfig: load: %w", err)
	}
	return awsCfg, nil
}

// NewClients builds the SQS, SNS and DynamoDB clients, all pointed at
// cfg.Endpoint when it is set.
func NewClients(awsCfg aws.Config, cfg Config) Clients {
	endpoint := func() *string {
		if cfg.Endpoint == "" {
			return nil
		}
		return aws.String(cfg.Endpoint)
	}
	return Clients{
		SQS: sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			o.BaseEndpoint = endpoint()
		}),
		SNS: sns.NewFromConfig(awsCfg, func(o *sns.Options) {
			o.BaseEndpoint = endpoint()
		}),
		DynamoDB: dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = endpoint()
		}),
	}
}
