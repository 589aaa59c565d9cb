package awsconfig_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyrelay/pkg/awsconfig"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("requires a region", func(t *testing.T) {
		t.Parallel()
		_, err := awsconfig.Load(context.Background(), awsconfig.Config{})
		assert.ErrorIs(t, err, awsconfig.ErrInvalidConfig)
	})

	t.Run("static credentials", func(t *testing.T) {
		t.Parallel()

		cfg, err := awsconfig.Load(context.Background(), awsconfig.Config{
			Region:      "eu-west-1",
			AccessKeyID: "test",
			SecretKey:   "secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "eu-west-1", cfg.Region)

		creds, err := cfg.Credentials.Retrieve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "test", creds.AccessKeyID)
		assert.Equal(t, "secret", creds.SecretAccessKey)
	})
}

func TestNewClients(t *testing.T) {
	t.Parallel()

	cfg := awsconfig.Config{Region: "us-east-1", Endpoint: "http://localhost:4566"}
	clients := awsconfig.NewClients(aws.Config{Region: cfg.Region}, cfg)

	require.NotNil(t, clients.SQS)
	require.NotNil(t, clients.SNS)
	require.NotNil(t, clients.DynamoDB)
	assert.Equal(t, "http://localhost:4566", aws.ToString(clients.SQS.Options().BaseEndpoint))
	assert.Equal(t, "http://localhost:4566", aws.ToString(clients.DynamoDB.Options().BaseEndpoint))
}
