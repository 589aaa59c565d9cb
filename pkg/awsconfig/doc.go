// Package awsconfig loads the AWS SDK v2 configuration for the relay's SQS
// lanes, SNS text messages and DynamoDB status table, with an optional
// endpoint override for LocalStack.
package awsconfig
