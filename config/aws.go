package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// AWSConfig builds an aws.Config pinned to the configured region. Extra
// load options are appended after the region, so callers can still override
// credentials for local runs.
func (o *Options) AWSConfig(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
	fns := append([]func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(o.RegionName),
	}, optFns...)

	cfg, err := awsconfig.LoadDefaultConfig(ctx, fns...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return cfg, nil
}

// DynamoDBClient builds a DynamoDB client honoring the endpoint-url
// override, which is how local development points at DynamoDB Local.
func (o *Options) DynamoDBClient(ctx context.Context) (*dynamodb.Client, error) {
	cfg, err := o.AWSConfig(ctx)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(cfg, func(dopts *dynamodb.Options) {
		if o.EndpointURL != "" {
			dopts.BaseEndpoint = aws.String(o.EndpointURL)
		}
	}), nil
}
