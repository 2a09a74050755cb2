// Package backend opens the record store and media uploader named by the
// binary configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/storefront/internal/config"
	"github.com/jacentio/storefront/media"
	"github.com/jacentio/storefront/record"
	"github.com/jacentio/storefront/record/dynamo"
	"github.com/jacentio/storefront/record/memstore"
	"github.com/jacentio/storefront/record/sqlstore"
	"github.com/jacentio/storefront/shop"
)

// Open returns a record client for cfg.Backend.
func Open(ctx context.Context, cfg config.Config) (record.Client, error) {
	rc := cfg.Record()
	switch cfg.Backend {
	case config.BackendMemory:
		return memstore.New(rc.Shops, rc.Services, rc.Staff, rc.Discounts), nil

	case config.BackendDynamo:
		client, err := DynamoClient(ctx, cfg.AWSRegion, cfg.DynamoEndpoint)
		if err != nil {
			return nil, err
		}
		dc := dynamo.ConfigFor(rc)
		dc.KeyTable = cfg.KeyTable
		return dynamo.New(client, dc), nil

	case config.BackendPostgres:
		s, err := sqlstore.Open(cfg.DatabaseURL, shop.NestedFields...)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// DynamoClient loads AWS configuration for region. A non-empty endpoint
// points the client at a local or alternative DynamoDB.
func DynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// Uploader returns the S3 uploader, or nil when media upload is disabled.
func Uploader(ctx context.Context, cfg config.Config) (media.Uploader, error) {
	if !cfg.MediaEnabled() {
		return nil, nil
	}
	u, err := media.NewS3UploaderFromConfig(ctx, cfg.Media())
	if err != nil {
		return nil, fmt.Errorf("media uploader: %w", err)
	}
	return u, nil
}
