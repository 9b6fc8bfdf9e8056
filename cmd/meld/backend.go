package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/zoobzio/meld"
	meldazure "github.com/zoobzio/meld/azure"
	meldbilly "github.com/zoobzio/meld/billy"
	meldgcs "github.com/zoobzio/meld/gcs"
	meldminio "github.com/zoobzio/meld/minio"
	melds3 "github.com/zoobzio/meld/s3"
	"google.golang.org/api/option"
)

// newDispatcher builds a Dispatcher for cfg and returns the store used for
// existence checks. Local mode composes on the filesystem under cfg.LocalRoot.
func newDispatcher(ctx context.Context, cfg *meld.Config) (*meld.Dispatcher, meld.ObjectStore, error) {
	opts := []meld.Option{
		meld.WithMode(cfg.Mode),
		meld.WithMaxComponents(cfg.MaxComponents),
	}

	if cfg.Mode == meld.ModeLocal {
		store := meldbilly.NewOS(cfg.LocalRoot)
		return meld.New(append(opts, meld.WithStore(store))...), store, nil
	}

	factory, store, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return meld.New(append(opts, meld.WithClientFactory(factory))...), store, nil
}

func newBackend(ctx context.Context, cfg *meld.Config) (meld.ClientFactory, meld.ObjectStore, error) {
	switch cfg.Backend {
	case "gcs":
		var opts []option.ClientOption
		if cfg.Endpoint != "" {
			opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
		}
		client, err := storage.NewClient(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs client: %w", err)
		}
		return meldgcs.Factory(client), meldgcs.NewStore(client), nil

	case "s3":
		loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
		if cfg.AccessKey != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				awscreds.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("aws config: %w", err)
		}
		client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
		return meld.StaticClient(melds3.New(client)), melds3.NewStore(client), nil

	case "minio":
		if cfg.Endpoint == "" {
			return nil, nil, fmt.Errorf("minio: MELD_ENDPOINT is required")
		}
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("minio client: %w", err)
		}
		return meld.StaticClient(meldminio.New(client)), meldminio.NewStore(client), nil

	case "azure":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccessKey)
		}
		cred, err := azblob.NewSharedKeyCredential(cfg.AccessKey, cfg.SecretKey)
		if err != nil {
			return nil, nil, fmt.Errorf("azure credential: %w", err)
		}
		client, err := azblob.NewClientWithSharedKeyCredential(endpoint, cred, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("azure client: %w", err)
		}
		return meld.StaticClient(meldazure.New(client)), meldazure.NewStore(client), nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
