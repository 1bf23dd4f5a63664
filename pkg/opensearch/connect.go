package opensearch

import (
	"context"
	"errors"
	"fmt"

	"github.com/opensearch-project/opensearch-go/v2"
)

var (
	ErrDisabled    = errors.New("opensearch: OPENSEARCH_ADDRESSES is empty")
	ErrClient      = errors.New("opensearch: cannot build client")
	ErrUnreachable = errors.New("opensearch: cluster unreachable")
)

// New builds a client and fails fast when the cluster does not answer.
func New(ctx context.Context, cfg Config) (*opensearch.Client, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		MaxRetries:   cfg.MaxRetries,
		DisableRetry: cfg.DisableRetry,
	})
	if err != nil {
		return nil, errors.Join(ErrClient, err)
	}
	if err := ping(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// Healthcheck adapts a client into an httpserver health probe.
func Healthcheck(client *opensearch.Client) func(context.Context) error {
	return func(ctx context.Context) error { return ping(ctx, client) }
}

func ping(ctx context.Context, client *opensearch.Client) error {
	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return errors.Join(ErrUnreachable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.Join(ErrUnreachable, fmt.Errorf("info: %s", res.Status()))
	}
	return nil
}
