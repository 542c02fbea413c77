package es

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v9"
)

// NewClient connects to Elasticsearch and checks the cluster answers.
func NewClient(ctx context.Context, url, user, password string) (*elasticsearch.Client, error) {
	l := slog.Default().With("component", "es", "url", url)
	l.Info("es_connecting")

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("es: create client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("es: info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		l.Error("es_info_failed", "status", res.StatusCode, "body", string(body))
		return nil, fmt.Errorf("es: info: %s", res.Status())
	}

	l.Info("es_connected")
	return client, nil
}
