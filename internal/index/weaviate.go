package index

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
)

// WeaviateConfig locates a Weaviate instance.
type WeaviateConfig struct {
	Host   string // e.g. "localhost:8080"
	Scheme string // "http" or "https"
	APIKey string
}

// WeaviateIndex creates data objects in Weaviate.
type WeaviateIndex struct {
	client *weaviate.Client
}

// NewWeaviateIndex creates a Weaviate-backed index.
func NewWeaviateIndex(cfg WeaviateConfig) (*WeaviateIndex, error) {
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	wcfg := weaviate.Config{Host: cfg.Host, Scheme: cfg.Scheme}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return &WeaviateIndex{client: client}, nil
}

func (w *WeaviateIndex) CreateRecord(ctx context.Context, className string, rec Record) (string, error) {
	created, err := w.client.Data().Creator().
		WithClassName(className).
		WithProperties(map[string]any{
			"source":  rec.Source,
			"content": rec.Content,
		}).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("create %s object for %s: %w", className, rec.Source, err)
	}
	if created == nil || created.Object == nil {
		return "", fmt.Errorf("create %s object for %s: empty response", className, rec.Source)
	}
	return string(created.Object.ID), nil
}
