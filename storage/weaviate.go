package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ewintr.nl/shortscout/model"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const (
	className = "Short"
)

type WeaviateInfo struct {
	Scheme       string
	Host         string
	ApiKey       string
	OpenAIApiKey string
}

// Weaviate mirrors discovered shorts into a vector index so they can be
// looked up by meaning instead of by substring.
type Weaviate struct {
	client *weaviate.Client
}

func NewWeaviate(info WeaviateInfo) (*Weaviate, error) {
	scheme := info.Scheme
	if scheme == "" {
		scheme = "https"
	}
	config := weaviate.Config{
		Scheme: scheme,
		Host:   info.Host,
		Headers: map[string]string{
			"X-OpenAI-Api-Key": info.OpenAIApiKey,
		},
	}
	if info.ApiKey != "" {
		config.AuthConfig = auth.ApiKey{Value: info.ApiKey}
	}

	c, err := weaviate.NewClient(config)
	if err != nil {
		return nil, err
	}

	return &Weaviate{client: c}, nil
}

func (w *Weaviate) ResetSchema(ctx context.Context) error {
	if err := w.client.Schema().ClassDeleter().WithClassName(className).Do(ctx); err != nil {
		// a missing class is reported as a 400
		var status *fault.WeaviateClientError
		if !errors.As(err, &status) || status.StatusCode != http.StatusBadRequest {
			return err
		}
	}

	classObj := &models.Class{
		Class:      className,
		Vectorizer: "text2vec-openai",
		ModuleConfig: map[string]any{
			"text2vec-openai": map[string]any{
				"model":        "ada",
				"modelVersion": "002",
				"type":         "text",
			},
		},
	}

	return w.client.Schema().ClassCreator().WithClass(classObj).Do(ctx)
}

func properties(v *model.Video) map[string]any {
	return map[string]any{
		"videoId":    string(v.VideoID),
		"title":      v.Title,
		"channel":    v.Channel,
		"categoryId": v.CategoryID,
		"regionCode": v.RegionCode,
		"url":        v.URL,
	}
}

func (w *Weaviate) Index(ctx context.Context, v *model.Video) error {
	vID := v.ID.String()
	exists, err := w.client.Data().
		Checker().
		WithID(vID).
		WithClassName(className).
		Do(ctx)
	if err != nil {
		return err
	}

	if exists {
		return w.client.Data().
			Updater().
			WithID(vID).
			WithClassName(className).
			WithProperties(properties(v)).
			Do(ctx)
	}

	_, err = w.client.Data().
		Creator().
		WithClassName(className).
		WithID(vID).
		WithProperties(properties(v)).
		Do(ctx)

	return err
}

func (w *Weaviate) Similar(ctx context.Context, text string, limit int) ([]model.YoutubeVideoID, error) {
	nearText := w.client.GraphQL().NearTextArgBuilder().WithConcepts([]string{text})
	resp, err := w.client.GraphQL().Get().
		WithClassName(className).
		WithFields(graphql.Field{Name: "videoId"}).
		WithNearText(nearText).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate query failed: %s", resp.Errors[0].Message)
	}

	return videoIDs(resp.Data)
}

func videoIDs(data map[string]models.JSONObject) ([]model.YoutubeVideoID, error) {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected weaviate response")
	}
	objects, ok := get[className].([]any)
	if !ok {
		return []model.YoutubeVideoID{}, nil
	}

	ids := make([]model.YoutubeVideoID, 0, len(objects))
	for _, obj := range objects {
		props, ok := obj.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := props["videoId"].(string); ok {
			ids = append(ids, model.YoutubeVideoID(id))
		}
	}

	return ids, nil
}
