package engine

import (
	"context"
	"strings"
	"time"

	"github.com/ablauf-dev/ablauf/pkg/api"
)

// aggregate consumes the full update sequence and folds it into a single
// completed response: text accumulates per message id with the same
// boundary rule as streaming, and workflow notifications are dropped.
// Used on the non-streaming path.
func aggregate(ctx context.Context, src UpdateSource, responseID, model string, metadata map[string]string) (*api.Response, error) {
	createdAt := time.Now().Unix()

	var items []api.Item
	bufID := ""
	var buf strings.Builder

	for {
		u, ok, err := src.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if u.Kind() != UpdateText {
			continue
		}
		if u.ResponseID != "" {
			responseID = u.ResponseID
		}
		for _, text := range u.Contents {
			if text == "" {
				continue
			}
			if bufID != "" && bufID != u.MessageID {
				items = append(items, api.NewTextItem(bufID, buf.String()))
				buf.Reset()
			}
			bufID = u.MessageID
			buf.WriteString(text)
		}
	}
	if bufID != "" {
		items = append(items, api.NewTextItem(bufID, buf.String()))
	}

	return &api.Response{
		ID:        responseID,
		Object:    "response",
		Status:    api.ResponseStatusCompleted,
		Model:     model,
		Output:    items,
		CreatedAt: createdAt,
		Metadata:  metadata,
	}, nil
}
