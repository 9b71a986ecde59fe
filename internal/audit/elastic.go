package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
)

func NewClient(ctx context.Context, addresses []string, user, password string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch error response %s: %s", res.Status(), body)
	}
	return client, nil
}

const indexTimeout = 5 * time.Second

type ESRecorder struct {
	Client *elasticsearch.Client
	Index  string
	// Timeout bounds each index request, independent of the caller's deadline.
	Timeout time.Duration
	now     func() time.Time
}

func NewESRecorder(client *elasticsearch.Client, index string) *ESRecorder {
	return &ESRecorder{Client: client, Index: index, Timeout: indexTimeout, now: time.Now}
}

func (r *ESRecorder) Record(ctx context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now().UTC()
	}
	if e.RemoteIP == "" {
		e.RemoteIP = RemoteIP(ctx)
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: marshal: %w", err)
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = indexTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := r.Client.Index(r.Index, bytes.NewReader(body), r.Client.Index.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("audit: index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("audit: index %s: %s: %s", r.Index, res.Status(), msg)
	}
	return nil
}
