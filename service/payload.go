package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"worker-render/dto"
)

// PayloadSource resolves the storyboard, assets and audio for one render.
type PayloadSource interface {
	Fetch(ctx context.Context, userId, renderId string) (*dto.RenderPayload, error)
}

// httpPayloadSource asks the application backend for the render payload,
// authenticated with the shared internal secret header.
type httpPayloadSource struct {
	url    string
	secret string
	client *http.Client
}

func NewHTTPPayloadSource(url, secret string) PayloadSource {
	return &httpPayloadSource{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *httpPayloadSource) Fetch(ctx context.Context, userId, renderId string) (*dto.RenderPayload, error) {
	body, err := json.Marshal(map[string]string{"userId": userId, "renderId": renderId})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-internal-render-secret", s.secret)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payload fetch: status %d", resp.StatusCode)
	}

	payload := &dto.RenderPayload{}
	if err := json.NewDecoder(resp.Body).Decode(payload); err != nil {
		return nil, err
	}
	return payload, nil
}
