package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// PythClient 通过 Hermes 风格的 HTTP 接口查询 Pyth 报价。
// GET {endpoint}/v2/updates/price/latest?ids[]=<feed_id>
type PythClient struct {
	endpoint string
	client   *http.Client
}

func NewPythClient(endpoint string) *PythClient {
	return &PythClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// hermes 返回结构 (只取需要的字段)
type hermesResponse struct {
	Parsed []struct {
		ID    string `json:"id"`
		Price struct {
			Price       string `json:"price"`
			Conf        string `json:"conf"`
			Expo        int32  `json:"expo"`
			PublishTime int64  `json:"publish_time"`
		} `json:"price"`
	} `json:"parsed"`
}

func (p *PythClient) GetPrice(ctx context.Context, assetID string) (*Quote, error) {
	u := fmt.Sprintf("%s/v2/updates/price/latest?ids[]=%s", p.endpoint, url.QueryEscape(assetID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var body hermesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("oracle response decode failed: %w", err)
	}

	if len(body.Parsed) == 0 {
		return nil, ErrNoPrice
	}

	feed := body.Parsed[0]
	price, err := strconv.ParseInt(feed.Price.Price, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("oracle price parse failed: %w", err)
	}
	conf, err := strconv.ParseUint(feed.Price.Conf, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("oracle conf parse failed: %w", err)
	}

	return &Quote{
		Price:       price,
		Conf:        conf,
		Expo:        feed.Price.Expo,
		PublishTime: feed.Price.PublishTime,
	}, nil
}
