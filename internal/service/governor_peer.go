package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// GovernorPeer 对候任 governor 的握手调用。
// 治理方身份即其服务地址: 本服务向对方的 accept 接口确认意愿，
// 只有对方明确返回 accepted=true 才算接受。
type GovernorPeer interface {
	AcceptGovernorship(ctx context.Context, peer, owner, keyPath string) (bool, error)
}

// HTTPGovernorPeer 是 GovernorPeer 的 HTTP 实现
type HTTPGovernorPeer struct {
	client *http.Client
}

func NewHTTPGovernorPeer() *HTTPGovernorPeer {
	return &HTTPGovernorPeer{client: &http.Client{Timeout: 10 * time.Second}}
}

type acceptGovernorshipReq struct {
	Owner   string `json:"owner"`
	KeyPath string `json:"key_path"`
}

type acceptGovernorshipResp struct {
	Code int `json:"code"`
	Data struct {
		Accepted bool `json:"accepted"`
	} `json:"data"`
}

func (g *HTTPGovernorPeer) AcceptGovernorship(ctx context.Context, peer, owner, keyPath string) (bool, error) {
	body, err := json.Marshal(acceptGovernorshipReq{Owner: owner, KeyPath: keyPath})
	if err != nil {
		return false, err
	}

	url := fmt.Sprintf("%s/api/v1/governor/accept", peer)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("governor peer returned status %d", resp.StatusCode)
	}

	var out acceptGovernorshipResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Data.Accepted, nil
}
