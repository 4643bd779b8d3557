package signer

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// RemoteSigner 通过 HTTP 调用外部 MPC 签名服务。
// 服务内部如何做门限签名与本服务无关，这里只关心 "sign(payload, path) -> signature"。
type RemoteSigner struct {
	endpoint string
	client   *http.Client
}

func NewRemoteSigner(endpoint string) *RemoteSigner {
	return &RemoteSigner{
		endpoint: endpoint,
		// 签名是多方协作，给足超时
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type signRequest struct {
	Path   string `json:"path"`
	Digest string `json:"digest"` // hex, 32 bytes
}

type signResponse struct {
	Signature string `json:"signature"` // hex, 65 bytes [R || S || V]
}

func (s *RemoteSigner) Sign(ctx context.Context, path string, digest [32]byte) ([]byte, error) {
	payload, err := json.Marshal(signRequest{Path: path, Digest: hex.EncodeToString(digest[:])})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/sign", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignRejected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSignRejected, resp.StatusCode)
	}

	var body signResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, ErrBadSignature
	}

	sig, err := hex.DecodeString(body.Signature)
	if err != nil || len(sig) != 65 {
		return nil, ErrBadSignature
	}

	return sig, nil
}

type publicKeyResponse struct {
	PublicKey string `json:"public_key"` // hex, 65 bytes uncompressed
}

func (s *RemoteSigner) PublicKey(ctx context.Context, path string) (*ecdsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/public_key?path="+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("signer returned status %d", resp.StatusCode)
	}

	var body publicKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	raw, err := hex.DecodeString(body.PublicKey)
	if err != nil {
		return nil, err
	}

	return crypto.UnmarshalPubkey(raw)
}
