package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"ns-keys/internal/cose"
	"ns-keys/internal/keystore"
)

var log = logging.Logger("rpc")

const kekPath = "/v1/kek"

// AuthClient 认证服务客户端，用于获取和轮换 KEK
type AuthClient struct {
	url    string
	token  string
	client *http.Client
}

// kekRequest KEK 请求体，字节字段按 base64 编码
type kekRequest struct {
	State []byte `json:"state,omitempty"`
	Sig   []byte `json:"sig,omitempty"`
	Renew bool   `json:"renew,omitempty"`
}

// kekResponse KEK 响应体，key/next_key 为 CBOR 编码的 COSE_Key
type kekResponse struct {
	Key       []byte `json:"key"`
	State     []byte `json:"state"`
	IssAt     int64  `json:"iss_at"`
	NextKey   []byte `json:"next_key,omitempty"`
	NextState []byte `json:"next_state,omitempty"`
	SyncedAt  int64  `json:"synced_at,omitempty"`
}

// NewAuthClient 创建认证服务客户端
func NewAuthClient(url, token string) *AuthClient {
	if token != "" {
		log.Infof("NewAuthClient: connecting to %s (with token)", url)
	} else {
		log.Warnf("NewAuthClient: connecting to %s (no token)", url)
	}
	return &AuthClient{
		url:    strings.TrimRight(url, "/"),
		token:  token,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetKEK 向认证服务请求 KEK，Renew 为 true 时同时返回下一代 KEK
func (c *AuthClient) GetKEK(ctx context.Context, req keystore.KEKRequest) (*keystore.KEKResponse, error) {
	log.Debugf("GetKEK: requesting kek (renew=%v)", req.Renew)

	jsonData, err := json.Marshal(kekRequest{State: req.State, Sig: req.Sig, Renew: req.Renew})
	if err != nil {
		log.Errorf("GetKEK: failed to marshal request: %v", err)
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+kekPath, bytes.NewBuffer(jsonData))
	if err != nil {
		log.Errorf("GetKEK: failed to create request: %v", err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		log.Errorf("GetKEK: failed to send request to %s: %v", c.url, err)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		log.Errorf("GetKEK: failed to read response: %v", err)
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Errorf("GetKEK: HTTP error %d: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	var kr kekResponse
	if err := json.Unmarshal(body, &kr); err != nil {
		log.Errorf("GetKEK: failed to unmarshal response: %v", err)
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return decodeResponse(&kr)
}

func decodeResponse(kr *kekResponse) (*keystore.KEKResponse, error) {
	if len(kr.Key) == 0 || len(kr.State) == 0 {
		return nil, fmt.Errorf("kek response missing key or state")
	}
	key, err := cose.ParseKey(kr.Key)
	if err != nil {
		log.Errorf("GetKEK: invalid kek key: %v", err)
		return nil, err
	}
	out := &keystore.KEKResponse{
		Key:       key,
		State:     kr.State,
		IssAt:     kr.IssAt,
		NextState: kr.NextState,
		SyncedAt:  kr.SyncedAt,
	}
	if len(kr.NextKey) > 0 {
		if out.NextKey, err = cose.ParseKey(kr.NextKey); err != nil {
			log.Errorf("GetKEK: invalid next kek key: %v", err)
			return nil, err
		}
	}
	return out, nil
}
