package roblox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hitoshi/presenceman/internal/model"
)

// UsernameClient はRobloxユーザー情報APIからユーザー名を解決する。
// プレゼンス解決とは独立したルックアップであり、失敗はリクエスト全体の
// 失敗となる（匿名ステータスは合成しない）。
type UsernameClient struct {
	fetcher  *Fetcher
	endpoint string // テスト用にエンドポイントを差し替え可能
}

// NewUsernameClient はUsernameClientの新しいインスタンスを生成する。
// endpointにはユーザー情報APIのベースURL（.../v1/users）を指定する。
func NewUsernameClient(fetcher *Fetcher, endpoint string) *UsernameClient {
	return &UsernameClient{
		fetcher:  fetcher,
		endpoint: endpoint,
	}
}

// userResponse はユーザー情報APIのレスポンスボディ。
type userResponse struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// Lookup は指定ユーザーIDのユーザー名を解決する。
// 失敗はすべてmodel.ErrUsernameUnavailableにラップされる。
func (c *UsernameClient) Lookup(ctx context.Context, userID int64) (string, error) {
	url := fmt.Sprintf("%s/%d", c.endpoint, userID)

	header := http.Header{}
	header.Set("User-Agent", spoofedUserAgent)

	_, body, err := c.fetcher.Do(ctx, http.MethodGet, url, header, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrUsernameUnavailable, err)
	}

	var parsed userResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: レスポンスのパースに失敗: %v", model.ErrUsernameUnavailable, err)
	}
	if parsed.Name == "" {
		return "", fmt.Errorf("%w: レスポンスにユーザー名がありません", model.ErrUsernameUnavailable)
	}

	return parsed.Name, nil
}
