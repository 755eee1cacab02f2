package roblox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hitoshi/presenceman/internal/model"
)

// ブラウザを偽装するリクエストヘッダー。
// プロキシおよび直接APIの双方がブラウザ以外のクライアントを拒否することがある。
const (
	spoofedUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	spoofedReferer   = "https://www.roblox.com/"
)

// PresenceSource は上流プレゼンスエンドポイント1つを表す。
// チェーンが優先順に試行するストラテジーリストの要素。
type PresenceSource interface {
	// Name はソースの識別名（primary/fallback/direct）を返す。
	Name() model.PresenceMethod

	// TryResolve は指定ユーザーのプレゼンスを1回解決する。
	// 資格情報が空でない場合はセッションクッキーとして添付する。
	// 使用可能なエントリが得られない場合（パース不能なボディを含む）は
	// エラーを返し、チェーンは次の候補に進む。
	TryResolve(ctx context.Context, userID int64, cookie string) (*model.PresenceRecord, error)
}

// presenceRequest は上流プレゼンスAPIのリクエストボディ。
type presenceRequest struct {
	UserIDs []int64 `json:"userIds"`
}

// presenceEntry は上流プレゼンスAPIのレスポンスエントリ。
// エンドポイントおよび資格情報の有無によってIDフィールドは欠落しうる。
type presenceEntry struct {
	UserPresenceType int    `json:"userPresenceType"`
	LastLocation     string `json:"lastLocation"`
	PlaceID          *int64 `json:"placeId"`
	RootPlaceID      *int64 `json:"rootPlaceId"`
	UniverseID       *int64 `json:"universeId"`
	UserID           int64  `json:"userId"`
}

// presenceResponse は上流プレゼンスAPIのレスポンスボディ。
type presenceResponse struct {
	UserPresences []presenceEntry `json:"userPresences"`
}

// httpSource はHTTP経由のPresenceSource実装。
// 3つの上流（primary/fallback/direct）はエンドポイントURLと名前のみが異なり、
// リクエスト形式・リトライポリシーは完全に共有する。
type httpSource struct {
	method   model.PresenceMethod
	endpoint string
	fetcher  *Fetcher
}

// NewPresenceSource は指定エンドポイントに対するPresenceSourceを生成する。
func NewPresenceSource(method model.PresenceMethod, endpoint string, fetcher *Fetcher) PresenceSource {
	return &httpSource{
		method:   method,
		endpoint: endpoint,
		fetcher:  fetcher,
	}
}

// Name はソースの識別名を返す。
func (s *httpSource) Name() model.PresenceMethod {
	return s.method
}

// TryResolve は指定ユーザーのプレゼンスを1回解決する。
func (s *httpSource) TryResolve(ctx context.Context, userID int64, cookie string) (*model.PresenceRecord, error) {
	body, err := json.Marshal(presenceRequest{UserIDs: []int64{userID}})
	if err != nil {
		return nil, fmt.Errorf("リクエストボディの構築に失敗: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("User-Agent", spoofedUserAgent)
	header.Set("Referer", spoofedReferer)
	if cookie != "" {
		header.Set("Cookie", ".ROBLOSECURITY="+cookie)
	}

	_, respBody, err := s.fetcher.Do(ctx, http.MethodPost, s.endpoint, header, body)
	if err != nil {
		return nil, err
	}

	// パース不能なボディは致命的エラーではなく、この試行の失敗として扱う
	var parsed presenceResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗: %w", err)
	}

	entry, ok := findEntry(parsed.UserPresences, userID)
	if !ok {
		return nil, fmt.Errorf("レスポンスにユーザー %d のプレゼンスエントリがありません", userID)
	}

	return &model.PresenceRecord{
		PresenceType: model.PresenceType(entry.UserPresenceType),
		Location:     entry.LastLocation,
		PlaceID:      entry.PlaceID,
		RootPlaceID:  entry.RootPlaceID,
		UniverseID:   entry.UniverseID,
	}, nil
}

// findEntry はレスポンスから要求ユーザーのエントリを探す。
// 一部のプロキシはuserIdフィールドを省略するため、
// エントリが1件のみでuserId未設定の場合はそれを採用する。
func findEntry(entries []presenceEntry, userID int64) (presenceEntry, bool) {
	for _, e := range entries {
		if e.UserID == userID {
			return e, true
		}
	}
	if len(entries) == 1 && entries[0].UserID == 0 {
		return entries[0], true
	}
	return presenceEntry{}, false
}
