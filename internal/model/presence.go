// Package model はドメインモデルを定義する。
package model

import "time"

// PresenceType はRoblox上流APIが返すプレゼンス種別。
type PresenceType int

const (
	// PresenceTypeOffline はオフライン状態（0）。
	PresenceTypeOffline PresenceType = 0
	// PresenceTypeOnline はオンライン状態（1）。
	PresenceTypeOnline PresenceType = 1
	// PresenceTypeInGame はゲームプレイ中状態（2）。
	PresenceTypeInGame PresenceType = 2
)

// PresenceMethod はプレゼンス解決に使用した上流ソースを表す。
type PresenceMethod string

const (
	// MethodPrimary は第一プロキシ経由の解決。
	MethodPrimary PresenceMethod = "primary"
	// MethodFallback は第二プロキシ経由の解決。
	MethodFallback PresenceMethod = "fallback"
	// MethodDirect はRoblox APIへの直接アクセスによる解決。
	// 昇格済みセッションクッキーを必要とする。
	MethodDirect PresenceMethod = "direct"
	// MethodAuto は自動選択（明示指定なし）を表す。
	// キャッシュキーおよびリクエストパラメータでのみ使用する。
	MethodAuto PresenceMethod = "auto"
)

// IsValid は既知のプレゼンスメソッドかを返す。
func (m PresenceMethod) IsValid() bool {
	switch m {
	case MethodPrimary, MethodFallback, MethodDirect, MethodAuto:
		return true
	default:
		return false
	}
}

// PresenceRecord は上流APIから取得した生のプレゼンス情報。
// リクエストごとに生成され、永続化されない。
// PlaceID等のIDはエンドポイントと資格情報の有無によって欠落しうる。
type PresenceRecord struct {
	PresenceType PresenceType `json:"userPresenceType"`
	Location     string       `json:"lastLocation"`
	PlaceID      *int64       `json:"placeId"`
	RootPlaceID  *int64       `json:"rootPlaceId"`
	UniverseID   *int64       `json:"universeId"`
}

// Attempt は上流ソース1回分の試行記録。
// 診断専用であり、制御フローには使用しない。
type Attempt struct {
	Method             PresenceMethod `json:"method"`
	Success            bool           `json:"success"`
	HTTPStatus         int            `json:"httpStatus,omitempty"`
	Error              string         `json:"error,omitempty"`
	CredentialProvided bool           `json:"credentialProvided"`
}

// UserStatus はプレゼンス解決の最終結果。キャッシュ値としても使用する。
//
// 不変条件:
//   - IsInGame == true ならば元のPresenceTypeはPresenceTypeInGame
//   - InTargetGame == true ならば IsInGame == true
//   - PresenceMethod はAttemptLog内に成功した試行がある場合のみ意味を持つ
type UserStatus struct {
	UserID             int64          `json:"userId"`
	Username           string         `json:"username"`
	IsOnline           bool           `json:"isOnline"`
	IsInGame           bool           `json:"isInGame"`
	InTargetGame       bool           `json:"inTargetGame"`
	PresenceMethod     PresenceMethod `json:"presenceMethod"`
	AttemptLog         []Attempt      `json:"attemptLog"`
	CredentialProvided bool           `json:"credentialProvided"`
	LastUpdated        time.Time      `json:"lastUpdated"`
}

// TargetGame は追跡対象ゲームの識別情報。
// UniverseIDを第一、PlaceIDを第二、名称の部分一致を第三の判定材料とする。
type TargetGame struct {
	UniverseID int64
	PlaceID    int64
	Name       string
}
