package model

import "time"

// TrackedAccount は追跡対象のRobloxアカウント。
type TrackedAccount struct {
	ID           string    `json:"id"`
	RobloxUserID int64     `json:"roblox_user_id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StatusSample はワーカーが記録したステータス履歴の1行。
// 派生メトリクス（アクティビティレベル、ピーク時間帯、タイムゾーン推定）の入力となる。
type StatusSample struct {
	ID             int64          `json:"id"`
	RobloxUserID   int64          `json:"roblox_user_id"`
	IsOnline       bool           `json:"is_online"`
	IsInGame       bool           `json:"is_in_game"`
	InTargetGame   bool           `json:"in_target_game"`
	PresenceMethod PresenceMethod `json:"presence_method"`
	RecordedAt     time.Time      `json:"recorded_at"`
}
