package model

import (
	"errors"
	"fmt"
)

// 上流呼び出しのエラー分類。errors.Is / errors.As で判定する。
var (
	// ErrTimeout は単一の上流呼び出しがデッドラインを超過したことを示す。
	// リトライポリシーの対象となる。
	ErrTimeout = errors.New("上流呼び出しがタイムアウトしました")

	// ErrUsernameUnavailable はユーザー名の解決に失敗したことを示す。
	// リクエスト全体の失敗となる。
	ErrUsernameUnavailable = errors.New("ユーザー名を解決できませんでした")
)

// HTTPError は上流が2xx以外（429を除く）のステータスを返したことを示す。
// リトライされず、試行は失敗として記録される。
type HTTPError struct {
	Status int
}

// Error はerrorインターフェースを実装する。
func (e *HTTPError) Error() string {
	return fmt.Sprintf("上流がステータス %d を返しました", e.Status)
}

// PresenceUnavailableError はチェーン内の全候補が使用可能な結果を
// 返さずに尽きたことを示す。
type PresenceUnavailableError struct {
	UserID int64
}

// Error はerrorインターフェースを実装する。
func (e *PresenceUnavailableError) Error() string {
	return fmt.Sprintf("ユーザー %d のプレゼンスをどの上流からも取得できませんでした", e.UserID)
}

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, presence, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingUserID    = "MISSING_USER_ID"
	ErrCodeInvalidMethod    = "INVALID_METHOD"
	ErrCodeInvalidUserID    = "INVALID_USER_ID"
	ErrCodeAccountNotFound  = "ACCOUNT_NOT_FOUND"
	ErrCodeDuplicateAccount = "DUPLICATE_ACCOUNT"
	ErrCodeStrategyNotFound = "STRATEGY_NOT_FOUND"
	ErrCodeKitNotFound      = "KIT_NOT_FOUND"
	ErrCodeDuplicateKit     = "DUPLICATE_KIT"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
)

// NewMissingUserIDError はuserId未指定エラーを生成する。
func NewMissingUserIDError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingUserID,
		Message:  "Missing userId",
		Category: "validation",
		Action:   "userIdに正のRobloxユーザーIDを数値で指定してください。",
	}
}

// NewInvalidMethodError は無効なプレゼンスメソッド指定エラーを生成する。
func NewInvalidMethodError(method string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMethod,
		Message:  fmt.Sprintf("無効なメソッドです: %s", method),
		Category: "validation",
		Action:   "methodには primary、fallback、direct、auto のいずれかを指定してください。",
	}
}

// NewAccountNotFoundError は追跡アカウント未検出エラーを生成する。
func NewAccountNotFoundError(accountID string) *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  fmt.Sprintf("指定された追跡アカウントが見つかりません: %s", accountID),
		Category: "validation",
		Action:   "アカウントIDを確認してください。",
	}
}

// NewDuplicateAccountError は追跡アカウント重複エラーを生成する。
func NewDuplicateAccountError(robloxUserID int64) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateAccount,
		Message:  fmt.Sprintf("RobloxユーザーID %d は既に追跡されています。", robloxUserID),
		Category: "validation",
		Action:   "アカウント一覧から該当アカウントを確認してください。",
	}
}

// NewStrategyNotFoundError は戦略未検出エラーを生成する。
func NewStrategyNotFoundError(strategyID string) *APIError {
	return &APIError{
		Code:     ErrCodeStrategyNotFound,
		Message:  fmt.Sprintf("指定された戦略が見つかりません: %s", strategyID),
		Category: "validation",
		Action:   "戦略IDを確認してください。",
	}
}

// NewKitNotFoundError はキット未検出エラーを生成する。
func NewKitNotFoundError(kitID string) *APIError {
	return &APIError{
		Code:     ErrCodeKitNotFound,
		Message:  fmt.Sprintf("指定されたキットが見つかりません: %s", kitID),
		Category: "validation",
		Action:   "キットIDを確認してください。",
	}
}

// NewDuplicateKitError はキット名重複エラーを生成する。
func NewDuplicateKitError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateKit,
		Message:  fmt.Sprintf("キット名 %q は既に使用されています。", name),
		Category: "validation",
		Action:   "別のキット名を指定してください。",
	}
}

// NewValidationError は汎用の入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力が不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストボディの内容を確認してください。",
	}
}
