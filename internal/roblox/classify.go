package roblox

import (
	"log/slog"
	"strings"

	"github.com/hitoshi/presenceman/internal/model"
)

// Classifier は生のPresenceRecordをドメインステータスに分類する。
type Classifier struct {
	target model.TargetGame
	logger *slog.Logger
}

// NewClassifier はClassifierの新しいインスタンスを生成する。
func NewClassifier(target model.TargetGame, logger *slog.Logger) *Classifier {
	return &Classifier{
		target: target,
		logger: logger,
	}
}

// Classify はPresenceRecordを (isOnline, isInGame, inTargetGame) に分類する。
//
// 対象ゲーム判定は isInGame の場合のみ行い、以下の順で最初に一致した
// 規則を採用する:
//  1. universeIdが対象ゲームのUniverse IDと一致
//  2. placeIdまたはrootPlaceIdが対象ゲームのPlace IDと一致
//  3. location文字列が対象ゲーム名を含む（大文字小文字を区別しない）
//
// 規則2・3で一致し、かつuniverseIdが欠落している場合は、返却レコードの
// 一貫性のためにuniverseIdを対象ゲームのUniverse IDで補完する
// （上流データの正しさの主張ではなく、意図的な正規化）。
//
// isInGameにもかかわらずplaceId・universeIdが共に欠落している場合は
// 資格情報の問題（無効または未設定のセッションクッキー）の可能性が高いため
// 警告ログを出すが、リクエストは失敗させず分類を続行する。
func (c *Classifier) Classify(rec *model.PresenceRecord, userID int64) (isOnline, isInGame, inTargetGame bool) {
	isOnline = rec.PresenceType == model.PresenceTypeOnline || rec.PresenceType == model.PresenceTypeInGame
	isInGame = rec.PresenceType == model.PresenceTypeInGame

	if !isInGame {
		return isOnline, isInGame, false
	}

	inTargetGame = c.matchTargetGame(rec)

	if rec.PlaceID == nil && rec.UniverseID == nil {
		c.logger.Warn("ゲームプレイ中にもかかわらずplace/universe IDが取得できませんでした。セッション資格情報が無効または未設定の可能性があります",
			slog.Int64("user_id", userID),
			slog.String("location", rec.Location),
		)
	}

	return isOnline, isInGame, inTargetGame
}

// matchTargetGame は多段フォールバックで対象ゲーム判定を行う。
// 最初に一致した規則で確定する。
func (c *Classifier) matchTargetGame(rec *model.PresenceRecord) bool {
	// 規則1: universeIdの一致（最優先・最も信頼できるシグナル）
	if rec.UniverseID != nil && c.target.UniverseID != 0 && *rec.UniverseID == c.target.UniverseID {
		return true
	}

	// 規則2: placeIdまたはrootPlaceIdの一致
	if c.target.PlaceID != 0 {
		if (rec.PlaceID != nil && *rec.PlaceID == c.target.PlaceID) ||
			(rec.RootPlaceID != nil && *rec.RootPlaceID == c.target.PlaceID) {
			c.backfillUniverseID(rec)
			return true
		}
	}

	// 規則3: location文字列の部分一致（大文字小文字を区別しない）
	if c.target.Name != "" && rec.Location != "" &&
		strings.Contains(strings.ToLower(rec.Location), strings.ToLower(c.target.Name)) {
		c.backfillUniverseID(rec)
		return true
	}

	return false
}

// backfillUniverseID はuniverseId欠落時に対象ゲームのUniverse IDを補完する。
func (c *Classifier) backfillUniverseID(rec *model.PresenceRecord) {
	if rec.UniverseID == nil && c.target.UniverseID != 0 {
		universeID := c.target.UniverseID
		rec.UniverseID = &universeID
	}
}
