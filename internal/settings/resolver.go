// Package settings はアプリケーション設定の解決を担当する。
// データベースに保存された値が環境変数より優先される。
package settings

import (
	"context"
	"log/slog"

	"github.com/hitoshi/presenceman/internal/repository"
	"github.com/hitoshi/presenceman/internal/roblox"
)

// NewCredentialResolver はRoblox Cookieの解決関数を生成する。
// データベースに保存されたCookieが存在すればそれを返し、
// なければ環境変数由来のenvCookieにフォールバックする。
func NewCredentialResolver(repo repository.SettingsRepository, envCookie string, logger *slog.Logger) roblox.CredentialResolver {
	return func(ctx context.Context) string {
		stored, err := repo.Get(ctx, repository.SettingKeyRobloxCookie)
		if err != nil {
			logger.Warn("保存済みCookieの取得に失敗したため環境変数の値を使用します",
				slog.String("error", err.Error()))
			return envCookie
		}
		if stored != "" {
			return stored
		}
		return envCookie
	}
}
