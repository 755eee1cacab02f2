package roblox

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/presenceman/internal/model"
)

// CredentialResolver は昇格済みセッション資格情報を解決する関数。
// 「永続設定の値が環境変数デフォルトを上書きする」という優先規則を
// この関数の実装に閉じ込め、チェーンには構築時に注入する。
type CredentialResolver func(ctx context.Context) string

// ChainResult はソースチェーンによる1回の解決結果。
type ChainResult struct {
	Record             *model.PresenceRecord
	Method             model.PresenceMethod
	AttemptLog         []model.Attempt
	CredentialProvided bool
}

// Chain は優先順位付きの上流ソース列を順に試行し、最初に使用可能な
// 結果を返したソースで打ち切る。候補は常に逐次試行であり、並列には
// 呼び出さない（安価なprimaryを優先するレイテンシ/コストのトレードオフ）。
type Chain struct {
	primary    PresenceSource
	fallback   PresenceSource
	direct     PresenceSource
	credential CredentialResolver
	logger     *slog.Logger
}

// NewChain はChainの新しいインスタンスを生成する。
func NewChain(primary, fallback, direct PresenceSource, credential CredentialResolver, logger *slog.Logger) *Chain {
	return &Chain{
		primary:    primary,
		fallback:   fallback,
		direct:     direct,
		credential: credential,
		logger:     logger,
	}
}

// Resolve は指定ユーザーのプレゼンスをチェーンで解決する。
//
// 候補順序の決定:
//   - methodFilter指定あり: そのソースのみ
//   - 資格情報あり: directのみ（資格情報を必要とする信頼できる上流）
//   - それ以外: primary → fallback の順
//
// credentialOverrideが空の場合は注入されたCredentialResolverで解決する。
// 全候補が尽きた場合はPresenceUnavailableErrorを返す。
// 試行ごとに診断用のAttemptを記録する（制御フローには使用しない）。
func (c *Chain) Resolve(ctx context.Context, userID int64, methodFilter model.PresenceMethod, credentialOverride string) (*ChainResult, error) {
	cookie := credentialOverride
	if cookie == "" && c.credential != nil {
		cookie = c.credential(ctx)
	}
	credentialProvided := cookie != ""

	candidates := c.candidates(methodFilter, credentialProvided)

	result := &ChainResult{CredentialProvided: credentialProvided}

	for _, src := range candidates {
		attempt := model.Attempt{
			Method:             src.Name(),
			CredentialProvided: credentialProvided,
		}

		record, err := src.TryResolve(ctx, userID, cookie)
		if err != nil {
			attempt.Error = err.Error()
			var httpErr *model.HTTPError
			if errors.As(err, &httpErr) {
				attempt.HTTPStatus = httpErr.Status
			}
			result.AttemptLog = append(result.AttemptLog, attempt)

			c.logger.Warn("上流ソースでのプレゼンス解決に失敗しました",
				slog.Int64("user_id", userID),
				slog.String("method", string(src.Name())),
				slog.String("error", err.Error()),
				slog.Bool("credential_provided", credentialProvided),
			)
			continue
		}

		attempt.Success = true
		attempt.HTTPStatus = http.StatusOK
		result.AttemptLog = append(result.AttemptLog, attempt)
		result.Record = record
		result.Method = src.Name()

		return result, nil
	}

	return result, &model.PresenceUnavailableError{UserID: userID}
}

// candidates は試行するソースの順序付きリストを決定する。
func (c *Chain) candidates(methodFilter model.PresenceMethod, credentialProvided bool) []PresenceSource {
	switch methodFilter {
	case model.MethodPrimary:
		return []PresenceSource{c.primary}
	case model.MethodFallback:
		return []PresenceSource{c.fallback}
	case model.MethodDirect:
		return []PresenceSource{c.direct}
	}

	if credentialProvided {
		return []PresenceSource{c.direct}
	}
	return []PresenceSource{c.primary, c.fallback}
}
