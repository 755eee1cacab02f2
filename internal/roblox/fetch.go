// Package roblox はRobloxプレゼンスAPIへのアクセスを提供する。
// タイムアウト付きフェッチャー、リトライ戦略、上流ソースチェーン、
// ステータス分類器を含む。
package roblox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/presenceman/internal/model"
)

const (
	// defaultRetries はリトライ回数のデフォルト値。
	defaultRetries = 3
	// defaultInitialDelay は初回リトライ遅延のデフォルト値。
	// リトライごとに2倍になる（1s、2s、4s）。
	defaultInitialDelay = 1 * time.Second
	// defaultTimeout は単一HTTP呼び出しのデッドライン。
	// リトライごとに再設定される。リトライを跨ぐ全体デッドラインは設けない。
	defaultTimeout = 15 * time.Second
)

// HTTPDoer はHTTPリクエスト実行のインターフェース。
// テスト時にモックに差し替え可能。
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SleepFunc はリトライ間の待機関数。テストでは即時返却の実装を注入する。
// コンテキストがキャンセルされた場合はそのエラーを返す。
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepWithContext はコンテキストを尊重して指定時間待機する。
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fetcher はタイムアウトとリトライ付きの外向きHTTP呼び出しを実行する。
//
// リトライポリシー:
//   - 429（レート制限）: 残回数があれば指数バックオフでリトライ
//   - その他の非2xx: 即時失敗（HTTPError、リトライしない）
//   - タイムアウト・ネットワークエラー: 残回数があれば同じバックオフでリトライ
//
// システム内のリトライポリシーはこれ1つであり、全上流ソースが同一の
// ポリシーを共有する。
type Fetcher struct {
	client       HTTPDoer
	logger       *slog.Logger
	timeout      time.Duration
	retries      int
	initialDelay time.Duration
	sleep        SleepFunc
}

// FetcherConfig はFetcherの設定パラメータ。ゼロ値はデフォルトに補正される。
type FetcherConfig struct {
	Timeout      time.Duration
	Retries      int
	InitialDelay time.Duration
	// Sleep はリトライ待機関数。nilの場合はコンテキストを尊重する実待機。
	Sleep SleepFunc
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(client HTTPDoer, logger *slog.Logger, cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaultInitialDelay
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepWithContext
	}
	return &Fetcher{
		client:       client,
		logger:       logger,
		timeout:      cfg.Timeout,
		retries:      cfg.Retries,
		initialDelay: cfg.InitialDelay,
		sleep:        cfg.Sleep,
	}
}

// Do はリトライ付きでHTTPリクエストを実行し、ステータスコードとボディを返す。
// bodyは試行ごとに新しいReaderとして再送される。
// 2xx以外かつ429以外のステータスはmodel.HTTPErrorとして即時失敗する。
func (f *Fetcher) Do(ctx context.Context, method, url string, header http.Header, body []byte) (int, []byte, error) {
	retriesLeft := f.retries
	delay := f.initialDelay

	for {
		status, respBody, err := f.doOnce(ctx, method, url, header, body)

		switch {
		case err == nil && status >= 200 && status < 300:
			return status, respBody, nil

		case err == nil && status == http.StatusTooManyRequests:
			if retriesLeft <= 0 {
				return status, nil, &model.HTTPError{Status: status}
			}
			f.logger.Warn("上流にレート制限されました。バックオフしてリトライします",
				slog.String("url", url),
				slog.Duration("delay", delay),
				slog.Int("retries_left", retriesLeft),
			)

		case err == nil:
			// 429以外の非2xxはリトライしない
			return status, nil, &model.HTTPError{Status: status}

		default:
			// タイムアウトまたはネットワークエラー
			if retriesLeft <= 0 {
				return 0, nil, err
			}
			f.logger.Warn("上流呼び出しに失敗しました。バックオフしてリトライします",
				slog.String("url", url),
				slog.String("error", err.Error()),
				slog.Duration("delay", delay),
				slog.Int("retries_left", retriesLeft),
			)
		}

		if err := f.sleep(ctx, delay); err != nil {
			return 0, nil, err
		}
		retriesLeft--
		delay *= 2
	}
}

// doOnce はデッドライン付きで1回のHTTP呼び出しを実行する。
// デッドライン超過はmodel.ErrTimeoutにマップされる。
// タイマーはdefer cancelにより成功・失敗の両経路で必ず解放される。
func (f *Fetcher) doOnce(ctx context.Context, method, url string, header http.Header, body []byte) (int, []byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(callCtx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return 0, nil, fmt.Errorf("%w: %s", model.ErrTimeout, url)
		}
		return 0, nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("レスポンスボディの読み取りに失敗: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
