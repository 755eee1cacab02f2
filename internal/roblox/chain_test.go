package roblox

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/presenceman/internal/model"
)

// stubSource は固定結果を返すPresenceSource。受け取ったクッキーを記録する。
type stubSource struct {
	method     model.PresenceMethod
	record     *model.PresenceRecord
	err        error
	calls      int
	lastCookie string
}

func (s *stubSource) Name() model.PresenceMethod { return s.method }

func (s *stubSource) TryResolve(ctx context.Context, userID int64, cookie string) (*model.PresenceRecord, error) {
	s.calls++
	s.lastCookie = cookie
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func onlineRecord() *model.PresenceRecord {
	return &model.PresenceRecord{PresenceType: model.PresenceTypeOnline}
}

func newTestChain(primary, fallback, direct *stubSource, credential CredentialResolver) *Chain {
	var buf bytes.Buffer
	return NewChain(primary, fallback, direct, credential, newTestLogger(&buf))
}

func TestChain_PrimarySucceeds_NoFurtherAttempts(t *testing.T) {
	primary := &stubSource{method: model.MethodPrimary, record: onlineRecord()}
	fallback := &stubSource{method: model.MethodFallback, record: onlineRecord()}
	direct := &stubSource{method: model.MethodDirect, record: onlineRecord()}
	c := newTestChain(primary, fallback, direct, nil)

	result, err := c.Resolve(context.Background(), 123, "", "")
	if err != nil {
		t.Fatalf("Resolve がエラーを返した: %v", err)
	}

	if result.Method != model.MethodPrimary {
		t.Errorf("Method = %q, want primary", result.Method)
	}
	if fallback.calls != 0 || direct.calls != 0 {
		t.Errorf("primary成功時にfallback/directが呼ばれてはならない: fallback=%d direct=%d", fallback.calls, direct.calls)
	}
	if len(result.AttemptLog) != 1 {
		t.Fatalf("AttemptLogの件数 = %d, want 1", len(result.AttemptLog))
	}
	if !result.AttemptLog[0].Success || result.AttemptLog[0].Method != model.MethodPrimary {
		t.Errorf("AttemptLog[0] = %+v, want 成功したprimary", result.AttemptLog[0])
	}
}

func TestChain_PrimaryFails_FallbackSucceeds(t *testing.T) {
	primary := &stubSource{method: model.MethodPrimary, err: &model.HTTPError{Status: 503}}
	fallback := &stubSource{method: model.MethodFallback, record: onlineRecord()}
	direct := &stubSource{method: model.MethodDirect, record: onlineRecord()}
	c := newTestChain(primary, fallback, direct, nil)

	result, err := c.Resolve(context.Background(), 123, "", "")
	if err != nil {
		t.Fatalf("Resolve がエラーを返した: %v", err)
	}

	if result.Method != model.MethodFallback {
		t.Errorf("Method = %q, want fallback", result.Method)
	}
	if len(result.AttemptLog) != 2 {
		t.Fatalf("AttemptLogの件数 = %d, want 2", len(result.AttemptLog))
	}
	first, second := result.AttemptLog[0], result.AttemptLog[1]
	if first.Method != model.MethodPrimary || first.Success {
		t.Errorf("AttemptLog[0] = %+v, want 失敗したprimary", first)
	}
	if first.HTTPStatus != 503 {
		t.Errorf("AttemptLog[0].HTTPStatus = %d, want 503", first.HTTPStatus)
	}
	if second.Method != model.MethodFallback || !second.Success {
		t.Errorf("AttemptLog[1] = %+v, want 成功したfallback", second)
	}
}

func TestChain_AllSourcesExhausted(t *testing.T) {
	primary := &stubSource{method: model.MethodPrimary, err: errors.New("parse failure")}
	fallback := &stubSource{method: model.MethodFallback, err: &model.HTTPError{Status: 500}}
	direct := &stubSource{method: model.MethodDirect, record: onlineRecord()}
	c := newTestChain(primary, fallback, direct, nil)

	result, err := c.Resolve(context.Background(), 456, "", "")

	var unavailable *model.PresenceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("PresenceUnavailableErrorが返らなかった: %v", err)
	}
	if unavailable.UserID != 456 {
		t.Errorf("UserID = %d, want 456", unavailable.UserID)
	}
	// 資格情報なし → directは候補に含まれない
	if direct.calls != 0 {
		t.Errorf("資格情報なしでdirectが呼ばれてはならない: calls = %d", direct.calls)
	}
	if len(result.AttemptLog) != 2 {
		t.Errorf("AttemptLogの件数 = %d, want 2", len(result.AttemptLog))
	}
}

func TestChain_CredentialPresent_TriesDirectOnly(t *testing.T) {
	primary := &stubSource{method: model.MethodPrimary, record: onlineRecord()}
	fallback := &stubSource{method: model.MethodFallback, record: onlineRecord()}
	direct := &stubSource{method: model.MethodDirect, record: onlineRecord()}
	credential := func(ctx context.Context) string { return "configured-cookie" }
	c := newTestChain(primary, fallback, direct, credential)

	result, err := c.Resolve(context.Background(), 123, "", "")
	if err != nil {
		t.Fatalf("Resolve がエラーを返した: %v", err)
	}

	if result.Method != model.MethodDirect {
		t.Errorf("Method = %q, want direct", result.Method)
	}
	if primary.calls != 0 || fallback.calls != 0 {
		t.Error("資格情報がある場合はdirectのみを試行しなければならない")
	}
	if direct.lastCookie != "configured-cookie" {
		t.Errorf("directに渡されたクッキー = %q, want configured-cookie", direct.lastCookie)
	}
	if !result.CredentialProvided {
		t.Error("CredentialProvided = false, want true")
	}
}

func TestChain_CredentialOverrideWinsOverResolver(t *testing.T) {
	direct := &stubSource{method: model.MethodDirect, record: onlineRecord()}
	credential := func(ctx context.Context) string { return "resolver-cookie" }
	c := newTestChain(
		&stubSource{method: model.MethodPrimary},
		&stubSource{method: model.MethodFallback},
		direct, credential,
	)

	_, err := c.Resolve(context.Background(), 123, "", "override-cookie")
	if err != nil {
		t.Fatalf("Resolve がエラーを返した: %v", err)
	}

	if direct.lastCookie != "override-cookie" {
		t.Errorf("明示overrideが優先されなければならない: cookie = %q", direct.lastCookie)
	}
}

func TestChain_MethodFilterBypassesOrdering(t *testing.T) {
	primary := &stubSource{method: model.MethodPrimary, record: onlineRecord()}
	fallback := &stubSource{method: model.MethodFallback, record: onlineRecord()}
	direct := &stubSource{method: model.MethodDirect, err: errors.New("down")}
	c := newTestChain(primary, fallback, direct, nil)

	_, err := c.Resolve(context.Background(), 123, model.MethodFallback, "")
	if err != nil {
		t.Fatalf("Resolve がエラーを返した: %v", err)
	}
	if primary.calls != 0 || fallback.calls != 1 {
		t.Errorf("methodFilter指定時は指定ソースのみを試行しなければならない: primary=%d fallback=%d", primary.calls, fallback.calls)
	}

	// 指定ソースが失敗した場合、他のソースにはフォールバックしない
	_, err = c.Resolve(context.Background(), 123, model.MethodDirect, "")
	var unavailable *model.PresenceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("指定ソース失敗時はPresenceUnavailableErrorでなければならない: %v", err)
	}
}
