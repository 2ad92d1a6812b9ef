package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"membership-checkout/internal/common/logger"
	"membership-checkout/internal/common/payerr"
	"membership-checkout/internal/models"
	"membership-checkout/pkg/gateways"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSDK scripts the callback behavior of the browser SDK.
type fakeSDK struct {
	initErr     error
	initCalls   int
	payCalls    int
	lastPayload PayRequest
	respond     func(payload PayRequest, cb CallbackFunc)
}

func (f *fakeSDK) Init(merchantID string) error {
	f.initCalls++
	return f.initErr
}

func (f *fakeSDK) RequestPay(ctx context.Context, payload PayRequest, cb CallbackFunc) {
	f.payCalls++
	f.lastPayload = payload
	if f.respond != nil {
		f.respond(payload, cb)
	}
}

func testSession() *models.CheckoutSession {
	return &models.CheckoutSession{
		PaymentID:         "pay_001",
		ProviderSessionID: "mid_001",
		Amount:            14900,
	}
}

func testProvider(t *testing.T) gateways.Provider {
	p, ok := gateways.Default().Resolve("KAKAO_PAY")
	require.True(t, ok)
	return p
}

func newTestAdapter(t *testing.T, sdk SDK, timeout time.Duration) *Adapter {
	return NewAdapter(sdk, "imp00000000", timeout, logger.NewTestLogger(t))
}

func TestAdapter_NilSDK(t *testing.T) {
	a := newTestAdapter(t, nil, time.Second)
	assert.False(t, a.Ready())

	result, perr := a.RequestPay(context.Background(), testProvider(t), testSession(), "프리미엄", Buyer{}, "")
	assert.Nil(t, result)
	require.NotNil(t, perr)
	assert.Equal(t, payerr.CodeSDKNotLoaded, perr.Code)
}

func TestAdapter_InitFailure(t *testing.T) {
	sdk := &fakeSDK{initErr: fmt.Errorf("module not present")}
	a := newTestAdapter(t, sdk, time.Second)

	_, perr := a.RequestPay(context.Background(), testProvider(t), testSession(), "프리미엄", Buyer{}, "")
	require.NotNil(t, perr)
	assert.Equal(t, payerr.CodeSDKNotLoaded, perr.Code)
	assert.Zero(t, sdk.payCalls, "SDK must not be invoked after a failed init")
}

func TestAdapter_SuccessCallback(t *testing.T) {
	sdk := &fakeSDK{
		respond: func(payload PayRequest, cb CallbackFunc) {
			cb(json.RawMessage(fmt.Sprintf(
				`{"success": true, "imp_uid": "imp_77", "merchant_uid": %q, "paid_amount": %d}`,
				payload.MerchantUID, payload.Amount,
			)))
		},
	}
	a := newTestAdapter(t, sdk, time.Second)

	result, perr := a.RequestPay(context.Background(), testProvider(t), testSession(), "프리미엄", Buyer{Email: "u@laftel.net", Name: "홍길동"}, "https://app/return")
	require.Nil(t, perr)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, "imp_77", result.ImpUID)

	assert.Equal(t, 1, sdk.initCalls)
	assert.Equal(t, "kakaopay", sdk.lastPayload.PG)
	assert.Equal(t, "mid_001", sdk.lastPayload.MerchantUID, "merchant uid must come from the session")
	assert.EqualValues(t, 14900, sdk.lastPayload.Amount, "amount must come from the session")
	assert.Equal(t, "u@laftel.net", sdk.lastPayload.BuyerEmail)
}

func TestAdapter_FailureCallback(t *testing.T) {
	sdk := &fakeSDK{
		respond: func(_ PayRequest, cb CallbackFunc) {
			cb(json.RawMessage(`{"success": false, "error_msg": "잔액이 부족합니다."}`))
		},
	}
	a := newTestAdapter(t, sdk, time.Second)

	result, perr := a.RequestPay(context.Background(), testProvider(t), testSession(), "프리미엄", Buyer{}, "")
	require.Nil(t, perr)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, "잔액이 부족합니다.", result.ErrorMsg)
}

func TestAdapter_MalformedCallback(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"success without imp_uid", `{"success": true, "merchant_uid": "mid_001"}`},
		{"wrong type", `{"success": "yes"}`},
		{"not json", `OK`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sdk := &fakeSDK{
				respond: func(_ PayRequest, cb CallbackFunc) {
					cb(json.RawMessage(tt.raw))
				},
			}
			a := newTestAdapter(t, sdk, time.Second)

			result, perr := a.RequestPay(context.Background(), testProvider(t), testSession(), "프리미엄", Buyer{}, "")
			assert.Nil(t, result)
			require.NotNil(t, perr)
			assert.Equal(t, payerr.CodeInvalidPaymentData, perr.Code)
		})
	}
}

func TestAdapter_MerchantUIDMismatch(t *testing.T) {
	sdk := &fakeSDK{
		respond: func(_ PayRequest, cb CallbackFunc) {
			cb(json.RawMessage(`{"success": true, "imp_uid": "imp_77", "merchant_uid": "mid_someone_else"}`))
		},
	}
	a := newTestAdapter(t, sdk, time.Second)

	_, perr := a.RequestPay(context.Background(), testProvider(t), testSession(), "프리미엄", Buyer{}, "")
	require.NotNil(t, perr)
	assert.Equal(t, payerr.CodeInvalidPaymentData, perr.Code)
}

func TestAdapter_CallbackTimeout(t *testing.T) {
	sdk := &fakeSDK{} // never calls back: user abandoned the hosted checkout
	a := newTestAdapter(t, sdk, 30*time.Millisecond)

	start := time.Now()
	result, perr := a.RequestPay(context.Background(), testProvider(t), testSession(), "프리미엄", Buyer{}, "")
	assert.Nil(t, result)
	require.NotNil(t, perr)
	assert.Equal(t, payerr.CodePaymentFailed, perr.Code)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestAdapter_DoubleCallbackResolvesOnce(t *testing.T) {
	sdk := &fakeSDK{
		respond: func(payload PayRequest, cb CallbackFunc) {
			cb(json.RawMessage(fmt.Sprintf(`{"success": true, "imp_uid": "imp_1", "merchant_uid": %q}`, payload.MerchantUID)))
			cb(json.RawMessage(`{"success": false, "error_msg": "late duplicate"}`))
		},
	}
	a := newTestAdapter(t, sdk, time.Second)

	result, perr := a.RequestPay(context.Background(), testProvider(t), testSession(), "프리미엄", Buyer{}, "")
	require.Nil(t, perr)
	assert.True(t, result.Success, "first terminal callback wins")
}
