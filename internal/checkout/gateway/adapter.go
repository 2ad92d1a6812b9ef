package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"membership-checkout/internal/common/logger"
	"membership-checkout/internal/common/payerr"
	"membership-checkout/internal/models"
	"membership-checkout/pkg/gateways"
)

// Adapter turns the SDK's callback into a single-resolution wait with a
// timeout. One Adapter serves many attempts; the SDK is initialized once
// per attempt with the fixed merchant identifier.
type Adapter struct {
	sdk        SDK
	merchantID string
	timeout    time.Duration
	log        logger.Logger
}

func NewAdapter(sdk SDK, merchantID string, timeout time.Duration, log logger.Logger) *Adapter {
	return &Adapter{
		sdk:        sdk,
		merchantID: merchantID,
		timeout:    timeout,
		log:        log.WithFields(map[string]interface{}{"component": "gateway-adapter"}),
	}
}

// Ready reports whether an SDK is present in the environment. Checked by
// the orchestrator before any network call is made.
func (a *Adapter) Ready() bool {
	return a.sdk != nil
}

// RequestPay invokes the SDK for the given session and waits for its
// terminal callback. The raw callback is schema-validated before any
// field is trusted; a malformed callback is INVALID_PAYMENT_DATA, never a
// silent success or failure.
func (a *Adapter) RequestPay(ctx context.Context, provider gateways.Provider, session *models.CheckoutSession, planName string, buyer Buyer, redirectURL string) (*CallbackResult, *payerr.Error) {
	if a.sdk == nil {
		return nil, payerr.NewSDKNotLoaded()
	}
	if err := a.sdk.Init(a.merchantID); err != nil {
		a.log.Error("sdk init failed", map[string]interface{}{"error": err.Error()})
		return nil, payerr.NewSDKNotLoaded()
	}

	payload := PayRequest{
		PG:          provider.PGCode,
		PayMethod:   provider.PayMethod,
		MerchantUID: session.ProviderSessionID,
		Amount:      session.Amount,
		Name:        planName,
		BuyerEmail:  buyer.Email,
		BuyerName:   buyer.Name,
		RedirectURL: redirectURL,
	}

	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// At most one terminal callback per invocation; a misbehaving SDK
	// firing twice must not block or double-resolve.
	resultCh := make(chan json.RawMessage, 1)
	var once sync.Once
	cb := func(raw json.RawMessage) {
		once.Do(func() {
			resultCh <- raw
		})
	}

	a.log.Info("invoking payment SDK", map[string]interface{}{
		"pg":          provider.PGCode,
		"merchantUid": session.ProviderSessionID,
		"amount":      session.Amount,
	})
	a.sdk.RequestPay(cctx, payload, cb)

	select {
	case raw := <-resultCh:
		return a.decodeCallback(raw, session)
	case <-cctx.Done():
		a.log.Warn("gateway callback wait ended without a terminal callback", map[string]interface{}{
			"merchantUid": session.ProviderSessionID,
			"waited":      a.timeout.String(),
		})
		return nil, payerr.NewPaymentFailed("결제가 완료되지 않았습니다.", "gateway callback wait timed out; session left pending")
	}
}

func (a *Adapter) decodeCallback(raw json.RawMessage, session *models.CheckoutSession) (*CallbackResult, *payerr.Error) {
	if err := gateways.ValidateCallback(raw); err != nil {
		return nil, payerr.NewInvalidPaymentData(err.Error())
	}

	var result CallbackResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, payerr.NewInvalidPaymentData(err.Error())
	}

	// A "successful" callback answering a different session is tampering
	// or crossed wires either way.
	if result.Success && result.MerchantUID != session.ProviderSessionID {
		return nil, payerr.NewInvalidPaymentData("merchant_uid does not match the checkout session")
	}

	return &result, nil
}
