// Package gateway isolates the payment SDK's callback contract behind an
// awaitable adapter. Nothing above this package knows callbacks exist.
package gateway

import (
	"context"
	"encoding/json"
)

// CallbackFunc receives the SDK's raw callback payload. The adapter
// validates the shape before trusting any field.
type CallbackFunc func(raw json.RawMessage)

// SDK mirrors the payment provider's imperative contract: initialize with
// a merchant identifier, then request payment and wait for at most one
// terminal callback per invocation.
type SDK interface {
	Init(merchantID string) error
	RequestPay(ctx context.Context, payload PayRequest, cb CallbackFunc)
}

// PayRequest is the SDK invocation payload. MerchantUID and Amount must
// come from the server-minted checkout session, never recomputed here.
type PayRequest struct {
	PG          string `json:"pg"`
	PayMethod   string `json:"pay_method"`
	MerchantUID string `json:"merchant_uid"`
	Amount      int64  `json:"amount"`
	Name        string `json:"name"`
	BuyerEmail  string `json:"buyer_email,omitempty"`
	BuyerName   string `json:"buyer_name,omitempty"`
	RedirectURL string `json:"m_redirect_url,omitempty"`
}

// CallbackResult is the validated shape of a gateway callback.
type CallbackResult struct {
	Success     bool   `json:"success"`
	ImpUID      string `json:"imp_uid,omitempty"`
	MerchantUID string `json:"merchant_uid,omitempty"`
	PaidAmount  int64  `json:"paid_amount,omitempty"`
	ErrorMsg    string `json:"error_msg,omitempty"`
}

// Buyer is the identity stamped on the gateway payload.
type Buyer struct {
	Email string
	Name  string
}
