package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"membership-checkout/internal/common/logger"
)

// RedirectSDK completes payment over the gateway's redirect leg instead of
// an in-page module: the user finishes the hosted checkout in a browser,
// the gateway redirects back to this process's listener, and the redirect
// query parameters become the callback payload. This is the headless
// stand-in for the browser-injected SDK used by membershipctl.
type RedirectSDK struct {
	listenAddr string
	merchantID string
	log        logger.Logger
}

func NewRedirectSDK(listenAddr string, log logger.Logger) *RedirectSDK {
	return &RedirectSDK{
		listenAddr: listenAddr,
		log:        log.WithFields(map[string]interface{}{"component": "redirect-sdk"}),
	}
}

func (s *RedirectSDK) Init(merchantID string) error {
	s.merchantID = merchantID
	return nil
}

// RequestPay serves the redirect return endpoint and feeds the first hit
// to the callback. The hosted checkout URL itself is opened by the user;
// this side only waits for the gateway to come back.
func (s *RedirectSDK) RequestPay(ctx context.Context, payload PayRequest, cb CallbackFunc) {
	mux := http.NewServeMux()
	srv := &http.Server{Addr: s.listenAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	mux.HandleFunc("/payment/return", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		result := map[string]interface{}{
			"success":      q.Get("imp_success") == "true",
			"merchant_uid": q.Get("merchant_uid"),
		}
		if v := q.Get("imp_uid"); v != "" {
			result["imp_uid"] = v
		}
		if v := q.Get("error_msg"); v != "" {
			result["error_msg"] = v
		}

		raw, _ := json.Marshal(result)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("결제 처리가 완료되었습니다. 창을 닫아주세요."))

		go func() {
			cb(raw)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	})

	go func() {
		s.log.Info("waiting for gateway redirect", map[string]interface{}{
			"listen":      s.listenAddr,
			"merchantUid": payload.MerchantUID,
			"pg":          payload.PG,
			"amount":      payload.Amount,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("redirect listener failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
