// cmd/membershipctl/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"membership-checkout/internal/checkout"
	"membership-checkout/internal/checkout/gateway"
	"membership-checkout/internal/checkout/reconcile"
	"membership-checkout/internal/common/cache"
	"membership-checkout/internal/common/config"
	"membership-checkout/internal/common/logger"
	"membership-checkout/internal/common/observability"
	"membership-checkout/internal/membership/api"
	"membership-checkout/internal/membership/lifecycle"
	"membership-checkout/internal/membership/plans"
	"membership-checkout/internal/models"
	"membership-checkout/pkg/gateways"
)

const usage = `membershipctl <command> [flags]

Commands:
  checkout       start a membership payment (-plan, -service)
  status         query a payment's backend status (-payment)
  refund         request a refund for a payment (-payment)
  plans          list available plans
  me             show the current subscription
  cancel         turn off auto-renewal
  resume         turn auto-renewal back on during the grace period
  change-plan    switch plans (-plan)
  cancel-change  withdraw a scheduled plan change
  pay-proration  pay the upgrade's partial charge (-plan, -service)
`

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Metrics server (optional) ---
	if cfg.Metrics.ListenAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
			})
			zapLog.Info("metrics server listening", zap.String("addr", cfg.Metrics.ListenAddr))
			if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil {
				zapLog.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	// --- Init Redis with retry (optional, plan cache only) ---
	var redisClient *cache.RedisClient
	if cfg.Redis.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = cache.NewRedis(cfg.Redis)
			if err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			// The cache is an optimization; run degraded instead of dying.
			zapLog.Warn("redis unavailable, plan cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			zapLog.Info("Redis connected successfully")
		}
	}

	// --- Wire the backend client and domain services ---
	client := api.NewClient(cfg.Backend, log)

	catalog := plans.NewCatalog(client, redisClientOrNil(redisClient), log)

	registry := gateways.Default()
	if cfg.Gateway.RegistryPath != "" {
		registry, err = gateways.Load(cfg.Gateway.RegistryPath)
		if err != nil {
			zapLog.Fatal("provider registry load failed", zap.Error(err))
		}
	}

	listenAddr := ":7788"
	sdk := gateway.NewRedirectSDK(listenAddr, log)
	adapter := gateway.NewAdapter(sdk, cfg.Gateway.MerchantID,
		time.Duration(cfg.Gateway.CallbackTimeout)*time.Millisecond, log)

	reconciler := reconcile.New(client,
		time.Duration(cfg.Checkout.StatusInterval)*time.Millisecond,
		cfg.Checkout.StatusMaxChecks, log)

	orchestrator := checkout.New(client, adapter, reconciler, registry, checkout.Options{
		Buyer:     gateway.Buyer{Email: cfg.Buyer.Email, Name: cfg.Buyer.Name},
		BaseDelay: time.Duration(cfg.Checkout.BaseDelay) * time.Millisecond,
		Catalog:   catalog,
		Obs:       obs,
		OnRetry: func(attempt int, result *models.PaymentResult) {
			fmt.Fprintf(os.Stderr, "결제 재시도 중... (%d회차, %s)\n", attempt, result.ErrorCode)
		},
	}, log)

	svc := lifecycle.New(client, orchestrator, catalog, log)

	if err := run(ctx, command, os.Args[2:], cfg, orchestrator, svc, client, catalog); err != nil {
		zapLog.Error("command failed", zap.String("command", command), zap.Error(err))
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	command string,
	args []string,
	cfg *config.Config,
	orchestrator *checkout.Orchestrator,
	svc *lifecycle.Service,
	client *api.Client,
	catalog *plans.Catalog,
) error {
	switch command {
	case "checkout":
		fs := flag.NewFlagSet("checkout", flag.ExitOnError)
		plan := fs.String("plan", "", "plan code to subscribe to")
		service := fs.String("service", "CARD", "payment service (CARD, KAKAO_PAY, TOSS_PAY, NAVER_PAY, PHONE)")
		fs.Parse(args)
		if *plan == "" {
			return fmt.Errorf("-plan is required")
		}

		result, attempt := orchestrator.ProcessPaymentWithRetry(ctx, models.PaymentRequest{
			PlanCode:       *plan,
			PaymentService: models.PaymentService(*service),
		}, cfg.Checkout.MaxRetries)
		printJSON(result)
		if !result.Success {
			return fmt.Errorf("checkout failed after %d retries: %s", attempt.RetryCount, result.ErrorCode)
		}
		return nil

	case "status":
		fs := flag.NewFlagSet("status", flag.ExitOnError)
		payment := fs.String("payment", "", "payment id")
		fs.Parse(args)
		if *payment == "" {
			return fmt.Errorf("-payment is required")
		}
		status, err := client.PaymentStatus(ctx, *payment)
		if err != nil {
			return err
		}
		printJSON(status)
		return nil

	case "refund":
		fs := flag.NewFlagSet("refund", flag.ExitOnError)
		payment := fs.String("payment", "", "payment id")
		fs.Parse(args)
		if *payment == "" {
			return fmt.Errorf("-payment is required")
		}
		if err := client.Refund(ctx, *payment); err != nil {
			return err
		}
		fmt.Println("환불이 접수되었습니다.")
		return nil

	case "plans":
		list, err := catalog.List(ctx)
		if err != nil {
			return err
		}
		printJSON(list)
		return nil

	case "me":
		sub, err := svc.Current(ctx)
		if err != nil {
			return err
		}
		printJSON(sub)
		return nil

	case "cancel":
		sub, err := svc.Cancel(ctx, lifecycle.NewIntent())
		if err != nil {
			return err
		}
		fmt.Printf("자동 갱신이 해지되었습니다. %s까지 이용 가능합니다.\n", sub.EndAt.Format("2006-01-02"))
		return nil

	case "resume":
		sub, err := svc.Resume(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("자동 갱신이 다시 설정되었습니다. 다음 결제일: %s\n", sub.NextBillingAt.Format("2006-01-02"))
		return nil

	case "change-plan":
		fs := flag.NewFlagSet("change-plan", flag.ExitOnError)
		plan := fs.String("plan", "", "target plan code")
		fs.Parse(args)
		if *plan == "" {
			return fmt.Errorf("-plan is required")
		}
		outcome, err := svc.ChangePlan(ctx, *plan, lifecycle.NewIntent())
		if err != nil {
			return err
		}
		printJSON(outcome)
		if outcome.ChangeType == models.ChangeUpgrade && outcome.ProrationAmount > 0 {
			fmt.Printf("업그레이드 차액 %d원은 pay-proration 명령으로 결제할 수 있습니다.\n", outcome.ProrationAmount)
		}
		return nil

	case "cancel-change":
		sub, err := svc.CancelScheduledChange(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("예약된 플랜 변경이 취소되었습니다. 현재 플랜: %s\n", sub.PlanName)
		return nil

	case "pay-proration":
		fs := flag.NewFlagSet("pay-proration", flag.ExitOnError)
		plan := fs.String("plan", "", "target plan code")
		service := fs.String("service", "CARD", "payment service")
		fs.Parse(args)
		if *plan == "" {
			return fmt.Errorf("-plan is required")
		}
		result, err := svc.PayProration(ctx, *plan, models.PaymentService(*service))
		if err != nil {
			return err
		}
		printJSON(result)
		if !result.Success {
			return fmt.Errorf("proration payment failed: %s", result.ErrorCode)
		}
		return nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func redisClientOrNil(c *cache.RedisClient) *redis.Client {
	if c == nil {
		return nil
	}
	return c.Client
}
