package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/goahead/predtracker/internal/api"
	"github.com/goahead/predtracker/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `대시보드용 REST API 서버를 시작합니다.

Endpoints:
  GET  /health                                  - Health check
  GET  /metrics                                 - Prometheus metrics
  GET  /api/tracking                            - 추적 종목 목록
  GET  /api/tracking/summary                    - 추적 요약
  GET  /api/tracking/{symbol}                   - 추적 레코드
  GET  /api/tracking/{symbol}/series/{horizon}  - 차트 시계열
  GET  /api/tracking/{symbol}/lock/{horizon}    - 잠금 상태
  POST /api/tracking/{symbol}/lock/{horizon}    - 잠금 (?persistent=true)
  POST /api/tracking/{symbol}/unlock/{horizon}  - 잠금 해제
  GET  /api/stability/status                    - 안정성 게이트 현황
  GET  /api/stability/{symbol}                  - 저장된 예측

Example:
  go run ./cmd/tracker api
  go run ./cmd/tracker api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Prediction Tracker API Server ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	var metricsHandler = a.metrics.Handler()
	if !a.cfg.MetricsEnabled {
		metricsHandler = nil
	}

	router := api.NewRouter(
		handlers.NewTrackingHandler(a.tracker, a.log),
		handlers.NewStabilityHandler(a.gate(), a.log),
		metricsHandler,
		a.log,
	)
	server := api.New(a.cfg, a.log, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("✅ Listening on :%s (Ctrl+C to stop)\n", a.cfg.Port)
	if err := server.Run(ctx); err != nil {
		return err
	}

	fmt.Println("✅ Server stopped")
	return nil
}
