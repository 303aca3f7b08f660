package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	policyFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "예측 추적기 - 주가 예측 궤적 추적/잠금/안정화",
	Long: `Prediction Tracker CLI

스크리너 예측(5거래일/30거래일)을 궤적으로 펼쳐 추적합니다.
잠금, 일별 실제 종가 기록, 예측 수정, 안정성 게이트를 제공합니다.

Usage:
  go run ./cmd/tracker [command]

Examples:
  go run ./cmd/tracker track init SBIN
  go run ./cmd/tracker track lock SBIN 30d --persistent
  go run ./cmd/tracker track update
  go run ./cmd/tracker stability apply
  go run ./cmd/tracker scheduler start
  go run ./cmd/tracker api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", "", "policy YAML file (overrides POLICY_FILE)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
