package commands

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/goahead/predtracker/internal/contracts"
)

// stabilityCmd represents the stability command
var stabilityCmd = &cobra.Command{
	Use:   "stability",
	Short: "예측 안정성 게이트",
	Long: `스크리너 예측을 안정성 게이트에 통과시킵니다.

저장된 예측은 최소 보관 시간이 지났고 1개월 예측 변화가
임계치 이상일 때만 교체됩니다.

Subcommands:
  apply   - 스냅샷 파일의 후보를 게이트에 적용
  status  - 저장된 예측 현황
  show    - 종목별 저장된 예측 조회

Example:
  go run ./cmd/tracker stability apply
  go run ./cmd/tracker stability show SBIN`,
}

var (
	stabilityApplyCmd = &cobra.Command{
		Use:   "apply",
		Short: "스냅샷 후보를 게이트에 적용",
		RunE:  runStabilityApply,
	}

	stabilityStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "저장된 예측 현황",
		RunE:  runStabilityStatus,
	}

	stabilityShowCmd = &cobra.Command{
		Use:   "show [symbol]",
		Short: "종목별 저장된 예측 조회",
		Args:  cobra.ExactArgs(1),
		RunE:  runStabilityShow,
	}
)

func init() {
	rootCmd.AddCommand(stabilityCmd)
	stabilityCmd.AddCommand(stabilityApplyCmd, stabilityStatusCmd, stabilityShowCmd)
}

func runStabilityApply(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	candidates, err := a.snapshots.Candidates()
	if err != nil {
		return err
	}

	decisions, err := a.gate().Stabilize(candidates)
	if err != nil {
		return err
	}

	PrintHeader("Stability gate", "Candidates", strconv.Itoa(len(decisions)))
	for _, d := range decisions {
		mark := "="
		if d.Action == contracts.ActionUpdated {
			mark = "↻"
		}
		fmt.Printf("  %s %-12s 1mo %+7.2f%%  %s\n", mark, d.Prediction.Symbol, d.Prediction.Pred1Mo, d.Reason)
	}
	PrintFooter()
	return nil
}

func runStabilityStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	st := a.gate().Status()
	PrintHeader("Stable predictions",
		"Total", strconv.Itoa(st.Total),
		"Locked", strconv.Itoa(st.Locked),
		"Updateable", strconv.Itoa(st.Updateable),
	)

	buckets := make([]string, 0, len(st.ByAge))
	for b := range st.ByAge {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return bucketStart(buckets[i]) < bucketStart(buckets[j]) })
	for _, b := range buckets {
		fmt.Printf("  %-10s: %d\n", b, st.ByAge[b])
	}
	PrintFooter()
	return nil
}

// bucketStart parses the lower bound of an "N-Mh" age bucket
func bucketStart(bucket string) int {
	var lo, hi int
	if _, err := fmt.Sscanf(bucket, "%d-%dh", &lo, &hi); err != nil {
		return 0
	}
	return lo
}

func runStabilityShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	signal, ok := a.gate().Signal(args[0])
	if !ok {
		return fmt.Errorf("%w: no stable prediction for %s", contracts.ErrMissingRecord, args[0])
	}
	return PrintJSON(signal)
}
