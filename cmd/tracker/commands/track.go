package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/goahead/predtracker/internal/contracts"
	"github.com/goahead/predtracker/internal/tracking"
)

// trackCmd represents the track command
var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "예측 추적 관리",
	Long: `종목별 예측 궤적을 초기화/잠금/갱신합니다.

Subcommands:
  init     - 스냅샷으로 추적 시작
  auto     - 상위 N개 종목 자동 추적
  show     - 추적 레코드 조회
  series   - 차트 시계열 조회
  lock     - 예측 잠금 (임시/영구)
  unlock   - 예측 잠금 해제
  update   - 마지막 거래일 실제 종가 일괄 기록
  actual   - 실제 종가 수동 기록
  revise   - 잠금되지 않은 예측 수정
  refresh  - 만료된 임시 잠금 정리
  cleanup  - 보관 기간 지난 레코드 삭제
  summary  - 추적 요약
  backup   - 잠긴 예측 백업

Example:
  go run ./cmd/tracker track init SBIN
  go run ./cmd/tracker track lock SBIN 30d --persistent
  go run ./cmd/tracker track series SBIN 5d`,
}

var (
	initPrice      float64
	initPred5D     float64
	initPred1Mo    float64
	initConfidence float64
	initScore      float64

	autoTopN    int
	lockPersist bool
	revisePct   float64
	reviseDay   int
	backupDir   string
)

var (
	trackInitCmd = &cobra.Command{
		Use:   "init [symbol]",
		Short: "스냅샷으로 추적 시작 (기존 레코드 덮어씀)",
		Long: `최신 스냅샷(없으면 기본값)으로 추적 레코드를 생성합니다.
플래그로 개별 값을 덮어쓸 수 있습니다.`,
		Args: cobra.ExactArgs(1),
		RunE: runTrackInit,
	}

	trackAutoCmd = &cobra.Command{
		Use:   "auto",
		Short: "상위 N개 종목 자동 추적",
		RunE:  runTrackAuto,
	}

	trackShowCmd = &cobra.Command{
		Use:   "show [symbol]",
		Short: "추적 레코드 조회",
		Args:  cobra.ExactArgs(1),
		RunE:  runTrackShow,
	}

	trackSeriesCmd = &cobra.Command{
		Use:   "series [symbol] [5d|30d]",
		Short: "차트 시계열 조회",
		Args:  cobra.ExactArgs(2),
		RunE:  runTrackSeries,
	}

	trackLockCmd = &cobra.Command{
		Use:   "lock [symbol] [5d|30d]",
		Short: "예측 잠금",
		Long: `예측을 오늘 날짜 기준으로 잠급니다.

- 임시 잠금: 호라이즌 길이(5/30 거래일) 경과 시 자동 해제
- 영구 잠금 (--persistent): 명시적 해제 전까지 유지`,
		Args: cobra.ExactArgs(2),
		RunE: runTrackLock,
	}

	trackUnlockCmd = &cobra.Command{
		Use:   "unlock [symbol] [5d|30d]",
		Short: "예측 잠금 해제",
		Args:  cobra.ExactArgs(2),
		RunE:  runTrackUnlock,
	}

	trackUpdateCmd = &cobra.Command{
		Use:   "update",
		Short: "마지막 거래일 실제 종가 일괄 기록",
		Long: `장 마감 후 마지막 거래일의 종가를 모든 추적 종목에 기록합니다.
장중에는 아무 것도 기록하지 않고 다음 마감 시각을 출력합니다.`,
		RunE: runTrackUpdate,
	}

	trackActualCmd = &cobra.Command{
		Use:   "actual [symbol] [day] [price]",
		Short: "실제 종가 수동 기록 (day: 1-29)",
		Args:  cobra.ExactArgs(3),
		RunE:  runTrackActual,
	}

	trackReviseCmd = &cobra.Command{
		Use:   "revise [symbol] [5d|30d]",
		Short: "잠금되지 않은 예측 수정",
		Long: `새 예측 퍼센트로 궤적을 다시 생성해 수정 예측으로 기록합니다.
잠긴 호라이즌이거나 변화가 임계치 이하이면 기록하지 않습니다.`,
		Args: cobra.ExactArgs(2),
		RunE: runTrackRevise,
	}

	trackRefreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "만료된 임시 잠금 정리",
		RunE:  runTrackRefresh,
	}

	trackCleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "보관 기간 지난 레코드 삭제",
		RunE:  runTrackCleanup,
	}

	trackSummaryCmd = &cobra.Command{
		Use:   "summary",
		Short: "추적 요약",
		RunE:  runTrackSummary,
	}

	trackBackupCmd = &cobra.Command{
		Use:   "backup",
		Short: "잠긴 예측 백업",
		RunE:  runTrackBackup,
	}
)

func init() {
	rootCmd.AddCommand(trackCmd)
	trackCmd.AddCommand(trackInitCmd, trackAutoCmd, trackShowCmd, trackSeriesCmd,
		trackLockCmd, trackUnlockCmd, trackUpdateCmd, trackActualCmd, trackReviseCmd,
		trackRefreshCmd, trackCleanupCmd, trackSummaryCmd, trackBackupCmd)

	// Flags
	trackInitCmd.Flags().Float64Var(&initPrice, "price", 0, "현재가")
	trackInitCmd.Flags().Float64Var(&initPred5D, "pred-5d", 0, "5거래일 예측 (%)")
	trackInitCmd.Flags().Float64Var(&initPred1Mo, "pred-1mo", 0, "30거래일 예측 (%)")
	trackInitCmd.Flags().Float64Var(&initConfidence, "confidence", 0, "신뢰도")
	trackInitCmd.Flags().Float64Var(&initScore, "score", 0, "점수")

	trackAutoCmd.Flags().IntVar(&autoTopN, "top", 0, "추적할 상위 종목 수 (기본: 정책값)")
	trackLockCmd.Flags().BoolVar(&lockPersist, "persistent", false, "영구 잠금")

	trackReviseCmd.Flags().Float64Var(&revisePct, "pct", 0, "새 예측 퍼센트")
	trackReviseCmd.Flags().IntVar(&reviseDay, "day", -1, "수정 기준 거래일 (기본: 추적 경과일)")
	_ = trackReviseCmd.MarkFlagRequired("pct")

	trackBackupCmd.Flags().StringVar(&backupDir, "dir", "", "백업 디렉터리 (기본: BACKUP_DIR)")
}

func runTrackInit(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	symbol := args[0]
	snap, err := a.snapshots.Latest(symbol)
	if err != nil {
		if !errors.Is(err, contracts.ErrMissingRecord) {
			a.log.WithError(err).Warn("Snapshot unavailable, using fallback")
		}
		snap = a.policy.FallbackSnapshot(symbol)
	}

	flags := cmd.Flags()
	if flags.Changed("price") {
		snap.CurrentPrice = initPrice
	}
	if flags.Changed("pred-5d") {
		snap.Pred5D = initPred5D
	}
	if flags.Changed("pred-1mo") {
		snap.Pred1Mo = initPred1Mo
	}
	if flags.Changed("confidence") {
		snap.Confidence = initConfidence
	}
	if flags.Changed("score") {
		snap.Score = initScore
	}

	if err := a.tracker.Initialize(snap); err != nil {
		return fmt.Errorf("initialize %s: %w", symbol, err)
	}

	rec, _ := a.tracker.Get(symbol)
	PrintHeader("Tracking initialized",
		"Symbol", symbol,
		"Price", fmt.Sprintf("%.2f", rec.CurrentPrice),
		"5D", fmt.Sprintf("%+.2f%% → %.2f", rec.Pred5D, rec.Track5D.Predicted[len(rec.Track5D.Predicted)-1]),
		"30D", fmt.Sprintf("%+.2f%% → %.2f", rec.Pred1Mo, rec.Track30D.Predicted[len(rec.Track30D.Predicted)-1]),
	)
	PrintFooter()
	return nil
}

func runTrackAuto(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	n := autoTopN
	if n <= 0 {
		n = a.policy.Tracking.AutoTrackTopN
	}

	added, err := a.tracker.EnsureTracked(n)
	if err != nil {
		return err
	}
	fmt.Printf("✅ %d new symbols tracked %v\n", len(added), added)
	return nil
}

func runTrackShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	rec, ok := a.tracker.Get(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", contracts.ErrMissingRecord, args[0])
	}
	return PrintJSON(rec)
}

func runTrackSeries(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	h, err := contracts.ParseHorizon(args[1])
	if err != nil {
		return err
	}

	series, err := a.tracker.Series(args[0], h)
	if err != nil {
		return err
	}

	lock := "unlocked"
	if series.Locked {
		lock = "temporary since " + series.LockStartDate
		if series.Persistent {
			lock = "persistent since " + series.LockStartDate
		}
	}
	PrintHeader(fmt.Sprintf("%s %s", series.Symbol, series.Horizon), "Lock", lock)
	fmt.Printf("  %-8s %10s %10s %10s\n", "Date", "Predicted", "Actual", "Revised")
	for i, label := range series.Labels {
		fmt.Printf("  %-8s %10.2f %10s %10s\n", label, series.Predicted[i],
			formatNullable(series.Actual[i]), formatNullable(series.Updated[i]))
	}
	PrintFooter()
	return nil
}

func runTrackLock(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	h, err := contracts.ParseHorizon(args[1])
	if err != nil {
		return err
	}
	return PrintAck(a.tracker.Lock(args[0], h, lockPersist))
}

func runTrackUnlock(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	h, err := contracts.ParseHorizon(args[1])
	if err != nil {
		return err
	}
	return PrintAck(a.tracker.Unlock(args[0], h))
}

func runTrackUpdate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if !a.calendar.MarketClosed() {
		fmt.Printf("⏳ Market still open, next close at %s\n",
			a.calendar.NextMarketClose().Format("2006-01-02 15:04 MST"))
		return nil
	}

	res, err := a.tracker.RunDaily(context.Background(), a.fetcher())
	if err != nil {
		return err
	}
	printBatch(res)
	return nil
}

func printBatch(res *tracking.BatchResult) {
	PrintHeader("Actual price update",
		"Session", res.Session.Format(contracts.DateLayout),
		"Updated", strconv.Itoa(res.Updated),
		"Skipped", strconv.Itoa(res.Skipped),
		"Failed", strconv.Itoa(res.Failed),
	)
	for symbol, msg := range res.Errors {
		fmt.Printf("  ⚠️  %s: %s\n", symbol, msg)
	}
	PrintFooter()
}

func runTrackActual(cmd *cobra.Command, args []string) error {
	day, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%w: day %q", contracts.ErrInvalidInput, args[1])
	}
	price, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("%w: price %q", contracts.ErrInvalidInput, args[2])
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.tracker.Update(args[0], day, price); err != nil {
		return err
	}
	fmt.Printf("✅ %s day %d actual = %.2f\n", args[0], day, price)
	return nil
}

func runTrackRevise(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	symbol := args[0]
	h, err := contracts.ParseHorizon(args[1])
	if err != nil {
		return err
	}

	rec, ok := a.tracker.Get(symbol)
	if !ok {
		return fmt.Errorf("%w: %s", contracts.ErrMissingRecord, symbol)
	}

	series, err := tracking.GenerateSeries(rec.CurrentPrice, revisePct, h.Length())
	if err != nil {
		return err
	}

	day := reviseDay
	if day < 0 {
		day = a.calendar.TradingDaysSince(rec.StartDate)
	}

	applied, err := a.tracker.Revise(symbol, h, series, day)
	if err != nil {
		return err
	}
	if !applied {
		fmt.Printf("ℹ️  %s %s: locked or change below threshold, not revised\n", symbol, h)
		return nil
	}
	fmt.Printf("✅ %s %s revised from day %d\n", symbol, h, day)
	return nil
}

func runTrackRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.tracker.RefreshLocks()
	if err != nil {
		return err
	}
	fmt.Printf("✅ %d expired locks cleared\n", n)
	return nil
}

func runTrackCleanup(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	removed, err := a.tracker.Cleanup()
	if err != nil {
		return err
	}
	fmt.Printf("✅ %d records removed %v\n", len(removed), removed)
	return nil
}

func runTrackSummary(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	s := a.tracker.Summary()
	PrintHeader("Tracking summary",
		"Total", strconv.Itoa(s.TotalStocks),
		"Locked 5D", strconv.Itoa(s.Locked5D),
		"Locked 30D", strconv.Itoa(s.Locked30D),
		"Active", strconv.Itoa(s.ActiveTracking),
	)
	PrintFooter()
	return nil
}

func runTrackBackup(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	dir := backupDir
	if dir == "" {
		dir = a.cfg.Storage.BackupDir
	}

	path, err := a.tracker.BackupLocked(dir)
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Println("ℹ️  No locked predictions to back up")
		return nil
	}
	fmt.Printf("✅ Backup written to %s\n", path)
	return nil
}
