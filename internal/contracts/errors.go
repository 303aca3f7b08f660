package contracts

import "errors"

// 추적 코어의 오류 분류. 어떤 경로도 프로세스를 중단시키지 않음
var (
	// ErrInvalidInput 비양수 가격, 잘못된 호라이즌/인덱스 등
	ErrInvalidInput = errors.New("invalid input")
	// ErrMissingRecord 추적되지 않는 종목
	ErrMissingRecord = errors.New("tracking record not found")
	// ErrCorruptState 저장 파일 파싱 실패
	ErrCorruptState = errors.New("corrupt state")
	// ErrTransientIO 쓰기 경합/디스크 오류 (재시도 대상)
	ErrTransientIO = errors.New("transient io failure")
	// ErrFetchFailed 시세 조회 실패
	ErrFetchFailed = errors.New("market data fetch failed")
	// ErrPriceUnavailable 제공자가 가격 없음을 보고
	ErrPriceUnavailable = errors.New("price unavailable")
)
