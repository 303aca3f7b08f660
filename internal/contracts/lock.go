package contracts

import "time"

// LockKind 호라이즌별 잠금 상태 태그
type LockKind string

const (
	LockUnlocked   LockKind = "unlocked"
	LockTemporary  LockKind = "temporary"
	LockPersistent LockKind = "persistent"
)

// LockState 호라이즌별 잠금 상태
// Unlocked | Temporary{anchor} | Persistent{anchor}
// Anchor is a civil date (UTC midnight); LockedAt is the wall-clock lock time.
type LockState struct {
	Kind     LockKind  `json:"kind"`
	Anchor   time.Time `json:"anchor,omitempty"`
	LockedAt time.Time `json:"locked_at,omitempty"`
}

// Unlocked returns the unlocked state
func Unlocked() LockState {
	return LockState{Kind: LockUnlocked}
}

// TemporaryLock returns a lock that expires after the horizon length in trading days
func TemporaryLock(anchor, at time.Time) LockState {
	return LockState{Kind: LockTemporary, Anchor: anchor, LockedAt: at}
}

// PersistentLock returns a lock cleared only by explicit unlock
func PersistentLock(anchor, at time.Time) LockState {
	return LockState{Kind: LockPersistent, Anchor: anchor, LockedAt: at}
}

// IsLocked reports whether the state is either lock variant
func (s LockState) IsLocked() bool {
	switch s.Kind {
	case LockTemporary, LockPersistent:
		return true
	default:
		return false
	}
}

// IsPersistent reports whether the state is a persistent lock
func (s LockState) IsPersistent() bool {
	return s.Kind == LockPersistent
}

// LockAck 잠금/해제 응답
type LockAck struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
