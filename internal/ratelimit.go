package internal

import "time"

// RateLimits 每種操作的最短間隔
type RateLimits map[ActionKind]time.Duration

// DefaultRateLimits 預設防刷間隔
//
// join / disconnect 不受限制。
func DefaultRateLimits() RateLimits {
	return RateLimits{
		ActionAttack:           400 * time.Millisecond,
		ActionPlaceShip:        400 * time.Millisecond,
		ActionConfirmPlacement: 700 * time.Millisecond,
		ActionRematch:          1200 * time.Millisecond,
		ActionAutoPlace:        400 * time.Millisecond,
		ActionResetPlacement:   700 * time.Millisecond,
		ActionSetReady:         800 * time.Millisecond,
	}
}

// RateLimiter 以 (玩家, 操作) 為鍵的最短間隔限流
//
// 與固定視窗 / 令牌桶不同，這裡只需要「同一玩家同一操作的兩次請求間隔」，
// 所以每個鍵只記錄上一次通過的時間：
//
//	now - last < interval → 拒絕（不更新時間戳）
//	否則                   → 通過並記錄 now
//
// RateLimiter 屬於 Room，由房間鎖保護，本身不加鎖。
type RateLimiter struct {
	intervals RateLimits
	last      map[string]map[ActionKind]time.Time
	now       func() time.Time
}

// NewRateLimiter 創建限流器，now 為 nil 時使用 time.Now
func NewRateLimiter(intervals RateLimits, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		intervals: intervals,
		last:      make(map[string]map[ActionKind]time.Time),
		now:       now,
	}
}

// Allow 檢查並記錄一次操作
func (l *RateLimiter) Allow(playerID string, kind ActionKind) bool {
	interval, limited := l.intervals[kind]
	if !limited || interval <= 0 {
		return true
	}

	now := l.now()
	byKind := l.last[playerID]
	if byKind == nil {
		byKind = make(map[ActionKind]time.Time)
		l.last[playerID] = byKind
	}
	if last, ok := byKind[kind]; ok && now.Sub(last) < interval {
		return false
	}
	byKind[kind] = now
	return true
}

// Forget 清除玩家的所有記錄（離開房間時）
func (l *RateLimiter) Forget(playerID string) {
	delete(l.last, playerID)
}
