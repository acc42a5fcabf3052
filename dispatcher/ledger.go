package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/imageflow/registry"
	"github.com/BaSui01/imageflow/types"
)

// =============================================================================
// 🚦 准入账本
// =============================================================================

// Ledger 记录每个 Provider Group 的在途请求数与最近一次派发时间.
// 检查与提交在同一把锁下完成；等待者在释放通知或冷却计时到期时重新检查.
type Ledger struct {
	mu     sync.Mutex
	groups map[registry.Group]*groupState
	now    func() time.Time
}

type groupState struct {
	cfg       registry.GroupConfig
	active    int
	lastStart time.Time
	// changed 在每次 Release 时关闭并替换
	changed chan struct{}
}

// GroupStatus 是某个 Group 的准入状态快照.
type GroupStatus struct {
	Group         registry.Group `json:"group"`
	Active        int            `json:"active"`
	MaxConcurrent int            `json:"max_concurrent"`
	CooldownMs    int64          `json:"cooldown_ms"`
	LastRequestAt *time.Time     `json:"last_request_at,omitempty"`
}

// NewLedger 按给定的 Group 配置创建账本，计数从 0 开始.
func NewLedger(configs ...registry.GroupConfig) *Ledger {
	l := &Ledger{
		groups: make(map[registry.Group]*groupState, len(configs)),
		now:    time.Now,
	}
	for _, cfg := range configs {
		l.groups[cfg.Group] = &groupState{
			cfg:     cfg,
			changed: make(chan struct{}),
		}
	}
	return l
}

// SetClock 替换冷却判断与派发时间记录所用的时钟；now 为 nil 时不变.
func (l *Ledger) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// NewLedgerFromRegistry 用注册表中的全部 Group 初始化账本.
func NewLedgerFromRegistry(reg *registry.Registry) (*Ledger, error) {
	groups := reg.AllGroups()
	configs := make([]registry.GroupConfig, 0, len(groups))
	for _, g := range groups {
		cfg, err := reg.ConfigByGroup(g)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return NewLedger(configs...), nil
}

// Acquire 阻塞直到 group 的在途数低于上限且距上次派发已过冷却时间，
// 然后原子地占用一个名额并记录派发时间. ctx 取消时返回 ctx.Err().
func (l *Ledger) Acquire(ctx context.Context, group registry.Group) error {
	for {
		l.mu.Lock()
		st, ok := l.groups[group]
		if !ok {
			l.mu.Unlock()
			return types.Errorf(types.ErrConfiguration, "no admission config for group %q", group)
		}

		now := l.now()
		var wait time.Duration
		if st.active < st.cfg.MaxConcurrent {
			if !st.lastStart.IsZero() {
				if elapsed := now.Sub(st.lastStart); elapsed < st.cfg.Cooldown {
					wait = st.cfg.Cooldown - elapsed
				}
			}
			if wait == 0 {
				st.active++
				st.lastStart = now
				l.mu.Unlock()
				return nil
			}
		}
		changed := st.changed
		l.mu.Unlock()

		if err := waitFor(ctx, changed, wait); err != nil {
			return err
		}
	}
}

// waitFor 等待通知、计时到期（wait > 0 时）或 ctx 取消.
func waitFor(ctx context.Context, changed <-chan struct{}, wait time.Duration) error {
	var timerC <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-changed:
	case <-timerC:
	}
	return nil
}

// Release 归还 group 的一个名额并唤醒等待者.
func (l *Ledger) Release(group registry.Group) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.groups[group]
	if !ok {
		return
	}
	if st.active > 0 {
		st.active--
	}
	close(st.changed)
	st.changed = make(chan struct{})
}

// Active 返回 group 当前在途请求数，未知 group 返回 0.
func (l *Ledger) Active(group registry.Group) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.groups[group]; ok {
		return st.active
	}
	return 0
}

// LastStart 返回 group 最近一次派发的开始时间；尚未派发时 ok 为 false.
func (l *Ledger) LastStart(group registry.Group) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.groups[group]
	if !ok || st.lastStart.IsZero() {
		return time.Time{}, false
	}
	return st.lastStart, true
}

// Snapshot 返回 groups 的状态快照，顺序与参数一致.
func (l *Ledger) Snapshot(groups ...registry.Group) []GroupStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]GroupStatus, 0, len(groups))
	for _, g := range groups {
		st, ok := l.groups[g]
		if !ok {
			continue
		}
		s := GroupStatus{
			Group:         g,
			Active:        st.active,
			MaxConcurrent: st.cfg.MaxConcurrent,
			CooldownMs:    st.cfg.Cooldown.Milliseconds(),
		}
		if !st.lastStart.IsZero() {
			t := st.lastStart
			s.LastRequestAt = &t
		}
		out = append(out, s)
	}
	return out
}
