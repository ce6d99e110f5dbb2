package auth

import (
	"sync"
	"time"
)

// TimeoutConfig sizes the two countdowns. A zero duration disables the
// corresponding countdown entirely.
type TimeoutConfig struct {
	// SessionTimeout is the absolute expiry, never reset.
	SessionTimeout time.Duration
	// IdleTimeout resets on every proven activity.
	IdleTimeout time.Duration
	// AdvanceNotice fires the idle warning this long before idle expiry. It
	// is clamped to fire strictly before; when unset it defaults to a tenth
	// of the idle timeout.
	AdvanceNotice time.Duration

	// Valid reports whether the session is currently valid; ResetTimer
	// refuses to extend an invalid session. A nil probe counts as valid.
	Valid func() bool
}

// TimeoutCallbacks are advisory notifications onto the application. They
// run on the timer goroutine and must not mutate session state directly;
// destructive cleanup stays in the serialized IsValid/Logout path.
type TimeoutCallbacks struct {
	OnIdleWarning    func()
	OnIdleExpired    func()
	OnSessionExpired func()
}

// TimeoutManager schedules the idle and absolute countdowns for one
// session. Firing a timer only flips a flag and notifies; it never
// destroys anything.
type TimeoutManager struct {
	cfg TimeoutConfig
	cb  TimeoutCallbacks

	mu             sync.Mutex
	idleTimer      *time.Timer
	warnTimer      *time.Timer
	sessionTimer   *time.Timer
	idleDeadline   time.Time
	idleExpired    bool
	sessionExpired bool
	stopped        bool
}

// NewTimeoutManager creates a manager; countdowns begin on Start.
func NewTimeoutManager(cfg TimeoutConfig, cb TimeoutCallbacks) *TimeoutManager {
	if cfg.AdvanceNotice <= 0 || cfg.AdvanceNotice >= cfg.IdleTimeout {
		cfg.AdvanceNotice = cfg.IdleTimeout / 10
	}
	return &TimeoutManager{cfg: cfg, cb: cb}
}

// Start arms the enabled countdowns.
func (m *TimeoutManager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = false
	if m.cfg.SessionTimeout > 0 && m.sessionTimer == nil {
		m.sessionTimer = time.AfterFunc(m.cfg.SessionTimeout, m.fireSession)
	}
	m.armIdleLocked()
}

// armIdleLocked (re)arms the idle countdown and its advance warning.
func (m *TimeoutManager) armIdleLocked() {
	if m.cfg.IdleTimeout <= 0 {
		return
	}
	m.stopIdleLocked()
	m.idleDeadline = time.Now().Add(m.cfg.IdleTimeout)
	m.idleExpired = false
	if m.cfg.AdvanceNotice > 0 {
		m.warnTimer = time.AfterFunc(m.cfg.IdleTimeout-m.cfg.AdvanceNotice, m.fireWarning)
	}
	m.idleTimer = time.AfterFunc(m.cfg.IdleTimeout, m.fireIdle)
}

func (m *TimeoutManager) stopIdleLocked() {
	if m.warnTimer != nil {
		m.warnTimer.Stop()
		m.warnTimer = nil
	}
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
}

// Stop cancels all timers. The expired flags keep their values.
func (m *TimeoutManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	m.stopIdleLocked()
	if m.sessionTimer != nil {
		m.sessionTimer.Stop()
		m.sessionTimer = nil
	}
}

// ResetTimer advances the idle expiry to now plus the idle timeout. It
// never touches the absolute countdown and refuses when the session is no
// longer valid.
func (m *TimeoutManager) ResetTimer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.sessionExpired {
		return ErrSessionInvalid
	}
	if m.cfg.Valid != nil && !m.cfg.Valid() {
		return ErrSessionInvalid
	}
	m.armIdleLocked()
	return nil
}

// IdleExpired reports whether the idle countdown has fired.
func (m *TimeoutManager) IdleExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idleExpired
}

// SessionExpired reports whether the absolute countdown has fired.
func (m *TimeoutManager) SessionExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionExpired
}

// IdleDeadline returns the instant the idle countdown expires.
func (m *TimeoutManager) IdleDeadline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idleDeadline
}

func (m *TimeoutManager) fireWarning() {
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if !stopped && m.cb.OnIdleWarning != nil {
		m.cb.OnIdleWarning()
	}
}

func (m *TimeoutManager) fireIdle() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.idleExpired = true
	m.mu.Unlock()
	if m.cb.OnIdleExpired != nil {
		m.cb.OnIdleExpired()
	}
}

func (m *TimeoutManager) fireSession() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.sessionExpired = true
	m.mu.Unlock()
	if m.cb.OnSessionExpired != nil {
		m.cb.OnSessionExpired()
	}
}
