// Package poller реализует контракт опроса табло: один запрос в полёте,
// экспоненциальная выдержка с джиттером при сбоях и приостановка опроса,
// когда табло скрыто или сеть недоступна.
package poller

import (
	"math/rand"
	"time"
)

// State описывает состояние цикла опроса.
type State int

const (
	// StateIdle — опрос создан или возобновлён, тик ещё не обработан.
	StateIdle State = iota
	// StatePolling — запрос в полёте.
	StatePolling
	// StateBackoff — ожидание следующего тика.
	StateBackoff
	// StateSuspended — опрос приостановлен: табло скрыто или сеть недоступна.
	StateSuspended
)

// Параметры выдержки по умолчанию.
const (
	DefaultBaseInterval = 5 * time.Second
	DefaultMaxInterval  = 60 * time.Second
)

// Config задаёт параметры машины опроса. Rand нужен для джиттера и
// подменяется в тестах детерминированным источником.
type Config struct {
	BaseInterval time.Duration
	MaxInterval  time.Duration
	Rand         func() float64
}

// Machine — машина состояний опроса. События (тик, успех, сбой, отмена,
// приостановка, возобновление) подаются явными вызовами, решения о задержках
// возвращаются вызывающему: таймеры остаются снаружи, поэтому машина
// проверяется без реального времени.
type Machine struct {
	cfg      Config
	state    State
	interval time.Duration
	inFlight bool
}

// NewMachine создаёт машину опроса с базовым интервалом выдержки.
func NewMachine(cfg Config) *Machine {
	if cfg.BaseInterval <= 0 {
		cfg.BaseInterval = DefaultBaseInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}

	return &Machine{
		cfg:      cfg,
		state:    StateIdle,
		interval: cfg.BaseInterval,
	}
}

// State возвращает текущее состояние машины.
func (m *Machine) State() State {
	return m.state
}

// Interval возвращает текущий интервал выдержки без джиттера.
func (m *Machine) Interval() time.Duration {
	return m.interval
}

// jittered равномерно размывает задержку в диапазоне [0.8, 1.2] от номинала,
// чтобы табло не опрашивали сервер синхронными волнами.
func (m *Machine) jittered(d time.Duration) time.Duration {
	factor := 0.8 + 0.4*m.cfg.Rand()
	return time.Duration(float64(d) * factor)
}

// Tick обрабатывает срабатывание таймера. Если пора начинать запрос,
// start истинен. Если предыдущий запрос ещё в полёте, новый не запускается:
// тик переносится на retry от текущего интервала.
func (m *Machine) Tick() (start bool, retry time.Duration) {
	if m.state == StateSuspended {
		return false, 0
	}
	if m.inFlight {
		return false, m.interval
	}

	m.inFlight = true
	m.state = StatePolling
	return true, 0
}

// Success фиксирует удачный опрос: интервал сбрасывается к базовому.
// Возвращает задержку до следующего тика и признак, что тик нужен.
func (m *Machine) Success() (time.Duration, bool) {
	m.inFlight = false
	if m.state == StateSuspended {
		return 0, false
	}

	m.interval = m.cfg.BaseInterval
	m.state = StateBackoff
	return m.jittered(m.interval), true
}

// Failure фиксирует сбой опроса: интервал удваивается до потолка,
// следующий тик назначается уже по увеличенной выдержке.
func (m *Machine) Failure() (time.Duration, bool) {
	m.inFlight = false
	if m.state == StateSuspended {
		return 0, false
	}

	m.interval *= 2
	if m.interval > m.cfg.MaxInterval {
		m.interval = m.cfg.MaxInterval
	}
	m.state = StateBackoff
	return m.jittered(m.interval), true
}

// Cancelled фиксирует отмену запроса. Отмена не считается сбоем
// и не увеличивает выдержку: следующий тик идёт по текущему интервалу.
func (m *Machine) Cancelled() (time.Duration, bool) {
	m.inFlight = false
	if m.state == StateSuspended {
		return 0, false
	}

	m.state = StateBackoff
	return m.interval, true
}

// Suspend приостанавливает опрос. Запрос в полёте должен быть отменён
// вызывающим; его завершение не приведёт к перепланированию.
func (m *Machine) Suspend() {
	m.state = StateSuspended
}

// Resume возобновляет приостановленный опрос. Если возобновление произошло,
// следующий тик должен сработать немедленно.
func (m *Machine) Resume() bool {
	if m.state != StateSuspended {
		return false
	}
	m.state = StateIdle
	return true
}
