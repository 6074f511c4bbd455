package wizard

import (
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"topup-service/internal/fee"
	"topup-service/internal/poller"
)

var ErrSessionNotFound = errors.New("wizard session not found")

// Session is one open top-up flow. It exclusively owns its polling
// supervisor handle; the handle is never shared with another session.
// Sessions live in memory only and die with the flow.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time

	mu         sync.Mutex
	state      State
	attemptRef string
	txnNumber  string
	paymentURL string
	breakdown  fee.Breakdown
	balance    int64
	supervisor *poller.Supervisor
}

// State returns a copy of the current wizard state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Apply runs the pure transition under the session lock.
func (s *Session) Apply(ev Event) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := Transition(s.state, ev)
	if err != nil {
		return s.state, err
	}
	s.state = next
	return next, nil
}

// BeginSettlement records the submitted attempt and attaches the one
// live supervisor. Called only on the submit path, after the state
// machine has already left StepConfirm, so a second call for the same
// run cannot happen.
func (s *Session) BeginSettlement(attemptRef, txnNumber, paymentURL string, bd fee.Breakdown, sup *poller.Supervisor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attemptRef = attemptRef
	s.txnNumber = txnNumber
	s.paymentURL = paymentURL
	s.breakdown = bd
	s.supervisor = sup
}

// EndSettlement drops the supervisor handle once its outcome has been
// consumed.
func (s *Session) EndSettlement() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supervisor = nil
}

// CancelSettlement aborts the live polling run, if any. Safe when no
// run is active.
func (s *Session) CancelSettlement() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.supervisor == nil {
		return false
	}
	s.supervisor.Cancel()
	return true
}

// SetBalance records the refreshed wallet balance after settlement.
func (s *Session) SetBalance(balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = balance
}

func (s *Session) Balance() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// Attempt reports the gateway handles of the current settlement run.
func (s *Session) Attempt() (attemptRef, txnNumber, paymentURL string, bd fee.Breakdown) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptRef, s.txnNumber, s.paymentURL, s.breakdown
}

// Store keeps live sessions in memory, keyed by ulid.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

func (st *Store) Create(userID int64) *Session {
	s := &Session{
		ID:        ulid.Make().String(),
		UserID:    userID,
		CreatedAt: time.Now(),
		state:     New(),
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close cancels any live polling run and destroys the session.
func (st *Store) Close(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		s.CancelSettlement()
	}
}
