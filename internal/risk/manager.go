// Package risk sizes stakes and enforces exposure limits.
package risk

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/suncheck/weatheredge/internal/models"
)

var (
	// ErrDailyLimitExceeded signals a second position on the same
	// (location, date) pair.
	ErrDailyLimitExceeded = errors.New("daily limit exceeded")
	// ErrBankrollLimitExceeded signals that approving the stake would push
	// committed capital past the bankroll cap.
	ErrBankrollLimitExceeded = errors.New("bankroll limit exceeded")
)

// State tracks exposure across cycles: which (location, date) pairs already
// carry a position, and how much capital is committed in total. It survives
// scan cycles and resets once a day.
type State struct {
	mu        sync.Mutex
	taken     map[string]struct{}
	committed float64
}

// NewState creates empty exposure state.
func NewState() *State {
	return &State{taken: make(map[string]struct{})}
}

// Approve atomically checks both limits and, only if both pass, records the
// stake. The daily check runs first: a pair that is already taken is
// rejected before bankroll is considered, so the rejection reason is stable
// regardless of how full the book is.
func (s *State) Approve(key string, stake, limit float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.taken[key]; ok {
		return ErrDailyLimitExceeded
	}
	if s.committed+stake > limit {
		return ErrBankrollLimitExceeded
	}
	s.taken[key] = struct{}{}
	s.committed += stake
	return nil
}

// Committed returns the capital currently committed.
func (s *State) Committed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// Reset clears all exposure. Called by the daily scheduler.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taken = make(map[string]struct{})
	s.committed = 0
}

// Config holds the stake sizing parameters.
type Config struct {
	Bankroll          float64
	StakeFraction     float64
	EdgeScalingFactor float64
	TotalRiskFraction float64
}

// Manager turns classified candidates into sized opportunities or recorded
// rejections.
type Manager struct {
	cfg   Config
	state *State
}

// NewManager creates a risk manager over shared exposure state.
func NewManager(cfg Config, state *State) *Manager {
	return &Manager{cfg: cfg, state: state}
}

// Stake returns the fixed stake applied to every approved opportunity.
func (m *Manager) Stake() float64 {
	return m.cfg.Bankroll * m.cfg.StakeFraction * m.cfg.EdgeScalingFactor
}

// Limit returns the cap on total committed capital.
func (m *Manager) Limit() float64 {
	return m.cfg.Bankroll * m.cfg.TotalRiskFraction
}

// Evaluate decides one candidate. Exactly one of the returns is non-nil:
// an approved, sized opportunity, or a rejection with its reason.
func (m *Manager) Evaluate(c models.EdgeCandidate) (*models.Opportunity, *models.Rejection) {
	now := time.Now()
	if c.Class != models.ClassOpportunity {
		return nil, &models.Rejection{Candidate: c, Reason: models.RejectNoEdge, At: now}
	}

	key := models.DayKey(c.Contract.Location, c.Contract.Date)
	if err := m.state.Approve(key, m.Stake(), m.Limit()); err != nil {
		reason := models.RejectBankrollLimit
		if errors.Is(err, ErrDailyLimitExceeded) {
			reason = models.RejectDailyLimit
		}
		return nil, &models.Rejection{Candidate: c, Reason: reason, At: now}
	}

	direction := models.BuyYes
	if c.Edge < 0 {
		direction = models.BuyNo
	}

	return &models.Opportunity{
		ID:        uuid.NewString(),
		Candidate: c,
		Direction: direction,
		Stake:     m.Stake(),
		CreatedAt: now,
	}, nil
}
