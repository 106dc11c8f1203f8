// Package pbxsim simulates the PBX statistics API the console polls. It is
// used for local development and for end-to-end tests of the PBX client.
package pbxsim

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/types"
	"github.com/rs/zerolog"
)

// MaxWait is how long a caller waits before leaving the queue on timeout
const MaxWait = 10 * time.Minute

// abandonAfter is the wait after which callers may hang up
const abandonAfter = time.Minute

// maxHistory bounds the simulated call history
const maxHistory = 5000

var (
	queueNames = []string{"Support", "Sales", "Billing", "Technical", "Retention", "Front Desk"}
	groupNames = []string{"helpdesk", "sales", "backoffice"}
	firstNames = []string{"Mario", "Anna", "Luigi", "Giulia", "Paolo", "Sara", "Marco", "Elena", "Luca", "Chiara"}
	lastNames  = []string{"Rossi", "Bianchi", "Verdi", "Russo", "Ferrari", "Esposito", "Romano", "Colombo"}
	companies  = []string{"ACME S.p.A.", "Globex", "Initech", "Umbrella", "Stark Industries", ""}
)

// Config controls the simulated call centre
type Config struct {
	Queues      int
	Agents      int
	CallsPerMin float64 // new callers per minute across all queues
	AbandonRate float64 // per-step probability that a caller waiting over a minute hangs up
	PauseRate   float64 // per-step probability that an idle agent pauses or resumes
	Seed        int64
}

// DefaultConfig returns a small call centre with moderate traffic
func DefaultConfig() Config {
	return Config{
		Queues:      4,
		Agents:      12,
		CallsPerMin: 6,
		AbandonRate: 0.02,
		PauseRate:   0.01,
		Seed:        time.Now().UnixNano(),
	}
}

type agentState struct {
	busyUntil time.Time
	talks     int
	talkTotal time.Duration
}

// Simulator holds the simulated queues, agents and call history
type Simulator struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.RWMutex
	rng     *rand.Rand
	running bool
	queues  []types.QueueRecord
	agents  []types.AgentStat
	states  []agentState
	calls   []types.CallRecord // newest first
	callers int
}

// New creates a simulator with cfg.Queues queues and cfg.Agents agents. Agent
// i serves queues i and i+1 (modulo the queue count); every agent starts
// available.
func New(cfg Config, logger zerolog.Logger) *Simulator {
	s := &Simulator{
		cfg:     cfg,
		logger:  logger.With().Str("component", "pbxsim").Logger(),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		running: true,
	}

	for i := 0; i < cfg.Queues; i++ {
		s.queues = append(s.queues, types.QueueRecord{
			Queue:    strconv.Itoa(100 + i),
			Name:     queueNames[i%len(queueNames)],
			Group:    groupNames[i%len(groupNames)],
			Failures: map[types.FailureReason]int{},
			Waiting:  []types.WaitingCaller{},
		})
	}

	for i := 0; i < cfg.Agents; i++ {
		a := types.AgentStat{
			Agent:  strconv.Itoa(1000 + i),
			Name:   firstNames[i%len(firstNames)] + " " + lastNames[(i/len(firstNames))%len(lastNames)],
			Status: types.AgentAvailable,
			Queues: map[string]types.AgentCounters{},
		}
		if cfg.Queues > 0 {
			primary := s.queues[i%cfg.Queues]
			a.Group = primary.Group
			a.Queues[primary.Queue] = types.AgentCounters{}
			a.Queues[s.queues[(i+1)%cfg.Queues].Queue] = types.AgentCounters{}
		}
		s.agents = append(s.agents, a)
	}
	s.states = make([]agentState, cfg.Agents)

	return s
}

// SetRunning pauses or resumes the simulation clock
func (s *Simulator) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

// Running reports whether Run advances the simulation
func (s *Simulator) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Run advances the simulation every interval until ctx is cancelled
func (s *Simulator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("simulation started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("simulation stopped")
			return
		case now := <-ticker.C:
			if s.Running() {
				s.Step(now, interval)
			}
		}
	}
}

// Step advances the simulation by elapsed, ending at now
func (s *Simulator) Step(now time.Time, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.arrivals(elapsed)
	s.updateAgents(now, elapsed)

	for qi := range s.queues {
		q := &s.queues[qi]
		remaining := q.Waiting[:0]
		for _, c := range q.Waiting {
			c.Wait += elapsed.Seconds()
			wait := time.Duration(c.Wait * float64(time.Second))

			switch {
			case s.answer(q, c, now):
			case wait >= MaxWait:
				s.fail(q, c, types.FailureTimeout, types.OutcomeTimeout, now)
			case wait > abandonAfter && s.rng.Float64() < s.cfg.AbandonRate:
				s.fail(q, c, types.FailureAbandon, types.OutcomeAbandoned, now)
			default:
				remaining = append(remaining, c)
			}
		}
		q.Waiting = remaining
		for i := range q.Waiting {
			q.Waiting[i].Position = i + 1
		}
	}
}

// arrivals enqueues the callers expected within elapsed
func (s *Simulator) arrivals(elapsed time.Duration) {
	if len(s.queues) == 0 || s.cfg.CallsPerMin <= 0 {
		return
	}
	expected := s.cfg.CallsPerMin * elapsed.Minutes()
	n := int(expected)
	if s.rng.Float64() < expected-float64(n) {
		n++
	}
	for i := 0; i < n; i++ {
		s.enqueue(&s.queues[s.rng.Intn(len(s.queues))])
	}
}

func (s *Simulator) enqueue(q *types.QueueRecord) {
	s.callers++
	q.Tot++
	q.Waiting = append(q.Waiting, types.WaitingCaller{
		Position:   len(q.Waiting) + 1,
		CallerID:   fmt.Sprintf("+39 02 %07d", 1000000+s.callers),
		CallerName: firstNames[s.rng.Intn(len(firstNames))] + " " + lastNames[s.rng.Intn(len(lastNames))],
	})
}

// updateAgents frees agents whose call ended and lets idle agents pause or
// resume
func (s *Simulator) updateAgents(now time.Time, elapsed time.Duration) {
	for i := range s.agents {
		a := &s.agents[i]
		st := &s.states[i]

		if a.Status != types.AgentLoggedOut {
			a.LoginTime += elapsed.Seconds()
		}
		switch a.Status {
		case types.AgentBusy:
			if !now.Before(st.busyUntil) {
				a.Status = types.AgentAvailable
			}
		case types.AgentPaused:
			a.PauseTime += elapsed.Seconds()
			if s.rng.Float64() < s.cfg.PauseRate {
				a.Status = types.AgentAvailable
			}
		case types.AgentAvailable:
			if s.rng.Float64() < s.cfg.PauseRate {
				a.Status = types.AgentPaused
			}
		}
	}
}

// answer connects the caller to an available member agent
func (s *Simulator) answer(q *types.QueueRecord, c types.WaitingCaller, now time.Time) bool {
	for i := range s.agents {
		a := &s.agents[i]
		if a.Status != types.AgentAvailable {
			continue
		}
		counters, member := a.Queues[q.Queue]
		if !member {
			continue
		}

		talk := time.Duration(30+s.rng.Intn(270)) * time.Second
		st := &s.states[i]
		st.busyUntil = now.Add(talk)
		st.talks++
		st.talkTotal += talk

		a.Status = types.AgentBusy
		a.CallsTaken++
		a.AvgRecallTime = st.talkTotal.Seconds() / float64(st.talks)
		counters.CallsTaken++
		a.Queues[q.Queue] = counters

		q.TotProcessed++
		s.record(q, c, types.OutcomeAnswered, now)
		return true
	}
	return false
}

func (s *Simulator) fail(q *types.QueueRecord, c types.WaitingCaller, reason types.FailureReason, outcome types.Outcome, now time.Time) {
	q.TotFailed++
	q.Failures[reason]++
	s.record(q, c, outcome, now)
}

func (s *Simulator) record(q *types.QueueRecord, c types.WaitingCaller, outcome types.Outcome, now time.Time) {
	rec := types.CallRecord{
		Time:     now,
		Queue:    q.Queue,
		CallerID: c.CallerID,
		Name:     c.CallerName,
		Company:  companies[s.rng.Intn(len(companies))],
		Outcome:  outcome,
	}
	s.calls = append([]types.CallRecord{rec}, s.calls...)
	if len(s.calls) > maxHistory {
		s.calls = s.calls[:maxHistory]
	}
}

// Inject enqueues count callers into one queue
func (s *Simulator) Inject(queue string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.queues {
		if s.queues[i].Queue == queue {
			for n := 0; n < count; n++ {
				s.enqueue(&s.queues[i])
			}
			s.logger.Debug().Str("queue", queue).Int("count", count).Msg("callers injected")
			return nil
		}
	}
	return fmt.Errorf("unknown queue %q", queue)
}

// Queues returns a copy of every queue keyed by queue id
func (s *Simulator) Queues() map[string]types.QueueRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]types.QueueRecord, len(s.queues))
	for _, q := range s.queues {
		c := q
		c.Waiting = append([]types.WaitingCaller{}, q.Waiting...)
		c.Failures = make(map[types.FailureReason]int, len(q.Failures))
		for k, v := range q.Failures {
			c.Failures[k] = v
		}
		// derived by the console
		c.Status = ""
		c.Alerts = nil
		out[q.Queue] = c
	}
	return out
}

// Agents returns a copy of every agent ordered by agent id
func (s *Simulator) Agents() []types.AgentStat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.AgentStat, 0, len(s.agents))
	for _, a := range s.agents {
		c := a
		c.Queues = make(map[string]types.AgentCounters, len(a.Queues))
		for k, v := range a.Queues {
			c.Queues[k] = v
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out
}

// Calls returns one page of the call history, newest first
func (s *Simulator) Calls(page, size int) types.CallPage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page = max(page, 1)
	if size < 1 {
		size = types.CallPageSize
	}

	start := min((page-1)*size, len(s.calls))
	end := min(start+size, len(s.calls))
	return types.CallPage{
		Page:    page,
		Size:    size,
		Total:   len(s.calls),
		Records: append([]types.CallRecord{}, s.calls[start:end]...),
	}
}

// Status summarises the simulation
type Status struct {
	Running bool `json:"running"`
	Queues  int  `json:"queues"`
	Agents  int  `json:"agents"`
	Waiting int  `json:"waiting"`
	Calls   int  `json:"calls"`
}

// Status returns the current simulation summary
func (s *Simulator) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{Running: s.running, Queues: len(s.queues), Agents: len(s.agents), Calls: len(s.calls)}
	for _, q := range s.queues {
		st.Waiting += len(q.Waiting)
	}
	return st
}
