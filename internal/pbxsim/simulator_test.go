package pbxsim

import (
	"testing"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/types"
	"github.com/rs/zerolog"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// quiet returns a simulator without random arrivals, pauses or hang-ups
func quiet(queues, agents int) *Simulator {
	return New(Config{Queues: queues, Agents: agents, Seed: 1}, zerolog.Nop())
}

func TestNewAssignsQueues(t *testing.T) {
	sim := quiet(3, 4)

	queues := sim.Queues()
	if len(queues) != 3 {
		t.Fatalf("expected 3 queues, got %d", len(queues))
	}
	if queues["100"].Name != "Support" {
		t.Errorf("expected queue 100 to be Support, got %s", queues["100"].Name)
	}

	agents := sim.Agents()
	if len(agents) != 4 {
		t.Fatalf("expected 4 agents, got %d", len(agents))
	}
	// agent 3 serves queues 3%3 and 4%3
	if _, ok := agents[3].Queues["100"]; !ok {
		t.Errorf("expected agent %s to serve queue 100, got %v", agents[3].Agent, agents[3].Queues)
	}
	if _, ok := agents[3].Queues["101"]; !ok {
		t.Errorf("expected agent %s to serve queue 101, got %v", agents[3].Agent, agents[3].Queues)
	}
	for _, a := range agents {
		if a.Status != types.AgentAvailable {
			t.Errorf("expected agent %s to start available, got %s", a.Agent, a.Status)
		}
	}
}

func TestStepAnswersWaitingCallers(t *testing.T) {
	sim := quiet(2, 4)

	if err := sim.Inject("100", 3); err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if got := len(sim.Queues()["100"].Waiting); got != 3 {
		t.Fatalf("expected 3 waiting callers, got %d", got)
	}

	sim.Step(t0.Add(time.Second), time.Second)

	q := sim.Queues()["100"]
	if len(q.Waiting) != 0 {
		t.Errorf("expected no waiting callers, got %d", len(q.Waiting))
	}
	if q.Tot != 3 || q.TotProcessed != 3 {
		t.Errorf("expected tot=3 processed=3, got tot=%d processed=%d", q.Tot, q.TotProcessed)
	}

	busy, taken := 0, 0
	for _, a := range sim.Agents() {
		if a.Status == types.AgentBusy {
			busy++
		}
		taken += a.Queues["100"].CallsTaken
	}
	if busy != 3 || taken != 3 {
		t.Errorf("expected 3 busy agents with 3 calls taken, got busy=%d taken=%d", busy, taken)
	}

	page := sim.Calls(1, 10)
	if page.Total != 3 {
		t.Fatalf("expected 3 calls in history, got %d", page.Total)
	}
	for _, c := range page.Records {
		if c.Outcome != types.OutcomeAnswered {
			t.Errorf("expected answered call, got %s", c.Outcome)
		}
	}
}

func TestStepTimesOutUnansweredCallers(t *testing.T) {
	sim := quiet(1, 0)
	if err := sim.Inject("100", 1); err != nil {
		t.Fatalf("Inject: %v", err)
	}

	sim.Step(t0.Add(time.Minute), time.Minute)
	if got := len(sim.Queues()["100"].Waiting); got != 1 {
		t.Fatalf("expected caller still waiting after a minute, got %d", got)
	}

	sim.Step(t0.Add(MaxWait), MaxWait)

	q := sim.Queues()["100"]
	if len(q.Waiting) != 0 {
		t.Errorf("expected caller to leave the queue, got %d waiting", len(q.Waiting))
	}
	if q.TotFailed != 1 || q.Failures[types.FailureTimeout] != 1 {
		t.Errorf("expected one timeout failure, got failed=%d failures=%v", q.TotFailed, q.Failures)
	}
	if c := sim.Calls(1, 10).Records; len(c) != 1 || c[0].Outcome != types.OutcomeTimeout {
		t.Errorf("expected one timed out call, got %v", c)
	}
}

func TestBusyAgentsBecomeAvailable(t *testing.T) {
	sim := quiet(1, 1)
	sim.Inject("100", 1)
	sim.Step(t0, time.Second)

	if sim.Agents()[0].Status != types.AgentBusy {
		t.Fatalf("expected agent busy after answering")
	}

	// talk time is at most five minutes
	sim.Step(t0.Add(5*time.Minute), 5*time.Minute)

	a := sim.Agents()[0]
	if a.Status != types.AgentAvailable {
		t.Errorf("expected agent available after the call, got %s", a.Status)
	}
	if a.AvgRecallTime < 30 || a.AvgRecallTime >= 300 {
		t.Errorf("expected average talk time between 30s and 300s, got %v", a.AvgRecallTime)
	}
	if a.LoginTime != 301 {
		t.Errorf("expected login time 301s, got %v", a.LoginTime)
	}
}

func TestInjectUnknownQueue(t *testing.T) {
	sim := quiet(1, 1)
	if err := sim.Inject("999", 1); err == nil {
		t.Error("expected error for unknown queue")
	}
}

func TestCallsPagination(t *testing.T) {
	sim := quiet(1, 0)
	sim.Inject("100", 5)
	sim.Step(t0.Add(MaxWait), MaxWait)

	tests := []struct {
		page, size int
		want       int
	}{
		{1, 2, 2},
		{3, 2, 1},
		{4, 2, 0},
		{0, 10, 5},
	}
	for _, tt := range tests {
		p := sim.Calls(tt.page, tt.size)
		if len(p.Records) != tt.want {
			t.Errorf("page %d size %d: expected %d records, got %d", tt.page, tt.size, tt.want, len(p.Records))
		}
		if p.Total != 5 {
			t.Errorf("expected total 5, got %d", p.Total)
		}
	}
}

func TestArrivals(t *testing.T) {
	sim := New(Config{Queues: 2, Agents: 0, CallsPerMin: 60, Seed: 7}, zerolog.Nop())

	sim.Step(t0.Add(10*time.Second), 10*time.Second)

	if got := sim.Status().Waiting; got != 10 {
		t.Errorf("expected 10 callers after 10s at 60/min, got %d", got)
	}
}

func TestRunningToggle(t *testing.T) {
	sim := quiet(1, 1)
	if !sim.Running() {
		t.Fatal("expected simulator to start running")
	}
	sim.SetRunning(false)
	if sim.Running() || sim.Status().Running {
		t.Error("expected simulator to be paused")
	}
}
