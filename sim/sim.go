// Package sim drives scenario execution: it turns a ParsedProgram plus a
// selection of scenario names into a stream of engine.Result values,
// fanning replicate trials out across a worker pool grounded on the
// teacher's runtime.GOMAXPROCS + sync.WaitGroup calculation pattern.
package sim

import (
	"context"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/kigalisim/core/engine"
	"github.com/kigalisim/core/engine/state"
	"github.com/kigalisim/core/internal/seed"
	"github.com/kigalisim/core/ops"
	"github.com/sirupsen/logrus"
)

// Run groups one (scenarioName, trialNumber) execution, per §3.1's
// expansion: an id for log correlation and the resolved year bounds.
type Run struct {
	ID           uuid.UUID
	ScenarioName string
	TrialNumber  int
	StartYear    int
	EndYear      int
}

// Policy is a named, ordered list of per-(application, substance)
// operations, per §6's ParsedProgram.Policy.
type Policy struct {
	Name         string
	Applications []Application
}

// Application groups a policy's substances for one application name.
type Application struct {
	Name       string
	Substances []Substance
}

// Substance is one (application, substance) scope's operation list within
// a policy.
type Substance struct {
	Name       string
	Operations []ops.Operation
}

// Scenario names which policies apply, in order, over which year range and
// how many replicate trials to run, per §6's ParsedProgram.Scenario.
type Scenario struct {
	Name      string
	Policies  []string
	StartYear int
	EndYear   int
	Trials    int
}

// Program is the executor's input, mirroring §6's ParsedProgram.
type Program struct {
	Policies  []Policy
	Scenarios []Scenario
}

// ProgressFunc is called after each (scenario, trial, year) completes, for
// callers that want to report progress without consuming the result
// channel eagerly.
type ProgressFunc func(scenarioName string, trialNumber, year int)

// Executor runs scenarios against Program, fanning replicate trials out
// across a worker pool sized to runtime.GOMAXPROCS(0), per the teacher's
// Calculations pattern in the deleted run.go.
type Executor struct {
	Log      *logrus.Logger
	Progress ProgressFunc
	GWP      engine.GWPLookup
}

// NewExecutor returns an Executor with a default logrus.Logger if log is
// nil.
func NewExecutor(log *logrus.Logger) *Executor {
	if log == nil {
		log = logrus.New()
	}
	return &Executor{Log: log}
}

type job struct {
	scenario Scenario
	trial    int
}

// Run executes every (scenario, trial) pair for the named scenarios (or
// every scenario in program if names is empty), streaming one
// engine.Result per (application, substance, year). The result channel is
// closed once every job completes or ctx is cancelled; the error channel
// carries at most one error per job and is closed alongside it.
func (x *Executor) Run(ctx context.Context, program Program, names []string) (<-chan engine.Result, <-chan error) {
	results := make(chan engine.Result)
	errs := make(chan error)

	selected := selectScenarios(program, names)

	var jobs []job
	for _, sc := range selected {
		trials := sc.Trials
		if trials < 1 {
			trials = 1
		}
		for t := 0; t < trials; t++ {
			jobs = append(jobs, job{scenario: sc, trial: t})
		}
	}

	nprocs := runtime.GOMAXPROCS(0)
	if nprocs > len(jobs) && len(jobs) > 0 {
		nprocs = len(jobs)
	}

	go func() {
		defer close(results)
		defer close(errs)

		var wg sync.WaitGroup
		jobCh := make(chan job)

		wg.Add(nprocs)
		for p := 0; p < nprocs; p++ {
			go func() {
				defer wg.Done()
				for j := range jobCh {
					if ctx.Err() != nil {
						return
					}
					if err := x.runOne(ctx, program, j, results); err != nil {
						select {
						case errs <- err:
						case <-ctx.Done():
						}
					}
				}
			}()
		}

		for _, j := range jobs {
			select {
			case jobCh <- j:
			case <-ctx.Done():
			}
		}
		close(jobCh)
		wg.Wait()
	}()

	return results, errs
}

func selectScenarios(program Program, names []string) []Scenario {
	if len(names) == 0 {
		return program.Scenarios
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Scenario
	for _, sc := range program.Scenarios {
		if want[sc.Name] {
			out = append(out, sc)
		}
	}
	return out
}

func (x *Executor) runOne(ctx context.Context, program Program, j job, results chan<- engine.Result) error {
	sc := j.scenario
	runID := uuid.New()
	rng := seed.For(sc.Name, j.trial)

	x.Log.WithFields(logrus.Fields{
		"scenario": sc.Name,
		"trial":    j.trial,
		"runID":    runID,
	}).Info("starting trial")

	eng := engine.New(sc.StartYear, sc.EndYear, rng)
	if x.GWP != nil {
		eng.WithGWPLookup(x.GWP)
	}

	policyByName := make(map[string]Policy, len(program.Policies))
	for _, p := range program.Policies {
		policyByName[p.Name] = p
	}

	applyOrder := append([]string{"default"}, sc.Policies...)

	for year := sc.StartYear; year <= sc.EndYear; year++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		for _, policyName := range applyOrder {
			policy, ok := policyByName[policyName]
			if !ok {
				continue
			}
			if err := applyPolicy(eng, policy); err != nil {
				x.Log.WithFields(logrus.Fields{
					"scenario": sc.Name,
					"trial":    j.trial,
					"policy":   policyName,
					"year":     year,
				}).Warn("policy application failed: ", err)
				return err
			}
		}

		for _, key := range eng.Store().Keys() {
			snap, err := eng.Snapshot(runID, sc.Name, j.trial, key)
			if err != nil {
				return err
			}
			select {
			case results <- snap:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if x.Progress != nil {
			x.Progress(sc.Name, j.trial, year)
		}

		eng.AdvanceYear()
	}

	x.Log.WithFields(logrus.Fields{
		"scenario": sc.Name,
		"trial":    j.trial,
	}).Info("finished trial")

	return nil
}

func applyPolicy(eng *engine.Engine, policy Policy) error {
	for _, app := range policy.Applications {
		for _, sub := range app.Substances {
			key := state.UseKey{Application: app.Name, Substance: sub.Name}
			m := ops.New(eng, key)
			for i := range sub.Operations {
				if err := m.Run(&sub.Operations[i]); err != nil {
					return err
				}
				if err := m.Close(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
