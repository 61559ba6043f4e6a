// Package scheduler runs named housekeeping jobs on cron specs.
//
// A spec is either a robfig/cron expression ("*/5 * * * *", "@hourly",
// "@every 10m") or a bare Go duration ("10m"), which means "@every".
// Interval jobs get a random first-run offset.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "pacebot/pkg/logx"
)

var ErrEmptySpec = errors.New("schedule spec required")

// Job is one scheduled function. It receives a context bounded by the job
// timeout and cancelled on Stop.
type Job func(ctx context.Context) error

type def struct {
	name    string
	spec    string
	timeout time.Duration
	job     Job
	entryID cron.EntryID
	spread  time.Duration
}

// Info describes a registered job.
type Info struct {
	Name   string
	Spec   string
	Next   time.Time
	Prev   time.Time
	Spread time.Duration
}

type Service struct {
	mu     sync.Mutex
	log    logx.Logger
	parser cron.Parser
	c      *cron.Cron
	defs   map[string]*def

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log: log,
		// SecondOptional allows both 5-field and 6-field (with seconds) specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		defs:   map[string]*def{},
	}
}

// Normalize turns a bare duration into an "@every" spec and trims the rest.
func Normalize(spec string) string {
	s := strings.TrimSpace(spec)
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return "@every " + d.String()
	}
	return s
}

// Validate reports whether spec parses. Empty specs are valid and mean
// "disabled".
func (s *Service) Validate(spec string) error {
	spec = Normalize(spec)
	if spec == "" {
		return nil
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Set registers or replaces the job called name. An empty spec removes it.
func (s *Service) Set(name, spec string, timeout time.Duration, job Job) error {
	spec = Normalize(spec)
	if spec == "" {
		s.Remove(name)
		return nil
	}
	if err := s.Validate(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.defs[name]; ok {
		if old.spec == spec && old.timeout == timeout {
			old.job = job
			return nil
		}
		if s.c != nil {
			s.c.Remove(old.entryID)
		}
	}
	d := &def{name: name, spec: spec, timeout: timeout, job: job}
	s.defs[name] = d
	if s.c != nil {
		return s.addLocked(d)
	}
	return nil
}

func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[name]
	if !ok {
		return false
	}
	if s.c != nil {
		s.c.Remove(d.entryID)
	}
	delete(s.defs, name)
	return true
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithParser(s.parser))
	for _, d := range s.defs {
		if err := s.addLocked(d); err != nil {
			s.log.Warn("schedule rejected", logx.String("job", d.name), logx.String("spec", d.spec), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.Int("jobs", len(s.defs)))
}

// Stop halts triggering and waits for running jobs until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out; jobs still running")
	}
	s.log.Info("scheduler stopped")
}

func (s *Service) Snapshot() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Info, 0, len(s.defs))
	for _, d := range s.defs {
		info := Info{Name: d.name, Spec: d.spec, Spread: d.spread}
		if s.c != nil {
			e := s.c.Entry(d.entryID)
			info.Next, info.Prev = e.Next, e.Prev
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// addLocked schedules d on the running cron. Call with s.mu held.
func (s *Service) addLocked(d *def) error {
	name := d.name
	job := cron.FuncJob(func() { s.run(name) })

	if every, ok := strings.CutPrefix(d.spec, "@every"); ok {
		if iv, err := time.ParseDuration(strings.TrimSpace(every)); err == nil && iv > 0 {
			sched, jitter := spreadEvery(iv, time.Now(), name)
			d.spread = jitter
			d.entryID = s.c.Schedule(sched, job)
			return nil
		}
	}
	d.spread = 0
	id, err := s.c.AddJob(d.spec, job)
	if err != nil {
		return err
	}
	d.entryID = id
	return nil
}

func (s *Service) run(name string) {
	s.mu.Lock()
	d, ok := s.defs[name]
	parent := s.ctx
	if !ok || parent == nil || parent.Err() != nil {
		s.mu.Unlock()
		return
	}
	job, timeout := d.job, d.timeout
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx := parent
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return job(ctx)
	}()
	if err != nil {
		s.log.Warn("scheduled job failed", logx.String("job", name), logx.Duration("took", time.Since(start)), logx.Err(err))
		return
	}
	s.log.Debug("scheduled job done", logx.String("job", name), logx.Duration("took", time.Since(start)))
}
