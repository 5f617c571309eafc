package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueFull    = errors.New("conversion queue is full")
	ErrDuplicateJob = errors.New("job already queued")
	ErrStopped      = errors.New("scheduler is not running")
)

// Job is one queued conversion. Run receives a private scratch directory that is removed
// when Run returns, whatever the outcome.
type Job struct {
	ID       string
	UserID   int64
	FileName string
	Run      func(ctx context.Context, scratchDir string) error
	// OnPosition is called when the job moves in the queue; 0 means it has started.
	OnPosition func(position int)
}

type Scheduler struct {
	workers    int
	queueSize  int
	jobTimeout time.Duration
	scratchDir string
	log        *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	taskQueue  chan *Job
	inFlight   map[string]*inFlightEntry
	inFlightMu sync.Mutex
}

type inFlightEntry struct {
	job      *Job
	position int
}

type Config struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	ScratchDir string
	Logger     *slog.Logger
}

func NewScheduler(config Config) *Scheduler {
	if config.Workers <= 0 {
		config.Workers = 3
	}
	if config.QueueSize <= 0 {
		config.QueueSize = config.Workers * 2
		if config.QueueSize < 10 {
			config.QueueSize = 10
		}
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 10 * time.Minute
	}
	if config.ScratchDir == "" {
		config.ScratchDir = filepath.Join(os.TempDir(), "convert-bot")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		workers:    config.Workers,
		queueSize:  config.QueueSize,
		jobTimeout: config.JobTimeout,
		scratchDir: config.ScratchDir,
		log:        config.Logger.With("component", "scheduler"),
		ctx:        ctx,
		cancel:     cancel,
		taskQueue:  make(chan *Job, config.Workers+config.QueueSize),
		inFlight:   make(map[string]*inFlightEntry),
	}
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if err := os.MkdirAll(s.scratchDir, 0o700); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	s.running = true

	s.log.Info("scheduler started", "workers", s.workers, "queue", s.queueSize, "scratch", s.scratchDir)
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	return nil
}

// Stop stops accepting jobs and waits for running ones. Queued jobs that have not started
// are dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.log.Info("stopping scheduler")
	s.cancel()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// Submit queues the job and returns its queue position; 0 means a worker is free.
func (s *Scheduler) Submit(job *Job) (int, error) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return 0, ErrStopped
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	s.inFlightMu.Lock()
	if _, exists := s.inFlight[job.ID]; exists {
		s.inFlightMu.Unlock()
		return 0, ErrDuplicateJob
	}

	active, waiting, maxPos := 0, 0, 0
	for _, e := range s.inFlight {
		if e.position == 0 {
			active++
			continue
		}
		waiting++
		if e.position > maxPos {
			maxPos = e.position
		}
	}
	if waiting >= s.queueSize {
		s.inFlightMu.Unlock()
		return 0, ErrQueueFull
	}

	position := 0
	if active >= s.workers {
		position = maxPos + 1
	}
	// Sending under the lock keeps the channel in submission order.
	select {
	case s.taskQueue <- job:
	default:
		s.inFlightMu.Unlock()
		return 0, ErrQueueFull
	}
	s.inFlight[job.ID] = &inFlightEntry{job: job, position: position}
	s.inFlightMu.Unlock()

	return position, nil
}

// InFlight reports queued plus running jobs.
func (s *Scheduler) InFlight() int {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	return len(s.inFlight)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-s.taskQueue:
			s.markStarted(job)
			start := time.Now()
			err := s.run(job)
			log := s.log.With("worker", id, "job_id", job.ID, "user_id", job.UserID, "elapsed", time.Since(start))
			if err != nil {
				log.Warn("job failed", "error", err)
			} else {
				log.Info("job done")
			}
			s.forget(job.ID)
			s.decrementQueue()
		}
	}
}

func (s *Scheduler) run(job *Job) (err error) {
	dir := filepath.Join(s.scratchDir, job.ID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			s.log.Error("remove job dir", "path", dir, "error", rmErr)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panic", "job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("job panic: %v", r)
		}
	}()

	// Running jobs are not cancelled by Stop, only bounded by the timeout.
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()
	return job.Run(ctx, dir)
}

func (s *Scheduler) markStarted(job *Job) {
	s.inFlightMu.Lock()
	e, ok := s.inFlight[job.ID]
	wasQueued := ok && e.position != 0
	if ok {
		e.position = 0
	}
	s.inFlightMu.Unlock()
	if wasQueued && job.OnPosition != nil {
		job.OnPosition(0)
	}
}

func (s *Scheduler) forget(id string) {
	s.inFlightMu.Lock()
	delete(s.inFlight, id)
	s.inFlightMu.Unlock()
}

func (s *Scheduler) decrementQueue() {
	type upd struct {
		fn       func(int)
		position int
	}
	var updates []upd

	s.inFlightMu.Lock()
	for _, entry := range s.inFlight {
		if entry.position <= 1 {
			// position 1 becomes 0 only when a worker actually picks the job up
			continue
		}
		entry.position--
		if entry.job.OnPosition != nil {
			updates = append(updates, upd{fn: entry.job.OnPosition, position: entry.position})
		}
	}
	s.inFlightMu.Unlock()

	for _, u := range updates {
		u.fn(u.position)
	}
}
