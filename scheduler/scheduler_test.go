package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate_ai/config"
	"realestate_ai/models"
	"realestate_ai/services"
)

type fakeScraper struct {
	mu       sync.Mutex
	runs     int
	handled  []models.CommandType
	runCalls chan struct{}
}

func (f *fakeScraper) RunAll(ctx context.Context) error {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	if f.runCalls != nil {
		select {
		case f.runCalls <- struct{}{}:
		default:
		}
	}
	return nil
}

func (f *fakeScraper) HandleCommand(ctx context.Context, cmd *models.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handled = append(f.handled, cmd.Command)
	if cmd.Command == "explode" {
		return errors.New("unknown command")
	}
	return nil
}

type fakeQueue struct {
	pending   []models.Command
	processed []int64
}

func (q *fakeQueue) GetPendingCommands() ([]models.Command, error) {
	out := q.pending
	q.pending = nil
	return out, nil
}

func (q *fakeQueue) MarkCommandProcessed(id int64) error {
	q.processed = append(q.processed, id)
	return nil
}

type fakeTrigger struct{ n int }

func (f *fakeTrigger) Trigger() { f.n++ }

type fakeRebuilder struct{ n int }

func (f *fakeRebuilder) Rebuild(ctx context.Context) (*services.RebuildResult, error) {
	f.n++
	return &services.RebuildResult{}, nil
}

func TestDrainCommands_Dispatch(t *testing.T) {
	scraper := &fakeScraper{}
	queue := &fakeQueue{pending: []models.Command{
		{ID: 1, Command: models.CmdReparse},
		{ID: 2, Command: models.CmdRebuildSilver},
		{ID: 3, Command: models.CmdScrapeSite},
		{ID: 4, Command: models.CmdPause},
		{ID: 5, Command: "explode"},
	}}
	reparse := &fakeTrigger{}
	silver := &fakeRebuilder{}

	s := New(&config.Config{}, scraper, queue)
	s.SetWorkers(reparse, silver)
	s.drainCommands(context.Background())

	assert.Equal(t, 1, reparse.n)
	assert.Equal(t, 1, silver.n)
	assert.Equal(t, []models.CommandType{models.CmdScrapeSite, models.CmdPause, "explode"}, scraper.handled)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, queue.processed, "failed commands are still marked")
}

func TestHandleCommand_SilverNotConfigured(t *testing.T) {
	s := New(&config.Config{}, &fakeScraper{}, &fakeQueue{})
	err := s.handleCommand(context.Background(), &models.Command{Command: models.CmdRebuildSilver})
	assert.Error(t, err)
}

func TestStart_InvalidCron(t *testing.T) {
	cfg := &config.Config{Scheduler: config.SchedulerConfig{Cron: "every tuesday"}}
	s := New(cfg, &fakeScraper{}, &fakeQueue{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.ErrorContains(t, s.Start(ctx), "invalid cron expression")
}

func TestStart_IntervalRunsScraper(t *testing.T) {
	scraper := &fakeScraper{runCalls: make(chan struct{}, 1)}
	cfg := &config.Config{Scheduler: config.SchedulerConfig{Interval: 10 * time.Millisecond}}
	s := New(cfg, scraper, &fakeQueue{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	select {
	case <-scraper.runCalls:
	case <-time.After(5 * time.Second):
		t.Fatal("interval did not trigger a run")
	}
	s.Stop()
}
