package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"realestate_ai/config"
	"realestate_ai/models"
	"realestate_ai/services"
)

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

// Scraper is the part of the orchestrator the scheduler drives.
type Scraper interface {
	RunAll(ctx context.Context) error
	HandleCommand(ctx context.Context, cmd *models.Command) error
}

type Rebuilder interface {
	Rebuild(ctx context.Context) (*services.RebuildResult, error)
}

// CommandQueue is the SQLite command table polled for manual requests.
type CommandQueue interface {
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
}

type Scheduler struct {
	cfg      *config.Config
	scraper  Scraper
	commands CommandQueue
	cron     *cron.Cron
	ticker   *time.Ticker
	stopCh   chan struct{}

	reparseWorker Triggerable
	silver        Rebuilder
}

func New(cfg *config.Config, scraper Scraper, commands CommandQueue) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		scraper:  scraper,
		commands: commands,
		cron:     cron.New(),
		stopCh:   make(chan struct{}),
	}
}

// SetWorkers registers the reparse worker and silver rebuilder for commands.
func (s *Scheduler) SetWorkers(reparse Triggerable, silver Rebuilder) {
	s.reparseWorker = reparse
	s.silver = silver
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			if err := s.scraper.RunAll(ctx); err != nil {
				log.Printf("Scheduled run error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					if err := s.scraper.RunAll(ctx); err != nil {
						log.Printf("Scheduled run error: %v", err)
					}
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	interval := s.cfg.Scheduler.CommandPolling
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.drainCommands(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) drainCommands(ctx context.Context) {
	cmds, err := s.commands.GetPendingCommands()
	if err != nil {
		log.Printf("Error getting commands: %v", err)
		return
	}

	for _, cmd := range cmds {
		log.Printf("Processing command: %s", cmd.Command)
		if err := s.handleCommand(ctx, &cmd); err != nil {
			log.Printf("Command error: %v", err)
		}
		if err := s.commands.MarkCommandProcessed(cmd.ID); err != nil {
			log.Printf("Error marking command processed: %v", err)
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdReparse:
		if s.reparseWorker != nil {
			s.reparseWorker.Trigger()
			log.Println("Reparse worker triggered via command")
		}
		return nil
	case models.CmdRebuildSilver:
		if s.silver == nil {
			return fmt.Errorf("silver rebuild not configured")
		}
		_, err := s.silver.Rebuild(ctx)
		return err
	default:
		return s.scraper.HandleCommand(ctx, cmd)
	}
}

func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.scraper.RunAll(ctx)
}
