package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"ncr_ingest/config"
	"ncr_ingest/ingest"
	"ncr_ingest/models"
	"ncr_ingest/storage"
)

// Scheduler drives the ingestion controller on a cron or interval schedule
// and polls the operational database for manual commands.
type Scheduler struct {
	cfg        *config.Config
	controller *ingest.Controller
	store      *storage.SQLiteStore
	cron       *cron.Cron
	ticker     *time.Ticker
	stopCh     chan struct{}
}

func New(cfg *config.Config, controller *ingest.Controller, store *storage.SQLiteStore) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		controller: controller,
		store:      store,
		cron:       cron.New(),
		stopCh:     make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			if err := s.controller.Run(ctx, ingest.Options{}); err != nil {
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
					if err := s.controller.Run(ctx, ingest.Options{}); err != nil {
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
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.store.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for _, cmd := range cmds {
				log.Printf("Processing command: %s", cmd.Command)
				if err := s.handleCommand(ctx, &cmd); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.store.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdIngestNow:
		go func() {
			if err := s.controller.Run(ctx, ingest.Options{}); err != nil {
				log.Printf("Commanded run error: %v", err)
			}
		}()
		return nil
	case models.CmdIngestCity:
		params, err := storage.ParseCommandParams(cmd)
		if err != nil {
			return fmt.Errorf("bad command params: %w", err)
		}
		if params.City == "" {
			return fmt.Errorf("ingest_city command requires a city param")
		}
		go func() {
			opts := ingest.Options{CityFilter: params.City, MaxPages: params.MaxPages}
			if err := s.controller.Run(ctx, opts); err != nil {
				log.Printf("Commanded run error for %s: %v", params.City, err)
			}
		}()
		return nil
	case models.CmdPause:
		s.controller.Pause()
		log.Println("Ingestion paused via command")
		return nil
	case models.CmdResume:
		s.controller.Resume()
		log.Println("Ingestion resumed via command")
		return nil
	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
}

func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.controller.Run(ctx, ingest.Options{})
}
