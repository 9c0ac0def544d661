package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"wardrobeapi/config"
	"wardrobeapi/dbhelper"
	"wardrobeapi/services"
	"wardrobeapi/stylist"
	"wardrobeapi/tasks"
	"wardrobeapi/telegram"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
)

func runScheduler(cfg *config.Config) {
	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{Addr: cfg.AsyncBrokerAddress}, &asynq.SchedulerOpts{
		LogLevel: asynq.InfoLevel,
	})

	scheduled := []struct {
		cron string
		task *asynq.Task
		desc string
	}{
		{
			cron: cfg.DailyOutfitCron,
			task: tasks.NewDailyOutfitsTask(),
			desc: "Daily outfit notifications",
		},
	}
	for _, t := range scheduled {
		entryID, err := scheduler.Register(t.cron, t.task, asynq.Queue(tasks.QueueGenerate))
		if err != nil {
			log.Fatalf("Failed to register task '%s': %v", t.desc, err)
		}
		log.Printf("Registered task '%s' with ID: %s, cron: %s", t.desc, entryID, t.cron)
	}

	log.Println("Starting scheduler...")
	if err := scheduler.Run(); err != nil {
		log.Fatalf("Scheduler failed: %v", err)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %s", err)
	}
	err = sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Env,
		Release:     cfg.Release,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := dbhelper.SetupDB(cfg)
	storage, err := services.NewR2Storage(ctx, cfg)
	if err != nil {
		log.Fatalf("[Queue] Failed to initialize R2 storage: %v", err)
	}

	// without a key every outfit and analysis is produced locally
	var llm services.StylistLLM
	if cfg.GoogleAPIKey != "" {
		processor, err := services.NewGoogleLLMProcessor(ctx, cfg.GoogleAPIKey, services.LLMConfigFrom(cfg))
		if err != nil {
			log.Fatalf("[Queue] Failed to initialize text generator: %v", err)
		}
		llm = processor
	} else {
		log.Println("[Queue] GOOGLE_API_KEY not set, using local analysis and outfits only")
	}

	app, err := firebase.NewApp(ctx, nil)
	if err != nil {
		log.Fatalf("error initializing firebase app: %v\n", err)
	}
	notifier := services.FirebaseNotifier{App: app}
	policy := services.RetryPolicyFromConfig(cfg)
	generator := stylist.NewGenerator(cfg.OutfitMaxResults)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.AsyncBrokerAddress},
		asynq.Config{Concurrency: cfg.WorkerConcurrency, Queues: map[string]int{
			tasks.QueueGenerate: 7,
		}},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeProcessClothing, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleClothingProcessingTask(ctx, t, db, llm, storage, notifier, policy)
	})
	mux.HandleFunc(tasks.TypeGenerateOutfits, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleOutfitGenerationTask(ctx, t, db, llm, notifier, policy, generator)
	})
	mux.HandleFunc(tasks.TypeDailyOutfits, func(ctx context.Context, t *asynq.Task) error {
		return tasks.ScheduledDailyOutfitTask(ctx, t, db, notifier, generator)
	})

	go runScheduler(cfg)
	if cfg.TelegramBot {
		go func() {
			bot := telegram.OutfitBot{DB: db, Generator: generator}
			if err := telegram.Run(ctx, cfg.TelegramBotToken, bot); err != nil {
				sentry.CaptureException(err)
				log.Printf("[Telegram] stopped: %v", err)
			}
		}()
	}

	if err := srv.Run(mux); err != nil {
		log.Fatal(err)
	}
}
