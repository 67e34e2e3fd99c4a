package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsgo_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/api"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/api/handler"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/config"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/dispatch"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/iot"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/metrics"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/notify"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/queue"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/repository/postgresql"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/scheduler"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/service"
)

func main() {
	// 1. Load configuration
	cfg := config.Load()
	log.Println("Configuration loaded.")

	// 2. Setup database connection and schema
	db, err := postgresql.NewDB(cfg)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connection established.")

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	if err := postgresql.EnsureSchema(bootCtx, db); err != nil {
		cancelBoot()
		log.Fatalf("Could not ensure database schema: %v", err)
	}

	store := postgresql.NewStore(db)
	if err := store.Spots().EnsurePool(bootCtx, cfg.TotalSpots); err != nil {
		cancelBoot()
		log.Fatalf("Could not provision parking spot pool: %v", err)
	}
	cancelBoot()
	log.Printf("Parking spot pool ready (%d spots).", cfg.TotalSpots)

	// 3. Register Prometheus metrics
	metrics.Register()

	// 4. Load AWS SDK config and clients
	awsSDKCfg, err := awsgo_config.LoadDefaultConfig(context.TODO(), awsgo_config.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("Could not load AWS SDK config: %v", err)
	}
	sqsClient := sqs.NewFromConfig(awsSDKCfg)
	iotDataPlaneClient := iotdataplane.NewFromConfig(awsSDKCfg)
	sesClient := sesv2.NewFromConfig(awsSDKCfg)

	// 5. WebSocket manager and notification fan-out
	webSocketManager := handler.NewWebSocketManager()
	go webSocketManager.Start()
	log.Println("WebSocket manager started.")

	sinks := []notify.Sink{notify.LogSink{}, webSocketManager}
	if cfg.SESFromEmail != "" {
		sinks = append(sinks, notify.NewEmailSink(sesClient, store.Subscribers(), cfg.SESFromEmail, cfg.SESFromName))
		log.Println("Email notifications enabled via SES.")
	} else {
		log.Println("WARNING: SES_FROM_EMAIL not set. Email notifications disabled.")
	}

	fanoutCtx, cancelFanout := context.WithCancel(context.Background())
	fanout := notify.NewFanout(sinks...)
	go fanout.Start(fanoutCtx)

	// 6. Core services
	allocService := service.NewAllocationService(store, fanout, service.Config{
		DefaultDuration: cfg.DefaultParkingDuration,
		Extension:       cfg.ExtensionDuration,
		FulfillGrace:    cfg.FulfillGrace,
		StoreTimeout:    cfg.StoreTimeout,
	})
	reportService := service.NewReportService(store, cfg.StoreTimeout)
	dispatcher := dispatch.NewDispatcher(allocService, reportService)

	// 7. Background jobs
	sched := scheduler.New()
	sched.Every("expiry_sweep", cfg.SweepInterval, 30*time.Second, func(ctx context.Context) error {
		result, err := allocService.SweepOverdue(ctx)
		if err != nil {
			return err
		}
		metrics.ObserveSweep(result.LateSessions, result.ExpiredReservations)
		if result.LateSessions > 0 || result.ExpiredReservations > 0 {
			log.Printf("Sweep: %d session(s) marked late, %d reservation(s) expired",
				result.LateSessions, result.ExpiredReservations)
		}
		return nil
	})
	sched.Monthly("monthly_reports", time.Minute, func(ctx context.Context) error {
		prev := time.Now().UTC().AddDate(0, -1, 0)
		timeReport, err := reportService.MonthlyParkingTime(ctx, prev.Year(), prev.Month())
		if err != nil {
			return err
		}
		subReport, err := reportService.MonthlySubscribers(ctx, prev.Year(), prev.Month())
		if err != nil {
			return err
		}
		log.Printf("Monthly report %d-%02d: %d sessions (%.1fh normal, %.1fh extended, %.1fh delayed), %d distinct subscribers",
			prev.Year(), prev.Month(), timeReport.TotalSessions,
			timeReport.NormalHours, timeReport.ExtendedHours, timeReport.DelayedHours,
			subReport.TotalDistinct)
		return nil
	})

	if cfg.IoTDisplayTopic != "" {
		displayPublisher := iot.NewDisplayPublisher(iotDataPlaneClient, cfg.IoTDisplayTopic, store.Spots())
		sched.Every("display_publish", cfg.DisplayPublishInterval, 10*time.Second, displayPublisher.Publish)
		log.Println("Availability display publisher enabled on topic:", cfg.IoTDisplayTopic)
	} else {
		log.Println("WARNING: IOT_DISPLAY_TOPIC not set. Display publisher disabled.")
	}

	schedCtx, cancelSched := context.WithCancel(context.Background())
	sched.Start(schedCtx)

	// 8. SQS command consumer
	var wg sync.WaitGroup
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())

	if cfg.SQSCommandQueueURL == "" {
		log.Println("WARNING: SQS_COMMAND_QUEUE_URL not set. SQS consumer disabled.")
	} else {
		sqsConsumer := queue.NewSQSConsumer(sqsClient, cfg, dispatcher)
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Println("SQS consumer listening on queue:", cfg.SQSCommandQueueURL)
			sqsConsumer.Start(consumerCtx)
			log.Println("SQS consumer stopped.")
		}()
	}

	// 9. HTTP server
	router := api.SetupRouter(dispatcher, webSocketManager)
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server running on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	cancelConsumer()
	cancelSched()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shut down: %v", err)
	}

	if cfg.SQSCommandQueueURL != "" {
		log.Println("Waiting for SQS consumer to stop (up to 5 seconds)...")
		c := make(chan struct{})
		go func() {
			defer close(c)
			wg.Wait()
		}()
		select {
		case <-c:
			log.Println("SQS consumer fully stopped.")
		case <-time.After(5 * time.Second):
			log.Println("SQS consumer did not stop within the grace period.")
		}
	}

	sched.Wait()
	cancelFanout()
	log.Println("Server stopped.")
}
