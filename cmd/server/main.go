package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"mediakeep/internal/auth"
	"mediakeep/internal/chunkstore"
	"mediakeep/internal/config"
	"mediakeep/internal/db"
	"mediakeep/internal/httpapi"
	"mediakeep/internal/quota"
	"mediakeep/internal/service"
	"mediakeep/internal/storage"
	"mediakeep/internal/sweep"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	chunks, err := chunkstore.NewDiskStore(cfg.StagingRoot)
	if err != nil {
		log.Fatalf("init chunk staging: %v", err)
	}

	sink, err := buildSink(ctx, cfg)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}

	svc := service.New(chunks, sink, quota.NewPgLedger(pool), service.Options{
		ChunkSize:      cfg.ChunkSize,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         log.Default(),
	})

	sweeper := sweep.NewWorker(cfg.StagingRoot, sweep.Config{
		TTL:          cfg.StagingTTL,
		StartupDelay: cfg.SweepDelay,
		Interval:     cfg.SweepInterval,
	}, log.Default())
	go sweeper.Run(ctx)

	authn := auth.NewAuthenticator(pool, cfg.AdminToken)

	api := httpapi.New(cfg, svc, authn)
	echoServer := api.NewEcho()

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      echoServer,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		log.Printf("listening on %s (storage backend: %s)", cfg.ListenAddr, cfg.StorageBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
		os.Exit(1)
	}
}

func buildSink(ctx context.Context, cfg config.Config) (storage.Sink, error) {
	switch cfg.StorageBackend {
	case config.BackendS3:
		var loadOpts []func(*awsconfig.LoadOptions) error
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.S3Region))
		if cfg.S3AccessKey != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, err
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3Endpoint != "" {
				o.BaseEndpoint = &cfg.S3Endpoint
				o.UsePathStyle = true
			}
		})
		return storage.NewS3Sink(storage.S3Options{
			Client:        client,
			Bucket:        cfg.S3Bucket,
			Prefix:        cfg.S3Prefix,
			PublicBaseURL: cfg.S3PublicBaseURL,
			Region:        cfg.S3Region,
		}), nil
	default:
		return storage.NewLocalSink(cfg.MediaRoot, cfg.PublicBaseURL)
	}
}
