package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/coursesync/internal/data/db"
	"github.com/yungbote/coursesync/internal/platform/envutil"
	"github.com/yungbote/coursesync/internal/platform/gcs"
	"github.com/yungbote/coursesync/internal/platform/logger"
	"github.com/yungbote/coursesync/internal/syncer"
)

func main() {
	// Logger
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Content root: CLI arg wins, then env, then cwd.
	root := envutil.String("COURSE_ROOT", ".")
	if len(os.Args) > 1 {
		root = os.Args[1]
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Blob storage
	bucketService, err := gcs.NewBucketService(log)
	if err != nil {
		log.Error("Could not init BucketService", "error", err)
		os.Exit(1)
	}

	// Sync
	service := syncer.New(thePG, syncer.NewRepos(thePG, log), bucketService, log)
	if err := service.Run(context.Background(), root); err != nil {
		log.Error("Sync halted", "root", root, "error", err)
		os.Exit(1)
	}
}
