package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/camden-git/mediaidentity/config"
	"github.com/camden-git/mediaidentity/database"
	"github.com/camden-git/mediaidentity/handlers"
	"github.com/camden-git/mediaidentity/media"
	"github.com/camden-git/mediaidentity/realtime"
	"github.com/camden-git/mediaidentity/repository"
	"github.com/camden-git/mediaidentity/scheduler"
	"github.com/camden-git/mediaidentity/services"
	"github.com/camden-git/mediaidentity/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create database directory %s: %v", dir, err)
		}
	}

	db, err := database.Open(cfg.DatabasePath, cfg.DBLogLevel)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	mediaStore, err := media.NewLocalStorage(cfg.StoragePath, media.StandardLayout)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize media store: %v", err)
	}
	for assetType := range media.StandardLayout {
		if _, err := mediaStore.EnsureDir(assetType); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory for %s: %v", assetType, err)
		}
	}

	runner := media.NewExecRunner(cfg.ToolTimeout)
	thumbnails := media.NewThumbnailPipeline(mediaStore, media.ConverterConfig{
		RawConverter:       cfg.RawConverter,
		SecondaryConverter: cfg.SecondaryConverter,
		Runner:             runner,
		Probe:              media.NewToolProbe(cfg.RawConverter, runner),
	})

	hub := realtime.NewHub()
	go hub.Run()

	photoRepo := repository.NewPhotoRepository(db)
	personRepo := repository.NewPersonRepository(db)

	defaultMin, err := services.ParseConfidence(cfg.DefaultMinConfidence)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	assignments := services.NewAssignmentService(db, photoRepo, personRepo, media.NewAvatarSelector(mediaStore), mediaStore)
	batch := workers.NewBatchRecognizer[services.Match](cfg.RecognitionWorkers, cfg.RecognitionPause)
	recognition := services.NewRecognitionService(photoRepo, personRepo, assignments, batch, hub, cfg.SuggestionThreshold)

	log.Printf("Initializing image processor worker pool (Workers: %d, Queue Size: %d)...", cfg.NumImageWorkers, cfg.ImageQueueSize)
	imageProcessor := workers.NewImageProcessor(photoRepo, mediaStore, thumbnails, hub, cfg.ImageQueueSize, cfg.NumImageWorkers)

	photoService := services.NewPhotoService(photoRepo, assignments, recognition, mediaStore, imageProcessor, hub, defaultMin)
	peopleService := services.NewPeopleService(personRepo, photoRepo)

	var sched *scheduler.Scheduler
	if cfg.AutoProcessCron != "" {
		sched = scheduler.New()
		task := scheduler.AutoProcessTask(recognition, cfg.AutoProcessLimit, defaultMin)
		if err := sched.AddJob(scheduler.AutoProcessJobID, cfg.AutoProcessCron, task); err != nil {
			log.Fatalf("FATAL: Failed to schedule auto-processing: %v", err)
		}
		sched.Start()
	}

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Storing uploads in: %s", cfg.StoragePath)
	log.Printf("Raw converter: %s (secondary: %s, timeout %s)", cfg.RawConverter, cfg.SecondaryConverter, cfg.ToolTimeout)
	log.Printf("Auto-assignment minimum confidence: %s", defaultMin)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	photoHandler := &handlers.PhotoHandler{Photos: photoService, MaxUploadBytes: cfg.MaxUploadBytes}
	personHandler := &handlers.PersonHandler{People: peopleService}
	faceHandler := &handlers.FaceHandler{
		Assignments:      assignments,
		Recognition:      recognition,
		DefaultMin:       defaultMin,
		MaxBatchSize:     cfg.MaxBatchSize,
		AutoProcessLimit: cfg.AutoProcessLimit,
	}

	r.Route("/api", func(r chi.Router) {
		// websocket connections must not be cut by the request timeout
		r.Get("/ws", hub.ServeWS)
		r.Get("/assets/*", handlers.AssetServer(mediaStore))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(5 * time.Minute))

			r.Route("/photos", func(r chi.Router) {
				r.Post("/", photoHandler.UploadPhotos)
				r.Get("/", photoHandler.ListPhotos)
				r.Route("/{photo_id}", func(r chi.Router) {
					r.Get("/", photoHandler.GetPhoto)
					r.Delete("/", photoHandler.DeletePhoto)
					r.Put("/faces", photoHandler.StoreFaces)
					r.Delete("/faces", photoHandler.ResetFaces)
					r.Post("/recognize", faceHandler.RecognizePhoto)
				})
			})

			r.Route("/people", func(r chi.Router) {
				r.Post("/", personHandler.CreatePerson)
				r.Get("/", personHandler.ListPeople)
				r.Post("/suggest", faceHandler.SuggestPeople)
				r.Route("/{person_id}", func(r chi.Router) {
					r.Get("/", personHandler.GetPerson)
					r.Put("/", personHandler.UpdatePerson)
					r.Delete("/", personHandler.DeletePerson)
					r.Get("/photos", personHandler.PersonPhotos)
				})
			})

			r.Route("/faces", func(r chi.Router) {
				r.Post("/assign", faceHandler.AssignFace)
				r.Post("/unassign", faceHandler.UnassignFace)
				r.Post("/batch-recognize", faceHandler.BatchRecognize)
				r.Post("/auto-process", faceHandler.AutoProcess)
				r.Get("/recognition-stats", faceHandler.RecognitionStats)
				r.Get("/unprocessed-photos", faceHandler.UnprocessedPhotos)
				r.Get("/unassigned", faceHandler.UnassignedFaces)
			})
		})
	})

	serverAddr := ":" + cfg.Port
	fmt.Printf("Server starting on http://localhost:%s\n", cfg.Port)
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	if sched != nil {
		sched.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	imageProcessor.Stop()
	log.Println("Server stopped")
}
