package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/ssat-prep/backend/internal/config"
	"github.com/ssat-prep/backend/internal/database"
	"github.com/ssat-prep/backend/internal/generator"
	"github.com/ssat-prep/backend/internal/httpapi"
	"github.com/ssat-prep/backend/internal/mastery"
	"github.com/ssat-prep/backend/internal/pool"
	"github.com/ssat-prep/backend/internal/session"
	"github.com/ssat-prep/backend/internal/students"
)

func main() {
	settings := config.Load()

	// Initialize database
	db, err := database.Connect(settings.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Wire services
	studentStore := students.NewStore(db)
	masteryStore := mastery.NewStore(db)
	tracker := mastery.NewTracker(masteryStore)
	leveler := mastery.NewLeveler(masteryStore)

	gen := generator.NewGenerator(settings)
	poolManager := pool.NewManager(pool.NewStore(db), gen, settings)

	attemptStore := session.NewStore(db)
	sessionService := session.NewService(poolManager, tracker, leveler, attemptStore, settings)
	progress := students.NewProgress(studentStore, attemptStore, tracker)

	// Background pool replenishment
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker := pool.NewWorker(poolManager, studentStore, leveler,
		time.Duration(settings.GenWorkerSeconds)*time.Second)
	go worker.Run(ctx)

	// Setup router
	r := mux.NewRouter()
	handler := httpapi.NewHandler(studentStore, progress, sessionService, attemptStore, tracker, poolManager)
	handler.Routes(r)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	log.Printf("Server starting on :%s (model=%s, mock=%v)", settings.Port, settings.AnthropicModel, settings.MockGenerator)
	if err := http.ListenAndServe(":"+settings.Port, c.Handler(r)); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
