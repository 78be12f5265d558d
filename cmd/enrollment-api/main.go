package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campushq/enrollment-api/api/swagger"
	"github.com/campushq/enrollment-api/internal/handler"
	"github.com/campushq/enrollment-api/internal/middleware"
	"github.com/campushq/enrollment-api/internal/repository"
	"github.com/campushq/enrollment-api/internal/service"
	"github.com/campushq/enrollment-api/pkg/cache"
	"github.com/campushq/enrollment-api/pkg/config"
	"github.com/campushq/enrollment-api/pkg/database"
	"github.com/campushq/enrollment-api/pkg/jobs"
	"github.com/campushq/enrollment-api/pkg/logger"
	corsmiddleware "github.com/campushq/enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushq/enrollment-api/pkg/middleware/requestid"
)

// @title Enrollment API
// @version 1.0.0
// @description Intelligent enrollment and scheduling engine
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	termRepo := repository.NewTermRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	curriculumRepo := repository.NewCurriculumRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	reportRepo := repository.NewReportRepository(redisClient, cfg.Batch.ReportTTL)

	metrics := service.NewMetricsService()

	eligibility := service.NewEligibilityService(curriculumRepo, progressRepo, logr)
	demand := service.NewDemandService(curriculumRepo, progressRepo, assignmentRepo, sectionRepo, eligibility, logr)
	allocator := service.NewAllocatorService(sectionRepo, facultyRepo, cfg.Engine, time.Now().UnixNano(), logr)
	engine := service.NewEnrollmentEngine(db, studentRepo, termRepo, sectionRepo, assignmentRepo, progressRepo, curriculumRepo, demand, allocator, eligibility, metrics, cfg.Engine, cfg.Batch, logr)
	closer := service.NewTermCloseService(db, termRepo, assignmentRepo, gradeRepo, progressRepo, cfg.Engine, logr)
	schedules := service.NewScheduleService(studentRepo, termRepo, assignmentRepo, sectionRepo, curriculumRepo, demand, cfg.Engine.CreditCeiling, logr)

	worker := service.NewBatchWorker(engine, closer, reportRepo, metrics, logr)
	queue := jobs.NewQueue("term-batch", worker.Handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: cfg.Batch.AsyncQueueLen,
		MaxRetries: 1,
		Logger:     logr,
	})
	queue.Start(context.Background())
	defer queue.Stop()

	terms := service.NewTermService(termRepo, queue, reportRepo, validate, logr)

	termHandler := handler.NewTermHandler(terms)
	enrollmentHandler := handler.NewEnrollmentHandler(engine, eligibility)
	studentHandler := handler.NewStudentHandler(schedules)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		api.GET("/terms", termHandler.List)
		api.POST("/terms", termHandler.Create)
		api.GET("/terms/current", termHandler.GetCurrent)
		api.GET("/terms/:id", termHandler.Get)
		api.PUT("/terms/:id", termHandler.Update)
		api.DELETE("/terms/:id", termHandler.Delete)
		api.POST("/terms/:id/activate", termHandler.Activate)
		api.POST("/terms/:id/close", termHandler.Close)
		api.GET("/terms/:id/activation-report", termHandler.ActivationReport)
		api.GET("/terms/:id/close-report", termHandler.CloseReport)

		api.POST("/enrollments", enrollmentHandler.Enroll)
		api.DELETE("/enrollments", enrollmentHandler.Drop)

		api.GET("/students/:id/schedule", studentHandler.Schedule)
		api.GET("/students/:id/schedule/export", studentHandler.ExportSchedule)
		api.GET("/students/:id/demand", studentHandler.Preview)
		api.GET("/students/:id/eligibility/:courseId", enrollmentHandler.Eligibility)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
