package main

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"canvas-api/api"
	"canvas-api/domain"
	"canvas-api/storage"
)

const defaultPlanSchedule = "0 5 * * *"

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tasksTableName := os.Getenv("TASKS_TABLE")
	blocksTableName := os.Getenv("BLOCKS_TABLE")
	planQueueName := os.Getenv("PLAN_QUEUE")
	if connStr == "" || tasksTableName == "" || blocksTableName == "" || planQueueName == "" {
		log.Fatal("missing storage config")
	}
	secret := os.Getenv("DASHBOARD_SECRET")
	if secret == "" {
		log.Fatal("missing DASHBOARD_SECRET")
	}
	timezone := os.Getenv("BOARD_TIMEZONE")
	if timezone == "" {
		timezone = "UTC"
	}
	dates, err := domain.NewDates(timezone, nil)
	if err != nil {
		log.Fatalf("timezone: %v", err)
	}

	store, err := storage.New(connStr, tasksTableName, blocksTableName, planQueueName)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	redisOpts, err := redis.ParseURL(redisConn)
	if err != nil {
		parts := strings.Split(redisConn, ",")
		redisOpts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(kv[0]) {
			case "password":
				redisOpts.Password = kv[1]
			case "ssl":
				if strings.ToLower(kv[1]) == "true" {
					redisOpts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	rc := redis.NewClient(redisOpts)

	cacheTTL := 5 * time.Minute
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid CACHE_TTL: %v", err)
		}
		cacheTTL = d
	}
	guardTTL := 48 * time.Hour
	if v := os.Getenv("PLAN_GUARD_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid PLAN_GUARD_TTL: %v", err)
		}
		guardTTL = d
	}
	cached := storage.NewCache(store, rc, cacheTTL)
	guard := storage.NewOccurrenceGuard(rc, guardTTL)

	logger := log.New()

	consumer, err := newPlanConsumer(connStr, planQueueName, cached, guard, dates, logger)
	if err != nil {
		log.Fatalf("plan consumer: %v", err)
	}
	go consumer.Run(context.Background())

	schedule := os.Getenv("PLAN_SCHEDULE")
	if schedule == "" {
		schedule = defaultPlanSchedule
	}
	sched := cron.New(cron.WithLocation(dates.Location()))
	if _, err := sched.AddFunc(schedule, func() {
		req := domain.PlanRequest{
			ID:          uuid.NewString(),
			RequestedBy: "cron",
			Time:        time.Now().UnixNano(),
		}
		if err := cached.EnqueuePlanRequest(context.Background(), req); err != nil {
			logger.WithField("error", err).Error("failed to enqueue scheduled plan request")
		}
	}); err != nil {
		log.Fatalf("invalid PLAN_SCHEDULE: %v", err)
	}
	sched.Start()

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	api.Register(e, cached, dates, secret, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}
