package notify

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Worker исполняет отложенные задачи из очереди. Сами обработчики
// регистрирует вызывающая сторона, воркер отвечает только за цикл
// исполнения и контроль соединения с Redis.
type Worker struct {
	redisOpt asynq.RedisClientOpt
	server   *asynq.Server
	mux      *asynq.ServeMux
	logger   *zap.Logger
	stopChan chan struct{}
}

func NewWorker(redisOpt asynq.RedisClientOpt, logger *zap.Logger) *Worker {
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"default": 1,
		},
	})

	return &Worker{
		redisOpt: redisOpt,
		server:   server,
		mux:      asynq.NewServeMux(),
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Handle регистрирует обработчик задач указанного типа
func (w *Worker) Handle(taskType string, handler asynq.HandlerFunc) {
	w.mux.HandleFunc(taskType, handler)
}

// Start запускает воркер и фоновый мониторинг Redis
func (w *Worker) Start() error {
	w.logger.Info("Starting reminder worker")

	go w.monitorRedis()

	if err := w.server.Start(w.mux); err != nil {
		return err
	}

	return nil
}

// Stop останавливает воркер, дожидаясь активных задач
func (w *Worker) Stop() {
	w.logger.Info("Stopping reminder worker")
	close(w.stopChan)
	w.server.Shutdown()
}

// monitorRedis периодически пингует Redis, чтобы потеря соединения
// попала в логи раньше, чем в просроченные напоминания
func (w *Worker) monitorRedis() {
	client := redis.NewClient(&redis.Options{
		Addr:     w.redisOpt.Addr,
		Password: w.redisOpt.Password,
		DB:       w.redisOpt.DB,
	})
	defer client.Close()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := client.Ping(context.Background()).Err(); err != nil {
				w.logger.Warn("Redis connection lost", zap.Error(err))
			}
		case <-w.stopChan:
			return
		}
	}
}
