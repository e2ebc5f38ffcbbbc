package config

type RedisConfig struct {
	DB       int
	Url      string
	Password string
	// Queue selects the worker queue backend: memory or redis
	Queue string
}

func NewRedisConfig() *RedisConfig {
	return &RedisConfig{
		DB:       getIntEnv("REDIS_DB", 0),
		Url:      getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		Queue:    getEnv("WORKER_QUEUE", "memory"),
	}
}
