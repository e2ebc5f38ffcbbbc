package config

import (
	"os"

	"gitlab.com/effect-network.net/internal/utils/amount"
)

type AppConfig struct {
	DebugMode      bool
	Role           string
	LogLevel       string
	NodeConfig     *NodeConfig
	TaskSvcCfg     *TaskSvcCfg
	SessionSvcCfg  *SessionSvcCfg
	StoreConfig    *StoreConfig
	PostgresConfig *PostgresConfig
	MongoConfig    *MongoConfig
	RedisConfig    *RedisConfig
	AmqpConfig     *AmqpConfig
	HttpConfig     *HttpConfig
	JwtConfig      *JwtConfig
}

func NewSystemConfig() *AppConfig {
	return &AppConfig{
		DebugMode:      os.Getenv("DEBUG_MODE") == "true",
		Role:           getEnv("ROLE", "manager"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		NodeConfig:     NewNodeConfig(),
		TaskSvcCfg:     NewTaskSvcCfg(),
		SessionSvcCfg:  NewSessionSvcCfg(),
		StoreConfig:    NewStoreConfig(),
		PostgresConfig: NewPostgresConfig(),
		MongoConfig:    NewMongoConfig(),
		RedisConfig:    NewRedisConfig(),
		AmqpConfig:     NewAmqpConfig(),
		HttpConfig:     NewHttpConfig(),
		JwtConfig:      NewJwtConfig(),
	}
}

// NodeConfig identifies the local peer
type NodeConfig struct {
	ListenAddr     string
	ManagerAddr    string
	PrivateKey     string
	Recipient      string
	PaymentAccount string
	TokenDecimals  int32
	// PayoutInterval makes a worker ask its managers for payouts; 0 disables it
	PayoutInterval int
}

func NewNodeConfig() *NodeConfig {
	return &NodeConfig{
		ListenAddr:     getEnv("LISTEN_ADDR", ":9000"),
		ManagerAddr:    getEnv("MANAGER_ADDR", ""),
		PrivateKey:     getEnv("PRIVATE_KEY", ""),
		Recipient:      getEnv("RECIPIENT", ""),
		PaymentAccount: getEnv("PAYMENT_ACCOUNT", ""),
		TokenDecimals:  int32(getIntEnv("TOKEN_DECIMALS", amount.DefaultDecimals)),
		PayoutInterval: getIntEnv("PAYOUT_INTERVAL_SEC", 0),
	}
}

// StoreConfig selects the datastore backend: memory, sqlite, postgres or mongo
type StoreConfig struct {
	Kind       string
	SQLitePath string
}

func NewStoreConfig() *StoreConfig {
	return &StoreConfig{
		Kind:       getEnv("DATASTORE", "memory"),
		SQLitePath: getEnv("SQLITE_PATH", "effect.db"),
	}
}

type MongoConfig struct {
	Uri      string
	Database string
}

func NewMongoConfig() *MongoConfig {
	return &MongoConfig{
		Uri:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		Database: getEnv("MONGO_DB", "effect"),
	}
}

// AmqpConfig enables domain event fan-out when Url is set
type AmqpConfig struct {
	Url      string
	Exchange string
}

func NewAmqpConfig() *AmqpConfig {
	return &AmqpConfig{
		Url:      getEnv("AMQP_URL", ""),
		Exchange: getEnv("AMQP_EXCHANGE", "effect.events"),
	}
}

type HttpConfig struct {
	Port int
}

func NewHttpConfig() *HttpConfig {
	return &HttpConfig{
		Port: getIntEnv("HTTP_PORT", 8082),
	}
}
