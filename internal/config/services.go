package config

import (
	"os"
	"strconv"
	"time"
)

// TaskSvcCfg tunes the manager's assignment loop
type TaskSvcCfg struct {
	AssignInterval time.Duration
	// AssignmentTimeout re-queues tasks left ASSIGNED longer than this; 0 disables it
	AssignmentTimeout time.Duration
	// MaxRejections keeps a task REJECTED once it was rejected this often; 0 means unlimited
	MaxRejections int
}

func NewTaskSvcCfg() *TaskSvcCfg {
	return &TaskSvcCfg{
		AssignInterval:    time.Duration(getIntEnv("TASK_ASSIGN_INTERVAL_SEC", 10)) * time.Second,
		AssignmentTimeout: time.Duration(getIntEnv("ASSIGNMENT_TIMEOUT_SEC", 0)) * time.Second,
		MaxRejections:     getIntEnv("MAX_REJECTIONS", 0),
	}
}

// SessionSvcCfg bounds the connection handshake
type SessionSvcCfg struct {
	HandshakeTimeout time.Duration
}

func NewSessionSvcCfg() *SessionSvcCfg {
	return &SessionSvcCfg{
		HandshakeTimeout: time.Duration(getIntEnv("HANDSHAKE_TIMEOUT_SEC", 10)) * time.Second,
	}
}

// getIntEnv reads a non-negative integer, falling back on absent or bad values
func getIntEnv(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// getEnv gets an environment variable with a fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}
