package config

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

func GetRedisDB() *redis.Client {
	return rdb
}

// GetRedisLock returns the lock client, or nil when Redis is not configured.
// Callers must tolerate nil: the run lease is an optimization, reconciliation
// stays correct without it.
func GetRedisLock() *redislock.Client {
	return locker
}

// ConnectRedis connects when REDIS_ADDRESS is set. Failure to connect is
// logged and leaves the clients nil; the service runs without a run lease.
func ConnectRedis() {
	redisAddr := strings.TrimSpace(os.Getenv("REDIS_ADDRESS"))
	if redisAddr == "" {
		log.Println("REDIS_ADDRESS not set; running without run lease")
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Printf("failed to connect redis (addr=%s): %v; running without run lease", redisAddr, err)
		return
	}

	rdb = client
	locker = redislock.New(client)
	log.Printf("connected to redis (addr=%s)", redisAddr)
}
