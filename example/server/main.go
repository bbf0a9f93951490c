package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/eaglemoor/kvcache"
	promhooks "github.com/eaglemoor/kvcache/hooks/prometheus"
	zaplog "github.com/eaglemoor/kvcache/log/zap"
	"github.com/eaglemoor/kvcache/store"
	"github.com/eaglemoor/kvcache/store/bolt"
	"github.com/eaglemoor/kvcache/store/couchbase"
	"github.com/eaglemoor/kvcache/store/memory"
	"github.com/eaglemoor/kvcache/store/redis"
	cachegrpc "github.com/eaglemoor/kvcache/transport/grpc"
)

var (
	addr        = flag.String("addr", "localhost:8082", "grpc listen address")
	metricsAddr = flag.String("metrics", "localhost:9090", "prometheus listen address, empty to disable")
	backend     = flag.String("store", "memory", "memory | redis | couchbase | bolt")
	ttl         = flag.Duration("ttl", kvcache.DefaultTTL, "default entry ttl")
	window      = flag.Duration("window", 2*time.Millisecond, "get batch window")

	redisAddr = flag.String("redis-addr", "localhost:6379", "redis address")
	cbConnStr = flag.String("cb-connstr", "couchbase://localhost", "couchbase connection string")
	cbBucket  = flag.String("cb-bucket", "cache", "couchbase bucket")
	cbUser    = flag.String("cb-user", "Administrator", "couchbase username")
	cbPass    = flag.String("cb-pass", "", "couchbase password")
	boltPath  = flag.String("bolt-path", "kvcache.db", "bolt database file")
)

func openStore() (store.Client, error) {
	switch *backend {
	case "memory":
		return memory.New(memory.Config{})
	case "redis":
		return redis.New(redis.Config{Addr: *redisAddr})
	case "couchbase":
		return couchbase.New(couchbase.Config{
			ConnStr:  *cbConnStr,
			Bucket:   *cbBucket,
			Username: *cbUser,
			Password: *cbPass,
		})
	case "bolt":
		return bolt.Open(bolt.Config{Path: *boltPath})
	default:
		return nil, fmt.Errorf("unknown store %q", *backend)
	}
}

func main() {
	flag.Parse()

	zl, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer zl.Sync()

	logger := zaplog.New(zl)

	reg := prometheus.NewRegistry()
	hooks, err := promhooks.New(reg)
	if err != nil {
		zl.Fatal("register metrics", zap.Error(err))
	}

	st, err := openStore()
	if err != nil {
		zl.Fatal("open store", zap.String("store", *backend), zap.Error(err))
	}

	cache, err := kvcache.New(st,
		kvcache.TTL(*ttl),
		kvcache.Window(*window),
		kvcache.WithLogger(logger),
		kvcache.WithHooks(hooks),
	)
	if err != nil {
		zl.Fatal("create cache", zap.Error(err))
	}

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		zl.Fatal("listen", zap.Error(err))
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		cachegrpc.RecoveryUnary(logger),
		cachegrpc.LoggingUnary(logger),
	))
	cachegrpc.Register(server, cache)

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhooks.Handler(reg))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				zl.Error("metrics server", zap.Error(err))
			}
		}()
	}

	go func() {
		zl.Info("serving", zap.String("addr", *addr), zap.String("store", *backend))
		if err := server.Serve(lis); err != nil {
			zl.Error("grpc server", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	server.GracefulStop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cache.Close(ctx); err != nil {
		zl.Error("close cache", zap.Error(err))
	}
}
