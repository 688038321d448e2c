// Command codejudge starts an http server that runs and grades code
// submissions inside a sandbox.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/kaiju-coding/codejudge/assignment"
	"github.com/kaiju-coding/codejudge/auth"
	"github.com/kaiju-coding/codejudge/cmd/codejudge/config"
	restexecutor "github.com/kaiju-coding/codejudge/cmd/codejudge/rest_executor"
	"github.com/kaiju-coding/codejudge/cmd/codejudge/version"
	wsexecutor "github.com/kaiju-coding/codejudge/cmd/codejudge/ws_executor"
	"github.com/kaiju-coding/codejudge/env"
	"github.com/kaiju-coding/codejudge/env/pool"
	"github.com/kaiju-coding/codejudge/evaluation"
	"github.com/kaiju-coding/codejudge/execution"
	"github.com/kaiju-coding/codejudge/language"
	"github.com/kaiju-coding/codejudge/worker"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var logger *zap.Logger

// evaluator serves both the REST and the WebSocket handles
type evaluator interface {
	restexecutor.Evaluator
	wsexecutor.Evaluator
}

func main() {
	conf := loadConf()
	if conf.Version {
		fmt.Println(version.Version)
		return
	}
	initLogger(conf)
	defer logger.Sync()
	if ce := logger.Check(zap.InfoLevel, "Config loaded"); ce != nil {
		ce.Write(zap.String("config", fmt.Sprintf("%+v", conf)))
	}
	if runtime.GOOS != "linux" {
		logger.Fatal("sandbox requires linux", zap.String("GOOS", runtime.GOOS))
	}

	// Init sandbox
	b, builderParam := newEnvBuilder(conf)
	envPool := newEnvPool(b, conf.EnableMetrics)
	work := newWorker(conf, envPool)
	work.Start()
	logger.Info("Worker started", zap.Int("parallelism", conf.Parallelism))
	initCgroupMetrics(conf, builderParam)

	// Init services
	registry := newLanguageRegistry(conf)
	executor := newExecutor(conf, work, registry)
	store, storeCleanUp := newTestCaseStore(conf)
	eval := newEvaluator(conf, executor, store)

	servers := []initFunc{
		cleanUpWorker(work, builderParam),
		cleanUpStore(storeCleanUp),
		initHTTPServer(conf, executor, eval, registry, builderParam),
		initMonitorHTTPServer(conf),
	}

	// Gracefully shutdown, with signal / HTTP server / Monitor HTTP server
	sig := make(chan os.Signal, 1+len(servers))

	stops := []stopFunc{}
	for _, s := range servers {
		start, stop := s()
		if start != nil {
			go func() {
				start()
				sig <- os.Interrupt
			}()
		}
		if stop != nil {
			stops = append(stops, stop)
		}
	}

	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	signal.Reset(syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Shutting Down...")

	ctx, cancel := context.WithTimeout(context.TODO(), time.Second*3)
	defer cancel()

	var eg errgroup.Group
	for _, s := range stops {
		eg.Go(func() error {
			return s(ctx)
		})
	}

	go func() {
		logger.Info("Shutdown Finished", zap.Error(eg.Wait()))
		cancel()
	}()
	<-ctx.Done()
}

func loadConf() *config.Config {
	var conf config.Config
	if err := conf.Load(); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatalln("load config failed ", err)
	}
	return &conf
}

type (
	stopFunc func(ctx context.Context) error
	initFunc func() (start func(), cleanUp stopFunc)
)

// cleanUpWorker drains the worker and removes the work root afterwards
func cleanUpWorker(work worker.Worker, builderParam map[string]any) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		return nil, func(ctx context.Context) error {
			work.Shutdown()
			logger.Info("Worker shutdown")
			if root, ok := builderParam["tmpRoot"].(string); ok && root != "" {
				if err := os.RemoveAll(root); err != nil {
					return fmt.Errorf("remove work root: %w", err)
				}
				logger.Info("Work root removed", zap.String("path", root))
			}
			return nil
		}
	}
}

func cleanUpStore(storeCleanUp func() error) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		if storeCleanUp == nil {
			return nil, nil
		}
		return nil, func(ctx context.Context) error {
			err := storeCleanUp()
			logger.Info("Test case store closed")
			return err
		}
	}
}

func initHTTPServer(conf *config.Config, executor execution.Executor, eval evaluator, registry *language.Registry, builderParam map[string]any) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		r := initHTTPMux(conf, executor, eval, registry, builderParam)
		srv := http.Server{
			Addr:              conf.HTTPAddr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		return func() {
				lis, err := newListener(conf.HTTPAddr)
				if err != nil {
					logger.Error("Http server listen failed", zap.Error(err))
					return
				}
				logger.Info("Starting http server", zap.String("addr", conf.HTTPAddr), zap.String("listener", printListener(lis)))
				if err := srv.Serve(lis); errors.Is(err, http.ErrServerClosed) {
					logger.Info("Http server stopped", zap.Error(err))
				} else {
					logger.Error("Http server stopped", zap.Error(err))
				}
			}, func(ctx context.Context) error {
				logger.Info("Http server shutting down")
				return srv.Shutdown(ctx)
			}
	}
}

func initMonitorHTTPServer(conf *config.Config) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		mr := initMonitorHTTPMux(conf)
		if mr == nil {
			return nil, nil
		}
		msrv := http.Server{
			Addr:              conf.MonitorAddr,
			Handler:           mr,
			ReadHeaderTimeout: 10 * time.Second,
		}
		return func() {
				lis, err := newListener(conf.MonitorAddr)
				if err != nil {
					logger.Error("Monitoring http listen failed", zap.Error(err))
					return
				}
				logger.Info("Starting monitoring http server", zap.String("addr", conf.MonitorAddr), zap.String("listener", printListener(lis)))
				logger.Info("Monitoring http server stopped", zap.Error(msrv.Serve(lis)))
			}, func(ctx context.Context) error {
				logger.Info("Monitoring http server shutdown")
				return msrv.Shutdown(ctx)
			}
	}
}

func initLogger(conf *config.Config) {
	if conf.Silent {
		logger = zap.NewNop()
		return
	}

	var err error
	if conf.Release {
		logger, err = zap.NewProduction()
	} else {
		config := zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if !conf.EnableDebug {
			config.Level.SetLevel(zap.InfoLevel)
		}
		logger, err = config.Build()
	}
	if err != nil {
		log.Fatalln("init logger failed ", err)
	}
}

func initHTTPMux(conf *config.Config, executor execution.Executor, eval evaluator, registry *language.Registry, builderParam map[string]any) http.Handler {
	if conf.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(logger, true))

	// Metrics Handle
	if conf.EnableMetrics {
		initGinMetrics(r)
	}

	r.GET("/version", generateHandleVersion())
	r.GET("/config", generateHandleConfig(conf, builderParam))

	var routes gin.IRoutes = r
	if conf.JWTSecret != "" {
		routes = r.Group("/", restexecutor.Auth(auth.NewJWTVerifier([]byte(conf.JWTSecret)), logger))
		logger.Info("Attach bearer token verification")
	} else {
		logger.Warn("No jwt secret configured, execution endpoints are not authenticated")
	}

	restexecutor.New(executor, eval, registry.Languages(), logger).Register(routes)
	wsexecutor.New(eval, logger).Register(routes)
	return r
}

func initMonitorHTTPMux(conf *config.Config) http.Handler {
	if !conf.EnableMetrics && !conf.EnableDebug {
		return nil
	}
	mux := http.NewServeMux()
	if conf.EnableMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}
	if conf.EnableDebug {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

func newEnvBuilder(conf *config.Config) (pool.EnvBuilder, map[string]any) {
	b, param, err := env.NewBuilder(env.Config{
		TmpRoot:            conf.WorkRoot,
		TmpFsParam:         conf.TmpFsParam,
		MountConf:          conf.MountConf,
		SeccompConf:        conf.SeccompConf,
		CgroupPrefix:       conf.CgroupPrefix,
		ContainerCredStart: conf.ContainerCredStart,
		NoFallback:         conf.NoFallback,
	}, logger)
	if err != nil {
		logger.Fatal("create environment builder failed", zap.Error(err))
	}
	if conf.EnableMetrics {
		b = &metricsEnvBuilder{b}
	}
	return b, param
}

func newEnvPool(b pool.EnvBuilder, enableMetrics bool) worker.EnvironmentPool {
	p := pool.NewPool(b, func(err error) {
		logger.Warn("failed to destroy environment", zap.Error(err))
	})
	if enableMetrics {
		p = &metricsEnvPool{p}
	}
	return p
}

func newWorker(conf *config.Config, envPool worker.EnvironmentPool) worker.Worker {
	var observer func(worker.Response)
	if conf.EnableMetrics {
		observer = execObserve
	}
	return worker.New(worker.Config{
		EnvironmentPool:  envPool,
		Parallelism:      conf.Parallelism,
		ExtraMemoryLimit: *conf.ExtraMemoryLimit,
		OutputLimit:      *conf.OutputLimit,
		FileSizeLimit:    *conf.FileSizeLimit,
		OpenFileLimit:    uint64(conf.OpenFileLimit),
		ExecObserver:     observer,
		Logger:           logger,
	})
}

func newLanguageRegistry(conf *config.Config) *language.Registry {
	o, err := language.LoadOverrides(conf.LanguageConf)
	if err != nil {
		logger.Fatal("load language config failed", zap.Error(err))
	}
	if o != nil {
		logger.Info("loaded language overrides", zap.String("path", conf.LanguageConf))
	}
	r, err := language.NewRegistryWithOverrides(o)
	if err != nil {
		logger.Fatal("create language registry failed", zap.Error(err))
	}
	for _, l := range r.Languages() {
		a, _ := r.Get(l)
		fields := []zap.Field{zap.Stringer("language", l), zap.Strings("run", a.Run().Args)}
		if c := a.Compile(); c != nil {
			fields = append(fields, zap.Strings("compile", c.Args))
		}
		logger.Info("language registered", fields...)
	}
	return r
}

func newExecutor(conf *config.Config, work worker.Worker, registry *language.Registry) execution.Executor {
	var e execution.Executor = execution.New(work, registry, execution.Config{
		DefaultTimeout:     conf.DefaultTimeout,
		MaxTimeout:         conf.MaxTimeout,
		CompileTimeout:     conf.CompileTimeout,
		MemoryLimit:        *conf.MemoryLimit,
		CompileMemoryLimit: *conf.CompileMemoryLimit,
		StackLimit:         *conf.StackLimit,
		ProcLimit:          uint64(conf.ProcLimit),
		OutputLimit:        *conf.OutputLimit,
	}, logger)
	if conf.EnableMetrics {
		e = &metricsExecutor{e}
	}
	return e
}

// newTestCaseStore queries the directory first and then redis
func newTestCaseStore(conf *config.Config) (evaluation.TestCaseStore, func() error) {
	var (
		stores  []assignment.Store
		cleanUp func() error
	)
	if conf.TestCaseDir != "" {
		stores = append(stores, assignment.NewFileStore(conf.TestCaseDir))
		logger.Info("Using test case directory", zap.String("dir", conf.TestCaseDir))
	}
	if conf.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: conf.RedisAddr,
			DB:   conf.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis is not reachable, fetching test cases fails until it is", zap.String("addr", conf.RedisAddr), zap.Error(err))
		}
		stores = append(stores, assignment.NewRedisStore(rdb, conf.RedisPrefix))
		cleanUp = rdb.Close
		logger.Info("Using redis test case store", zap.String("addr", conf.RedisAddr))
	}
	if len(stores) == 0 {
		return nil, nil
	}
	return assignment.Chain(stores...), cleanUp
}

func newEvaluator(conf *config.Config, executor execution.Executor, store evaluation.TestCaseStore) evaluator {
	engine := evaluation.New(executor, store, evaluation.Config{
		MaxConcurrentExecutions: conf.Parallelism,
	}, logger)
	if conf.EnableMetrics {
		return &metricsEvaluator{engine}
	}
	return engine
}

func generateHandleVersion() func(*gin.Context) {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"buildVersion": version.Version,
			"goVersion":    runtime.Version(),
			"platform":     runtime.GOARCH,
			"os":           runtime.GOOS,
		})
	}
}

func generateHandleConfig(conf *config.Config, builderParam map[string]any) func(*gin.Context) {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"defaultTimeout":     conf.DefaultTimeout.String(),
			"maxTimeout":         conf.MaxTimeout.String(),
			"compileTimeout":     conf.CompileTimeout.String(),
			"memoryLimit":        conf.MemoryLimit.String(),
			"compileMemoryLimit": conf.CompileMemoryLimit.String(),
			"outputLimit":        conf.OutputLimit.String(),
			"parallelism":        conf.Parallelism,
			"runnerConfig":       builderParam,
		})
	}
}
