package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"brightness-agent/internal/actuator"
	"brightness-agent/internal/agent"
	"brightness-agent/internal/capture"
	"brightness-agent/internal/config"
	"brightness-agent/internal/monitor"
	"brightness-agent/internal/storage"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// 命令行参数
	fs := flag.NewFlagSet("agent", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "configs/agent.yaml", "配置文件路径")
	showVersion := fs.Bool("version", false, "显示版本信息")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "用法: agent [--config file] [--version] <端口或服务名>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// 显示版本
	if *showVersion {
		fmt.Fprintf(stdout, "Brightness Agent v%s (Build: %s)\n", Version, BuildTime)
		return 0
	}

	// 加载配置
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "加载配置失败: %v\n", err)
		cfg = config.GetDefaultConfig()
		fmt.Fprintln(stderr, "使用默认配置")
	}

	if fs.NArg() > 0 {
		cfg.Controller.Port = fs.Arg(0)
	}
	if cfg.Controller.Port == "" {
		fs.Usage()
		return 2
	}

	// 初始化日志
	log := setupLogger(cfg.Log, stdout)
	log.Infof("Brightness Agent v%s 启动中...", Version)
	log.Infof("配置文件: %s", *configFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	capturer, err := capture.New(cfg.Capture)
	if err != nil {
		log.Errorf("创建截屏源失败: %v", err)
		return 1
	}
	act, err := actuator.New(cfg.Actuator, log)
	if err != nil {
		log.Errorf("创建亮度执行器失败: %v", err)
		return 1
	}

	var opts []agent.Option
	if cfg.Redis.Enabled {
		mq, err := storage.NewMessageQueue(cfg.Redis, log)
		if err != nil {
			log.Warnf("Redis不可用，禁用遥测: %v", err)
		} else {
			defer mq.Close()
			opts = append(opts, agent.WithSampleSink(mq))
		}
	}

	// 启动监控
	if cfg.Monitor.Enabled {
		mon := monitor.NewMonitor(log)
		mon.StartMetricsServer(cfg.Monitor.MetricsPort)
		mon.StartRuntimeMonitor(ctx)
		defer stopMonitor(mon, log, 3*time.Second)
	}

	a := agent.NewAgent(cfg, log, capturer, act, opts...)
	log.Infof("会话ID: %s", a.SessionID())

	if err := a.Run(ctx); err != nil {
		log.Errorf("代理退出: %v", err)
		return 1
	}
	log.Info("代理已关闭")
	return 0
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// stopMonitor 在超时内关闭Metrics服务器
func stopMonitor(mon shutdowner, log *logrus.Logger, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := mon.Shutdown(ctx); err != nil {
		log.Warnf("关闭Metrics服务器失败: %v", err)
	}
}

func setupLogger(cfg config.LogConfig, stdout io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(stdout)

	// 设置日志级别
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	// 设置日志格式
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	// 设置输出
	if cfg.Output == "file" && cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Warnf("打开日志文件失败: %v, 使用标准输出", err)
		}
	}

	return log
}
