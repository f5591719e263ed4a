package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// 连接指标
	Connected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brightness_agent_connected",
		Help: "与控制端的连接状态（1=已连接）",
	})

	BytesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brightness_agent_bytes_received_total",
		Help: "接收的字节总数",
	})

	BytesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brightness_agent_bytes_sent_total",
		Help: "发送的字节总数",
	})

	// 协议指标
	MessagesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brightness_agent_messages_decoded_total",
			Help: "解码成功的消息数",
		},
		[]string{"type"},
	)

	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brightness_agent_errors_total",
			Help: "按类别统计的错误数",
		},
		[]string{"kind"},
	)

	// 采样指标
	ScoresSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brightness_agent_scores_sent_total",
		Help: "上报的亮度分数个数",
	})

	LastScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brightness_agent_last_score",
		Help: "最近一次计算的画面亮度（0~255）",
	})

	TargetBrightness = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brightness_agent_target_brightness_percent",
		Help: "最近一次应用的目标亮度",
	})

	SampleInterval = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brightness_agent_sample_interval_seconds",
		Help: "当前采样间隔",
	})

	// 延迟指标
	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "brightness_agent_cycle_duration_seconds",
		Help:    "单个采样周期耗时（不含休眠）",
		Buckets: prometheus.DefBuckets,
	})

	ApplyLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "brightness_agent_apply_latency_seconds",
		Help:    "目标亮度从收到到应用的耗时",
		Buckets: prometheus.DefBuckets,
	})

	// Goroutine指标
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brightness_agent_goroutines",
		Help: "当前Goroutine数量",
	})

	// 内存指标
	MemoryUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brightness_agent_memory_usage_bytes",
		Help: "内存使用量",
	})
)

var registerOnce sync.Once

type Monitor struct {
	log    *logrus.Logger
	server *http.Server
}

func NewMonitor(log *logrus.Logger) *Monitor {
	// 注册指标
	registerOnce.Do(func() {
		prometheus.MustRegister(
			Connected,
			BytesReceived,
			BytesSent,
			MessagesDecoded,
			Errors,
			ScoresSent,
			LastScore,
			TargetBrightness,
			SampleInterval,
			CycleDuration,
			ApplyLatency,
			GoroutineCount,
			MemoryUsage,
		)
	})

	return &Monitor{log: log}
}

// Handler 返回/metrics与/health路由
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	// 健康检查端点
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// StartMetricsServer 启动Metrics HTTP服务器
func (m *Monitor) StartMetricsServer(port int) {
	addr := fmt.Sprintf(":%d", port)
	m.server = &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.log.Infof("Metrics服务器启动: %s", addr)

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Errorf("Metrics服务器错误: %v", err)
		}
	}()
}

// StartRuntimeMonitor 启动运行时监控，ctx结束时停止
func (m *Monitor) StartRuntimeMonitor(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.collectRuntime()
			}
		}
	}()
}

func (m *Monitor) collectRuntime() {
	// 更新Goroutine数量
	GoroutineCount.Set(float64(runtime.NumGoroutine()))

	// 更新内存使用
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	MemoryUsage.Set(float64(memStats.Alloc))

	m.log.Debugf("Goroutines: %d, 内存: %.2f MB",
		runtime.NumGoroutine(),
		float64(memStats.Alloc)/1024/1024,
	)
}

// Shutdown 关闭Metrics服务器
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
