package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 积分发放（按动作类型）
	PointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamification_points_awarded_total",
			Help: "Points credited to users, by action",
		},
		[]string{"action"},
	)

	// 徽章发放结果：awarded / duplicate / failed
	BadgeAwards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamification_badge_awards_total",
			Help: "Badge award attempts, by badge kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	BadgeCASConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gamification_badge_cas_conflicts_total",
			Help: "Badge writes that lost a compare-and-set race and were retried",
		},
	)

	VisitTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamification_visit_transitions_total",
			Help: "Community visit streak state transitions",
		},
		[]string{"transition"},
	)

	RewardTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamification_reward_tasks_total",
			Help: "Post-commit reward tasks, by outcome",
		},
		[]string{"outcome"},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			PointsAwarded,
			BadgeAwards,
			BadgeCASConflicts,
			VisitTransitions,
			RewardTasks,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
