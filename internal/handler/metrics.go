package handler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	conflictKindSingle = "single"
	conflictKindBatch  = "batch"
)

var (
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP 请求处理耗时",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	writeConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "assignments",
			Name:      "write_conflicts_total",
			Help:      "因 updatedAt 不一致而拒绝的写入次数",
		},
		[]string{"kind"},
	)

	dispatchNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "assignments",
			Name:      "dispatch_notifications_total",
			Help:      "出勤确定通知的入队结果",
		},
		[]string{"result"},
	)
)

func observeRequest(method, route, status string, d time.Duration) {
	requestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

func recordWriteConflict(kind string) {
	writeConflicts.WithLabelValues(kind).Inc()
}

func recordDispatchNotification(result string) {
	dispatchNotifications.WithLabelValues(result).Inc()
}
