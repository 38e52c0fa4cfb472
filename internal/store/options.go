package store

import (
	"log/slog"
	"time"
)

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithWarningHandler 接收不会导致操作失败的警告，例如 *ProjectMasterSyncWarning
func WithWarningHandler(fn func(error)) Option {
	return func(s *Store) {
		s.onWarning = fn
	}
}

// WithRequestTimeout 设置单次网络请求的超时时间
//
// 请求与调用方的 context 取消解耦，保证回滚或对账一定会执行。
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.requestTimeout = d
	}
}
