package domain

import "errors"

var ErrNotFound = errors.New("记录不存在")

// ConflictError 表示写入基于过期的 updatedAt，LatestData 是服务端当前的权威记录
type ConflictError struct {
	Message    string      `json:"error"`
	LatestData *Assignment `json:"latestData"`
}

func (e *ConflictError) Error() string {
	if e.Message == "" {
		return "数据已被其他用户修改"
	}
	return e.Message
}

func NewConflictError(latest *Assignment) *ConflictError {
	return &ConflictError{
		Message:    "该排班已被其他用户修改，请选择重新加载、覆盖或取消",
		LatestData: latest,
	}
}
