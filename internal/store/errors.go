package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingProject  = errors.New("必须指定工地或工地名称")
	ErrDuplicateUpdate = errors.New("同一批次中存在重复的 assignment")
	ErrEmptyDraft      = errors.New("排程中没有任何日期")
	ErrNotInitialized  = errors.New("store 尚未加载数据")
)

// ProjectMasterSyncWarning 表示 assignment 已经写入成功，但随后对 project master 的写入失败了
//
// 这种情况下 assignment 不会回滚，两者可能暂时不一致。
type ProjectMasterSyncWarning struct {
	ProjectMasterID string
	AssignmentIDs   []string
	Err             error
}

func (w *ProjectMasterSyncWarning) Error() string {
	return fmt.Sprintf("工地 %s 的信息同步失败（assignment: %s）: %v", w.ProjectMasterID, strings.Join(w.AssignmentIDs, ","), w.Err)
}

func (w *ProjectMasterSyncWarning) Unwrap() error {
	return w.Err
}
