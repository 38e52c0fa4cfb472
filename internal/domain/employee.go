package domain

import (
	"time"
)

type Role string

const (
	RoleForeman    Role = "职长"
	RoleWorker     Role = "作业员"
	RoleDispatcher Role = "调度"
)

// Employee 是可以被分配到 assignment 上的人员，职长的 ID 即 assignedEmployeeId
type Employee struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}
