// Package seed 往数据库里填充开发和演示用的数据
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
	"github.com/genba-dispatch/dispatch/backend/internal/utils"
)

// Repository 是 seed 用到的写入操作，由 *repository.Repository 实现
type Repository interface {
	CreateEmployee(ctx context.Context, employee *domain.Employee) error
	GetEmployees(ctx context.Context, role domain.Role) ([]*domain.Employee, error)
	CreateProjectMaster(ctx context.Context, in domain.ProjectMasterInput) (domain.ProjectMaster, error)
	GetProjectMasters(ctx context.Context, title string) ([]domain.ProjectMaster, error)
	BatchCreateAssignments(ctx context.Context, ins []domain.AssignmentInput) ([]domain.Assignment, error)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.ConstraintName == constraint
}

// SeedEmployees 插入 n 个随机员工：一个调度，其余职长和作业员大约各占一半
func SeedEmployees(ctx context.Context, r Repository, n int, emailDomain string) (int, error) {
	if n <= 0 {
		return 0, errors.New("请输入合法的员工数量")
	}

	cnt := 0
	for i := 0; i < n; i++ {
		role := domain.RoleWorker
		switch {
		case i == 0:
			role = domain.RoleDispatcher
		case i%2 == 1:
			role = domain.RoleForeman
		}

		employee := utils.GenerateRandomEmployee(role, emailDomain)
		if err := r.CreateEmployee(ctx, employee); err != nil {
			if isUniqueViolation(err, "employees_username_key") {
				slog.Warn("用户名重复，跳过", "username", employee.Username)
				continue
			}
			return cnt, err
		}
		cnt++
	}

	slog.Info("插入员工完成", "count", cnt)
	return cnt, nil
}

func SeedProjectMasters(ctx context.Context, r Repository, n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("请输入合法的工地数量")
	}

	cnt := 0
	for i := 0; i < n; i++ {
		in := utils.GenerateRandomProjectMaster()
		if _, err := r.CreateProjectMaster(ctx, in); err != nil {
			if isUniqueViolation(err, "project_masters_title_key") {
				continue
			}
			return cnt, err
		}
		cnt++
	}

	slog.Info("插入工地完成", "count", cnt)
	return cnt, nil
}

var projectCSVHeaders = []string{"工地名称", "客户", "施工类别", "内容", "负责人"}

// ImportProjectMasters 从 CSV 导入工地，已存在的标题会被跳过；负责人之间用 "、" 分隔
func ImportProjectMasters(ctx context.Context, r Repository, src io.Reader) (int, error) {
	reader := csv.NewReader(src)

	// 读取表头
	headers, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("读取表头失败: %w", err)
	}
	index := make(map[string]int, len(headers))
	for i, header := range headers {
		index[strings.TrimSpace(header)] = i
	}
	for _, required := range projectCSVHeaders {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("没有找到列 %s", required)
		}
	}

	cnt := 0
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return cnt, fmt.Errorf("读取第 %d 行失败: %w", line, err)
		}

		in := domain.ProjectMasterInput{
			Title:            strings.TrimSpace(row[index["工地名称"]]),
			Customer:         strings.TrimSpace(row[index["客户"]]),
			ConstructionType: strings.TrimSpace(row[index["施工类别"]]),
			ContentType:      strings.TrimSpace(row[index["内容"]]),
			Managers:         []string{},
		}
		if in.Title == "" {
			slog.Warn("工地名称为空，跳过", "line", line)
			continue
		}
		for _, m := range strings.Split(row[index["负责人"]], "、") {
			if m = strings.TrimSpace(m); m != "" {
				in.Managers = append(in.Managers, m)
			}
		}

		existing, err := r.GetProjectMasters(ctx, in.Title)
		if err != nil {
			return cnt, err
		}
		if len(existing) > 0 {
			continue
		}

		if _, err := r.CreateProjectMaster(ctx, in); err != nil {
			return cnt, fmt.Errorf("插入第 %d 行失败: %w", line, err)
		}
		cnt++
	}

	slog.Info("导入工地完成", "count", cnt)
	return cnt, nil
}

// SeedWeeks 从 start 开始为每个职长生成 weeks 周的排班，周日休息
func SeedWeeks(ctx context.Context, r Repository, start domain.Date, weeks int) (int, error) {
	if weeks <= 0 {
		return 0, errors.New("请输入合法的周数")
	}

	foremen, err := r.GetEmployees(ctx, domain.RoleForeman)
	if err != nil {
		return 0, err
	}
	workerEmployees, err := r.GetEmployees(ctx, domain.RoleWorker)
	if err != nil {
		return 0, err
	}
	masters, err := r.GetProjectMasters(ctx, "")
	if err != nil {
		return 0, err
	}
	if len(foremen) == 0 || len(masters) == 0 {
		return 0, errors.New("请先插入职长和工地")
	}

	workers := make([]string, 0, len(workerEmployees))
	for _, w := range workerEmployees {
		workers = append(workers, w.FullName)
	}

	cnt := 0
	for day := 0; day < weeks*7; day++ {
		date := start.AddDays(day)
		if date.Weekday() == time.Sunday {
			continue
		}

		inputs := []domain.AssignmentInput{}
		for _, foreman := range foremen {
			sites := utils.GenerateRandomSubset(masters)
			if len(sites) > 2 {
				sites = sites[:2]
			}
			for order, pm := range sites {
				inputs = append(inputs, utils.GenerateRandomAssignment(pm.ID, foreman, workers, date, order))
			}
		}

		// 留一条未分配的，方便在看板上拖动
		pm := masters[rand.Intn(len(masters))]
		unassigned := utils.GenerateRandomAssignment(pm.ID, &domain.Employee{ID: domain.UnassignedEmployeeID}, workers, date, 0)
		inputs = append(inputs, unassigned)

		created, err := r.BatchCreateAssignments(ctx, inputs)
		if err != nil {
			return cnt, fmt.Errorf("插入 %s 的排班失败: %w", date, err)
		}
		cnt += len(created)
	}

	slog.Info("插入排班完成", "count", cnt)
	return cnt, nil
}
