package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
	"github.com/genba-dispatch/dispatch/backend/internal/handler"
	"github.com/genba-dispatch/dispatch/backend/internal/seed"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "把数据库结构升级到最新版本",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, dbpool, repo, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer dbpool.Close()

			return repo.Migrate(cmd.Context())
		},
	}
}

func newEmployeesCmd() *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "employees",
		Short: "插入随机员工（第一个为调度）",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, dbpool, repo, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer dbpool.Close()

			if !cmd.Flags().Changed("n") {
				n = cfg.Seed.Employees
			}
			_, err = seed.SeedEmployees(cmd.Context(), repo, n, cfg.Email.UserDomain)
			return err
		},
	}

	cmd.Flags().IntVarP(&n, "n", "n", 0, "要插入的员工数量，默认取 SEED_EMPLOYEES")
	return cmd
}

func newProjectsCmd() *cobra.Command {
	var (
		n         int
		importCSV bool
		file      string
	)

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "插入随机工地，或用 --import 从 CSV 导入",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, dbpool, repo, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer dbpool.Close()

			if importCSV {
				if file == "" {
					file = cfg.Seed.CSV
				}
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()

				_, err = seed.ImportProjectMasters(cmd.Context(), repo, f)
				return err
			}

			if !cmd.Flags().Changed("n") {
				n = cfg.Seed.Projects
			}
			_, err = seed.SeedProjectMasters(cmd.Context(), repo, n)
			return err
		},
	}

	cmd.Flags().IntVarP(&n, "n", "n", 0, "要插入的工地数量，默认取 SEED_PROJECTS")
	cmd.Flags().BoolVar(&importCSV, "import", false, "从 CSV 导入工地")
	cmd.Flags().StringVar(&file, "file", "", "CSV 文件路径，默认取 SEED_CSV")
	return cmd
}

func newWeekCmd() *cobra.Command {
	var (
		start string
		weeks int
	)

	cmd := &cobra.Command{
		Use:   "week",
		Short: "为所有职长生成排班",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := domain.ParseDate(start)
			if err != nil {
				return err
			}

			cfg, dbpool, repo, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer dbpool.Close()

			if !cmd.Flags().Changed("weeks") {
				weeks = cfg.Seed.Weeks
			}
			_, err = seed.SeedWeeks(cmd.Context(), repo, date, weeks)
			return err
		},
	}

	cmd.Flags().StringVar(&start, "start", mondayOf(time.Now()).String(), "开始日期 (YYYY-MM-DD)，默认为本周一")
	cmd.Flags().IntVar(&weeks, "weeks", 0, "生成的周数，默认取 SEED_WEEKS")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		username string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "为员工签发访问令牌，默认为第一个调度",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, dbpool, repo, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer dbpool.Close()

			employees, err := repo.GetEmployees(cmd.Context(), "")
			if err != nil {
				return err
			}

			var target *domain.Employee
			for _, e := range employees {
				if (username != "" && e.Username == username) || (username == "" && e.Role == domain.RoleDispatcher) {
					target = e
					break
				}
			}
			if target == nil {
				return errors.New("没有找到对应的员工")
			}

			if ttl == 0 {
				ttl = time.Duration(cfg.JWT.Expiration) * time.Hour
			}
			token, err := handler.SignToken(cfg.JWT.Secret, target, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "员工用户名")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "有效期，默认取 JWT_EXPIRATION")
	return cmd
}

func mondayOf(t time.Time) domain.Date {
	d := domain.DateOf(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}
