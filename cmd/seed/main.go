package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/genba-dispatch/dispatch/backend/internal/config"
	"github.com/genba-dispatch/dispatch/backend/internal/repository"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "填充开发用的员工、工地和排班数据",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newMigrateCmd(),
		newEmployeesCmd(),
		newProjectsCmd(),
		newWeekCmd(),
		newTokenCmd(),
	)
	return cmd
}

// connect 读取配置并连接数据库，调用方负责关闭连接池
func connect(ctx context.Context) (*config.Config, *sql.DB, *repository.Repository, error) {
	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("无法创建数据库连接池: %w", err)
	}

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(pingCtx); err != nil {
		dbpool.Close()
		return nil, nil, nil, fmt.Errorf("无法连接到数据库: %w", err)
	}

	return cfg, dbpool, repository.NewRepository(cfg, dbpool), nil
}
