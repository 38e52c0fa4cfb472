package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/genba-dispatch/dispatch/backend/internal/client"
	"github.com/genba-dispatch/dispatch/backend/internal/config"
	"github.com/genba-dispatch/dispatch/backend/internal/conflict"
	"github.com/genba-dispatch/dispatch/backend/internal/domain"
	"github.com/genba-dispatch/dispatch/backend/internal/presence"
	"github.com/genba-dispatch/dispatch/backend/internal/reorder"
	"github.com/genba-dispatch/dispatch/backend/internal/store"
)

func main() {
	// 日志写到 stderr，stdout 留给看板输出
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type options struct {
	onConflict string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "board",
		Short:        "在命令行中查看和调整排班看板",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.onConflict, "on-conflict", string(conflict.StrategyCancel), "发生冲突时的处理方式: reload | overwrite | cancel")

	cmd.AddCommand(
		newWeekCmd(opts),
		newMoveCmd(opts),
		newShiftCmd(opts, "up", "与格子内的上一条交换位置", -1),
		newShiftCmd(opts, "down", "与格子内的下一条交换位置", 1),
		newConfirmCmd(opts),
		newExportCmd(opts),
		newWatchCmd(opts),
	)
	return cmd
}

// session 把客户端的各个部分串起来：client → store → conflict controller → reorder coordinator
type session struct {
	cfg         *config.ClientConfig
	api         *client.Client
	store       *store.Store
	controller  *conflict.Controller
	coordinator *reorder.Coordinator
	tracker     *presence.Tracker
	strategy    conflict.Strategy
	out         io.Writer
}

func openSession(cmd *cobra.Command, opts *options) (*session, error) {
	strategy := conflict.Strategy(opts.onConflict)
	if !slices.Contains(conflict.Strategies, strategy) {
		return nil, fmt.Errorf("%w: %q", conflict.ErrUnknownStrategy, opts.onConflict)
	}

	// 读取配置文件
	cfg, err := config.LoadClientConfig()
	if err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	self, err := client.Identity(cfg.API.Token)
	if err != nil {
		return nil, err
	}

	logger := slog.Default()
	out := cmd.OutOrStdout()
	timeout := time.Duration(cfg.API.RequestTimeout) * time.Second

	api := client.New(cfg.API.BaseURL, cfg.API.Token, client.WithTimeout(timeout))
	s := store.New(api,
		store.WithLogger(logger),
		store.WithRequestTimeout(timeout),
		store.WithWarningHandler(func(err error) {
			fmt.Fprintf(out, "警告: %v\n", err)
		}),
	)
	controller := conflict.New(s, logger)

	return &session{
		cfg:         cfg,
		api:         api,
		store:       s,
		controller:  controller,
		coordinator: reorder.New(s, controller, logger),
		tracker:     presence.NewTracker(api, self, logger),
		strategy:    strategy,
		out:         out,
	}, nil
}

// load 加载 [start, end] 范围内的排班
func (s *session) load(ctx context.Context, start, end domain.Date) error {
	if end.Before(start.Time) {
		start, end = end, start
	}
	return s.store.FetchRange(ctx, &start, &end)
}

func (s *session) lookup(id string) (domain.Assignment, error) {
	a, ok := s.store.Get(id)
	if !ok {
		return domain.Assignment{}, fmt.Errorf("排班 %s 不在加载的日期范围内，请用 --start 指定所在的周: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

// edit 在编辑期间登记编辑状态，并提示同时在编辑的其他人
func (s *session) edit(ctx context.Context, id string, fn func() error) error {
	for _, e := range s.tracker.EditorsOf(ctx, id) {
		fmt.Fprintf(s.out, "提示: %s 也在编辑这条排班\n", e.Name)
	}

	s.tracker.StartEditing(ctx, id)
	defer s.tracker.StopEditing(context.WithoutCancel(ctx))

	return s.settle(ctx, fn())
}

// settle 在发生冲突时展示差异，并按 --on-conflict 处理
//
// 只有 overwrite 成功时才视为修改已生效，其余情况仍返回原来的冲突错误。
func (s *session) settle(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	modal := s.controller.Modal()
	if !modal.Open {
		return err
	}

	fmt.Fprintf(s.out, "冲突: %s\n", modal.Message)
	fmt.Fprintf(s.out, "涉及的排班: %s\n", strings.Join(modal.TargetIDs, ", "))
	if patch, diffErr := s.controller.Diff(); diffErr != nil {
		slog.Warn("无法比较差异", "error", diffErr)
	} else {
		for _, op := range patch {
			fmt.Fprintf(s.out, "  %s %s %v\n", op.Type, op.Path, op.Value)
		}
	}

	if resolveErr := s.controller.Resolve(ctx, s.strategy); resolveErr != nil {
		return errors.Join(err, resolveErr)
	}
	fmt.Fprintf(s.out, "已按 %s 处理冲突\n", s.strategy)

	if s.strategy == conflict.StrategyOverwrite {
		return nil
	}
	return err
}

func mondayOf(t time.Time) domain.Date {
	d := domain.DateOf(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

func parseStart(s string) (domain.Date, error) {
	if s == "" {
		return mondayOf(time.Now()), nil
	}
	return domain.ParseDate(s)
}
