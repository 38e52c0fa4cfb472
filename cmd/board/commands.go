package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
	"github.com/genba-dispatch/dispatch/backend/internal/export"
)

const weekDays = 7

func newWeekCmd(opts *options) *cobra.Command {
	var start string

	cmd := &cobra.Command{
		Use:   "week",
		Short: "显示一周的排班",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseStart(start)
			if err != nil {
				return err
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if err := s.load(ctx, date, date.AddDays(weekDays-1)); err != nil {
				return err
			}
			employees, err := s.api.ListEmployees(ctx, "")
			if err != nil {
				return err
			}
			printWeek(s.out, employees, s.store.Events(), date)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "开始日期 (YYYY-MM-DD)，默认为本周一")
	return cmd
}

// printWeek 按日期、职长分组输出，events 需已按渲染顺序排列
func printWeek(w io.Writer, employees []domain.Employee, events []domain.CalendarEvent, start domain.Date) {
	names := make(map[string]string, len(employees)+1)
	for _, e := range employees {
		names[e.ID] = e.FullName
	}
	names[domain.UnassignedEmployeeID] = "未分配"

	byDay := make(map[domain.Date][]domain.CalendarEvent)
	for _, ev := range events {
		byDay[ev.Date] = append(byDay[ev.Date], ev)
	}

	for i := 0; i < weekDays; i++ {
		date := start.AddDays(i)
		fmt.Fprintln(w, export.DayHeader(date))

		list := byDay[date]
		if len(list) == 0 {
			fmt.Fprintln(w, "  （无）")
			continue
		}
		employee := ""
		for _, ev := range list {
			if ev.AssignedEmployeeID != employee {
				employee = ev.AssignedEmployeeID
				name, ok := names[employee]
				if !ok {
					name = employee
				}
				fmt.Fprintf(w, "  %s\n", name)
			}
			fmt.Fprintf(w, "    [%s] %s\n", ev.ID, export.Describe(ev))
		}
	}
}

func newMoveCmd(opts *options) *cobra.Command {
	var (
		id       string
		employee string
		date     string
		position int
		start    string
	)

	cmd := &cobra.Command{
		Use:   "move",
		Short: "把一条排班移到某个职长某一天的第几个位置",
		RunE: func(cmd *cobra.Command, args []string) error {
			week, err := parseStart(start)
			if err != nil {
				return err
			}
			target, err := domain.ParseDate(date)
			if err != nil {
				return err
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			// 同时加载原来所在的周和目标日期
			from, to := week, week.AddDays(weekDays-1)
			if target.Before(from.Time) {
				from = target
			}
			if target.After(to.Time) {
				to = target
			}
			if err := s.load(ctx, from, to); err != nil {
				return err
			}
			if _, err := s.lookup(id); err != nil {
				return err
			}

			return s.edit(ctx, id, func() error {
				n, err := s.coordinator.MoveTo(ctx, id, employee, target, position)
				if err != nil {
					return err
				}
				fmt.Fprintf(s.out, "已更新 %d 条排班\n", n)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "排班 ID")
	cmd.Flags().StringVar(&employee, "employee", domain.UnassignedEmployeeID, "目标职长 ID")
	cmd.Flags().StringVar(&date, "date", "", "目标日期 (YYYY-MM-DD)")
	cmd.Flags().IntVar(&position, "position", 0, "在目标格子中的位置，从 0 开始")
	cmd.Flags().StringVar(&start, "start", "", "排班所在周的周一，默认为本周一")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("date")
	return cmd
}

func newShiftCmd(opts *options, use, short string, delta int) *cobra.Command {
	var (
		id    string
		start string
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			week, err := parseStart(start)
			if err != nil {
				return err
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if err := s.load(ctx, week, week.AddDays(weekDays-1)); err != nil {
				return err
			}
			if _, err := s.lookup(id); err != nil {
				return err
			}

			return s.edit(ctx, id, func() error {
				if delta < 0 {
					return s.coordinator.MoveUp(ctx, id)
				}
				return s.coordinator.MoveDown(ctx, id)
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "排班 ID")
	cmd.Flags().StringVar(&start, "start", "", "排班所在周的周一，默认为本周一")
	cmd.MarkFlagRequired("id")
	return cmd
}

func newConfirmCmd(opts *options) *cobra.Command {
	var (
		id    string
		start string
		undo  bool
	)

	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "确认派遣，职长会收到邮件通知",
		RunE: func(cmd *cobra.Command, args []string) error {
			week, err := parseStart(start)
			if err != nil {
				return err
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if err := s.load(ctx, week, week.AddDays(weekDays-1)); err != nil {
				return err
			}
			if _, err := s.lookup(id); err != nil {
				return err
			}

			confirmed := !undo
			return s.edit(ctx, id, func() error {
				a, err := s.controller.Update(ctx, id, domain.AssignmentPatch{IsDispatchConfirmed: &confirmed})
				if err != nil {
					return err
				}
				fmt.Fprintf(s.out, "[%s] isDispatchConfirmed=%t\n", a.ID, a.IsDispatchConfirmed)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "排班 ID")
	cmd.Flags().StringVar(&start, "start", "", "排班所在周的周一，默认为本周一")
	cmd.Flags().BoolVar(&undo, "undo", false, "取消确认")
	cmd.MarkFlagRequired("id")
	return cmd
}

func newExportCmd(opts *options) *cobra.Command {
	var (
		start string
		days  int
		out   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "把排班导出为 Excel 文件",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseStart(start)
			if err != nil {
				return err
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if err := s.load(ctx, date, date.AddDays(days-1)); err != nil {
				return err
			}
			foremen, err := s.api.ListEmployees(ctx, domain.RoleForeman)
			if err != nil {
				return err
			}

			if out == "" {
				out = fmt.Sprintf("dispatch-%s.xlsx", date)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()

			if err := export.WriteWeek(f, foremen, s.store.Events(), date, days); err != nil {
				return err
			}
			fmt.Fprintf(s.out, "已导出到 %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "开始日期 (YYYY-MM-DD)，默认为本周一")
	cmd.Flags().IntVar(&days, "days", weekDays, "导出的天数")
	cmd.Flags().StringVarP(&out, "out", "o", "", "输出文件，默认为 dispatch-<开始日期>.xlsx")
	return cmd
}

func newWatchCmd(opts *options) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "登记正在编辑某条排班，并持续显示其他编辑者，Ctrl+C 退出",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			interval := time.Duration(s.cfg.Presence.Heartbeat) * time.Second

			s.tracker.StartEditing(ctx, id)

			done := make(chan struct{})
			go func() {
				defer close(done)
				s.tracker.Run(ctx, interval)
			}()

			watchEditors(ctx, s, id, interval)
			<-done
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "排班 ID")
	cmd.MarkFlagRequired("id")
	return cmd
}

func watchEditors(ctx context.Context, s *session, id string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		editors := s.tracker.EditorsOf(ctx, id)
		if len(editors) == 0 {
			fmt.Fprintln(s.out, "没有其他人在编辑")
		}
		for _, e := range editors {
			fmt.Fprintf(s.out, "%s 正在编辑\n", e.Name)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
