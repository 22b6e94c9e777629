package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/domain/task"
)

func newTasksCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and repair tasks",
	}
	cmd.AddCommand(newTasksListCommand(cc))
	cmd.AddCommand(newTasksHistoryCommand(cc))
	cmd.AddCommand(newTasksVerifyCommand(cc))
	cmd.AddCommand(newTasksReconcileCommand(cc))
	cmd.AddCommand(newRecurrenceCommand(cc))
	return cmd
}

func newTasksListCommand(cc *commandContext) *cobra.Command {
	var (
		f      task.ListFilter
		status string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a tenant's tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := cc.tenant()
			if err != nil {
				return err
			}
			engine, err := cc.engine(cmd.Context())
			if err != nil {
				return err
			}
			f.Status = task.Status(status)
			tasks, err := engine.Tasks.List(cmd.Context(), tenantID, f)
			if err != nil {
				return err
			}

			asJSON, err := cc.wantJSON(cmd)
			if err != nil {
				return err
			}
			if asJSON {
				if tasks == nil {
					tasks = []task.Task{}
				}
				return writeJSON(cmd, tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks found.")
				return nil
			}
			rows := make([][]string, 0, len(tasks))
			for i := range tasks {
				t := &tasks[i]
				rows = append(rows, []string{
					t.ID, t.Title, string(t.Status), string(t.Priority),
					formatDate(t.DueDate), strconv.Itoa(t.Occurrence), t.ParentTaskID,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(),
				[]string{"ID", "TITLE", "STATUS", "PRIORITY", "DUE", "OCC", "PARENT"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only tasks in this status")
	cmd.Flags().StringVar(&f.CostCenterID, "cost-center", "", "Only tasks booked on this cost center")
	cmd.Flags().StringVar(&f.ParentTaskID, "parent", "", "Only successors of this task")
	cmd.Flags().BoolVar(&f.IncludeDeleted, "include-deleted", false, "Include soft-deleted tasks")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "Maximum number of tasks (0 = all)")
	return cmd
}

func newTasksHistoryCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <task-id>",
		Short: "Print a task's audit trail in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := cc.tenant()
			if err != nil {
				return err
			}
			engine, err := cc.engine(cmd.Context())
			if err != nil {
				return err
			}
			asJSON, err := cc.wantJSON(cmd)
			if err != nil {
				return err
			}

			var (
				events []history.Event
				rows   [][]string
			)
			for ev, err := range engine.History.List(cmd.Context(), tenantID, args[0]) {
				if err != nil {
					return err
				}
				if asJSON {
					events = append(events, ev)
					continue
				}
				rows = append(rows, []string{
					ev.At.Format(time.RFC3339), string(ev.Action), string(ev.ActorType) + ":" + ev.ActorID,
					transition(ev.PrevStatus, ev.NewStatus), ev.AssignmentID, ev.Reason,
				})
			}
			if asJSON {
				if events == nil {
					events = []history.Event{}
				}
				return writeJSON(cmd, events)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(),
				[]string{"AT", "ACTION", "ACTOR", "STATUS", "ASSIGNMENT", "REASON"}, rows, nil))
			return nil
		},
	}
}

func newTasksVerifyCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <task-id>",
		Short: "Rebuild a task's state from history and compare it with the stored state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := cc.tenant()
			if err != nil {
				return err
			}
			engine, err := cc.engine(cmd.Context())
			if err != nil {
				return err
			}
			v, err := engine.History.Verify(cmd.Context(), tenantID, args[0])
			if err != nil {
				return err
			}

			asJSON, err := cc.wantJSON(cmd)
			if err != nil {
				return err
			}
			if asJSON {
				if err := writeJSON(cmd, v); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "task %s: %d events, %d status transitions\n",
					v.TaskID, v.Events, v.StatusTransitions)
				if len(v.Mismatches) > 0 {
					rows := make([][]string, 0, len(v.Mismatches))
					for _, m := range v.Mismatches {
						rows = append(rows, []string{m.Subject, m.Cached, m.Projected})
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(),
						[]string{"SUBJECT", "STORED", "FROM HISTORY"}, rows, nil))
				}
			}
			if !v.Consistent() {
				return fmt.Errorf("task %s: %d mismatches between stored state and history", v.TaskID, len(v.Mismatches))
			}
			return nil
		},
	}
}

func newTasksReconcileCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <task-id>",
		Short: "Re-derive a task's status from its assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := cc.caller()
			if err != nil {
				return err
			}
			engine, err := cc.engine(cmd.Context())
			if err != nil {
				return err
			}
			t, err := engine.Status.Reconcile(cmd.Context(), caller, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %s is %s\n", t.ID, t.Status)
			return nil
		},
	}
}

func newRecurrenceCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurrence",
		Short: "Manage recurring task series",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "retry <task-id>",
		Short: "Create the successor of a terminal recurring task if it is missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := cc.caller()
			if err != nil {
				return err
			}
			engine, err := cc.engine(cmd.Context())
			if err != nil {
				return err
			}
			succ, err := engine.Recurrence.OnTerminalStatus(cmd.Context(), caller, args[0])
			if err != nil {
				return fmt.Errorf("spawn successor: %w", err)
			}
			if succ == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "series of %s has ended\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "successor %s (occurrence %d, start %s, due %s)\n",
				succ.ID, succ.Occurrence, formatDate(succ.EstimatedStartDate), formatDate(succ.DueDate))
			return nil
		},
	})
	return cmd
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

func transition(from, to string) string {
	switch {
	case from == "" && to == "":
		return ""
	case from == "":
		return to
	default:
		return from + " -> " + to
	}
}
