package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/trezcool/hazira/core/attendance"
)

func (cli *commandLine) slots() error {
	svcs, err := cli.services()
	if err != nil {
		return err
	}
	ctx := context.Background()
	reserved, err := svcs.enrollment.ReservedSlots(ctx)
	if err != nil {
		return err
	}
	available, err := svcs.enrollment.AvailableSlots(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "reserved (%d): %s\n", len(reserved), joinInts(reserved))
	fmt.Fprintf(cli.out, "available (%d): %s\n", len(available), joinInts(available))
	return nil
}

func (cli *commandLine) summary(filter string) error {
	f, err := attendance.ParseTimeFilter(filter)
	if err != nil {
		return err
	}
	svcs, err := cli.services()
	if err != nil {
		return err
	}
	fleet, err := svcs.attendance.Fleet(context.Background(), f, "", nil)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tROLL\tBRANCH\tSEM\tATTENDED\tSCHEDULED\tRATE")
	for _, s := range fleet.Students {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d%%\n",
			s.Name, s.RollNumber, s.Branch, s.Semester, s.TotalAttended, s.TotalScheduled, s.Rate)
	}
	if err = w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "\n%d students, average rate %d%% (%s)\n", len(fleet.Students), fleet.AverageRate, fleet.Filter)
	return nil
}

func (cli *commandLine) cancelEnrollment(yes bool) error {
	svcs, err := cli.services()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pending, ok, err := svcs.enrollment.Pending(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(cli.out, "no pending enrollment")
		return nil
	}

	prompt := fmt.Sprintf("Cancel the enrollment of %s (slot %s)?", pending.Name, pending.ID)
	if err = cli.confirm(yes, prompt); err != nil {
		return err
	}
	if _, err = svcs.enrollment.CancelPending(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "cancelled, slot %s is free\n", pending.ID)
	return nil
}

func (cli *commandLine) deleteEvent(studentKey, eventKey string, yes bool) error {
	svcs, err := cli.services()
	if err != nil {
		return err
	}
	ctx := context.Background()
	s, err := svcs.student.Get(ctx, studentKey)
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf("Delete attendance record %s of %s?", eventKey, s.Name)
	if err = cli.confirm(yes, prompt); err != nil {
		return err
	}
	if err = svcs.student.DeleteEvent(ctx, studentKey, eventKey); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "deleted")
	return nil
}

func (cli *commandLine) normalizeTimestamps(dryRun bool) error {
	svcs, err := cli.services()
	if err != nil {
		return err
	}
	n, err := svcs.attendance.NormalizeTimestamps(context.Background(), dryRun)
	if dryRun {
		fmt.Fprintf(cli.out, "%d timestamps would be rewritten\n", n)
	} else {
		fmt.Fprintf(cli.out, "%d timestamps rewritten\n", n)
	}
	return err
}

func joinInts(ns []int) string {
	strs := make([]string, 0, len(ns))
	for _, n := range ns {
		strs = append(strs, fmt.Sprint(n))
	}
	return strings.Join(strs, ", ")
}
