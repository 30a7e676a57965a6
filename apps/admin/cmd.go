package main

import (
	"bufio"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/core/attendance"
	"github.com/trezcool/hazira/core/branch"
	"github.com/trezcool/hazira/core/enrollment"
	"github.com/trezcool/hazira/core/lecture"
	"github.com/trezcool/hazira/core/student"
	"github.com/trezcool/hazira/core/teacher"
)

var (
	confirmFunc = confirm // mockable

	errHelp        = errors.New("help provided")
	errAborted     = errors.New("aborted")
	errNotTerminal = errors.New("stdin is not a terminal, pass -yes to confirm")
)

type (
	commandLine struct {
		out       io.Writer
		openDB    func() (*sql.DB, string, error)
		openStore func() (core.TreeStore, error)

		store core.TreeStore
		svcs  *services
	}

	services struct {
		enrollment *enrollment.Service
		student    *student.Service
		attendance *attendance.Service
	}
)

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                            - run a goose migration command on the SQL store")
	fmt.Fprintln(cli.out, "  slots                                             - list reserved and available fingerprint slots")
	fmt.Fprintln(cli.out, "  summary [-filter FILTER]                          - print every student's attendance")
	fmt.Fprintln(cli.out, "  cancel-enrollment [-yes]                          - cancel the pending enrollment and free its slot")
	fmt.Fprintln(cli.out, "  delete-event -student KEY -event KEY [-yes]       - delete one attendance record")
	fmt.Fprintln(cli.out, "  normalize-timestamps [-dry-run]                   - rewrite second timestamps as milliseconds")
}

func (cli *commandLine) services() (*services, error) {
	if cli.svcs != nil {
		return cli.svcs, nil
	}
	store, err := cli.openStore()
	if err != nil {
		return nil, err
	}
	cli.store = store

	branchSvc := branch.NewService(store)
	teacherSvc := teacher.NewService(store, branchSvc)
	lectureSvc := lecture.NewService(store, branchSvc, teacherSvc)
	enrollmentSvc := enrollment.NewService(store, branchSvc)
	studentSvc := student.NewService(store, enrollmentSvc)
	cli.svcs = &services{
		enrollment: enrollmentSvc,
		student:    studentSvc,
		attendance: attendance.NewService(studentSvc, lectureSvc, branchSvc, enrollmentSvc, nil),
	}
	return cli.svcs, nil
}

func (cli *commandLine) close() error {
	if cli.store == nil {
		return nil
	}
	return cli.store.Close()
}

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	summaryCmd := cli.flagSet("summary")
	summaryFilter := summaryCmd.String("filter", string(attendance.AllTime), "Time window: all, thisYear, thisMonth or withinPastWeek (year, month, week).")

	cancelCmd := cli.flagSet("cancel-enrollment")
	cancelYes := cancelCmd.Bool("yes", false, "Do not ask for confirmation.")

	deleteEventCmd := cli.flagSet("delete-event")
	deleteEventStudent := deleteEventCmd.String("student", "", "The student's push key.")
	deleteEventKey := deleteEventCmd.String("event", "", "The attendance record's push key.")
	deleteEventYes := deleteEventCmd.Bool("yes", false, "Do not ask for confirmation.")

	normalizeCmd := cli.flagSet("normalize-timestamps")
	normalizeDryRun := normalizeCmd.Bool("dry-run", false, "Only count the timestamps that would be rewritten.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "slots":
		return cli.slots()

	case "summary":
		if err := summaryCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.summary(*summaryFilter)

	case "cancel-enrollment":
		if err := cancelCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.cancelEnrollment(*cancelYes)

	case "delete-event":
		if err := deleteEventCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *deleteEventStudent == "" || *deleteEventKey == "" {
			deleteEventCmd.Usage()
			return errHelp
		}
		return cli.deleteEvent(*deleteEventStudent, *deleteEventKey, *deleteEventYes)

	case "normalize-timestamps":
		if err := normalizeCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.normalizeTimestamps(*normalizeDryRun)

	default:
		cli.printUsage()
		return errHelp
	}
}

// confirm asks a yes/no question on the terminal.
func confirm(prompt string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errNotTerminal
	}
	fmt.Printf("%s [y/N]: ", prompt)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func (cli *commandLine) confirm(skip bool, prompt string) error {
	if skip {
		return nil
	}
	ok, err := confirmFunc(prompt)
	if err != nil {
		return err
	}
	if !ok {
		return errAborted
	}
	return nil
}
