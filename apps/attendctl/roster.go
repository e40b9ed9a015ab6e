package main

import (
	"context"
	"fmt"

	"github.com/trezcool/attendly/core/attendance"
	"github.com/trezcool/attendly/core/roster"
)

func (cli *commandLine) showRoster(ctx context.Context, sessionID int, search string) error {
	ctx, err := cli.authenticate(ctx)
	if err != nil {
		return err
	}

	rec := cli.reconciler(sessionID)
	if err := rec.Refresh(ctx); err != nil {
		return err
	}
	return cli.printRoster(rec, search)
}

func (cli *commandLine) markPresent(ctx context.Context, sessionID, userID int) error {
	ctx, err := cli.authenticate(ctx)
	if err != nil {
		return err
	}

	rec := cli.reconciler(sessionID)
	if err := rec.MarkPresent(ctx, userID); err != nil {
		return err
	}
	return cli.printRoster(rec, "")
}

func (cli *commandLine) printRoster(rec *roster.Reconciler, search string) error {
	view, err := rec.View(search)
	if err != nil {
		return err
	}

	sess := view.Session
	fmt.Fprintf(cli.out, "Session %s (%s)\n", sess.DisplayTitle(), sess.Status)
	fmt.Fprintf(cli.out, "%s - %s\n", sess.StartTime.Format("Mon Jan 2 15:04"), sess.EndTime().Format("15:04"))

	fmt.Fprintf(cli.out, "\nPresent (%d):\n", len(view.Present))
	cli.printUsers(view.Present, view.PresentEmptyText)
	fmt.Fprintf(cli.out, "\nAbsent (%d):\n", len(view.Absent))
	cli.printUsers(view.Absent, view.AbsentEmptyText)
	return nil
}

func (cli *commandLine) printUsers(users []attendance.User, emptyText string) {
	if len(users) == 0 {
		fmt.Fprintf(cli.out, "  %s\n", emptyText)
		return
	}
	for _, usr := range users {
		fmt.Fprintf(cli.out, "  %-4d %s <%s>\n", usr.ID, usr.Name, usr.Email)
	}
}
