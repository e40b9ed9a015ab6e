package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/trezcool/attendly/core"
	camerasvc "github.com/trezcool/attendly/services/camera"
	logsvc "github.com/trezcool/attendly/services/logger"
	notifysvc "github.com/trezcool/attendly/services/notify"
	snapshotsvc "github.com/trezcool/attendly/services/snapshot"
	fileprefs "github.com/trezcool/attendly/storage/prefs/file"
	"github.com/trezcool/attendly/storage/remote"
)

func main() {
	conf := core.NewConfig()

	std := log.New(os.Stderr, "CLI : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(std, conf)
	remoteLogger := logsvc.NewRollbarLogger(log.New(os.Stderr, "REMOTE : ", log.LstdFlags|log.Lmicroseconds), conf)

	prefs, err := fileprefs.Open(conf.Prefs.Path)
	if err != nil {
		logger.Fatal("opening preferences", err)
	}

	client := remote.NewClient(conf, remoteLogger)
	cli := &commandLine{
		conf:       conf,
		in:         os.Stdin,
		out:        os.Stdout,
		repo:       client,
		recognizer: client,
		source:     camerasvc.NewSource(conf, logger),
		prefs:      prefs,
		notifier:   notifysvc.NewConsole(os.Stdout),
		logger:     logger,
		snapshots:  snapshotsvc.Writer{MaxWidth: 1280},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = cli.run(ctx, os.Args)
	stop()
	if err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
