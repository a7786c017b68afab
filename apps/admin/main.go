package main

import (
	"log"
	"os"
	"time"

	"github.com/brightwater/swereport/core"
	"github.com/brightwater/swereport/core/project"
	emailsvc "github.com/brightwater/swereport/services/email"
	logsvc "github.com/brightwater/swereport/services/logger"
)

func main() {
	std := log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.LoadConfig()
	if err != nil {
		std.Fatalf("%+v", err)
	}
	logger := logsvc.NewRollbarLogger(std, conf)

	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridAPIKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	// start CLI
	cli := commandLine{
		conf:    conf,
		items:   conf.ItemIDs(project.Keys()),
		logger:  logger,
		mailSvc: mailSvc,
		out:     os.Stdout,
		now:     time.Now,
	}
	err = cli.run(os.Args)
	logger.Close()
	if err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
