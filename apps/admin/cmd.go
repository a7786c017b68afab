package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/brightwater/swereport/core"
	"github.com/brightwater/swereport/core/project"
	"github.com/brightwater/swereport/services/arcgis"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf    *core.Config
	items   map[string]string // {project key: hosted item id}
	logger  core.Logger
	mailSvc core.EmailService
	out     io.Writer
	now     func() time.Time

	registry *project.Registry
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  projects - list the projects and whether their hosted table is configured")
	_, _ = fmt.Fprintln(cli.out, "  check [-project LABEL] - fetch every configured project (or one) and report its record counts")
	_, _ = fmt.Fprintln(cli.out, "  export -project LABEL -out FILE - write both views of a project to a spreadsheet")
	_, _ = fmt.Fprintln(cli.out, "  sendreport -project LABEL -to EMAIL[,EMAIL...] - email both views of a project")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	projectsCmd := cli.newFlagSet("projects")

	checkCmd := cli.newFlagSet("check")
	checkLabel := checkCmd.String("project", "", "The project label. All configured projects are checked when empty.")

	exportCmd := cli.newFlagSet("export")
	exportLabel := exportCmd.String("project", "", "The project label, eg. \""+project.DefaultLabel+"\".")
	exportOut := exportCmd.String("out", "", "The spreadsheet file to write.")

	sendReportCmd := cli.newFlagSet("sendreport")
	sendReportLabel := sendReportCmd.String("project", "", "The project label, eg. \""+project.DefaultLabel+"\".")
	sendReportTo := sendReportCmd.String("to", "", "Comma separated recipients.")

	switch args[1] {
	case "projects":
		if err := projectsCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if err := cli.setup(); err != nil {
			return err
		}
		return cli.listProjects()
	case "check":
		if err := checkCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if err := cli.setup(); err != nil {
			return err
		}
		return cli.check(*checkLabel)
	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *exportLabel == "" || *exportOut == "" {
			exportCmd.Usage()
			return errHelp
		}
		if err := cli.setup(); err != nil {
			return err
		}
		return cli.export(*exportLabel, *exportOut)
	case "sendreport":
		if err := sendReportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *sendReportLabel == "" || *sendReportTo == "" {
			sendReportCmd.Usage()
			return errHelp
		}
		if err := cli.setup(); err != nil {
			return err
		}
		return cli.sendReport(*sendReportLabel, *sendReportTo)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// setup builds the project registry, prompting for the ArcGIS password when a
// username is configured without one.
func (cli *commandLine) setup() error {
	if cli.registry != nil {
		return nil
	}

	arcConf := cli.conf.ArcGIS
	if arcConf.Username != "" && arcConf.Password == "" {
		_, _ = fmt.Fprintf(cli.out, "Enter ArcGIS password for %s:", arcConf.Username)
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		_, _ = fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			return errHelp
		}
		arcConf.Password = string(pwd)
	}

	client, err := arcgis.NewClient(arcgis.Config{
		PortalURL:       arcConf.PortalURL,
		Username:        arcConf.Username,
		Password:        arcConf.Password,
		TokenExpiration: arcConf.TokenExpiration,
	})
	if err != nil {
		return err
	}
	registry, err := project.NewRegistry(cli.items, client, project.Options{
		Timeout: cli.conf.Fetch.Timeout,
		Retries: cli.conf.Fetch.Retries,
		Logger:  cli.logger,
	})
	if err != nil {
		return err
	}
	cli.registry = registry
	return nil
}
