package main

import (
	"context"
	"fmt"
	"net/mail"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/brightwater/swereport/core/report"
)

// maxConcurrentChecks bounds the queries sent to the hosted service at once.
const maxConcurrentChecks = 3

var errCheckFailed = errors.New("some projects could not be loaded")

func (cli *commandLine) listProjects() error {
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LABEL\tKEY\tCONFIGURED")
	for _, p := range cli.registry.Projects() {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\n", p.Label, p.Key, p.Configured)
	}
	return w.Flush()
}

type checkResult struct {
	label      string
	recent     int
	cumulative int
	err        error
}

// check loads every configured project, or only `label`, and prints one line per project.
func (cli *commandLine) check(label string) error {
	var labels []string
	if label != "" {
		if _, err := cli.registry.Resolve(label); err != nil {
			return err
		}
		labels = []string{label}
	} else {
		for _, p := range cli.registry.Projects() {
			if p.Configured {
				labels = append(labels, p.Label)
			}
		}
	}

	results := make([]checkResult, len(labels))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(maxConcurrentChecks)
	for i, l := range labels {
		i, l := i, l
		g.Go(func() error {
			res := checkResult{label: l}
			records, err := cli.registry.Load(ctx, l)
			if err != nil {
				res.err = err
			} else {
				res.recent = len(report.RecentWeeks(records))
				res.cumulative = len(report.Cumulative(records))
			}
			results[i] = res
			return nil // report every project
		})
	}
	_ = g.Wait()

	var failed bool
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PROJECT\tSTATUS\tLAST 5 WEEKS\tCUMULATIVE")
	for _, res := range results {
		if res.err != nil {
			failed = true
			_, _ = fmt.Fprintf(w, "%s\tERROR: %v\t-\t-\n", res.label, res.err)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\tOK\t%d\t%d\n", res.label, res.recent, res.cumulative)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed {
		return errCheckFailed
	}
	return nil
}

func (cli *commandLine) tables(label string) ([]report.Table, error) {
	records, err := cli.registry.Load(context.Background(), label)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %q", label)
	}
	return []report.Table{
		report.RecentWeeks(records).Table(),
		report.Cumulative(records).Table(),
	}, nil
}

func (cli *commandLine) export(label, out string) (err error) {
	tables, err := cli.tables(label)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return errors.Wrap(err, "creating spreadsheet")
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := report.WriteWorkbook(f, tables...); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%s written\n", out)
	return nil
}

func (cli *commandLine) sendReport(label, to string) error {
	recipients, err := mail.ParseAddressList(to)
	if err != nil {
		return errors.Wrap(err, "parsing recipients")
	}
	tables, err := cli.tables(label)
	if err != nil {
		return err
	}

	addrs := make([]mail.Address, 0, len(recipients))
	for _, addr := range recipients {
		addrs = append(addrs, *addr)
	}
	msg, err := report.NewEmail(label, addrs, cli.now(), tables...)
	if err != nil {
		return err
	}
	cli.mailSvc.SendMessages(msg)
	cli.mailSvc.Wait()
	_, _ = fmt.Fprintf(cli.out, "report of %q sent to %d recipient(s)\n", label, len(recipients))
	return nil
}
