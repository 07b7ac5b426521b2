package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/trezcool/asistencia/core/attendance"
)

func (cli *commandLine) createList(name, date string) error {
	nl := attendance.NewList{Name: name, Date: date}
	if err := nl.Validate(cli.validate); err != nil {
		return err
	}
	list, err := cli.svc.CreateList(context.Background(), nl)
	if err != nil {
		return err
	}
	return cli.print(list, func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "created list\t%s\n", list.ID)
		fmt.Fprintf(w, "name\t%s\n", list.Name)
		fmt.Fprintf(w, "date\t%s\n", list.Date)
	})
}

func (cli *commandLine) lists(search string) error {
	lists, err := cli.svc.QueryLists(context.Background(), attendance.ListFilter{Search: search}, nil)
	if err != nil {
		return err
	}
	return cli.print(lists, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tDATE\tNAME")
		for _, l := range lists {
			fmt.Fprintf(w, "%s\t%s\t%s\n", l.ID, l.Date, l.Name)
		}
	})
}

// importFile imports the roster at path into the list, or only prints the normalized records when dryRun is set.
func (cli *commandLine) importFile(listID, path string, dryRun bool) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening roster")
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "reading roster info")
	}

	if dryRun {
		res, err := cli.svc.ReadFile(path, info.Size(), f)
		if err != nil {
			return err
		}
		if len(res.Records) == 0 {
			return errNoRoster
		}
		return cli.print(res, func(w *tabwriter.Writer) {
			fmt.Fprintln(w, "N°\tAPELLIDOS\tNOMBRES")
			for _, rec := range res.Records {
				fmt.Fprintf(w, "%d\t%s\t%s\n", rec.OriginalOrder, rec.Surnames, rec.GivenNames)
			}
			fmt.Fprintf(w, "duplicates skipped\t%d\n", res.DuplicatesSkipped)
		})
	}

	res, err := cli.svc.ImportFile(context.Background(), listID, path, info.Size(), f)
	if err != nil {
		return err
	}
	return cli.print(res, func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "imported\t%d\n", res.Imported)
		fmt.Fprintf(w, "already in list\t%d\n", res.AlreadyInList)
		fmt.Fprintf(w, "duplicates skipped\t%d\n", res.DuplicatesSkipped)
	})
}

// print writes a table on terminals and JSON otherwise, so that the output can be piped to other tools.
func (cli *commandLine) print(v interface{}, table func(w *tabwriter.Writer)) error {
	if !cli.interactive() {
		enc := json.NewEncoder(cli.out)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(v), "encoding output")
	}
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	table(w)
	return errors.Wrap(w.Flush(), "writing table")
}
