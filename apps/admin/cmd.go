package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/asistencia/core/attendance"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp     = errors.New("help provided")
	errNoSQLDB  = errors.New("migrations need the postgres engine")
	errNoRoster = errors.New("no student could be read from the file")
)

type commandLine struct {
	db       *sql.DB // nil with the memory engine
	svc      *attendance.Service
	validate *validator.Validate
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  createlist -name NAME [-date YYYY-MM-DD] - create an attendance list")
	fmt.Fprintln(cli.out, "  lists [-search TEXT] - show the attendance lists")
	fmt.Fprintln(cli.out, "  import -list ID -file PATH [-dry-run] - import a roster (.xlsx, .xls, .csv) into a list")
}

// interactive tells whether output goes to a terminal rather than a pipe.
func (cli *commandLine) interactive() bool {
	f, ok := cli.out.(*os.File)
	return ok && isTerminalFunc(int(f.Fd()))
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createListCmd := flag.NewFlagSet("createlist", flag.ContinueOnError)
	createListName := createListCmd.String("name", "", "The name of the list, e.g. the course and section.")
	createListDate := createListCmd.String("date", "", "The date of the session (YYYY-MM-DD). Defaults to today.")

	listsCmd := flag.NewFlagSet("lists", flag.ContinueOnError)
	listsSearch := listsCmd.String("search", "", "Only show the lists whose name contains this text.")

	importCmd := flag.NewFlagSet("import", flag.ContinueOnError)
	importList := importCmd.String("list", "", "The ID of the list to import into.")
	importFile := importCmd.String("file", "", "The path of the roster file.")
	importDryRun := importCmd.Bool("dry-run", false, "Only show the students that would be imported.")

	for _, fs := range []*flag.FlagSet{createListCmd, listsCmd, importCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "createlist":
		if err := createListCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *createListName == "" {
			createListCmd.Usage()
			return errHelp
		}
		return cli.createList(*createListName, *createListDate)
	case "lists":
		if err := listsCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.lists(*listsSearch)
	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *importFile == "" || (*importList == "" && !*importDryRun) {
			importCmd.Usage()
			return errHelp
		}
		return cli.importFile(*importList, *importFile, *importDryRun)
	default:
		cli.printUsage()
		return errHelp
	}
}
