package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/carosello75/courseconnect/core/user"
	"github.com/carosello75/courseconnect/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword       // mockable
	gooseRunFunc     = database.RunMigrations // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *sqlx.DB
	usrSvc user.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-admin] - add (or update) an active user")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  migrate COMMAND [ARGS...] - run goose migration commands (up, down, status, ...)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every role to the user.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserUname, *addUserEmail, pwd, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	return string(pwd), err
}
