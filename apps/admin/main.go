package main

import (
	"fmt"
	"log"
	"os"

	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/core/user"
	logsvc "github.com/carosello75/courseconnect/services/logger"
	"github.com/carosello75/courseconnect/storage/database"
	sqlxrepos "github.com/carosello75/courseconnect/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(false)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db: db,
		usrSvc: user.NewService(
			conf,
			database.NewTransactor(db),
			sqlxrepos.NewUserRepository(db),
			validate,
			nil, /* mailSvc */
			nil, /* notifier */
			logger,
		),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			fmt.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
