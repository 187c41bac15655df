package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/carosello75/courseconnect/core/user"
	"github.com/carosello75/courseconnect/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	env := testutil.NewEnv(t)
	return &commandLine{usrSvc: env.Users}, env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "add_posts", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				if err == nil || err.Error() != tt.wantErrStr {
					t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
				}
			case err != nil:
				t.Errorf("cli.run() unexpected error = %v", err)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env := setup(t)

	existing := testutil.CreateUser(t, env.UserRepo, "Old", "old", "old@test.cd", "mdr", []string{user.RoleStudent}, false)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-username", "awe"}, extra: extra{pwd: "lol"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "awe", "-email", "awe@test.cd"}, wantErr: errHelp},
		{name: "new user", args: []string{"adduser", "-username", "awe", "-email", "awe@test.cd"}, extra: extra{pwd: "lol"}},
		{name: "new admin", args: []string{"adduser", "-username", "boss", "-email", "boss@test.cd", "-admin"}, extra: extra{pwd: "lol"}},
		{name: "existing user", args: []string{"adduser", "-username", "old", "-email", "old@test.cd"}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Fatalf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	ctx := context.Background()
	boss, err := env.UserRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{"boss"}})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if !boss.IsAdmin() || !boss.Active() {
		t.Errorf("boss should be an active admin, got roles %v", boss.Roles)
	}
	if err = boss.CheckPassword("lol"); err != nil {
		t.Errorf("boss password not set: %v", err)
	}

	old, err := env.UserRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if !old.Active() {
		t.Error("existing user should have been reactivated")
	}
	if err = old.CheckPassword("lmao"); err != nil {
		t.Errorf("existing user password not updated: %v", err)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)

	usr := testutil.CreateUser(t, env.UserRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := env.UserRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				if err != nil {
					t.Fatalf("GetUser() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
