package user

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/carosello75/courseconnect/core"
)

//go:embed assets/common-passwords.txt
var commonPasswordsAsset []byte

const (
	allRolesTag         = "allroles"
	usernameOrEmailTag  = "username_or_email"
	pwdMinLen           = 8
	pwdMaxSimilarity    = .7
	usernameOrEmailText = "one of username or email is required"
)

var (
	commonPasswords     []string
	commonPasswordsOnce sync.Once
)

// passwordRule is one check of the password policy; attrs are the lowered user attributes.
type passwordRule struct {
	tag  string
	text string
	ok   func(pwd string, attrs []string) bool
}

// passwordPolicy is applied in order, only the first broken rule is reported.
var passwordPolicy = []passwordRule{
	{
		tag:  "pwdminlen",
		text: fmt.Sprintf("password must contain at least %d characters", pwdMinLen),
		ok:   func(pwd string, _ []string) bool { return utf8.RuneCountInString(pwd) >= pwdMinLen },
	},
	{
		tag:  "pwdnospace",
		text: "password must not contain whitespace",
		ok:   func(pwd string, _ []string) bool { return strings.IndexFunc(pwd, unicode.IsSpace) < 0 },
	},
	{
		tag:  "pwdnotallnum",
		text: "password cannot be entirely numeric",
		ok: func(pwd string, _ []string) bool {
			return strings.IndexFunc(pwd, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0
		},
	},
	{
		tag:  "pwdcplx",
		text: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character",
		ok:   isComplex,
	},
	{
		tag:  "pwdtoosim",
		text: "password cannot be similar to user attributes",
		ok:   notSimilar,
	},
	{
		tag:  "pwdnocommon",
		text: "password is too common",
		ok: func(pwd string, _ []string) bool {
			lpwd := strings.ToLower(pwd)
			idx := sort.SearchStrings(commonPasswords, lpwd)
			return idx == len(commonPasswords) || commonPasswords[idx] != lpwd
		},
	},
}

// InitValidators registers the user validations on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(allRolesTag, allRolesValidation)
	core.RegisterCustomTranslation(validate, translator, allRolesTag, "invalid roles")

	validate.RegisterStructValidation(newUserValidation, NewUser{})
	core.RegisterCustomTranslation(validate, translator, usernameOrEmailTag, usernameOrEmailText)
	for _, rule := range passwordPolicy {
		core.RegisterCustomTranslation(validate, translator, rule.tag, rule.text)
	}
}

// LoadCommonPasswords loads the embedded list of passwords rejected as too common.
func LoadCommonPasswords(logger core.Logger) {
	commonPasswordsOnce.Do(func() {
		scanner := bufio.NewScanner(bytes.NewReader(commonPasswordsAsset))
		for scanner.Scan() {
			if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
				commonPasswords = append(commonPasswords, strings.ToLower(pwd))
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Error(fmt.Sprintf("user.LoadCommonPasswords: %v", err), err)
		}
		sort.Strings(commonPasswords)
	})
}

func allRolesValidation(fl validator.FieldLevel) bool {
	roles, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	for _, role := range roles {
		if !isRole(role) {
			return false
		}
	}
	return true
}

func isRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func newUserValidation(sl validator.StructLevel) {
	nu, ok := sl.Current().Interface().(NewUser)
	if !ok {
		return
	}
	if nu.Username == "" && nu.Email == "" {
		sl.ReportError(nu.Username, "username", "Username", usernameOrEmailTag, "")
		sl.ReportError(nu.Email, "email", "Email", usernameOrEmailTag, "")
	}

	attrs := []string{strings.ToLower(nu.Name), strings.ToLower(nu.Username), strings.ToLower(nu.Email)}
	for _, rule := range passwordPolicy {
		if !rule.ok(nu.Password, attrs) {
			sl.ReportError(nu.Password, "password", "Password", rule.tag, "")
			return
		}
	}
}

// isComplex wants an upper and a lower case letter, a digit and a character outside [A-Za-z0-9].
func isComplex(pwd string, _ []string) bool {
	var upper, lower, digit, special bool
	for _, r := range pwd {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			special = true
		}
	}
	return upper && lower && digit && special
}

func notSimilar(pwd string, attrs []string) bool {
	chars := strings.Split(strings.ToLower(pwd), "")
	for _, attr := range attrs {
		if attr == "" {
			continue
		}
		if difflib.NewMatcher(chars, strings.Split(attr, "")).QuickRatio() >= pwdMaxSimilarity {
			return false
		}
	}
	return true
}
