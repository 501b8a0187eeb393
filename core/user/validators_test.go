package user

import (
	"bytes"
	"compress/gzip"
	"testing"
	"testing/fstest"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toure-cloud/institutdeveloppement/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestValidator(t *testing.T) (*validator.Validate, func(error) map[string]string) {
	t.Helper()

	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	_, err := w.Write([]byte("azerty123!\np@$$w0rd\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	LoadCommonPasswords(fstest.MapFS{"pwds.txt.gz": {Data: gz.Bytes()}}, "pwds.txt.gz", nopLogger{})

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	flatten := func(err error) map[string]string {
		out := make(map[string]string)
		if vErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range core.TranslateErrors(vErrs, translator) {
				out[fe.Field] = fe.Error
			}
		}
		return out
	}
	return validate, flatten
}

func TestPasswordPolicy(t *testing.T) {
	validate, flatten := newTestValidator(t)

	tests := []struct {
		name string
		pwd  string
		want string
	}{
		{name: "min len", pwd: "Ab1!", want: pwdMinLenText},
		{name: "no whitespace", pwd: "Ab1! cdefg", want: pwdNoSpaceText},
		{name: "not all numeric", pwd: "12345678", want: pwdNotAllNumText},
		{name: "complexity", pwd: "abcd1234", want: pwdComplexityText},
		{name: "too common", pwd: "P@$$w0rd", want: pwdNoCommonText},
		{name: "too common (case insensitive)", pwd: "Azerty123!", want: pwdNoCommonText},
		{name: "valid", pwd: "LolC@t123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := ResetUserPassword{Token: "tok", UID: "uid", Password: tt.pwd, PasswordConfirm: tt.pwd}
			errs := flatten(data.Validate(validate))
			assert.Equal(t, tt.want, errs["password"])
		})
	}
}

func TestPasswordPolicy_similarity(t *testing.T) {
	validate, flatten := newTestValidator(t)

	na := NewAdmin{Username: "konanyao", Email: "konan@test.ci", Password: "Konanyao1!", PasswordConfirm: "Konanyao1!"}
	errs := flatten(validate.Struct(na))
	assert.Equal(t, pwdAttrSimText, errs["password"])

	na.Password, na.PasswordConfirm = "Zp9#qLm2", "Zp9#qLm2"
	assert.NoError(t, validate.Struct(na))
}

func TestAllRolesValidation(t *testing.T) {
	validate, flatten := newTestValidator(t)

	nu := NewUser{Username: "candidat", Password: "Zp9#qLm2", PasswordConfirm: "Zp9#qLm2", Roles: []string{"enseignant:"}}
	errs := flatten(validate.Struct(nu))
	assert.Equal(t, allRolesText, errs["roles"])

	nu.Roles = []string{RoleCandidate}
	assert.NoError(t, validate.Struct(nu))
}

func TestNewUser_usernameOrEmail(t *testing.T) {
	validate, flatten := newTestValidator(t)

	nu := NewUser{Password: "Zp9#qLm2", PasswordConfirm: "Zp9#qLm2"}
	errs := flatten(validate.Struct(nu))
	assert.Equal(t, usernameOrEmailText, errs["username"])
	assert.Equal(t, usernameOrEmailText, errs["email"])
}
