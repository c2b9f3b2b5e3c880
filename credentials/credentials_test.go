package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCredentialsFile(t *testing.T, dir, user, pass, url string) string {
	t.Helper()

	path := filepath.Join(dir, FileName)
	content := "username: " + user + "\npassword: " + pass + "\nmain_url: " + url + "\nmfa: ABCDEF\nschool: test\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SMARTSCHOOL_USERNAME", "user")
	t.Setenv("SMARTSCHOOL_PASSWORD", "pass")
	t.Setenv("SMARTSCHOOL_MAIN_URL", "site")
	t.Setenv("SMARTSCHOOL_MFA", "SECRET")

	creds := FromEnv()
	require.NoError(t, creds.Validate())

	assert.Equal(t, "user", creds.Username)
	assert.Equal(t, "pass", creds.Password)
	assert.Equal(t, "site", creds.MainURL)
	assert.Equal(t, "SECRET", creds.MFASecret)
}

func TestFromEnv_MissingField(t *testing.T) {
	for _, name := range []string{"SMARTSCHOOL_USERNAME", "SMARTSCHOOL_PASSWORD", "SMARTSCHOOL_MAIN_URL"} {
		t.Run(name, func(t *testing.T) {
			t.Setenv("SMARTSCHOOL_USERNAME", "user")
			t.Setenv("SMARTSCHOOL_PASSWORD", "pass")
			t.Setenv("SMARTSCHOOL_MAIN_URL", "site")
			t.Setenv(name, "  ")

			err := FromEnv().Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), "please verify and correct these attributes")
		})
	}
}

func TestValidate_ListsAllMissing(t *testing.T) {
	err := (&Credentials{Password: "x"}).Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "username, main_url")
}

func TestFromFile(t *testing.T) {
	path := writeCredentialsFile(t, t.TempDir(), "user", "pass", "site")

	creds, err := FromFile(path)
	require.NoError(t, err)
	require.NoError(t, creds.Validate())

	assert.Equal(t, "user", creds.Username)
	assert.Equal(t, "pass", creds.Password)
	assert.Equal(t, "site", creds.MainURL)
	assert.Equal(t, "ABCDEF", creds.MFASecret)
	assert.Equal(t, "test", creds.Extra["school"])
}

func TestFromFile_EmptyField(t *testing.T) {
	path := writeCredentialsFile(t, t.TempDir(), "user", "", "site")

	creds, err := FromFile(path)
	require.NoError(t, err)
	assert.ErrorIs(t, creds.Validate(), ErrInvalid)
}

func TestSearchPath_Order(t *testing.T) {
	paths := SearchPath("/explicit/creds.yml")
	require.NotEmpty(t, paths)
	assert.Equal(t, "/explicit/creds.yml", paths[0])

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, FileName), paths[1])

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, CacheDirName, FileName), paths[len(paths)-1])
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := writeCredentialsFile(t, t.TempDir(), "fileuser", "pass", "site")

	creds, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fileuser", creds.Username)
}

func TestLoad_ExplicitMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIdentity(t *testing.T) {
	creds := &Credentials{Username: "jan.peeters", MainURL: "school.smartschool.be"}
	assert.Equal(t, "jan.peeters_school.smartschool.be", creds.Identity())
}
