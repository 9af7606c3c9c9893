package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-password/password"
)

// DotEnvDefaults are the values written to a fresh .env file. An empty
// Password is generated.
type DotEnvDefaults struct {
	Host     string
	Port     int
	Dataset  string
	Password string
}

// DefaultDotEnv returns the settings of the bundled docker-compose.yml.
func DefaultDotEnv() DotEnvDefaults {
	return DotEnvDefaults{Host: "fdk-fuseki-service", Port: 3030, Dataset: "ds"}
}

// GeneratePassword returns a random admin password for the store.
func GeneratePassword() (string, error) {
	return password.Generate(24, 6, 0, false, true)
}

// WriteDotEnv creates a .env file at path. An existing file is kept unless
// overwrite is set; the return value reports whether a file was written.
func WriteDotEnv(path string, values DotEnvDefaults, overwrite bool) (bool, error) {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		} else if !os.IsNotExist(err) {
			return false, err
		}
	}
	if values.Password == "" {
		generated, err := GeneratePassword()
		if err != nil {
			return false, errors.Wrap(err, "generate password")
		}
		values.Password = generated
	}
	env := map[string]string{
		"HOST":      values.Host,
		"PORT":      strconv.Itoa(values.Port),
		"DATASET_1": values.Dataset,
		"PASSWORD":  values.Password,
	}
	if err := godotenv.Write(env, path); err != nil {
		return false, errors.Wrapf(err, "write %s", path)
	}
	return true, nil
}
