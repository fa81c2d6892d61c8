package conf

import "fmt"

// EnvironmentEnum deployment environment
type EnvironmentEnum string

const (
	LocalEnvironmentEnum   EnvironmentEnum = "loc"
	TestnetEnvironmentEnum EnvironmentEnum = "testnet"
	MainnetEnvironmentEnum EnvironmentEnum = "mainnet"
	ExampleEnvironmentEnum EnvironmentEnum = "example"
)

// SystemEnvironmentEnum current environment, set from the -env flag
var SystemEnvironmentEnum = LocalEnvironmentEnum

// ConfigFile explicit config path from the -config flag; overrides the environment default
var ConfigFile string

// ParseEnvironment map an -env flag value to an environment
func ParseEnvironment(s string) (EnvironmentEnum, error) {
	switch EnvironmentEnum(s) {
	case LocalEnvironmentEnum, TestnetEnvironmentEnum, MainnetEnvironmentEnum, ExampleEnvironmentEnum:
		return EnvironmentEnum(s), nil
	}
	return "", fmt.Errorf("unknown environment %q", s)
}

// GetYaml config file for the current environment
func GetYaml() string {
	if ConfigFile != "" {
		return ConfigFile
	}
	return fmt.Sprintf("./conf/conf_%s.yaml", SystemEnvironmentEnum)
}
