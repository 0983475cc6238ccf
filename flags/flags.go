package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "CROSSWING"

// prefixEnvVars returns the environment variable names for a flag.
func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	TestDir = &cli.StringFlag{
		Name:     "testdir",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("TESTDIR"),
		Usage:    "Path to the directory containing test-definition files",
	}
	BrowserConfig = &cli.StringFlag{
		Name:     "browsers",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("BROWSERS"),
		Usage:    "Path to browser config file (eg. 'browsers.yaml')",
	}
	WebDriverURL = &cli.StringFlag{
		Name:    "webdriver-url",
		Value:   "http://localhost:4444",
		EnvVars: prefixEnvVars("WEBDRIVER_URL"),
		Usage:   "URL of the WebDriver remote end sessions are acquired from",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: prefixEnvVars("LOGDIR"),
		Usage:   "Directory to store per-test artifact logs",
	}
	List = &cli.BoolFlag{
		Name:    "list",
		Usage:   "List the merged suite tree without running any test",
		Value:   false,
		EnvVars: prefixEnvVars("LIST"),
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "Log level: trace, debug, info, warn, error",
	}
)

var requiredFlags = []cli.Flag{
	TestDir,
	BrowserConfig,
}

var optionalFlags = []cli.Flag{
	WebDriverURL,
	RunInterval,
	LogDir,
	List,
	LogLevel,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
