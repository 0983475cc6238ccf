package crosswing

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/crosswing/crosswing/runner"
	"github.com/crosswing/crosswing/types"
)

// ResultFormatter is responsible for formatting and displaying run results.
type ResultFormatter interface {
	FormatResults(result *runner.RunResult) error
}

// ConsoleResultFormatter implements the ResultFormatter interface.
type ConsoleResultFormatter struct {
	logger log.Logger
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter.
func NewConsoleResultFormatter(logger log.Logger) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		logger: logger,
	}
}

// FormatResults renders the run result as a table, one block per browser.
func (f *ConsoleResultFormatter) FormatResults(result *runner.RunResult) error {
	f.logger.Info("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Cross-Browser Test Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Type", "ID", "Duration", "Tests", "Passed", "Failed", "Skipped", "Retried", "Status", "Error",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Retried", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, browserID := range sortedKeys(result.Browsers) {
		br := result.Browsers[browserID]

		errMsg := ""
		if br.Err != nil {
			errMsg = firstLine(br.Err.Error())
		}
		t.AppendRow(table.Row{
			"Browser",
			br.Browser,
			formatDuration(br.Duration),
			"-",
			br.Stats.Passed,
			br.Stats.Failed,
			br.Stats.Skipped,
			br.Stats.Retried,
			getResultString(br.Status),
			errMsg,
		})

		for _, suiteTitle := range sortedKeys(br.Suites) {
			suite := br.Suites[suiteTitle]
			t.AppendRow(table.Row{
				"Suite",
				fmt.Sprintf("├── %s", suiteTitle),
				formatDuration(suite.Duration),
				"-",
				suite.Stats.Passed,
				suite.Stats.Failed,
				suite.Stats.Skipped,
				suite.Stats.Retried,
				getResultString(suite.Status),
				"",
			})
			f.appendTests(t, suite.Tests, "│   ")
		}
		f.appendTests(t, br.Tests, "")

		t.AppendSeparator()
	}

	switch result.Status {
	case types.TestStatusPass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case types.TestStatusSkip:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(result.Duration),
		result.Stats.Total,
		result.Stats.Passed,
		result.Stats.Failed,
		result.Stats.Skipped,
		result.Stats.Retried,
		getResultString(result.Status),
		"",
	})

	t.Render()
	return nil
}

func (f *ConsoleResultFormatter) appendTests(t table.Writer, tests map[string]*types.TestResult, indent string) {
	keys := sortedKeys(tests)
	for i, key := range keys {
		tr := tests[key]
		prefix := indent + "├──"
		if i == len(keys)-1 {
			prefix = indent + "└──"
		}
		errMsg := ""
		if tr.Error != nil {
			errMsg = firstLine(tr.Error.Error())
		}
		t.AppendRow(table.Row{
			"Test",
			fmt.Sprintf("%s %s", prefix, tr.Title),
			formatDuration(tr.Duration),
			"1",
			boolToInt(tr.Status == types.TestStatusPass),
			boolToInt(tr.Status == types.TestStatusFail),
			boolToInt(tr.Status == types.TestStatusSkip),
			tr.Attempts - 1,
			getResultString(tr.Status),
			errMsg,
		})
	}
}

// FormatSuiteTree prints a merged suite tree for list mode, without running
// anything.
func (f *ConsoleResultFormatter) FormatSuiteTree(root *types.SuiteNode) {
	fmt.Printf("%d tests\n", root.CountTests())
	printSuite(root, 0)
}

func printSuite(s *types.SuiteNode, depth int) {
	indent := strings.Repeat("  ", depth)
	if !s.IsRoot() {
		fmt.Printf("%s%s\n", indent, s.Title)
		indent += "  "
	}
	for _, t := range s.Tests {
		fmt.Printf("%s- %s (%s)\n", indent, t.Title, t.File)
	}
	nextDepth := depth
	if !s.IsRoot() {
		nextDepth++
	}
	for _, child := range s.Suites {
		printSuite(child, nextDepth)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstLine(s string) string {
	if idx := strings.Index(s, "\n"); idx != -1 {
		return s[:idx]
	}
	if len(s) > 80 {
		return s[:70] + "..."
	}
	return s
}
