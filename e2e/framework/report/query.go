package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/results"
)

// ResultsFile is the artifact name of the serialized run.
const ResultsFile = "results.json"

// History is a set of past runs loaded from results.json artifacts.
type History struct {
	Runs []*results.RunResult
}

// LoadHistory reads runs from results.json files or directories. A directory
// is searched for results.json at its top level and one level below, so both
// a single run directory and an artifact root work.
func LoadHistory(paths ...string) (*History, error) {
	h := &History{}
	for _, path := range paths {
		files, err := resultFiles(path)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			run, err := loadRun(file)
			if err != nil {
				return nil, err
			}
			h.Runs = append(h.Runs, run)
		}
	}
	sort.SliceStable(h.Runs, func(i, j int) bool { return h.Runs[i].StartTime.Before(h.Runs[j].StartTime) })
	return h, nil
}

func resultFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	direct := filepath.Join(path, ResultsFile)
	if _, err := os.Stat(direct); err == nil {
		return []string{direct}, nil
	}
	files, err := filepath.Glob(filepath.Join(path, "*", ResultsFile))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func loadRun(path string) (*results.RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var run results.RunResult
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return &run, nil
}

// FailureInfo contains information about a failed test.
type FailureInfo struct {
	RunID     string    `json:"run_id"`
	TestName  string    `json:"test_name"`
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Graph     string    `json:"graph,omitempty"`
	Diff      string    `json:"diff,omitempty"`
}

func (h *History) failures() []FailureInfo {
	var out []FailureInfo
	for _, run := range h.Runs {
		for _, test := range run.Tests {
			if test.Status != results.StatusFailed {
				continue
			}
			msg := failureMessage(test)
			out = append(out, FailureInfo{
				RunID:     run.RunID,
				TestName:  test.Name,
				Timestamp: test.EndTime,
				Category:  CategorizeError(msg),
				Message:   msg,
				Graph:     test.Graph,
				Diff:      test.Artifacts["diff"],
			})
		}
		if run.Readiness != nil && !run.Readiness.Ready {
			out = append(out, FailureInfo{
				RunID:     run.RunID,
				TestName:  "readiness",
				Timestamp: run.EndTime,
				Category:  CategoryNotReady,
				Message:   readinessText(run.Readiness),
			})
		}
	}
	return out
}

// Failures lists failures, newest first, optionally restricted to a
// category. A limit of zero or less returns everything.
func (h *History) Failures(category string, limit int) []FailureInfo {
	var out []FailureInfo
	all := h.failures()
	for i := len(all) - 1; i >= 0; i-- {
		if category != "" && all[i].Category != category {
			continue
		}
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// ByErrorPattern lists failures whose message matches the regular expression.
func (h *History) ByErrorPattern(pattern string) ([]FailureInfo, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrap(err, "invalid pattern")
	}
	var out []FailureInfo
	for _, failure := range h.failures() {
		if re.MatchString(failure.Message) {
			out = append(out, failure)
		}
	}
	return out, nil
}

// Rate aggregates outcomes across runs.
type Rate struct {
	Total       int
	Passed      int
	Failed      int
	Skipped     int
	Pending     int
	SuccessRate float64
}

// SuccessRate counts outcomes of tests carrying tag, or of all tests when
// tag is empty. Skipped and pending tests do not count toward the rate.
func (h *History) SuccessRate(tag string) Rate {
	var rate Rate
	for _, run := range h.Runs {
		for _, test := range run.Tests {
			if tag != "" && !hasTag(test.Tags, tag) {
				continue
			}
			rate.Total++
			switch test.Status {
			case results.StatusPassed:
				rate.Passed++
			case results.StatusFailed:
				rate.Failed++
			case results.StatusSkipped:
				rate.Skipped++
			case results.StatusPending:
				rate.Pending++
			}
		}
	}
	if executed := rate.Passed + rate.Failed; executed > 0 {
		rate.SuccessRate = float64(rate.Passed) / float64(executed) * 100
	}
	return rate
}

// FlakyTest is a test that both passed and failed across runs.
type FlakyTest struct {
	TestName string
	Passed   int
	Failed   int
	Total    int
	PassRate float64
}

// FlakyTests returns tests whose minority outcome reaches threshold, a
// fraction between 0 and 1.
func (h *History) FlakyTests(threshold float64) []FlakyTest {
	counts := map[string]*FlakyTest{}
	for _, run := range h.Runs {
		for _, test := range run.Tests {
			if test.Status != results.StatusPassed && test.Status != results.StatusFailed {
				continue
			}
			entry, ok := counts[test.Name]
			if !ok {
				entry = &FlakyTest{TestName: test.Name}
				counts[test.Name] = entry
			}
			entry.Total++
			if test.Status == results.StatusPassed {
				entry.Passed++
			} else {
				entry.Failed++
			}
		}
	}
	var out []FlakyTest
	for _, entry := range counts {
		if entry.Passed == 0 || entry.Failed == 0 {
			continue
		}
		entry.PassRate = float64(entry.Passed) / float64(entry.Total)
		minority := entry.PassRate
		if 1-minority < minority {
			minority = 1 - minority
		}
		if minority >= threshold {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TestName < out[j].TestName })
	return out
}

// AverageTimings returns mean durations per step action, plus "test" for
// whole tests and "readiness" for the readiness gate. A non-empty test
// restricts the averages to that test.
func (h *History) AverageTimings(test string) map[string]time.Duration {
	sums := map[string]time.Duration{}
	counts := map[string]int{}
	add := func(key string, d time.Duration) {
		sums[key] += d
		counts[key]++
	}
	for _, run := range h.Runs {
		if run.Readiness != nil && test == "" {
			add("readiness", run.Readiness.Elapsed)
		}
		for _, result := range run.Tests {
			if test != "" && result.Name != test {
				continue
			}
			if result.Status == results.StatusSkipped || result.Status == results.StatusPending {
				continue
			}
			add("test", result.Duration)
			for _, step := range result.Steps {
				add(step.Action, step.Duration)
			}
		}
	}
	out := make(map[string]time.Duration, len(sums))
	for key, sum := range sums {
		out[key] = sum / time.Duration(counts[key])
	}
	return out
}

func hasTag(tags []string, tag string) bool {
	for _, existing := range tags {
		if strings.EqualFold(existing, tag) {
			return true
		}
	}
	return false
}
