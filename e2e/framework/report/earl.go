package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/artifacts"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/results"
)

const (
	// DefaultAssertor identifies the harness as the asserting party.
	DefaultAssertor = "https://github.com/informasjonsforvaltning/fdk-fuseki-service#e2e"
	// FileName is the artifact name of the Turtle report.
	FileName = "report.ttl"
)

var (
	earl = rdf.NS("earl")
	dct  = rdf.NS("dct")
	xsd  = rdf.NS("xsd")
	foaf = rdf.NS("foaf")

	rdfType = rdf.NewResource(rdf.RDFType)
)

// Outcome maps a result status to an EARL outcome.
func Outcome(status results.Status) rdf.Term {
	switch status {
	case results.StatusPassed:
		return earl.Get("passed")
	case results.StatusFailed:
		return earl.Get("failed")
	case results.StatusSkipped:
		return earl.Get("inapplicable")
	default:
		return earl.Get("untested")
	}
}

// RunIRI names a run.
func RunIRI(runID string) string {
	return "urn:e2e:run:" + artifacts.SafeName(runID)
}

// TestIRI names a test case.
func TestIRI(name string) string {
	return "urn:e2e:test:" + artifacts.SafeName(name)
}

// Build renders a run as an EARL graph: one earl:Assertion per test with
// the store as subject and a blank-node earl:TestResult.
func Build(run *results.RunResult, assertor string) *rdf.Graph {
	if assertor == "" {
		assertor = DefaultAssertor
	}
	g := rdf.NewGraph(RunIRI(run.RunID))
	assertorTerm := rdf.NewResource(assertor)
	g.AddTriple(assertorTerm, rdfType, earl.Get("Software"))
	g.AddTriple(assertorTerm, foaf.Get("name"), rdf.NewLiteral("fdk-fuseki-service e2e"))

	subject := rdf.NewResource(storeIRI(run))
	g.AddTriple(subject, rdfType, earl.Get("TestSubject"))
	if run.Readiness != nil {
		g.AddTriple(subject, dct.Get("description"), rdf.NewLiteral(readinessText(run.Readiness)))
	}

	for i, test := range run.Tests {
		assertion := rdf.NewResource(RunIRI(run.RunID) + "/" + artifacts.SafeName(test.Name))
		testTerm := rdf.NewResource(TestIRI(test.Name))
		result := rdf.NewBlankNode("result" + strconv.Itoa(i))

		g.AddTriple(testTerm, rdfType, earl.Get("TestCase"))
		g.AddTriple(testTerm, dct.Get("title"), rdf.NewLiteral(test.Name))
		if test.Description != "" {
			g.AddTriple(testTerm, dct.Get("description"), rdf.NewLiteral(test.Description))
		}

		g.AddTriple(assertion, rdfType, earl.Get("Assertion"))
		g.AddTriple(assertion, earl.Get("assertedBy"), assertorTerm)
		g.AddTriple(assertion, earl.Get("subject"), subject)
		g.AddTriple(assertion, earl.Get("test"), testTerm)
		g.AddTriple(assertion, earl.Get("mode"), earl.Get("automatic"))
		g.AddTriple(assertion, earl.Get("result"), result)

		g.AddTriple(result, rdfType, earl.Get("TestResult"))
		g.AddTriple(result, earl.Get("outcome"), Outcome(test.Status))
		if !test.EndTime.IsZero() {
			g.AddTriple(result, dct.Get("date"), dateTime(test.EndTime))
		}
		if msg := failureMessage(test); msg != "" {
			g.AddTriple(result, dct.Get("description"), rdf.NewLiteral(msg))
			if test.Status == results.StatusFailed {
				g.AddTriple(result, dct.Get("type"), rdf.NewLiteral(CategorizeError(msg)))
			}
		}
		if diff := test.Artifacts["diff"]; diff != "" {
			g.AddTriple(result, earl.Get("pointer"), rdf.NewLiteral(diff))
		}
	}
	return g
}

// Write builds the report and writes it as Turtle into the run directory.
func Write(writer *artifacts.Writer, run *results.RunResult, assertor string) (string, error) {
	return writer.WriteGraph(FileName, Build(run, assertor), rdf.MimeTurtle)
}

func storeIRI(run *results.RunResult) string {
	if run.StoreURL != "" {
		return run.StoreURL
	}
	if run.Readiness != nil && run.Readiness.URL != "" {
		return run.Readiness.URL
	}
	return "urn:e2e:store"
}

func readinessText(r *results.Readiness) string {
	if r.Ready {
		return fmt.Sprintf("ready after %d attempts in %s", r.Attempts, r.Elapsed)
	}
	text := fmt.Sprintf("not ready after %d attempts in %s", r.Attempts, r.Elapsed)
	if r.LastError != "" {
		text += ": " + r.LastError
	}
	return text
}

func failureMessage(test results.TestResult) string {
	if test.Status != results.StatusFailed {
		if reason := test.Metadata["skip_reason"]; reason != "" {
			return reason
		}
		return ""
	}
	if msg := test.Metadata["timeout_error"]; msg != "" {
		return msg
	}
	if msg := test.Metadata["setup_error"]; msg != "" {
		return msg
	}
	for _, step := range test.Steps {
		if step.Status == results.StatusFailed && step.Error != "" {
			return step.Error
		}
	}
	for _, assertion := range test.Assertions {
		if assertion.Status == results.StatusFailed && assertion.Error != "" {
			return assertion.Error
		}
	}
	return "test failed"
}

func dateTime(t time.Time) rdf.Term {
	return rdf.NewLiteralWithDatatype(t.UTC().Format(time.RFC3339), xsd.Get("dateTime"))
}
