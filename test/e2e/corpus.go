// Package e2e provides end-to-end tests with a large corpus and multiple queries.
package e2e

import (
	"fmt"

	"github.com/hyperjump/torikomi/internal/models"
)

// E2EDocument is a document entry in the E2E corpus. Content is a single
// short line, so each document becomes exactly one chunk and the stored chunk
// text equals the file content.
type E2EDocument struct {
	ID      string
	Content string
}

// QueryTestCase defines a query and the document ID(s) that must appear in
// query results. The mock embedder derives vectors from a text hash, so
// unrelated texts get unrelated vectors; querying with a chunk's exact text
// is the one deterministic way to assert that chunk's document comes back.
type QueryTestCase struct {
	Query          string
	ExpectedDocIDs []string
	Description    string
}

// Corpus holds documents and query test cases for E2E tests.
type Corpus struct {
	Documents    []E2EDocument
	TestCases    []QueryTestCase
	TotalDocs    int
	TotalQueries int
}

// BuildCorpus returns a corpus of 60 documents with varied content and one
// query test case per document. Contents are single-line, comma-free, and
// XML-safe so every supported file format reproduces them byte for byte.
func BuildCorpus() *Corpus {
	docs := buildDocuments()
	cases := buildQueryTestCases(docs)
	return &Corpus{
		Documents:    docs,
		TestCases:    cases,
		TotalDocs:    len(docs),
		TotalQueries: len(cases),
	}
}

func buildDocuments() []E2EDocument {
	contents := []string{
		"Quarterly revenue forecast shows steady growth across all regions",
		"Weekly standup notes covering sprint progress and blockers",
		"Incident postmortem for the March database outage and recovery steps",
		"Onboarding checklist for new engineers joining the platform team",
		"Migration plan for moving the billing service to the new cluster",
		"Performance review of the caching layer under peak traffic",
		"Security audit findings for the public API endpoints",
		"Capacity planning estimates for the next two quarters",
		"Release notes for version two covering the new export pipeline",
		"Meeting minutes from the architecture review of the queue design",
		"Budget summary for cloud infrastructure spending this year",
		"Runbook for restoring the search index from nightly snapshots",
		"Design proposal for the document deduplication strategy",
		"Interview feedback for the senior backend engineer candidate",
		"Load test results comparing the old and new ingestion paths",
		"Vendor comparison for managed vector database offerings",
		"Compliance checklist for handling customer uploaded files",
		"Roadmap draft prioritizing transcription quality improvements",
		"Retrospective notes on the failed deploy and rollback timeline",
		"Training material for the support team on the upload workflow",
		"Analysis of chunk overlap settings and retrieval quality",
		"Backup verification report for the catalog database",
		"Cost breakdown of transcription API usage by department",
		"Draft announcement for the folder watching feature launch",
		"Troubleshooting guide for ffmpeg conversion failures",
		"Summary of user feedback on search result relevance",
		"Checklist for rotating the embedding service credentials",
		"Proposal to segment long recordings into ten minute windows",
		"Audit log retention policy for ingestion operations",
		"Benchmark numbers for the in-memory vector store at scale",
		"Notes from the debugging session on the flaky watcher tests",
		"Staffing plan for the on-call rotation next quarter",
		"Draft of the customer facing status page copy",
		"Review of upload size ceilings per content category",
		"Postmortem action items assigned after the storage incident",
		"Comparison of sentence versus fixed window chunking",
		"Plan for deprecating the legacy ingestion endpoint",
		"Field report from the pilot deployment at the Osaka office",
		"Spreadsheet conventions for the monthly metrics workbook",
		"Glossary of ingestion pipeline terminology for new hires",
		"Escalation contacts for the transcription vendor outage",
		"Findings from profiling the extraction stage memory usage",
		"Checklist before enabling the Milvus backend in production",
		"Summary of the workshop on writing effective queries",
		"Inventory of supported document formats and their parsers",
		"Timeline reconstruction of the duplicate records bug",
		"Approval record for the storage quota increase request",
		"Handoff notes for the pipeline observability work",
		"Survey results on internal search adoption by team",
		"Recovery drill transcript from the failover exercise",
		"Style guide for naming watched directories consistently",
		"Decision log entry on hashing file paths for identifiers",
		"Risk assessment for processing executable attachments",
		"Digest of upstream changes to the spreadsheet parser",
		"Walkthrough of the debounce behavior for rapid file edits",
		"Ledger of manual reingestion requests this month",
		"Brief on the retry policy for transient embedding errors",
		"Catalog of test fixtures used by the extraction suite",
		"Memo on temp directory cleanup after failed conversions",
		"Outline of the quarterly demo for the ingestion service",
	}
	out := make([]E2EDocument, len(contents))
	for i, content := range contents {
		out[i] = E2EDocument{
			ID:      fmt.Sprintf("e2e-doc-%03d", i+1),
			Content: content,
		}
	}
	return out
}

func buildQueryTestCases(docs []E2EDocument) []QueryTestCase {
	cases := make([]QueryTestCase, 0, len(docs))
	for _, d := range docs {
		cases = append(cases, QueryTestCase{
			Query:          d.Query(),
			ExpectedDocIDs: []string{d.ID},
			Description:    fmt.Sprintf("exact text of %s returns it first", d.ID),
		})
	}
	return cases
}

// Query returns the query text that must rank this document first: the exact
// stored chunk text.
func (d E2EDocument) Query() string {
	return d.Content
}

// ToUploads converts the corpus documents to raw uploads with .txt filenames.
func (c *Corpus) ToUploads() []*models.RawUpload {
	out := make([]*models.RawUpload, len(c.Documents))
	for i := range c.Documents {
		d := &c.Documents[i]
		out[i] = &models.RawUpload{
			Filename: d.ID + ".txt",
			Data:     []byte(d.Content),
		}
	}
	return out
}
