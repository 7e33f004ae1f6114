package e2e

import (
	"strings"
	"testing"
)

func TestBuildCorpus_Returns60Documents(t *testing.T) {
	c := BuildCorpus()
	if c.TotalDocs != 60 {
		t.Errorf("expected 60 documents, got %d", c.TotalDocs)
	}
	if len(c.Documents) != 60 {
		t.Errorf("expected len(Documents)=60, got %d", len(c.Documents))
	}
}

func TestBuildCorpus_QueryTestCasesExist(t *testing.T) {
	c := BuildCorpus()
	if c.TotalQueries == 0 {
		t.Fatal("expected at least one query test case")
	}
	for i, tc := range c.TestCases {
		if tc.Query == "" {
			t.Errorf("test case %d: empty query", i)
		}
		if len(tc.ExpectedDocIDs) == 0 {
			t.Errorf("test case %d: no expected doc IDs", i)
		}
	}
}

func TestBuildCorpus_QueriesMatchExpectedDocs(t *testing.T) {
	c := BuildCorpus()
	docByID := make(map[string]E2EDocument)
	for _, d := range c.Documents {
		docByID[d.ID] = d
	}
	for _, tc := range c.TestCases {
		for _, docID := range tc.ExpectedDocIDs {
			doc, ok := docByID[docID]
			if !ok {
				t.Errorf("expected doc ID %q not in corpus", docID)
				continue
			}
			if doc.Query() != tc.Query {
				t.Errorf("doc %q: query %q does not match its text", docID, tc.Query)
			}
		}
	}
}

func TestBuildCorpus_ContentsAreUniqueAndFormatSafe(t *testing.T) {
	c := BuildCorpus()
	seen := make(map[string]string)
	for _, d := range c.Documents {
		if prev, dup := seen[d.Content]; dup {
			t.Errorf("docs %s and %s share content", prev, d.ID)
		}
		seen[d.Content] = d.ID
		// Single-line, comma-free, XML-safe: what every fixture format
		// reproduces byte for byte.
		if strings.ContainsAny(d.Content, ",\n<>&\"") {
			t.Errorf("doc %s content is not format-safe: %q", d.ID, d.Content)
		}
		if d.Content != strings.TrimSpace(d.Content) {
			t.Errorf("doc %s content has surrounding whitespace", d.ID)
		}
	}
}

func TestCorpus_ToUploads(t *testing.T) {
	c := BuildCorpus()
	uploads := c.ToUploads()
	if len(uploads) != len(c.Documents) {
		t.Errorf("expected %d uploads, got %d", len(c.Documents), len(uploads))
	}
	for i := range uploads {
		want := c.Documents[i].ID + ".txt"
		if uploads[i].Filename != want {
			t.Errorf("upload[%d].Filename = %q, want %q", i, uploads[i].Filename, want)
		}
		if string(uploads[i].Data) != c.Documents[i].Content {
			t.Errorf("upload[%d] data mismatch", i)
		}
	}
}
