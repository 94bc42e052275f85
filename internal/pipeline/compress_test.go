package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/warnerco/schematica/internal/graph"
	"github.com/warnerco/schematica/internal/index"
	"github.com/warnerco/schematica/internal/schematic"
	"github.com/warnerco/schematica/internal/scratchpad"
)

func candidateFixture(id string, words int) index.Candidate {
	return index.Candidate{
		ID:      id,
		Score:   0.8,
		Summary: id + " " + strings.TrimSpace(strings.Repeat("part ", words)),
	}
}

func sessionFixture(subject, content string) scratchpad.Entry {
	return scratchpad.Entry{
		ID:        "sp-test",
		Subject:   subject,
		Predicate: "observed",
		Object:    "status",
		Content:   content,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestCompressNeverExceedsBudget(t *testing.T) {
	facts := []graph.Fact{
		{Subject: "WRN-00001", Predicate: "depends_on", Object: "component:power_system"},
		{Subject: "WRN-00002", Predicate: "depends_on", Object: "component:power_system"},
	}
	session := []scratchpad.Entry{sessionFixture("WRN-00001", "voltage drop observed during lift cycle test")}
	candidates := []index.Candidate{candidateFixture("WRN-00001", 20), candidateFixture("WRN-00002", 20)}

	for _, budget := range []int{5, 20, 50, 100, 2000} {
		out, used := Compress(IntentSearch, facts, session, candidates, budget)
		if used > budget {
			t.Errorf("budget %d: used %d tokens", budget, used)
		}
		if got := schematic.EstimateTokens(out); got > budget {
			t.Errorf("budget %d: output estimates %d tokens, used says %d", budget, got, used)
		}
	}
}

func TestCompressPriorityOrder(t *testing.T) {
	facts := []graph.Fact{{Subject: "WRN-00001", Predicate: "depends_on", Object: "component:power_system"}}
	session := []scratchpad.Entry{sessionFixture("WRN-00001", "lift cycle voltage drop")}
	candidates := []index.Candidate{candidateFixture("WRN-00001", 5)}

	out, _ := Compress(IntentSearch, facts, session, candidates, 2000)

	candIdx := strings.Index(out, "part")
	sessIdx := strings.Index(out, "[observed]")
	factIdx := strings.Index(out, "[depends_on] WRN-00001 ->")
	if candIdx < 0 || sessIdx < 0 || factIdx < 0 {
		t.Fatalf("missing section in output:\n%s", out)
	}
	if !(candIdx < sessIdx && sessIdx < factIdx) {
		t.Errorf("sections out of priority order:\n%s", out)
	}
}

func TestCompressTruncationDropsLowPriorityFirst(t *testing.T) {
	// Budget fits all candidates plus some session content but no graph
	// facts. Candidates must survive intact.
	candidates := []index.Candidate{candidateFixture("WRN-00001", 10), candidateFixture("WRN-00002", 10)}
	session := []scratchpad.Entry{
		sessionFixture("WRN-00001", strings.Repeat("note ", 30)),
		sessionFixture("WRN-00002", strings.Repeat("note ", 30)),
	}
	facts := []graph.Fact{{Subject: "WRN-00001", Predicate: "depends_on", Object: "component:power_system"}}

	out, used := Compress(IntentSearch, facts, session, candidates, 90)
	if used > 90 {
		t.Fatalf("used %d tokens over budget", used)
	}
	if !strings.Contains(out, "WRN-00001") || !strings.Contains(out, "WRN-00002") {
		t.Errorf("candidates were truncated before lower-priority sections:\n%s", out)
	}
	if strings.Contains(out, "[depends_on]") {
		t.Errorf("graph facts included despite tight budget:\n%s", out)
	}
}

func TestCompressTinyBudgetKeepsFirstItems(t *testing.T) {
	// Three 30-token summaries against a 50-token budget: only the first
	// fits.
	candidates := []index.Candidate{
		candidateFixture("WRN-00001", 20),
		candidateFixture("WRN-00002", 20),
		candidateFixture("WRN-00003", 20),
	}
	out, used := Compress(IntentSearch, nil, nil, candidates, 50)
	if used > 50 {
		t.Fatalf("used %d tokens over budget", used)
	}
	if !strings.Contains(out, "WRN-00001") {
		t.Errorf("first candidate missing:\n%s", out)
	}
	if strings.Contains(out, "WRN-00002") || strings.Contains(out, "WRN-00003") {
		t.Errorf("overflow candidates included:\n%s", out)
	}
}

func TestCompressHardTruncatesOversizedFirstItem(t *testing.T) {
	candidates := []index.Candidate{candidateFixture("WRN-00001", 200)}
	out, used := Compress(IntentSearch, nil, nil, candidates, 30)
	if used > 30 {
		t.Fatalf("used %d tokens over budget", used)
	}
	if out == "" {
		t.Fatal("oversized first item must be truncated to fit, not omitted")
	}
	if !strings.Contains(out, "part") {
		t.Errorf("truncated item lost its content:\n%s", out)
	}
}

func TestCompressEmptyInputs(t *testing.T) {
	out, used := Compress(IntentSearch, nil, nil, nil, 2000)
	if out != "" || used != 0 {
		t.Errorf("Compress(empty) = (%q, %d), want empty", out, used)
	}
}

func TestCompressLookupIncludesSourceDetail(t *testing.T) {
	c := candidateFixture("WRN-00001", 5)
	c.Source = map[string]any{"model": "WC-0220", "status": "active"}
	out, _ := Compress(IntentLookup, nil, nil, []index.Candidate{c}, 2000)
	if !strings.Contains(out, "model=WC-0220") || !strings.Contains(out, "status=active") {
		t.Errorf("lookup detail missing:\n%s", out)
	}
}
