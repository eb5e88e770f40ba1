package tools

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/quorum"
)

type searchEntry struct {
	key   string
	value string
}

var defaultCorpus = []searchEntry{
	{"react", "ReAct interleaves reasoning with tool use, producing observations that feed back into the loop."},
	{"self-consistency", "Self-consistency samples multiple reasoning paths and picks the most consistent result."},
	{"usc", "Universal Self-Consistency: sample K candidate next steps, then pick/synthesize ONE action to execute."},
	{"tool calling", "Tool calling uses structured function invocation (name + JSON args) instead of parsing freeform text."},
}

// SimpleSearch returns a tool backed by a tiny in-memory knowledge base. It
// exists for demos and tests; the matching is substring plus a word-overlap
// fallback that always returns the two closest entries.
func SimpleSearch() quorum.Tool {
	return &searchTool{corpus: defaultCorpus}
}

type searchTool struct {
	corpus []searchEntry
}

func (x *searchTool) Spec() *quorum.ToolSpec {
	return &quorum.ToolSpec{
		Name:        "simple_search",
		Description: "Search a tiny in-memory knowledge base and return matching snippets.",
		Parameters: map[string]*quorum.Parameter{
			"query": {
				Type: quorum.TypeString,
			},
		},
		Required: []string{"query"},
	}
}

func (x *searchTool) Run(ctx context.Context, args map[string]any) (any, error) {
	raw, ok := args["query"].(string)
	if !ok {
		return nil, goerr.New("query must be a string")
	}
	q := strings.ToLower(raw)

	var hits []map[string]string
	for _, entry := range x.corpus {
		if matchesEntry(q, entry.key) {
			hits = append(hits, map[string]string{"key": entry.key, "value": entry.value})
		}
	}

	// No direct hit: fall back to the two entries with the most shared words.
	if len(hits) == 0 {
		type scored struct {
			score int
			entry searchEntry
		}
		ranked := make([]scored, 0, len(x.corpus))
		for _, entry := range x.corpus {
			ranked = append(ranked, scored{score: wordHits(q, entry.key), entry: entry})
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].score > ranked[j].score
		})
		for _, r := range ranked[:2] {
			hits = append(hits, map[string]string{"key": r.entry.key, "value": r.entry.value})
		}
	}

	return map[string]any{"query": q, "matches": hits}, nil
}

func matchesEntry(query, key string) bool {
	if strings.Contains(query, key) {
		return true
	}
	for _, tok := range strings.Fields(query) {
		if strings.Contains(key, tok) {
			return true
		}
	}
	return false
}

var wordPattern = regexp.MustCompile(`[a-z]+`)

// wordHits counts distinct words (3+ letters) shared by query and key.
func wordHits(query, key string) int {
	qTokens := map[string]bool{}
	for _, tok := range wordPattern.FindAllString(strings.ToLower(query), -1) {
		if len(tok) >= 3 {
			qTokens[tok] = true
		}
	}

	hits := 0
	seen := map[string]bool{}
	for _, tok := range wordPattern.FindAllString(strings.ToLower(key), -1) {
		if qTokens[tok] && !seen[tok] {
			seen[tok] = true
			hits++
		}
	}
	return hits
}
