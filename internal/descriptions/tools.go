package descriptions

// Tool descriptions with practical examples for the review-routing tools

const (
	ScorePageDescription = `Score the OCR artifacts of one register page and recommend how to route it.

**When to use:** A page directory holds record_candidates.json (and ideally tokens_normalized.json, table_provenance.json and record_candidates_provenance.json) and you need to decide whether the extracted records can be accepted or must go to a human reviewer.

**Why it's useful:** Every field gets a score from OCR confidence and validity checks, with reason codes explaining each deduction. Rows and the page are aggregated into a routing recommendation: accepted, accepted_with_flags, review or retry.

**Examples:**
• Route a page: "Score register_1921/page_0042 and tell me if it needs review"
• Force a record type: "Score page_0007 as a marriage register"
• Persist the result: "Score page_0003 and write scoring_v2.json next to it"

**Common workflows:**
1. Triage: find_pages → score_page each page → send review/retry pages to the review queue
2. Review UI: score_page → highlight fields with needs_review using token_ids and bbox_union
3. Audit: score_page with write → keep scoring_v2.json and the input digest with the page

**Best practices:** Missing artifacts are scored as empty; a page without candidates routes to review.`

	ScoreArtifactsDescription = `Score OCR artifacts supplied inline as JSON documents.

**When to use:** The artifacts are not on disk under the artifact root, for example when a pipeline stage wants a routing decision before persisting its outputs.

**Why it's useful:** Runs exactly the same scoring as score_page without touching the filesystem.

**Examples:**
• Pre-commit check: "Score these candidates and provenance documents before saving them"
• Threshold experiments: "Score this page again as a funeral record"

**Common workflows:**
1. Pipeline gate: extract → score_artifacts → persist only accepted pages
2. Debugging: paste the four documents → inspect reasons per field

**Best practices:** Pass each document as a JSON string; omitted documents are treated as empty.`

	FindPagesDescription = `Discover page directories under the artifact root.

**When to use:** You need the list of pages that can be scored, optionally filtered by register or page name.

**Why it's useful:** Lists every directory holding record_candidates.json and shows whether a scoring_v2.json result already exists.

**Examples:**
• List everything: "Which pages are available for scoring?"
• Filter: "Find pages of register_1890"
• Backlog: "Which pages in register_1921 have not been scored yet?"

**Common workflows:**
1. Batch scoring: find_pages → score_page with write for pages without a result
2. Progress check: find_pages → count has_result

**Best practices:** The query is matched case-insensitively against the page path relative to the searched directory.`

	RoutingServerInfoDescription = `Get server information, scoring thresholds, rules and usage guidance.

**When to use:** First call in a session, or whenever you need to know which record types and thresholds are in effect.

**Why it's useful:** Shows the artifact root, active thresholds, required fields per record type, available pages and the tools this server offers.

**Examples:**
• Orientation: "What can the review routing server do?"
• Rules check: "Which fields are required for baptism records?"

**Best practices:** Call this before scoring to confirm the thresholds match your pipeline.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"score_page":          ScorePageDescription,
	"score_artifacts":     ScoreArtifactsDescription,
	"find_pages":          FindPagesDescription,
	"routing_server_info": RoutingServerInfoDescription,
}

// GetToolDescription returns the description of a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the tool names in registration order
func GetAllToolNames() []string {
	return []string{"score_page", "score_artifacts", "find_pages", "routing_server_info"}
}
