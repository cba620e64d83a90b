package classifier

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const cdlSystemPrompt = `You are a CDL trucking job classifier. For each job posting, decide whether
it is a genuine, currently-open commercial driving position suitable for a CDL-holding
driver. Classify "match" as one of "good", "so-so", or "bad". Provide a one-sentence
"reason", a short "summary", whether the posting mentions fair-chance/second-chance
hiring ("fair_chance"), and any notable "endorsements" required (e.g. hazmat, tanker,
doubles/triples).`

const pathwaySystemPrompt = `You are a CDL career-pathway classifier. In addition to the standard
quality classification (match/reason/summary/fair_chance/endorsements), identify whether
this posting represents a training-to-CDL pathway ("career_pathway": e.g. "company-sponsored
CDL school", "apprenticeship", "tuition reimbursement", or "" if not applicable) and whether
paid training is explicitly offered ("training_provided").`

// SystemPrompt returns the system instruction for classifierType.
func SystemPrompt(classifierType Type) string {
	if classifierType == TypePathway {
		return pathwaySystemPrompt
	}
	return cdlSystemPrompt
}

// UserPrompt renders one job's structured classification request as YAML,
// per §4.6: "job_id, job_title, company, location, and description". YAML
// keeps the prompt readable to the model without the bracket noise of JSON.
func UserPrompt(req Request) string {
	data := map[string]string{
		"job_id":      req.JobID,
		"job_title":   req.JobTitle,
		"company":     req.Company,
		"location":    req.Location,
		"description": req.Description,
	}
	out, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Sprintf("job_id: %s\n", req.JobID)
	}
	return string(out)
}

// BatchPrompt renders an entire batch as one user turn; each job is clearly
// delimited so the model can return one result object per job_id.
func BatchPrompt(batch []Request) string {
	var b strings.Builder
	b.WriteString("Classify each of the following jobs. Return one result object per job_id.\n\n")
	for i, req := range batch {
		fmt.Fprintf(&b, "--- job %d ---\n%s\n", i+1, UserPrompt(req))
	}
	return b.String()
}

// ResultSchema is the JSON schema both providers are constrained to, shared
// so the Claude tool-use schema and the Gemini ResponseSchema stay in sync.
func ResultSchema(classifierType Type) map[string]any {
	properties := map[string]any{
		"results": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"job_id":       map[string]any{"type": "string"},
					"match":        map[string]any{"type": "string", "enum": []string{"good", "so-so", "bad"}},
					"reason":       map[string]any{"type": "string"},
					"summary":      map[string]any{"type": "string"},
					"fair_chance":  map[string]any{"type": "boolean"},
					"endorsements": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"job_id", "match", "reason", "summary"},
			},
		},
	}

	if classifierType == TypePathway {
		items := properties["results"].(map[string]any)["items"].(map[string]any)
		itemProps := items["properties"].(map[string]any)
		itemProps["career_pathway"] = map[string]any{"type": "string"}
		itemProps["training_provided"] = map[string]any{"type": "boolean"}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   []string{"results"},
	}
}
