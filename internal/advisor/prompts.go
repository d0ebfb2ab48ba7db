package advisor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ziadkadry99/productassist/internal/catalog"
	"github.com/ziadkadry99/productassist/internal/retriever"
)

const attributeSystemPrompt = `You identify facts about a customer from what they write. Reply only with the requested tags.`

const attributePromptTemplate = `Find the industry, size, sustainability focus, inventory manager flag and location in the customer input.

- industry is one of: Manufacturing, Warehousing, Government and Public Safety, Education, Food and Beverage Distribution, Hospitality, Property Management, Retail, Other.
- size is one of: Individual Customer, Small Business, Large Enterprise.
- sustainability_focused is true for buyers looking for energy, water, waste or air quality improvements.
- inventory_manager is true when buying in bulk to supply a group rather than for personal use.

Leave out anything the input does not say. Return a JSON object inside <attributes></attributes>, or empty tags if nothing is known.

Customer input: %s`

const answerSystemPrompt = `You are a friendly salesperson for an industrial supply catalog. Recommend only products that appear in the catalog you are given, and never invent product codes.`

const answerPromptTemplate = `The catalog entries relevant to this question are between the <catalog></catalog> tags.
<catalog>
%s
</catalog>
%s
Question: %s

Reply in exactly this form and nothing else:
<response>a complete, friendly answer to the question</response>
<products>[{"product": "product name from the catalog", "code": "product code from the catalog"}]</products>

Do not repeat a product. Use an empty list [] if no product fits.`

// historyWindow is how many previous exchanges are shown to the model.
const historyWindow = 10

func buildAttributePrompt(question string) string {
	return fmt.Sprintf(attributePromptTemplate, question)
}

func buildAnswerPrompt(question string, attrs map[string]any, matches []retriever.Match, history []Exchange) string {
	var cat strings.Builder
	for _, m := range matches {
		cat.WriteString(documentLine(m.Document))
		cat.WriteString("\n")
	}

	var extra strings.Builder
	if len(history) > 0 {
		if len(history) > historyWindow {
			history = history[len(history)-historyWindow:]
		}
		extra.WriteString("\nConversation so far:\n")
		for _, h := range history {
			fmt.Fprintf(&extra, "User: %s\nAssistant: %s\n", h.Question, h.Message)
		}
	}
	if len(attrs) > 0 {
		fmt.Fprintf(&extra, "\nKnown customer attributes: %s\n", compactJSON(attrs))
	}

	return fmt.Sprintf(answerPromptTemplate, strings.TrimRight(cat.String(), "\n"), extra.String(), question)
}

// documentLine renders a document with every non-empty field, known
// fields first.
func documentLine(d catalog.Document) string {
	parts := []string{d.Text}
	var keys []string
	for k, v := range d.Fields {
		switch k {
		case catalog.FieldCode, catalog.FieldName, catalog.FieldPrice, catalog.FieldDescription:
			continue
		}
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+": "+d.Fields[k])
	}
	return "- " + strings.Join(parts, " | ")
}

// retrievalQuery appends known attributes to the question so they steer
// the similarity search.
func retrievalQuery(question string, attrs map[string]any) string {
	if len(attrs) == 0 {
		return question
	}
	return question + " " + compactJSON(attrs)
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
