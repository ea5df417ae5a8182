package extract

import (
	"fmt"
	"strings"
)

const systemPrompt = `You extract activewear and apparel manufacturer profiles from website text.

Return ONLY a JSON object with exactly these keys:
{
  "name": string,
  "website": string,
  "location": string,
  "email": string,
  "phone": string,
  "address": string,
  "materials": [string],
  "production_methods": [string],
  "moq": integer,
  "moq_description": string,
  "certifications": [string],
  "notes": string,
  "website_signals": {
    "testimonials": boolean,
    "portfolio": boolean,
    "factory_photos": boolean,
    "awards": boolean,
    "sustainability_focus": boolean,
    "transparent_supply_chain": boolean,
    "social_responsibility": boolean,
    "environmental_initiatives": boolean,
    "recent_updates": boolean,
    "export_experience": boolean,
    "international_clients": boolean,
    "trade_shows": boolean,
    "years_in_business": integer
  }
}

Rules:
- Only report what the text states. Use null for any string or integer you cannot find and [] for lists. Never guess.
- "name" is the manufacturer's company name, not the page title or a product name.
- "website" is the company's own site if the text names one.
- "location" is "City, Country" or just the country.
- "moq" is the minimum order quantity in pieces per order or per style as a plain integer. Put wording such as "flexible" or "low MOQ" in "moq_description".
- "certifications" are formal certifications held (OEKO-TEX, GOTS, bluesign, WRAP, BSCI, ISO 9001, ...). Note certifications that are in progress as such.
- "notes" is one or two sentences on specialties, capacity or notable clients.
- A website signal is true only when the page shows clear evidence of it.`

// userPrompt builds the per-page prompt. text is already truncated.
func userPrompt(sourceURL, title, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", sourceURL)
	if title != "" {
		fmt.Fprintf(&b, "Page title: %s\n", title)
	}
	b.WriteString("\nContent:\n")
	b.WriteString(text)
	b.WriteString("\n\nReturn ONLY valid JSON, no markdown or explanation.")
	return b.String()
}
