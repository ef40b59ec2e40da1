package service

import "fmt"

func discoveryPrompt(sector, location string) string {
	return fmt.Sprintf(`Find AT LEAST 20 active and relevant companies in the sector "%s" in region "%s".
Use Google Maps grounding for up-to-date information.
FOCUS: Avoid big chains, focus on local SME businesses that need marketing help.
Provide for each company: Name, Address, City, Website, and Google Review Score/Count.`, sector, location)
}

func discoveryParsePrompt(text string) string {
	return "Parse the following text into a JSON array of objects: " + text
}

func researchPrompt(company, city, website string) string {
	if website == "" {
		website = "Search for the website if missing"
	}
	return fmt.Sprintf(`Research the company %s (%s).

TASK:
1. Who is the OWNER or CEO? Use public records, LinkedIn and "About Us" pages.
2. Find the personal LinkedIn profile of this person.
3. Find a direct phone (mobile) and personal email (no info@ or sales@).
4. Technical audit of the website (%s): speed, SEO gaps, conversion leaks.
5. Give 3 concrete reasons why this company needs marketing help now.
6. Identify all social media channels (Facebook, Instagram, LinkedIn).

Be specific. Do not guess. Use Google Search to verify every fact.`, company, city, website)
}

func extractionPrompt(research string) string {
	return "Extract lead data into JSON from this research: " + research
}
