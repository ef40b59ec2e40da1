package domain

import (
	"testing"
	"time"
)

func TestCompanyKeyFoldsCaseAndWhitespace(t *testing.T) {
	if CompanyKey("  ACME   Bouw ") != CompanyKey("acme bouw") {
		t.Fatalf("expected keys to match")
	}
	if CompanyKey("Acme NV") == CompanyKey("Acme") {
		t.Fatalf("expected legal suffix to keep names distinct")
	}
}

func TestNormalizeSplitsFlatCEOName(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	got := Normalize(Lead{CompanyName: " Acme ", CEOName: "Jan de Vries"}, now)

	if got.ID == "" {
		t.Fatalf("expected generated id")
	}
	if got.CEO.FirstName != "Jan" || got.CEO.LastName != "de Vries" {
		t.Fatalf("expected split name, got %q %q", got.CEO.FirstName, got.CEO.LastName)
	}
	if got.CompanyName != "Acme" {
		t.Fatalf("expected trimmed company name, got %q", got.CompanyName)
	}
	if got.PipelineTag != StageCold {
		t.Fatalf("expected default stage cold, got %q", got.PipelineTag)
	}
	if got.OutboundChannel != ChannelColdEmail {
		t.Fatalf("expected default channel coldemail, got %q", got.OutboundChannel)
	}
	if !got.ScrapedAt.Equal(now) {
		t.Fatalf("expected scrapedAt defaulted to now")
	}
}

func TestNormalizeFillsFlatNameFromStructured(t *testing.T) {
	got := Normalize(Lead{CompanyName: "Acme", CEO: Person{FirstName: "An", LastName: "Peeters"}}, time.Now())
	if got.CEOName != "An Peeters" {
		t.Fatalf("expected An Peeters, got %q", got.CEOName)
	}
}

func TestNormalizeClampsScoresAndDropsBadEmail(t *testing.T) {
	got := Normalize(Lead{
		CompanyName:     "Acme",
		ConfidenceScore: 140,
		WebsiteScore:    -2,
		CEO:             Person{Email: "not-an-email"},
		CompanyContact:  Contact{Email: " Info@Acme.be "},
	}, time.Now())

	if got.ConfidenceScore != 100 || got.WebsiteScore != 0 {
		t.Fatalf("expected clamped scores, got %d/%d", got.ConfidenceScore, got.WebsiteScore)
	}
	if got.CEO.Email != "" {
		t.Fatalf("expected invalid email dropped, got %q", got.CEO.Email)
	}
	if got.CompanyContact.Email != "info@acme.be" {
		t.Fatalf("expected lowercased email, got %q", got.CompanyContact.Email)
	}
}

func TestNormalizeDoesNotAliasInput(t *testing.T) {
	in := Lead{CompanyName: "Acme", Interactions: []Interaction{{Type: "carrier-pigeon"}}}
	out := Normalize(in, time.Now())
	out.Interactions[0].Outcome = "changed"

	if in.Interactions[0].Outcome != "" {
		t.Fatalf("expected input untouched")
	}
	if out.Interactions[0].Type != InteractionSystem {
		t.Fatalf("expected unknown interaction type mapped to system, got %q", out.Interactions[0].Type)
	}
}

func TestValidateRequiresCompanyName(t *testing.T) {
	if err := Validate(Lead{CompanyName: "  "}); err == nil {
		t.Fatalf("expected validation error")
	}
	if err := Validate(Lead{CompanyName: "Acme"}); err != nil {
		t.Fatalf("expected valid lead, got %v", err)
	}
}

func TestWebsiteHelpers(t *testing.T) {
	if got := CanonicalWebsite("WWW.Acme.be/"); got != "https://www.acme.be" {
		t.Fatalf("unexpected canonical website %q", got)
	}
	if got := CanonicalWebsite("n/a"); got != "" {
		t.Fatalf("expected empty for junk, got %q", got)
	}
	if got := WebsiteDomain("https://shop.acme.co.uk/contact"); got != "acme.co.uk" {
		t.Fatalf("expected acme.co.uk, got %q", got)
	}
}

func TestPhoneNumbersDedupesAndSkipsShort(t *testing.T) {
	l := Lead{
		CEO:            Person{Phone: "+32470123456"},
		CompanyContact: Contact{Phone: "+32470123456"},
	}
	if got := l.PhoneNumbers(); len(got) != 1 {
		t.Fatalf("expected one phone, got %v", got)
	}

	l = Lead{CompanyContact: Contact{Phone: "123"}}
	if got := l.PrimaryPhone(); got != "" {
		t.Fatalf("expected no usable phone, got %q", got)
	}
}

func TestCompletenessScore(t *testing.T) {
	full := Lead{
		CEOName:        "Jan",
		CEO:            Person{Email: "jan@acme.be", Phone: "+32470123456"},
		CompanyContact: Contact{Email: "info@acme.be"},
		Website:        "https://acme.be",
	}
	if got := CompletenessScore(full); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
	if got := CompletenessScore(Lead{}); got != 20 {
		t.Fatalf("expected 20, got %d", got)
	}
}
