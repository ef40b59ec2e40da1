package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"
)

// FlexNumber accepts JSON numbers and numeric strings; models return both.
type FlexNumber float64

func (f *FlexNumber) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = FlexNumber(num)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		str = strings.TrimSpace(strings.ReplaceAll(str, ",", "."))
		if str == "" {
			*f = 0
			return nil
		}
		parsed, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return err
		}
		*f = FlexNumber(parsed)
		return nil
	}
	if string(data) == "null" {
		*f = 0
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into FlexNumber", string(data))
}

type discoveredReviews struct {
	Score FlexNumber `json:"score"`
	Count FlexNumber `json:"count"`
}

type discoveredCompany struct {
	CompanyName   string             `json:"companyName"`
	Website       string             `json:"website"`
	Address       string             `json:"address"`
	City          string             `json:"city"`
	GoogleReviews *discoveredReviews `json:"googleReviews"`
}

type extractedPerson struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	LinkedIn  string `json:"linkedin"`
}

type extractedContact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type extractedSocials struct {
	Instagram string `json:"instagram"`
	Facebook  string `json:"facebook"`
	LinkedIn  string `json:"linkedin"`
}

type extractedLead struct {
	CEO            extractedPerson  `json:"ceo"`
	CompanyContact extractedContact `json:"companyContact"`
	Socials        extractedSocials `json:"socials"`
	WebsiteScore   FlexNumber       `json:"websiteScore"`
	PainPoints     []string         `json:"painPoints"`
	OfferReason    string           `json:"offerReason"`
	Website        string           `json:"website"`
}

func str() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }

func object(props map[string]*genai.Schema, required ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required}
}

var discoverySchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: object(map[string]*genai.Schema{
		"companyName": str(),
		"website":     str(),
		"address":     str(),
		"city":        str(),
		"googleReviews": object(map[string]*genai.Schema{
			"score": {Type: genai.TypeNumber},
			"count": {Type: genai.TypeInteger},
		}),
	}, "companyName", "website"),
}

var enrichmentSchema = object(map[string]*genai.Schema{
	"ceo": object(map[string]*genai.Schema{
		"firstName": str(),
		"lastName":  str(),
		"email":     str(),
		"phone":     str(),
		"linkedin":  str(),
	}),
	"companyContact": object(map[string]*genai.Schema{
		"email": str(),
		"phone": str(),
	}),
	"socials": object(map[string]*genai.Schema{
		"instagram": str(),
		"facebook":  str(),
		"linkedin":  str(),
	}),
	"websiteScore": {Type: genai.TypeInteger},
	"painPoints":   {Type: genai.TypeArray, Items: str()},
	"offerReason":  str(),
	"website":      str(),
})

// decodeJSON tolerates a fenced or prefixed payload by cutting to the
// outermost brackets.
func decodeJSON(raw string, first, last byte, out any) error {
	start := strings.IndexByte(raw, first)
	end := strings.LastIndexByte(raw, last)
	if start < 0 || end < start {
		return fmt.Errorf("no JSON %c...%c in model output", first, last)
	}
	return json.Unmarshal([]byte(raw[start:end+1]), out)
}
