package listing

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	POST(path string, body interface{}) error
	PATCH(path string, body interface{}) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Save(key, value string)
	Saved(key string) (string, error)
}

// RegisterSteps registers listing creation, lifecycle and search steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &listingSteps{tc: tc}

	// Creation
	ctx.Step(`^I create a residential listing "([^"]*)" in "([^"]*)" at (-?[\d.]+), (-?[\d.]+) with (\d+) images$`, steps.createListing)
	ctx.Step(`^I save the listing id as "([^"]*)"$`, steps.saveListingID)

	// Lifecycle
	ctx.Step(`^I submit listing "([^"]*)"$`, steps.submit)
	ctx.Step(`^I approve listing "([^"]*)"$`, steps.approve)
	ctx.Step(`^I reject listing "([^"]*)" because "([^"]*)"$`, steps.reject)
	ctx.Step(`^I pause listing "([^"]*)"$`, steps.pause)
	ctx.Step(`^I mark listing "([^"]*)" as "([^"]*)"$`, steps.markStatus)

	// Reads
	ctx.Step(`^I view listing "([^"]*)"$`, steps.view)
	ctx.Step(`^I search listings in "([^"]*)"$`, steps.search)
	ctx.Step(`^the search results should include listing "([^"]*)"$`, steps.resultsInclude)
	ctx.Step(`^the search results should not include listing "([^"]*)"$`, steps.resultsExclude)
}

type listingSteps struct {
	tc TestContext
}

func (s *listingSteps) createListing(ctx context.Context, title, city string, lng, lat float64, images int) error {
	media := make([]string, 0, images)
	for i := 0; i < images; i++ {
		media = append(media, fmt.Sprintf("https://cdn.example.test/%s/%d.jpg", city, i))
	}
	body := map[string]interface{}{
		"title":           title,
		"transactionType": "SELL",
		"category":        "RESIDENTIAL",
		"details":         map[string]interface{}{"bhk": 2, "carpetArea": 950, "areaUnit": "SQFT"},
		"location": map[string]interface{}{
			"area":        "Central",
			"city":        city,
			"state":       "Karnataka",
			"coordinates": []float64{lng, lat},
		},
		"pricing": map[string]interface{}{"kind": "EXPECTED_PRICE", "amount": 7_500_000},
		"legal":   map[string]interface{}{"titleClear": true, "encumbranceFree": true, "litigationStatus": "NONE"},
		"media":   map[string]interface{}{"images": media},
	}
	return s.tc.POST("/properties", body)
}

func (s *listingSteps) saveListingID(ctx context.Context, alias string) error {
	v, err := s.tc.GetResponseField("property.id")
	if err != nil {
		return err
	}
	listingID, ok := v.(string)
	if !ok || listingID == "" {
		return fmt.Errorf("response has no listing id: %s", s.tc.GetLastResponseBody())
	}
	s.tc.Save(alias, listingID)
	return nil
}

func (s *listingSteps) path(alias, format string) (string, error) {
	listingID, err := s.tc.Saved(alias)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(format, listingID), nil
}

func (s *listingSteps) post(alias, format string, body interface{}) error {
	p, err := s.path(alias, format)
	if err != nil {
		return err
	}
	return s.tc.POST(p, body)
}

func (s *listingSteps) submit(ctx context.Context, alias string) error {
	return s.post(alias, "/properties/%s/submit", nil)
}

func (s *listingSteps) approve(ctx context.Context, alias string) error {
	return s.post(alias, "/admin/properties/%s/approve", nil)
}

func (s *listingSteps) reject(ctx context.Context, alias, reason string) error {
	return s.post(alias, "/admin/properties/%s/reject", map[string]string{"reason": reason})
}

func (s *listingSteps) pause(ctx context.Context, alias string) error {
	return s.post(alias, "/properties/%s/pause", nil)
}

func (s *listingSteps) markStatus(ctx context.Context, alias, status string) error {
	p, err := s.path(alias, "/properties/%s")
	if err != nil {
		return err
	}
	return s.tc.PATCH(p, map[string]string{"status": status})
}

func (s *listingSteps) view(ctx context.Context, alias string) error {
	p, err := s.path(alias, "/properties/%s")
	if err != nil {
		return err
	}
	return s.tc.GET(p, nil)
}

func (s *listingSteps) search(ctx context.Context, city string) error {
	return s.tc.GET("/properties?city="+city+"&limit=100", nil)
}

func (s *listingSteps) listed(alias string) (bool, error) {
	listingID, err := s.tc.Saved(alias)
	if err != nil {
		return false, err
	}
	v, err := s.tc.GetResponseField("properties")
	if err != nil {
		return false, err
	}
	items, _ := v.([]interface{})
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok && m["id"] == listingID {
			return true, nil
		}
	}
	return false, nil
}

func (s *listingSteps) resultsInclude(ctx context.Context, alias string) error {
	found, err := s.listed(alias)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("listing %s missing from results: %s", alias, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *listingSteps) resultsExclude(ctx context.Context, alias string) error {
	found, err := s.listed(alias)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("listing %s unexpectedly present in results", alias)
	}
	return nil
}
