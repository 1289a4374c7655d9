package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"propnest/internal/comparables"
	"propnest/internal/fraud"
	jwttoken "propnest/internal/jwt_token"
	"propnest/internal/lifecycle"
	"propnest/internal/listing/service"
	nstore "propnest/internal/notification/store"
	pstore "propnest/internal/property/store"
	vservice "propnest/internal/verification/service"
	vstore "propnest/internal/verification/store"
	id "propnest/pkg/domain"
	"propnest/pkg/platform/middleware/auth"
	"propnest/pkg/platform/middleware/request"
	"propnest/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router *chi.Mux
	jwt    *jwttoken.JWTService

	ownerToken    string
	strangerToken string
	adminToken    string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	properties := pstore.NewInMemoryStore()
	verifier, err := vservice.New(vstore.NewInMemoryStore(), vservice.WithLogger(logger))
	s.Require().NoError(err)
	reader, err := comparables.NewReader(properties, 20)
	s.Require().NoError(err)
	detector, err := fraud.New(properties, reader, fraud.WithLogger(logger))
	s.Require().NoError(err)
	controller, err := lifecycle.New(properties, nstore.NewInMemoryStore(),
		lifecycle.WithLogger(logger),
		lifecycle.WithSubmitRequiresReview(true),
	)
	s.Require().NoError(err)
	svc, err := service.New(properties, verifier, detector, controller, service.WithLogger(logger))
	s.Require().NoError(err)

	s.jwt = jwttoken.NewJWTService("handler-test-signing-key", "propnest", "propnest-api")
	s.ownerToken = s.token(id.RoleUser)
	s.strangerToken = s.token(id.RoleUser)
	s.adminToken = s.token(id.RoleAdmin)

	s.router = chi.NewRouter()
	s.router.Use(request.RequestID)
	s.router.Use(auth.Authenticate(jwttoken.NewJWTServiceAdapter(s.jwt), logger))
	New(svc, logger).Register(s.router)
}

func (s *HandlerSuite) token(role id.Role) string {
	tok, err := s.jwt.GenerateAccessToken(id.UserID(uuid.New()), role, time.Hour)
	s.Require().NoError(err)
	return tok
}

func (s *HandlerSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), method, path, body), token)
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	return testutil.DecodeJSON(s.T(), rec)
}

func listingBody(title string, lng, lat float64) map[string]any {
	return map[string]any{
		"title":           title,
		"transactionType": "sell",
		"category":        "residential",
		"details":         map[string]any{"bhk": 3, "carpetArea": 1200, "areaUnit": "SQFT"},
		"location": map[string]any{
			"area":        "Indiranagar",
			"city":        "Bangalore",
			"state":       "Karnataka",
			"coordinates": []float64{lng, lat},
		},
		"pricing": map[string]any{"kind": "expected_price", "amount": 9_000_000},
		"legal":   map[string]any{"titleClear": true, "encumbranceFree": true, "litigationStatus": "none"},
		"media":   map[string]any{"images": []string{"a.jpg", "b.jpg", "c.jpg"}},
	}
}

// createListing posts a listing as the owner and returns its id.
func (s *HandlerSuite) createListing(title string, lng, lat float64) string {
	rec := s.do(http.MethodPost, "/properties", s.ownerToken, listingBody(title, lng, lat))
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	property := s.decode(rec)["property"].(map[string]any)
	return property["id"].(string)
}

// =============================================================================
// Create
// =============================================================================

func (s *HandlerSuite) TestCreate() {
	s.Run("anonymous caller is rejected", func() {
		rec := s.do(http.MethodPost, "/properties", "", listingBody("Sunny flat", 77.59, 12.97))
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("owner creates a draft with its verification", func() {
		rec := s.do(http.MethodPost, "/properties", s.ownerToken, listingBody("Sunny 3BHK near metro", 77.5946, 12.9716))
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

		body := s.decode(rec)
		property := body["property"].(map[string]any)
		s.Equal("DRAFT", property["status"])
		s.Equal("RESIDENTIAL", property["category"])
		s.Equal([]any{77.5946, 12.9716}, property["location"].(map[string]any)["coordinates"])
		s.EqualValues(9, body["remainingQuota"])
		s.Equal([]any{}, body["warnings"])

		verification := body["verification"].(map[string]any)
		s.NotEmpty(verification["assetId"])
		s.Equal(property["assetId"], verification["assetId"])
		s.EqualValues(90, verification["verificationScore"])
	})

	s.Run("malformed JSON is a bad request", func() {
		rec := s.do(http.MethodPost, "/properties", s.ownerToken, "{not json")
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("bad_request", s.decode(rec)["error"])
	})

	s.Run("details on a category without a variant are rejected", func() {
		body := listingBody("Heritage bungalow", 77.6, 12.9)
		body["category"] = "SPECIAL"
		rec := s.do(http.MethodPost, "/properties", s.ownerToken, body)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("validation_error", s.decode(rec)["error"])
	})

	s.Run("out of range coordinates are rejected", func() {
		rec := s.do(http.MethodPost, "/properties", s.ownerToken, listingBody("Nowhere flat", 77.6, 95))
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestCreateDuplicateReturnsMatches() {
	first := s.createListing("Spacious 3BHK Apartment in Indiranagar", 77.5946, 12.9716)

	rec := s.do(http.MethodPost, "/properties", s.strangerToken,
		listingBody("Spacious 3BHK Apartment Indiranagar", 77.5948, 12.9718))
	s.Require().Equal(http.StatusConflict, rec.Code, rec.Body.String())

	body := s.decode(rec)
	s.Equal("conflict", body["error"])
	matches := body["matches"].([]any)
	s.Require().Len(matches, 1)
	s.Equal(first, matches[0].(map[string]any)["id"])
}

func (s *HandlerSuite) TestCreateRateLimited() {
	for i := range 10 {
		s.createListing("Listing "+uuid.NewString(), 70+float64(i), 20)
	}

	rec := s.do(http.MethodPost, "/properties", s.ownerToken, listingBody("Eleventh listing", 60, 20))
	s.Require().Equal(http.StatusTooManyRequests, rec.Code)
	body := s.decode(rec)
	s.Equal("rate_limited", body["error"])
	s.EqualValues(0, body["remaining"])
	s.EqualValues(10, body["limit"])

	quota := s.do(http.MethodGet, "/me/listing-quota", s.ownerToken, nil)
	s.Require().Equal(http.StatusOK, quota.Code)
	s.Equal(false, s.decode(quota)["allowed"])
}

// =============================================================================
// Reads
// =============================================================================

func (s *HandlerSuite) TestGet() {
	listingID := s.createListing("Corner plot flat", 77.6, 12.95)

	s.Run("anonymous viewer sees a draft", func() {
		rec := s.do(http.MethodGet, "/properties/"+listingID, "", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal(listingID, s.decode(rec)["id"])
	})

	s.Run("malformed id is a bad request", func() {
		rec := s.do(http.MethodGet, "/properties/not-a-uuid", "", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown id is not found", func() {
		rec := s.do(http.MethodGet, "/properties/"+uuid.NewString(), "", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("verification record is readable", func() {
		rec := s.do(http.MethodGet, "/properties/"+listingID+"/verification", "", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		body := s.decode(rec)
		s.Equal(listingID, body["propertyId"])
		s.Equal("LOW", body["legal"].(map[string]any)["riskLevel"])
	})
}

func (s *HandlerSuite) TestList() {
	s.createListing("First flat", 77.1, 12.1)
	s.createListing("Second flat", 77.2, 12.2)

	s.Run("filters by city", func() {
		rec := s.do(http.MethodGet, "/properties?city=Bangalore&limit=1", "", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		body := s.decode(rec)
		s.EqualValues(1, body["count"])
		s.Len(body["properties"].([]any), 1)
	})

	s.Run("non-numeric limit is rejected", func() {
		rec := s.do(http.MethodGet, "/properties?limit=ten", "", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("invalid listedBy is rejected", func() {
		rec := s.do(http.MethodGet, "/properties?listedBy=someone", "", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

// =============================================================================
// Lifecycle
// =============================================================================

func (s *HandlerSuite) TestReviewFlow() {
	listingID := s.createListing("Lake view apartment", 77.7, 12.9)

	s.Run("stranger cannot submit", func() {
		rec := s.do(http.MethodPost, "/properties/"+listingID+"/submit", s.strangerToken, nil)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("owner submits for review", func() {
		rec := s.do(http.MethodPost, "/properties/"+listingID+"/submit", s.ownerToken, nil)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		s.Equal("PENDING", s.decode(rec)["status"])
	})

	s.Run("non-admin cannot reach the review routes", func() {
		rec := s.do(http.MethodPost, "/admin/properties/"+listingID+"/approve", s.ownerToken, nil)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("admin rejects with a reason", func() {
		rec := s.do(http.MethodPost, "/admin/properties/"+listingID+"/reject", s.adminToken,
			map[string]string{"reason": "  blurry photos  "})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		body := s.decode(rec)
		s.Equal("REJECTED", body["status"])
		s.Equal("blurry photos", body["rejectionReason"])
	})

	s.Run("a rejected listing cannot be approved", func() {
		rec := s.do(http.MethodPost, "/admin/properties/"+listingID+"/approve", s.adminToken, nil)
		s.Equal(http.StatusConflict, rec.Code)
		s.Equal("invalid_state", s.decode(rec)["error"])
	})
}

func (s *HandlerSuite) TestPauseHidesListing() {
	listingID := s.createListing("Garden villa", 77.8, 12.8)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/properties/"+listingID+"/submit", s.ownerToken, nil).Code)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/admin/properties/"+listingID+"/approve", s.adminToken, nil).Code)

	rec := s.do(http.MethodPost, "/properties/"+listingID+"/pause", s.ownerToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("PAUSED", s.decode(rec)["status"])

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/properties/"+listingID, "", nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/properties/"+listingID, s.ownerToken, nil).Code)

	rec = s.do(http.MethodPost, "/properties/"+listingID+"/resume", s.ownerToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("APPROVED", s.decode(rec)["status"])
}

// =============================================================================
// Edits and engagement
// =============================================================================

func (s *HandlerSuite) TestUpdateAndDelete() {
	listingID := s.createListing("Old title flat", 77.9, 12.7)

	s.Run("empty patch is rejected", func() {
		rec := s.do(http.MethodPatch, "/properties/"+listingID, s.ownerToken, map[string]any{})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("stranger cannot edit", func() {
		rec := s.do(http.MethodPatch, "/properties/"+listingID, s.strangerToken, map[string]any{"title": "Mine now"})
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("owner edits the title", func() {
		rec := s.do(http.MethodPatch, "/properties/"+listingID, s.ownerToken, map[string]any{"title": "New title flat"})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		s.Equal("New title flat", s.decode(rec)["title"])
	})

	s.Run("owner marks it sold", func() {
		rec := s.do(http.MethodPatch, "/properties/"+listingID, s.ownerToken, map[string]any{"status": "sold"})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		s.Equal("SOLD", s.decode(rec)["status"])
	})

	s.Run("owner deletes it", func() {
		rec := s.do(http.MethodDelete, "/properties/"+listingID, s.ownerToken, nil)
		s.Equal(http.StatusNoContent, rec.Code)
		s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/properties/"+listingID, "", nil).Code)
	})
}

func (s *HandlerSuite) TestEngagement() {
	listingID := s.createListing("Rooftop studio", 77.4, 12.6)

	s.Equal(http.StatusNoContent, s.do(http.MethodPost, "/properties/"+listingID+"/save", s.strangerToken, nil).Code)
	s.Equal(http.StatusNoContent, s.do(http.MethodPost, "/properties/"+listingID+"/inquiries", s.strangerToken, nil).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/properties/"+listingID+"/inquiries", s.ownerToken, nil).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/properties/"+listingID+"/save", "", nil).Code)

	rec := s.do(http.MethodGet, "/properties/"+listingID, s.ownerToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	counters := s.decode(rec)["counters"].(map[string]any)
	s.EqualValues(1, counters["saves"])
	s.EqualValues(1, counters["inquiries"])
}

func (s *HandlerSuite) TestAdvisoryChecks() {
	s.createListing("Spacious 3BHK Apartment in Indiranagar", 77.5946, 12.9716)

	rec := s.do(http.MethodPost, "/properties/checks/duplicate", s.strangerToken,
		listingBody("Spacious 3BHK Apartment Indiranagar", 77.5948, 12.9718))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal(true, s.decode(rec)["isDuplicate"])

	rec = s.do(http.MethodPost, "/properties/checks/price", s.strangerToken, listingBody("Any flat", 77.59, 12.97))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal(false, s.decode(rec)["isAnomaly"])
}
