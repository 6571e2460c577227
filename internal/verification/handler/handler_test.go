package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"carecheck/internal/verification/handler/mocks"
	"carecheck/internal/verification/models"
	"carecheck/internal/verification/ocg"
	"carecheck/internal/verification/service"
	id "carecheck/pkg/domain"
	dErrors "carecheck/pkg/domain-errors"
	"carecheck/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
	userID  uuid.UUID
	now     time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.RegisterCandidateRoutes(s.router)
	h.RegisterAdminRoutes(s.router)
	h.RegisterInternalRoutes(s.router)
	s.userID = uuid.New()
	s.now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) asCandidate(req *http.Request) *http.Request {
	return testutil.WithPrincipal(req, s.userID.String(), id.RoleCandidate)
}

func (s *HandlerSuite) asAdmin(req *http.Request) *http.Request {
	return testutil.WithPrincipal(req, uuid.NewString(), id.RoleAdmin)
}

func (s *HandlerSuite) record() *models.Record {
	rec := models.NewRecord(id.NewVerificationID(), id.CandidateID(s.userID), s.now)
	rec.ApplyIdentitySubmission(models.IdentityDeclared{Surname: "Nguyen", DateOfBirth: "1994-05-02"}, nil, s.now)
	return rec
}

func (s *HandlerSuite) TestSubmitIdentity() {
	s.Run("valid submission is accepted", func() {
		rec := s.record()
		s.service.EXPECT().
			SubmitIdentity(gomock.Any(), id.CandidateID(s.userID), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.CandidateID, sub service.IdentitySubmission) (*models.Record, error) {
				s.Equal("Nguyen", sub.Declared.Surname)
				s.Equal("AUS", sub.Declared.PassportCountry)
				s.Equal([]models.DocumentRef{{Key: "identity/passport.jpg"}}, sub.Documents)
				return rec, nil
			})

		req := s.asCandidate(testutil.NewJSONRequest(s.T(), http.MethodPut, "/v1/verification/identity", map[string]any{
			"surname":          " Nguyen ",
			"given_names":      "Linh",
			"date_of_birth":    "1994-05-02",
			"passport_country": "aus",
			"documents":        []map[string]string{{"key": "identity/passport.jpg"}},
		}))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusAccepted)
		resp := testutil.UnmarshalResponse[StatusResponse](s.T(), rr)
		s.Equal(models.OverallPendingIDAuto.Code(), resp.VerificationStatus)
		s.Equal("pending", resp.Identity.Status)
	})

	s.Run("malformed json", func() {
		req := s.asCandidate(testutil.NewRequestWithBody(s.T(), http.MethodPut, "/v1/verification/identity", "{"))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("invalid contact email", func() {
		req := s.asCandidate(testutil.NewJSONRequest(s.T(), http.MethodPut, "/v1/verification/identity", map[string]any{
			"surname":       "Nguyen",
			"contact_email": "not-an-address",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("service validation error is passed through", func() {
		s.service.EXPECT().SubmitIdentity(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "surname is required"))
		req := s.asCandidate(testutil.NewJSONRequest(s.T(), http.MethodPut, "/v1/verification/identity", map[string]any{}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func (s *HandlerSuite) TestSubmitWWCC_RejectsUnknownMethod() {
	req := s.asCandidate(testutil.NewJSONRequest(s.T(), http.MethodPut, "/v1/verification/wwcc", map[string]any{
		"method": "fax",
		"number": "WWC1234567E",
	}))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
}

func (s *HandlerSuite) TestSubmitWWCC_Accepted() {
	rec := s.record()
	rec.ApplyWWCCSubmission(models.WWCCDeclared{Method: models.WWCCMethodManualEntry}, nil, s.now)
	s.service.EXPECT().
		SubmitWWCC(gomock.Any(), id.CandidateID(s.userID), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.CandidateID, sub service.WWCCSubmission) (*models.Record, error) {
			s.Equal(models.WWCCMethodManualEntry, sub.Declared.Method)
			s.Equal("2028-10-13", sub.Declared.Expiry)
			return rec, nil
		})

	req := s.asCandidate(testutil.NewJSONRequest(s.T(), http.MethodPut, "/v1/verification/wwcc", map[string]any{
		"method":        "manual_entry",
		"number":        "WWC1234567E",
		"expiry":        "2028-10-13",
		"family_name":   "Nguyen",
		"date_of_birth": "1994-05-02",
	}))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusAccepted)
	testutil.AssertJSONContains(s.T(), rr, "verification_status", float64(models.OverallPendingWWCCAuto.Code()))
}

func (s *HandlerSuite) TestStatus() {
	s.Run("no record yet", func() {
		s.service.EXPECT().Status(gomock.Any(), id.CandidateID(s.userID)).Return(nil, nil)
		rr := testutil.DoRequest(s.router, s.asCandidate(testutil.NewRequest(s.T(), http.MethodGet, "/v1/verification/status")))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[StatusResponse](s.T(), rr)
		s.Equal(0, resp.VerificationStatus)
		s.Equal("not_started", resp.StatusName)
		s.Nil(resp.Identity)
	})

	s.Run("fully verified record", func() {
		rec := s.record()
		rec.SetIdentityStatus(models.IdentityVerified, s.now)
		rec.ApplyOCGResult(models.OCGResult{ResultStatus: "CLEARED", ExpiryDate: "2028-10-13"}, models.WWCCOCGVerified, s.now)
		rec.SetCrossCheckStatus(models.CrossCheckPassed, s.now)
		s.service.EXPECT().Status(gomock.Any(), id.CandidateID(s.userID)).Return(rec, nil)

		rr := testutil.DoRequest(s.router, s.asCandidate(testutil.NewRequest(s.T(), http.MethodGet, "/v1/verification/status")))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[StatusResponse](s.T(), rr)
		s.Equal(40, resp.VerificationStatus)
		s.Equal("fully_verified", resp.StatusName)
		s.Require().NotNil(resp.OCG)
		s.Equal("2028-10-13", resp.OCG.ExpiryDate)
	})

	s.Run("internal errors hide their description", func() {
		s.service.EXPECT().Status(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "database password rejected"))
		rr := testutil.DoRequest(s.router, s.asCandidate(testutil.NewRequest(s.T(), http.MethodGet, "/v1/verification/status")))
		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		s.NotContains(rr.Body.String(), "password")
	})
}

func (s *HandlerSuite) TestTriggerPhase() {
	rec := s.record()

	s.Run("runs the named phase", func() {
		rec.SetIdentityStatus(models.IdentityVerified, s.now)
		s.service.EXPECT().TriggerPhase(gomock.Any(), rec.ID, "identity").Return(rec, nil)
		rr := testutil.DoRequest(s.router, s.asCandidate(testutil.NewRequest(s.T(), http.MethodPost, "/v1/verifications/"+rec.ID.String()+"/phases/identity")))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("bad record id", func() {
		rr := testutil.DoRequest(s.router, s.asCandidate(testutil.NewRequest(s.T(), http.MethodPost, "/v1/verifications/not-a-uuid/phases/identity")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("conflict maps to 409", func() {
		s.service.EXPECT().TriggerPhase(gomock.Any(), rec.ID, "wwcc").
			Return(nil, dErrors.New(dErrors.CodeConflict, "wwcc phase cannot run from status not_started"))
		rr := testutil.DoRequest(s.router, s.asCandidate(testutil.NewRequest(s.T(), http.MethodPost, "/v1/verifications/"+rec.ID.String()+"/phases/wwcc")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})
}

func (s *HandlerSuite) TestAdminRoutes() {
	rec := s.record()
	base := "/v1/admin/verifications/" + rec.ID.String()

	s.Run("verify identity", func() {
		s.service.EXPECT().VerifyIdentity(gomock.Any(), rec.ID).Return(rec, nil)
		rr := testutil.DoRequest(s.router, s.asAdmin(testutil.NewRequest(s.T(), http.MethodPost, base+"/identity:verify")))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("reject without reason never reaches the service", func() {
		rr := testutil.DoRequest(s.router, s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/identity:reject", map[string]string{"reason": "  "})))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("reject wwcc with reason", func() {
		s.service.EXPECT().RejectWWCC(gomock.Any(), rec.ID, "number belongs to someone else").Return(rec, nil)
		rr := testutil.DoRequest(s.router, s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/wwcc:reject",
			map[string]string{"reason": "number belongs to someone else"})))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("barred record maps to 409", func() {
		s.service.EXPECT().ConfirmWWCC(gomock.Any(), rec.ID).
			Return(nil, dErrors.New(dErrors.CodeInvariantViolation, "candidate is barred; record is closed to changes"))
		rr := testutil.DoRequest(s.router, s.asAdmin(testutil.NewRequest(s.T(), http.MethodPost, base+"/wwcc:confirm")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeInvariantViolation))
	})

	s.Run("approve cross-check", func() {
		s.service.EXPECT().ApproveCrossCheck(gomock.Any(), rec.ID).Return(rec, nil)
		rr := testutil.DoRequest(s.router, s.asAdmin(testutil.NewRequest(s.T(), http.MethodPost, base+"/cross-check:approve")))
		testutil.AssertStatusOK(s.T(), rr)
	})
}

func (s *HandlerSuite) TestIngestOCGEmail() {
	s.Run("summary is returned", func() {
		recordID := id.NewVerificationID()
		s.service.EXPECT().IngestOCGEmail(gomock.Any(), "<html>email</html>").Return(&service.IngestSummary{
			EmployerID: "EMP-0042",
			Applied: []service.AppliedResult{{
				VerificationID:  recordID,
				ReferenceNumber: "WWC1234567E",
				ResultStatus:    "CLEARED",
				Status:          models.WWCCOCGVerified,
			}},
			Unmatched: []ocg.Result{{ReferenceNumber: "WWC7654321E"}},
		}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/internal/ocg/emails", "<html>email</html>"))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[IngestResponse](s.T(), rr)
		s.Require().Len(resp.Applied, 1)
		s.Equal("ocg_verified", resp.Applied[0].WWCCStatus)
		s.Equal([]string{"WWC7654321E"}, resp.Unmatched)
		s.Empty(resp.Ignored)
	})

	s.Run("malformed email is 422", func() {
		s.service.EXPECT().IngestOCGEmail(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeMalformedInput, "ocg email could not be parsed"))
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/internal/ocg/emails", "<p>hi</p>"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, string(dErrors.CodeMalformedInput))
	})

	s.Run("empty body", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/internal/ocg/emails", ""))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})
}
