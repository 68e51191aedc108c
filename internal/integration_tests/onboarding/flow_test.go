package onboarding_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounthandler "alumnus/internal/account/handler"
	accountmodels "alumnus/internal/account/models"
	accountservice "alumnus/internal/account/service"
	accountstore "alumnus/internal/account/store"
	"alumnus/internal/agerules"
	"alumnus/internal/alumni"
	alumnimodels "alumnus/internal/alumni/models"
	alumnistore "alumnus/internal/alumni/store"
	"alumnus/internal/consent"
	consentstore "alumnus/internal/consent/store"
	onboardinghandler "alumnus/internal/onboarding/handler"
	onboardingmodels "alumnus/internal/onboarding/models"
	onboardingservice "alumnus/internal/onboarding/service"
	outboxstore "alumnus/internal/outbox/store"
	"alumnus/internal/platform/metrics"
	profilestore "alumnus/internal/profile/store"
	ratelimitmw "alumnus/internal/ratelimit/middleware"
	ratelimitmodels "alumnus/internal/ratelimit/models"
	"alumnus/internal/ratelimit/store/bucket"
	"alumnus/internal/session/device"
	sessionhandler "alumnus/internal/session/handler"
	sessionmodels "alumnus/internal/session/models"
	sessionservice "alumnus/internal/session/service"
	sessionstore "alumnus/internal/session/store"
	"alumnus/internal/session/token"
	httptransport "alumnus/internal/transport/http"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
	txcontext "alumnus/pkg/platform/tx"
	"alumnus/pkg/testutil"
)

const (
	familyEmail = "family@example.org"
	password    = "correct-horse-battery"
)

type stack struct {
	router http.Handler
	events *outboxstore.InMemory
}

// newStack wires the in-memory backends the way the server does without a
// database.
func newStack(t *testing.T, authLimit int) *stack {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	accounts := accountstore.NewInMemory()
	directory := alumnistore.NewInMemory()
	profiles := profilestore.NewInMemory()
	ledger := consentstore.NewInMemory()
	events := outboxstore.NewInMemory()

	now := time.Now().UTC().Year()
	parentYear, childYear, toddlerYear := now-44, now-15, now-9
	directory.Seed(
		alumnimodels.Record{ID: 7001, FirstName: "Jane", LastName: "Doe", Email: familyEmail, Batch: "1998", CenterName: "North Campus", YearOfBirth: &parentYear},
		alumnimodels.Record{ID: 7002, FirstName: "Sam", LastName: "Doe", Email: familyEmail, Batch: "2024", CenterName: "North Campus", YearOfBirth: &childYear},
		alumnimodels.Record{ID: 7003, FirstName: "Ada", LastName: "Doe", Email: familyEmail, Batch: "2030", CenterName: "North Campus", YearOfBirth: &toddlerYear},
	)

	jwt := token.NewJWTService("flow-test-signing-key-0123456789", "alumnus", "alumnus-api")
	accountSvc := accountservice.New(accounts, jwt, accountservice.WithLogger(log), accountservice.WithMetrics(m))
	onboarding := onboardingservice.New(accountSvc, alumni.NewGateway(directory), profiles,
		consent.NewLedger(ledger, consent.WithOutbox(events), consent.WithLogger(log)),
		txcontext.NewMemory(accounts, directory, profiles, ledger, events),
		onboardingservice.WithLogger(log),
		onboardingservice.WithMetrics(m),
	)
	switcher := sessionservice.New(profiles, jwt, sessionstore.NewInMemory(),
		sessionservice.WithLogger(log),
		sessionservice.WithMetrics(m),
		sessionservice.WithDeviceService(device.NewService(true)),
	)

	limiter := ratelimitmw.New(bucket.NewInMemory(), log,
		ratelimitmw.WithLimit(ratelimitmodels.ClassAuth, ratelimitmodels.Limit{RequestsPerWindow: authLimit, Window: time.Minute}),
		ratelimitmw.WithLimit(ratelimitmodels.ClassAccountWrite, ratelimitmodels.Limit{RequestsPerWindow: 100, Window: time.Minute}),
		ratelimitmw.WithMetrics(m),
	)

	sessionH := sessionhandler.New(switcher, log)
	router := httptransport.NewRouter(httptransport.Options{
		Logger:              log,
		Metrics:             m,
		Validator:           token.NewMiddlewareAdapter(jwt),
		Public:              []httptransport.RouteRegistrar{accounthandler.New(accountSvc, log).Register, sessionH.RegisterPublic},
		Protected:           []httptransport.RouteRegistrar{onboardinghandler.New(onboarding, log).Register, sessionH.Register},
		PublicMiddleware:    []func(http.Handler) http.Handler{limiter.RateLimit(ratelimitmodels.ClassAuth)},
		ProtectedMiddleware: []func(http.Handler) http.Handler{limiter.RateLimitAccount(ratelimitmodels.ClassAccountWrite)},
	})
	return &stack{router: router, events: events}
}

func (s *stack) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	return testutil.DoRequest(s.router, req)
}

func (s *stack) login(t *testing.T) string {
	t.Helper()
	res := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{"email": familyEmail, "password": password})
	testutil.AssertStatus(t, res, http.StatusCreated)

	res = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": familyEmail, "password": password})
	testutil.AssertStatusOK(t, res)
	login := testutil.UnmarshalResponse[accountmodels.LoginResult](t, res)
	require.NotEmpty(t, login.AccessToken)
	return login.AccessToken
}

func TestFamilyOnboardingFlow(t *testing.T) {
	testutil.Given(t, "a registered account whose email matches three alumni records", func(t *testing.T) {
		st := newStack(t, 20)
		accessToken := st.login(t)

		testutil.When(t, "the account discovers its matches", func(t *testing.T) {
			res := st.do(t, http.MethodGet, "/onboarding/matches", accessToken, nil)
			testutil.AssertStatusOK(t, res)
			matches := testutil.UnmarshalResponse[onboardinghandler.MatchesResponse](t, res).Matches

			testutil.Then(t, "every record is listed with its classification", func(t *testing.T) {
				require.Len(t, matches, 3)
				byID := map[id.AlumniRecordID]onboardingmodels.AlumniMatch{}
				for _, m := range matches {
					byID[m.Record.ID] = m
				}
				assert.Equal(t, agerules.AccessFull, byID[7001].CoppaStatus.AccessLevel)
				assert.True(t, byID[7002].CoppaStatus.RequiresConsent)
				assert.False(t, byID[7003].CoppaStatus.CanCreateProfile)
			})
		})

		var parentID, childID id.ProfileID
		testutil.When(t, "the parent claims itself and both children", func(t *testing.T) {
			res := st.do(t, http.MethodPost, "/onboarding/profiles", accessToken, map[string]any{
				"selections": []map[string]any{
					{"alumni_record_id": 7001, "relationship": "parent"},
					{"alumni_record_id": 7002, "relationship": "child"},
					{"alumni_record_id": 7003, "relationship": "child"},
				},
			})
			testutil.AssertStatus(t, res, http.StatusCreated)
			result := testutil.UnmarshalResponse[onboardingmodels.CreateProfilesResult](t, res)

			testutil.Then(t, "the underage child is skipped and the minor waits for consent", func(t *testing.T) {
				require.Len(t, result.CreatedProfiles, 2)
				assert.Equal(t, []id.AlumniRecordID{7003}, result.Skipped)
				assert.True(t, result.RequiresConsent)
				parentID = result.CreatedProfiles[0].ID
				childID = result.CreatedProfiles[1].ID
				assert.Equal(t, agerules.AccessBlocked, result.CreatedProfiles[1].AccessLevel)
			})
		})

		testutil.When(t, "the session switches to the blocked child", func(t *testing.T) {
			res := st.do(t, http.MethodPost, "/session/active-profile", accessToken, map[string]string{"profile_id": childID.String()})

			testutil.Then(t, "the switch is refused", func(t *testing.T) {
				testutil.AssertStatusAndError(t, res, http.StatusForbidden, string(dErrors.CodeAccessDenied))
			})
		})

		testutil.When(t, "the parent grants consent", func(t *testing.T) {
			res := st.do(t, http.MethodPost, "/profiles/"+childID.String()+"/consent", accessToken, nil)
			testutil.AssertStatusOK(t, res)
			testutil.AssertJSONHasKey(t, res, "expires_at")

			testutil.Then(t, "a consent event is queued for the broker", func(t *testing.T) {
				assert.Len(t, st.events.Pending(), 1)
			})
		})

		var refreshToken string
		testutil.When(t, "the session switches to the child again", func(t *testing.T) {
			res := st.do(t, http.MethodPost, "/session/active-profile", accessToken, map[string]string{"profile_id": childID.String()})
			testutil.AssertStatusOK(t, res)
			switched := testutil.UnmarshalResponse[sessionmodels.SwitchResult](t, res)

			testutil.Then(t, "the child acts with supervised access", func(t *testing.T) {
				assert.Equal(t, childID, switched.ActiveProfile.ID)
				assert.Equal(t, agerules.AccessSupervised, switched.ActiveProfile.AccessLevel)
				assert.NotEmpty(t, switched.RefreshToken)
				refreshToken = switched.RefreshToken
			})
		})

		testutil.When(t, "the parent revokes consent and the child session refreshes", func(t *testing.T) {
			res := st.do(t, http.MethodPost, "/profiles/"+childID.String()+"/consent/revoke", accessToken, map[string]string{"reason": "moved schools"})
			testutil.AssertStatus(t, res, http.StatusNoContent)

			res = st.do(t, http.MethodPost, "/session/refresh", "", map[string]string{"refresh_token": refreshToken})

			testutil.Then(t, "the refresh is refused", func(t *testing.T) {
				testutil.AssertStatusAndError(t, res, http.StatusForbidden, string(dErrors.CodeAccessDenied))
			})
		})

		testutil.When(t, "the account lists its profiles", func(t *testing.T) {
			res := st.do(t, http.MethodGet, "/profiles", accessToken, nil)
			testutil.AssertStatusOK(t, res)
			profiles := testutil.UnmarshalResponse[onboardinghandler.ProfilesResponse](t, res).Profiles

			testutil.Then(t, "the parent is full and the child is blocked again", func(t *testing.T) {
				require.Len(t, profiles, 2)
				for _, p := range profiles {
					switch p.ID {
					case parentID:
						assert.Equal(t, agerules.AccessFull, p.EffectiveAccessLevel)
					case childID:
						assert.Equal(t, agerules.AccessBlocked, p.EffectiveAccessLevel)
						assert.False(t, p.ConsentValid)
					default:
						t.Fatalf("unexpected profile %s", p.ID)
					}
				}
			})
		})
	})
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	st := newStack(t, 20)

	for _, path := range []string{"/onboarding/matches", "/profiles"} {
		res := st.do(t, http.MethodGet, path, "", nil)
		testutil.AssertStatus(t, res, http.StatusUnauthorized)
	}
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	st := newStack(t, 3)
	creds := map[string]string{"email": "nobody@example.org", "password": "wrong-password"}

	for i := 0; i < 3; i++ {
		res := st.do(t, http.MethodPost, "/auth/login", "", creds)
		testutil.AssertStatus(t, res, http.StatusUnauthorized)
		assert.Equal(t, "3", res.Header().Get("X-RateLimit-Limit"))
	}

	res := st.do(t, http.MethodPost, "/auth/login", "", creds)
	testutil.AssertStatusAndError(t, res, http.StatusTooManyRequests, "rate_limit_exceeded")
	assert.NotEmpty(t, res.Header().Get("Retry-After"))

	res = st.do(t, http.MethodGet, "/healthz", "", nil)
	testutil.AssertStatusOK(t, res)
}
