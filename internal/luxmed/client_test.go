package luxmed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPortal(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWithBaseURL(Credentials{Email: "user@example.com", Password: "hunter2"}, srv.URL)
}

func TestAuthenticate(t *testing.T) {
	c := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, tokenPath, r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "iPhone", r.PostForm.Get("client_id"))
		assert.Equal(t, "user@example.com", r.PostForm.Get("username"))
		assert.Equal(t, "hunter2", r.PostForm.Get("password"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "tok123",
			"refresh_token": "ref456",
			"token_type":    "bearer",
			"expires_in":    3600,
		})
	})

	sess, err := c.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok123", sess.AccessToken)
	assert.Equal(t, "ref456", sess.RefreshToken)
	assert.Equal(t, "bearer", sess.TokenType)
	assert.True(t, sess.Valid())
	assert.False(t, sess.Expiry.IsZero())
}

func TestAuthenticateInvalidCredentials(t *testing.T) {
	c := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"The user name or password is incorrect"}`))
	})

	_, err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.False(t, IsLocked(err))
	assert.Contains(t, err.Error(), "incorrect")
}

func TestAuthenticateAccountLockedByMessage(t *testing.T) {
	c := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Account is locked due to too many requests"}`))
	})

	_, err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, IsLocked(err))
}

func TestAuthenticateAccountLockedByStatus(t *testing.T) {
	c := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusLocked)
	})

	_, err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, IsLocked(err))
}

func TestAuthenticateServerErrorIsTransient(t *testing.T) {
	c := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.False(t, IsAuthError(err))
}

const searchBody = `{
  "AvailableVisitsTermPresentation": [
    {
      "VisitDate": {"StartDateTime": "2024-05-02T09:30:00+02:00", "FormattedDate": "2024-05-02 09:30"},
      "Clinic": {"Name": "North Clinic"},
      "Doctor": {"Name": "Dr. Jones"}
    },
    {
      "VisitDate": {"StartDateTime": "2024-05-01T10:00:00+02:00", "FormattedDate": "2024-05-01 10:00"},
      "Clinic": {"Name": "Central Clinic"},
      "Doctor": {"Name": "Dr. Smith"}
    }
  ]
}`

func TestSearchParsesAndOrdersAppointments(t *testing.T) {
	var gotQuery url.Values
	c := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, searchPath, r.URL.Path)
		gotQuery = r.URL.Query()
		assert.Equal(t, "bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(searchBody))
	})

	sess := Session{AccessToken: "tok", TokenType: "bearer"}
	recs, err := c.Search(context.Background(), sess, Filter{CityID: 1, ServiceVariantID: 4387, LookupDays: 14})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// Sorted by start time regardless of response order.
	assert.Equal(t, "Dr. Smith", recs[0].DoctorName)
	assert.Equal(t, "Central Clinic", recs[0].ClinicName)
	assert.Equal(t, "2024-05-01 10:00", recs[0].FormattedDate)
	assert.Equal(t, "Dr. Jones", recs[1].DoctorName)

	assert.Equal(t, "1", gotQuery.Get("cityId"))
	assert.Equal(t, "4387", gotQuery.Get("serviceId"))
	assert.Equal(t, "123", gotQuery.Get("payerId"))
	assert.Equal(t, "10", gotQuery.Get("languageId"))
	assert.Equal(t, "14", gotQuery.Get("searchDatePreset"))
	assert.NotEmpty(t, gotQuery.Get("FromDate"))
	assert.NotEmpty(t, gotQuery.Get("ToDate"))
	assert.Empty(t, gotQuery.Get("clinicId"))
	assert.Empty(t, gotQuery.Get("doctorId"))
}

func TestSearchFansOutOverIDSetsAndMerges(t *testing.T) {
	var clinicIDs, doctorIDs []string
	c := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		clinicIDs = append(clinicIDs, r.URL.Query().Get("clinicId"))
		doctorIDs = append(doctorIDs, r.URL.Query().Get("doctorId"))
		_, _ = w.Write([]byte(searchBody))
	})

	f := Filter{
		CityID:           1,
		ServiceVariantID: 4387,
		FacilityIDs:      []int{10, 20},
		DoctorIDs:        []int{7},
		LookupDays:       7,
	}
	recs, err := c.Search(context.Background(), Session{AccessToken: "tok"}, f)
	require.NoError(t, err)

	assert.Equal(t, []string{"10", "20"}, clinicIDs)
	assert.Equal(t, []string{"7", "7"}, doctorIDs)
	// Both queries returned the same slots; the merge de-duplicates them.
	assert.Len(t, recs, 2)
}

func TestSearchSessionRejected(t *testing.T) {
	c := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Search(context.Background(), Session{AccessToken: "stale"}, Filter{CityID: 1, ServiceVariantID: 2, LookupDays: 1})
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.False(t, IsLocked(err))
}

func TestSearchServerErrorIsTransient(t *testing.T) {
	c := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Search(context.Background(), Session{AccessToken: "tok"}, Filter{CityID: 1, ServiceVariantID: 2, LookupDays: 1})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestSearchGarbageBodyIsTransient(t *testing.T) {
	c := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	})

	_, err := c.Search(context.Background(), Session{AccessToken: "tok"}, Filter{CityID: 1, ServiceVariantID: 2, LookupDays: 1})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestAppointmentIDStable(t *testing.T) {
	a := Appointment{FormattedDate: "2024-05-01 10:00", DoctorName: "Dr. Smith", ClinicName: "Central Clinic"}
	b := Appointment{FormattedDate: "2024-05-01 10:00", DoctorName: "Dr. Smith", ClinicName: "Central Clinic"}
	b.Start = a.Start.Add(1) // other field drift does not change identity
	assert.Equal(t, a.ID(), b.ID())

	c := a
	c.DoctorName = "Dr. Jones"
	assert.NotEqual(t, a.ID(), c.ID())
}
