// Package luxmed is a minimal client for the LuxMed patient portal mobile
// API: password-grant authentication plus the available-terms slot search.
// The request flow and headers mirror what the iOS app sends; the portal
// has no public API.
package luxmed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://portalpacjenta.luxmed.pl/PatientPortalMobileAPI"
	tokenPath      = "/api/token"
	searchPath     = "/api/visits/available-terms"

	// Fixed query constants used by the mobile app.
	payerID    = "123"
	languageID = "10"
	clientID   = "iPhone"

	customUserAgent = "PatientPortal; 4.14.0; 4380E6AC-D291-4895-8B1B-F774C318BD7D; iOS; 13.5.1; iPhone8,1"
	userAgent       = "PatientPortal/4.14.0 (pl.luxmed.pp.LUX-MED; build:853; iOS 13.5.1) Alamofire/4.9.1"
	acceptLanguage  = "en;q=1.0, en-PL;q=0.9, pl-PL;q=0.8, ru-PL;q=0.7, uk-PL;q=0.6"

	dateFormat = "2006-01-02T15:04:05Z"
)

type Credentials struct {
	Email    string
	Password string
}

type Client struct {
	hc    *http.Client
	creds Credentials
	base  string
}

func New(creds Credentials) *Client {
	return &Client{
		hc:    &http.Client{Timeout: 30 * time.Second},
		creds: creds,
		base:  defaultBaseURL,
	}
}

// NewWithBaseURL points the client at a different portal base URL.
// Used by tests and by deployments that front the portal with a proxy.
func NewWithBaseURL(creds Credentials, baseURL string) *Client {
	c := New(creds)
	c.base = strings.TrimRight(baseURL, "/")
	return c
}

// Authenticate exchanges the configured credentials for a session token.
// Credential rejections and account locks come back as *AuthError;
// network and 5xx failures as *TransientError.
func (c *Client) Authenticate(ctx context.Context) (Session, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", clientID)
	form.Set("username", c.creds.Email)
	form.Set("password", c.creds.Password)

	status, body, err := c.do(ctx, http.MethodPost, c.base+tokenPath,
		"application/x-www-form-urlencoded", []byte(form.Encode()), "")
	if err != nil {
		return Session{}, &TransientError{Op: "authenticate", Err: err}
	}
	if status >= 500 {
		return Session{}, &TransientError{Op: "authenticate", Err: fmt.Errorf("portal returned %d", status)}
	}
	if status != http.StatusOK {
		return Session{}, classifyAuthFailure(status, body)
	}

	var tok struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return Session{}, &TransientError{Op: "authenticate", Err: fmt.Errorf("decode token response: %w", err)}
	}
	if tok.AccessToken == "" {
		return Session{}, &AuthError{Message: "token response without access_token"}
	}
	s := Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if tok.ExpiresIn > 0 {
		s.Expiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return s, nil
}

// Search runs the available-terms query for today..today+LookupDays.
// Filters carrying facility/doctor id sets issue one portal query per
// (facility, doctor) combination; the merged result is de-duplicated by
// appointment id and sorted by (start, id) so the order is deterministic
// no matter how many queries fed it.
func (c *Client) Search(ctx context.Context, sess Session, f Filter) ([]Appointment, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	from := now.Format(dateFormat)
	to := now.AddDate(0, 0, f.LookupDays).Format(dateFormat)

	seen := make(map[string]struct{})
	var out []Appointment
	for _, q := range f.combinations() {
		params := url.Values{}
		params.Set("cityId", strconv.Itoa(f.CityID))
		params.Set("payerId", payerID)
		params.Set("serviceId", strconv.Itoa(f.ServiceVariantID))
		params.Set("languageId", languageID)
		params.Set("FromDate", from)
		params.Set("ToDate", to)
		params.Set("searchDatePreset", strconv.Itoa(f.LookupDays))
		if q.facilityID != AnyID {
			params.Set("clinicId", strconv.Itoa(q.facilityID))
		}
		if q.doctorID != AnyID {
			params.Set("doctorId", strconv.Itoa(q.doctorID))
		}

		terms, err := c.searchOnce(ctx, sess, params)
		if err != nil {
			return nil, err
		}
		for _, a := range terms {
			if _, dup := seen[a.ID()]; dup {
				continue
			}
			seen[a.ID()] = struct{}{}
			out = append(out, a)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID() < out[j].ID()
	})
	return out, nil
}

func (c *Client) searchOnce(ctx context.Context, sess Session, params url.Values) ([]Appointment, error) {
	status, body, err := c.do(ctx, http.MethodGet, c.base+searchPath+"?"+params.Encode(), "", nil, sess.authorization())
	if err != nil {
		return nil, &TransientError{Op: "search", Err: err}
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, &AuthError{Message: fmt.Sprintf("session rejected (status %d)", status)}
	case status >= 500:
		return nil, &TransientError{Op: "search", Err: fmt.Errorf("portal returned %d", status)}
	case status != http.StatusOK:
		return nil, &TransientError{Op: "search", Err: fmt.Errorf("unexpected status %d", status)}
	}

	var resp struct {
		AvailableVisitsTermPresentation []struct {
			VisitDate struct {
				StartDateTime string `json:"StartDateTime"`
				FormattedDate string `json:"FormattedDate"`
			} `json:"VisitDate"`
			Clinic struct {
				Name string `json:"Name"`
			} `json:"Clinic"`
			Doctor struct {
				Name string `json:"Name"`
			} `json:"Doctor"`
		} `json:"AvailableVisitsTermPresentation"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransientError{Op: "search", Err: fmt.Errorf("decode response: %w", err)}
	}

	out := make([]Appointment, 0, len(resp.AvailableVisitsTermPresentation))
	for _, term := range resp.AvailableVisitsTermPresentation {
		a := Appointment{
			FormattedDate: term.VisitDate.FormattedDate,
			DoctorName:    term.Doctor.Name,
			ClinicName:    term.Clinic.Name,
		}
		if t, err := time.Parse(time.RFC3339, term.VisitDate.StartDateTime); err == nil {
			a.Start = t
		}
		out = append(out, a)
	}
	return out, nil
}

func classifyAuthFailure(status int, body []byte) *AuthError {
	var resp struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Message          string `json:"Message"`
	}
	_ = json.Unmarshal(body, &resp)
	msg := resp.ErrorDescription
	if msg == "" {
		msg = resp.Message
	}
	if msg == "" {
		msg = resp.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("status %d", status)
	}
	return &AuthError{Locked: looksLocked(status, msg), Message: msg}
}

// looksLocked treats any lock signal as an account lock. The portal does
// not document a temporary/permanent distinction, and guessing wrong
// risks a permanent lockout.
func looksLocked(status int, msg string) bool {
	if status == http.StatusLocked {
		return true
	}
	m := strings.ToLower(msg)
	for _, needle := range []string{"lock", "blocked", "zablokowan"} {
		if strings.Contains(m, needle) {
			return true
		}
	}
	return false
}

func (c *Client) do(ctx context.Context, method, rawURL, contentType string, body []byte, auth string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Custom-User-Agent", customUserAgent)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", acceptLanguage)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}
