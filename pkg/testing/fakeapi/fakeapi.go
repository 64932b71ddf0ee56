/*
Copyright 2026 Nscale.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package fakeapi is an in-process stand-in for the identity provider and the
// resource API.  It reproduces the behaviours the harness has to cope with:
// creates that do not return identifiers, lists that lag behind writes and
// bookings refused for missing availability.
package fakeapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nscaledev/ecare-e2e/pkg/auth"
	"github.com/nscaledev/ecare-e2e/pkg/config"
	"github.com/nscaledev/ecare-e2e/pkg/ecare"

	"k8s.io/utils/clock"
)

var errUnexpectedSigningMethod = errors.New("unexpected signing method")

// Options control the server's behaviour.
type Options struct {
	Realm    string
	ClientID string
	Username string
	Password string
	TenantID string
	Prefix   string

	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration
	// ListLag is the number of list calls that miss a newly created record.
	ListLag int
	// HidePatients makes patient lists always empty.
	HidePatients bool
	// FailPatientList makes patient lists fail with a 500.
	FailPatientList bool
	// EchoPatients returns the created patient rather than an envelope.
	EchoPatients bool
	// PatientNoContent makes patient reads answer 204.
	PatientNoContent bool
	// RejectAppointments refuses every booking with AVAILABILITY_NOT_FOUND.
	RejectAppointments bool
	// RejectCredentials refuses every token request.
	RejectCredentials bool

	Clock clock.PassiveClock
}

func (o *Options) setDefaults() {
	if o.Realm == "" {
		o.Realm = "stage_aithinkitive"
	}

	if o.ClientID == "" {
		o.ClientID = "js-client"
	}

	if o.Username == "" {
		o.Username = "rose.gomez@jourrapide.com"
	}

	if o.Password == "" {
		o.Password = "Pass@123"
	}

	if o.TenantID == "" {
		o.TenantID = "stage_aithinkitive"
	}

	if o.Prefix == "" {
		o.Prefix = config.DefaultAPIPrefix
	}

	if o.TokenTTL == 0 {
		o.TokenTTL = time.Hour
	}

	if o.Clock == nil {
		o.Clock = clock.RealClock{}
	}
}

type provider struct {
	record ecare.ProviderRecord
	body   ecare.Provider
	seen   int
}

type patient struct {
	record ecare.PatientRecord
	seen   int
}

// Server is a running fake.
type Server struct {
	*httptest.Server

	options Options
	key     []byte

	lock          sync.Mutex
	providers     []*provider
	patients      []*patient
	availability  map[string]*ecare.Availability
	appointments  []*ecare.Appointment
	tokenRequests int
	requests      map[string]int
}

// New starts a server, it is closed when the test ends.
func New(t interface{ Cleanup(f func()) }, options Options) *Server {
	options.setDefaults()

	s := &Server{
		options:      options,
		key:          []byte(uuid.NewString()),
		availability: map[string]*ecare.Availability{},
		requests:     map[string]int{},
	}

	s.Server = httptest.NewServer(s.router())

	t.Cleanup(s.Close)

	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.count)

	r.Post("/realms/{realm}/protocol/openid-connect/token", s.token)

	r.Route(s.options.Prefix, func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/provider", func(r chi.Router) {
			r.Post("/", s.createProvider)
			r.Get("/", s.listProviders)
			r.Post("/availability-setting", s.setAvailability)
			r.Get("/availability-setting/{providerId}", s.getAvailability)
			r.Get("/{id}", s.getProvider)
		})

		r.Route("/patient", func(r chi.Router) {
			r.Post("/", s.createPatient)
			r.Get("/", s.listPatients)
			r.Get("/{id}", s.getPatient)
		})

		r.Post("/appointment", s.bookAppointment)
	})

	return r
}

// Config returns a harness configuration that targets the server.
func (s *Server) Config() *config.Config {
	return &config.Config{
		Environment: config.Environment{
			Name:            "fake",
			BaseURL:         s.URL,
			APIPrefix:       s.options.Prefix,
			TenantID:        s.options.TenantID,
			IdentityBaseURL: s.URL,
			Realm:           s.options.Realm,
			ClientID:        s.options.ClientID,
			Scope:           config.DefaultScope,
			Username:        s.options.Username,
			Password:        s.options.Password,
		},
		Options: config.Options{
			RequestTimeout:      10 * time.Second,
			ConsistencyStrategy: config.ConsistencyBackoff,
			ConsistencyDelay:    time.Millisecond,
			BackoffInitial:      time.Millisecond,
			BackoffFactor:       1,
			BackoffSteps:        5,
			ResolveSteps:        5,
			Burst:               1,
			SpoofBrowser:        true,
			Origin:              "https://qa.practiceeasily.com",
			UserAgent:           "ecare-e2e",
		},
	}
}

// TokenRequests returns the number of token requests served.
func (s *Server) TokenRequests() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.tokenRequests
}

// Requests returns the number of requests served for a method and path.
func (s *Server) Requests(method, path string) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.requests[method+" "+path]
}

// RequestsUnder returns the number of requests served for a method on any
// path beneath the given prefix.
func (s *Server) RequestsUnder(method, prefix string) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	var total int

	for key, count := range s.requests {
		if strings.HasPrefix(key, method+" "+prefix) {
			total += count
		}
	}

	return total
}

// Providers returns the providers created so far, newest first.
func (s *Server) Providers() []ecare.ProviderRecord {
	s.lock.Lock()
	defer s.lock.Unlock()

	records := make([]ecare.ProviderRecord, len(s.providers))
	for i := range s.providers {
		records[i] = s.providers[i].record
	}

	return records
}

// Patients returns the patients created so far, newest first.
func (s *Server) Patients() []ecare.PatientRecord {
	s.lock.Lock()
	defer s.lock.Unlock()

	records := make([]ecare.PatientRecord, len(s.patients))
	for i := range s.patients {
		records[i] = s.patients[i].record
	}

	return records
}

// Appointments returns the bookings accepted so far.
func (s *Server) Appointments() []ecare.Appointment {
	s.lock.Lock()
	defer s.lock.Unlock()

	appointments := make([]ecare.Appointment, len(s.appointments))
	for i := range s.appointments {
		appointments[i] = *s.appointments[i]
	}

	return appointments
}

// SeedProvider adds a provider that is immediately visible, as if created by
// someone else.
func (s *Server) SeedProvider(record ecare.ProviderRecord) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.providers = append([]*provider{{record: record, seen: s.options.ListLag}}, s.providers...)
}

// SeedPatient adds a patient that is immediately visible.
func (s *Server) SeedPatient(record ecare.PatientRecord) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.patients = append([]*patient{{record: record, seen: s.options.ListLag}}, s.patients...)
}

// IssueToken mints a token as the identity provider would.
func (s *Server) IssueToken(ttl time.Duration) (string, error) {
	now := s.options.Clock.Now()

	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.URL + "/realms/" + s.options.Realm,
			Subject:   uuid.NewString(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		PreferredUsername: s.options.Username,
		AuthorizedParty:   s.options.ClientID,
		RealmAccess: auth.RealmAccess{
			Roles: []string{"PROVIDER", "offline_access", "uma_authorization"},
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		s.requests[r.Method+" "+strings.TrimSuffix(r.URL.Path, "/")]++
		s.lock.Unlock()

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}

func writeCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":    code,
		"message": message,
	})
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	s.tokenRequests++
	s.lock.Unlock()

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request"})
		return
	}

	if chi.URLParam(r, "realm") != s.options.Realm {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Realm does not exist"})
		return
	}

	if r.PostForm.Get("grant_type") != "password" || r.PostForm.Get("client_id") != s.options.ClientID {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unauthorized_client"})
		return
	}

	if s.options.RejectCredentials || r.PostForm.Get("username") != s.options.Username || r.PostForm.Get("password") != s.options.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error":             "invalid_grant",
			"error_description": "Invalid user credentials",
		})

		return
	}

	token, err := s.IssueToken(s.options.TokenTTL)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"expires_in":   int(s.options.TokenTTL.Seconds()),
		"token_type":   "Bearer",
		"scope":        r.PostForm.Get("scope"),
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")

		bearer, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeCode(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}

		keyFunc := func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errUnexpectedSigningMethod
			}

			return s.key, nil
		}

		if _, err := jwt.ParseWithClaims(bearer, &auth.Claims{}, keyFunc, jwt.WithTimeFunc(s.options.Clock.Now), jwt.WithExpirationRequired()); err != nil {
			writeCode(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}

		if r.Header.Get("X-TENANT-ID") != s.options.TenantID {
			writeCode(w, http.StatusForbidden, "INVALID_TENANT", "unknown tenant")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) createProvider(w http.ResponseWriter, r *http.Request) {
	var body ecare.Provider

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeCode(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if body.Email == "" || body.FirstName == "" || body.LastName == "" {
		writeCode(w, http.StatusBadRequest, "INVALID_REQUEST", "name and email are required")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	for _, p := range s.providers {
		if p.record.Email == body.Email {
			writeCode(w, http.StatusConflict, "PROVIDER_EXISTS", "Provider with this email already exists")
			return
		}
	}

	record := ecare.ProviderRecord{
		UUID:      uuid.NewString(),
		Email:     body.Email,
		FirstName: body.FirstName,
		LastName:  body.LastName,
	}

	s.providers = append([]*provider{{record: record, body: body}}, s.providers...)

	writeJSON(w, http.StatusCreated, map[string]any{
		"code":      "PROVIDER_CREATED",
		"message":   "Provider created successfully",
		"requestId": uuid.NewString(),
	})
}

func page(content any) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"content": content,
		},
	}
}

func (s *Server) listProviders(w http.ResponseWriter, _ *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()

	records := []ecare.ProviderRecord{}

	for _, p := range s.providers {
		if p.seen >= s.options.ListLag {
			records = append(records, p.record)
		}

		p.seen++
	}

	writeJSON(w, http.StatusOK, page(records))
}

func (s *Server) lookupProvider(id string) *provider {
	for _, p := range s.providers {
		if p.record.UUID == id {
			return p
		}
	}

	return nil
}

func (s *Server) getProvider(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()

	p := s.lookupProvider(chi.URLParam(r, "id"))
	if p == nil {
		writeCode(w, http.StatusNotFound, "PROVIDER_NOT_FOUND", "Provider not found")
		return
	}

	writeJSON(w, http.StatusOK, p.record)
}

func (s *Server) setAvailability(w http.ResponseWriter, r *http.Request) {
	var body ecare.Availability

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeCode(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.lookupProvider(body.ProviderID) == nil {
		writeCode(w, http.StatusNotFound, "PROVIDER_NOT_FOUND", "Provider not found")
		return
	}

	s.availability[body.ProviderID] = &body

	writeCode(w, http.StatusOK, "AVAILABILITY_UPDATED", "Availability updated successfully")
}

func (s *Server) getAvailability(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()

	availability, ok := s.availability[chi.URLParam(r, "providerId")]
	if !ok {
		writeCode(w, http.StatusNotFound, "AVAILABILITY_NOT_FOUND", "Availability not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"code": "AVAILABILITY_FOUND",
		"data": availability,
	})
}

func (s *Server) createPatient(w http.ResponseWriter, r *http.Request) {
	var body ecare.Patient

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeCode(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if body.FirstName == "" || body.LastName == "" || body.BirthDate == "" {
		writeCode(w, http.StatusBadRequest, "INVALID_REQUEST", "name and birth date are required")
		return
	}

	record := ecare.PatientRecord{
		UUID:      uuid.NewString(),
		FirstName: body.FirstName,
		LastName:  body.LastName,
		BirthDate: body.BirthDate,
	}

	s.lock.Lock()
	s.patients = append([]*patient{{record: record}}, s.patients...)
	s.lock.Unlock()

	if s.options.EchoPatients {
		writeJSON(w, http.StatusCreated, record)
		return
	}

	writeCode(w, http.StatusCreated, "PATIENT_CREATED", "Patient Created Successfully")
}

func (s *Server) listPatients(w http.ResponseWriter, _ *http.Request) {
	if s.options.FailPatientList {
		writeCode(w, http.StatusInternalServerError, "INTERNAL_ERROR", "patient index unavailable")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	records := []ecare.PatientRecord{}

	for _, p := range s.patients {
		if !s.options.HidePatients && p.seen >= s.options.ListLag {
			records = append(records, p.record)
		}

		p.seen++
	}

	writeJSON(w, http.StatusOK, page(records))
}

func (s *Server) lookupPatient(id string) *patient {
	for _, p := range s.patients {
		if p.record.UUID == id {
			return p
		}
	}

	return nil
}

func (s *Server) getPatient(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()

	p := s.lookupPatient(chi.URLParam(r, "id"))
	if p == nil {
		writeCode(w, http.StatusNotFound, "PATIENT_NOT_FOUND", "Patient not found")
		return
	}

	if s.options.PatientNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, p.record)
}

// bookable reports whether the slot falls inside one of the provider's day
// slots.
func bookable(availability *ecare.Availability, startTime string) bool {
	start, err := time.Parse(time.RFC3339, startTime)
	if err != nil {
		return false
	}

	location := time.FixedZone(availability.Timezone, -5*60*60)
	local := start.In(location)
	day := strings.ToUpper(local.Weekday().String())
	wallClock := local.Format(time.TimeOnly)

	for _, slot := range availability.DaySlots {
		if slot.Day == day && wallClock >= slot.StartTime && wallClock < slot.EndTime {
			return true
		}
	}

	return false
}

func (s *Server) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var body ecare.Appointment

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeCode(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.lookupPatient(body.PatientID) == nil {
		writeCode(w, http.StatusNotFound, "PATIENT_NOT_FOUND", "Patient not found")
		return
	}

	availability, ok := s.availability[body.ProviderID]
	if s.options.RejectAppointments || !ok || !bookable(availability, body.StartTime) {
		writeCode(w, http.StatusBadRequest, "AVAILABILITY_NOT_FOUND", "Provider availability not found for the requested slot")
		return
	}

	s.appointments = append(s.appointments, &body)

	writeJSON(w, http.StatusCreated, map[string]any{
		"code":    "APPOINTMENT_BOOKED",
		"message": "Appointment booked successfully",
		"data": map[string]any{
			"uuid": uuid.NewString(),
		},
	})
}
