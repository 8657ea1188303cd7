package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/khojghar/khojghar-api/internal/domain"
	"github.com/khojghar/khojghar-api/internal/http/handlers"
	hmw "github.com/khojghar/khojghar-api/internal/http/middleware"
	"github.com/khojghar/khojghar-api/internal/platform/geocode"
	"github.com/khojghar/khojghar-api/internal/repo/mongodb"
	"github.com/khojghar/khojghar-api/pkg/auth"
	"github.com/khojghar/khojghar-api/pkg/config"
	"github.com/khojghar/khojghar-api/pkg/events"
)

const (
	testSecret   = "test-secret"
	testCookie   = "token"
	testPassword = "password123"
)

// ---------- Mocks ----------

type mockAccountRepo struct {
	accounts map[primitive.ObjectID]*domain.Account
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{accounts: make(map[primitive.ObjectID]*domain.Account)}
}

func (m *mockAccountRepo) Create(_ context.Context, acc *domain.Account) (*domain.Account, error) {
	for _, existing := range m.accounts {
		if existing.Email == acc.Email {
			return nil, fmt.Errorf("%w: email already in use", domain.ErrConflict)
		}
	}
	now := time.Now()
	acc.ID = primitive.NewObjectID()
	acc.CreatedAt = now
	acc.UpdatedAt = now
	if acc.Role == "" {
		acc.Role = domain.RoleMember
	}
	m.accounts[acc.ID] = acc
	return acc, nil
}

func (m *mockAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	for _, acc := range m.accounts {
		if acc.Email == email {
			return acc, nil
		}
	}
	return nil, nil
}

func (m *mockAccountRepo) FindByID(_ context.Context, id primitive.ObjectID) (*domain.Account, error) {
	acc, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	return acc, nil
}

func (m *mockAccountRepo) UpdateProfile(_ context.Context, id primitive.ObjectID, req *domain.UpdateProfileRequest) (*domain.Account, error) {
	acc, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	if req.Name != nil {
		acc.Name = *req.Name
	}
	if req.Phone != nil {
		acc.Phone = *req.Phone
	}
	if req.City != nil {
		acc.City = *req.City
	}
	if req.ProfilePic != nil {
		acc.ProfilePic = *req.ProfilePic
	}
	acc.UpdatedAt = time.Now()
	return acc, nil
}

func (m *mockAccountRepo) MarkVerified(_ context.Context, id primitive.ObjectID) error {
	acc, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("%w: account", domain.ErrNotFound)
	}
	acc.IsVerified = true
	acc.VerifyCode = ""
	return nil
}

func (m *mockAccountRepo) SetPasswordHash(_ context.Context, id primitive.ObjectID, hash string) error {
	acc, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("%w: account", domain.ErrNotFound)
	}
	acc.PasswordHash = hash
	return nil
}

func (m *mockAccountRepo) SaveListing(_ context.Context, id, listingID primitive.ObjectID) error {
	acc, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("%w: account", domain.ErrNotFound)
	}
	for _, saved := range acc.SavedIDs {
		if saved == listingID {
			return nil
		}
	}
	acc.SavedIDs = append(acc.SavedIDs, listingID)
	return nil
}

func (m *mockAccountRepo) UnsaveListing(_ context.Context, id, listingID primitive.ObjectID) error {
	acc, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("%w: account", domain.ErrNotFound)
	}
	kept := acc.SavedIDs[:0]
	for _, saved := range acc.SavedIDs {
		if saved != listingID {
			kept = append(kept, saved)
		}
	}
	acc.SavedIDs = kept
	return nil
}

type mockListingRepo struct {
	listings map[primitive.ObjectID]*domain.Listing
	order    []primitive.ObjectID // insertion order, oldest first
	clock    time.Time
}

func newMockListingRepo() *mockListingRepo {
	return &mockListingRepo{
		listings: make(map[primitive.ObjectID]*domain.Listing),
		clock:    time.Now(),
	}
}

// tick hands out strictly increasing creation times so newest-first
// ordering is deterministic.
func (m *mockListingRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *mockListingRepo) Create(_ context.Context, l *domain.Listing) (*domain.Listing, error) {
	now := m.tick()
	l.ID = primitive.NewObjectID()
	l.CreatedAt = now
	l.UpdatedAt = now
	if l.Status == "" {
		l.Status = domain.StatusActive
	}
	if l.Images == nil {
		l.Images = []string{}
	}
	if len(l.PriceHistory) == 0 {
		l.PriceHistory = []domain.PricePoint{{Price: l.Price, ChangedAt: now}}
	}
	m.listings[l.ID] = l
	m.order = append(m.order, l.ID)
	return l, nil
}

func (m *mockListingRepo) FindByID(_ context.Context, id primitive.ObjectID) (*domain.Listing, error) {
	l, ok := m.listings[id]
	if !ok {
		return nil, nil
	}
	return l, nil
}

func (m *mockListingRepo) matches(l *domain.Listing, q *domain.ListQuery) bool {
	if l.Status != q.Status {
		return false
	}
	if q.City != "" && !strings.Contains(strings.ToLower(l.City), strings.ToLower(q.City)) {
		return false
	}
	if q.MinPrice != nil && l.Price < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && l.Price > *q.MaxPrice {
		return false
	}
	if q.MinBeds != nil && l.Beds < *q.MinBeds {
		return false
	}
	if q.MinBaths != nil && l.Baths < *q.MinBaths {
		return false
	}
	if q.Furnished && !l.Furnished {
		return false
	}
	if q.Internet && !l.Internet {
		return false
	}
	if q.Parking && !l.Parking {
		return false
	}
	if q.PetsAllowed && !l.PetsAllowed {
		return false
	}
	return true
}

func (m *mockListingRepo) Search(_ context.Context, q *domain.ListQuery) ([]domain.Listing, error) {
	q.Normalize()
	result := []domain.Listing{}
	for i := len(m.order) - 1; i >= 0 && len(result) < q.Limit; i-- {
		l := m.listings[m.order[i]]
		if m.matches(l, q) {
			result = append(result, *l)
		}
	}
	return result, nil
}

func (m *mockListingRepo) ByOwner(_ context.Context, ownerID primitive.ObjectID) ([]domain.Listing, error) {
	var result []domain.Listing
	for i := len(m.order) - 1; i >= 0; i-- {
		l := m.listings[m.order[i]]
		if l.OwnerID == ownerID {
			result = append(result, *l)
		}
	}
	return result, nil
}

func (m *mockListingRepo) ByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.Listing, error) {
	result := []domain.Listing{}
	for _, id := range ids {
		if l, ok := m.listings[id]; ok {
			result = append(result, *l)
		}
	}
	return result, nil
}

func (m *mockListingRepo) Update(_ context.Context, id primitive.ObjectID, req *domain.UpdateListingRequest) (*domain.Listing, error) {
	l, ok := m.listings[id]
	if !ok {
		return nil, nil
	}
	if req.Title != nil {
		l.Title = *req.Title
	}
	if req.Description != nil {
		l.Description = *req.Description
	}
	if req.Price != nil {
		l.Price = *req.Price
		l.PriceHistory = append(l.PriceHistory, domain.PricePoint{Price: *req.Price, ChangedAt: time.Now()})
	}
	if req.Beds != nil {
		l.Beds = *req.Beds
	}
	if req.Baths != nil {
		l.Baths = *req.Baths
	}
	if req.Sqft != nil {
		l.Sqft = *req.Sqft
	}
	if req.Address != nil {
		l.Address = *req.Address
	}
	if req.City != nil {
		l.City = *req.City
	}
	if req.Furnished != nil {
		l.Furnished = *req.Furnished
	}
	if req.Internet != nil {
		l.Internet = *req.Internet
	}
	if req.Parking != nil {
		l.Parking = *req.Parking
	}
	if req.PetsAllowed != nil {
		l.PetsAllowed = *req.PetsAllowed
	}
	if req.Video != nil {
		l.Video = *req.Video
	}
	l.Images = append(l.Images, req.NewImages...)
	l.UpdatedAt = time.Now()
	return l, nil
}

func (m *mockListingRepo) SetStatus(_ context.Context, id primitive.ObjectID, status string) (*domain.Listing, error) {
	l, ok := m.listings[id]
	if !ok {
		return nil, nil
	}
	l.Status = status
	l.UpdatedAt = time.Now()
	return l, nil
}

func (m *mockListingRepo) SetPrice(_ context.Context, id primitive.ObjectID, price float64) (*domain.Listing, error) {
	l, ok := m.listings[id]
	if !ok {
		return nil, nil
	}
	l.Price = price
	l.PriceHistory = append(l.PriceHistory, domain.PricePoint{Price: price, ChangedAt: time.Now()})
	l.UpdatedAt = time.Now()
	return l, nil
}

func (m *mockListingRepo) IncrementViews(_ context.Context, id primitive.ObjectID) (int64, bool, error) {
	l, ok := m.listings[id]
	if !ok {
		return 0, false, nil
	}
	l.Views++
	return l.Views, true, nil
}

func (m *mockListingRepo) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	if _, ok := m.listings[id]; !ok {
		return false, nil
	}
	delete(m.listings, id)
	kept := m.order[:0]
	for _, oid := range m.order {
		if oid != id {
			kept = append(kept, oid)
		}
	}
	m.order = kept
	return true, nil
}

func (m *mockListingRepo) Stats(_ context.Context) (*mongodb.ListingStats, error) {
	stats := &mongodb.ListingStats{}
	var priceSum float64
	var viewSum, n int64
	for _, l := range m.listings {
		if l.Status != domain.StatusActive {
			continue
		}
		stats.TotalActive++
		priceSum += l.Price
		viewSum += l.Views
		n++
	}
	if n > 0 {
		stats.AvgPrice = int64(priceSum/float64(n) + 0.5)
		stats.AvgViews = viewSum / n
	}
	return stats, nil
}

type mockMailer struct {
	lastTo   string
	lastName string
	lastCode string
	sendErr  error
}

func (m *mockMailer) SendVerificationCode(toEmail, toName, code string) error {
	m.lastTo = toEmail
	m.lastName = toName
	m.lastCode = code
	return m.sendErr
}

type mockGeocoder struct {
	loc          *domain.Location
	suggestions  []geocode.Suggestion
	searchErr    error
	forwardCalls int
	searchCalls  int
}

func (m *mockGeocoder) Forward(context.Context, string, string) *domain.Location {
	m.forwardCalls++
	return m.loc
}

func (m *mockGeocoder) Search(context.Context, string, string) ([]geocode.Suggestion, error) {
	m.searchCalls++
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.suggestions, nil
}

type mockUploader struct {
	uploads []string
	err     error
}

func (m *mockUploader) Upload(_ context.Context, filename, contentType string, _ io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: only image files are allowed", domain.ErrInvalidInput)
	}
	u := "https://img.example.com/" + filename
	m.uploads = append(m.uploads, u)
	return u, nil
}

// ---------- Test Setup ----------

type testEnv struct {
	server   *httptest.Server
	accounts *mockAccountRepo
	listings *mockListingRepo
	mailer   *mockMailer
	geocoder *mockGeocoder
	uploader *mockUploader
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	return setupTestServerWithUploadCap(t, 10<<20)
}

func setupTestServerWithUploadCap(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()

	env := &testEnv{
		accounts: newMockAccountRepo(),
		listings: newMockListingRepo(),
		mailer:   &mockMailer{},
		geocoder: &mockGeocoder{},
		uploader: &mockUploader{},
	}

	sessions := &hmw.Sessions{Secret: testSecret, CookieName: testCookie}
	authCfg := config.AuthConfig{
		JWTSecret:  testSecret,
		SessionTTL: time.Hour,
		CookieName: testCookie,
	}
	bus := events.NopPublisher{}

	r := chi.NewRouter()
	r.Mount("/api/auth", handlers.NewAuthHandler(env.accounts, env.mailer, bus, sessions, authCfg).Routes())
	r.Mount("/api/listings", handlers.NewListingHandler(env.listings, env.accounts, env.geocoder, env.uploader, bus, sessions, maxUpload).Routes())
	r.Mount("/api/users", handlers.NewUserHandler(env.accounts, sessions).Routes())
	r.Mount("/api/membership", handlers.NewMembershipHandler(sessions).Routes())

	env.server = httptest.NewServer(r)
	t.Cleanup(env.server.Close)
	return env
}

var (
	hashOnce     sync.Once
	passwordHash string
)

// testHash returns one precomputed argon2id hash of testPassword;
// hashing per account would dominate the test runtime.
func testHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := argon2id.CreateHash(testPassword, argon2id.DefaultParams)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
		passwordHash = h
	})
	return passwordHash
}

func createAccount(t *testing.T, env *testEnv, email string, verified bool) *domain.Account {
	t.Helper()
	acc, err := env.accounts.Create(context.Background(), &domain.Account{
		Name:         "Test User",
		Email:        email,
		PasswordHash: testHash(t),
		IsVerified:   verified,
		VerifyCode:   "123456",
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if verified {
		acc.VerifyCode = ""
	}
	return acc
}

func seedListing(t *testing.T, env *testEnv, owner primitive.ObjectID, mutate func(*domain.Listing)) *domain.Listing {
	t.Helper()
	l := &domain.Listing{
		OwnerID:     owner,
		Title:       "Two-room flat",
		Description: "Sunny two-room flat near the center",
		Price:       450,
		Beds:        2,
		Baths:       1,
		Address:     "12 Main Street",
		City:        "Kathmandu",
	}
	if mutate != nil {
		mutate(l)
	}
	created, err := env.listings.Create(context.Background(), l)
	if err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return created
}

func sessionCookie(t *testing.T, acc *domain.Account) *http.Cookie {
	t.Helper()
	token, err := auth.NewSessionToken(acc.ID.Hex(), acc.Email, acc.Role, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("sign session token: %v", err)
	}
	return &http.Cookie{Name: testCookie, Value: token}
}

// ---------- HTTP Helpers ----------

func doJSON(t *testing.T, method, url string, data interface{}, cookie *http.Cookie, expectedStatus int) *http.Response {
	t.Helper()

	var body io.Reader
	if data != nil {
		body = bytes.NewReader(jsonBytes(data))
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	if resp.StatusCode != expectedStatus {
		t.Fatalf("%s %s: expected status %d, got %d", method, url, expectedStatus, resp.StatusCode)
	}
	return resp
}

func doForm(t *testing.T, method, rawURL string, form url.Values, cookie *http.Cookie, expectedStatus int) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("%s %s: %v", method, rawURL, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, rawURL, err)
	}
	if resp.StatusCode != expectedStatus {
		t.Fatalf("%s %s: expected status %d, got %d", method, rawURL, expectedStatus, resp.StatusCode)
	}
	return resp
}

func get(t *testing.T, url string, cookie *http.Cookie, expectedStatus int) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	if resp.StatusCode != expectedStatus {
		t.Fatalf("GET %s: expected status %d, got %d", url, expectedStatus, resp.StatusCode)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func jsonBytes(data interface{}) []byte {
	b, _ := json.Marshal(data)
	return b
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
