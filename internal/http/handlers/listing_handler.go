package handlers

import (
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/khojghar/khojghar-api/internal/domain"
	mw "github.com/khojghar/khojghar-api/internal/http/middleware"
	"github.com/khojghar/khojghar-api/internal/http/response"
	"github.com/khojghar/khojghar-api/internal/platform/geocode"
	"github.com/khojghar/khojghar-api/internal/platform/media"
	"github.com/khojghar/khojghar-api/internal/repo/mongodb"
	"github.com/khojghar/khojghar-api/pkg/events"
	"github.com/khojghar/khojghar-api/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxImagesPerRequest = 10
	minGeoQueryLen      = 3
)

type ListingHandler struct {
	listings  mongodb.ListingRepository
	accounts  mongodb.AccountRepository
	geocoder  geocode.Geocoder
	uploader  media.Uploader
	bus       events.Publisher
	sessions  *mw.Sessions
	maxUpload int64
}

func NewListingHandler(
	listings mongodb.ListingRepository,
	accounts mongodb.AccountRepository,
	geocoder geocode.Geocoder,
	uploader media.Uploader,
	bus events.Publisher,
	sessions *mw.Sessions,
	maxUpload int64,
) *ListingHandler {
	return &ListingHandler{
		listings:  listings,
		accounts:  accounts,
		geocoder:  geocoder,
		uploader:  uploader,
		bus:       bus,
		sessions:  sessions,
		maxUpload: maxUpload,
	}
}

func (h *ListingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Public
	r.Get("/all", h.list)
	r.Get("/featured", h.featured)
	r.Get("/stats", h.stats)
	r.Get("/geo/search", h.geoSearch)
	r.Patch("/{id}/view", h.incrementView)
	r.Post("/{id}/view", h.incrementView)
	r.Get("/{id}", h.getOne)

	// Owner-scoped mutations and per-account reads
	r.Group(func(r chi.Router) {
		r.Use(h.sessions.Require)
		r.Post("/create", h.create)
		r.Put("/{id}", h.update)
		r.Patch("/{id}/status", h.setStatus)
		r.Patch("/{id}/price", h.setPrice)
		r.Delete("/{id}", h.delete)
		r.Post("/save/{id}", h.save)
		r.Delete("/save/{id}", h.unsave)
		r.Get("/saved/me", h.savedByMe)
		r.Get("/mine/all", h.mine)
	})

	return r
}

func (h *ListingHandler) publish(r *http.Request, subject string, payload any) {
	if err := h.bus.Publish(r.Context(), subject, payload); err != nil {
		logger.WarnContext(r.Context(), "failed to publish event", "error", err, "subject", subject)
	}
}

// listingID parses the {id} route parameter.
func listingID(r *http.Request) (primitive.ObjectID, error) {
	id, err := parseObjectID(chi.URLParam(r, "id"))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: invalid listing id", domain.ErrInvalidInput)
	}
	return id, nil
}

// loadOwned fetches the listing and enforces the ownership rule: the
// string form of the owner id must equal the caller's id, regardless
// of role.
func (h *ListingHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*domain.Listing, *mw.AuthContext, bool) {
	ac := mw.Auth(r)

	id, err := listingID(r)
	if err != nil {
		response.DomainError(w, r, err)
		return nil, nil, false
	}

	listing, err := h.listings.FindByID(r.Context(), id)
	if err != nil {
		response.DomainError(w, r, err)
		return nil, nil, false
	}
	if listing == nil {
		response.NotFound(w, "listing not found")
		return nil, nil, false
	}

	if listing.OwnerID.Hex() != ac.AccountID {
		response.Forbidden(w, "you can only modify your own listing")
		return nil, nil, false
	}

	return listing, ac, true
}

// uploadImages pushes each attached file through the media adapter. A
// file that is oversized or that the adapter rejects is skipped and
// logged; the rest of the batch proceeds.
func (h *ListingHandler) uploadImages(r *http.Request) []string {
	if r.MultipartForm == nil || h.uploader == nil {
		return nil
	}

	files := r.MultipartForm.File["images"]
	if len(files) > maxImagesPerRequest {
		files = files[:maxImagesPerRequest]
	}

	var urls []string
	for _, fh := range files {
		if h.maxUpload > 0 && fh.Size > h.maxUpload {
			logger.WarnContext(r.Context(), "image exceeds size limit", "file", fh.Filename, "size", fh.Size, "limit", h.maxUpload)
			continue
		}
		f, err := fh.Open()
		if err != nil {
			logger.WarnContext(r.Context(), "failed to open uploaded file", "error", err, "file", fh.Filename)
			continue
		}
		url, err := h.uploader.Upload(r.Context(), fh.Filename, fh.Header.Get("Content-Type"), f)
		f.Close()
		if err != nil {
			logger.WarnContext(r.Context(), "image upload rejected", "error", err, "file", fh.Filename)
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

// parseForm accepts both multipart (file uploads) and urlencoded
// bodies.
func (h *ListingHandler) parseForm(r *http.Request) error {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		if err == http.ErrNotMultipart {
			return r.ParseForm()
		}
		return err
	}
	return nil
}

func (h *ListingHandler) create(w http.ResponseWriter, r *http.Request) {
	ac := mw.Auth(r)
	ownerID, err := parseObjectID(ac.AccountID)
	if err != nil {
		response.Unauthorized(w, "not authenticated")
		return
	}

	if err := h.parseForm(r); err != nil {
		response.BadRequest(w, "invalid form data")
		return
	}
	form := r.Form

	req := domain.CreateListingRequest{
		Title:       form.Get("title"),
		Description: form.Get("description"),
		Price:       domain.NumberOr(form.Get("price"), 0),
		Beds:        int(domain.NumberOr(form.Get("beds"), 1)),
		Baths:       int(domain.NumberOr(form.Get("baths"), 1)),
		Sqft:        domain.NumberOr(form.Get("sqft"), 0),
		Address:     form.Get("address"),
		City:        form.Get("city"),
		Furnished:   domain.ParseFlag(form.Get("furnished")),
		Internet:    domain.ParseFlag(form.Get("internet")),
		Parking:     domain.ParseFlag(form.Get("parking")),
		PetsAllowed: domain.ParseFlag(form.Get("petsAllowed")),
		Video:       form.Get("video"),
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		response.DomainError(w, r, err)
		return
	}

	images := h.uploadImages(r)

	// Geocoding is best-effort; a failed lookup leaves the location
	// unset and never blocks creation.
	var location *domain.Location
	if h.geocoder != nil {
		location = h.geocoder.Forward(r.Context(), req.Address, req.City)
	}

	listing, err := h.listings.Create(r.Context(), &domain.Listing{
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Beds:        req.Beds,
		Baths:       req.Baths,
		Sqft:        req.Sqft,
		Address:     req.Address,
		City:        req.City,
		Location:    location,
		Furnished:   req.Furnished,
		Internet:    req.Internet,
		Parking:     req.Parking,
		PetsAllowed: req.PetsAllowed,
		Images:      images,
		Video:       req.Video,
		Status:      domain.StatusActive,
	})
	if err != nil {
		response.DomainError(w, r, err)
		return
	}

	h.publish(r, events.ListingCreated, events.ListingCreatedEvent{
		ListingID: listing.ID.Hex(),
		OwnerID:   listing.OwnerID.Hex(),
		City:      listing.City,
		Price:     listing.Price,
		CreatedAt: listing.CreatedAt,
	})

	response.JSON(w, http.StatusCreated, map[string]any{
		"message": "Listing created",
		"listing": listing,
	})
}

func (h *ListingHandler) getOne(w http.ResponseWriter, r *http.Request) {
	id, err := listingID(r)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}

	listing, err := h.listings.FindByID(r.Context(), id)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	if listing == nil {
		response.NotFound(w, "listing not found")
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{"listing": listing})
}

func (h *ListingHandler) list(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	q := domain.ListQuery{
		City:        qs.Get("city"),
		Status:      qs.Get("status"),
		Furnished:   domain.ParseFlag(qs.Get("furnished")),
		Internet:    domain.ParseFlag(qs.Get("internet")),
		Parking:     domain.ParseFlag(qs.Get("parking")),
		PetsAllowed: domain.ParseFlag(qs.Get("petsAllowed")),
	}
	if n, ok := domain.ParseNumber(qs.Get("minPrice")); ok {
		q.MinPrice = &n
	}
	if n, ok := domain.ParseNumber(qs.Get("maxPrice")); ok {
		q.MaxPrice = &n
	}
	if n, ok := domain.ParseNumber(qs.Get("beds")); ok {
		beds := int(n)
		q.MinBeds = &beds
	}
	if n, ok := domain.ParseNumber(qs.Get("baths")); ok {
		baths := int(n)
		q.MinBaths = &baths
	}
	if n, ok := domain.ParseNumber(qs.Get("limit")); ok {
		q.Limit = int(n)
	}

	listings, err := h.listings.Search(r.Context(), &q)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{"listings": listings})
}

func (h *ListingHandler) featured(w http.ResponseWriter, r *http.Request) {
	q := domain.ListQuery{Status: domain.StatusActive, Limit: 9}
	listings, err := h.listings.Search(r.Context(), &q)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"listings": listings})
}

func (h *ListingHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.listings.Stats(r.Context())
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, stats)
}

func (h *ListingHandler) update(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(r); err != nil {
		response.BadRequest(w, "invalid form data")
		return
	}

	listing, _, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	form := r.Form
	var req domain.UpdateListingRequest

	setString := func(key string, dst **string) {
		if form.Has(key) {
			v := form.Get(key)
			*dst = &v
		}
	}
	setString("title", &req.Title)
	setString("description", &req.Description)
	setString("address", &req.Address)
	setString("city", &req.City)
	setString("video", &req.Video)

	if form.Has("price") {
		if n, okNum := domain.ParseNumber(form.Get("price")); okNum {
			req.Price = &n
		} else {
			response.BadRequest(w, "price must be a positive number")
			return
		}
	}
	if form.Has("beds") {
		n, okNum := domain.ParseNumber(form.Get("beds"))
		if !okNum {
			response.BadRequest(w, "beds must be a positive number")
			return
		}
		beds := int(n)
		req.Beds = &beds
	}
	if form.Has("baths") {
		n, okNum := domain.ParseNumber(form.Get("baths"))
		if !okNum {
			response.BadRequest(w, "baths must be a positive number")
			return
		}
		baths := int(n)
		req.Baths = &baths
	}
	if form.Has("sqft") {
		n, okNum := domain.ParseNumber(form.Get("sqft"))
		if !okNum {
			response.BadRequest(w, "sqft must be a positive number")
			return
		}
		req.Sqft = &n
	}

	setBool := func(key string, dst **bool) {
		if form.Has(key) {
			v := domain.ParseFlag(form.Get(key))
			*dst = &v
		}
	}
	setBool("furnished", &req.Furnished)
	setBool("internet", &req.Internet)
	setBool("parking", &req.Parking)
	setBool("petsAllowed", &req.PetsAllowed)

	if err := req.Validate(); err != nil {
		response.DomainError(w, r, err)
		return
	}

	req.NewImages = h.uploadImages(r)

	updated, err := h.listings.Update(r.Context(), listing.ID, &req)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	if updated == nil {
		response.NotFound(w, "listing not found")
		return
	}

	h.publish(r, events.ListingUpdated, events.ListingUpdatedEvent{
		ListingID: updated.ID.Hex(),
		OwnerID:   updated.OwnerID.Hex(),
		UpdatedAt: updated.UpdatedAt,
	})

	response.JSON(w, http.StatusOK, map[string]any{
		"message": "Listing updated",
		"listing": updated,
	})
}

func (h *ListingHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &in); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if !domain.IsValidStatus(in.Status) {
		response.BadRequest(w, "status must be 'active' or 'unavailable'")
		return
	}

	listing, _, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	updated, err := h.listings.SetStatus(r.Context(), listing.ID, in.Status)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	if updated == nil {
		response.NotFound(w, "listing not found")
		return
	}

	h.publish(r, events.ListingStatusSet, events.ListingStatusSetEvent{
		ListingID: updated.ID.Hex(),
		OwnerID:   updated.OwnerID.Hex(),
		Status:    updated.Status,
		SetAt:     time.Now(),
	})

	response.JSON(w, http.StatusOK, map[string]any{
		"message": "Status updated",
		"listing": updated,
	})
}

func (h *ListingHandler) setPrice(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Price float64 `json:"price"`
	}
	if err := decodeJSON(r, &in); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if in.Price <= 0 {
		response.BadRequest(w, "a valid positive price is required")
		return
	}

	listing, _, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	updated, err := h.listings.SetPrice(r.Context(), listing.ID, in.Price)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	if updated == nil {
		response.NotFound(w, "listing not found")
		return
	}

	h.publish(r, events.ListingPriceChanged, events.ListingPriceChangedEvent{
		ListingID: updated.ID.Hex(),
		OwnerID:   updated.OwnerID.Hex(),
		Price:     updated.Price,
		ChangedAt: time.Now(),
	})

	response.JSON(w, http.StatusOK, map[string]any{
		"message": "Price updated",
		"listing": updated,
	})
}

func (h *ListingHandler) incrementView(w http.ResponseWriter, r *http.Request) {
	id, err := listingID(r)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}

	views, found, err := h.listings.IncrementViews(r.Context(), id)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	if !found {
		response.NotFound(w, "listing not found")
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{"views": views})
}

func (h *ListingHandler) delete(w http.ResponseWriter, r *http.Request) {
	listing, _, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	deleted, err := h.listings.Delete(r.Context(), listing.ID)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	if !deleted {
		response.NotFound(w, "listing not found")
		return
	}

	h.publish(r, events.ListingDeleted, events.ListingDeletedEvent{
		ListingID: listing.ID.Hex(),
		OwnerID:   listing.OwnerID.Hex(),
		DeletedAt: time.Now(),
	})

	response.JSON(w, http.StatusOK, map[string]any{"message": "Listing deleted"})
}

func (h *ListingHandler) save(w http.ResponseWriter, r *http.Request) {
	ac := mw.Auth(r)
	accountID, err := parseObjectID(ac.AccountID)
	if err != nil {
		response.Unauthorized(w, "not authenticated")
		return
	}

	id, err := listingID(r)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}

	if err := h.accounts.SaveListing(r.Context(), accountID, id); err != nil {
		response.DomainError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"message": "Saved to wishlist",
		"saved":   true,
	})
}

func (h *ListingHandler) unsave(w http.ResponseWriter, r *http.Request) {
	ac := mw.Auth(r)
	accountID, err := parseObjectID(ac.AccountID)
	if err != nil {
		response.Unauthorized(w, "not authenticated")
		return
	}

	id, err := listingID(r)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}

	if err := h.accounts.UnsaveListing(r.Context(), accountID, id); err != nil {
		response.DomainError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"message": "Removed from wishlist",
		"saved":   false,
	})
}

func (h *ListingHandler) savedByMe(w http.ResponseWriter, r *http.Request) {
	ac := mw.Auth(r)
	accountID, err := parseObjectID(ac.AccountID)
	if err != nil {
		response.Unauthorized(w, "not authenticated")
		return
	}

	acc, err := h.accounts.FindByID(r.Context(), accountID)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	if acc == nil {
		response.NotFound(w, "account not found")
		return
	}

	saved, err := h.listings.ByIDs(r.Context(), acc.SavedIDs)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{"saved": saved})
}

func (h *ListingHandler) mine(w http.ResponseWriter, r *http.Request) {
	ac := mw.Auth(r)
	accountID, err := parseObjectID(ac.AccountID)
	if err != nil {
		response.Unauthorized(w, "not authenticated")
		return
	}

	listings, err := h.listings.ByOwner(r.Context(), accountID)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	if listings == nil {
		listings = []domain.Listing{}
	}

	response.JSON(w, http.StatusOK, map[string]any{"listings": listings})
}

// geoSearch proxies autocomplete suggestions. Queries below the
// minimum length return an empty list without touching the provider.
func (h *ListingHandler) geoSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	city := r.URL.Query().Get("city")

	if utf8.RuneCountInString(q) < minGeoQueryLen || h.geocoder == nil {
		response.JSON(w, http.StatusOK, map[string]any{"suggestions": []geocode.Suggestion{}})
		return
	}

	suggestions, err := h.geocoder.Search(r.Context(), q, city)
	if err != nil {
		logger.ErrorContext(r.Context(), "geocode search failed", "error", err, "query", q)
		response.InternalError(w, "geocoding service unavailable")
		return
	}
	if suggestions == nil {
		suggestions = []geocode.Suggestion{}
	}

	response.JSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}
