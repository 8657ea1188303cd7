package mongodb

import (
	"context"
	"regexp"
	"time"

	"github.com/khojghar/khojghar-api/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const listingsCollection = "listings"

type ListingStats struct {
	TotalActive int64 `json:"totalActive"`
	AvgPrice    int64 `json:"avgPrice"`
	AvgViews    int64 `json:"avgViews"`
}

type ListingRepository interface {
	Create(ctx context.Context, l *domain.Listing) (*domain.Listing, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Listing, error)
	Search(ctx context.Context, q *domain.ListQuery) ([]domain.Listing, error)
	ByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]domain.Listing, error)
	ByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Listing, error)
	Update(ctx context.Context, id primitive.ObjectID, req *domain.UpdateListingRequest) (*domain.Listing, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status string) (*domain.Listing, error)
	SetPrice(ctx context.Context, id primitive.ObjectID, price float64) (*domain.Listing, error)
	IncrementViews(ctx context.Context, id primitive.ObjectID) (int64, bool, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
	Stats(ctx context.Context) (*ListingStats, error)
}

type listingRepository struct {
	coll *mongo.Collection
}

func NewListingRepository(db *mongo.Database) ListingRepository {
	return &listingRepository{coll: db.Collection(listingsCollection)}
}

func (r *listingRepository) Create(ctx context.Context, l *domain.Listing) (*domain.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	now := time.Now()
	l.ID = primitive.NewObjectID()
	l.CreatedAt = now
	l.UpdatedAt = now
	if l.Status == "" {
		l.Status = domain.StatusActive
	}
	if l.Images == nil {
		l.Images = []string{}
	}
	// Seed the price log with the initial price.
	if len(l.PriceHistory) == 0 {
		l.PriceHistory = []domain.PricePoint{{Price: l.Price, ChangedAt: now}}
	}

	if _, err := r.coll.InsertOne(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (r *listingRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var l domain.Listing
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&l)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// searchFilter translates the public query into a Mongo filter.
func searchFilter(q *domain.ListQuery) bson.M {
	filter := bson.M{"status": q.Status}

	if q.City != "" {
		filter["city"] = primitive.Regex{Pattern: regexp.QuoteMeta(q.City), Options: "i"}
	}

	price := bson.M{}
	if q.MinPrice != nil {
		price["$gte"] = *q.MinPrice
	}
	if q.MaxPrice != nil {
		price["$lte"] = *q.MaxPrice
	}
	if len(price) > 0 {
		filter["price"] = price
	}

	if q.MinBeds != nil {
		filter["beds"] = bson.M{"$gte": *q.MinBeds}
	}
	if q.MinBaths != nil {
		filter["baths"] = bson.M{"$gte": *q.MinBaths}
	}

	if q.Furnished {
		filter["furnished"] = true
	}
	if q.Internet {
		filter["internet"] = true
	}
	if q.Parking {
		filter["parking"] = true
	}
	if q.PetsAllowed {
		filter["petsAllowed"] = true
	}

	return filter
}

func (r *listingRepository) Search(ctx context.Context, q *domain.ListQuery) ([]domain.Listing, error) {
	q.Normalize()

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(q.Limit))

	cur, err := r.coll.Find(ctx, searchFilter(q), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	listings := make([]domain.Listing, 0, q.Limit)
	if err := cur.All(ctx, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

func (r *listingRepository) ByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]domain.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var listings []domain.Listing
	if err := cur.All(ctx, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// ByIDs resolves saved-listing references; ids that no longer exist are
// simply absent from the result.
func (r *listingRepository) ByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Listing, error) {
	if len(ids) == 0 {
		return []domain.Listing{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	listings := make([]domain.Listing, 0, len(ids))
	if err := cur.All(ctx, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

func (r *listingRepository) Update(ctx context.Context, id primitive.ObjectID, req *domain.UpdateListingRequest) (*domain.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	set := bson.M{"updatedAt": time.Now()}
	if req.Title != nil {
		set["title"] = *req.Title
	}
	if req.Description != nil {
		set["description"] = *req.Description
	}
	if req.Beds != nil {
		set["beds"] = *req.Beds
	}
	if req.Baths != nil {
		set["baths"] = *req.Baths
	}
	if req.Sqft != nil {
		set["sqft"] = *req.Sqft
	}
	if req.Address != nil {
		set["address"] = *req.Address
	}
	if req.City != nil {
		set["city"] = *req.City
	}
	if req.Furnished != nil {
		set["furnished"] = *req.Furnished
	}
	if req.Internet != nil {
		set["internet"] = *req.Internet
	}
	if req.Parking != nil {
		set["parking"] = *req.Parking
	}
	if req.PetsAllowed != nil {
		set["petsAllowed"] = *req.PetsAllowed
	}
	if req.Video != nil {
		set["video"] = *req.Video
	}

	update := bson.M{"$set": set}

	// Price changes through update also append to the log.
	if req.Price != nil {
		set["price"] = *req.Price
		update["$push"] = bson.M{"priceHistory": domain.PricePoint{Price: *req.Price, ChangedAt: time.Now()}}
	}

	// New images are appended, never replacing the existing list.
	if len(req.NewImages) > 0 {
		push, ok := update["$push"].(bson.M)
		if !ok {
			push = bson.M{}
			update["$push"] = push
		}
		push["images"] = bson.M{"$each": req.NewImages}
	}

	var l domain.Listing
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&l)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *listingRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status string) (*domain.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var l domain.Listing
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&l)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// SetPrice always appends a history entry, including for repeated
// identical prices.
func (r *listingRepository) SetPrice(ctx context.Context, id primitive.ObjectID, price float64) (*domain.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	now := time.Now()
	var l domain.Listing
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set":  bson.M{"price": price, "updatedAt": now},
			"$push": bson.M{"priceHistory": domain.PricePoint{Price: price, ChangedAt: now}},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&l)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// IncrementViews is a single-document atomic $inc; every call counts.
func (r *listingRepository) IncrementViews(ctx context.Context, id primitive.ObjectID) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var l domain.Listing
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"views": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&l)
	if err == mongo.ErrNoDocuments {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return l.Views, true, nil
}

func (r *listingRepository) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// Stats summarizes the 50 newest active listings for the landing page.
func (r *listingRepository) Stats(ctx context.Context) (*ListingStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	active := bson.M{"status": domain.StatusActive}

	total, err := r.coll.CountDocuments(ctx, active)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(50)
	cur, err := r.coll.Find(ctx, active, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var recent []domain.Listing
	if err := cur.All(ctx, &recent); err != nil {
		return nil, err
	}

	stats := &ListingStats{TotalActive: total}
	if len(recent) > 0 {
		var priceSum float64
		var viewSum int64
		for _, l := range recent {
			priceSum += l.Price
			viewSum += l.Views
		}
		stats.AvgPrice = int64(priceSum/float64(len(recent)) + 0.5)
		stats.AvgViews = (viewSum + int64(len(recent))/2) / int64(len(recent))
	}
	return stats, nil
}
