package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/khojghar/khojghar-api/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const accountsCollection = "accounts"

type AccountRepository interface {
	Create(ctx context.Context, acc *domain.Account) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Account, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, req *domain.UpdateProfileRequest) (*domain.Account, error)
	MarkVerified(ctx context.Context, id primitive.ObjectID) error
	SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error
	SaveListing(ctx context.Context, id, listingID primitive.ObjectID) error
	UnsaveListing(ctx context.Context, id, listingID primitive.ObjectID) error
}

type accountRepository struct {
	coll *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) AccountRepository {
	return &accountRepository{coll: db.Collection(accountsCollection)}
}

func (r *accountRepository) Create(ctx context.Context, acc *domain.Account) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	now := time.Now()
	acc.ID = primitive.NewObjectID()
	acc.CreatedAt = now
	acc.UpdatedAt = now
	if acc.Role == "" {
		acc.Role = domain.RoleMember
	}

	if _, err := r.coll.InsertOne(ctx, acc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: email already in use", domain.ErrConflict)
		}
		return nil, err
	}

	return acc, nil
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var acc domain.Account
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&acc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *accountRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var acc domain.Account
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&acc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *accountRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, req *domain.UpdateProfileRequest) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	set := bson.M{"updatedAt": time.Now()}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Phone != nil {
		set["phone"] = *req.Phone
	}
	if req.City != nil {
		set["city"] = *req.City
	}
	if req.ProfilePic != nil {
		set["profilePic"] = *req.ProfilePic
	}

	var acc domain.Account
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&acc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// MarkVerified flips the flag and clears the one-time code in a single
// document update.
func (r *accountRepository) MarkVerified(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set":   bson.M{"isVerified": true, "updatedAt": time.Now()},
		"$unset": bson.M{"verificationCode": ""},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: account", domain.ErrNotFound)
	}
	return nil
}

func (r *accountRepository) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"passwordHash": hash, "updatedAt": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: account", domain.ErrNotFound)
	}
	return nil
}

// SaveListing is a set-add; saving an already-saved id changes nothing.
func (r *accountRepository) SaveListing(ctx context.Context, id, listingID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$addToSet": bson.M{"savedListings": listingID},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: account", domain.ErrNotFound)
	}
	return nil
}

// UnsaveListing is a set-remove; removing an absent id is a no-op.
func (r *accountRepository) UnsaveListing(ctx context.Context, id, listingID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$pull": bson.M{"savedListings": listingID},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: account", domain.ErrNotFound)
	}
	return nil
}
