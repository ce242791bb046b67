package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"marketplace-service/models"
)

const (
	usersCollection   = "user"
	sellersCollection = "seller"
	bannersCollection = "banner"
)

// MongoStore keeps users, sellers (with embedded products) and banners in
// MongoDB. Counters move with $inc and products with $push / $pull, so no
// method rewrites a whole document.
type MongoStore struct {
	users   *mongo.Collection
	sellers *mongo.Collection
	banners *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		users:   db.Collection(usersCollection),
		sellers: db.Collection(sellersCollection),
		banners: db.Collection(bannersCollection),
	}
}

// EnsureIndexes creates the unique mail indexes and the lookup indexes used by
// product and banner queries.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "mail", Value: 1}}, Options: unique}); err != nil {
		return fmt.Errorf("create user mail index: %w", err)
	}
	if _, err := s.sellers.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "mail", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "products.id", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create seller indexes: %w", err)
	}
	if _, err := s.banners.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "seller_id", Value: 1}}}); err != nil {
		return fmt.Errorf("create banner index: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) FindUserByMail(ctx context.Context, mail string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"mail": mail})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (s *MongoStore) IncrementPurchaseCount(ctx context.Context, userID string, delta int64) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$inc": bson.M{"purchase_count": delta}})
	if err != nil {
		return fmt.Errorf("increment purchase count: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoStore) CreateSeller(ctx context.Context, seller *models.Seller) error {
	doc := *seller
	// $push needs an array to append to; a nil slice would be stored as null.
	if doc.Products == nil {
		doc.Products = []models.Product{}
	}
	if _, err := s.sellers.InsertOne(ctx, &doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert seller: %w", err)
	}
	return nil
}

func (s *MongoStore) FindSellerByID(ctx context.Context, id string) (*models.Seller, error) {
	return s.findSeller(ctx, bson.M{"_id": id}, nil)
}

func (s *MongoStore) FindSellerByMail(ctx context.Context, mail string) (*models.Seller, error) {
	return s.findSeller(ctx, bson.M{"mail": mail}, nil)
}

func (s *MongoStore) findSeller(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*models.Seller, error) {
	var seller models.Seller
	if err := s.sellers.FindOne(ctx, filter, opts).Decode(&seller); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSellerNotFound
		}
		return nil, fmt.Errorf("find seller: %w", err)
	}
	return &seller, nil
}

func (s *MongoStore) IncrementSellCount(ctx context.Context, sellerID string, delta int64) error {
	res, err := s.sellers.UpdateOne(ctx, bson.M{"_id": sellerID}, bson.M{"$inc": bson.M{"sell_count": delta}})
	if err != nil {
		return fmt.Errorf("increment sell count: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrSellerNotFound
	}
	return nil
}

func (s *MongoStore) AddProduct(ctx context.Context, sellerID string, attrs models.ProductAttributes) (*models.Product, error) {
	p := models.Product{
		ID:                uuid.NewString(),
		ProductAttributes: attrs,
		CreatedAt:         time.Now().UTC(),
	}
	res, err := s.sellers.UpdateOne(ctx, bson.M{"_id": sellerID}, bson.M{"$push": bson.M{"products": p}})
	if err != nil {
		return nil, fmt.Errorf("push product: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrSellerNotFound
	}
	return &p, nil
}

func (s *MongoStore) RemoveProduct(ctx context.Context, sellerID, productID string) error {
	res, err := s.sellers.UpdateOne(ctx,
		bson.M{"_id": sellerID, "products.id": productID},
		bson.M{"$pull": bson.M{"products": bson.M{"id": productID}}},
	)
	if err != nil {
		return fmt.Errorf("pull product: %w", err)
	}
	if res.MatchedCount == 0 {
		return s.missingProduct(ctx, sellerID)
	}
	return nil
}

func (s *MongoStore) FindProduct(ctx context.Context, sellerID, productID string) (*models.Product, error) {
	opts := options.FindOne().SetProjection(bson.M{
		"products": bson.M{"$elemMatch": bson.M{"id": productID}},
	})
	seller, err := s.findSeller(ctx, bson.M{"_id": sellerID}, opts)
	if err != nil {
		return nil, err
	}
	if len(seller.Products) == 0 {
		return nil, ErrProductNotFound
	}
	return &seller.Products[0], nil
}

func (s *MongoStore) ListProducts(ctx context.Context, sellerID string) ([]models.Product, error) {
	opts := options.FindOne().SetProjection(bson.M{"products": 1})
	seller, err := s.findSeller(ctx, bson.M{"_id": sellerID}, opts)
	if err != nil {
		return nil, err
	}
	if seller.Products == nil {
		return []models.Product{}, nil
	}
	return seller.Products, nil
}

func (s *MongoStore) IncrementProductSellCount(ctx context.Context, sellerID, productID string, delta int64) error {
	res, err := s.sellers.UpdateOne(ctx,
		bson.M{"_id": sellerID, "products.id": productID},
		bson.M{"$inc": bson.M{"products.$.sell_count": delta}},
	)
	if err != nil {
		return fmt.Errorf("increment product sell count: %w", err)
	}
	if res.MatchedCount == 0 {
		return s.missingProduct(ctx, sellerID)
	}
	return nil
}

// missingProduct tells a missing seller apart from a missing product after an
// update matched nothing.
func (s *MongoStore) missingProduct(ctx context.Context, sellerID string) error {
	n, err := s.sellers.CountDocuments(ctx, bson.M{"_id": sellerID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("check seller: %w", err)
	}
	if n == 0 {
		return ErrSellerNotFound
	}
	return ErrProductNotFound
}

func (s *MongoStore) AllProducts(ctx context.Context) iter.Seq2[models.ListedProduct, error] {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
		{{Key: "$unwind", Value: "$products"}},
		{{Key: "$replaceRoot", Value: bson.M{
			"newRoot": bson.M{"$mergeObjects": bson.A{"$products", bson.M{"seller_id": "$_id"}}},
		}}},
	}

	return func(yield func(models.ListedProduct, error) bool) {
		cur, err := s.sellers.Aggregate(ctx, pipeline)
		if err != nil {
			yield(models.ListedProduct{}, fmt.Errorf("aggregate products: %w", err))
			return
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			var lp models.ListedProduct
			if err := cur.Decode(&lp); err != nil {
				yield(models.ListedProduct{}, fmt.Errorf("decode product: %w", err))
				return
			}
			if !yield(lp, nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(models.ListedProduct{}, fmt.Errorf("iterate products: %w", err))
		}
	}
}

func (s *MongoStore) CreateBanner(ctx context.Context, banner *models.Banner) error {
	if _, err := s.banners.InsertOne(ctx, banner); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert banner: %w", err)
	}
	return nil
}

func (s *MongoStore) ListBanners(ctx context.Context, sellerID string) ([]models.Banner, error) {
	filter := bson.M{}
	if sellerID != "" {
		filter["seller_id"] = sellerID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.banners.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find banners: %w", err)
	}
	defer cur.Close(ctx)

	banners := []models.Banner{}
	if err := cur.All(ctx, &banners); err != nil {
		return nil, fmt.Errorf("decode banners: %w", err)
	}
	return banners, nil
}

func (s *MongoStore) DeleteBanner(ctx context.Context, sellerID, bannerID string) error {
	res, err := s.banners.DeleteOne(ctx, bson.M{"_id": bannerID, "seller_id": sellerID})
	if err != nil {
		return fmt.Errorf("delete banner: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrBannerNotFound
	}
	return nil
}
