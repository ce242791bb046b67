// Command migrate-mongo-to-ddb copies users, sellers (with their embedded
// products and counters) and banners from MongoDB into the DynamoDB tables.
// Records that already exist in DynamoDB are skipped, so the tool can be
// re-run after a partial migration.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"marketplace-service/common/logger"
	"marketplace-service/database"
	"marketplace-service/models"
	awspkg "marketplace-service/pkg/aws"
	"marketplace-service/repository"
)

type stats struct {
	migrated, skipped, failed int
}

func main() {
	var mongoURI, dbName string
	var tables repository.DynamoTables
	flag.StringVar(&mongoURI, "mongo", os.Getenv("MONGO_URL"), "MongoDB URI")
	flag.StringVar(&dbName, "db", os.Getenv("MONGO_DB_NAME"), "MongoDB database name")
	flag.StringVar(&tables.Users, "users-table", envOr("DDB_TABLE_USERS", "Users"), "DynamoDB users table")
	flag.StringVar(&tables.Sellers, "sellers-table", envOr("DDB_TABLE_SELLERS", "Sellers"), "DynamoDB sellers table")
	flag.StringVar(&tables.Banners, "banners-table", envOr("DDB_TABLE_BANNERS", "Banners"), "DynamoDB banners table")
	flag.Parse()

	log := logger.Initialize(os.Getenv("APP_ENV"))
	defer log.Sync()

	if mongoURI == "" || dbName == "" {
		log.Fatal("MONGO_URL and MONGO_DB_NAME must be set or provided via flags")
	}

	ctx := context.Background()
	mongoDB, err := database.ConnectWithConfig(ctx, mongoURI, dbName)
	if err != nil {
		log.Fatal("mongo connect", zap.Error(err))
	}
	defer mongoDB.Close()

	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		log.Fatal("aws config", zap.Error(err))
	}
	target := repository.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), tables)

	users := copyCollection(ctx, log, mongoDB.DB.Collection("user"), func(u *models.User) error {
		if u.CreatedAt.IsZero() {
			u.CreatedAt = time.Now().UTC()
		}
		return target.CreateUser(ctx, u)
	})
	sellers := copyCollection(ctx, log, mongoDB.DB.Collection("seller"), func(s *models.Seller) error {
		if s.CreatedAt.IsZero() {
			s.CreatedAt = time.Now().UTC()
		}
		return target.CreateSeller(ctx, s)
	})
	banners := copyCollection(ctx, log, mongoDB.DB.Collection("banner"), func(b *models.Banner) error {
		return target.CreateBanner(ctx, b)
	})

	fmt.Printf("Migration complete. users=%+v sellers=%+v banners=%+v\n", users, sellers, banners)
}

// copyCollection streams every document of coll through write.
func copyCollection[T any](ctx context.Context, log *zap.Logger, coll *mongo.Collection, write func(*T) error) stats {
	var st stats
	batchSize := int32(500)
	cur, err := coll.Find(ctx, bson.M{}, options.Find().SetBatchSize(batchSize))
	if err != nil {
		log.Fatal("mongo find", zap.String("collection", coll.Name()), zap.Error(err))
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc T
		if err := cur.Decode(&doc); err != nil {
			log.Warn("decode error", zap.String("collection", coll.Name()), zap.Error(err))
			st.failed++
			continue
		}
		switch err := write(&doc); {
		case err == nil:
			st.migrated++
		case errors.Is(err, repository.ErrDuplicate):
			st.skipped++
		default:
			log.Error("write failed", zap.String("collection", coll.Name()), zap.Error(err))
			st.failed++
		}
		if n := st.migrated; n > 0 && n%100 == 0 {
			log.Info("progress", zap.String("collection", coll.Name()), zap.Int("migrated", n))
		}
	}
	if err := cur.Err(); err != nil {
		log.Fatal("cursor error", zap.String("collection", coll.Name()), zap.Error(err))
	}
	return st
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
