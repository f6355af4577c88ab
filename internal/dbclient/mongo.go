package dbclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"reports/internal/domain"
)

// MongoReportStore keeps the report catalog in MongoDB: one document per
// report in "reports" and one per artifact in "report_files".
type MongoReportStore struct {
	client  *mongo.Client
	reports *mongo.Collection
	files   *mongo.Collection
}

// mongoURI builds the connection URI and resolves the database name.
func mongoURI(conn *domain.DatabaseConnection, password string) (uri, dbName string) {
	// A full connection string (Atlas mongodb+srv:// or mongodb://) is used
	// as is, with the password placeholder substituted.
	if strings.HasPrefix(conn.Host, "mongodb+srv://") || strings.HasPrefix(conn.Host, "mongodb://") {
		uri = conn.Host
		if password != "" {
			uri = strings.ReplaceAll(uri, "<password>", password)
			uri = strings.ReplaceAll(uri, "<db_password>", password)
		}
	} else {
		port := conn.Port
		if port == 0 {
			port = 27017
		}
		if conn.Username != "" {
			uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", conn.Username, password, conn.Host, port)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%d", conn.Host, port)
		}
	}

	dbName = conn.Database
	if dbName == "" {
		// user:pass@host/DB_NAME?params
		rest := uri
		for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
			rest = strings.TrimPrefix(rest, prefix)
		}
		if at := strings.Index(rest, "@"); at != -1 {
			rest = rest[at+1:]
		}
		if slash := strings.Index(rest, "/"); slash != -1 {
			path := rest[slash+1:]
			if q := strings.Index(path, "?"); q != -1 {
				path = path[:q]
			}
			dbName = path
		}
		if dbName == "" {
			dbName = "reports"
		}
	}
	return uri, dbName
}

// NewMongoReportStore connects, pings and ensures the report_files index.
func NewMongoReportStore(ctx context.Context, conn *domain.DatabaseConnection, password string) (*MongoReportStore, error) {
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	uri, dbName := mongoURI(conn, password)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(dbName)
	s := &MongoReportStore{
		client:  client,
		reports: db.Collection("reports"),
		files:   db.Collection("report_files"),
	}
	_, err = s.files.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "report_id", Value: 1}}})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("create report_files index: %w", err)
	}
	return s, nil
}

// Close disconnects the client.
func (s *MongoReportStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoReportStore) CreateReport(ctx context.Context, r *domain.Report) error {
	_, err := s.reports.InsertOne(ctx, r)
	return err
}

func (s *MongoReportStore) UpdateReportStatus(ctx context.Context, id string, status domain.ReportStatus) error {
	res, err := s.reports.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("report %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *MongoReportStore) GetReport(ctx context.Context, id string) (*domain.Report, error) {
	var r domain.Report
	err := s.reports.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("report %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MongoReportStore) CreateReportFile(ctx context.Context, f *domain.ReportFile) error {
	_, err := s.files.InsertOne(ctx, f)
	return err
}

func (s *MongoReportStore) ListReportFiles(ctx context.Context, reportID string) ([]domain.ReportFile, error) {
	cur, err := s.files.Find(ctx, bson.M{"report_id": reportID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []domain.ReportFile
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
