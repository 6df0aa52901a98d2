package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rajivgeraev/bookswap-api/internal/models"
)

// CollectionNotifications - коллекция ленты уведомлений
const CollectionNotifications = "notifications"

type notificationDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	UserID     string             `bson:"user_id"`
	Type       string             `bson:"type"`
	ExchangeID string             `bson:"exchange_id"`
	BookID     string             `bson:"book_id"`
	Message    string             `bson:"message"`
	IsRead     bool               `bson:"is_read"`
	CreatedAt  time.Time          `bson:"created_at"`
}

func toDoc(n models.Notification) notificationDoc {
	return notificationDoc{
		UserID:     n.UserID.String(),
		Type:       string(n.Type),
		ExchangeID: n.ExchangeID.String(),
		BookID:     n.BookID.String(),
		Message:    n.Message,
		IsRead:     n.IsRead,
		CreatedAt:  n.CreatedAt,
	}
}

func (d notificationDoc) model() models.Notification {
	n := models.Notification{
		ID:        d.ID.Hex(),
		Type:      models.NotificationType(d.Type),
		Message:   d.Message,
		IsRead:    d.IsRead,
		CreatedAt: d.CreatedAt,
	}
	n.UserID, _ = uuid.Parse(d.UserID)
	n.ExchangeID, _ = uuid.Parse(d.ExchangeID)
	n.BookID, _ = uuid.Parse(d.BookID)
	return n
}

// Connect подключается к MongoDB и проверяет соединение
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ошибка проверки соединения с MongoDB: %w", err)
	}
	return client, nil
}

// MongoStore хранит ленту уведомлений в MongoDB
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore создает новый экземпляр MongoStore
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(CollectionNotifications)}
}

var _ Feed = (*MongoStore)(nil)

// EnsureIndexes создаёт индекс для выборки ленты пользователя
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_read", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("ошибка создания индекса уведомлений: %w", err)
	}
	return nil
}

// Notify сохраняет уведомления
func (s *MongoStore) Notify(ctx context.Context, notes []models.Notification) error {
	if len(notes) == 0 {
		return nil
	}
	docs := make([]interface{}, len(notes))
	for i, n := range notes {
		docs[i] = toDoc(n)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("ошибка сохранения уведомлений в MongoDB: %w", err)
	}
	return nil
}

// List возвращает уведомления пользователя, новые первыми
func (s *MongoStore) List(ctx context.Context, userID uuid.UUID, limit int, unreadOnly bool) ([]models.Notification, error) {
	filter := bson.M{"user_id": userID.String()}
	if unreadOnly {
		filter["is_read"] = false
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(clampLimit(limit)))

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения уведомлений: %w", err)
	}
	var docs []notificationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("ошибка чтения уведомлений: %w", err)
	}

	out := make([]models.Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

// UnreadCount возвращает число непрочитанных уведомлений
func (s *MongoStore) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"user_id": userID.String(), "is_read": false})
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта уведомлений: %w", err)
	}
	return n, nil
}

// MarkRead отмечает уведомления прочитанными. Чужие и некорректные id
// пропускаются.
func (s *MongoStore) MarkRead(ctx context.Context, userID uuid.UUID, ids []string) (int64, error) {
	filter := bson.M{"user_id": userID.String(), "is_read": false}
	if len(ids) > 0 {
		oids := make([]primitive.ObjectID, 0, len(ids))
		for _, id := range ids {
			if oid, err := primitive.ObjectIDFromHex(id); err == nil {
				oids = append(oids, oid)
			}
		}
		if len(oids) == 0 {
			return 0, nil
		}
		filter["_id"] = bson.M{"$in": oids}
	}

	res, err := s.coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return 0, fmt.Errorf("ошибка обновления уведомлений: %w", err)
	}
	return res.ModifiedCount, nil
}
