// Package audit 记录订单生命周期的审计轨迹
package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/config"
)

// Action 审计动作
type Action string

const (
	ActionPlaced          Action = "order_placed"
	ActionStatusUpdated   Action = "status_updated"
	ActionItemCancelled   Action = "item_cancelled"
	ActionReturnRequested Action = "return_requested"
	ActionReturnAccepted  Action = "return_accepted"
	ActionReturnRejected  Action = "return_rejected"
	ActionPaymentVerified Action = "payment_verified"
)

// Entry 一条审计记录
type Entry struct {
	OrderID   int64          `bson:"order_id" json:"order_id"`
	UserID    int64          `bson:"user_id" json:"user_id"`
	Actor     string         `bson:"actor" json:"actor"`
	Action    Action         `bson:"action" json:"action"`
	Data      map[string]any `bson:"data,omitempty" json:"data,omitempty"`
	RequestID string         `bson:"request_id,omitempty" json:"request_id,omitempty"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
}

// Recorder 审计写入与查询
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
	History(ctx context.Context, orderID int64, limit int64) ([]*Entry, error)
}

// MongoRecorder MongoDB 实现
type MongoRecorder struct {
	client     *mongo.Client
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoRecorder 连接 MongoDB 并确保按订单查询的索引
func NewMongoRecorder(cfg config.AuditConfig, logger *zap.Logger) (*MongoRecorder, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		// 索引缺失只影响查询性能
		logger.Warn("failed to create audit index", zap.Error(err))
	}

	r := NewMongoRecorderFromCollection(coll)
	r.client = client
	return r, nil
}

// NewMongoRecorderFromCollection 基于已有集合创建
func NewMongoRecorderFromCollection(coll *mongo.Collection) *MongoRecorder {
	return &MongoRecorder{collection: coll, now: time.Now}
}

func (m *MongoRecorder) Record(ctx context.Context, e *Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now()
	}
	if _, err := m.collection.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// History 按时间倒序返回订单的审计记录
func (m *MongoRecorder) History(ctx context.Context, orderID int64, limit int64) ([]*Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := m.collection.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]*Entry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode audit entries: %w", err)
	}
	return entries, nil
}

// Close 断开连接
func (m *MongoRecorder) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

// MemoryRecorder 审计未启用或本地开发时使用，仅保存在进程内
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []*Entry
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) Record(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *MemoryRecorder) History(ctx context.Context, orderID int64, limit int64) ([]*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Entry, 0)
	for _, e := range m.entries {
		if e.OrderID == orderID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}
