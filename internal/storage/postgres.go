package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/shynlabs/shyn/internal/types"
)

// chatMessageModel maps to the chat_messages table.
type chatMessageModel struct {
	ID             int
	UserID         int
	Mood           string
	Sender         string
	Text           string
	AttachmentName string
	AttachmentType string
	AttachmentURL  string
	CreatedAt      time.Time
}

func (chatMessageModel) TableName() string {
	return "chat_messages"
}

// memoryModel maps to the memories table.
type memoryModel struct {
	ID     string `gorm:"primaryKey"`
	UserID int
	Topic  string
	Detail string
	// Embedding enables similarity search; nil when no embedder is
	// configured.
	Embedding *pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt time.Time
}

func (memoryModel) TableName() string {
	return "memories"
}

// affectionModel maps to the affection_levels table, one row per
// (user, mood).
type affectionModel struct {
	UserID    int    `gorm:"primaryKey"`
	Mood      string `gorm:"primaryKey"`
	Level     float64
	UpdatedAt time.Time
}

func (affectionModel) TableName() string {
	return "affection_levels"
}

// userModel maps to the users table.
type userModel struct {
	ID         int `gorm:"primaryKey"`
	Name       string
	Email      string
	Role       string
	AvatarURL  string
	LastActive string
	Status     string
	CreatedAt  time.Time
}

func (userModel) TableName() string {
	return "users"
}

func openPostgres(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&chatMessageModel{}, &memoryModel{}, &affectionModel{}, &userModel{},
	); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	users := &pgUserRepo{db: db}
	if err := users.seed(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &Store{
		History:   &pgHistoryRepo{db: db},
		Memories:  &pgMemoryRepo{db: db},
		Affection: &pgAffectionRepo{db: db},
		Users:     users,
		closeFunc: sqlDB.Close,
	}, nil
}

type pgHistoryRepo struct {
	db *gorm.DB
}

func (r *pgHistoryRepo) Messages(ctx context.Context, userID int, mood types.Mood) ([]types.ChatMessage, error) {
	var records []chatMessageModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND mood = ?", userID, string(mood)).
		Order("created_at ASC, id ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}

	results := make([]types.ChatMessage, 0, len(records))
	for _, record := range records {
		results = append(results, chatMessageFromModel(record))
	}
	return results, nil
}

func (r *pgHistoryRepo) AppendMessage(ctx context.Context, userID int, msg types.ChatMessage) error {
	record := chatMessageModel{
		UserID:    userID,
		Mood:      string(msg.Mood),
		Sender:    string(msg.Sender),
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	}
	if msg.Attachment != nil {
		record.AttachmentName = msg.Attachment.Name
		record.AttachmentType = msg.Attachment.Type
		record.AttachmentURL = msg.Attachment.URL
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}
	return nil
}

func chatMessageFromModel(model chatMessageModel) types.ChatMessage {
	msg := types.ChatMessage{
		Sender:    types.Sender(model.Sender),
		Text:      model.Text,
		Mood:      types.Mood(model.Mood),
		CreatedAt: model.CreatedAt,
	}
	if model.AttachmentURL != "" {
		msg.Attachment = &types.Attachment{
			Name: model.AttachmentName,
			Type: model.AttachmentType,
			URL:  model.AttachmentURL,
		}
	}
	return msg
}

type pgMemoryRepo struct {
	db *gorm.DB
}

func (r *pgMemoryRepo) ForUser(ctx context.Context, userID int) ([]types.Memory, error) {
	var records []memoryModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}

	results := make([]types.Memory, 0, len(records))
	for _, record := range records {
		results = append(results, memoryFromModel(record))
	}
	return results, nil
}

func (r *pgMemoryRepo) Insert(ctx context.Context, userID int, mem types.Memory, embedding []float32) error {
	var vector *pgvector.Vector
	if len(embedding) > 0 {
		v := pgvector.NewVector(embedding)
		vector = &v
	}
	record := memoryModel{
		ID:        mem.ID,
		UserID:    userID,
		Topic:     mem.Topic,
		Detail:    mem.Detail,
		Embedding: vector,
		CreatedAt: mem.Timestamp,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

func (r *pgMemoryRepo) SearchSimilar(ctx context.Context, userID int, embedding []float32, topK int) ([]types.Memory, error) {
	if len(embedding) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, topic, detail, created_at
		FROM memories
		WHERE user_id = $2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $3`

	var records []memoryModel
	if err := r.db.WithContext(ctx).
		Raw(query, pgvector.NewVector(embedding), userID, topK).
		Scan(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to search similar memories: %w", err)
	}

	results := make([]types.Memory, 0, len(records))
	for _, record := range records {
		results = append(results, memoryFromModel(record))
	}
	return results, nil
}

func memoryFromModel(model memoryModel) types.Memory {
	return types.Memory{
		ID:        model.ID,
		Topic:     model.Topic,
		Detail:    model.Detail,
		Timestamp: model.CreatedAt,
	}
}

type pgAffectionRepo struct {
	db *gorm.DB
}

func (r *pgAffectionRepo) Get(ctx context.Context, userID int, mood types.Mood) (float64, error) {
	var record affectionModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND mood = ?", userID, string(mood)).
		Limit(1).
		Find(&record).Error
	if err != nil {
		return types.AffectionFloor, fmt.Errorf("failed to query affection: %w", err)
	}
	if record.UserID == 0 {
		return types.AffectionFloor, nil
	}
	return record.Level, nil
}

func (r *pgAffectionRepo) Set(ctx context.Context, userID int, mood types.Mood, level float64) error {
	record := affectionModel{UserID: userID, Mood: string(mood), Level: level}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND mood = ?", userID, string(mood)).
		Assign(map[string]any{"level": level}).
		FirstOrCreate(&record).Error
	if err != nil {
		return fmt.Errorf("failed to persist affection: %w", err)
	}
	return nil
}

type pgUserRepo struct {
	db *gorm.DB
}

func (r *pgUserRepo) seed(ctx context.Context) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&userModel{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, u := range seedUsers {
		record := userModel{
			ID:         u.ID,
			Name:       u.Name,
			Email:      u.Email,
			Role:       u.Role,
			AvatarURL:  u.AvatarURL,
			LastActive: u.LastActive,
			Status:     u.Status,
		}
		if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
			return fmt.Errorf("failed to seed users: %w", err)
		}
	}
	return nil
}

func (r *pgUserRepo) Me(ctx context.Context) (types.User, error) {
	var record userModel
	if err := r.db.WithContext(ctx).Order("id ASC").First(&record).Error; err != nil {
		return types.User{}, fmt.Errorf("failed to query current user: %w", err)
	}
	return userFromModel(record), nil
}

func (r *pgUserRepo) List(ctx context.Context) ([]types.User, error) {
	var records []userModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	results := make([]types.User, 0, len(records))
	for _, record := range records {
		results = append(results, userFromModel(record))
	}
	return results, nil
}

func (r *pgUserRepo) AdminStats(ctx context.Context) (types.AdminStats, error) {
	users, err := r.List(ctx)
	if err != nil {
		return types.AdminStats{}, err
	}
	return statsFrom(users), nil
}

func (r *pgUserRepo) ActivitySeries(ctx context.Context, days int) ([]types.ActivityPoint, error) {
	type row struct {
		Day   time.Time
		Users int
	}
	var rows []row
	since := time.Now().AddDate(0, 0, -days+1).Truncate(24 * time.Hour)
	err := r.db.WithContext(ctx).Raw(`
		SELECT date_trunc('day', created_at) AS day, COUNT(DISTINCT user_id) AS users
		FROM chat_messages
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day ASC`, since).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query activity series: %w", err)
	}

	byDay := make(map[string]int, len(rows))
	for _, r := range rows {
		byDay[r.Day.Format("Jan 2")] = r.Users
	}
	return fillActivitySeries(byDay, days), nil
}

func userFromModel(model userModel) types.User {
	return types.User{
		ID:         model.ID,
		Name:       model.Name,
		Email:      model.Email,
		Role:       model.Role,
		AvatarURL:  model.AvatarURL,
		LastActive: model.LastActive,
		Status:     model.Status,
	}
}

// fillActivitySeries pads the per-day counts so every day in the window is
// present, oldest first.
func fillActivitySeries(byDay map[string]int, days int) []types.ActivityPoint {
	points := make([]types.ActivityPoint, 0, days)
	today := time.Now()
	for i := days - 1; i >= 0; i-- {
		label := today.AddDate(0, 0, -i).Format("Jan 2")
		points = append(points, types.ActivityPoint{Date: label, Users: byDay[label]})
	}
	return points
}
