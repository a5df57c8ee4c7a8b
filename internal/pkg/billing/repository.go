package billing

import (
	"time"

	"github.com/dweber/subsync/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the account-store and dedup-store operations used by
// webhook reconciliation.
type Repository interface {
	// UpdateUserSubscription applies updates to the account row with the given
	// id and reports how many rows matched. Zero matches is not an error.
	UpdateUserSubscription(userID string, updates map[string]interface{}) (int64, error)
	// FindUsersBySubscriptionID returns all accounts matching a Stripe
	// subscription id in deterministic order. The key is unique by design, so
	// more than one row signals data corruption the caller must log.
	FindUsersBySubscriptionID(subscriptionID string) ([]models.User, error)
	GetUserByID(userID string) (*models.User, error)

	// CreateWebhookEventIfNotExists claims event processing with an atomic
	// insert-if-absent on the unique event id. created=false means another
	// delivery already holds or completed the claim.
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, outcome string) error
	DeleteWebhookEvent(id uint) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) UpdateUserSubscription(userID string, updates map[string]interface{}) (int64, error) {
	tx := r.db.Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	return tx.RowsAffected, tx.Error
}

func (r *gormRepository) FindUsersBySubscriptionID(subscriptionID string) ([]models.User, error) {
	var users []models.User
	err := r.db.Where("stripe_subscription_id = ?", subscriptionID).
		Order("id asc").
		Find(&users).Error
	return users, err
}

func (r *gormRepository) GetUserByID(userID string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("event_id = ?", event.EventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, outcome string) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed_at": &now,
		"outcome":      outcome,
	}).Error
}

func (r *gormRepository) DeleteWebhookEvent(id uint) error {
	return r.db.Delete(&models.WebhookEvent{}, "id = ?", id).Error
}
