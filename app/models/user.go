package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Subscription statuses written by webhook reconciliation.
const (
	SubscriptionNone      = "none"
	SubscriptionActive    = "active"
	SubscriptionPastDue   = "past_due"
	SubscriptionCancelled = "cancelled"
)

// Billing periods derived from the checkout session mode.
const (
	PeriodMonthly = "monthly"
	PeriodAnnual  = "annual"
)

// User carries the account-side projection of a Stripe subscription. Rows are
// matched to webhook events by StripeSubscriptionID, or by the correlation id
// embedded in checkout metadata before a subscription id exists.
type User struct {
	ID                    string     `gorm:"type:varchar(36);primaryKey" json:"id" validate:"required"`
	Email                 string     `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	SubscriptionStatus    string     `gorm:"type:varchar(32);not null;default:'none';index" json:"subscription_status"`
	SubscriptionPeriod    string     `gorm:"type:varchar(16);default:''" json:"subscription_period"`
	StripeCustomerID      string     `gorm:"type:varchar(191);default:'';index" json:"stripe_customer_id"`
	StripeSubscriptionID  string     `gorm:"type:varchar(191);default:'';index" json:"stripe_subscription_id"`
	SubscriptionStartDate *time.Time `gorm:"type:timestamp;default:null" json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time `gorm:"type:timestamp;default:null" json:"subscription_end_date,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}
