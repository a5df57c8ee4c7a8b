package billing

import (
	"sort"
	"sync"
	"time"

	"github.com/dweber/subsync/app/models"
	"gorm.io/gorm"
)

// fakeRepository is an in-memory Repository with the same atomicity contract
// as the real store: the event-id claim is exclusive under concurrent use.
type fakeRepository struct {
	mu        sync.Mutex
	users     map[string]*models.User
	events    map[string]*models.WebhookEvent
	nextID    uint
	updateErr error
	updates   int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:  make(map[string]*models.User),
		events: make(map[string]*models.WebhookEvent),
	}
}

func (f *fakeRepository) addUser(u models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = &u
}

func (f *fakeRepository) user(id string) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.users[id]
}

func (f *fakeRepository) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

func (f *fakeRepository) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeRepository) UpdateUserSubscription(userID string, updates map[string]interface{}) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	u, ok := f.users[userID]
	if !ok {
		return 0, nil
	}
	f.updates++
	applyUserUpdates(u, updates)
	u.UpdatedAt = time.Now()
	return 1, nil
}

func (f *fakeRepository) FindUsersBySubscriptionID(subscriptionID string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.users {
		if u.StripeSubscriptionID == subscriptionID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepository) GetUserByID(userID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.events[event.EventID]; ok {
		cp := *stored
		return false, &cp, nil
	}
	f.nextID++
	event.ID = f.nextID
	event.CreatedAt = time.Now()
	cp := *event
	f.events[event.EventID] = &cp
	return true, event, nil
}

func (f *fakeRepository) MarkWebhookProcessed(id uint, outcome string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.Outcome = outcome
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) DeleteWebhookEvent(id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, ev := range f.events {
		if ev.ID == id {
			delete(f.events, key)
			return nil
		}
	}
	return nil
}

func applyUserUpdates(u *models.User, updates map[string]interface{}) {
	for key, val := range updates {
		switch key {
		case "subscription_status":
			u.SubscriptionStatus = val.(string)
		case "subscription_period":
			u.SubscriptionPeriod = val.(string)
		case "stripe_customer_id":
			u.StripeCustomerID = val.(string)
		case "stripe_subscription_id":
			u.StripeSubscriptionID = val.(string)
		case "subscription_start_date":
			u.SubscriptionStartDate = val.(*time.Time)
		case "subscription_end_date":
			u.SubscriptionEndDate = val.(*time.Time)
		}
	}
}
