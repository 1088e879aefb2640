package engagement

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ritim-app/ritim/internal/domain"
	"github.com/ritim-app/ritim/internal/infra/metrics"
)

// NotificationService turns committed events into inbox notifications.
// Policy:
//   - at most MaxPerDay notifications per user per logical day
//   - nothing recorded between QuietStart and QuietEnd (clock's local time)
//   - only achievement unlocks, level-ups and rank-ups are notified;
//     streak breaks are never pushed at the user
//
// Recording is synchronous. Pushes to the sender go through a bounded
// outbox drained by one worker; a full outbox drops the push, never the
// inbox entry.
type NotificationService struct {
	store  domain.NotificationStore
	sender domain.Sender
	policy domain.NotificationPolicy
	clock  Clock
	log    *log.Entry

	outMu  sync.RWMutex
	outbox chan domain.Notification
	closed bool
	done   chan struct{}
}

const (
	outboxSize  = 64
	sendTimeout = 10 * time.Second
)

// NewNotificationService creates a notification service with default policy.
func NewNotificationService(store domain.NotificationStore, clock Clock) *NotificationService {
	return NewNotificationServiceWithPolicy(store, clock, domain.DefaultNotificationPolicy())
}

// NewNotificationServiceWithPolicy creates a notification service with custom policy.
func NewNotificationServiceWithPolicy(store domain.NotificationStore, clock Clock, policy domain.NotificationPolicy) *NotificationService {
	return &NotificationService{
		store:  store,
		policy: policy,
		clock:  clock,
		log:    log.WithField("component", "notify"),
	}
}

// WithSender pushes every recorded notification through s as well and
// starts the delivery worker. Call Close to stop it.
func (n *NotificationService) WithSender(s domain.Sender) *NotificationService {
	n.sender = s
	n.outbox = make(chan domain.Notification, outboxSize)
	n.done = make(chan struct{})
	go n.deliver()
	return n
}

// Close stops the delivery worker once queued pushes are sent. Safe to
// call more than once, and without a sender.
func (n *NotificationService) Close() {
	n.outMu.Lock()
	if n.outbox == nil || n.closed {
		n.outMu.Unlock()
		return
	}
	n.closed = true
	close(n.outbox)
	n.outMu.Unlock()
	<-n.done
}

func (n *NotificationService) deliver() {
	defer close(n.done)
	for notif := range n.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := n.sender.Send(ctx, notif)
		cancel()
		if err != nil {
			metrics.NotificationsRecorded.WithLabelValues(string(notif.Type), "send_failed").Inc()
			n.log.WithError(err).WithField("id", notif.ID).Warn("send failed, kept in inbox")
			continue
		}
		metrics.NotificationsRecorded.WithLabelValues(string(notif.Type), "sent").Inc()
	}
}

// enqueue hands notif to the delivery worker without blocking.
func (n *NotificationService) enqueue(notif domain.Notification) {
	n.outMu.RLock()
	defer n.outMu.RUnlock()
	if n.outbox == nil || n.closed {
		return
	}
	select {
	case n.outbox <- notif:
	default:
		metrics.NotificationsRecorded.WithLabelValues(string(notif.Type), "send_dropped").Inc()
		n.log.WithField("id", notif.ID).Warn("outbox full, push dropped")
	}
}

// Attach subscribes the service to bus and returns the unsubscribe function.
func (n *NotificationService) Attach(bus *Bus) func() {
	return bus.Subscribe(func(ev domain.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, notif := range notificationsFor(ev) {
			if _, err := n.Create(ctx, notif); err != nil {
				n.log.WithError(err).WithField("user", ev.UserID).Warn("could not record notification")
			}
		}
	})
}

// notificationsFor maps an event to the notifications it produces.
func notificationsFor(ev domain.Event) []domain.Notification {
	base := domain.Notification{UserID: ev.UserID, CreatedAt: ev.At}
	var out []domain.Notification

	switch ev.Type {
	case domain.EventAchievementsUnlocked:
		for _, id := range ev.AchievementIDs {
			def, ok := LookupAchievement(id)
			if !ok {
				continue
			}
			notif := base
			notif.Type = domain.NotifyAchievement
			notif.Title = def.Icon + " " + def.Name
			notif.Body = def.Description
			if def.RewardXP > 0 {
				notif.Body += fmt.Sprintf(" (+%d XP)", def.RewardXP)
			}
			out = append(out, notif)
		}

	case domain.EventLevelUp:
		notif := base
		notif.Type = domain.NotifyLevelUp
		notif.Title = fmt.Sprintf("Level %d!", ev.ToLevel)
		notif.Body = fmt.Sprintf("You reached level %d with %d XP.", ev.ToLevel, ev.XP)
		out = append(out, notif)

	case domain.EventRankUp:
		rank := RankForLevel(ev.ToLevel)
		notif := base
		notif.Type = domain.NotifyRankUp
		notif.Title = rank.Icon + " " + rank.Name
		notif.Body = fmt.Sprintf("You grew from %s to %s.", ev.FromRank, ev.ToRank)
		out = append(out, notif)
	}
	return out
}

// Create records notif if policy allows it.
// Returns the notification ID (0 if suppressed by policy) and any error.
func (n *NotificationService) Create(ctx context.Context, notif domain.Notification) (int64, error) {
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now()
	}

	// Check daily limit
	todayCount, err := n.TodayCount(ctx, notif.UserID, notif.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("count today: %w", err)
	}
	if todayCount >= n.policy.MaxPerDay {
		metrics.NotificationsRecorded.WithLabelValues(string(notif.Type), "suppressed").Inc()
		return 0, nil
	}

	// Check quiet hours
	if n.isQuietHour(notif.CreatedAt) {
		metrics.NotificationsRecorded.WithLabelValues(string(notif.Type), "suppressed").Inc()
		return 0, nil
	}

	notif.Shown = false
	id, err := n.store.InsertNotification(ctx, notif)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	notif.ID = id
	metrics.NotificationsRecorded.WithLabelValues(string(notif.Type), "recorded").Inc()

	n.enqueue(notif)
	return id, nil
}

// Pending returns unshown notifications for userID.
func (n *NotificationService) Pending(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return n.store.ListPendingNotifications(ctx, userID, limit)
}

// MarkShown marks a notification as shown.
func (n *NotificationService) MarkShown(ctx context.Context, id int64) error {
	return n.store.MarkNotificationShown(ctx, id)
}

// TodayCount returns how many notifications userID got in the logical day
// containing at.
func (n *NotificationService) TodayCount(ctx context.Context, userID string, at time.Time) (int, error) {
	return n.store.NotificationCountSince(ctx, userID, n.dayStart(at).Unix())
}

// dayStart returns the instant the logical day containing t began.
func (n *NotificationService) dayStart(t time.Time) time.Time {
	local := n.clock.logical(t)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	return midnight.Add(n.clock.Cutoff)
}

// isQuietHour returns true if the given time falls within quiet hours.
func (n *NotificationService) isQuietHour(t time.Time) bool {
	startHour, startMin := parseHHMM(n.policy.QuietStart)
	endHour, endMin := parseHHMM(n.policy.QuietEnd)

	local := t
	if n.clock.Location != nil {
		local = t.In(n.clock.Location)
	}
	timeMinutes := local.Hour()*60 + local.Minute()
	startMinutes := startHour*60 + startMin
	endMinutes := endHour*60 + endMin

	if startMinutes == endMinutes {
		return false
	}
	if startMinutes > endMinutes {
		// Wraps midnight: e.g., 23:00 – 07:00
		return timeMinutes >= startMinutes || timeMinutes < endMinutes
	}
	return timeMinutes >= startMinutes && timeMinutes < endMinutes
}

// parseHHMM parses "HH:MM" into hour and minute.
func parseHHMM(s string) (int, int) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h, m
}
