package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/models"
)

// memOfferStore is an in-memory OfferStore with the same version guard as
// the Postgres repository.
type memOfferStore struct {
	mu     sync.Mutex
	offers map[string]*models.RideOffer
	convs  *memConversationStore

	// failAccept, when set, is returned by AcceptOffer.
	failAccept error
}

func newMemOfferStore(convs *memConversationStore) *memOfferStore {
	return &memOfferStore{offers: map[string]*models.RideOffer{}, convs: convs}
}

func (m *memOfferStore) put(o *models.RideOffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[o.ID] = o.Clone()
}

func (m *memOfferStore) get(id string) *models.RideOffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.offers[id]; ok {
		return o.Clone()
	}
	return nil
}

func (m *memOfferStore) CreateOffer(_ context.Context, o *models.RideOffer) error {
	m.put(o)
	return nil
}

func (m *memOfferStore) GetOffer(_ context.Context, id string) (*models.RideOffer, error) {
	if o := m.get(id); o != nil {
		return o, nil
	}
	return nil, apperrors.New(apperrors.CodeNotFound, "ride offer not found")
}

func (m *memOfferStore) ListOpenOffers(_ context.Context, now time.Time, exclude string, limit int) ([]models.RideOffer, error) {
	return m.filter(limit, func(o *models.RideOffer) bool {
		return o.State == models.OfferOpen && o.ExpiresAt.After(now) && o.PosterDriverID != exclude
	}), nil
}

func (m *memOfferStore) ListExpiredOpen(_ context.Context, now time.Time, limit int) ([]models.RideOffer, error) {
	return m.filter(limit, func(o *models.RideOffer) bool {
		return o.State == models.OfferOpen && !o.ExpiresAt.After(now)
	}), nil
}

func (m *memOfferStore) ListStalePending(_ context.Context, cutoff time.Time, limit int) ([]models.RideOffer, error) {
	return m.filter(limit, func(o *models.RideOffer) bool {
		return o.State == models.OfferLockedPendingAccept && o.PendingSince != nil && o.PendingSince.Before(cutoff)
	}), nil
}

func (m *memOfferStore) filter(limit int, keep func(*models.RideOffer) bool) []models.RideOffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.RideOffer{}
	for _, o := range m.offers {
		if keep(o) {
			out = append(out, *o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memOfferStore) UpdateOfferGuarded(_ context.Context, o *models.RideOffer, expected int64) (*models.RideOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guarded(o, expected)
}

func (m *memOfferStore) guarded(o *models.RideOffer, expected int64) (*models.RideOffer, error) {
	cur, ok := m.offers[o.ID]
	if !ok || cur.Version != expected {
		return nil, ErrVersionConflict
	}
	next := o.Clone()
	next.Version = expected + 1
	m.offers[o.ID] = next
	return next.Clone(), nil
}

func (m *memOfferStore) AcceptOffer(_ context.Context, o *models.RideOffer, expected int64, conv *models.Conversation) (*models.RideOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAccept != nil {
		return nil, m.failAccept
	}
	updated, err := m.guarded(o, expected)
	if err != nil {
		return nil, err
	}
	if m.convs != nil {
		m.convs.add(conv)
	}
	return updated, nil
}

// racingOfferStore commits a competing write once, just before or just
// after the next guarded update.
type racingOfferStore struct {
	*memOfferStore
	beforeUpdate func()
	afterUpdate  func()
}

func (r *racingOfferStore) UpdateOfferGuarded(ctx context.Context, o *models.RideOffer, expected int64) (*models.RideOffer, error) {
	if hook := r.beforeUpdate; hook != nil {
		r.beforeUpdate = nil
		hook()
	}
	updated, err := r.memOfferStore.UpdateOfferGuarded(ctx, o, expected)
	if hook := r.afterUpdate; hook != nil && err == nil {
		r.afterUpdate = nil
		hook()
	}
	return updated, err
}

// memLedger mirrors the hold semantics of WalletLedgerService.
type memLedger struct {
	mu        sync.Mutex
	wallets   map[string]*models.WalletAccount
	byDriver  map[string]string
	holds     map[string]*models.WalletHold
	movements []models.LedgerMovement

	// lockErr, when set, is returned by Lock without side effects.
	lockErr    error
	releaseErr error
}

func newMemLedger() *memLedger {
	return &memLedger{
		wallets:  map[string]*models.WalletAccount{},
		byDriver: map[string]string{},
		holds:    map[string]*models.WalletHold{},
	}
}

func (l *memLedger) open(driverID string, available int64) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := "wallet-" + driverID
	l.wallets[id] = &models.WalletAccount{ID: id, DriverID: driverID, AvailableBalance: available}
	l.byDriver[driverID] = id
	return id
}

func (l *memLedger) balance(walletID string) (int64, int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.wallets[walletID]
	return w.AvailableBalance, w.LockedBalance
}

func (l *memLedger) holdStatus(walletID, reference string) models.HoldStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.holds[walletID+"/"+reference]; ok {
		return h.Status
	}
	return ""
}

func (l *memLedger) WalletForDriver(_ context.Context, driverID string) (*models.WalletAccount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.byDriver[driverID]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "wallet not found")
	}
	cp := *l.wallets[id]
	return &cp, nil
}

func (l *memLedger) Balance(_ context.Context, walletID string) (*models.WalletBalance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[walletID]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "wallet not found")
	}
	return &models.WalletBalance{WalletID: w.ID, Available: w.AvailableBalance, Locked: w.LockedBalance}, nil
}

func (l *memLedger) Lock(_ context.Context, walletID string, amount int64, reference string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lockErr != nil {
		return l.lockErr
	}
	w, ok := l.wallets[walletID]
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, "wallet not found")
	}
	key := walletID + "/" + reference
	if h, ok := l.holds[key]; ok {
		switch h.Status {
		case models.HoldHeld:
			return nil
		case models.HoldCaptured:
			return apperrors.New(apperrors.CodeStateConflict, "hold already captured")
		}
	}
	if w.AvailableBalance < amount {
		return apperrors.InsufficientFunds(amount, w.AvailableBalance)
	}
	w.AvailableBalance -= amount
	w.LockedBalance += amount
	l.holds[key] = &models.WalletHold{WalletID: walletID, Reference: reference, Amount: amount, Status: models.HoldHeld}
	l.movements = append(l.movements, models.LedgerMovement{WalletID: walletID, Kind: models.MovementLock, Amount: amount, Reference: reference})
	return nil
}

func (l *memLedger) Release(_ context.Context, walletID, reference string) error {
	return l.settle(walletID, reference, models.HoldReleased)
}

func (l *memLedger) Capture(_ context.Context, walletID, reference string) error {
	return l.settle(walletID, reference, models.HoldCaptured)
}

func (l *memLedger) settle(walletID, reference string, target models.HoldStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if target == models.HoldReleased && l.releaseErr != nil {
		return l.releaseErr
	}
	h, ok := l.holds[walletID+"/"+reference]
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, "hold not found")
	}
	if h.Status == target {
		return nil
	}
	if h.Status != models.HoldHeld {
		return apperrors.New(apperrors.CodeStateConflict, "hold already settled")
	}
	w := l.wallets[walletID]
	w.LockedBalance -= h.Amount
	kind := models.MovementCapture
	if target == models.HoldReleased {
		w.AvailableBalance += h.Amount
		kind = models.MovementRelease
	}
	h.Status = target
	l.movements = append(l.movements, models.LedgerMovement{WalletID: walletID, Kind: kind, Amount: h.Amount, Reference: reference})
	return nil
}

// memConversationStore serializes appends per conversation like the row lock does.
type memConversationStore struct {
	mu       sync.Mutex
	convs    map[string]*models.Conversation
	messages map[string][]models.Message
	cursors  map[string]map[string]int64

	appendErr error
}

func newMemConversationStore() *memConversationStore {
	return &memConversationStore{
		convs:    map[string]*models.Conversation{},
		messages: map[string][]models.Message{},
		cursors:  map[string]map[string]int64{},
	}
}

func (c *memConversationStore) add(conv *models.Conversation) {
	cp := *conv
	c.convs[conv.ID] = &cp
}

func (c *memConversationStore) seed(conv *models.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.add(conv)
}

func (c *memConversationStore) byOffer(offerID string) *models.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conv := range c.convs {
		if conv.OfferID == offerID {
			cp := *conv
			return &cp
		}
	}
	return nil
}

func (c *memConversationStore) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.convs[id]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "conversation not found")
	}
	cp := *conv
	return &cp, nil
}

func (c *memConversationStore) GetConversationByOffer(_ context.Context, offerID string) (*models.Conversation, error) {
	if conv := c.byOffer(offerID); conv != nil {
		return conv, nil
	}
	return nil, apperrors.New(apperrors.CodeNotFound, "conversation not found")
}

func (c *memConversationStore) AppendMessage(_ context.Context, msg *models.Message) (*models.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.appendErr != nil {
		return nil, c.appendErr
	}
	conv, ok := c.convs[msg.ConversationID]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "conversation not found")
	}
	stored := *msg
	conv.LastSeq++
	stored.Seq = conv.LastSeq
	c.messages[conv.ID] = append(c.messages[conv.ID], stored)
	return &stored, nil
}

func (c *memConversationStore) ListMessages(_ context.Context, id string, afterSeq int64, limit int) ([]models.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []models.Message{}
	for _, m := range c.messages[id] {
		if m.Seq > afterSeq {
			out = append(out, m)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *memConversationStore) AdvanceReadCursor(_ context.Context, id, reader string, upTo int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursors[id] == nil {
		c.cursors[id] = map[string]int64{}
	}
	if upTo > c.cursors[id][reader] {
		c.cursors[id][reader] = upTo
	}
	return c.cursors[id][reader], nil
}

func (c *memConversationStore) ReadCursors(_ context.Context, id string) (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]int64{}
	for k, v := range c.cursors[id] {
		out[k] = v
	}
	return out, nil
}

func (c *memConversationStore) DetailsSenders(_ context.Context, id string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, m := range c.messages[id] {
		if m.Type == models.MessageDriverDetails && !seen[m.SenderID] {
			seen[m.SenderID] = true
			out = append(out, m.SenderID)
		}
	}
	return out, nil
}

// MockNotifier records notifications through testify's mock.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// recordingNotifier keeps every notification it receives.
type recordingNotifier struct {
	mu    sync.Mutex
	notes []models.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return nil
}

func (r *recordingNotifier) kinds() []models.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.NotificationKind, 0, len(r.notes))
	for _, n := range r.notes {
		out = append(out, n.Kind)
	}
	return out
}

// MockBroadcaster records published channel events.
type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Publish(ctx context.Context, ev models.ChannelEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []models.ChannelEvent
	err    error
}

func (r *recordingBroadcaster) Publish(_ context.Context, ev models.ChannelEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingBroadcaster) snapshot() []models.ChannelEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ChannelEvent(nil), r.events...)
}

// MockSettler records lifecycle settlement calls.
type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) OnRideCompleted(ctx context.Context, offer *models.RideOffer) error {
	args := m.Called(ctx, offer.ID)
	return args.Error(0)
}

func (m *MockSettler) OnRideCancelled(ctx context.Context, offer *models.RideOffer) error {
	args := m.Called(ctx, offer.ID)
	return args.Error(0)
}
