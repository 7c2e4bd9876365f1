package impl

import (
	"cmp"
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sessiongate/config"
	"sessiongate/internal/domain/entity"
	"sessiongate/internal/domain/repository"
	"sessiongate/internal/domain/service"
	"sessiongate/internal/errors"
	"sessiongate/internal/infra/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	testUserID   = "alice"
	testPassword = "secret"
	testUA       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig(maxActiveSessions int) *config.Config {
	cfg := config.NewTestConfig()
	cfg.Auth.MaxActiveSessions = maxActiveSessions
	cfg.Presence.BroadcastInterval = time.Hour

	return cfg
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// memStore backs every fake repository. The fake transaction manager
// snapshots it to emulate rollback.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*entity.User
	sessions map[int64]*entity.Session
	logs     []*entity.AccessLog
	nextID   int64

	failLogCreate error
}

type storeSnapshot struct {
	users    map[string]*entity.User
	sessions map[int64]*entity.Session
	logs     []*entity.AccessLog
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*entity.User),
		sessions: make(map[int64]*entity.Session),
	}
}

func (s *memStore) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := storeSnapshot{
		users:    make(map[string]*entity.User, len(s.users)),
		sessions: make(map[int64]*entity.Session, len(s.sessions)),
		logs:     slices.Clone(s.logs),
		nextID:   s.nextID,
	}
	for id, user := range s.users {
		copied := *user
		snap.users[id] = &copied
	}
	for id, session := range s.sessions {
		copied := *session
		snap.sessions[id] = &copied
	}

	return snap
}

func (s *memStore) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = snap.users
	s.sessions = snap.sessions
	s.logs = snap.logs
	s.nextID = snap.nextID
}

func (s *memStore) addUser(user *entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.ID] = user
}

func (s *memStore) user(id string) *entity.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil
	}
	copied := *user

	return &copied
}

func (s *memStore) session(id int64) *entity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil
	}
	copied := *session

	return &copied
}

func (s *memStore) sessionCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, session := range s.sessions {
		if session.UserID == userID {
			count++
		}
	}

	return count
}

func (s *memStore) accessLogs() []*entity.AccessLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.logs)
}

func (s *memStore) putSession(session *entity.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.ID == 0 {
		s.nextID++
		session.ID = s.nextID
	}
	copied := *session
	s.sessions[session.ID] = &copied
}

type rowLockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newRowLockManager() *rowLockManager {
	return &rowLockManager{locks: make(map[string]*sync.Mutex)}
}

func (m *rowLockManager) lockUser(id string) func() {
	m.mu.Lock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	m.mu.Unlock()

	lock.Lock()

	return lock.Unlock
}

type fakeTxManager struct {
	serial   sync.Mutex
	mu       sync.Mutex
	store    *memStore
	factory  repository.RepositoryFactory
	txStates map[context.Context]*fakeTxState

	active  atomic.Int64
	commits atomic.Int64
}

type fakeTxState struct {
	unlocks []func()
}

// Execute runs transactions one at a time and restores the store on error.
func (tm *fakeTxManager) Execute(ctx context.Context, fn func(txRepoFactory repository.RepositoryFactory) error) error {
	tm.serial.Lock()
	defer tm.serial.Unlock()

	state := &fakeTxState{}

	tm.mu.Lock()
	tm.txStates[ctx] = state
	tm.mu.Unlock()

	tm.active.Add(1)
	defer func() {
		tm.active.Add(-1)

		tm.mu.Lock()
		delete(tm.txStates, ctx)
		tm.mu.Unlock()

		// Row locks are released only after commit or rollback.
		for i := len(state.unlocks) - 1; i >= 0; i-- {
			state.unlocks[i]()
		}
	}()

	snap := tm.store.snapshot()
	if err := fn(tm.factory); err != nil {
		tm.store.restore(snap)

		return err
	}
	tm.commits.Add(1)

	return nil
}

func (tm *fakeTxManager) registerUnlock(ctx context.Context, unlockFn func()) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	state, ok := tm.txStates[ctx]
	if !ok {
		return errors.New("transaction state not found for context")
	}
	state.unlocks = append(state.unlocks, unlockFn)

	return nil
}

type fakeRepoFactory struct {
	userRepo      *fakeUserRepo
	sessionRepo   *fakeSessionRepo
	accessLogRepo *fakeAccessLogRepo
}

func (f *fakeRepoFactory) UserRepo() repository.UserRepository {
	return f.userRepo
}

func (f *fakeRepoFactory) SessionRepo() repository.SessionRepository {
	return f.sessionRepo
}

func (f *fakeRepoFactory) AccessLogRepo() repository.AccessLogRepository {
	return f.accessLogRepo
}

type fakeUserRepo struct {
	store     *memStore
	txManager *fakeTxManager
	locker    *rowLockManager
	lockCalls atomic.Int64
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*entity.User, error) {
	user := r.store.user(id)
	if user == nil {
		return nil, repository.ErrUserNotFound
	}

	return user, nil
}

func (r *fakeUserRepo) AcquireSessionMutex(ctx context.Context, id string) error {
	if r.store.user(id) == nil {
		return repository.ErrUserNotFound
	}

	unlockFn := r.locker.lockUser(id)
	if err := r.txManager.registerUnlock(ctx, unlockFn); err != nil {
		unlockFn()

		return errors.Wrap(err, "failed to register transaction unlock")
	}
	r.lockCalls.Add(1)

	return nil
}

func (r *fakeUserRepo) SetOnline(_ context.Context, id string, online bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.Online = online

	return nil
}

func (r *fakeUserRepo) ListOnline(_ context.Context) ([]*entity.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var users []*entity.User
	for _, user := range r.store.users {
		if user.Online {
			copied := *user
			users = append(users, &copied)
		}
	}
	slices.SortFunc(users, func(a, b *entity.User) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return users, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	r.store.addUser(user)

	return nil
}

type fakeSessionRepo struct {
	store *memStore

	// afterRefreshLookup runs once FindByRefreshTokenHash has read the store.
	afterRefreshLookup func()
}

func (r *fakeSessionRepo) Create(_ context.Context, session *entity.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.users[session.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	for _, existing := range r.store.sessions {
		if existing.UserID == session.UserID && existing.DeviceID == session.DeviceID {
			return errors.New("duplicate device session")
		}
	}

	r.store.nextID++
	session.ID = r.store.nextID
	copied := *session
	r.store.sessions[session.ID] = &copied

	return nil
}

func (r *fakeSessionRepo) FindByID(_ context.Context, id int64) (*entity.Session, error) {
	session := r.store.session(id)
	if session == nil {
		return nil, repository.ErrSessionNotFound
	}

	return session, nil
}

func (r *fakeSessionRepo) find(match func(*entity.Session) bool) (*entity.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, session := range r.store.sessions {
		if match(session) {
			copied := *session

			return &copied, nil
		}
	}

	return nil, repository.ErrSessionNotFound
}

func (r *fakeSessionRepo) FindByUserAndDevice(_ context.Context, userID, deviceID string) (*entity.Session, error) {
	return r.find(func(s *entity.Session) bool {
		return s.UserID == userID && s.DeviceID == deviceID
	})
}

func (r *fakeSessionRepo) FindByRefreshTokenHash(_ context.Context, tokenHash string) (*entity.Session, error) {
	session, err := r.find(func(s *entity.Session) bool {
		return s.RefreshTokenHash == tokenHash
	})
	if r.afterRefreshLookup != nil {
		r.afterRefreshLookup()
	}

	return session, err
}

func (r *fakeSessionRepo) userSessions(userID string, excludeID int64) []*entity.Session {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var sessions []*entity.Session
	for _, session := range r.store.sessions {
		if session.UserID == userID && session.ID != excludeID {
			copied := *session
			sessions = append(sessions, &copied)
		}
	}

	return sessions
}

func (r *fakeSessionRepo) ListByUserID(_ context.Context, userID string) ([]*entity.Session, error) {
	sessions := r.userSessions(userID, 0)
	slices.SortFunc(sessions, func(a, b *entity.Session) int {
		if c := b.LastAccessedAt.Compare(a.LastAccessedAt); c != 0 {
			return c
		}

		return cmp.Compare(b.ID, a.ID)
	})

	return sessions, nil
}

func (r *fakeSessionRepo) CountByUserID(_ context.Context, userID string, excludeID int64) (int64, error) {
	return int64(len(r.userSessions(userID, excludeID))), nil
}

func (r *fakeSessionRepo) FindOldestByUserID(_ context.Context, userID string, excludeID int64) (*entity.Session, error) {
	sessions := r.userSessions(userID, excludeID)
	if len(sessions) == 0 {
		return nil, repository.ErrSessionNotFound
	}

	return slices.MinFunc(sessions, func(a, b *entity.Session) int {
		if c := a.LastAccessedAt.Compare(b.LastAccessedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	}), nil
}

func (r *fakeSessionRepo) mutate(id int64, fn func(*entity.Session)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	session, ok := r.store.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	fn(session)

	return nil
}

func (r *fakeSessionRepo) UpdateDevice(_ context.Context, session *entity.Session) error {
	return r.mutate(session.ID, func(stored *entity.Session) {
		stored.DeviceType = session.DeviceType
		stored.UserAgent = session.UserAgent
		stored.IPAddress = session.IPAddress
		stored.Location = session.Location
		stored.KeepLogin = session.KeepLogin
		stored.RefreshTokenHash = session.RefreshTokenHash
		stored.LastAccessedAt = session.LastAccessedAt
	})
}

func (r *fakeSessionRepo) UpdateRefreshToken(_ context.Context, id int64, oldHash, newHash string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	session, ok := r.store.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	if session.RefreshTokenHash != oldHash {
		return repository.ErrRefreshTokenRotated
	}
	session.RefreshTokenHash = newHash

	return nil
}

func (r *fakeSessionRepo) TouchLastAccessed(_ context.Context, id int64, at time.Time) error {
	return r.mutate(id, func(stored *entity.Session) {
		stored.LastAccessedAt = at
	})
}

func (r *fakeSessionRepo) DeleteByID(_ context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.sessions[id]; !ok {
		return repository.ErrSessionNotFound
	}
	delete(r.store.sessions, id)

	return nil
}

func (r *fakeSessionRepo) deleteWhere(match func(*entity.Session) bool) int64 {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var deleted int64
	for id, session := range r.store.sessions {
		if match(session) {
			delete(r.store.sessions, id)
			deleted++
		}
	}

	return deleted
}

func (r *fakeSessionRepo) DeleteByUserID(_ context.Context, userID string) (int64, error) {
	return r.deleteWhere(func(s *entity.Session) bool { return s.UserID == userID }), nil
}

func (r *fakeSessionRepo) DeleteOthers(_ context.Context, userID string, keepID int64) (int64, error) {
	return r.deleteWhere(func(s *entity.Session) bool { return s.UserID == userID && s.ID != keepID }), nil
}

func (r *fakeSessionRepo) DeleteInactiveSince(_ context.Context, cutoff time.Time) (int64, error) {
	return r.deleteWhere(func(s *entity.Session) bool { return s.LastAccessedAt.Before(cutoff) }), nil
}

type fakeAccessLogRepo struct {
	store *memStore
}

func (r *fakeAccessLogRepo) Create(_ context.Context, log *entity.AccessLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.store.failLogCreate != nil {
		return r.store.failLogCreate
	}
	copied := *log
	r.store.logs = append(r.store.logs, &copied)

	return nil
}

func (r *fakeAccessLogRepo) ListByUserID(_ context.Context, userID string, limit int) ([]*entity.AccessLog, error) {
	var logs []*entity.AccessLog
	for _, log := range slices.Backward(r.store.accessLogs()) {
		if log.UserID == userID && (limit <= 0 || len(logs) < limit) {
			logs = append(logs, log)
		}
	}

	return logs, nil
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	return "hashed-" + password, nil
}

func (fakeHasher) Check(password, hash string) bool {
	return hash == "hashed-"+password
}

type closeCall struct {
	op        string
	userID    string
	sessionID int64
	reason    string
	// rowExisted is whether the targeted session row was still stored when the close ran.
	rowExisted bool
}

type sendCall struct {
	userID          string
	msg             any
	exceptSessionID int64
}

// fakeRegistry records calls and checks them against the store.
type fakeRegistry struct {
	mu         sync.Mutex
	store      *memStore
	closes     []closeCall
	sends      []sendCall
	broadcasts []any
	online     map[string]bool
}

func newFakeRegistry(store *memStore) *fakeRegistry {
	return &fakeRegistry{store: store, online: make(map[string]bool)}
}

func (r *fakeRegistry) recordClose(op, userID string, sessionID int64, reason string) int {
	var existed bool
	if sessionID > 0 {
		existed = r.store.session(sessionID) != nil
	} else {
		existed = r.store.sessionCount(userID) > 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.closes = append(r.closes, closeCall{op: op, userID: userID, sessionID: sessionID, reason: reason, rowExisted: existed})

	return 1
}

func (r *fakeRegistry) CloseOne(userID string, sessionID int64, reason string) int {
	return r.recordClose("one", userID, sessionID, reason)
}

func (r *fakeRegistry) CloseOthers(userID string, keepSessionID int64, reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closes = append(r.closes, closeCall{op: "others", userID: userID, sessionID: keepSessionID, reason: reason})

	return 1
}

func (r *fakeRegistry) CloseAll(userID string, reason string) int {
	return r.recordClose("all", userID, 0, reason)
}

func (r *fakeRegistry) SendToUser(userID string, msg any, exceptSessionID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sends = append(r.sends, sendCall{userID: userID, msg: msg, exceptSessionID: exceptSessionID})

	return 1
}

func (r *fakeRegistry) Broadcast(msg any) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.broadcasts = append(r.broadcasts, msg)

	return len(r.online)
}

func (r *fakeRegistry) OnlineUserCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.online)
}

func (r *fakeRegistry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.online[userID]
}

func (r *fakeRegistry) setOnline(userID string, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if online {
		r.online[userID] = true
	} else {
		delete(r.online, userID)
	}
}

func (r *fakeRegistry) closeCalls() []closeCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.closes)
}

func (r *fakeRegistry) sendCalls() []sendCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.sends)
}

func (r *fakeRegistry) broadcastCalls() []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.broadcasts)
}

// recordingPublisher remembers each login event together with the number of
// transactions open when it was published.
type recordingPublisher struct {
	mu        sync.Mutex
	txManager *fakeTxManager
	events    []entity.LoginEvent
	openTx    []int64
	changes   []entity.PresenceChange
}

func (p *recordingPublisher) PublishLoginEvent(_ context.Context, event entity.LoginEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)
	p.openTx = append(p.openTx, p.txManager.active.Load())

	return nil
}

func (p *recordingPublisher) PublishPresenceChange(_ context.Context, change entity.PresenceChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.changes = append(p.changes, change)

	return nil
}

func (p *recordingPublisher) Close() error {
	return nil
}

func (p *recordingPublisher) loginEvents() []entity.LoginEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.events)
}

type testEnv struct {
	cfg         *config.Config
	clock       *fakeClock
	store       *memStore
	txManager   *fakeTxManager
	userRepo    *fakeUserRepo
	sessionRepo *fakeSessionRepo
	registry    *fakeRegistry
	publisher   *recordingPublisher
	tokens      service.TokenService

	auth     *authService
	sessions *sessionService
	gate     *authGate
}

func newTestEnv(t *testing.T, maxActiveSessions int) *testEnv {
	t.Helper()

	cfg := newTestConfig(maxActiveSessions)
	tokens, err := auth.NewJWTService(cfg)
	require.NoError(t, err)

	store := newMemStore()
	store.addUser(&entity.User{
		ID:           testUserID,
		Name:         "Alice",
		PasswordHash: "hashed-" + testPassword,
		Role:         entity.RoleUser,
	})

	txManager := &fakeTxManager{store: store, txStates: make(map[context.Context]*fakeTxState)}
	userRepo := &fakeUserRepo{store: store, txManager: txManager, locker: newRowLockManager()}
	sessionRepo := &fakeSessionRepo{store: store}
	accessLogRepo := &fakeAccessLogRepo{store: store}
	txManager.factory = &fakeRepoFactory{
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		accessLogRepo: accessLogRepo,
	}

	registry := newFakeRegistry(store)
	publisher := &recordingPublisher{txManager: txManager}
	clock := newFakeClock()
	logger := newDiscardLogger()

	authSrv := NewAuthService(AuthServiceParams{
		TxManager:    txManager,
		UserRepo:     userRepo,
		SessionRepo:  sessionRepo,
		Hasher:       fakeHasher{},
		TokenService: tokens,
		Publisher:    publisher,
		Registry:     registry,
		Config:       cfg,
		Logger:       logger,
	}).(*authService)
	authSrv.now = clock.Now

	gate := NewAuthGate(AuthGateParams{
		SessionRepo:  sessionRepo,
		TokenService: tokens,
		Logger:       logger,
	}).(*authGate)
	gate.now = clock.Now

	sessionSrv := NewSessionService(SessionServiceParams{
		TxManager:     txManager,
		UserRepo:      userRepo,
		SessionRepo:   sessionRepo,
		AccessLogRepo: accessLogRepo,
		Registry:      registry,
		Logger:        logger,
	}).(*sessionService)

	return &testEnv{
		cfg:         cfg,
		clock:       clock,
		store:       store,
		txManager:   txManager,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		registry:    registry,
		publisher:   publisher,
		tokens:      tokens,
		auth:        authSrv,
		sessions:    sessionSrv,
		gate:        gate,
	}
}

// signAccessToken mints an access token with arbitrary claims using the test secret.
func signAccessToken(t *testing.T, cfg *config.Config, userID string, sessionID int64, expiresAt time.Time) string {
	t.Helper()

	claims := &service.Claims{
		SessionID: sessionID,
		Type:      service.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(expiresAt.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.SecretKey.Access))
	require.NoError(t, err)

	return signed
}
