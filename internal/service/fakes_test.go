package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"socialnet/internal/cache"
	"socialnet/internal/model"
	"socialnet/internal/queue"
	"socialnet/internal/repository"
	"socialnet/internal/thread"
)

// memStore is an in-memory backend shared by the fake repositories below.
// It keeps the same invariants the real stores keep: ordered id lists on
// posts and comments, set semantics for likes and follow edges.
type memStore struct {
	mu       sync.Mutex
	clock    time.Time
	users    map[string]*model.User
	follows  map[string]map[string]bool // follower -> followee
	posts    map[string]*model.Post
	comments map[string]*model.Comment
}

func newMemStore() *memStore {
	return &memStore{
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		users:    make(map[string]*model.User),
		follows:  make(map[string]map[string]bool),
		posts:    make(map[string]*model.Post),
		comments: make(map[string]*model.Comment),
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) store() *repository.Store {
	return &repository.Store{
		Users:    memUsers{s},
		Follows:  memFollows{s},
		Posts:    memPosts{s},
		Comments: memComments{s},
	}
}

func clone(ids []string) []string {
	return append([]string{}, ids...)
}

func toggle(set []string, id string) []string {
	for i, v := range set {
		if v == id {
			return append(clone(set[:i]), set[i+1:]...)
		}
	}
	return append(clone(set), id)
}

func without(list []string, id string) []string {
	out := []string{}
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// users

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return model.ErrEmailExists
		}
	}
	u.CreatedAt = r.s.tick()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	cp := *u
	cp.Following = []string{}
	cp.Followers = []string{}
	for followee := range r.s.follows[id] {
		cp.Following = append(cp.Following, followee)
	}
	for follower, edges := range r.s.follows {
		if edges[id] {
			cp.Followers = append(cp.Followers, follower)
		}
	}
	sort.Strings(cp.Following)
	sort.Strings(cp.Followers)
	return &cp, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (r memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r memUsers) GetSummaries(_ context.Context, ids []string) (map[string]model.UserSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[string]model.UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out[id] = u.Summary()
		}
	}
	return out, nil
}

func (r memUsers) List(_ context.Context) ([]model.UserSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.UserSummary{}
	for _, u := range r.s.users {
		out = append(out, u.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memUsers) UpdateProfile(ctx context.Context, id, name string, bio *string) (*model.User, error) {
	r.s.mu.Lock()
	u, ok := r.s.users[id]
	if ok {
		u.Name = name
		u.Bio = bio
	}
	r.s.mu.Unlock()
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}

func (r memUsers) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return model.ErrUserNotFound
	}
	delete(r.s.users, id)
	delete(r.s.follows, id)
	for _, edges := range r.s.follows {
		delete(edges, id)
	}
	return nil
}

func (r memUsers) WhoToFollow(ctx context.Context, userID string) ([]model.UserSummary, error) {
	all, _ := r.List(ctx)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.UserSummary{}
	for _, u := range all {
		if u.ID != userID && !r.s.follows[userID][u.ID] {
			out = append(out, u)
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// follows

type memFollows struct{ s *memStore }

func (r memFollows) Follow(_ context.Context, followerID, followeeID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[followerID]; !ok {
		return false, model.ErrUserNotFound
	}
	edges, ok := r.s.follows[followerID]
	if !ok {
		edges = make(map[string]bool)
		r.s.follows[followerID] = edges
	}
	if edges[followeeID] {
		return false, nil
	}
	edges[followeeID] = true
	return true, nil
}

func (r memFollows) Unfollow(_ context.Context, followerID, followeeID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !r.s.follows[followerID][followeeID] {
		return false, nil
	}
	delete(r.s.follows[followerID], followeeID)
	return true, nil
}

func (r memFollows) GetFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	u, err := memUsers(r).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Followers, nil
}

func (r memFollows) GetFolloweeIDs(ctx context.Context, userID string) ([]string, error) {
	u, err := memUsers(r).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Following, nil
}

func (r memFollows) GetFollowers(ctx context.Context, userID string) ([]model.UserSummary, error) {
	ids, err := r.GetFollowerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.summaries(ctx, ids)
}

func (r memFollows) GetFollowing(ctx context.Context, userID string) ([]model.UserSummary, error) {
	ids, err := r.GetFolloweeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.summaries(ctx, ids)
}

func (r memFollows) summaries(ctx context.Context, ids []string) ([]model.UserSummary, error) {
	byID, _ := memUsers(r).GetSummaries(ctx, ids)
	out := []model.UserSummary{}
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// posts

type memPosts struct{ s *memStore }

func copyPost(p *model.Post) *model.Post {
	cp := *p
	cp.Likes = clone(p.Likes)
	cp.CommentIDs = clone(p.CommentIDs)
	return &cp
}

func (r memPosts) Create(_ context.Context, p *model.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.CreatedAt = r.s.tick()
	p.UpdatedAt = p.CreatedAt
	p.Likes = []string{}
	p.CommentIDs = []string{}
	r.s.posts[p.ID] = copyPost(p)
	return nil
}

func (r memPosts) GetByID(_ context.Context, id string) (*model.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, model.ErrPostNotFound
	}
	return copyPost(p), nil
}

func (r memPosts) GetByIDs(_ context.Context, ids []string) ([]model.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Post{}
	for _, id := range ids {
		if p, ok := r.s.posts[id]; ok {
			out = append(out, *copyPost(p))
		}
	}
	return out, nil
}

func (r memPosts) Update(_ context.Context, id, content string, public bool) (*model.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, model.ErrPostNotFound
	}
	p.Content = content
	p.Public = public
	return copyPost(p), nil
}

func (r memPosts) ToggleLike(_ context.Context, id, userID string) (*model.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, model.ErrPostNotFound
	}
	p.Likes = toggle(p.Likes, userID)
	return copyPost(p), nil
}

func (r memPosts) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.posts[id]; !ok {
		return model.ErrPostNotFound
	}
	delete(r.s.posts, id)
	for cid, c := range r.s.comments {
		if c.PostID == id {
			delete(r.s.comments, cid)
		}
	}
	return nil
}

func (r memPosts) ListByOwner(_ context.Context, ownerID, viewerID string, offset, limit int) ([]model.Post, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []model.Post
	for _, p := range r.s.posts {
		if p.OwnerID == ownerID && p.VisibleTo(viewerID) {
			all = append(all, *copyPost(p))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= total {
		return []model.Post{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r memPosts) GetRecentPostsByUser(ctx context.Context, userID string, limit int) ([]cache.PostScore, error) {
	return r.GetFeedPostIDs(ctx, []string{userID}, limit)
}

func (r memPosts) GetFeedPostIDs(_ context.Context, ownerIDs []string, limit int) ([]cache.PostScore, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	owners := make(map[string]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[id] = true
	}
	var out []cache.PostScore
	for _, p := range r.s.posts {
		if owners[p.OwnerID] {
			out = append(out, cache.PostScore{PostID: p.ID, Timestamp: p.CreatedAt.UnixMilli()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// comments

type memComments struct{ s *memStore }

func copyComment(c *model.Comment) *model.Comment {
	cp := *c
	cp.Likes = clone(c.Likes)
	cp.ReplyIDs = clone(c.ReplyIDs)
	return &cp
}

func (r memComments) CreateComment(_ context.Context, c *model.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[c.PostID]
	if !ok {
		return model.ErrPostNotFound
	}
	c.CreatedAt = r.s.tick()
	c.Likes = []string{}
	c.ReplyIDs = []string{}
	r.s.comments[c.ID] = copyComment(c)
	p.CommentIDs = append(p.CommentIDs, c.ID)
	return nil
}

func (r memComments) CreateReply(_ context.Context, c *model.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	parent, ok := r.s.comments[*c.ParentCommentID]
	if !ok || parent.IsReply() {
		return model.ErrCommentNotFound
	}
	c.CreatedAt = r.s.tick()
	c.Likes = []string{}
	c.ReplyIDs = nil
	r.s.comments[c.ID] = copyComment(c)
	parent.ReplyIDs = append(parent.ReplyIDs, c.ID)
	return nil
}

func (r memComments) GetByID(_ context.Context, id string) (*model.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.comments[id]
	if !ok {
		return nil, model.ErrCommentNotFound
	}
	return copyComment(c), nil
}

func (r memComments) ListByPost(ctx context.Context, postID string) ([]model.Comment, error) {
	return r.ListByPosts(ctx, []string{postID})
}

func (r memComments) ListByPosts(_ context.Context, postIDs []string) ([]model.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[string]bool, len(postIDs))
	for _, id := range postIDs {
		want[id] = true
	}
	out := []model.Comment{}
	for _, c := range r.s.comments {
		if want[c.PostID] {
			out = append(out, *copyComment(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memComments) UpdateContent(_ context.Context, id, content string) (*model.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.comments[id]
	if !ok {
		return nil, model.ErrCommentNotFound
	}
	c.Content = content
	return copyComment(c), nil
}

func (r memComments) ToggleLike(_ context.Context, id, userID string) (*model.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.comments[id]
	if !ok {
		return nil, model.ErrCommentNotFound
	}
	c.Likes = toggle(c.Likes, userID)
	return copyComment(c), nil
}

func (r memComments) DeleteComment(_ context.Context, c *model.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.comments[c.ID]; !ok {
		return model.ErrCommentNotFound
	}
	delete(r.s.comments, c.ID)
	for id, other := range r.s.comments {
		if other.IsReply() && *other.ParentCommentID == c.ID {
			delete(r.s.comments, id)
		}
	}
	if p, ok := r.s.posts[c.PostID]; ok {
		p.CommentIDs = without(p.CommentIDs, c.ID)
	}
	return nil
}

func (r memComments) DeleteReply(_ context.Context, reply *model.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.comments[reply.ID]; !ok {
		return model.ErrCommentNotFound
	}
	delete(r.s.comments, reply.ID)
	if parent, ok := r.s.comments[*reply.ParentCommentID]; ok {
		parent.ReplyIDs = without(parent.ReplyIDs, reply.ID)
	}
	return nil
}

// -----------------------------------------------------------------------------
// collaborators

type notification struct {
	ownerID   string
	eventName string
	action    string
	view      model.PostView
}

type recordingNotifier struct {
	calls []notification
}

func (n *recordingNotifier) Notify(_ context.Context, ownerID, eventName, action string, view model.PostView) {
	n.calls = append(n.calls, notification{ownerID, eventName, action, view})
}

func (n *recordingNotifier) last() notification {
	if len(n.calls) == 0 {
		return notification{}
	}
	return n.calls[len(n.calls)-1]
}

type recordingPublisher struct {
	events []queue.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event queue.Event) (string, error) {
	p.events = append(p.events, event)
	return "0-1", nil
}

func (p *recordingPublisher) types() []string {
	out := []string{}
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// memFeedCache is an unbounded FeedCache.
type memFeedCache struct {
	feeds map[string]map[string]int64
}

func newMemFeedCache() *memFeedCache {
	return &memFeedCache{feeds: make(map[string]map[string]int64)}
}

func (m *memFeedCache) AddPost(_ context.Context, userID, postID string, ts int64) error {
	if m.feeds[userID] == nil {
		m.feeds[userID] = make(map[string]int64)
	}
	m.feeds[userID][postID] = ts
	return nil
}

func (m *memFeedCache) RemovePost(_ context.Context, userID, postID string) error {
	delete(m.feeds[userID], postID)
	return nil
}

func (m *memFeedCache) GetFeed(_ context.Context, userID string, cursor *cache.FeedCursor, limit int) ([]string, []float64, error) {
	type entry struct {
		id    string
		score float64
	}
	var entries []entry
	for id, ts := range m.feeds[userID] {
		if cursor == nil || cursor.Follows(float64(ts), id) {
			entries = append(entries, entry{id, float64(ts)})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].id > entries[j].id
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	ids := make([]string, 0, len(entries))
	scores := make([]float64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.id)
		scores = append(scores, e.score)
	}
	return ids, scores, nil
}

func (m *memFeedCache) WarmCache(ctx context.Context, userID string, posts []cache.PostScore) error {
	for _, p := range posts {
		_ = m.AddPost(ctx, userID, p.PostID, p.Timestamp)
	}
	return nil
}

func (m *memFeedCache) Exists(_ context.Context, userID string) (bool, error) {
	_, ok := m.feeds[userID]
	return ok, nil
}

// -----------------------------------------------------------------------------
// fixture

type fixture struct {
	mem       *memStore
	store     *repository.Store
	notifier  *recordingNotifier
	publisher *recordingPublisher
	feedCache *memFeedCache

	users    *UserService
	follows  *FollowService
	posts    *PostService
	comments *CommentService
	feed     *FeedService
}

func newFixture() *fixture {
	mem := newMemStore()
	store := mem.store()
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}
	feedCache := newMemFeedCache()
	log := zerolog.Nop()
	threads := thread.NewReconstructor(store.Posts, store.Comments, store.Users, log)

	return &fixture{
		mem:       mem,
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		feedCache: feedCache,
		users:     NewUserService(store.Users, store.Follows, publisher, log),
		follows:   NewFollowService(store.Follows, store.Users, publisher, log),
		posts:     NewPostService(store.Posts, threads, notifier, publisher, log),
		comments:  NewCommentService(store.Comments, threads, notifier, publisher, log),
		feed:      NewFeedService(feedCache, store.Posts, store.Follows, threads, log),
	}
}

// user inserts a user directly, bypassing password hashing.
func (f *fixture) user(id, name string) {
	_ = f.store.Users.Create(context.Background(), &model.User{ID: id, Name: name, Email: id + "@example.com"})
}
