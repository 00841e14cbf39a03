package database

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"athemaria/internal/models"
	"athemaria/internal/utils"
)

// MemoryDB is an in-process DBAdapter. It keeps the same query semantics as
// MongoDB (ordering, not-found errors, upsert keys) and hands out copies so
// callers never share state with the store.
type MemoryDB struct {
	mu sync.RWMutex

	stories        map[string]*models.Story
	profiles       map[string]*models.UserProfile
	credentials    map[string]*models.Credential // by id
	emailToID      map[string]string
	passwordResets map[string]*models.PasswordReset
	comments       map[string]*models.Comment
	ratings        map[string]*models.Rating // by storyID + "|" + userID
	progress       map[string]*models.ReadingProgress
	reports        map[string]*models.Report
	adminActions   []*models.AdminAction
	notifications  map[string]*models.Notification
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		stories:        make(map[string]*models.Story),
		profiles:       make(map[string]*models.UserProfile),
		credentials:    make(map[string]*models.Credential),
		emailToID:      make(map[string]string),
		passwordResets: make(map[string]*models.PasswordReset),
		comments:       make(map[string]*models.Comment),
		ratings:        make(map[string]*models.Rating),
		progress:       make(map[string]*models.ReadingProgress),
		reports:        make(map[string]*models.Report),
		notifications:  make(map[string]*models.Notification),
	}
}

func (m *MemoryDB) Close(ctx context.Context) error { return nil }

// Stories

func (m *MemoryDB) SaveStory(ctx context.Context, story *models.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := story.Clone()
	if stored.Genres == nil {
		stored.Genres = []string{}
	}
	if stored.Tags == nil {
		stored.Tags = []string{}
	}
	if existing, ok := m.stories[story.ID]; ok {
		stored.ReadCount = existing.ReadCount
	}
	m.stories[story.ID] = stored
	return nil
}

func (m *MemoryDB) GetStory(ctx context.Context, id string) (*models.Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stories[id]
	if !ok {
		return nil, utils.NewStoryNotFoundError(id)
	}
	return s.Clone(), nil
}

func (m *MemoryDB) DeleteStory(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stories[id]; !ok {
		return utils.NewStoryNotFoundError(id)
	}
	delete(m.stories, id)
	return nil
}

func (m *MemoryDB) GetStoriesByAuthor(ctx context.Context, authorID string) ([]*models.Story, error) {
	stories := m.filterStories(func(s *models.Story) bool { return s.AuthorID == authorID })
	sort.SliceStable(stories, func(i, j int) bool { return stories[i].UpdatedAt.After(stories[j].UpdatedAt) })
	return stories, nil
}

func (m *MemoryDB) GetStoriesByStatus(ctx context.Context, status models.StoryStatus, limit int) ([]*models.Story, error) {
	stories := m.filterStories(func(s *models.Story) bool { return s.Status == status })
	sort.SliceStable(stories, func(i, j int) bool { return stories[i].CreatedAt.After(stories[j].CreatedAt) })
	if limit > 0 && len(stories) > limit {
		stories = stories[:limit]
	}
	return stories, nil
}

func (m *MemoryDB) GetStoriesByIDs(ctx context.Context, ids []string) ([]*models.Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stories := make([]*models.Story, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.stories[id]; ok {
			stories = append(stories, s.Clone())
		}
	}
	return stories, nil
}

func (m *MemoryDB) UpdateStoryStatus(ctx context.Context, id string, status models.StoryStatus, updatedAt time.Time) error {
	return m.mutateStory(id, func(s *models.Story) {
		s.Status = status
		s.UpdatedAt = updatedAt
	})
}

func (m *MemoryDB) MarkStoryDeleted(ctx context.Context, id string, deletedAt string, byAdmin bool, updatedAt time.Time) error {
	return m.mutateStory(id, func(s *models.Story) {
		s.Deleted = true
		s.DeletedAt = &deletedAt
		s.RemovedByAdmin = byAdmin
		s.UpdatedAt = updatedAt
	})
}

func (m *MemoryDB) RestoreStory(ctx context.Context, id string, updatedAt time.Time) error {
	return m.mutateStory(id, func(s *models.Story) {
		s.Deleted = false
		s.DeletedAt = nil
		s.RemovedByAdmin = false
		s.UpdatedAt = updatedAt
	})
}

func (m *MemoryDB) IncrementReadCount(ctx context.Context, id string) error {
	return m.mutateStory(id, func(s *models.Story) { s.ReadCount++ })
}

func (m *MemoryDB) FindPurgeableStories(ctx context.Context, cutoff string) ([]*models.Story, error) {
	return m.filterStories(func(s *models.Story) bool {
		return s.Deleted && s.DeletedAt != nil && *s.DeletedAt < cutoff
	}), nil
}

func (m *MemoryDB) filterStories(keep func(*models.Story) bool) []*models.Story {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stories := make([]*models.Story, 0)
	for _, s := range m.stories {
		if keep(s) {
			stories = append(stories, s.Clone())
		}
	}
	// map iteration is random; fall back to id order for stable results
	sort.Slice(stories, func(i, j int) bool { return stories[i].ID < stories[j].ID })
	return stories
}

func (m *MemoryDB) mutateStory(id string, mutate func(*models.Story)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stories[id]
	if !ok {
		return utils.NewStoryNotFoundError(id)
	}
	mutate(s)
	return nil
}

// Profiles

func cloneProfile(p *models.UserProfile) *models.UserProfile {
	c := *p
	c.SocialLinks = maps.Clone(p.SocialLinks)
	if c.SocialLinks == nil {
		c.SocialLinks = map[string]string{}
	}
	c.Favorites = append([]string{}, p.Favorites...)
	c.ReadLater = append([]string{}, p.ReadLater...)
	return &c
}

func (m *MemoryDB) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, utils.NewAppError(utils.ErrUserNotFound, "User not found", nil)
	}
	return cloneProfile(p), nil
}

func (m *MemoryDB) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := cloneProfile(profile)
	if existing, ok := m.profiles[profile.ID]; ok {
		// lists and creation time are only written on insert
		stored.Favorites = existing.Favorites
		stored.ReadLater = existing.ReadLater
		stored.CreatedAt = existing.CreatedAt
	}
	m.profiles[profile.ID] = stored
	return nil
}

func (m *MemoryDB) UpdateProfileList(ctx context.Context, userID string, list models.ProfileList, storyID string, add bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		p = &models.UserProfile{ID: userID, SocialLinks: map[string]string{}, Favorites: []string{}, ReadLater: []string{}}
		m.profiles[userID] = p
	}

	target := &p.Favorites
	if list == models.ListReadLater {
		target = &p.ReadLater
	}
	if add {
		if !slices.Contains(*target, storyID) {
			*target = append(*target, storyID)
		}
	} else {
		*target = slices.DeleteFunc(*target, func(id string) bool { return id == storyID })
	}
	return nil
}

// Credentials

func (m *MemoryDB) CreateCredential(ctx context.Context, cred *models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(cred.Email)
	if _, exists := m.emailToID[email]; exists {
		return utils.NewAppError(utils.ErrUserAlreadyExists, "Email already registered", nil)
	}
	c := *cred
	c.Email = email
	m.credentials[c.ID] = &c
	m.emailToID[email] = c.ID
	return nil
}

func (m *MemoryDB) GetCredentialByEmail(ctx context.Context, email string) (*models.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.emailToID[strings.ToLower(email)]
	if !ok {
		return nil, utils.NewAppError(utils.ErrUserNotFound, "User not found", nil)
	}
	c := *m.credentials[id]
	return &c, nil
}

func (m *MemoryDB) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credentials[id]
	if !ok {
		return utils.NewAppError(utils.ErrUserNotFound, "User not found", nil)
	}
	c.PasswordHash = hash
	return nil
}

func (m *MemoryDB) SavePasswordReset(ctx context.Context, reset *models.PasswordReset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *reset
	r.Email = strings.ToLower(r.Email)
	m.passwordResets[r.ID] = &r
	return nil
}

func (m *MemoryDB) GetActivePasswordResets(ctx context.Context, email string, now time.Time) ([]*models.PasswordReset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = strings.ToLower(email)
	resets := make([]*models.PasswordReset, 0)
	for _, r := range m.passwordResets {
		if r.Email == email && !r.Used && r.ExpiresAt.After(now) {
			c := *r
			resets = append(resets, &c)
		}
	}
	sort.Slice(resets, func(i, j int) bool { return resets[i].CreatedAt.After(resets[j].CreatedAt) })
	return resets, nil
}

func (m *MemoryDB) MarkPasswordResetUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.passwordResets[id]
	if !ok {
		return utils.NewNotFoundError("Password reset", id)
	}
	r.Used = true
	return nil
}

func (m *MemoryDB) RecordPasswordResetFailure(ctx context.Context, id string, maxAttempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.passwordResets[id]
	if !ok {
		return utils.NewNotFoundError("Password reset", id)
	}
	r.Attempts++
	if r.Attempts >= maxAttempts {
		r.Used = true
	}
	return nil
}

// Comments

func (m *MemoryDB) SaveComment(ctx context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *comment
	m.comments[c.ID] = &c
	return nil
}

func (m *MemoryDB) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, "Comment not found", nil)
	}
	cc := *c
	return &cc, nil
}

func (m *MemoryDB) GetStoryComments(ctx context.Context, storyID string) ([]*models.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	comments := make([]*models.Comment, 0)
	for _, c := range m.comments {
		if c.StoryID == storyID {
			cc := *c
			comments = append(comments, &cc)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].CreatedAt.After(comments[j].CreatedAt) })
	return comments, nil
}

func (m *MemoryDB) DeleteComment(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[id]; !ok {
		return utils.NewAppError(utils.ErrNotFound, "Comment not found", nil)
	}
	delete(m.comments, id)
	return nil
}

// Ratings

func ratingKey(storyID, userID string) string { return storyID + "|" + userID }

func (m *MemoryDB) UpsertRating(ctx context.Context, rating *models.Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ratingKey(rating.StoryID, rating.UserID)
	if existing, ok := m.ratings[key]; ok {
		existing.Value = rating.Value
		existing.UpdatedAt = rating.UpdatedAt
		return nil
	}
	r := *rating
	m.ratings[key] = &r
	return nil
}

func (m *MemoryDB) GetStoryRatings(ctx context.Context, storyID string) ([]*models.Rating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ratings := make([]*models.Rating, 0)
	for _, r := range m.ratings {
		if r.StoryID == storyID {
			rr := *r
			ratings = append(ratings, &rr)
		}
	}
	return ratings, nil
}

func (m *MemoryDB) GetUserRating(ctx context.Context, storyID, userID string) (*models.Rating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.ratings[ratingKey(storyID, userID)]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, "Rating not found", nil)
	}
	rr := *r
	return &rr, nil
}

// Reading progress

func (m *MemoryDB) UpsertProgress(ctx context.Context, progress *models.ReadingProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := *progress
	m.progress[p.ID] = &p
	return nil
}

func (m *MemoryDB) GetUserProgress(ctx context.Context, userID string) ([]*models.ReadingProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]*models.ReadingProgress, 0)
	for _, p := range m.progress {
		if p.UserID == userID {
			pp := *p
			entries = append(entries, &pp)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].LastReadDate.After(entries[j].LastReadDate) })
	return entries, nil
}

// Moderation

func (m *MemoryDB) SaveReport(ctx context.Context, report *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *report
	m.reports[r.ID] = &r
	return nil
}

func (m *MemoryDB) GetReport(ctx context.Context, id string) (*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, "Report not found", nil)
	}
	rr := *r
	return &rr, nil
}

func (m *MemoryDB) GetReports(ctx context.Context, includeResolved bool) ([]*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reports := make([]*models.Report, 0)
	for _, r := range m.reports {
		if includeResolved || !r.Resolved {
			rr := *r
			reports = append(reports, &rr)
		}
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].CreatedAt.After(reports[j].CreatedAt) })
	return reports, nil
}

func (m *MemoryDB) ResolveReport(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return utils.NewAppError(utils.ErrNotFound, "Report not found", nil)
	}
	r.Resolved = true
	return nil
}

func (m *MemoryDB) SaveAdminAction(ctx context.Context, action *models.AdminAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := *action
	m.adminActions = append(m.adminActions, &a)
	return nil
}

func (m *MemoryDB) GetAdminActions(ctx context.Context, storyID string) ([]*models.AdminAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	actions := make([]*models.AdminAction, 0)
	for i := len(m.adminActions) - 1; i >= 0; i-- {
		if a := m.adminActions[i]; a.StoryID == storyID {
			aa := *a
			actions = append(actions, &aa)
		}
	}
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].CreatedAt.After(actions[j].CreatedAt) })
	return actions, nil
}

// Notifications

func (m *MemoryDB) SaveNotification(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	nn := *n
	m.notifications[nn.ID] = &nn
	return nil
}

func (m *MemoryDB) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, "Notification not found", nil)
	}
	nn := *n
	return &nn, nil
}

func (m *MemoryDB) GetUserNotifications(ctx context.Context, userID string) ([]*models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	notifications := make([]*models.Notification, 0)
	for _, n := range m.notifications {
		if n.UserID == userID {
			nn := *n
			notifications = append(notifications, &nn)
		}
	}
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return notifications, nil
}

func (m *MemoryDB) MarkNotificationRead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return utils.NewAppError(utils.ErrNotFound, "Notification not found", nil)
	}
	n.Read = true
	return nil
}

func (m *MemoryDB) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}
