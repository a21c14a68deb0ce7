// Package memory is an in-process store for local development and tests.
// Data does not survive a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wallshare/wallpaper-api/internal/models"
	"github.com/wallshare/wallpaper-api/internal/store"
)

var (
	_ store.CredentialStore = (*Store)(nil)
	_ store.ResourceStore   = (*Store)(nil)
)

type favoriteKey struct {
	userID string
	url    string
}

type Store struct {
	mu         sync.RWMutex
	users      map[string]models.User      // by username
	wallpapers map[string]models.Wallpaper // by url
	favorites  map[favoriteKey]time.Time
	now        func() time.Time
}

func New() *Store {
	return &Store{
		users:      make(map[string]models.User),
		wallpapers: make(map[string]models.Wallpaper),
		favorites:  make(map[favoriteKey]time.Time),
		now:        monotonicClock(),
	}
}

// monotonicClock never returns the same instant twice so newest-first
// ordering is stable even for back-to-back inserts.
func monotonicClock() func() time.Time {
	var mu sync.Mutex
	var last time.Time
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := time.Now().UTC()
		if !t.After(last) {
			t = last.Add(time.Microsecond)
		}
		last = t
		return t
	}
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return store.ErrUserExists
	}

	user.CreatedAt = s.now()
	s.users[user.Username] = *user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) CreateWallpaper(_ context.Context, wp *models.Wallpaper) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.wallpapers[wp.URL]; exists {
		return store.ErrWallpaperExists
	}

	wp.CreatedAt = s.now()
	s.wallpapers[wp.URL] = *wp
	return nil
}

func (s *Store) GetWallpaperByURL(_ context.Context, url string) (*models.Wallpaper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wp, ok := s.wallpapers[url]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &wp, nil
}

func (s *Store) ListWallpapersByOwner(_ context.Context, ownerID string) ([]models.Wallpaper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]models.Wallpaper, 0)
	for _, wp := range s.wallpapers {
		if wp.OwnerID == ownerID {
			list = append(list, wp)
		}
	}
	sortNewestFirst(list)
	return list, nil
}

func (s *Store) ListWallpapers(context.Context) ([]models.Wallpaper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]models.Wallpaper, 0, len(s.wallpapers))
	for _, wp := range s.wallpapers {
		list = append(list, wp)
	}
	sortNewestFirst(list)
	return list, nil
}

func (s *Store) DeleteWallpaper(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for url, wp := range s.wallpapers {
		if wp.ID != id {
			continue
		}
		if wp.OwnerID != ownerID {
			return store.ErrNotFound
		}
		delete(s.wallpapers, url)
		for key := range s.favorites {
			if key.url == url {
				delete(s.favorites, key)
			}
		}
		return nil
	}

	return store.ErrNotFound
}

func (s *Store) AddFavorite(_ context.Context, userID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wallpapers[url]; !ok {
		return store.ErrNotFound
	}

	key := favoriteKey{userID: userID, url: url}
	if _, exists := s.favorites[key]; !exists {
		s.favorites[key] = s.now()
	}
	return nil
}

func (s *Store) RemoveFavorite(_ context.Context, userID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.favorites, favoriteKey{userID: userID, url: url})
	return nil
}

func (s *Store) ListFavorites(_ context.Context, userID string) ([]models.FavoriteEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type entry struct {
		models.FavoriteEntry
		at time.Time
	}

	entries := make([]entry, 0)
	for key, at := range s.favorites {
		if key.userID != userID {
			continue
		}
		wp, ok := s.wallpapers[key.url]
		if !ok {
			continue
		}
		entries = append(entries, entry{
			FavoriteEntry: models.FavoriteEntry{WallpaperURL: key.url, Username: wp.OwnerUsername},
			at:            at,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].at.After(entries[j].at)
	})

	favorites := make([]models.FavoriteEntry, len(entries))
	for i, e := range entries {
		favorites[i] = e.FavoriteEntry
	}
	return favorites, nil
}

func sortNewestFirst(list []models.Wallpaper) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
