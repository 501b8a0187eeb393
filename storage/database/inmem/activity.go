package inmemdb

import (
	"context"
	"sort"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/activity"
)

type activityRepository struct {
	db *activityTable
}

var _ activity.Repository = (*activityRepository)(nil)

func NewActivityRepository(db *DB) activity.Repository {
	return &activityRepository{db: db.activity}
}

// withImages attaches the images of a, newest first. Callers hold the lock.
func (repo *activityRepository) withImages(a activity.Activity) activity.Activity {
	a.Images = make([]activity.Image, 0)
	for _, img := range repo.db.images {
		if img.ActivityID == a.ID {
			a.Images = append(a.Images, *img)
		}
	}
	sort.Slice(a.Images, func(i, j int) bool {
		if a.Images[i].UploadedAt.Equal(a.Images[j].UploadedAt) {
			return a.Images[i].ID > a.Images[j].ID
		}
		return a.Images[i].UploadedAt.After(a.Images[j].UploadedAt)
	})
	return a
}

func (repo *activityRepository) CreateActivity(_ context.Context, a activity.Activity, _ ...core.DBExecutor) (activity.Activity, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.pk++
	a.ID = repo.db.pk
	a.Images = nil
	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *activityRepository) UpdateActivity(_ context.Context, a activity.Activity, _ ...core.DBExecutor) (activity.Activity, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[a.ID]
	if !ok {
		return activity.Activity{}, activity.ErrNotFound
	}
	a.CreatedBy = orig.CreatedBy
	a.CreatedAt = orig.CreatedAt
	a.Images = nil
	repo.db.table[a.ID] = &a
	return repo.withImages(a), nil
}

func (repo *activityRepository) DeleteActivity(_ context.Context, id int64, _ ...core.DBExecutor) (activity.Activity, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a, ok := repo.db.table[id]
	if !ok {
		return activity.Activity{}, activity.ErrNotFound
	}
	deleted := repo.withImages(*a)
	for _, img := range deleted.Images {
		delete(repo.db.images, img.ID)
	}
	delete(repo.db.table, id)
	return deleted, nil
}

func (repo *activityRepository) GetActivity(_ context.Context, id int64, _ ...core.DBExecutor) (activity.Activity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	a, ok := repo.db.table[id]
	if !ok {
		return activity.Activity{}, activity.ErrNotFound
	}
	return repo.withImages(*a), nil
}

var activityLess = map[string]func(a, b activity.Activity) bool{
	"title":      func(a, b activity.Activity) bool { return a.Title < b.Title },
	"created_at": func(a, b activity.Activity) bool { return a.CreatedAt.Before(b.CreatedAt) },
	"date": func(a, b activity.Activity) bool {
		if a.Date == nil || b.Date == nil {
			return false
		}
		return a.Date.Before(*b.Date)
	},
}

func (repo *activityRepository) QueryActivities(_ context.Context, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]activity.Activity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	activities := make([]activity.Activity, 0, len(repo.db.table))
	for _, a := range repo.db.table {
		activities = append(activities, repo.withImages(*a))
	}
	sort.Slice(activities, func(i, j int) bool { return activities[i].CreatedAt.After(activities[j].CreatedAt) })
	for i := len(ordering) - 1; i >= 0; i-- {
		ord := ordering[i]
		less, ok := activityLess[ord.Field]
		if !ok {
			continue
		}
		sort.SliceStable(activities, func(i, j int) bool {
			x, y := activities[i], activities[j]
			// dateless activities sort last in both directions
			if ord.Field == "date" && (x.Date == nil) != (y.Date == nil) {
				return y.Date == nil
			}
			if ord.Ascending {
				return less(x, y)
			}
			return less(y, x)
		})
	}
	return activities, nil
}

func (repo *activityRepository) Neighbours(_ context.Context, a activity.Activity, _ ...core.DBExecutor) (*activity.Activity, *activity.Activity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var prev, next *activity.Activity
	for _, other := range repo.db.table {
		o := *other
		if a.Date != nil {
			if o.Date == nil {
				continue
			}
			if o.Date.Before(*a.Date) && (prev == nil || o.Date.After(*prev.Date)) {
				prev = &o
			}
			if o.Date.After(*a.Date) && (next == nil || o.Date.Before(*next.Date)) {
				next = &o
			}
			continue
		}
		if o.ID < a.ID && (prev == nil || o.ID > prev.ID) {
			prev = &o
		}
		if o.ID > a.ID && (next == nil || o.ID < next.ID) {
			next = &o
		}
	}
	return prev, next, nil
}

func (repo *activityRepository) AddImages(_ context.Context, images []activity.Image, _ ...core.DBExecutor) ([]activity.Image, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	saved := make([]activity.Image, 0, len(images))
	for _, img := range images {
		if _, ok := repo.db.table[img.ActivityID]; !ok {
			return nil, activity.ErrNotFound
		}
		repo.db.imgPK++
		img.ID = repo.db.imgPK
		img := img
		repo.db.images[img.ID] = &img
		saved = append(saved, img)
	}
	return saved, nil
}

func (repo *activityRepository) DeleteImage(_ context.Context, id int64, _ ...core.DBExecutor) (activity.Image, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	img, ok := repo.db.images[id]
	if !ok {
		return activity.Image{}, activity.ErrImageNotFound
	}
	delete(repo.db.images, id)
	return *img, nil
}
