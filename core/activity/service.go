package activity

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core"
)

const (
	MaxImageSize = 5 << 20
	imagesDir    = "activites/images"
)

var (
	// errors
	ErrNotFound      = errors.New("activity not found")
	ErrImageNotFound = errors.New("activity image not found")

	imageTypes = map[string]bool{"image/jpeg": true, "image/png": true, "image/gif": true}
)

type (
	Repository interface {
		CreateActivity(ctx context.Context, a Activity, exec ...core.DBExecutor) (Activity, error)
		UpdateActivity(ctx context.Context, a Activity, exec ...core.DBExecutor) (Activity, error)
		// DeleteActivity removes the activity with its images and returns it.
		DeleteActivity(ctx context.Context, id int64, exec ...core.DBExecutor) (Activity, error)
		// GetActivity returns the activity with its images, newest first.
		GetActivity(ctx context.Context, id int64, exec ...core.DBExecutor) (Activity, error)
		QueryActivities(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Activity, error)
		// Neighbours returns the closest activities before and after a: by date when a has one, by ID otherwise.
		Neighbours(ctx context.Context, a Activity, exec ...core.DBExecutor) (prev, next *Activity, err error)
		AddImages(ctx context.Context, images []Image, exec ...core.DBExecutor) ([]Image, error)
		DeleteImage(ctx context.Context, id int64, exec ...core.DBExecutor) (Image, error)
	}

	Service interface {
		// Create stores the activity with its valid images; skipped images are reported as warnings.
		Create(ctx context.Context, af ActivityForm, creatorID string, images []core.File) (Activity, []string, error)
		Update(ctx context.Context, id int64, af ActivityForm, uploaderID string, images []core.File) (Activity, []string, error)
		Delete(ctx context.Context, id int64) error
		DeleteImage(ctx context.Context, id int64) (Image, error)
		Get(ctx context.Context, id int64) (Activity, error)
		Query(ctx context.Context, ordering []core.DBOrdering) ([]Activity, error)
		Neighbours(ctx context.Context, a Activity) (prev, next *Activity, err error)
	}

	service struct {
		repo       Repository
		transactor core.Transactor
		storage    core.FileStorage
		logger     core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, transactor core.Transactor, storage core.FileStorage, logger core.Logger) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(transactor, "transactor"),
		vala.IsNotNil(storage, "storage"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{repo: repo, transactor: transactor, storage: storage, logger: logger}
}

// CheckImage returns the warning shown when f cannot be used as an activity image, or "".
func CheckImage(f core.File) string {
	if f.Size > MaxImageSize {
		return fmt.Sprintf("L'image %s est trop volumineuse (max 5MB).", f.Name)
	}
	if !imageTypes[f.ContentType] {
		return fmt.Sprintf("Le format %s n'est pas supporté.", f.ContentType)
	}
	return ""
}

func (svc *service) saveImages(ctx context.Context, activityID int64, uploaderID, caption string, files []core.File, exec ...core.DBExecutor) ([]Image, []string, error) {
	var (
		images   []Image
		warnings []string
	)
	now := time.Now().UTC()
	for _, f := range files {
		if w := CheckImage(f); w != "" {
			warnings = append(warnings, w)
			continue
		}
		p, err := svc.storage.Save(ctx, path.Join(imagesDir, uuid.NewString()+f.Ext()), f.Content)
		if err != nil {
			svc.deleteFiles(ctx, images...)
			return nil, nil, errors.Wrapf(err, "saving image %s", f.Name)
		}
		images = append(images, Image{
			ActivityID: activityID,
			Path:       p,
			Caption:    caption,
			UploadedBy: uploaderID,
			UploadedAt: now,
		})
	}
	if len(images) == 0 {
		return nil, warnings, nil
	}

	saved, err := svc.repo.AddImages(ctx, images, exec...)
	if err != nil {
		svc.deleteFiles(ctx, images...)
		return nil, nil, errors.Wrap(err, "adding images")
	}
	return saved, warnings, nil
}

func (svc *service) deleteFiles(ctx context.Context, images ...Image) {
	for _, img := range images {
		if err := svc.storage.Delete(ctx, img.Path); err != nil {
			svc.logger.Warn(fmt.Sprintf("activity: deleting %s: %v", img.Path, err))
		}
	}
}

func (svc *service) withURLs(a Activity) Activity {
	for i := range a.Images {
		a.Images[i].URL = svc.storage.URL(a.Images[i].Path)
	}
	return a
}

func (svc *service) Create(ctx context.Context, af ActivityForm, creatorID string, images []core.File) (Activity, []string, error) {
	now := time.Now().UTC()
	a := Activity{CreatedBy: creatorID, CreatedAt: now, UpdatedAt: now}
	af.apply(&a)

	var warnings []string
	err := svc.transactor.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if a, err = svc.repo.CreateActivity(ctx, a, core.Execs(exec)...); err != nil {
			return errors.Wrap(err, "creating activity")
		}
		a.Images, warnings, err = svc.saveImages(ctx, a.ID, creatorID, af.Caption, images, core.Execs(exec)...)
		return err
	})
	if err != nil {
		return Activity{}, nil, err
	}
	return svc.withURLs(a), warnings, nil
}

func (svc *service) Update(ctx context.Context, id int64, af ActivityForm, uploaderID string, images []core.File) (Activity, []string, error) {
	a, err := svc.repo.GetActivity(ctx, id)
	if err != nil {
		return Activity{}, nil, err
	}
	af.apply(&a)
	a.UpdatedAt = time.Now().UTC()

	var warnings []string
	err = svc.transactor.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if a, err = svc.repo.UpdateActivity(ctx, a, core.Execs(exec)...); err != nil {
			return errors.Wrap(err, "updating activity")
		}
		_, warnings, err = svc.saveImages(ctx, a.ID, uploaderID, af.Caption, images, core.Execs(exec)...)
		return err
	})
	if err != nil {
		return Activity{}, nil, err
	}

	if a, err = svc.repo.GetActivity(ctx, id); err != nil {
		return Activity{}, nil, err
	}
	return svc.withURLs(a), warnings, nil
}

// Delete removes the activity and the files of its images.
func (svc *service) Delete(ctx context.Context, id int64) error {
	a, err := svc.repo.DeleteActivity(ctx, id)
	if err != nil {
		return err
	}
	svc.deleteFiles(ctx, a.Images...)
	return nil
}

func (svc *service) DeleteImage(ctx context.Context, id int64) (Image, error) {
	img, err := svc.repo.DeleteImage(ctx, id)
	if err != nil {
		return Image{}, err
	}
	svc.deleteFiles(ctx, img)
	return img, nil
}

func (svc *service) Get(ctx context.Context, id int64) (Activity, error) {
	a, err := svc.repo.GetActivity(ctx, id)
	if err != nil {
		return Activity{}, err
	}
	return svc.withURLs(a), nil
}

func (svc *service) Query(ctx context.Context, ordering []core.DBOrdering) ([]Activity, error) {
	activities, err := svc.repo.QueryActivities(ctx, ordering)
	if err != nil {
		return nil, err
	}
	for i := range activities {
		activities[i] = svc.withURLs(activities[i])
	}
	return activities, nil
}

func (svc *service) Neighbours(ctx context.Context, a Activity) (*Activity, *Activity, error) {
	return svc.repo.Neighbours(ctx, a)
}
