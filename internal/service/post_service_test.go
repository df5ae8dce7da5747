package service

import (
	"errors"
	"testing"

	"koboland/internal/model"

	"gorm.io/gorm"
)

type fakePostRepo struct {
	posts   map[string]*model.Post
	updated *model.Post
}

func newFakePostRepo(posts ...*model.Post) *fakePostRepo {
	f := &fakePostRepo{posts: make(map[string]*model.Post)}
	for _, post := range posts {
		f.posts[post.ID] = post
	}
	return f
}

func (f *fakePostRepo) Create(post *model.Post) error {
	f.posts[post.ID] = post
	return nil
}

func (f *fakePostRepo) FindByID(id string) (*model.Post, error) {
	if post, ok := f.posts[id]; ok {
		copied := *post
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePostRepo) FindByPublicID(publicID string) (*model.Post, error) {
	for _, post := range f.posts {
		if post.PublicID == publicID {
			copied := *post
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePostRepo) FindByTopic(topicID string, limit, offset int) ([]model.Post, error) {
	return nil, nil
}

func (f *fakePostRepo) CountByTopic(topicID string) (int64, error) {
	return 0, nil
}

func (f *fakePostRepo) Update(post *model.Post) error {
	f.updated = post
	return nil
}

func (f *fakePostRepo) Delete(id string) error {
	delete(f.posts, id)
	return nil
}

func TestPostUpdateSetsModified(t *testing.T) {
	repo := newFakePostRepo(&model.Post{ID: "p1", AuthorID: "u1", Content: "old"})
	svc := NewPostService(repo)

	post, err := svc.Update("u1", "p1", UpdatePostRequest{Content: "new"})
	if err != nil {
		t.Fatal(err)
	}
	if post.Content != "new" || !post.Modified {
		t.Errorf("post = (content=%q, modified=%v), want (new, true)", post.Content, post.Modified)
	}
	if repo.updated == nil || !repo.updated.Modified {
		t.Error("modified flag not persisted")
	}
}

func TestPostUpdateAuthorOnly(t *testing.T) {
	repo := newFakePostRepo(&model.Post{ID: "p1", AuthorID: "u1"})
	svc := NewPostService(repo)

	if _, err := svc.Update("u2", "p1", UpdatePostRequest{Content: "new"}); !errors.Is(err, ErrNotAuthor) {
		t.Errorf("err = %v, want ErrNotAuthor", err)
	}
	if _, err := svc.Update("u1", "missing", UpdatePostRequest{Content: "new"}); !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("err = %v, want ErrTargetNotFound", err)
	}
	if repo.updated != nil {
		t.Error("rejected update was persisted")
	}
}
