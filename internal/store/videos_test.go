package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/user/vidtube-go/internal/apperr"
	"github.com/user/vidtube-go/internal/model"
)

func TestGetVideoDetail_Aggregates(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	owner := createUser(t, store, "owner")
	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")
	video := createVideo(t, store, owner, "detail")

	mustReact := func(u *model.User, r model.ReactionType) {
		if _, err := store.ToggleVideoReaction(ctx, u.ID, video.ID, r); err != nil {
			t.Fatalf("ToggleVideoReaction() error = %v", err)
		}
	}
	mustReact(alice, model.ReactionLike)
	mustReact(bob, model.ReactionDislike)

	for _, u := range []*model.User{alice, bob, alice} {
		if _, err := store.RecordView(ctx, u.ID, video.ID); err != nil {
			t.Fatalf("RecordView() error = %v", err)
		}
	}
	if _, err := store.Subscribe(ctx, alice.ID, owner.ID); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	tests := []struct {
		name           string
		viewer         uuid.UUID
		wantReaction   *model.ReactionType
		wantSubscribed bool
	}{
		{name: "anonymous", viewer: uuid.Nil},
		{name: "alice", viewer: alice.ID, wantReaction: reactionPtr(model.ReactionLike), wantSubscribed: true},
		{name: "bob", viewer: bob.ID, wantReaction: reactionPtr(model.ReactionDislike)},
		{name: "owner", viewer: owner.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detail, err := store.GetVideoDetail(ctx, tt.viewer, video.ID)
			if err != nil {
				t.Fatalf("GetVideoDetail() error = %v", err)
			}
			if detail.ViewCount != 2 {
				t.Errorf("ViewCount = %d, want 2", detail.ViewCount)
			}
			if detail.LikeCount != 1 || detail.DislikeCount != 1 {
				t.Errorf("likes/dislikes = %d/%d, want 1/1", detail.LikeCount, detail.DislikeCount)
			}
			if detail.User.SubscriberCount != 1 {
				t.Errorf("SubscriberCount = %d, want 1", detail.User.SubscriberCount)
			}
			if detail.User.Name != "owner" {
				t.Errorf("User.Name = %q, want owner", detail.User.Name)
			}
			if detail.User.IsSubscribed != tt.wantSubscribed {
				t.Errorf("IsSubscribed = %v, want %v", detail.User.IsSubscribed, tt.wantSubscribed)
			}
			if !sameReaction(detail.ViewerReaction, tt.wantReaction) {
				t.Errorf("ViewerReaction = %v, want %v", detail.ViewerReaction, tt.wantReaction)
			}
		})
	}
}

func TestGetVideoDetail_PrivateVisibleToOwnerOnly(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	owner := createUser(t, store, "owner")
	other := createUser(t, store, "other")
	video := createVideo(t, store, owner, "secret", withVisibility(model.VisibilityPrivate))

	if _, err := store.GetVideoDetail(ctx, owner.ID, video.ID); err != nil {
		t.Errorf("owner GetVideoDetail() error = %v", err)
	}
	for _, viewer := range []uuid.UUID{uuid.Nil, other.ID} {
		_, err := store.GetVideoDetail(ctx, viewer, video.ID)
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("GetVideoDetail(%s) error = %v, want NOT_FOUND", viewer, err)
		}
	}
	if _, err := store.GetVideoDetail(ctx, uuid.Nil, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown video error = %v, want NOT_FOUND", err)
	}
}

func TestUpdateVideo_Ownership(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	owner := createUser(t, store, "owner")
	other := createUser(t, store, "other")
	category := createCategory(t, store, "Music")
	video := createVideo(t, store, owner, "before")

	title := "after"
	private := model.VisibilityPrivate
	updated, err := store.UpdateVideo(ctx, owner.ID, video.ID, VideoUpdate{
		Title:      &title,
		CategoryID: &category.ID,
		Visibility: &private,
	})
	if err != nil {
		t.Fatalf("UpdateVideo() error = %v", err)
	}
	if updated.Title != "after" || updated.Visibility != model.VisibilityPrivate {
		t.Errorf("UpdateVideo() = %+v", updated)
	}
	if updated.CategoryID == nil || *updated.CategoryID != category.ID {
		t.Errorf("CategoryID = %v, want %s", updated.CategoryID, category.ID)
	}
	if !updated.UpdatedAt.After(video.UpdatedAt) {
		t.Errorf("UpdatedAt was not bumped: %v -> %v", video.UpdatedAt, updated.UpdatedAt)
	}

	tests := []struct {
		name     string
		actor    uuid.UUID
		videoID  uuid.UUID
		update   VideoUpdate
		wantCode apperr.Code
	}{
		{name: "not owner", actor: other.ID, videoID: video.ID, update: VideoUpdate{Title: &title}, wantCode: apperr.CodeForbidden},
		{name: "missing video", actor: owner.ID, videoID: uuid.New(), update: VideoUpdate{Title: &title}, wantCode: apperr.CodeNotFound},
		{name: "empty title", actor: owner.ID, videoID: video.ID, update: VideoUpdate{Title: strPtr("   ")}, wantCode: apperr.CodeBadRequest},
		{name: "unknown category", actor: owner.ID, videoID: video.ID, update: VideoUpdate{CategoryID: uuidPtr(uuid.New())}, wantCode: apperr.CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.UpdateVideo(ctx, tt.actor, tt.videoID, tt.update)
			if got := apperr.CodeOf(err); got != tt.wantCode {
				t.Errorf("UpdateVideo() code = %s, want %s (err %v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestDeleteVideo_EnqueuesCleanup(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	owner := createUser(t, store, "owner")
	other := createUser(t, store, "other")
	video := createVideo(t, store, owner, "doomed", withThumbnail("thumb-key"))

	if _, _, err := store.DeleteVideo(ctx, other.ID, video.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("non-owner DeleteVideo() error = %v, want FORBIDDEN", err)
	}

	deleted, tasks, err := store.DeleteVideo(ctx, owner.ID, video.ID)
	if err != nil {
		t.Fatalf("DeleteVideo() error = %v", err)
	}
	if deleted.ID != video.ID {
		t.Errorf("deleted id = %s, want %s", deleted.ID, video.ID)
	}
	if len(tasks) != 1 || tasks[0].ObjectKey != "thumb-key" {
		t.Fatalf("tasks = %+v, want one for thumb-key", tasks)
	}

	due, err := store.ListDueCleanupTasks(ctx, nowUTC(), 10)
	if err != nil {
		t.Fatalf("ListDueCleanupTasks() error = %v", err)
	}
	if len(due) != 1 || due[0].ID != tasks[0].ID {
		t.Errorf("due tasks = %+v, want the enqueued task", due)
	}

	if _, _, err := store.DeleteVideo(ctx, owner.ID, video.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second DeleteVideo() error = %v, want NOT_FOUND", err)
	}
}

func TestSetVideoThumbnail_ReplacesAndEnqueuesOld(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	owner := createUser(t, store, "owner")
	video := createVideo(t, store, owner, "thumbs", withThumbnail("old-key"))

	updated, tasks, err := store.SetVideoThumbnail(ctx, owner.ID, video.ID, "new-key", "https://files.example.com/new-key")
	if err != nil {
		t.Fatalf("SetVideoThumbnail() error = %v", err)
	}
	if updated.ThumbnailKey == nil || *updated.ThumbnailKey != "new-key" {
		t.Errorf("ThumbnailKey = %v, want new-key", updated.ThumbnailKey)
	}
	if len(tasks) != 1 || tasks[0].ObjectKey != "old-key" {
		t.Errorf("tasks = %+v, want one for old-key", tasks)
	}
}

func TestCascades(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	owner := createUser(t, store, "owner")
	viewer := createUser(t, store, "viewer")
	category := createCategory(t, store, "Gaming")
	video := createVideo(t, store, owner, "cascade", withCategory(category.ID), withThumbnail("k1"))
	keep := createVideo(t, store, viewer, "keep", withCategory(category.ID))

	top := &model.Comment{Content: "top", UserID: viewer.ID, VideoID: video.ID}
	if err := store.CreateComment(ctx, top); err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}
	reply := &model.Comment{Content: "reply", UserID: owner.ID, VideoID: video.ID, ParentID: &top.ID}
	if err := store.CreateComment(ctx, reply); err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}

	// deleting a category nulls the reference
	if err := store.db.Delete(&model.Category{}, "id = ?", category.ID).Error; err != nil {
		t.Fatalf("delete category error = %v", err)
	}
	var reloaded model.Video
	store.db.First(&reloaded, "id = ?", keep.ID)
	if reloaded.CategoryID != nil {
		t.Errorf("CategoryID = %v, want nil after category delete", reloaded.CategoryID)
	}

	// deleting the top-level comment removes its replies
	if _, err := store.DeleteComment(ctx, viewer.ID, top.ID); err != nil {
		t.Fatalf("DeleteComment() error = %v", err)
	}
	var count int64
	store.db.Model(&model.Comment{}).Where("id = ?", reply.ID).Count(&count)
	if count != 0 {
		t.Error("reply survived deletion of its parent")
	}

	// deleting the owner removes their videos and enqueues object cleanup
	tasks, err := store.DeleteUserByExternalID(ctx, owner.ExternalID)
	if err != nil {
		t.Fatalf("DeleteUserByExternalID() error = %v", err)
	}
	if len(tasks) != 1 || tasks[0].ObjectKey != "k1" {
		t.Errorf("tasks = %+v, want one for k1", tasks)
	}
	store.db.Model(&model.Video{}).Where("id = ?", video.ID).Count(&count)
	if count != 0 {
		t.Error("video survived deletion of its owner")
	}
	store.db.Model(&model.Video{}).Where("id = ?", keep.ID).Count(&count)
	if count != 1 {
		t.Error("another user's video was deleted")
	}

	// unknown users are a no-op
	if _, err := store.DeleteUserByExternalID(ctx, "user_missing"); err != nil {
		t.Errorf("DeleteUserByExternalID(missing) error = %v", err)
	}
}

func TestListVideos_Filters(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	owner := createUser(t, store, "owner")
	music := createCategory(t, store, "Music")
	sports := createCategory(t, store, "Sports")
	song := createVideo(t, store, owner, "Great Song", withCategory(music.ID))
	createVideo(t, store, owner, "Match highlights", withCategory(sports.ID))
	createVideo(t, store, owner, "100% pure_fun!", withCategory(sports.ID))
	createVideo(t, store, owner, "Private song", withCategory(music.ID), withVisibility(model.VisibilityPrivate))

	tests := []struct {
		name   string
		filter VideoFilter
		want   int
	}{
		{name: "all public", filter: VideoFilter{}, want: 3},
		{name: "by category", filter: VideoFilter{CategoryID: &music.ID}, want: 1},
		{name: "search is case-insensitive", filter: VideoFilter{Query: "SONG"}, want: 1},
		{name: "search and category", filter: VideoFilter{Query: "match", CategoryID: &music.ID}, want: 0},
		{name: "percent is literal", filter: VideoFilter{Query: "%"}, want: 1},
		{name: "percent matches only itself", filter: VideoFilter{Query: "0%"}, want: 1},
		{name: "underscore is literal", filter: VideoFilter{Query: "e_f"}, want: 1},
		{name: "underscore is not a wildcard", filter: VideoFilter{Query: "t_s"}, want: 0},
		{name: "escape char is literal", filter: VideoFilter{Query: "fun!"}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := store.ListVideos(ctx, tt.filter, nil, 10)
			if err != nil {
				t.Fatalf("ListVideos() error = %v", err)
			}
			if len(page.Items) != tt.want {
				t.Errorf("got %d videos, want %d", len(page.Items), tt.want)
			}
		})
	}

	suggestions, err := store.ListSuggestedVideos(ctx, song.ID, nil, 10)
	if err != nil {
		t.Fatalf("ListSuggestedVideos() error = %v", err)
	}
	if len(suggestions.Items) != 0 {
		t.Errorf("suggestions = %d, want 0 (only other music video is private)", len(suggestions.Items))
	}
	if _, err := store.ListSuggestedVideos(ctx, uuid.New(), nil, 10); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("ListSuggestedVideos(unknown) error = %v, want NOT_FOUND", err)
	}

	studio, err := store.ListStudioVideos(ctx, owner.ID, nil, 10)
	if err != nil {
		t.Fatalf("ListStudioVideos() error = %v", err)
	}
	if len(studio.Items) != 4 {
		t.Errorf("studio videos = %d, want 4", len(studio.Items))
	}
}

func TestListSubscribedVideos(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	viewer := createUser(t, store, "viewer")
	followed := createUser(t, store, "followed")
	ignored := createUser(t, store, "ignored")
	createVideo(t, store, followed, "a")
	createVideo(t, store, ignored, "b")

	if _, err := store.Subscribe(ctx, viewer.ID, followed.ID); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	page, err := store.ListSubscribedVideos(ctx, viewer.ID, nil, 10)
	if err != nil {
		t.Fatalf("ListSubscribedVideos() error = %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].UserID != followed.ID {
		t.Errorf("items = %+v, want the followed creator's video", page.Items)
	}
}

func TestWebhookUpdates(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	owner := createUser(t, store, "owner")
	video := createVideo(t, store, owner, "upload", withUploadID("upload-1"), withThumbnail("custom"))

	updated, err := store.UpdateVideoByUploadID(ctx, "upload-1", map[string]interface{}{
		"mux_asset_id": "asset-1",
		"mux_status":   string(model.MuxStatusReady),
	})
	if err != nil {
		t.Fatalf("UpdateVideoByUploadID() error = %v", err)
	}
	if updated.MuxAssetID == nil || *updated.MuxAssetID != "asset-1" || updated.MuxStatus != model.MuxStatusReady {
		t.Errorf("updated = %+v", updated)
	}

	// replaying the same event succeeds
	if _, err := store.UpdateVideoByUploadID(ctx, "upload-1", map[string]interface{}{"mux_status": string(model.MuxStatusReady)}); err != nil {
		t.Errorf("replay error = %v", err)
	}

	if _, err := store.UpdateVideoByUploadID(ctx, "missing", map[string]interface{}{"mux_status": "ready"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing upload error = %v, want NOT_FOUND", err)
	}

	tracked, err := store.UpdateVideoByAssetID(ctx, "asset-1", map[string]interface{}{"mux_track_id": "track-1"})
	if err != nil {
		t.Fatalf("UpdateVideoByAssetID() error = %v", err)
	}
	if tracked.ID != video.ID {
		t.Errorf("tracked id = %s, want %s", tracked.ID, video.ID)
	}

	deleted, tasks, err := store.DeleteVideoByUploadID(ctx, "upload-1")
	if err != nil {
		t.Fatalf("DeleteVideoByUploadID() error = %v", err)
	}
	if deleted == nil || len(tasks) != 1 {
		t.Errorf("deleted = %v, tasks = %d", deleted, len(tasks))
	}
	deleted, _, err = store.DeleteVideoByUploadID(ctx, "upload-1")
	if err != nil || deleted != nil {
		t.Errorf("replayed delete = %v, %v; want nil, nil", deleted, err)
	}
}

func TestDefaultThumbnail(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	owner := createUser(t, store, "owner")
	custom := createVideo(t, store, owner, "custom", withUploadID("upload-custom"), withThumbnail("custom"))
	plain := createVideo(t, store, owner, "plain", withUploadID("upload-plain"))

	for _, uploadID := range []string{"upload-custom", "upload-plain"} {
		_, err := store.UpdateVideoByUploadID(ctx, uploadID, map[string]interface{}{
			"thumbnail_url": DefaultThumbnail("https://image.example/pb/thumbnail.jpg"),
		})
		if err != nil {
			t.Fatalf("UpdateVideoByUploadID(%s) error = %v", uploadID, err)
		}
	}

	got, _ := store.GetOwnedVideo(ctx, owner.ID, custom.ID)
	if got.ThumbnailURL == nil || *got.ThumbnailURL != *custom.ThumbnailURL {
		t.Errorf("custom thumbnail overwritten: %v", got.ThumbnailURL)
	}
	got, _ = store.GetOwnedVideo(ctx, owner.ID, plain.ID)
	if got.ThumbnailURL == nil || *got.ThumbnailURL != "https://image.example/pb/thumbnail.jpg" {
		t.Errorf("default thumbnail not set: %v", got.ThumbnailURL)
	}
}

func reactionPtr(r model.ReactionType) *model.ReactionType { return &r }
func strPtr(s string) *string                              { return &s }
func uuidPtr(id uuid.UUID) *uuid.UUID                      { return &id }

func sameReaction(a, b *model.ReactionType) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
