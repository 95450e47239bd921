package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNextReaction(t *testing.T) {
	like, dislike := ReactionLike, ReactionDislike
	tests := []struct {
		name    string
		current *ReactionType
		pressed ReactionType
		want    *ReactionType
	}{
		{"none + like", nil, like, &like},
		{"none + dislike", nil, dislike, &dislike},
		{"like + like", &like, like, nil},
		{"dislike + dislike", &dislike, dislike, nil},
		{"like + dislike", &like, dislike, &dislike},
		{"dislike + like", &dislike, like, &like},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextReaction(tt.current, tt.pressed)
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Errorf("NextReaction() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseMuxStatus(t *testing.T) {
	tests := []struct {
		in   string
		want MuxStatus
	}{
		{"waiting", MuxStatusWaiting},
		{"preparing", MuxStatusPreparing},
		{"asset_created", MuxStatusAssetCreated},
		{"ready", MuxStatusReady},
		{"errored", MuxStatusErrored},
		{"timed_out", MuxStatusTimedOut},
		{"cancelled", MuxStatusCancelled},
		{"", MuxStatusCancelled},
		{"READY", MuxStatusCancelled},
		{"processing", MuxStatusCancelled},
	}

	for _, tt := range tests {
		if got := ParseMuxStatus(tt.in); got != tt.want {
			t.Errorf("ParseMuxStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStoredObjectKeys(t *testing.T) {
	thumb, preview, empty := "thumb", "preview", ""
	tests := []struct {
		name  string
		video Video
		want  int
	}{
		{"none", Video{}, 0},
		{"thumbnail only", Video{ThumbnailKey: &thumb}, 1},
		{"both", Video{ThumbnailKey: &thumb, PreviewKey: &preview}, 2},
		{"empty key ignored", Video{ThumbnailKey: &empty}, 0},
	}

	for _, tt := range tests {
		if got := tt.video.StoredObjectKeys(); len(got) != tt.want {
			t.Errorf("%s: StoredObjectKeys() = %v, want %d keys", tt.name, got, tt.want)
		}
	}
}

func TestNewDeleteObjectTasks(t *testing.T) {
	id := uuid.New()
	now := time.Now()
	tasks := NewDeleteObjectTasks(&id, []string{"a", "", "b"}, now)
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	for _, task := range tasks {
		if task.Status != CleanupStatusPending || task.Kind != CleanupKindDeleteObject {
			t.Errorf("task = %+v", task)
		}
		if !task.NextAttemptAt.Equal(now) || task.VideoID == nil || *task.VideoID != id {
			t.Errorf("task = %+v", task)
		}
	}
}
