package service

import (
	"errors"
	"testing"
	"time"

	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/util"
)

func sessionAt(id string, start time.Time) model.Session {
	s := model.Session{Title: id, StartTime: start}
	s.ID = id
	return s
}

func TestBucketSessions(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, loc)

	sessions := []model.Session{
		sessionAt("yesterday", time.Date(2026, 3, 9, 23, 59, 0, 0, loc)),
		sessionAt("midnight", time.Date(2026, 3, 10, 0, 0, 0, 0, loc)),
		sessionAt("this-morning", time.Date(2026, 3, 10, 8, 0, 0, 0, loc)),
		sessionAt("tonight", time.Date(2026, 3, 10, 23, 59, 59, 0, loc)),
		sessionAt("tomorrow", time.Date(2026, 3, 11, 0, 0, 0, 0, loc)),
		sessionAt("next-week", time.Date(2026, 3, 17, 9, 0, 0, 0, loc)),
	}

	buckets := BucketSessions(sessions, now)

	wantToday := []string{"midnight", "this-morning", "tonight"}
	if len(buckets.Today) != len(wantToday) {
		t.Fatalf("today = %d sessions, want %d", len(buckets.Today), len(wantToday))
	}
	for i, want := range wantToday {
		if buckets.Today[i].ID != want {
			t.Errorf("today[%d] = %s, want %s", i, buckets.Today[i].ID, want)
		}
	}

	if len(buckets.Past) != 1 || buckets.Past[0].ID != "yesterday" {
		t.Errorf("past = %+v, want [yesterday]", ids(buckets.Past))
	}
	if len(buckets.Upcoming) != 2 || buckets.Upcoming[0].ID != "tomorrow" {
		t.Errorf("upcoming = %+v, want [tomorrow next-week]", ids(buckets.Upcoming))
	}
}

func TestBucketSessionsCrossTimezone(t *testing.T) {
	// 日界跟 now 的时区走，UTC 里算昨天的在东八区可以是今天
	utc8 := time.FixedZone("UTC+8", 8*3600)
	now := time.Date(2026, 3, 10, 1, 0, 0, 0, utc8)

	// UTC 2026-03-09 20:00 即东八区 2026-03-10 04:00
	sessions := []model.Session{
		sessionAt("utc-evening", time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC)),
	}

	buckets := BucketSessions(sessions, now)
	if len(buckets.Today) != 1 {
		t.Fatalf("today = %v, want the UTC evening session", ids(buckets.Today))
	}
}

func TestBucketSessionsEmpty(t *testing.T) {
	buckets := BucketSessions(nil, time.Now())
	// 三栏非 nil，序列化成 [] 而不是 null
	if buckets.Today == nil || buckets.Upcoming == nil || buckets.Past == nil {
		t.Fatalf("buckets contain nil slices: %+v", buckets)
	}
}

func ids(sessions []model.Session) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}

func TestListByStatusRejectsUnknown(t *testing.T) {
	s := &SessionService{}
	if _, err := s.ListByStatus("paused"); !errors.Is(err, util.ErrInvalidRequest) {
		t.Fatalf("ListByStatus(paused) err = %v, want ErrInvalidRequest", err)
	}
}

func TestListInRangeRejectsEmptyWindow(t *testing.T) {
	s := &SessionService{}
	now := time.Now()
	user := &model.User{Role: model.Teacher}
	if _, err := s.ListInRange(user, now, now); !errors.Is(err, util.ErrInvalidRequest) {
		t.Fatalf("ListInRange(now, now) err = %v, want ErrInvalidRequest", err)
	}
	if _, err := s.ListInRange(user, now, now.Add(-time.Hour)); !errors.Is(err, util.ErrInvalidRequest) {
		t.Fatalf("reversed window err = %v, want ErrInvalidRequest", err)
	}
}
