package live

import (
	"context"
	"testing"
)

func TestMemoryTreeObserveFiresImmediately(t *testing.T) {
	tree := NewMemoryTree()
	ctx := context.Background()

	if err := tree.SetIndex(ctx, "s1", 3); err != nil {
		t.Fatalf("SetIndex: %v", err)
	}

	var got []int
	sub := tree.ObserveIndex("s1", func(i int) { got = append(got, i) }, nil)
	defer sub.Close()

	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("initial callback = %v, want [3]", got)
	}

	if err := tree.SetIndex(ctx, "s1", 4); err != nil {
		t.Fatalf("SetIndex: %v", err)
	}
	if len(got) != 2 || got[1] != 4 {
		t.Fatalf("after change = %v, want [3 4]", got)
	}
}

func TestMemoryTreeCloseStopsCallbacks(t *testing.T) {
	tree := NewMemoryTree()
	ctx := context.Background()

	calls := 0
	sub := tree.ObserveIndex("s1", func(int) { calls++ }, nil)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}

	sub.Close()
	if err := tree.SetIndex(ctx, "s1", 7); err != nil {
		t.Fatalf("SetIndex: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls after Close = %d, want 1", calls)
	}
}

func TestMemoryTreeRosterExclusivity(t *testing.T) {
	tree := NewMemoryTree()
	ctx := context.Background()

	var active map[string]ActiveEntry
	sub := tree.ObserveActive("s1", func(m map[string]ActiveEntry) { active = m }, nil)
	defer sub.Close()

	if err := tree.SetActive(ctx, "s1", "stu1", ActiveEntry{JoinTime: 100}); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, ok := active["stu1"]; !ok {
		t.Fatal("stu1 missing from active feed")
	}

	// 学生离开：先记离席，再移出在线名单，两边不得同时在
	if err := tree.SetLeft(ctx, "s1", "stu1", LeftEntry{LeftTime: 200}); err != nil {
		t.Fatalf("SetLeft: %v", err)
	}
	if err := tree.RemoveActive(ctx, "s1", "stu1"); err != nil {
		t.Fatalf("RemoveActive: %v", err)
	}

	if _, ok := active["stu1"]; ok {
		t.Error("stu1 still in active feed after leave")
	}
	entry, ok, err := tree.GetLeft(ctx, "s1", "stu1")
	if err != nil || !ok {
		t.Fatalf("GetLeft = %v/%v, want found", ok, err)
	}
	if entry.LeftTime != 200 {
		t.Errorf("LeftTime = %d, want 200", entry.LeftTime)
	}

	// 重进：清掉离席记录再回到在线名单
	if err := tree.RemoveLeft(ctx, "s1", "stu1"); err != nil {
		t.Fatalf("RemoveLeft: %v", err)
	}
	if err := tree.SetActive(ctx, "s1", "stu1", ActiveEntry{JoinTime: 300, Rejoined: true}); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, ok, _ := tree.GetLeft(ctx, "s1", "stu1"); ok {
		t.Error("left entry survived rejoin")
	}
	if !active["stu1"].Rejoined {
		t.Error("rejoined flag not set on re-entry")
	}
}

func TestMemoryTreeResponsesKeyedByCardIndex(t *testing.T) {
	tree := NewMemoryTree()
	ctx := context.Background()

	var responses map[string]map[string]interface{}
	sub := tree.ObserveResponses("s1", func(m map[string]map[string]interface{}) { responses = m }, nil)
	defer sub.Close()

	if err := tree.SetResponse(ctx, "s1", 0, "stu1", 2); err != nil {
		t.Fatalf("SetResponse: %v", err)
	}
	if err := tree.SetResponse(ctx, "s1", 1, "stu1", "answer"); err != nil {
		t.Fatalf("SetResponse: %v", err)
	}
	if err := tree.SetResponse(ctx, "s1", 0, "stu2", 1); err != nil {
		t.Fatalf("SetResponse: %v", err)
	}

	if len(responses["0"]) != 2 {
		t.Errorf("card 0 responses = %d, want 2", len(responses["0"]))
	}
	if responses["1"]["stu1"] != "answer" {
		t.Errorf("card 1 stu1 = %v, want %q", responses["1"]["stu1"], "answer")
	}
}

func TestMemoryTreeInitResetsSession(t *testing.T) {
	tree := NewMemoryTree()
	ctx := context.Background()

	tree.SetIndex(ctx, "s1", 5)
	tree.SetHandRaise(ctx, "s1", "stu1", 42)
	tree.SetActive(ctx, "s1", "stu1", ActiveEntry{JoinTime: 1})

	var index int
	var hands map[string]int64
	s1 := tree.ObserveIndex("s1", func(i int) { index = i }, nil)
	s2 := tree.ObserveHandRaises("s1", func(m map[string]int64) { hands = m }, nil)
	defer s1.Close()
	defer s2.Close()

	if err := tree.Init(ctx, "s1"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if index != 0 {
		t.Errorf("index after Init = %d, want 0", index)
	}
	if len(hands) != 0 {
		t.Errorf("hands after Init = %v, want empty", hands)
	}

	got, err := tree.GetIndex(ctx, "s1")
	if err != nil || got != 0 {
		t.Errorf("GetIndex = %d/%v, want 0", got, err)
	}
}

func TestMemoryTreeHandRaises(t *testing.T) {
	tree := NewMemoryTree()
	ctx := context.Background()

	var hands map[string]int64
	sub := tree.ObserveHandRaises("s1", func(m map[string]int64) { hands = m }, nil)
	defer sub.Close()

	tree.SetHandRaise(ctx, "s1", "stu1", 10)
	tree.SetHandRaise(ctx, "s1", "stu2", 20)
	if len(hands) != 2 {
		t.Fatalf("hands = %v, want 2 entries", hands)
	}

	tree.RemoveHandRaise(ctx, "s1", "stu1")
	if _, ok := hands["stu1"]; ok {
		t.Error("stu1 hand survived RemoveHandRaise")
	}

	tree.RemoveAllHandRaises(ctx, "s1")
	if len(hands) != 0 {
		t.Errorf("hands after RemoveAll = %v, want empty", hands)
	}
}
