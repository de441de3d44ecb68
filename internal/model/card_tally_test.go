package model

import "testing"

func TestDeshufflePairs(t *testing.T) {
	// shuffle 槽位 s 存放原始右项下标，P=[2,0,1] 表示槽 0 展示原始项 2
	shuffle := []int{2, 0, 1}

	tests := []struct {
		name      string
		connected []int
		want      []int
	}{
		// 学生把每个左项都连到了显示上正确的槽位
		{"fully correct", []int{2, 0, 1}, []int{0, 1, 2}},
		{"fully wrong", []int{0, 1, 2}, []int{1, 2, 0}},
		{"partial", []int{2, UnconnectedPair, 0}, []int{0, UnconnectedPair, 1}},
		{"none connected", []int{UnconnectedPair, UnconnectedPair, UnconnectedPair}, []int{UnconnectedPair, UnconnectedPair, UnconnectedPair}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeshufflePairs(tt.connected, shuffle)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("pos %d = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMatchPairsCorrect(t *testing.T) {
	tests := []struct {
		name  string
		pairs []int
		want  bool
	}{
		{"identity", []int{0, 1, 2}, true},
		{"swapped", []int{1, 0, 2}, false},
		{"unconnected", []int{0, UnconnectedPair, 2}, false},
		{"empty", []int{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchPairsCorrect(tt.pairs); got != tt.want {
				t.Errorf("MatchPairsCorrect(%v) = %v, want %v", tt.pairs, got, tt.want)
			}
		})
	}
}

func TestSimpleMCQResponseCounts(t *testing.T) {
	content := &SimpleMCQContent{Options: []string{"a", "b", "c"}, CorrectAnswer: 0}
	responses := map[string]CardResponse{
		"s1": SimpleMCQResponse{SelectedOption: intPtr(0)},
		"s2": SimpleMCQResponse{SelectedOption: intPtr(2)},
		"s3": SimpleMCQResponse{SelectedOption: intPtr(2)},
		"s4": SimpleMCQResponse{SelectedOption: intPtr(9)}, // 越界的选项被忽略
	}

	counts := SimpleMCQResponseCounts(content, responses)
	want := []int{1, 0, 2}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("counts[%d] = %d, want %d", i, counts[i], want[i])
		}
	}
}

func TestYesNoResponseCounts(t *testing.T) {
	responses := map[string]CardResponse{
		"s1": YesNoResponse{SelectedOption: intPtr(0)},
		"s2": YesNoResponse{SelectedOption: intPtr(0)},
		"s3": YesNoResponse{SelectedOption: intPtr(2)},
	}

	counts := YesNoResponseCounts(responses)
	if counts[0] != 2 || counts[1] != 0 || counts[2] != 1 {
		t.Errorf("counts = %v, want [2 0 1]", counts)
	}
}

func TestCardBreakdown(t *testing.T) {
	content := &FillInTheBlanksContent{Answer: "mitochondria"}
	responses := map[string]CardResponse{
		"s1": FillInTheBlanksResponse{Answer: "Mitochondria"}, // 大小写不敏感
		"s2": FillInTheBlanksResponse{Answer: "ribosome"},
	}

	got := CardBreakdown(content, responses, 5)
	if got.Correct != 1 || got.Incorrect != 1 || got.Unanswered != 3 {
		t.Errorf("breakdown = %+v, want {1 1 3}", got)
	}
}

func TestCardBreakdownShrunkRoster(t *testing.T) {
	// roster 缩到比作答数还小时未答数只钳到零，不回收已有作答
	content := &SimpleMCQContent{Options: []string{"a", "b"}, CorrectAnswer: 0}
	responses := map[string]CardResponse{
		"s1": SimpleMCQResponse{SelectedOption: intPtr(0)},
		"s2": SimpleMCQResponse{SelectedOption: intPtr(1)},
	}

	got := CardBreakdown(content, responses, 1)
	if got.Correct != 1 || got.Incorrect != 1 || got.Unanswered != 0 {
		t.Errorf("breakdown = %+v, want {1 1 0}", got)
	}
}

func TestCardBreakdownMatch(t *testing.T) {
	// 存进树的 match 连接已是原始坐标系，这里直接按恒等判对
	content := &MatchTheFollowingContent{Pairs: []MatchPair{{"a", "1"}, {"b", "2"}}}
	responses := map[string]CardResponse{
		"s1": MatchTheFollowingResponse{ConnectedPairs: []int{0, 1}},
		"s2": MatchTheFollowingResponse{ConnectedPairs: []int{1, 0}},
		"s3": MatchTheFollowingResponse{ConnectedPairs: []int{0, UnconnectedPair}},
	}

	got := CardBreakdown(content, responses, 3)
	if got.Correct != 1 || got.Incorrect != 2 || got.Unanswered != 0 {
		t.Errorf("breakdown = %+v, want {1 2 0}", got)
	}
}

func TestTextResponseCount(t *testing.T) {
	responses := map[string]CardResponse{
		"s1": ShortAnswerResponse{Answer: "something"},
		"s2": ShortAnswerResponse{Answer: ""},
		"s3": FillInTheBlanksResponse{Answer: "else"},
	}
	if got := TextResponseCount(responses); got != 2 {
		t.Errorf("TextResponseCount = %d, want 2", got)
	}
}
